package service

import (
	"context"
	"sort"

	perr "regtruth/internal/platform/errors"
	rulesdom "regtruth/internal/services/rules/domain"
)

// ResolvePrecedence picks the single winning rule among candidates matching a
// concept at query time. The ladder: lex specialis via the overrides graph,
// then authority rank, then lex posterior (newest effective-from), then
// lexicographic id. The final step guarantees a total order with no ties
func (s *Service) ResolvePrecedence(ctx context.Context, ruleIDs []string) (string, error) {
	switch len(ruleIDs) {
	case 0:
		return "", perr.InvalidArgumentf("no candidate rules")
	case 1:
		return ruleIDs[0], nil
	}

	rules := make([]rulesdom.Rule, 0, len(ruleIDs))
	for _, id := range ruleIDs {
		r, err := s.Rules.Get(ctx, id)
		if err != nil {
			return "", err
		}
		rules = append(rules, r)
	}

	edges, err := s.Rules.OverridesAmong(ctx, ruleIDs)
	if err != nil {
		return "", err
	}
	overrides := make(map[string]int, len(ruleIDs))  // edges out: how many candidates this rule overrides
	overridden := make(map[string]bool, len(ruleIDs)) // has an incoming edge from a candidate
	for _, e := range edges {
		overrides[e.OverriderID]++
		overridden[e.OverriddenID] = true
	}

	ordered := make([]rulesdom.Rule, len(rules))
	copy(ordered, rules)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]

		// Lex specialis: an unoverridden rule that overrides at least one
		// other candidate beats everything else
		aSpec := !overridden[a.ID] && overrides[a.ID] > 0
		bSpec := !overridden[b.ID] && overrides[b.ID] > 0
		if aSpec != bSpec {
			return aSpec
		}

		if a.Authority.Rank() != b.Authority.Rank() {
			return a.Authority.Rank() > b.Authority.Rank()
		}

		if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
			return a.EffectiveFrom.After(b.EffectiveFrom)
		}

		return a.ID < b.ID
	})

	return ordered[0].ID, nil
}
