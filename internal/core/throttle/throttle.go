// Package throttle provides the per-domain fetch gate: concurrency slots,
// rolling health, and a circuit breaker. A Gate is an injected instance, never
// a package singleton, so tests and workers can hold isolated gates.
package throttle

import (
	"context"
	"sync"
	"time"

	perr "regtruth/internal/platform/errors"
)

const (
	defaultSlotsPerDomain = 2
	defaultUnhealthyAfter = 3
	defaultOpenAfter      = 5
)

// Config tunes the gate; zero values fall back to defaults
type Config struct {
	// SlotsPerDomain caps in-flight fetches per domain
	SlotsPerDomain int

	// UnhealthyAfter is the consecutive-error count at which a domain is
	// reported unhealthy while its breaker stays closed
	UnhealthyAfter int

	// OpenAfter is the consecutive-error count that opens the breaker
	OpenAfter int
}

// Health is a read-only snapshot of one domain's state
type Health struct {
	Domain            string
	ConsecutiveErrors int
	Unhealthy         bool
	BreakerOpen       bool
	LastError         string
	OpenedAt          time.Time
}

// Gate throttles outbound fetches per domain and trips a breaker on repeated
// failures. Domains are tracked independently; one open breaker never affects
// another domain's slots
type Gate struct {
	cfg Config

	mu      sync.Mutex
	domains map[string]*domainState

	now func() time.Time
}

type domainState struct {
	slots      chan struct{}
	consecErrs int
	open       bool
	lastErr    string
	openedAt   time.Time
}

// New constructs a Gate with defaults applied
func New(cfg Config) *Gate {
	if cfg.SlotsPerDomain <= 0 {
		cfg.SlotsPerDomain = defaultSlotsPerDomain
	}
	if cfg.UnhealthyAfter <= 0 {
		cfg.UnhealthyAfter = defaultUnhealthyAfter
	}
	if cfg.OpenAfter <= 0 {
		cfg.OpenAfter = defaultOpenAfter
	}
	return &Gate{
		cfg:     cfg,
		domains: make(map[string]*domainState),
		now:     time.Now,
	}
}

// state returns the tracked state for domain, creating it on first use
// caller must hold g.mu
func (g *Gate) state(domain string) *domainState {
	st, ok := g.domains[domain]
	if !ok {
		st = &domainState{slots: make(chan struct{}, g.cfg.SlotsPerDomain)}
		for i := 0; i < g.cfg.SlotsPerDomain; i++ {
			st.slots <- struct{}{}
		}
		g.domains[domain] = st
	}
	return st
}

// WaitSlot blocks until a slot for domain is free, the context is done, or the
// domain's breaker is open. On an open breaker it fails fast with a
// circuit-open error; callers must not retry synchronously. The returned
// release func must be called exactly once when the fetch finishes
func (g *Gate) WaitSlot(ctx context.Context, domain string) (release func(), err error) {
	g.mu.Lock()
	st := g.state(domain)
	if st.open {
		last := st.lastErr
		g.mu.Unlock()
		return nil, perr.CircuitOpenf("circuit open for %s (last error: %s)", domain, last)
	}
	slots := st.slots
	g.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-slots:
	}

	// the breaker may have opened while we were parked on the slot channel
	g.mu.Lock()
	if st.open {
		last := st.lastErr
		g.mu.Unlock()
		slots <- struct{}{}
		return nil, perr.CircuitOpenf("circuit open for %s (last error: %s)", domain, last)
	}
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { slots <- struct{}{} })
	}, nil
}

// RecordSuccess resets the consecutive-error count for domain.
// It does not close an open breaker; only Reset does that
func (g *Gate) RecordSuccess(domain string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.state(domain)
	st.consecErrs = 0
	st.lastErr = ""
}

// RecordError bumps the consecutive-error count and opens the breaker once the
// threshold is crossed
func (g *Gate) RecordError(domain, msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.state(domain)
	st.consecErrs++
	st.lastErr = msg
	if !st.open && st.consecErrs >= g.cfg.OpenAfter {
		st.open = true
		st.openedAt = g.now()
	}
}

// Reset is the explicit operator escape hatch: it closes the breaker and
// clears the error window for domain
func (g *Gate) Reset(domain string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.state(domain)
	st.consecErrs = 0
	st.open = false
	st.lastErr = ""
	st.openedAt = time.Time{}
}

// Health reports the current window for domain
func (g *Gate) Health(domain string) Health {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.state(domain)
	return Health{
		Domain:            domain,
		ConsecutiveErrors: st.consecErrs,
		Unhealthy:         st.consecErrs >= g.cfg.UnhealthyAfter,
		BreakerOpen:       st.open,
		LastError:         st.lastErr,
		OpenedAt:          st.openedAt,
	}
}

// Domains returns the domains the gate has seen, for health reporting
func (g *Gate) Domains() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.domains))
	for d := range g.domains {
		out = append(out, d)
	}
	return out
}
