package authority

import "testing"

func TestRankOrdering(t *testing.T) {
	t.Parallel()
	if !(LevelLaw.Rank() > LevelGuidance.Rank() &&
		LevelGuidance.Rank() > LevelProcedure.Rank() &&
		LevelProcedure.Rank() > LevelPractice.Rank()) {
		t.Fatalf("authority ladder out of order")
	}
	if Level("BLOG").Valid() {
		t.Fatalf("unknown level must be invalid")
	}
}

func TestSupersedesIsStrict(t *testing.T) {
	t.Parallel()
	if !LevelLaw.Supersedes(LevelGuidance) {
		t.Fatalf("LAW should supersede GUIDANCE")
	}
	if LevelGuidance.Supersedes(LevelGuidance) {
		t.Fatalf("equal ranks must not supersede")
	}
	if LevelPractice.Supersedes(LevelLaw) {
		t.Fatalf("PRACTICE must not supersede LAW")
	}
	// unknown levels lose to everything defined
	if !LevelPractice.Supersedes(Level("BLOG")) {
		t.Fatalf("defined levels outrank unknown ones")
	}
}

func TestNormalizeValue(t *testing.T) {
	t.Parallel()
	cases := []struct {
		a, b  string
		equal bool
	}{
		{"25%", "25%", true},
		{"25%", " 25% ", true},
		{"25%", "25 %", false}, // nbsp becomes a real separator, not erased
		{"PDV 25%", "pdv 25%", true},
		{"PDV  25%", "pdv 25%", true},
		{"25%", "0.25", false},
		{"ﬁve", "five", true}, // NFKC unfolds the ligature
	}
	for _, c := range cases {
		if got := EqualValues(c.a, c.b); got != c.equal {
			t.Fatalf("EqualValues(%q, %q) = %v, want %v (norm %q vs %q)",
				c.a, c.b, got, c.equal, NormalizeValue(c.a), NormalizeValue(c.b))
		}
	}
}
