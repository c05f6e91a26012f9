package weather

import "testing"

// TestCategorize pins the WMO code mapping the trained model's one-hot
// columns were built against.
func TestCategorize(t *testing.T) {
	cases := []struct {
		code int
		want Condition
	}{
		{0, ConditionClear},
		{1, ConditionCloudy},
		{2, ConditionCloudy},
		{3, ConditionCloudy},
		{51, ConditionRainy},
		{61, ConditionRainy},
		{67, ConditionRainy},
		{80, ConditionRainy},
		{84, ConditionRainy},
		{71, ConditionSnowy},
		{77, ConditionSnowy},
		{85, ConditionSnowy},
		{86, ConditionSnowy},
		{95, ConditionStormy},
		{99, ConditionStormy},
		// Edge codes outside the mapped ranges fall back to cloudy.
		{45, ConditionCloudy},
		{70, ConditionCloudy},
		{100, ConditionCloudy},
		{-1, ConditionCloudy},
	}

	for _, tc := range cases {
		if got := Categorize(tc.code); got != tc.want {
			t.Errorf("Categorize(%d) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestIconForCoversAllConditions(t *testing.T) {
	for _, c := range []Condition{
		ConditionClear, ConditionCloudy, ConditionRainy, ConditionSnowy, ConditionStormy,
	} {
		if IconFor(c) == "" {
			t.Errorf("IconFor(%q) returned empty glyph", c)
		}
	}
}
