package curriculum

import "testing"

func TestTierForContextWindow(t *testing.T) {
	tests := []struct {
		window int
		want   ModelTier
	}{
		{200_000, TierCloud},
		{100_000, TierCloud},
		{99_999, TierMidRange},
		{32_000, TierMidRange},
		{8_000, TierOnDevice},
		{7_999, TierTiny},
	}
	for _, tt := range tests {
		if got := TierForContextWindow(tt.window); got != tt.want {
			t.Errorf("TierForContextWindow(%d) = %q, want %q", tt.window, got, tt.want)
		}
	}
}

func TestBudgetForModel(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"claude-3-5-sonnet-20241022", 12000},
		{"qwen2.5:7b", 8000},
		{"gpt-4", 4000},
		{"unknown-model", 8000},
	}
	for _, tt := range tests {
		if got := BudgetForModel(tt.model); got != tt.want {
			t.Errorf("BudgetForModel(%q) = %d, want %d", tt.model, got, tt.want)
		}
	}

	for _, tier := range []ModelTier{TierCloud, TierMidRange, TierOnDevice, TierTiny} {
		b := tier.Budgets()
		if b.Immediate+b.Working+b.Episodic+b.Semantic != b.Total {
			t.Errorf("%s layers do not sum to total", tier)
		}
	}
}
