package curriculum

// ModelTier groups language models by context window size.
type ModelTier string

const (
	TierCloud    ModelTier = "cloud"
	TierMidRange ModelTier = "mid_range"
	TierOnDevice ModelTier = "on_device"
	TierTiny     ModelTier = "tiny"
)

// TokenBudgets splits a tier's total context budget across buffer layers.
type TokenBudgets struct {
	Immediate int
	Working   int
	Episodic  int
	Semantic  int
	Total     int
}

// DefaultContextWindow is assumed for models missing from KnownContextWindows.
const DefaultContextWindow = 32_000

// KnownContextWindows maps model names to their context window in tokens.
var KnownContextWindows = map[string]int{
	"claude-3-5-sonnet-20241022": 200_000,
	"claude-3-5-haiku-20241022":  200_000,
	"claude-3-opus-20240229":     200_000,
	"claude-3-haiku-20240307":    200_000,
	"gpt-4o":                     128_000,
	"gpt-4o-mini":                128_000,
	"gpt-4-turbo":                128_000,
	"gpt-4":                      8_192,
	"gpt-3.5-turbo":              16_385,
	"qwen2.5:32b":                32_000,
	"qwen2.5:14b":                32_000,
	"qwen2.5:7b":                 32_000,
	"llama3.1:70b":               128_000,
	"llama3.1:8b":                128_000,
	"mistral:7b":                 32_000,
	"ministral-3:14b":            256_000,
	"ministral-3:8b":             256_000,
	"ministral-3:3b":             256_000,

	"mlx-community/Qwen2.5-7B-Instruct-4bit":   32_000,
	"mlx-community/Llama-3.2-3B-Instruct-4bit": 8_000,
}

// TierForContextWindow picks the tier for a context window size.
func TierForContextWindow(window int) ModelTier {
	switch {
	case window >= 100_000:
		return TierCloud
	case window >= 32_000:
		return TierMidRange
	case window >= 8_000:
		return TierOnDevice
	default:
		return TierTiny
	}
}

// Budgets returns the token budgets for the tier.
func (t ModelTier) Budgets() TokenBudgets {
	switch t {
	case TierCloud:
		return TokenBudgets{Immediate: 4000, Working: 4000, Episodic: 2500, Semantic: 1500, Total: 12000}
	case TierMidRange:
		return TokenBudgets{Immediate: 3000, Working: 2500, Episodic: 1500, Semantic: 1000, Total: 8000}
	case TierOnDevice:
		return TokenBudgets{Immediate: 1500, Working: 1500, Episodic: 700, Semantic: 300, Total: 4000}
	default:
		return TokenBudgets{Immediate: 1000, Working: 600, Episodic: 300, Semantic: 100, Total: 2000}
	}
}

// TierForModel looks up a model's tier by name.
func TierForModel(model string) ModelTier {
	window, ok := KnownContextWindows[model]
	if !ok {
		window = DefaultContextWindow
	}
	return TierForContextWindow(window)
}

// BudgetForModel is the total context token budget for a model.
func BudgetForModel(model string) int {
	return TierForModel(model).Budgets().Total
}
