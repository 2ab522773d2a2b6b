package llm

import "strings"

// modelPrice is USD per million tokens.
type modelPrice struct {
	input       float64
	cachedInput float64
	output      float64
}

// pricing covers the models this tool is normally run with. Longest
// prefix wins so dated snapshots ("gpt-5-nano-2025-08-07") resolve to
// their base model.
var pricing = map[string]modelPrice{
	"gpt-5-nano":  {input: 0.05, cachedInput: 0.005, output: 0.40},
	"gpt-5-mini":  {input: 0.25, cachedInput: 0.025, output: 2.00},
	"gpt-5":       {input: 1.25, cachedInput: 0.125, output: 10.00},
	"gpt-4o-mini": {input: 0.15, cachedInput: 0.075, output: 0.60},
	"gpt-4o":      {input: 2.50, cachedInput: 1.25, output: 10.00},
}

// CostUSD estimates the dollar cost of usage under model. Cached
// input tokens are billed at the cached rate. Returns false for
// models without a pricing entry.
func CostUSD(usage Usage, model string) (float64, bool) {
	var best string
	for name := range pricing {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return 0, false
	}
	p := pricing[best]
	fresh := usage.InputTokens - usage.CachedInput
	if fresh < 0 {
		fresh = 0
	}
	cost := float64(fresh)*p.input + float64(usage.CachedInput)*p.cachedInput + float64(usage.OutputTokens)*p.output
	return cost / 1e6, true
}
