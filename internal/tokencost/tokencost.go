package tokencost

import (
	"fmt"
	"strings"
)

// Pricing per 1K tokens, in USD.
type Pricing struct {
	Input  float64
	Cached float64
	Output float64
}

var pricing = map[string]Pricing{
	"gpt-4":         {Input: 0.03, Cached: 0.015, Output: 0.06},
	"gpt-4.1":       {Input: 0.002, Cached: 0.0005, Output: 0.008},
	"gpt-4.1-mini":  {Input: 0.0004, Cached: 0.0001, Output: 0.0016},
	"gpt-3.5-turbo": {Input: 0.002, Cached: 0.0005, Output: 0.008},
}

// CountTokens estimates the token count of text. Tokenizer vocabularies
// average roughly 4 characters per token for English prose, which is close
// enough for budgeting and cost reporting.
func CountTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	n := (len(text) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// Estimate holds a token count with per-phase cost estimates for one model.
type Estimate struct {
	Tokens     int     `json:"tokens"`
	InputCost  float64 `json:"input_cost"`
	CacheCost  float64 `json:"cache_cost"`
	OutputCost float64 `json:"output_cost"`
	TotalCost  float64 `json:"total_cost"`
}

// EstimateCost estimates input/output token cost for text under the given
// model's pricing.
func EstimateCost(text, model string) (*Estimate, error) {
	price, ok := pricing[model]
	if !ok {
		return nil, fmt.Errorf("model %q not supported for cost estimation", model)
	}

	tokens := CountTokens(text)
	per := float64(tokens) / 1000

	return &Estimate{
		Tokens:     tokens,
		InputCost:  per * price.Input,
		CacheCost:  per * price.Cached,
		OutputCost: per * price.Output,
		TotalCost:  per * (price.Input + price.Cached + price.Output),
	}, nil
}
