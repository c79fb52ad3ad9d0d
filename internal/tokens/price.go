package tokens

import "github.com/tjfontaine/polyglot-llm-wire/internal/domain"

// ModelPrice is the cost in USD per 1K tokens.
type ModelPrice struct {
	Prompt     float64
	Completion float64
}

// PriceTable maps exact model names to prices.
type PriceTable map[string]ModelPrice

// DefaultPrices covers the OpenAI chat models and the Claude 3 family.
var DefaultPrices = PriceTable{
	"gpt-4o":                 {Prompt: 0.005, Completion: 0.015},
	"gpt-4-turbo":            {Prompt: 0.01, Completion: 0.03},
	"gpt-4":                  {Prompt: 0.03, Completion: 0.06},
	"gpt-3.5-turbo":          {Prompt: 0.0005, Completion: 0.0015},
	"gpt-3.5-turbo-instruct": {Prompt: 0.0015, Completion: 0.002},

	"claude-3-opus-20240229":   {Prompt: 0.015, Completion: 0.075},
	"claude-3-sonnet-20240229": {Prompt: 0.003, Completion: 0.015},
	"claude-3-haiku-20240307":  {Prompt: 0.00025, Completion: 0.00125},
}

// Cost prices usage for model. Unknown models cost nothing.
func (t PriceTable) Cost(model string, usage domain.Usage) float64 {
	p, ok := t[model]
	if !ok {
		return 0
	}
	return (float64(usage.PromptTokens)*p.Prompt + float64(usage.CompletionTokens)*p.Completion) / 1000
}

// Price prices usage against DefaultPrices.
func Price(model string, usage domain.Usage) float64 {
	return DefaultPrices.Cost(model, usage)
}
