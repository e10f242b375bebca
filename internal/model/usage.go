package model

import (
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// costPerToken is the flat blended rate used for budget accounting.
var costPerToken = decimal.RequireFromString("0.000002")

// TokenUsage is cumulative token and cost accounting.
type TokenUsage struct {
	InputTokens      int     `json:"inputTokens"`
	OutputTokens     int     `json:"outputTokens"`
	TotalTokens      int     `json:"totalTokens"`
	EstimatedCostUSD float64 `json:"estimatedCostUsd"`
}

// NewUsage builds a TokenUsage from raw counts and prices it.
func NewUsage(input, output int) TokenUsage {
	total := input + output
	return TokenUsage{
		InputTokens:      input,
		OutputTokens:     output,
		TotalTokens:      total,
		EstimatedCostUSD: EstimateCost(total),
	}
}

// EstimateCost prices a token count, rounded to 6 decimal places.
func EstimateCost(totalTokens int) float64 {
	f, _ := decimal.NewFromInt(int64(totalTokens)).Mul(costPerToken).Round(6).Float64()
	return f
}

// Add returns the sum of u and other. Cost is rounded after summing.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	cost := decimal.NewFromFloat(u.EstimatedCostUSD).
		Add(decimal.NewFromFloat(other.EstimatedCostUSD)).
		Round(6)
	f, _ := cost.Float64()
	return TokenUsage{
		InputTokens:      u.InputTokens + other.InputTokens,
		OutputTokens:     u.OutputTokens + other.OutputTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
		EstimatedCostUSD: f,
	}
}

// EstimateTokens approximates a token count as ceil(runes/4).
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// EstimateUsage builds a usage record from character counts when a provider
// does not report token usage.
func EstimateUsage(messages []ChatMessage, output string) TokenUsage {
	chars := 0
	for _, msg := range messages {
		chars += utf8.RuneCountInString(msg.Content)
	}
	return NewUsage((chars+3)/4, EstimateTokens(output))
}
