// Package usage derives token totals and cost estimates from agent usage
// counters.
package usage

import (
	"math"
	"strings"

	"github.com/metorial/minidash/internal/models"
)

// EstimateLabel describes how input and output tokens were derived.
const EstimateLabel = "Estimated: 25% input / 75% output split"

// Delta24h is the token growth across the samples, ordered oldest first.
// A counter reset makes the raw difference negative; that is reported as 0.
func Delta24h(samples []models.UsageSample) int64 {
	if len(samples) == 0 {
		return 0
	}
	delta := samples[len(samples)-1].Tokens - samples[0].Tokens
	if delta < 0 {
		return 0
	}
	return delta
}

// Split approximates input and output tokens from a cumulative total.
func Split(total int64) (input, output int64) {
	input = total * 25 / 100
	return input, total - input
}

// Rate is a price in USD per million tokens.
type Rate struct {
	Family string
	Input  float64
	Output float64
}

// Pricing is matched in order against the lower-cased model name, so more
// specific families must precede the shorter names they contain.
var Pricing = []Rate{
	{Family: "claude-opus-4", Input: 15, Output: 75},
	{Family: "opus", Input: 15, Output: 75},
	{Family: "claude-sonnet-4", Input: 3, Output: 15},
	{Family: "sonnet", Input: 3, Output: 15},
	{Family: "haiku", Input: 0.8, Output: 4},
	{Family: "gpt-4o-mini", Input: 0.15, Output: 0.6},
	{Family: "gpt-4o", Input: 2.5, Output: 10},
	{Family: "gpt-4.1", Input: 2, Output: 8},
	{Family: "o3", Input: 2, Output: 8},
	{Family: "gemini", Input: 1.25, Output: 10},
}

var DefaultRate = Rate{Family: "default", Input: 3, Output: 15}

// RateFor returns the first pricing family contained in model.
func RateFor(model string) Rate {
	name := strings.ToLower(model)
	for _, r := range Pricing {
		if strings.Contains(name, r.Family) {
			return r
		}
	}
	return DefaultRate
}

type Cost struct {
	Input    float64 `json:"input"`
	Output   float64 `json:"output"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

type Report struct {
	Input         int64  `json:"input"`
	Output        int64  `json:"output"`
	Total         int64  `json:"total"`
	Model         string `json:"model"`
	PricingModel  string `json:"pricingModel"`
	Estimated     bool   `json:"estimated"`
	EstimateLabel string `json:"estimateLabel"`
	Cost          Cost   `json:"cost"`
}

// Breakdown splits total and prices it for model.
func Breakdown(total int64, model string) Report {
	input, output := Split(total)
	rate := RateFor(model)

	inCost := float64(input) / 1e6 * rate.Input
	outCost := float64(output) / 1e6 * rate.Output

	return Report{
		Input:         input,
		Output:        output,
		Total:         total,
		Model:         model,
		PricingModel:  rate.Family,
		Estimated:     true,
		EstimateLabel: EstimateLabel,
		Cost: Cost{
			Input:    round4(inCost),
			Output:   round4(outCost),
			Total:    round4(inCost + outCost),
			Currency: "USD",
		},
	}
}

// Unavailable is the zeroed report served when the agent cannot be queried.
func Unavailable(reason string) Report {
	return Report{
		PricingModel:  DefaultRate.Family,
		Estimated:     true,
		EstimateLabel: reason,
		Cost:          Cost{Currency: "USD"},
	}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
