package usage

import (
	"testing"

	"github.com/metorial/minidash/internal/models"
)

func TestDelta24h(t *testing.T) {
	tests := []struct {
		name    string
		samples []models.UsageSample
		want    int64
	}{
		{"empty", nil, 0},
		{"single", []models.UsageSample{{Tokens: 500}}, 0},
		{"growth", []models.UsageSample{{Tokens: 1000}, {Tokens: 1800}, {Tokens: 4000}}, 3000},
		{"counter reset", []models.UsageSample{{Tokens: 9000}, {Tokens: 100}, {Tokens: 400}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Delta24h(tt.samples); got != tt.want {
				t.Errorf("Delta24h = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	in, out := Split(1000)
	if in != 250 || out != 750 {
		t.Errorf("Split(1000) = %d/%d, want 250/750", in, out)
	}

	in, out = Split(7)
	if in+out != 7 {
		t.Errorf("Split must preserve the total, got %d+%d", in, out)
	}
	if in != 1 {
		t.Errorf("Expected floor of 25%%, got %d", in)
	}
}

func TestRateForPrefersSpecificFamilies(t *testing.T) {
	tests := map[string]string{
		"claude-opus-4-1":         "claude-opus-4",
		"anthropic/claude-3-opus": "opus",
		"claude-sonnet-4-5":       "claude-sonnet-4",
		"Claude-3.5-Sonnet":       "sonnet",
		"claude-3-5-haiku":        "haiku",
		"gpt-4o-mini-2024":        "gpt-4o-mini",
		"openai/gpt-4o":           "gpt-4o",
		"gpt-4.1":                 "gpt-4.1",
		"o3-pro":                  "o3",
		"gemini-2.5-pro":          "gemini",
		"llama-3":                 "default",
		"":                        "default",
	}

	for model, family := range tests {
		if got := RateFor(model).Family; got != family {
			t.Errorf("RateFor(%q) = %s, want %s", model, got, family)
		}
	}
}

func TestBreakdown(t *testing.T) {
	report := Breakdown(1_000_000, "claude-sonnet-4-5")

	if report.Input != 250_000 || report.Output != 750_000 || report.Total != 1_000_000 {
		t.Errorf("Unexpected token split: %+v", report)
	}
	if report.PricingModel != "claude-sonnet-4" {
		t.Errorf("Expected claude-sonnet-4 pricing, got %s", report.PricingModel)
	}
	if !report.Estimated || report.EstimateLabel != EstimateLabel {
		t.Error("Breakdown must be labelled as an estimate")
	}

	// 0.25M * $3 + 0.75M * $15
	if report.Cost.Input != 0.75 || report.Cost.Output != 11.25 || report.Cost.Total != 12 {
		t.Errorf("Unexpected cost: %+v", report.Cost)
	}
	if report.Cost.Currency != "USD" {
		t.Errorf("Expected USD, got %s", report.Cost.Currency)
	}
}

func TestBreakdownRoundsToFourDecimals(t *testing.T) {
	report := Breakdown(1234, "gpt-4o-mini")

	// input 308 * 0.15/1e6 = 0.0000462, output 926 * 0.6/1e6 = 0.0005556
	if report.Cost.Input != 0 {
		t.Errorf("Expected input cost 0, got %v", report.Cost.Input)
	}
	if report.Cost.Output != 0.0006 {
		t.Errorf("Expected output cost 0.0006, got %v", report.Cost.Output)
	}
	if report.Cost.Total != 0.0006 {
		t.Errorf("Expected total cost 0.0006, got %v", report.Cost.Total)
	}
}

func TestUnavailable(t *testing.T) {
	report := Unavailable("OpenClaw not installed")
	if report.Total != 0 || report.Cost.Total != 0 {
		t.Errorf("Expected zeroed report, got %+v", report)
	}
	if report.EstimateLabel != "OpenClaw not installed" {
		t.Errorf("Unexpected label %q", report.EstimateLabel)
	}
}
