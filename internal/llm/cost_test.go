package llm

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestCostUSD(t *testing.T) {
	usage := Usage{InputTokens: 1_000_000, OutputTokens: 100_000, CachedInput: 400_000}
	got, ok := CostUSD(usage, "gpt-5-nano")
	if !ok {
		t.Fatal("expected pricing entry")
	}
	// 600k fresh at 0.05 + 400k cached at 0.005 + 100k out at 0.40.
	want := 0.6*0.05 + 0.4*0.005 + 0.1*0.40
	if !almostEqual(got, want) {
		t.Fatalf("expected %.6f, got %.6f", want, got)
	}
}

func TestCostUSDLongestPrefixWins(t *testing.T) {
	usage := Usage{InputTokens: 1_000_000}
	nano, _ := CostUSD(usage, "gpt-5-nano-2025-08-07")
	base, _ := CostUSD(usage, "gpt-5-2025-08-07")
	if !almostEqual(nano, 0.05) {
		t.Errorf("expected dated nano at nano rate, got %.6f", nano)
	}
	if !almostEqual(base, 1.25) {
		t.Errorf("expected dated gpt-5 at base rate, got %.6f", base)
	}
}

func TestCostUSDUnknownModel(t *testing.T) {
	if _, ok := CostUSD(Usage{InputTokens: 100}, "llama-3"); ok {
		t.Fatal("expected no pricing for unknown model")
	}
}

func TestCostUSDClipsNegativeFresh(t *testing.T) {
	usage := Usage{InputTokens: 100, CachedInput: 200}
	got, ok := CostUSD(usage, "gpt-5-nano")
	if !ok {
		t.Fatal("expected pricing entry")
	}
	want := 200 * 0.005 / 1e6
	if !almostEqual(got, want) {
		t.Fatalf("expected %.9f, got %.9f", want, got)
	}
}

func TestCountTokensNonEmpty(t *testing.T) {
	n := CountTokens("estimate the working hour from screen text")
	if n <= 0 {
		t.Fatalf("expected positive count, got %d", n)
	}
	if m := CountTokens(""); m != 0 {
		t.Fatalf("expected 0 for empty text, got %d", m)
	}
}

func TestCountTokensMonotonicOnRepeats(t *testing.T) {
	short := CountTokens("alpha beta")
	long := CountTokens("alpha beta alpha beta alpha beta alpha beta")
	if long <= short {
		t.Fatalf("expected longer text to count more tokens: short=%d long=%d", short, long)
	}
}
