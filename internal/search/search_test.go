package search

import (
	"math"
	"testing"

	"github.com/Iron-Ham/heist/internal/errors"
	"pgregory.net/rapid"
)

func TestExponential(t *testing.T) {
	tests := []struct {
		name  string
		start int
		limit int
		want  int
	}{
		{"threshold 37", 1, 37, 37},
		{"start is the answer", 5, 5, 5},
		{"start infeasible", 4, 3, 0},
		{"power of two", 1, 64, 64},
		{"one below power of two", 1, 63, 63},
		{"large start", 100, 1000, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Exponential(tt.start, func(n int) bool { return n <= tt.limit })
			if err != nil {
				t.Fatalf("Exponential() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Exponential() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExponential_InvalidStart(t *testing.T) {
	_, err := Exponential(0, func(int) bool { return true })
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Exponential(0) error = %v, want ErrInvalidInput", err)
	}
}

func TestExponential_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.IntRange(1, 1000).Draw(t, "start")
		limit := rapid.IntRange(0, 100_000).Draw(t, "limit")

		got, err := Exponential(start, func(n int) bool { return n <= limit })
		if err != nil {
			t.Fatal(err)
		}
		want := limit
		if start > limit {
			want = 0
		}
		if got != want {
			t.Fatalf("Exponential(%d) with limit %d = %d, want %d", start, limit, got, want)
		}
	})
}

// logAnalyzer mimics a growth curve: threads = ln(mult) / ln(rate).
func logAnalyzer(rate float64) GrowthAnalyzer {
	return func(mult float64, cores int) float64 {
		return math.Log(mult) / (math.Log(rate) * float64(cores))
	}
}

func TestGrowPercent(t *testing.T) {
	const rate = 1.01
	tests := []struct {
		name    string
		money   float64
		threads int
		cores   int
	}{
		{"ten threads", 1_000_000, 10, 1},
		{"hundred threads", 50_000, 100, 1},
		{"extra cores", 1_000_000, 30, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GrowPercent(logAnalyzer(rate), tt.money, tt.threads, tt.cores)
			if err != nil {
				t.Fatalf("GrowPercent() error = %v", err)
			}
			want := math.Pow(rate, float64(tt.threads*tt.cores))
			// Converged to the whole dollar.
			if diff := math.Abs(got*tt.money - want*tt.money); diff > 5 {
				t.Errorf("GrowPercent() = %v, want ~%v (off by $%.2f)", got, want, diff)
			}
		})
	}
}

func TestGrowPercent_InvalidInput(t *testing.T) {
	analyze := logAnalyzer(1.01)
	if _, err := GrowPercent(analyze, 100, 0, 1); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("zero threads error = %v", err)
	}
	if _, err := GrowPercent(analyze, 0.5, 1, 1); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("no money error = %v", err)
	}
}
