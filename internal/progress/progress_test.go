package progress

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestStageBoundaries checks the fixed allocation of the bar.
func TestStageBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		stage    Range
		want     float64
	}{
		{"extract start", 0, Extract, 0},
		{"extract end", 1, Extract, 0.05},
		{"transcribe half", 0.5, Transcribe, 0.275},
		{"translate end", 1, Translate, 0.80},
		{"export end", 1, Export, 1},
	}
	for _, tt := range tests {
		if got := Stage(tt.fraction, tt.stage); !almostEqual(got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestMapClamps keeps out-of-range values inside the destination.
func TestMapClamps(t *testing.T) {
	if got := Map(-1, Unit, Transcribe); !almostEqual(got, Transcribe.From) {
		t.Fatalf("expected clamp to %v, got %v", Transcribe.From, got)
	}
	if got := Map(3, Unit, Transcribe); !almostEqual(got, Transcribe.To) {
		t.Fatalf("expected clamp to %v, got %v", Transcribe.To, got)
	}
	if got := Map(0.3, Range{From: 1, To: 1}, Export); got != Export.From {
		t.Fatalf("expected degenerate range to map to start, got %v", got)
	}
}

// TestRatio handles unknown totals.
func TestRatio(t *testing.T) {
	if got := Ratio(5, 0); got != 0 {
		t.Fatalf("Ratio with zero total = %v", got)
	}
	if got := Ratio(50, 100); !almostEqual(got, 0.5) {
		t.Fatalf("Ratio(50,100) = %v", got)
	}
	if got := Ratio(200, 100); got != 1 {
		t.Fatalf("Ratio overflow = %v", got)
	}
}
