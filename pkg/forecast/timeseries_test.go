package forecast

import (
	"math"
	"testing"
)

func TestForecastWeeklyFlatHistory(t *testing.T) {
	history := make([]float64, 30)
	for i := range history {
		history[i] = 7000
	}
	out := forecastWeekly(history, 13)
	if len(out) != 13 {
		t.Fatalf("expected 13 forecasts, got %d", len(out))
	}
	for h, v := range out {
		if math.Abs(v-7000) > 700 { // within 10% of the flat level
			t.Errorf("h=%d forecast %g drifted from flat 7000", h+1, v)
		}
	}
}

func TestForecastWeeklyShortHistory(t *testing.T) {
	// Below the smoothing threshold: flat continuation of the recent mean.
	out := forecastWeekly([]float64{100, 200, 300, 400, 500}, 4)
	for _, v := range out {
		if v != 350 { // mean of the last four points
			t.Errorf("short-history forecast %g, want 350", v)
		}
	}
}

func TestForecastWeeklyEmptyHistory(t *testing.T) {
	out := forecastWeekly(nil, 3)
	for _, v := range out {
		if v != 0 {
			t.Errorf("empty history must forecast zero, got %g", v)
		}
	}
}

func TestForecastWeeklyClampsNegative(t *testing.T) {
	// A steep downward trend would cross zero without the clamp.
	history := []float64{1000, 900, 800, 700, 600, 500, 400, 300, 200, 100}
	out := forecastWeekly(history, 30)
	for h, v := range out {
		if v < 0 {
			t.Errorf("h=%d forecast %g is negative", h+1, v)
		}
	}
}

func TestForecastWeeklyZeroHorizon(t *testing.T) {
	if out := forecastWeekly([]float64{1, 2, 3}, 0); out != nil {
		t.Errorf("expected nil for zero horizon, got %v", out)
	}
}
