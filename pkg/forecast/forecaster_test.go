package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/ivana-meshed/mmm-app-sub006/pkg/config"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
)

func testSettings() *config.Settings {
	return &config.Settings{
		HorizonMonths:     3,
		ForecastTolerance: 0.10,
		TargetPolicy:      "mean_k",
		TargetMeanMonths:  3,
	}
}

// flatFrame builds a daily frame with constant spend per channel.
func flatFrame(start time.Time, days int, perDay map[string]float64) *models.TimeSeriesFrame {
	f := models.NewTimeSeriesFrame()
	for i := 0; i < days; i++ {
		f.Dates = append(f.Dates, start.AddDate(0, 0, i))
	}
	for name, v := range perDay {
		col := make([]float64, days)
		for i := range col {
			col[i] = v
		}
		f.Numeric[name] = col
	}
	return f
}

func TestForecastHitsMonthlyTargets(t *testing.T) {
	// Six complete months of flat $1000/day.
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	frame := flatFrame(start, 181, map[string]float64{"TV_COST": 1000}) // through 2023-06-30

	f := NewForecaster(testSettings(), logging.Nop())
	plan, err := f.Forecast(frame, []string{"TV_COST"}, []float64{31000})
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}

	if len(plan.Months) != 3 {
		t.Fatalf("expected 3 months, got %d", len(plan.Months))
	}
	if plan.Months[0].Label != "2023-07" {
		t.Errorf("horizon must start the month after history, got %s", plan.Months[0].Label)
	}

	// Month 1 follows the override; the rest follow the historical mean of
	// the last three complete months.
	if plan.Months[0].Target != 31000 {
		t.Errorf("override ignored, target = %g", plan.Months[0].Target)
	}
	wantBase := (30.0 + 31.0 + 30.0) * 1000 / 3 // Apr, May, Jun
	if math.Abs(plan.Months[1].Target-wantBase) > 1 {
		t.Errorf("history-derived target = %g, want about %g", plan.Months[1].Target, wantBase)
	}

	for _, m := range plan.Months {
		got := plan.MonthTotal(m)
		if math.Abs(got-m.Target) > 0.10*m.Target {
			t.Errorf("month %s total %g outside 10%% of target %g", m.Label, got, m.Target)
		}
	}
}

func TestForecastDailyPlanShape(t *testing.T) {
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	frame := flatFrame(start, 181, map[string]float64{"TV_COST": 1000, "SEA_COST": 500})

	plan, err := NewForecaster(testSettings(), logging.Nop()).Forecast(frame, []string{"TV_COST", "SEA_COST"}, nil)
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}

	// Jul + Aug + Sep 2023.
	if len(plan.Days) != 31+31+30 {
		t.Fatalf("expected 92 plan days, got %d", len(plan.Days))
	}
	if !plan.Days[0].Equal(time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("plan starts at %v", plan.Days[0])
	}
	for ch, col := range plan.Spend {
		if len(col) != len(plan.Days) {
			t.Fatalf("channel %s has %d values for %d days", ch, len(col), len(plan.Days))
		}
		for i, v := range col {
			if v < 0 {
				t.Fatalf("negative planned spend %g for %s on %v", v, ch, plan.Days[i])
			}
		}
	}
}

func TestForecastShortHistory(t *testing.T) {
	// Twenty days is below every seasonal threshold; the forecaster must
	// still produce a usable plan from flat continuation.
	start := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	frame := flatFrame(start, 20, map[string]float64{"TV_COST": 500})

	plan, err := NewForecaster(testSettings(), logging.Nop()).Forecast(frame, []string{"TV_COST"}, nil)
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}
	for _, m := range plan.Months {
		if m.Target <= 0 {
			t.Errorf("month %s has non-positive target %g", m.Label, m.Target)
		}
		if got := plan.MonthTotal(m); math.Abs(got-m.Target) > 0.10*m.Target {
			t.Errorf("month %s total %g outside 10%% of target %g", m.Label, got, m.Target)
		}
	}
}

func TestForecastLastFullPolicy(t *testing.T) {
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	frame := flatFrame(start, 181, map[string]float64{"TV_COST": 1000})

	settings := testSettings()
	settings.TargetPolicy = "last_full"
	plan, err := NewForecaster(settings, logging.Nop()).Forecast(frame, []string{"TV_COST"}, nil)
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}
	// Last complete month is June 2023: 30 days.
	if got := plan.Months[0].Target; got != 30000 {
		t.Errorf("last_full target = %g, want 30000", got)
	}
}

func TestForecastRejectsDegenerateInput(t *testing.T) {
	f := NewForecaster(testSettings(), logging.Nop())
	if _, err := f.Forecast(models.NewTimeSeriesFrame(), []string{"TV_COST"}, nil); err == nil {
		t.Error("expected error for empty history")
	}
	frame := flatFrame(time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC), 10, map[string]float64{"TV_COST": 1})
	if _, err := f.Forecast(frame, nil, nil); err == nil {
		t.Error("expected error for empty channel list")
	}
	if _, err := f.Forecast(frame, []string{"GHOST_COST"}, nil); err == nil {
		t.Error("expected error for channel missing from frame")
	}
}

func TestWeekHelpers(t *testing.T) {
	// 2023-07-05 is a Wednesday; its week starts Monday 2023-07-03.
	wed := time.Date(2023, time.July, 5, 0, 0, 0, 0, time.UTC)
	if got := weekStart(wed); !got.Equal(time.Date(2023, time.July, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("weekStart(wed) = %v", got)
	}
	if got := mondayIndex(wed); got != 2 {
		t.Errorf("mondayIndex(wed) = %d, want 2", got)
	}
	sun := time.Date(2023, time.July, 9, 0, 0, 0, 0, time.UTC)
	if got := mondayIndex(sun); got != 6 {
		t.Errorf("mondayIndex(sun) = %d, want 6", got)
	}
}
