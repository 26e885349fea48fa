// Package allocation simulates budget allocation month by month against the
// external allocation engine, holding each month close to the forecast
// plan's channel mix through tight share bands.
package allocation

import (
	"context"
	"sort"

	"github.com/ivana-meshed/mmm-app-sub006/pkg/config"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/engine"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
)

// Simulator runs one allocation per forecast month. A failed month records
// zero incremental response and never aborts the remaining months.
type Simulator struct {
	alloc         engine.Allocator
	bandTolerance float64
	log           logging.Logger
}

// NewSimulator creates an allocation simulator.
func NewSimulator(alloc engine.Allocator, settings *config.Settings, log logging.Logger) *Simulator {
	return &Simulator{
		alloc:         alloc,
		bandTolerance: settings.ShareBandTolerance,
		log:           log,
	}
}

// Run produces one MonthlyProjection per forecast month, in chronological
// order. The months are independent; a single failure is isolated.
func (s *Simulator) Run(ctx context.Context, model *models.SelectedModel, plan *models.ForecastPlan) []models.MonthlyProjection {
	channels := plan.Channels()
	sort.Strings(channels)
	baselineDaily := model.BaselineDaily(channels)

	projections := make([]models.MonthlyProjection, 0, len(plan.Months))
	for _, m := range plan.Months {
		incremental := s.simulateMonth(ctx, model, plan, m, channels)
		baseline := baselineDaily * float64(m.Days)
		projections = append(projections, models.MonthlyProjection{
			Month:         m.Label,
			Start:         m.Start,
			End:           m.End,
			Days:          m.Days,
			Budget:        plan.MonthTotal(m),
			Baseline:      baseline,
			Incremental:   incremental,
			ForecastTotal: baseline + incremental,
		})
	}
	return projections
}

// simulateMonth constrains the engine to approximately reproduce the plan's
// mix (share +/- tolerance) while optimizing response within the month's
// total budget. Engine failure yields zero incremental response.
func (s *Simulator) simulateMonth(ctx context.Context, model *models.SelectedModel, plan *models.ForecastPlan, m models.MonthWindow, channels []string) float64 {
	monthSum := plan.MonthTotal(m)
	if monthSum <= 0 {
		s.log.Warn("skipping allocation for month with no planned spend",
			logging.String("month", m.Label))
		return 0
	}

	lower := make([]float64, len(channels))
	upper := make([]float64, len(channels))
	for i, ch := range channels {
		share := plan.MonthChannelTotal(m, ch) / monthSum
		lower[i] = share - s.bandTolerance
		if lower[i] < 0 {
			lower[i] = 0
		}
		upper[i] = share + s.bandTolerance
		if upper[i] > 1 {
			upper[i] = 1
		}
	}

	result, err := s.alloc.Allocate(ctx, &engine.AllocationRequest{
		Model:       model,
		Start:       m.Start,
		End:         m.End,
		TotalBudget: monthSum,
		Scenario:    "max_response",
		Channels:    channels,
		LowerBounds: lower,
		UpperBounds: upper,
	})
	if err != nil {
		s.log.Warn("allocation engine failed for month, recording zero response",
			logging.String("month", m.Label),
			logging.Err(err))
		return 0
	}

	s.log.Info("allocated month",
		logging.String("month", m.Label),
		logging.Float64("budget", monthSum),
		logging.Float64("response", result.TotalResponse))
	return result.TotalResponse
}
