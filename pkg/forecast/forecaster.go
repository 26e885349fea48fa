// Package forecast builds a multi-month daily spend plan from channel
// history: weekly extrapolation, weekday disaggregation, then monthly
// rescaling against resolved budget targets.
package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/ivana-meshed/mmm-app-sub006/pkg/config"
	apperrors "github.com/ivana-meshed/mmm-app-sub006/pkg/errors"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
)

const stage = "spend_forecast"

// weekdayProfileDays is how much recent daily history feeds the per-channel
// weekday share profile (about 8 weeks).
const weekdayProfileDays = 56

// Forecaster produces the budget-constrained ForecastPlan.
type Forecaster struct {
	log           logging.Logger
	horizonMonths int
	tolerance     float64
	policy        string
	meanMonths    int
}

// NewForecaster creates a spend forecaster from the application settings.
func NewForecaster(settings *config.Settings, log logging.Logger) *Forecaster {
	return &Forecaster{
		log:           log,
		horizonMonths: settings.HorizonMonths,
		tolerance:     settings.ForecastTolerance,
		policy:        settings.TargetPolicy,
		meanMonths:    settings.TargetMeanMonths,
	}
}

// Forecast builds the daily plan for the next horizon months after the end
// of history. The monthly budget override, when provided, takes precedence
// over history-derived targets month by month.
func (f *Forecaster) Forecast(frame *models.TimeSeriesFrame, channels []string, override []float64) (*models.ForecastPlan, error) {
	if frame.Len() == 0 {
		return nil, apperrors.NewError(apperrors.KindInsufficientData, stage, "empty history")
	}
	if len(channels) == 0 {
		return nil, apperrors.NewError(apperrors.KindInsufficientData, stage, "no channels to forecast")
	}

	lastDate := frame.Dates[frame.Len()-1]
	months := f.buildMonths(lastDate)
	f.resolveTargets(frame, channels, months, override)

	plan := &models.ForecastPlan{
		Start:  months[0].Start,
		End:    months[len(months)-1].End,
		Spend:  make(map[string][]float64, len(channels)),
		Months: months,
	}
	for d := plan.Start; !d.After(plan.End); d = d.AddDate(0, 0, 1) {
		plan.Days = append(plan.Days, d)
	}

	for _, channel := range channels {
		daily, err := f.forecastChannel(frame, channel, plan)
		if err != nil {
			return nil, err
		}
		plan.Spend[channel] = daily
	}

	f.rescaleMonths(plan)
	f.checkTolerance(plan)
	return plan, nil
}

// buildMonths lays out the horizon as full calendar months starting the
// month after the last observed date.
func (f *Forecaster) buildMonths(lastDate time.Time) []models.MonthWindow {
	first := time.Date(lastDate.Year(), lastDate.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	months := make([]models.MonthWindow, 0, f.horizonMonths)
	for i := 0; i < f.horizonMonths; i++ {
		start := first.AddDate(0, i, 0)
		end := start.AddDate(0, 1, -1)
		months = append(months, models.MonthWindow{
			Label: start.Format("2006-01"),
			Start: start,
			End:   end,
			Days:  end.Day(),
		})
	}
	return months
}

// resolveTargets fills each month's budget target: explicit override per
// month when provided, otherwise a history-derived base (mean of the last k
// complete months, or the single last complete month under "last_full", or
// a 28-day daily mean x 30 when no full month exists).
func (f *Forecaster) resolveTargets(frame *models.TimeSeriesFrame, channels []string, months []models.MonthWindow, override []float64) {
	base := f.historicalMonthlyBase(frame, channels)
	for i := range months {
		if i < len(override) && override[i] > 0 {
			months[i].Target = override[i]
		} else {
			months[i].Target = base
		}
	}
}

func (f *Forecaster) historicalMonthlyBase(frame *models.TimeSeriesFrame, channels []string) float64 {
	type bucket struct {
		total float64
		days  int
	}
	byMonth := make(map[string]*bucket)
	var order []string
	for i, d := range frame.Dates {
		key := d.Format("2006-01")
		b := byMonth[key]
		if b == nil {
			b = &bucket{}
			byMonth[key] = b
			order = append(order, key)
		}
		b.days++
		for _, ch := range channels {
			if col := frame.Column(ch); col != nil {
				b.total += col[i]
			}
		}
	}

	var complete []float64
	for _, key := range order {
		t, _ := time.Parse("2006-01", key)
		if byMonth[key].days == t.AddDate(0, 1, -1).Day() {
			complete = append(complete, byMonth[key].total)
		}
	}

	if len(complete) == 0 {
		// No full month: 28-day daily mean scaled to a nominal month.
		n := frame.Len()
		lookback := 28
		if n < lookback {
			lookback = n
		}
		var total float64
		for i := n - lookback; i < n; i++ {
			for _, ch := range channels {
				if col := frame.Column(ch); col != nil {
					total += col[i]
				}
			}
		}
		base := total / float64(lookback) * 30
		f.log.Warn("no complete month in history, using 28-day daily mean",
			logging.Float64("monthly_target", base))
		return base
	}

	if f.policy == "last_full" {
		return complete[len(complete)-1]
	}
	k := f.meanMonths
	if k <= 0 || k > len(complete) {
		k = len(complete)
	}
	return meanOf(complete[len(complete)-k:])
}

// forecastChannel produces the channel's daily plan values: ISO-week totals
// forecast forward, then spread across weekdays with the channel's recent
// weekday profile.
func (f *Forecaster) forecastChannel(frame *models.TimeSeriesFrame, channel string, plan *models.ForecastPlan) ([]float64, error) {
	col := frame.Column(channel)
	if col == nil {
		return nil, apperrors.NewError(apperrors.KindSchema, stage,
			"channel %s missing from prepared frame", channel)
	}

	weekTotals, lastWeekStart := completeWeeklyTotals(frame, col)

	lastPlanWeek := weekStart(plan.End)
	maxH := int(lastPlanWeek.Sub(lastWeekStart).Hours() / (24 * 7))
	if maxH < 1 {
		return nil, apperrors.NewError(apperrors.KindInsufficientData, stage,
			"forecast window does not extend past history for %s", channel)
	}
	weekly := forecastWeekly(weekTotals, maxH)
	profile := weekdayProfile(frame, col)

	daily := make([]float64, len(plan.Days))
	for i, d := range plan.Days {
		h := int(weekStart(d).Sub(lastWeekStart).Hours() / (24 * 7))
		if h < 1 || h > len(weekly) {
			continue
		}
		daily[i] = weekly[h-1] * profile[mondayIndex(d)]
	}
	return daily, nil
}

// completeWeeklyTotals aggregates the channel into ISO-week totals, keeping
// only complete 7-day weeks, and returns the start of the latest week seen
// (complete or not) as the forecast origin.
func completeWeeklyTotals(frame *models.TimeSeriesFrame, col []float64) ([]float64, time.Time) {
	type agg struct {
		total float64
		days  int
	}
	byWeek := make(map[time.Time]*agg)
	var orderedStarts []time.Time
	for i, d := range frame.Dates {
		ws := weekStart(d)
		a := byWeek[ws]
		if a == nil {
			a = &agg{}
			byWeek[ws] = a
			orderedStarts = append(orderedStarts, ws)
		}
		a.total += col[i]
		a.days++
	}

	var totals []float64
	origin := orderedStarts[len(orderedStarts)-1]
	for _, ws := range orderedStarts {
		if byWeek[ws].days == 7 {
			totals = append(totals, byWeek[ws].total)
		}
	}
	return totals, origin
}

// weekdayProfile derives the 7-bucket weekday share profile from the most
// recent ~8 weeks, Monday first. Degenerate totals fall back to uniform.
func weekdayProfile(frame *models.TimeSeriesFrame, col []float64) [7]float64 {
	n := len(col)
	lookback := weekdayProfileDays
	if n < lookback {
		lookback = n
	}

	var sums [7]float64
	var total float64
	for i := n - lookback; i < n; i++ {
		idx := mondayIndex(frame.Dates[i])
		sums[idx] += col[i]
		total += col[i]
	}

	var profile [7]float64
	if total <= 0 {
		for i := range profile {
			profile[i] = 1.0 / 7
		}
		return profile
	}
	for i := range profile {
		profile[i] = sums[i] / total
	}
	return profile
}

// rescaleMonths scales each month's daily values so the channel-summed
// monthly total matches the resolved target. No-op when either side is
// non-positive.
func (f *Forecaster) rescaleMonths(plan *models.ForecastPlan) {
	for _, m := range plan.Months {
		pre := plan.MonthTotal(m)
		if pre <= 0 || m.Target <= 0 {
			continue
		}
		scale := m.Target / pre
		for ch := range plan.Spend {
			col := plan.Spend[ch]
			for i, d := range plan.Days {
				if !d.Before(m.Start) && !d.After(m.End) {
					col[i] *= scale
				}
			}
		}
	}
}

// checkTolerance verifies the plan invariant: every month's channel-summed
// total stays within the relative tolerance of its target. Breaches warn;
// the plan is a best-effort simulation input, not a contract.
func (f *Forecaster) checkTolerance(plan *models.ForecastPlan) {
	for _, m := range plan.Months {
		if m.Target <= 0 {
			continue
		}
		got := plan.MonthTotal(m)
		if math.Abs(got-m.Target) > f.tolerance*m.Target {
			f.log.Warn("forecast month total outside tolerance",
				logging.String("month", m.Label),
				logging.Float64("target", m.Target),
				logging.Float64("total", got),
				logging.String("tolerance", fmt.Sprintf("%.0f%%", f.tolerance*100)))
		}
	}
}

// weekStart returns the Monday of the ISO week containing d.
func weekStart(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// mondayIndex maps a date's weekday to 0..6 with Monday first.
func mondayIndex(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}
