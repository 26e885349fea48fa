package models

import "time"

// MonthWindow is one calendar month of the forecast horizon with its
// resolved budget target.
type MonthWindow struct {
	Label  string    `json:"month"` // YYYY-MM
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Days   int       `json:"days"`
	Target float64   `json:"budget"`
}

// ForecastPlan is a per-day, per-channel spend allocation over a fixed
// horizon. Spend slices are parallel to Days.
type ForecastPlan struct {
	Start  time.Time            `json:"start"`
	End    time.Time            `json:"end"`
	Days   []time.Time          `json:"days"`
	Spend  map[string][]float64 `json:"spend"`
	Months []MonthWindow        `json:"months"`
}

// Channels returns the plan's channel names in map order; callers sort
// when they need a stable order.
func (p *ForecastPlan) Channels() []string {
	out := make([]string, 0, len(p.Spend))
	for ch := range p.Spend {
		out = append(out, ch)
	}
	return out
}

// MonthChannelTotal sums one channel's daily spend inside a month window.
func (p *ForecastPlan) MonthChannelTotal(m MonthWindow, channel string) float64 {
	col := p.Spend[channel]
	var total float64
	for i, d := range p.Days {
		if !d.Before(m.Start) && !d.After(m.End) {
			total += col[i]
		}
	}
	return total
}

// MonthTotal sums all channels' spend inside a month window.
func (p *ForecastPlan) MonthTotal(m MonthWindow) float64 {
	var total float64
	for ch := range p.Spend {
		total += p.MonthChannelTotal(m, ch)
	}
	return total
}

// MonthlyProjection is the simulated outcome for one forecast month.
// Created once per month, never mutated after creation.
type MonthlyProjection struct {
	Month         string    `json:"month"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Days          int       `json:"days"`
	Budget        float64   `json:"budget"`
	Baseline      float64   `json:"baseline"`
	Incremental   float64   `json:"incremental"`
	ForecastTotal float64   `json:"forecast_total"`
}
