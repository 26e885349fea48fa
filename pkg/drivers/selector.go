// Package drivers resolves the model's variable sets against the prepared
// frame and generates per-channel hyperparameter ranges.
package drivers

import (
	"math"
	"strings"

	"github.com/ivana-meshed/mmm-app-sub006/pkg/config"
	apperrors "github.com/ivana-meshed/mmm-app-sub006/pkg/errors"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
)

const stage = "driver_selection"

// searchProxyCorrelationMax is the weak-correlation guard: the search-volume
// proxy joins the organic drivers only when its correlation with aggregate
// paid spend stays below this bound, to avoid double-counting paid effects.
const searchProxyCorrelationMax = 0.5

// Selector resolves configured driver lists against the columns actually
// present after cleaning.
type Selector struct {
	cfg *config.JobConfig
	log logging.Logger
}

// NewSelector creates a driver selector for one job.
func NewSelector(cfg *config.JobConfig, log logging.Logger) *Selector {
	return &Selector{cfg: cfg, log: log}
}

// Select intersects the configured paid/organic/context/factor lists with
// the frame, dropping zero-spend channels from spend and exposure lists
// together so the 1:1 pairing survives.
func (s *Selector) Select(frame *models.TimeSeriesFrame) (models.DriverSelection, error) {
	var sel models.DriverSelection

	var droppedMissing, droppedZero []string
	for i, spendCol := range s.cfg.PaidMediaSpendColumns {
		if !frame.HasNumeric(spendCol) {
			droppedMissing = append(droppedMissing, spendCol)
			continue
		}
		if frame.Sum(spendCol) == 0 {
			droppedZero = append(droppedZero, spendCol)
			continue
		}
		exposure := s.cfg.PaidMediaExposure[i]
		if !frame.HasNumeric(exposure) {
			exposure = spendCol
		}
		sel.PaidMediaSpends = append(sel.PaidMediaSpends, spendCol)
		sel.PaidMediaVars = append(sel.PaidMediaVars, exposure)
	}
	if len(droppedMissing) > 0 {
		s.log.Warn("paid channels missing from prepared frame", logging.Strings("channels", droppedMissing))
	}
	if len(droppedZero) > 0 {
		s.log.Info("dropped zero-spend paid channels", logging.Strings("channels", droppedZero))
	}
	if len(sel.PaidMediaSpends) == 0 {
		return sel, apperrors.NewError(apperrors.KindConfig, stage,
			"no paid media channels with historical spend remain")
	}

	for _, name := range s.cfg.OrganicColumns {
		if frame.HasNumeric(name) {
			sel.OrganicVars = append(sel.OrganicVars, name)
		}
	}
	s.maybeAddSearchProxy(frame, &sel)

	for _, name := range s.cfg.ContextColumns {
		if frame.HasNumeric(name) {
			sel.ContextVars = append(sel.ContextVars, name)
		}
	}
	for _, name := range s.cfg.FactorColumns {
		if _, ok := frame.Text[name]; ok {
			sel.FactorVars = append(sel.FactorVars, name)
		}
	}

	return sel, nil
}

// maybeAddSearchProxy appends a search-volume column to the organic drivers
// when it is present and only weakly correlated with total paid spend.
func (s *Selector) maybeAddSearchProxy(frame *models.TimeSeriesFrame, sel *models.DriverSelection) {
	var proxy string
	for _, name := range frame.NumericNames() {
		upper := strings.ToUpper(name)
		if upper == "SEARCH_VOLUME" || strings.HasSuffix(upper, "_SEARCH_VOLUME") {
			proxy = name
			break
		}
	}
	if proxy == "" {
		return
	}
	for _, existing := range sel.OrganicVars {
		if existing == proxy {
			return
		}
	}

	paidTotal := make([]float64, frame.Len())
	for _, spendCol := range sel.PaidMediaSpends {
		for i, v := range frame.Column(spendCol) {
			paidTotal[i] += v
		}
	}
	r := pearson(frame.Column(proxy), paidTotal)
	if math.Abs(r) < searchProxyCorrelationMax {
		sel.OrganicVars = append(sel.OrganicVars, proxy)
		s.log.Info("added search-volume proxy to organic drivers",
			logging.String("column", proxy), logging.Float64("correlation", r))
		return
	}
	s.log.Info("search-volume proxy too correlated with paid spend, skipped",
		logging.String("column", proxy), logging.Float64("correlation", r))
}

// pearson returns the Pearson correlation of two equal-length series, 0 for
// degenerate inputs.
func pearson(a, b []float64) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0
	}
	var sumA, sumB float64
	for i := 0; i < n; i++ {
		sumA += a[i]
		sumB += b[i]
	}
	meanA, meanB := sumA/float64(n), sumB/float64(n)
	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
