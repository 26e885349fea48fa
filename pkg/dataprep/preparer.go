package dataprep

import (
	"path"
	"sort"
	"strings"
	"time"

	"github.com/ivana-meshed/mmm-app-sub006/pkg/config"
	apperrors "github.com/ivana-meshed/mmm-app-sub006/pkg/errors"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
)

const stage = "data_prep"

// dateLayouts are tried in order when coercing raw date cells.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02.01.2006",
	"01/02/2006",
}

// segmentColumns are the dimension columns checked for the country filter.
var segmentColumns = []string{"country", "country_code", "market", "region"}

// numericSuffixes force numeric treatment for spend-like columns even when
// their raw values are textual.
var numericSuffixes = []string{"_COST", "_SPEND", "_IMPRESSIONS", "_CLICKS", "_SESSIONS", "_VISITS"}

// Preparer cleans raw records into a gapless daily frame. Every step is
// idempotent given the same input.
type Preparer struct {
	cfg              *config.JobConfig
	log              logging.Logger
	minWindowRows    int
	allowShortWindow bool
}

// NewPreparer creates a data preparer for one job.
func NewPreparer(cfg *config.JobConfig, settings *config.Settings, log logging.Logger) *Preparer {
	return &Preparer{
		cfg:              cfg,
		log:              log,
		minWindowRows:    settings.MinWindowRows,
		allowShortWindow: settings.AllowShortWindow,
	}
}

// Prepare runs the full cleaning sequence: date normalization, segment
// filter, duplicate collapse, gap filling, numeric coercion, zero-variance
// pruning, derived features, window clamp.
func (p *Preparer) Prepare(records []map[string]any) (*models.TimeSeriesFrame, error) {
	if len(records) == 0 {
		return nil, apperrors.NewError(apperrors.KindInsufficientData, stage, "dataset has no rows")
	}

	dateCol, err := p.resolveDateColumn(records)
	if err != nil {
		return nil, err
	}

	records = p.filterSegment(records, dateCol)
	if len(records) == 0 {
		return nil, apperrors.NewError(apperrors.KindInsufficientData, stage,
			"no rows left after filtering segment %q", p.cfg.Country)
	}

	numericCols, textCols := p.classifyColumns(records, dateCol)

	frame, err := p.buildFrame(records, dateCol, numericCols, textCols)
	if err != nil {
		return nil, err
	}

	p.pruneZeroVariance(frame)

	if err := p.deriveColumns(frame); err != nil {
		return nil, err
	}

	frame, err = p.clampWindow(frame)
	if err != nil {
		return nil, err
	}

	if err := frame.Validate(); err != nil {
		return nil, apperrors.WrapError(apperrors.KindSchema, stage, err)
	}
	return frame, nil
}

// resolveDateColumn picks the configured date column, else searches for a
// single date-typed column.
func (p *Preparer) resolveDateColumn(records []map[string]any) (string, error) {
	if name := p.cfg.DateColumnName; name != "" {
		if _, ok := records[0][name]; !ok {
			return "", apperrors.NewError(apperrors.KindSchema, stage,
				"configured date column %q not present in dataset", name)
		}
		return name, nil
	}

	var candidates []string
	for name := range records[0] {
		total, parsed := 0, 0
		for _, row := range records {
			s, ok := row[name].(string)
			if !ok || strings.TrimSpace(s) == "" {
				continue
			}
			total++
			if _, ok := parseDate(s); ok {
				parsed++
			}
		}
		if total > 0 && parsed*5 >= total*4 { // >= 80% parseable as dates
			candidates = append(candidates, name)
		}
	}
	if len(candidates) != 1 {
		sort.Strings(candidates)
		return "", apperrors.NewError(apperrors.KindSchema, stage,
			"expected exactly one date column, found %d: %v", len(candidates), candidates)
	}
	return candidates[0], nil
}

func parseDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// filterSegment restricts rows to the configured country segment when a
// matching dimension column exists. No-op otherwise.
func (p *Preparer) filterSegment(records []map[string]any, dateCol string) []map[string]any {
	if p.cfg.Country == "" {
		return records
	}
	var dimCol string
	for name := range records[0] {
		if name == dateCol {
			continue
		}
		for _, seg := range segmentColumns {
			if strings.EqualFold(name, seg) {
				dimCol = name
				break
			}
		}
		if dimCol != "" {
			break
		}
	}
	if dimCol == "" {
		return records
	}

	filtered := records[:0:0]
	for _, row := range records {
		if s, ok := row[dimCol].(string); ok && strings.EqualFold(strings.TrimSpace(s), p.cfg.Country) {
			filtered = append(filtered, row)
		}
	}
	p.log.Info("filtered rows to segment",
		logging.String("column", dimCol),
		logging.String("segment", p.cfg.Country),
		logging.Int("rows", len(filtered)))
	return filtered
}

// classifyColumns splits non-date columns into numeric and text. A column
// is numeric when its name carries a spend-like suffix, it is the dependent
// variable, or at least half of its non-empty values have a numeric reading.
// Factor columns stay textual.
func (p *Preparer) classifyColumns(records []map[string]any, dateCol string) (numeric, text []string) {
	factors := make(map[string]bool, len(p.cfg.FactorColumns))
	for _, f := range p.cfg.FactorColumns {
		factors[f] = true
	}

	names := make([]string, 0, len(records[0]))
	for name := range records[0] {
		if name != dateCol {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if factors[name] {
			text = append(text, name)
			continue
		}
		if name == p.cfg.DepVar || hasNumericSuffix(name) {
			numeric = append(numeric, name)
			continue
		}
		total, parsed := 0, 0
		for _, row := range records {
			v, ok := row[name]
			if !ok || v == nil {
				continue
			}
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			total++
			if _, ok := ParseNumeric(v); ok {
				parsed++
			}
		}
		if total > 0 && parsed*2 >= total {
			numeric = append(numeric, name)
		} else {
			text = append(text, name)
		}
	}
	return numeric, text
}

func hasNumericSuffix(name string) bool {
	upper := strings.ToUpper(name)
	for _, suffix := range numericSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}

// buildFrame coerces dates and numerics, collapses duplicate dates (numeric
// summed, text first occurrence) and reindexes to a complete daily calendar
// with zero fill.
func (p *Preparer) buildFrame(records []map[string]any, dateCol string, numericCols, textCols []string) (*models.TimeSeriesFrame, error) {
	type dayAgg struct {
		numeric map[string]float64
		text    map[string]string
	}
	byDate := make(map[time.Time]*dayAgg)
	dropped := 0

	for _, row := range records {
		date, ok := parseDate(row[dateCol])
		if !ok {
			dropped++
			continue
		}
		agg := byDate[date]
		if agg == nil {
			agg = &dayAgg{numeric: make(map[string]float64), text: make(map[string]string)}
			byDate[date] = agg
		}
		for _, name := range numericCols {
			if v, ok := ParseNumeric(row[name]); ok {
				agg.numeric[name] += v
			}
		}
		for _, name := range textCols {
			if _, seen := agg.text[name]; seen {
				continue
			}
			if s, ok := row[name].(string); ok {
				agg.text[name] = s
			}
		}
	}

	if dropped > 0 {
		p.log.Warn("dropped rows with unparseable dates", logging.Int("rows", dropped))
	}
	if len(byDate) == 0 {
		return nil, apperrors.NewError(apperrors.KindSchema, stage, "no rows with valid dates")
	}

	var minDate, maxDate time.Time
	for d := range byDate {
		if minDate.IsZero() || d.Before(minDate) {
			minDate = d
		}
		if maxDate.IsZero() || d.After(maxDate) {
			maxDate = d
		}
	}

	frame := models.NewTimeSeriesFrame()
	for _, name := range numericCols {
		frame.Numeric[name] = []float64{}
	}
	for _, name := range textCols {
		frame.Text[name] = []string{}
	}
	filled := 0
	for d := minDate; !d.After(maxDate); d = d.AddDate(0, 0, 1) {
		frame.Dates = append(frame.Dates, d)
		agg := byDate[d]
		if agg == nil {
			filled++
		}
		for _, name := range numericCols {
			var v float64
			if agg != nil {
				v = agg.numeric[name]
			}
			frame.Numeric[name] = append(frame.Numeric[name], v)
		}
		for _, name := range textCols {
			var s string
			if agg != nil {
				s = agg.text[name]
			}
			frame.Text[name] = append(frame.Text[name], s)
		}
	}
	if filled > 0 {
		p.log.Info("gap-filled missing calendar days", logging.Int("days", filled))
	}
	return frame, nil
}

// pruneZeroVariance drops numeric columns with at most one distinct value.
func (p *Preparer) pruneZeroVariance(frame *models.TimeSeriesFrame) {
	var removed []string
	for _, name := range frame.NumericNames() {
		distinct := make(map[float64]struct{}, 2)
		for _, v := range frame.Numeric[name] {
			distinct[v] = struct{}{}
			if len(distinct) > 1 {
				break
			}
		}
		if len(distinct) <= 1 {
			delete(frame.Numeric, name)
			removed = append(removed, name)
		}
	}
	if len(removed) > 0 {
		p.log.Info("pruned zero-variance columns", logging.Strings("columns", removed))
	}
}

// deriveColumns materializes the configured derived feature columns:
// channel-family rollups (sum) and cross-terms (product).
func (p *Preparer) deriveColumns(frame *models.TimeSeriesFrame) error {
	for _, rule := range p.cfg.DerivedColumns {
		sources := resolveSources(frame, rule)
		if len(sources) == 0 {
			p.log.Warn("derived column has no matching sources", logging.String("column", rule.Name))
			continue
		}
		out := make([]float64, frame.Len())
		switch rule.Op {
		case "sum":
			for _, src := range sources {
				for i, v := range frame.Numeric[src] {
					out[i] += v
				}
			}
		case "product":
			for i := range out {
				out[i] = 1
			}
			for _, src := range sources {
				for i, v := range frame.Numeric[src] {
					out[i] *= v
				}
			}
		default:
			return apperrors.NewError(apperrors.KindConfig, stage,
				"derived column %s: unsupported op %q", rule.Name, rule.Op)
		}
		frame.Numeric[rule.Name] = out
	}
	return nil
}

func resolveSources(frame *models.TimeSeriesFrame, rule config.DerivedRule) []string {
	excluded := make(map[string]bool, len(rule.Exclude))
	for _, name := range rule.Exclude {
		excluded[name] = true
	}
	var sources []string
	for _, name := range frame.NumericNames() {
		if excluded[name] || name == rule.Name {
			continue
		}
		for _, pattern := range rule.Sources {
			if ok, _ := path.Match(pattern, name); ok || pattern == name {
				sources = append(sources, name)
				break
			}
		}
	}
	return sources
}

// clampWindow restricts the frame to [window_start, observed max]. Below
// the minimum row threshold the preparer either fails or, when configured,
// falls back to the full series.
func (p *Preparer) clampWindow(frame *models.TimeSeriesFrame) (*models.TimeSeriesFrame, error) {
	if frame.Len() == 0 {
		return nil, apperrors.NewError(apperrors.KindInsufficientData, stage, "empty frame before window clamp")
	}
	maxDate := frame.Dates[frame.Len()-1]
	clamped := frame.Window(p.cfg.WindowStart(), maxDate)
	if clamped.Len() >= p.minWindowRows {
		return clamped, nil
	}
	if p.allowShortWindow {
		p.log.Warn("window shorter than minimum, falling back to full series",
			logging.Int("window_rows", clamped.Len()),
			logging.Int("min_rows", p.minWindowRows),
			logging.Int("full_rows", frame.Len()))
		return frame, nil
	}
	return nil, apperrors.NewError(apperrors.KindInsufficientData, stage,
		"window [%s, %s] has %d rows, need at least %d",
		p.cfg.WindowStart().Format("2006-01-02"), maxDate.Format("2006-01-02"),
		clamped.Len(), p.minWindowRows)
}
