package dataprep

import (
	"reflect"
	"testing"
	"time"

	"github.com/ivana-meshed/mmm-app-sub006/pkg/config"
	apperrors "github.com/ivana-meshed/mmm-app-sub006/pkg/errors"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
)

func testConfig() *config.JobConfig {
	return &config.JobConfig{
		Country:               "de",
		DateInput:             "2023-01-01",
		DateColumnName:        "date",
		DepVar:                "TOTAL_REVENUE",
		PaidMediaSpendColumns: []string{"TV_COST"},
		PaidMediaExposure:     []string{"TV_IMPRESSIONS"},
	}
}

func testSettings() *config.Settings {
	return &config.Settings{MinWindowRows: 3, AllowShortWindow: false}
}

func row(date string, spend, revenue float64) map[string]any {
	return map[string]any{
		"date":          date,
		"TV_COST":       spend,
		"TOTAL_REVENUE": revenue,
	}
}

func TestPrepareGapFillAndDuplicateCollapse(t *testing.T) {
	records := []map[string]any{
		row("2023-03-01", 100, 1000),
		row("2023-03-01", 50, 500), // duplicate date, numeric summed
		row("2023-03-02", 200, 2000),
		// 2023-03-03 missing, must be zero-filled
		row("2023-03-04", 400, 4000),
	}

	frame, err := NewPreparer(testConfig(), testSettings(), logging.Nop()).Prepare(records)
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}

	if frame.Len() != 4 {
		t.Fatalf("expected 4 calendar days, got %d", frame.Len())
	}
	for i := 1; i < frame.Len(); i++ {
		if !frame.Dates[i].Equal(frame.Dates[i-1].AddDate(0, 0, 1)) {
			t.Fatalf("dates not contiguous at row %d", i)
		}
	}

	spend := frame.Column("TV_COST")
	if spend[0] != 150 {
		t.Errorf("duplicate date not summed: got %g, want 150", spend[0])
	}
	if spend[2] != 0 {
		t.Errorf("gap day not zero-filled: got %g", spend[2])
	}
}

func TestPrepareIdempotent(t *testing.T) {
	records := []map[string]any{
		row("2023-03-01", 100, 1000),
		row("2023-03-02", 200, 2000),
		row("2023-03-05", 500, 5000),
	}
	p := NewPreparer(testConfig(), testSettings(), logging.Nop())

	first, err := p.Prepare(records)
	if err != nil {
		t.Fatalf("first prepare failed: %v", err)
	}

	// Feed the cleaned output back through: an already clean series must
	// come out unchanged.
	again := frameToRecords(first)
	second, err := p.Prepare(again)
	if err != nil {
		t.Fatalf("second prepare failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("preparing already clean data changed the frame")
	}
}

func frameToRecords(f *models.TimeSeriesFrame) []map[string]any {
	out := make([]map[string]any, f.Len())
	for i, d := range f.Dates {
		r := map[string]any{"date": d.Format("2006-01-02")}
		for name, col := range f.Numeric {
			r[name] = col[i]
		}
		for name, col := range f.Text {
			r[name] = col[i]
		}
		out[i] = r
	}
	return out
}

func TestPrepareSegmentFilter(t *testing.T) {
	records := []map[string]any{
		{"date": "2023-03-01", "country": "de", "TV_COST": 100.0, "TOTAL_REVENUE": 1000.0},
		{"date": "2023-03-01", "country": "fr", "TV_COST": 999.0, "TOTAL_REVENUE": 9999.0},
		{"date": "2023-03-02", "country": "DE", "TV_COST": 200.0, "TOTAL_REVENUE": 2000.0},
		{"date": "2023-03-03", "country": "de", "TV_COST": 300.0, "TOTAL_REVENUE": 3000.0},
	}

	frame, err := NewPreparer(testConfig(), testSettings(), logging.Nop()).Prepare(records)
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if frame.Len() != 3 {
		t.Fatalf("expected 3 rows after segment filter, got %d", frame.Len())
	}
	if got := frame.Column("TV_COST")[0]; got != 100 {
		t.Errorf("foreign-segment row leaked into frame: got %g", got)
	}
}

func TestPrepareZeroVariancePruned(t *testing.T) {
	records := []map[string]any{
		{"date": "2023-03-01", "TV_COST": 100.0, "FLAT_COST": 5.0, "TOTAL_REVENUE": 1000.0},
		{"date": "2023-03-02", "TV_COST": 200.0, "FLAT_COST": 5.0, "TOTAL_REVENUE": 2000.0},
		{"date": "2023-03-03", "TV_COST": 300.0, "FLAT_COST": 5.0, "TOTAL_REVENUE": 3000.0},
	}

	frame, err := NewPreparer(testConfig(), testSettings(), logging.Nop()).Prepare(records)
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if frame.HasNumeric("FLAT_COST") {
		t.Error("constant column survived zero-variance pruning")
	}
	if !frame.HasNumeric("TV_COST") {
		t.Error("varying column was pruned")
	}
}

func TestPrepareDerivedColumns(t *testing.T) {
	cfg := testConfig()
	cfg.DerivedColumns = []config.DerivedRule{
		{Name: "SEA_TOTAL_COST", Op: "sum", Sources: []string{"SEA_*_COST"}},
	}
	records := []map[string]any{
		{"date": "2023-03-01", "TV_COST": 1.0, "SEA_BRAND_COST": 10.0, "SEA_GENERIC_COST": 20.0, "TOTAL_REVENUE": 100.0},
		{"date": "2023-03-02", "TV_COST": 2.0, "SEA_BRAND_COST": 11.0, "SEA_GENERIC_COST": 21.0, "TOTAL_REVENUE": 200.0},
		{"date": "2023-03-03", "TV_COST": 3.0, "SEA_BRAND_COST": 12.0, "SEA_GENERIC_COST": 22.0, "TOTAL_REVENUE": 300.0},
	}

	frame, err := NewPreparer(cfg, testSettings(), logging.Nop()).Prepare(records)
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	got := frame.Column("SEA_TOTAL_COST")
	want := []float64{30, 32, 34}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("derived sum column = %v, want %v", got, want)
	}
}

func TestPrepareShortWindow(t *testing.T) {
	records := []map[string]any{
		row("2023-02-01", 100, 1000),
		row("2023-02-02", 200, 2000),
		row("2023-02-03", 300, 3000),
		row("2023-02-04", 400, 4000),
	}

	// Window start after most of the data leaves too few rows.
	cfg := testConfig()
	cfg.DateInput = "2023-02-03"

	_, err := NewPreparer(cfg, testSettings(), logging.Nop()).Prepare(records)
	if err == nil {
		t.Fatal("expected insufficient-data error for short window")
	}
	if kind := apperrors.KindOf(err); kind != apperrors.KindInsufficientData {
		t.Errorf("expected insufficient_data kind, got %q", kind)
	}

	// With the fallback enabled the full series is used instead.
	settings := testSettings()
	settings.AllowShortWindow = true
	frame, err := NewPreparer(cfg, settings, logging.Nop()).Prepare(records)
	if err != nil {
		t.Fatalf("prepare with fallback failed: %v", err)
	}
	if frame.Len() != 4 {
		t.Errorf("expected full series fallback of 4 rows, got %d", frame.Len())
	}
}

func TestResolveDateColumn(t *testing.T) {
	p := NewPreparer(testConfig(), testSettings(), logging.Nop())
	if _, err := p.resolveDateColumn([]map[string]any{{"day": "2023-01-01"}}); err == nil {
		t.Error("expected error for missing configured date column")
	}

	// Unconfigured: exactly one date-typed column is required.
	auto := testConfig()
	auto.DateColumnName = ""
	p = NewPreparer(auto, testSettings(), logging.Nop())

	name, err := p.resolveDateColumn([]map[string]any{
		{"day": "2023-01-01", "TV_COST": "100"},
		{"day": "2023-01-02", "TV_COST": "200"},
	})
	if err != nil {
		t.Fatalf("auto-detect failed: %v", err)
	}
	if name != "day" {
		t.Errorf("expected column day, got %q", name)
	}

	_, err = p.resolveDateColumn([]map[string]any{
		{"day": "2023-01-01", "created": "2023-01-01"},
	})
	if err == nil {
		t.Error("expected error for ambiguous date columns")
	}
}

func TestPrepareEmptyAfterFilter(t *testing.T) {
	records := []map[string]any{
		{"date": "2023-03-01", "country": "fr", "TV_COST": 1.0, "TOTAL_REVENUE": 10.0},
	}
	_, err := NewPreparer(testConfig(), testSettings(), logging.Nop()).Prepare(records)
	if kind := apperrors.KindOf(err); kind != apperrors.KindInsufficientData {
		t.Errorf("expected insufficient_data, got %q (err=%v)", kind, err)
	}
}

func TestParseDateLayouts(t *testing.T) {
	for _, s := range []string{"2023-05-04", "04.05.2023", "2023-05-04 00:00:00"} {
		d, ok := parseDate(s)
		if !ok {
			t.Errorf("failed to parse %q", s)
			continue
		}
		want := time.Date(2023, time.May, 4, 0, 0, 0, 0, time.UTC)
		if !d.Equal(want) {
			t.Errorf("parsed %q to %v, want %v", s, d, want)
		}
	}
	if _, ok := parseDate("yesterday"); ok {
		t.Error("parsed nonsense date")
	}
}
