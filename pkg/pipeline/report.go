package pipeline

import (
	"context"
	"strconv"

	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/storage"
)

// writeForecastReport uploads the per-month forecast table as CSV and JSON.
// Report writes are best effort: a storage failure is logged, not fatal.
func (r *Runner) writeForecastReport(ctx context.Context, jobID string, projections []models.MonthlyProjection, log logging.Logger) {
	rows := make([][]string, 0, len(projections))
	for _, p := range projections {
		rows = append(rows, []string{
			p.Month,
			p.Start.Format("2006-01-02"),
			p.End.Format("2006-01-02"),
			strconv.Itoa(p.Days),
			formatAmount(p.Budget),
			formatAmount(p.Baseline),
			formatAmount(p.Incremental),
			formatAmount(p.ForecastTotal),
		})
	}
	header := []string{"month", "start", "end", "days", "budget", "baseline", "incremental", "forecast_total"}
	data, err := storage.EncodeCSV(header, rows)
	if err != nil {
		log.Warn("failed to encode forecast report", logging.Err(err))
		return
	}

	csvKey := jobID + "/report/forecast.csv"
	if err := r.retry.Do(ctx, func() error { return r.objects.Put(ctx, csvKey, data) }); err != nil {
		log.Warn("failed to upload forecast report", logging.String("key", csvKey), logging.Err(err))
	}
	jsonKey := jobID + "/report/forecast.json"
	if err := r.retry.Do(ctx, func() error { return storage.PutJSON(ctx, r.objects, jsonKey, projections) }); err != nil {
		log.Warn("failed to upload forecast report json", logging.String("key", jsonKey), logging.Err(err))
	}
	log.Info("wrote forecast report", logging.String("key", csvKey), logging.Int("months", len(rows)))
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
