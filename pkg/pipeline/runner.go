// Package pipeline wires the training-job stages into one sequential run:
// config ingestion, data preparation, driver selection, model fit, model
// selection, spend forecast, allocation simulation, lifecycle tracking.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ivana-meshed/mmm-app-sub006/pkg/allocation"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/config"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/dataprep"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/drivers"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/engine"
	apperrors "github.com/ivana-meshed/mmm-app-sub006/pkg/errors"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/forecast"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/lifecycle"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/metadatastore"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/storage"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/training"
)

// Runner executes one training job end to end. No stage begins before its
// predecessor completes; the stages are data-dependent.
type Runner struct {
	settings *config.Settings
	objects  storage.ObjectStore
	store    metadatastore.JobStore
	fit      engine.FitEngine
	alloc    engine.Allocator
	retry    storage.RetryPolicy
	log      logging.Logger
}

// NewRunner creates a pipeline runner. The storage client, metadata store,
// and logger are constructed once at startup and threaded through here
// rather than living in package globals.
func NewRunner(settings *config.Settings, objects storage.ObjectStore, store metadatastore.JobStore, fit engine.FitEngine, alloc engine.Allocator, log logging.Logger) *Runner {
	return &Runner{
		settings: settings,
		objects:  objects,
		store:    store,
		fit:      fit,
		alloc:    alloc,
		retry: storage.RetryPolicy{
			MaxAttempts: settings.RetryMaxAttempts,
			Delay:       time.Duration(settings.RetryDelaySeconds) * time.Second,
		},
		log: log,
	}
}

// Run executes the full pipeline. Any fatal stage error goes through a
// single unwind path: failure artifact, FAILED lifecycle record, timing
// flush, log flush. The unwind is safe to re-enter; a second error cannot
// recurse into it.
func (r *Runner) Run(ctx context.Context) (err error) {
	runStart := time.Now()

	cfg, err := r.loadJobConfig(ctx)
	if err != nil {
		return err
	}

	jobID := jobIdentifier(cfg)
	log := r.log.With(logging.String("job_id", jobID))
	tracker := lifecycle.NewTracker(jobID, lifecycle.JobMeta{
		Country:    cfg.Country,
		Revision:   cfg.Revision,
		Iterations: cfg.ResolveIterations(),
		Trials:     cfg.ResolveTrials(),
	}, r.objects, r.store, r.retry, log)

	tracker.Start(ctx)

	currentStage := "load_config"
	defer func() {
		if err == nil {
			return
		}
		tracker.WriteFailureArtifact(ctx, err, currentStage, time.Since(runStart))
		tracker.Fail(ctx, err)
		tracker.FlushTimings(ctx)
		_ = log.Sync()
	}()

	timed := func(stage string, fn func() error) error {
		currentStage = stage
		start := time.Now()
		stageErr := fn()
		tracker.RecordTiming(stage, time.Since(start).Seconds())
		return stageErr
	}

	// Config & Data Loader: fetch the raw dataset.
	var records []map[string]any
	if err = timed("fetch_data", func() error {
		records, err = r.fetchDataset(ctx, cfg)
		return err
	}); err != nil {
		return err
	}

	// Data Preparer.
	var frame *models.TimeSeriesFrame
	if err = timed("data_prep", func() error {
		frame, err = dataprep.NewPreparer(cfg, r.settings, log).Prepare(records)
		return err
	}); err != nil {
		return err
	}
	log.Info("prepared frame",
		logging.Int("rows", frame.Len()),
		logging.Int("numeric_columns", len(frame.Numeric)))

	// Driver & Hyperparameter Selector.
	var sel models.DriverSelection
	var hyper models.HyperparameterSpec
	if err = timed("driver_selection", func() error {
		sel, err = drivers.NewSelector(cfg, log).Select(frame)
		if err != nil {
			return err
		}
		builder := drivers.NewHyperparameterBuilder(cfg.ResolveAdstockType(), sel, log)
		hyper, err = builder.Build(ctx, sel)
		return err
	}); err != nil {
		return err
	}
	log.Info("resolved drivers",
		logging.Strings("paid_media", sel.PaidMediaSpends),
		logging.Strings("organic", sel.OrganicVars),
		logging.Int("hyperparameters", len(hyper)))

	// Training Orchestrator. A failed fit is a hard stop.
	orchestrator := training.NewOrchestrator(r.fit, r.objects, r.retry, jobID, log)
	currentStage = "model_fit"
	trainSize := cfg.ResolveTrainSize()
	result, fitElapsed, fitErr := orchestrator.Train(ctx, &engine.FitRequest{
		Frame:           frame,
		DepVar:          cfg.DepVar,
		DepVarType:      cfg.DepVarType,
		AdstockType:     cfg.ResolveAdstockType(),
		Drivers:         sel,
		Hyperparameters: hyper,
		Iterations:      cfg.ResolveIterations(),
		Trials:          cfg.ResolveTrials(),
		TrainSize:       [2]float64{trainSize[0], trainSize[1]},
		CoreBudget:      r.coreBudget(),
	})
	tracker.RecordTiming("model_fit", fitElapsed.Seconds())
	if fitErr != nil {
		err = fitErr
		return err
	}

	// Model Selector.
	var selected *models.SelectedModel
	if err = timed("model_select", func() error {
		selected, err = training.NewSelector(log).Select(result)
		return err
	}); err != nil {
		return err
	}
	r.persistSelectedModel(ctx, jobID, selected, log)

	// Spend Forecaster.
	var plan *models.ForecastPlan
	if err = timed("spend_forecast", func() error {
		plan, err = forecast.NewForecaster(r.settings, log).Forecast(frame, sel.PaidMediaSpends, cfg.MonthlyBudgetOverride)
		return err
	}); err != nil {
		return err
	}

	// Allocation Simulator. Month failures are isolated inside Run.
	var projections []models.MonthlyProjection
	_ = timed("allocation", func() error {
		projections = allocation.NewSimulator(r.alloc, r.settings, log).Run(ctx, selected, plan)
		return nil
	})

	_ = timed("report", func() error {
		r.writeForecastReport(ctx, jobID, projections, log)
		return nil
	})

	tracker.FlushTimings(ctx)

	currentStage = "finalize"
	if err = tracker.Succeed(ctx); err != nil {
		err = apperrors.WrapError(apperrors.KindStorage, "finalize",
			fmt.Errorf("final status write failed: %w", err))
		return err
	}
	return nil
}

// loadJobConfig fetches and validates the typed job configuration.
func (r *Runner) loadJobConfig(ctx context.Context) (*config.JobConfig, error) {
	key := r.settings.JobConfigKey
	data, err := r.objects.Get(ctx, key)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.KindConfig, "load_config",
			fmt.Errorf("failed to fetch job config %s: %w", key, err))
	}
	cfg, err := config.ParseJobConfig(key, data)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.KindConfig, "load_config", err)
	}
	return cfg, nil
}

// fetchDataset fetches and decodes the raw time series.
func (r *Runner) fetchDataset(ctx context.Context, cfg *config.JobConfig) ([]map[string]any, error) {
	key := cfg.ResolveDatasetKey(r.settings.DatasetKey)
	data, err := r.objects.Get(ctx, key)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.KindDataSource, "fetch_data",
			fmt.Errorf("failed to fetch dataset %s: %w", key, err))
	}
	records, err := dataprep.ParseRecords(key, data)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.KindDataSource, "fetch_data", err)
	}
	return records, nil
}

func (r *Runner) coreBudget() int {
	if r.settings.CoreBudget > 0 {
		return r.settings.CoreBudget
	}
	return runtime.NumCPU()
}

// persistSelectedModel uploads the selection summary. Best effort.
func (r *Runner) persistSelectedModel(ctx context.Context, jobID string, selected *models.SelectedModel, log logging.Logger) {
	key := jobID + "/model/selected.json"
	err := r.retry.Do(ctx, func() error {
		return storage.PutJSON(ctx, r.objects, key, selected)
	})
	if err != nil {
		log.Warn("failed to persist selected model", logging.String("key", key), logging.Err(err))
	}
}

// jobIdentifier builds the storage-path prefix identifying the job.
func jobIdentifier(cfg *config.JobConfig) string {
	parts := []string{"jobs"}
	if cfg.Country != "" {
		parts = append(parts, strings.ToLower(cfg.Country))
	}
	if cfg.Revision != "" {
		parts = append(parts, cfg.Revision)
	}
	if cfg.Timestamp != "" {
		parts = append(parts, cfg.Timestamp)
	} else {
		parts = append(parts, time.Now().UTC().Format("20060102T150405")+"-"+uuid.NewString()[:8])
	}
	return strings.Join(parts, "/")
}
