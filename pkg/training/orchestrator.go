// Package training wraps the external fitting engine with timing capture,
// structured failure reporting, and artifact persistence, then selects the
// best candidate from the fit results.
package training

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ivana-meshed/mmm-app-sub006/pkg/engine"
	apperrors "github.com/ivana-meshed/mmm-app-sub006/pkg/errors"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/storage"
)

const stage = "model_fit"

// Orchestrator drives one fit call. The fit itself is never retried: a fit
// is expensive and deterministic enough that a blind retry rarely helps.
// Only the surrounding artifact uploads go through the retry policy.
type Orchestrator struct {
	fit       engine.FitEngine
	objects   storage.ObjectStore
	retry     storage.RetryPolicy
	jobPrefix string
	log       logging.Logger
}

// NewOrchestrator creates a training orchestrator for one job.
func NewOrchestrator(fit engine.FitEngine, objects storage.ObjectStore, retry storage.RetryPolicy, jobPrefix string, log logging.Logger) *Orchestrator {
	return &Orchestrator{fit: fit, objects: objects, retry: retry, jobPrefix: jobPrefix, log: log}
}

// Train invokes the fitting engine, recording wall-clock duration
// regardless of outcome. On success the raw result is persisted verbatim
// for later re-analysis; persistence failures are logged but non-fatal.
func (o *Orchestrator) Train(ctx context.Context, req *engine.FitRequest) (*models.TrainingResult, time.Duration, error) {
	o.log.Info("starting model fit",
		logging.Int("iterations", req.Iterations),
		logging.Int("trials", req.Trials),
		logging.Int("core_budget", req.CoreBudget),
		logging.Int("channels", len(req.Drivers.PaidMediaSpends)))

	start := time.Now()
	result, err := o.fit.Fit(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		o.log.Error("model fit failed",
			logging.Err(err),
			logging.Duration("elapsed", elapsed))
		return nil, elapsed, apperrors.WrapError(apperrors.KindTrainingEngine, stage, err)
	}

	o.log.Info("model fit completed",
		logging.Duration("elapsed", elapsed),
		logging.Int("candidates", len(result.Candidates)))

	o.persistRawResult(ctx, result)
	return result, elapsed, nil
}

// persistRawResult uploads the raw fit output for postmortem re-analysis.
// Best effort: a storage failure here never fails the job.
func (o *Orchestrator) persistRawResult(ctx context.Context, result *models.TrainingResult) {
	data := []byte(result.Raw)
	if len(data) == 0 {
		marshaled, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			o.log.Warn("failed to marshal raw training result", logging.Err(err))
			return
		}
		data = marshaled
	}
	key := o.jobPrefix + "/model/raw_result.json"
	err := o.retry.Do(ctx, func() error {
		return o.objects.Put(ctx, key, data)
	})
	if err != nil {
		o.log.Warn("failed to persist raw training result", logging.String("key", key), logging.Err(err))
		return
	}
	o.log.Info("persisted raw training result", logging.String("key", key))
}
