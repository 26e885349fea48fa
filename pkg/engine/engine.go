// Package engine declares the external fitting and allocation engines the
// pipeline consumes. Both are synchronous, long-running black boxes; the
// pipeline never looks inside them.
package engine

import (
	"context"
	"time"

	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
)

// FitRequest carries everything the fitting engine needs for one run.
type FitRequest struct {
	Frame           *models.TimeSeriesFrame
	DepVar          string
	DepVarType      string
	AdstockType     string
	Drivers         models.DriverSelection
	Hyperparameters models.HyperparameterSpec
	Iterations      int
	Trials          int
	TrainSize       [2]float64
	CoreBudget      int
}

// FitEngine is the statistical model-fitting engine. Deterministic given a
// seed; not retried by the orchestrator.
type FitEngine interface {
	Fit(ctx context.Context, req *FitRequest) (*models.TrainingResult, error)
}

// AllocationRequest constrains one budget-allocation run. LowerBounds and
// UpperBounds are per-channel budget-share bounds, parallel to Channels.
type AllocationRequest struct {
	Model       *models.SelectedModel
	Start       time.Time
	End         time.Time
	TotalBudget float64 // 0 means unconstrained
	Scenario    string
	Channels    []string
	LowerBounds []float64
	UpperBounds []float64
}

// AllocationResult is the optimized spend split and predicted response.
type AllocationResult struct {
	PerChannelSpend    map[string]float64
	PerChannelResponse map[string]float64
	TotalSpend         float64
	TotalResponse      float64
}

// Allocator is the external budget-allocation engine.
type Allocator interface {
	Allocate(ctx context.Context, req *AllocationRequest) (*AllocationResult, error)
}
