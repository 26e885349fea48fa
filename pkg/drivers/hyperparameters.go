package drivers

import (
	"context"
	"runtime"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/ivana-meshed/mmm-app-sub006/pkg/errors"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
)

const hyperStage = "hyperparameters"

// parallelChannelThreshold is the channel count above which per-channel
// bound construction fans out across a worker pool.
const parallelChannelThreshold = 8

// adstockParams lists the tunable parameter families per transform family.
var adstockParams = map[string][]string{
	"geometric": {"alphas", "gammas", "thetas"},
	"weibull":   {"alphas", "gammas", "shapes", "scales"},
}

// Generic defaults per parameter family. Named per-channel overrides below
// adjust decay and saturation for slow-burn and brand channels.
var defaultBounds = map[string]models.Bounds{
	"alphas": {Lower: 0.5, Upper: 3},
	"gammas": {Lower: 0.3, Upper: 1},
	"thetas": {Lower: 0, Upper: 0.3},
	"shapes": {Lower: 0.0001, Upper: 2},
	"scales": {Lower: 0, Upper: 0.1},
}

// HyperparameterBuilder emits one bounded range per tunable parameter per
// retained channel.
type HyperparameterBuilder struct {
	adstockType string
	organic     map[string]bool
	log         logging.Logger
}

// NewHyperparameterBuilder creates a builder for the given adstock family.
func NewHyperparameterBuilder(adstockType string, sel models.DriverSelection, log logging.Logger) *HyperparameterBuilder {
	organic := make(map[string]bool, len(sel.OrganicVars))
	for _, name := range sel.OrganicVars {
		organic[name] = true
	}
	return &HyperparameterBuilder{adstockType: adstockType, organic: organic, log: log}
}

// Build constructs the full spec for the selection's media channels and
// verifies exact coverage: one key per channel per parameter family, no
// missing, no extra.
func (b *HyperparameterBuilder) Build(ctx context.Context, sel models.DriverSelection) (models.HyperparameterSpec, error) {
	params, ok := adstockParams[b.adstockType]
	if !ok {
		return nil, apperrors.NewError(apperrors.KindConfig, hyperStage,
			"unknown adstock type %q", b.adstockType)
	}
	channels := sel.MediaChannels()
	if len(channels) == 0 {
		return nil, apperrors.NewError(apperrors.KindHyperparameterCoverage, hyperStage,
			"no channels to build hyperparameters for")
	}

	spec := make(models.HyperparameterSpec, len(channels)*len(params))
	if len(channels) > parallelChannelThreshold {
		if err := b.buildParallel(ctx, channels, params, spec); err != nil {
			return nil, err
		}
	} else {
		for _, channel := range channels {
			for param, bounds := range b.channelBounds(channel, params) {
				spec[channel+"_"+param] = bounds
			}
		}
	}

	if err := verifyCoverage(spec, channels, params); err != nil {
		return nil, err
	}
	return spec, nil
}

// buildParallel fans per-channel construction across a pool sized to the
// available cores. Results are independent per channel and order-insensitive.
func (b *HyperparameterBuilder) buildParallel(ctx context.Context, channels, params []string, spec models.HyperparameterSpec) error {
	workers := runtime.NumCPU()
	if workers > len(channels) {
		workers = len(channels)
	}

	work := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for channel := range work {
				bounds := b.channelBounds(channel, params)
				mu.Lock()
				for param, bound := range bounds {
					spec[channel+"_"+param] = bound
				}
				mu.Unlock()
			}
		}()
	}

	for _, channel := range channels {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return apperrors.WrapError(apperrors.KindHyperparameterCoverage, hyperStage, ctx.Err())
		case work <- channel:
		}
	}
	close(work)
	wg.Wait()
	return nil
}

// channelBounds returns the bounds for every parameter family of one
// channel, applying named overrides.
func (b *HyperparameterBuilder) channelBounds(channel string, params []string) map[string]models.Bounds {
	upper := strings.ToUpper(channel)
	out := make(map[string]models.Bounds, len(params))
	for _, param := range params {
		bounds := defaultBounds[param]
		switch {
		case param == "thetas" && strings.Contains(upper, "TV"):
			// TV carryover decays slowly.
			bounds = models.Bounds{Lower: 0.3, Upper: 0.8}
		case param == "gammas" && (strings.Contains(upper, "BRAND") || b.organic[channel]):
			// Brand and organic drivers saturate later.
			bounds = models.Bounds{Lower: 0.6, Upper: 1}
		case param == "alphas" && b.organic[channel]:
			bounds = models.Bounds{Lower: 0.5, Upper: 2}
		}
		out[param] = bounds
	}
	return out
}

// verifyCoverage checks the key set is exactly channels x params with valid
// per-family domains.
func verifyCoverage(spec models.HyperparameterSpec, channels, params []string) error {
	expected := make(map[string]string, len(channels)*len(params))
	for _, channel := range channels {
		for _, param := range params {
			expected[channel+"_"+param] = param
		}
	}

	var missing, extra []string
	for key := range expected {
		if _, ok := spec[key]; !ok {
			missing = append(missing, key)
		}
	}
	for key := range spec {
		if _, ok := expected[key]; !ok {
			extra = append(extra, key)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(missing)
		sort.Strings(extra)
		return apperrors.NewError(apperrors.KindHyperparameterCoverage, hyperStage,
			"hyperparameter key set mismatch: missing %v, extra %v", missing, extra)
	}

	for key, bounds := range spec {
		if !bounds.Valid() {
			return apperrors.NewError(apperrors.KindHyperparameterCoverage, hyperStage,
				"%s: lower %g > upper %g", key, bounds.Lower, bounds.Upper)
		}
		switch expected[key] {
		case "thetas", "gammas", "scales":
			if bounds.Lower < 0 || bounds.Upper > 1 {
				return apperrors.NewError(apperrors.KindHyperparameterCoverage, hyperStage,
					"%s: bounds [%g, %g] outside [0, 1]", key, bounds.Lower, bounds.Upper)
			}
		case "alphas", "shapes":
			if bounds.Lower < 0 {
				return apperrors.NewError(apperrors.KindHyperparameterCoverage, hyperStage,
					"%s: lower bound %g must be non-negative", key, bounds.Lower)
			}
		}
	}
	return nil
}
