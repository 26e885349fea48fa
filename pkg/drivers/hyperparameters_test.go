package drivers

import (
	"context"
	"fmt"
	"testing"

	apperrors "github.com/ivana-meshed/mmm-app-sub006/pkg/errors"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
)

func TestBuildGeometricCoverage(t *testing.T) {
	sel := models.DriverSelection{
		PaidMediaSpends: []string{"TV_COST", "SEA_COST"},
		OrganicVars:     []string{"NEWSLETTER_SESSIONS"},
	}
	b := NewHyperparameterBuilder("geometric", sel, logging.Nop())

	spec, err := b.Build(context.Background(), sel)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// 3 channels x 3 geometric params, no more, no less.
	if len(spec) != 9 {
		t.Fatalf("expected 9 keys, got %d", len(spec))
	}
	for _, channel := range []string{"TV_COST", "SEA_COST", "NEWSLETTER_SESSIONS"} {
		for _, param := range []string{"alphas", "gammas", "thetas"} {
			if _, ok := spec[channel+"_"+param]; !ok {
				t.Errorf("missing key %s_%s", channel, param)
			}
		}
	}
}

func TestBuildWeibullCoverage(t *testing.T) {
	sel := models.DriverSelection{PaidMediaSpends: []string{"TV_COST"}}
	b := NewHyperparameterBuilder("weibull", sel, logging.Nop())

	spec, err := b.Build(context.Background(), sel)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(spec) != 4 {
		t.Fatalf("expected 4 keys for weibull, got %d", len(spec))
	}
	if _, ok := spec["TV_COST_shapes"]; !ok {
		t.Error("missing weibull shapes key")
	}
}

func TestBuildChannelOverrides(t *testing.T) {
	sel := models.DriverSelection{
		PaidMediaSpends: []string{"TV_COST", "SEA_BRAND_COST"},
		OrganicVars:     []string{"NEWSLETTER_SESSIONS"},
	}
	b := NewHyperparameterBuilder("geometric", sel, logging.Nop())
	spec, err := b.Build(context.Background(), sel)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// TV carryover decays slowly.
	if got := spec["TV_COST_thetas"]; got != (models.Bounds{Lower: 0.3, Upper: 0.8}) {
		t.Errorf("TV thetas override missing, got %+v", got)
	}
	// Brand channels saturate later.
	if got := spec["SEA_BRAND_COST_gammas"]; got != (models.Bounds{Lower: 0.6, Upper: 1}) {
		t.Errorf("brand gammas override missing, got %+v", got)
	}
	// Organic drivers get both the gamma and alpha overrides.
	if got := spec["NEWSLETTER_SESSIONS_gammas"]; got != (models.Bounds{Lower: 0.6, Upper: 1}) {
		t.Errorf("organic gammas override missing, got %+v", got)
	}
	if got := spec["NEWSLETTER_SESSIONS_alphas"]; got != (models.Bounds{Lower: 0.5, Upper: 2}) {
		t.Errorf("organic alphas override missing, got %+v", got)
	}
	// Non-TV channel keeps the default theta range.
	if got := spec["SEA_BRAND_COST_thetas"]; got != (models.Bounds{Lower: 0, Upper: 0.3}) {
		t.Errorf("default thetas changed, got %+v", got)
	}
}

func TestBuildUnknownAdstock(t *testing.T) {
	sel := models.DriverSelection{PaidMediaSpends: []string{"TV_COST"}}
	b := NewHyperparameterBuilder("triangular", sel, logging.Nop())
	_, err := b.Build(context.Background(), sel)
	if kind := apperrors.KindOf(err); kind != apperrors.KindConfig {
		t.Errorf("expected config error, got %q (err=%v)", kind, err)
	}
}

func TestBuildNoChannels(t *testing.T) {
	b := NewHyperparameterBuilder("geometric", models.DriverSelection{}, logging.Nop())
	_, err := b.Build(context.Background(), models.DriverSelection{})
	if kind := apperrors.KindOf(err); kind != apperrors.KindHyperparameterCoverage {
		t.Errorf("expected coverage error, got %q (err=%v)", kind, err)
	}
}

func TestBuildParallelPath(t *testing.T) {
	// More channels than the parallel threshold exercises the worker pool.
	var channels []string
	for i := 0; i < 20; i++ {
		channels = append(channels, fmt.Sprintf("CH%02d_COST", i))
	}
	sel := models.DriverSelection{PaidMediaSpends: channels}
	b := NewHyperparameterBuilder("geometric", sel, logging.Nop())

	spec, err := b.Build(context.Background(), sel)
	if err != nil {
		t.Fatalf("parallel build failed: %v", err)
	}
	if len(spec) != 60 {
		t.Errorf("expected 60 keys, got %d", len(spec))
	}
}

func TestVerifyCoverageRejectsBadSpecs(t *testing.T) {
	channels := []string{"TV_COST"}
	params := []string{"alphas", "gammas", "thetas"}

	missing := models.HyperparameterSpec{
		"TV_COST_alphas": {Lower: 0.5, Upper: 3},
		"TV_COST_gammas": {Lower: 0.3, Upper: 1},
	}
	if err := verifyCoverage(missing, channels, params); err == nil {
		t.Error("expected error for missing key")
	}

	extra := models.HyperparameterSpec{
		"TV_COST_alphas": {Lower: 0.5, Upper: 3},
		"TV_COST_gammas": {Lower: 0.3, Upper: 1},
		"TV_COST_thetas": {Lower: 0, Upper: 0.3},
		"GHOST_alphas":   {Lower: 0.5, Upper: 3},
	}
	if err := verifyCoverage(extra, channels, params); err == nil {
		t.Error("expected error for extra key")
	}

	inverted := models.HyperparameterSpec{
		"TV_COST_alphas": {Lower: 3, Upper: 0.5},
		"TV_COST_gammas": {Lower: 0.3, Upper: 1},
		"TV_COST_thetas": {Lower: 0, Upper: 0.3},
	}
	if err := verifyCoverage(inverted, channels, params); err == nil {
		t.Error("expected error for inverted bounds")
	}

	outOfDomain := models.HyperparameterSpec{
		"TV_COST_alphas": {Lower: 0.5, Upper: 3},
		"TV_COST_gammas": {Lower: 0.3, Upper: 1.5},
		"TV_COST_thetas": {Lower: 0, Upper: 0.3},
	}
	if err := verifyCoverage(outOfDomain, channels, params); err == nil {
		t.Error("expected error for gamma above 1")
	}
}
