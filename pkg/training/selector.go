package training

import (
	"sort"

	apperrors "github.com/ivana-meshed/mmm-app-sub006/pkg/errors"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
)

const selectStage = "model_select"

// reportingLimit caps the secondary candidate pool kept for reporting.
const reportingLimit = 100

// CandidateSource extracts a best-first candidate ordering from a training
// result. One implementation per known result shape; the right one is
// probed once per result instead of scattering presence checks.
type CandidateSource interface {
	Name() string
	Ranked(result *models.TrainingResult) []models.Candidate
}

// rankedSource trusts the engine's own ranking when every ranked ID
// resolves to a candidate.
type rankedSource struct{}

func (rankedSource) Name() string { return "engine_ranking" }

func (rankedSource) Ranked(result *models.TrainingResult) []models.Candidate {
	byID := make(map[string]models.Candidate, len(result.Candidates))
	for _, c := range result.Candidates {
		byID[c.ID] = c
	}
	out := make([]models.Candidate, 0, len(result.RankedIDs))
	for _, id := range result.RankedIDs {
		out = append(out, byID[id])
	}
	return out
}

// metricTableSource is the fallback: scan the per-candidate metric table and
// order by normalized training error ascending, then decomposition-balance
// error ascending, then candidate ID for a stable tie-break.
type metricTableSource struct{}

func (metricTableSource) Name() string { return "metric_table" }

func (metricTableSource) Ranked(result *models.TrainingResult) []models.Candidate {
	out := append([]models.Candidate(nil), result.Candidates...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].NRMSE != out[j].NRMSE {
			return out[i].NRMSE < out[j].NRMSE
		}
		if out[i].DecompRSSD != out[j].DecompRSSD {
			return out[i].DecompRSSD < out[j].DecompRSSD
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// chooseSource probes the result shape once: the engine ranking is used only
// when present and fully resolvable.
func chooseSource(result *models.TrainingResult) CandidateSource {
	if len(result.RankedIDs) == 0 {
		return metricTableSource{}
	}
	byID := make(map[string]bool, len(result.Candidates))
	for _, c := range result.Candidates {
		byID[c.ID] = true
	}
	for _, id := range result.RankedIDs {
		if !byID[id] {
			return metricTableSource{}
		}
	}
	return rankedSource{}
}

// Selector extracts the best, Pareto-optimal, and reporting candidates from
// a training result.
type Selector struct {
	log logging.Logger
}

// NewSelector creates a model selector.
func NewSelector(log logging.Logger) *Selector {
	return &Selector{log: log}
}

// Select picks the first-ranked candidate as best, partitions the pool into
// Pareto and reporting candidates, and fails with a no-candidate error only
// when the pool is empty after all fallbacks.
func (s *Selector) Select(result *models.TrainingResult) (*models.SelectedModel, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, apperrors.NewError(apperrors.KindNoCandidate, selectStage,
			"training result has no candidates")
	}

	source := chooseSource(result)
	ranked := source.Ranked(result)
	if len(ranked) == 0 {
		// Ranking list present but empty; fall back to the metric table.
		ranked = metricTableSource{}.Ranked(result)
	}
	if len(ranked) == 0 {
		return nil, apperrors.NewError(apperrors.KindNoCandidate, selectStage,
			"no candidates after ranking fallbacks")
	}

	var pareto []models.Candidate
	for _, c := range ranked {
		if c.Pareto {
			pareto = append(pareto, c)
		}
	}
	pool := ranked
	if len(pool) > reportingLimit {
		pool = pool[:reportingLimit]
	}

	selected := &models.SelectedModel{
		RunID:           result.RunID,
		Best:            ranked[0],
		ParetoModels:    pareto,
		CandidateModels: pool,
		WindowDays:      result.WindowDays,
	}
	s.log.Info("selected model",
		logging.String("sol_id", selected.Best.ID),
		logging.String("source", source.Name()),
		logging.Float64("nrmse", selected.Best.NRMSE),
		logging.Float64("decomp_rssd", selected.Best.DecompRSSD),
		logging.Int("pareto_models", len(pareto)),
		logging.Int("candidate_models", len(pool)))
	return selected, nil
}
