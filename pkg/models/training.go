package models

import "encoding/json"

// Bounds is a length-2 numeric range for one tunable hyperparameter.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Valid reports whether the bounds are ordered.
func (b Bounds) Valid() bool { return b.Lower <= b.Upper }

// HyperparameterSpec maps "<channel>_<param>" keys to bounded ranges for the
// adstock/saturation transform dimensions.
type HyperparameterSpec map[string]Bounds

// DriverSelection holds the variable sets resolved against the prepared
// frame. Invariant: PaidMediaSpends and PaidMediaVars stay equal length,
// paired index by index.
type DriverSelection struct {
	PaidMediaSpends []string `json:"paid_media_spend_columns"`
	PaidMediaVars   []string `json:"paid_media_vars"`
	OrganicVars     []string `json:"organic_vars"`
	ContextVars     []string `json:"context_vars"`
	FactorVars      []string `json:"factor_vars"`
}

// MediaChannels returns the spend channels plus organic drivers, the set
// that receives hyperparameter ranges.
func (d DriverSelection) MediaChannels() []string {
	out := make([]string, 0, len(d.PaidMediaSpends)+len(d.OrganicVars))
	out = append(out, d.PaidMediaSpends...)
	out = append(out, d.OrganicVars...)
	return out
}

// Candidate is one fitted model from a training run.
type Candidate struct {
	ID              string             `json:"sol_id"`
	NRMSE           float64            `json:"nrmse"`
	DecompRSSD      float64            `json:"decomp_rssd"`
	ValidationNRMSE float64            `json:"nrmse_validation,omitempty"`
	TestNRMSE       float64            `json:"nrmse_test,omitempty"`
	Pareto          bool               `json:"pareto"`
	Decomp          map[string]float64 `json:"decomp,omitempty"`
}

// TrainingResult is the opaque handle returned by the fitting engine.
// Read-only downstream of the training orchestrator.
type TrainingResult struct {
	RunID      string          `json:"run_id"`
	WindowDays int             `json:"window_days"`
	RankedIDs  []string        `json:"ranked_ids,omitempty"`
	Candidates []Candidate     `json:"candidates"`
	Raw        json.RawMessage `json:"-"`
}

// SelectedModel is the best candidate plus secondary candidates for
// reporting. Immutable once selected.
type SelectedModel struct {
	RunID           string      `json:"run_id"`
	Best            Candidate   `json:"best"`
	ParetoModels    []Candidate `json:"pareto_models"`
	CandidateModels []Candidate `json:"candidate_models"`
	WindowDays      int         `json:"window_days"`
}

// BaselineDaily returns the model's non-media response per day: the decomp
// contributions of everything outside the given media channels, divided by
// the training window length.
func (m *SelectedModel) BaselineDaily(mediaChannels []string) float64 {
	if m.WindowDays <= 0 {
		return 0
	}
	media := make(map[string]bool, len(mediaChannels))
	for _, ch := range mediaChannels {
		media[ch] = true
	}
	var total float64
	for driver, contribution := range m.Best.Decomp {
		if !media[driver] {
			total += contribution
		}
	}
	if total < 0 {
		return 0
	}
	return total / float64(m.WindowDays)
}
