package training

import (
	"fmt"
	"testing"

	apperrors "github.com/ivana-meshed/mmm-app-sub006/pkg/errors"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
)

func TestSelectUsesEngineRanking(t *testing.T) {
	result := &models.TrainingResult{
		RunID:     "run-1",
		RankedIDs: []string{"2_5_1", "1_1_1"},
		Candidates: []models.Candidate{
			{ID: "1_1_1", NRMSE: 0.1, Pareto: true},
			{ID: "2_5_1", NRMSE: 0.9}, // worse metrics, but engine-ranked first
		},
	}

	selected, err := NewSelector(logging.Nop()).Select(result)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if selected.Best.ID != "2_5_1" {
		t.Errorf("engine ranking ignored, best = %s", selected.Best.ID)
	}
	if selected.RunID != "run-1" {
		t.Errorf("run id not carried, got %q", selected.RunID)
	}
}

func TestSelectFallsBackWhenRankingUnresolvable(t *testing.T) {
	result := &models.TrainingResult{
		RankedIDs: []string{"ghost"},
		Candidates: []models.Candidate{
			{ID: "b", NRMSE: 0.2},
			{ID: "a", NRMSE: 0.1},
		},
	}

	selected, err := NewSelector(logging.Nop()).Select(result)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if selected.Best.ID != "a" {
		t.Errorf("metric-table fallback not used, best = %s", selected.Best.ID)
	}
}

func TestSelectTieBreakOrder(t *testing.T) {
	result := &models.TrainingResult{
		Candidates: []models.Candidate{
			{ID: "c", NRMSE: 0.1, DecompRSSD: 0.3},
			{ID: "b", NRMSE: 0.1, DecompRSSD: 0.2},
			{ID: "a", NRMSE: 0.1, DecompRSSD: 0.2},
		},
	}

	ranked := metricTableSource{}.Ranked(result)
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Fatalf("rank %d = %s, want %s (full order %v)", i, ranked[i].ID, id, ranked)
		}
	}
}

func TestSelectPartitionsParetoAndCapsReporting(t *testing.T) {
	result := &models.TrainingResult{}
	for i := 0; i < 150; i++ {
		result.Candidates = append(result.Candidates, models.Candidate{
			ID:     fmt.Sprintf("m%03d", i),
			NRMSE:  float64(i),
			Pareto: i%3 == 0,
		})
	}

	selected, err := NewSelector(logging.Nop()).Select(result)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(selected.CandidateModels) != 100 {
		t.Errorf("reporting pool should cap at 100, got %d", len(selected.CandidateModels))
	}
	if len(selected.ParetoModels) != 50 {
		t.Errorf("expected 50 pareto models, got %d", len(selected.ParetoModels))
	}
	if selected.Best.ID != "m000" {
		t.Errorf("unexpected best %s", selected.Best.ID)
	}
}

func TestSelectEmptyPool(t *testing.T) {
	_, err := NewSelector(logging.Nop()).Select(&models.TrainingResult{})
	if kind := apperrors.KindOf(err); kind != apperrors.KindNoCandidate {
		t.Errorf("expected no_candidate error, got %q (err=%v)", kind, err)
	}
	_, err = NewSelector(logging.Nop()).Select(nil)
	if kind := apperrors.KindOf(err); kind != apperrors.KindNoCandidate {
		t.Errorf("expected no_candidate error for nil result, got %q", kind)
	}
}
