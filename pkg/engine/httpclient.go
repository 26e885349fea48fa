package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
)

// HTTPEngine talks to a remote fitting service over JSON. It implements both
// FitEngine and Allocator against the same base URL.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
}

// fitRequestBody is the wire form of a FitRequest. Dates travel as
// YYYY-MM-DD strings; columns travel by name.
type fitRequestBody struct {
	Dates           []string                 `json:"dates"`
	Numeric         map[string][]float64     `json:"numeric"`
	Text            map[string][]string      `json:"text,omitempty"`
	DepVar          string                   `json:"dep_var"`
	DepVarType      string                   `json:"dep_var_type"`
	AdstockType     string                   `json:"adstock"`
	PaidMediaSpends []string                 `json:"paid_media_spends"`
	PaidMediaVars   []string                 `json:"paid_media_vars"`
	OrganicVars     []string                 `json:"organic_vars,omitempty"`
	ContextVars     []string                 `json:"context_vars,omitempty"`
	FactorVars      []string                 `json:"factor_vars,omitempty"`
	Hyperparameters map[string]models.Bounds `json:"hyperparameters"`
	Iterations      int                      `json:"iterations"`
	Trials          int                      `json:"trials"`
	TrainSize       [2]float64               `json:"train_size"`
	Cores           int                      `json:"cores"`
}

// fitResponseBody is the fitting service response. The full body is also
// retained verbatim as the raw result artifact.
type fitResponseBody struct {
	RunID      string             `json:"run_id"`
	WindowDays int                `json:"window_days"`
	RankedIDs  []string           `json:"ranked_ids,omitempty"`
	Candidates []models.Candidate `json:"candidates"`
}

type allocationRequestBody struct {
	RunID       string    `json:"run_id"`
	ModelID     string    `json:"model_id"`
	DateMin     string    `json:"date_min"`
	DateMax     string    `json:"date_max"`
	TotalBudget float64   `json:"total_budget,omitempty"`
	Scenario    string    `json:"scenario"`
	Channels    []string  `json:"channels"`
	LowerBounds []float64 `json:"channel_constr_low"`
	UpperBounds []float64 `json:"channel_constr_up"`
}

type allocationResponseBody struct {
	PerChannelSpend    map[string]float64 `json:"per_channel_spend"`
	PerChannelResponse map[string]float64 `json:"per_channel_response"`
	TotalSpend         float64            `json:"total_spend"`
	TotalResponse      float64            `json:"total_response"`
}

// NewHTTPEngine creates a client for the fitting service at baseURL. Fit runs
// can take hours, so the timeout should be generous.
func NewHTTPEngine(baseURL string, timeout time.Duration) *HTTPEngine {
	if timeout <= 0 {
		timeout = 2 * time.Hour
	}
	return &HTTPEngine{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fit sends the prepared window and search space to the fitting service and
// returns the candidate table it produces.
func (e *HTTPEngine) Fit(ctx context.Context, req *FitRequest) (*models.TrainingResult, error) {
	dates := make([]string, req.Frame.Len())
	for i, d := range req.Frame.Dates {
		dates[i] = d.Format("2006-01-02")
	}

	body := fitRequestBody{
		Dates:           dates,
		Numeric:         req.Frame.Numeric,
		Text:            req.Frame.Text,
		DepVar:          req.DepVar,
		DepVarType:      req.DepVarType,
		AdstockType:     req.AdstockType,
		PaidMediaSpends: req.Drivers.PaidMediaSpends,
		PaidMediaVars:   req.Drivers.PaidMediaVars,
		OrganicVars:     req.Drivers.OrganicVars,
		ContextVars:     req.Drivers.ContextVars,
		FactorVars:      req.Drivers.FactorVars,
		Hyperparameters: req.Hyperparameters,
		Iterations:      req.Iterations,
		Trials:          req.Trials,
		TrainSize:       req.TrainSize,
		Cores:           req.CoreBudget,
	}

	raw, err := e.post(ctx, "/fit", body)
	if err != nil {
		return nil, err
	}

	var resp fitResponseBody
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode fit response: %w", err)
	}

	result := &models.TrainingResult{
		RunID:      resp.RunID,
		WindowDays: resp.WindowDays,
		RankedIDs:  resp.RankedIDs,
		Candidates: resp.Candidates,
		Raw:        raw,
	}
	if result.WindowDays == 0 {
		result.WindowDays = req.Frame.Len()
	}
	return result, nil
}

// Allocate asks the service to optimize one month's budget split.
func (e *HTTPEngine) Allocate(ctx context.Context, req *AllocationRequest) (*AllocationResult, error) {
	body := allocationRequestBody{
		DateMin:     req.Start.Format("2006-01-02"),
		DateMax:     req.End.Format("2006-01-02"),
		TotalBudget: req.TotalBudget,
		Scenario:    req.Scenario,
		Channels:    req.Channels,
		LowerBounds: req.LowerBounds,
		UpperBounds: req.UpperBounds,
	}
	if req.Model != nil {
		body.RunID = req.Model.RunID
		body.ModelID = req.Model.Best.ID
	}

	raw, err := e.post(ctx, "/allocate", body)
	if err != nil {
		return nil, err
	}

	var resp allocationResponseBody
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode allocation response: %w", err)
	}

	return &AllocationResult{
		PerChannelSpend:    resp.PerChannelSpend,
		PerChannelResponse: resp.PerChannelResponse,
		TotalSpend:         resp.TotalSpend,
		TotalResponse:      resp.TotalResponse,
	}, nil
}

func (e *HTTPEngine) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("engine request failed: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine returned status %d: %s", httpResp.StatusCode, truncate(string(raw), 512))
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
