package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// TrainSize is the train split proportion, accepted either as a scalar or a
// [lower, upper] range in the config document.
type TrainSize [2]float64

// UnmarshalJSON accepts either 0.8 or [0.7, 0.9].
func (t *TrainSize) UnmarshalJSON(data []byte) error {
	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		*t = TrainSize{scalar, scalar}
		return nil
	}
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("train_size must be a number or a 2-element array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("train_size range must have exactly 2 elements, got %d", len(pair))
	}
	*t = TrainSize{pair[0], pair[1]}
	return nil
}

// UnmarshalYAML mirrors the JSON behaviour for YAML documents.
func (t *TrainSize) UnmarshalYAML(value *yaml.Node) error {
	var scalar float64
	if err := value.Decode(&scalar); err == nil {
		*t = TrainSize{scalar, scalar}
		return nil
	}
	var pair []float64
	if err := value.Decode(&pair); err != nil {
		return fmt.Errorf("train_size must be a number or a 2-element array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("train_size range must have exactly 2 elements, got %d", len(pair))
	}
	*t = TrainSize{pair[0], pair[1]}
	return nil
}

// DerivedRule describes one derived feature column built by the data
// preparer. Sources may contain glob patterns ("SEA_*_COST"). Op is "sum"
// or "product".
type DerivedRule struct {
	Name    string   `json:"name" yaml:"name"`
	Op      string   `json:"op" yaml:"op"`
	Sources []string `json:"sources" yaml:"sources"`
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// JobConfig is the strongly-typed training job configuration, parsed and
// validated once at load time.
type JobConfig struct {
	Country               string      `json:"country" yaml:"country"`
	Revision              string      `json:"revision" yaml:"revision"`
	DateInput             string      `json:"date_input" yaml:"date_input"`
	Iterations            int         `json:"iterations" yaml:"iterations"`
	Trials                int         `json:"trials" yaml:"trials"`
	TrainSize             TrainSize   `json:"train_size" yaml:"train_size"`
	Timestamp             string      `json:"timestamp" yaml:"timestamp"`
	DepVar                string      `json:"dep_var" yaml:"dep_var"`
	DepVarType            string      `json:"dep_var_type" yaml:"dep_var_type"`
	AdstockType           string      `json:"adstock_type" yaml:"adstock_type"`
	DateColumnName        string      `json:"date_column_name" yaml:"date_column_name"`
	PaidMediaSpendColumns []string    `json:"paid_media_spend_columns" yaml:"paid_media_spend_columns"`
	PaidMediaExposure     []string    `json:"paid_media_exposure_columns" yaml:"paid_media_exposure_columns"`
	ContextColumns        []string    `json:"context_columns" yaml:"context_columns"`
	FactorColumns         []string    `json:"factor_columns" yaml:"factor_columns"`
	OrganicColumns        []string    `json:"organic_columns" yaml:"organic_columns"`
	MonthlyBudgetOverride []float64   `json:"monthly_budget_override,omitempty" yaml:"monthly_budget_override,omitempty"`
	DerivedColumns        []DerivedRule `json:"derived_columns,omitempty" yaml:"derived_columns,omitempty"`
	DatasetKey            string      `json:"dataset_key,omitempty" yaml:"dataset_key,omitempty"`
}

// ParseJobConfig decodes a JSON or YAML job configuration document and
// validates it. The key is used only to pick the decoder by extension.
func ParseJobConfig(key string, data []byte) (*JobConfig, error) {
	cfg := &JobConfig{}
	var err error
	if strings.HasSuffix(key, ".yaml") || strings.HasSuffix(key, ".yml") {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse job config %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required keys and structural invariants.
func (c *JobConfig) Validate() error {
	if c.DateInput == "" {
		return fmt.Errorf("missing required key: date_input")
	}
	if _, err := time.Parse(dateLayout, c.DateInput); err != nil {
		return fmt.Errorf("invalid date_input %q: %w", c.DateInput, err)
	}
	if len(c.PaidMediaSpendColumns) == 0 {
		return fmt.Errorf("missing required key: paid_media_spend_columns")
	}
	if len(c.PaidMediaExposure) == 0 {
		return fmt.Errorf("missing required key: paid_media_exposure_columns")
	}
	if len(c.PaidMediaSpendColumns) != len(c.PaidMediaExposure) {
		return fmt.Errorf("paid_media_spend_columns (%d) and paid_media_exposure_columns (%d) must be 1:1",
			len(c.PaidMediaSpendColumns), len(c.PaidMediaExposure))
	}
	if c.DepVar == "" {
		return fmt.Errorf("missing required key: dep_var")
	}
	for _, rule := range c.DerivedColumns {
		if rule.Op != "sum" && rule.Op != "product" {
			return fmt.Errorf("derived column %s: unsupported op %q", rule.Name, rule.Op)
		}
	}
	return nil
}

// WindowStart returns the configured modelling window start date.
func (c *JobConfig) WindowStart() time.Time {
	t, _ := time.Parse(dateLayout, c.DateInput)
	return t
}

// ResolveIterations returns the iteration count, defaulting when absent.
func (c *JobConfig) ResolveIterations() int {
	if c.Iterations <= 0 {
		return 2000
	}
	return c.Iterations
}

// ResolveTrials returns the trial count, defaulting when absent.
func (c *JobConfig) ResolveTrials() int {
	if c.Trials <= 0 {
		return 5
	}
	return c.Trials
}

// ResolveTrainSize returns the train split range, defaulting to [0.7, 0.9].
func (c *JobConfig) ResolveTrainSize() TrainSize {
	if c.TrainSize[0] == 0 && c.TrainSize[1] == 0 {
		return TrainSize{0.7, 0.9}
	}
	return c.TrainSize
}

// ResolveAdstockType returns the adstock family, defaulting to geometric.
func (c *JobConfig) ResolveAdstockType() string {
	if c.AdstockType == "" {
		return "geometric"
	}
	return c.AdstockType
}

// ResolveDatasetKey returns the dataset location, falling back to the
// application default.
func (c *JobConfig) ResolveDatasetKey(fallback string) string {
	if c.DatasetKey != "" {
		return c.DatasetKey
	}
	return fallback
}
