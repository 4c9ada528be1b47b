// Package loadgen drives scripted load against the storefront services and
// prints a latency report. It reproduces the journeys the deployment's
// declarative load-test configuration exercised: catalog browsing, search,
// account lifecycle, and authenticated restocking.
package loadgen

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario names accepted in plan weight maps.
const (
	ScenarioBrowse  = "browse"
	ScenarioSearch  = "search"
	ScenarioAccount = "account"
	ScenarioRestock = "restock"
)

func knownScenario(name string) bool {
	switch name {
	case ScenarioBrowse, ScenarioSearch, ScenarioAccount, ScenarioRestock:
		return true
	}
	return false
}

// Duration wraps time.Duration so plan files can spell values like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Stage is one phase of a run: a worker count held for a duration.
type Stage struct {
	Duration Duration `yaml:"duration"`
	Workers  int      `yaml:"workers"`
}

// Plan is the declarative description of a load run.
type Plan struct {
	UserServiceURL    string         `yaml:"user_service_url"`
	ProductServiceURL string         `yaml:"product_service_url"`
	Stages            []Stage        `yaml:"stages"`
	Scenarios         map[string]int `yaml:"scenarios"`
	// ErrorRateLimit is the failing-request fraction (0..1) above which the
	// run is reported as failed. Zero disables the check.
	ErrorRateLimit float64 `yaml:"error_rate_limit"`
}

// DefaultPlan is the run used when no plan file is given: one short stage
// with every scenario enabled, weighted toward read traffic.
func DefaultPlan() *Plan {
	plan := &Plan{
		Stages: []Stage{
			{Duration: Duration(30 * time.Second), Workers: 5},
		},
		Scenarios: map[string]int{
			ScenarioBrowse:  4,
			ScenarioSearch:  3,
			ScenarioAccount: 2,
			ScenarioRestock: 1,
		},
		ErrorRateLimit: 0.05,
	}
	plan.applyDefaults()
	return plan
}

// LoadPlan reads a YAML plan file, fills defaults, and validates it.
func LoadPlan(path string) (*Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	plan.applyDefaults()
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (p *Plan) applyDefaults() {
	if p.UserServiceURL == "" {
		p.UserServiceURL = "http://localhost:8000"
	}
	if p.ProductServiceURL == "" {
		p.ProductServiceURL = "http://localhost:8001"
	}
	if len(p.Scenarios) == 0 {
		p.Scenarios = map[string]int{ScenarioBrowse: 1}
	}
}

// Validate rejects plans the engine cannot run.
func (p *Plan) Validate() error {
	if len(p.Stages) == 0 {
		return fmt.Errorf("plan has no stages")
	}
	for i, stage := range p.Stages {
		if stage.Duration <= 0 {
			return fmt.Errorf("stage %d: duration must be positive", i+1)
		}
		if stage.Workers <= 0 {
			return fmt.Errorf("stage %d: workers must be positive", i+1)
		}
	}

	totalWeight := 0
	for name, weight := range p.Scenarios {
		if !knownScenario(name) {
			return fmt.Errorf("unknown scenario %q", name)
		}
		if weight < 0 {
			return fmt.Errorf("scenario %q: weight must not be negative", name)
		}
		totalWeight += weight
	}
	if totalWeight == 0 {
		return fmt.Errorf("plan needs at least one scenario with positive weight")
	}

	if p.ErrorRateLimit < 0 || p.ErrorRateLimit > 1 {
		return fmt.Errorf("error_rate_limit must be between 0 and 1")
	}
	return nil
}
