// Package scenario loads and executes YAML simulation scripts against a
// companion manager. A scenario is the scripted equivalent of a test harness
// driving the simulation-trigger interface by hand.
package scenario

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Action names accepted in scenario steps.
const (
	ActionAdvertise  = "advertise"
	ActionRevoke     = "revoke"
	ActionRevokeAll  = "revoke_all"
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
	ActionWait       = "wait"
)

// Step is one scripted operation. Which fields are required depends on the
// action; Validate reports the exact mismatch.
type Step struct {
	Action   string            `yaml:"action"`
	Service  string            `yaml:"service,omitempty"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
	DeviceID string            `yaml:"device_id,omitempty"`
	Duration time.Duration     `yaml:"duration,omitempty"`
}

// UnmarshalYAML accepts human durations ("10ms", "2s") for the duration
// field, which yaml.v3 would otherwise reject for time.Duration.
func (st *Step) UnmarshalYAML(value *yaml.Node) error {
	type rawStep struct {
		Action   string            `yaml:"action"`
		Service  string            `yaml:"service,omitempty"`
		Metadata map[string]string `yaml:"metadata,omitempty"`
		DeviceID string            `yaml:"device_id,omitempty"`
		Duration string            `yaml:"duration,omitempty"`
	}

	var raw rawStep
	if err := value.Decode(&raw); err != nil {
		return err
	}

	st.Action = raw.Action
	st.Service = raw.Service
	st.Metadata = raw.Metadata
	st.DeviceID = raw.DeviceID
	st.Duration = 0
	if raw.Duration != "" {
		d, err := time.ParseDuration(raw.Duration)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw.Duration, err)
		}
		st.Duration = d
	}
	return nil
}

// Scenario is a named sequence of steps executed in order.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates scenario YAML.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario shape before execution so a script fails fast
// instead of halfway through a run.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name must not be empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}

	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("scenario %q step %d: %w", s.Name, i+1, err)
		}
	}
	return nil
}

func (st *Step) validate() error {
	switch st.Action {
	case ActionAdvertise, ActionRevoke:
		if st.Service == "" {
			return fmt.Errorf("%s requires a service name", st.Action)
		}
	case ActionConnect, ActionDisconnect:
		if st.DeviceID == "" {
			return fmt.Errorf("%s requires a device_id", st.Action)
		}
	case ActionRevokeAll:
		// no arguments
	case ActionWait:
		if st.Duration <= 0 {
			return fmt.Errorf("wait requires a positive duration")
		}
	case "":
		return fmt.Errorf("missing action")
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
	return nil
}
