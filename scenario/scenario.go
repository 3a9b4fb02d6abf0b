// Package scenario describes simulations in YAML files and runs them,
// writing a line per invocation into a trace.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entity kinds.
const (
	KindContinuous = "continuous"
	KindDiscrete   = "discrete"
)

// Mutation modes, named after the curve setters they call.
const (
	ModeLast    = "last"
	ModeInsert  = "insert"
	ModeReplace = "replace"
)

// Scenario is a simulation described in a file.
type Scenario struct {
	// Name identifies the scenario in traces and golden files.
	Name string `yaml:"name"`

	// Until is the time the simulation runs to.
	Until float64 `yaml:"until"`

	Entities  []EntitySpec `yaml:"entities"`
	Events    []EventSpec  `yaml:"events"`
	Mutations []Mutation   `yaml:"mutations,omitempty"`
}

// EntitySpec declares a curve and its initial keyframes.
type EntitySpec struct {
	Name      string     `yaml:"name"`
	Kind      string     `yaml:"kind"`
	Keyframes []Keyframe `yaml:"keyframes,omitempty"`
}

// Keyframe is a value a curve takes at a time.
type Keyframe struct {
	Time  float64 `yaml:"time"`
	Value any     `yaml:"value"`
}

// EventSpec declares an event created before the simulation starts.
type EventSpec struct {
	Handler string         `yaml:"handler"`
	Target  string         `yaml:"target"`
	Params  map[string]any `yaml:"params,omitempty"`
}

// Mutation changes a curve from outside of the simulation once the loop
// reaches At. Time may be earlier than At, which rewrites the past.
type Mutation struct {
	At     float64 `yaml:"at"`
	Entity string  `yaml:"entity"`
	Mode   string  `yaml:"mode"`
	Time   float64 `yaml:"time"`
	Value  any     `yaml:"value"`
}

// ErrInvalid is wrapped by all the validation errors.
var ErrInvalid = errors.New("invalid scenario")

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	return Parse(data)
}

// Parse parses a scenario. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate checks that the scenario can be run.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}

	if s.Until < 0 {
		return fmt.Errorf("%w: until must not be negative", ErrInvalid)
	}

	kinds := make(map[string]string, len(s.Entities))
	for i, e := range s.Entities {
		if err := validateEntity(e, kinds); err != nil {
			return fmt.Errorf("%w: entities[%d]: %w", ErrInvalid, i, err)
		}

		kinds[e.Name] = e.Kind
	}

	for i, e := range s.Events {
		if err := validateEvent(e, kinds); err != nil {
			return fmt.Errorf("%w: events[%d]: %w", ErrInvalid, i, err)
		}
	}

	for i, m := range s.Mutations {
		if err := s.validateMutation(m, kinds); err != nil {
			return fmt.Errorf("%w: mutations[%d]: %w", ErrInvalid, i, err)
		}
	}

	return nil
}

func validateEntity(e EntitySpec, kinds map[string]string) error {
	if e.Name == "" {
		return errors.New("name is required")
	}

	if _, found := kinds[e.Name]; found {
		return fmt.Errorf("entity %q declared twice", e.Name)
	}

	switch e.Kind {
	case KindContinuous:
		for _, k := range e.Keyframes {
			if _, ok := toFloat(k.Value); !ok {
				return fmt.Errorf("value %v at %g is not a number",
					k.Value, k.Time)
			}
		}
	case KindDiscrete:
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}

	return nil
}

func validateEvent(e EventSpec, kinds map[string]string) error {
	h, found := handlers[e.Handler]
	if !found {
		return fmt.Errorf("unknown handler %q", e.Handler)
	}

	kind, found := kinds[e.Target]
	if !found {
		return fmt.Errorf("unknown target %q", e.Target)
	}

	if h.targetKind != "" && h.targetKind != kind {
		return fmt.Errorf("handler %s needs a %s target, %q is %s",
			e.Handler, h.targetKind, e.Target, kind)
	}

	for _, p := range h.required {
		if _, ok := toFloat(e.Params[p]); !ok {
			return fmt.Errorf("handler %s needs a numeric %q parameter",
				e.Handler, p)
		}
	}

	if period, ok := toFloat(e.Params["period"]); ok && period <= 0 {
		return errors.New("period must be positive")
	}

	if delay, ok := toFloat(e.Params["delay"]); ok && delay < 0 {
		return errors.New("delay must not be negative")
	}

	if on, ok := e.Params["on"]; ok {
		if kinds[fmt.Sprint(on)] != KindDiscrete {
			return fmt.Errorf("%v is not a discrete entity", on)
		}
	}

	return nil
}

func (s *Scenario) validateMutation(m Mutation, kinds map[string]string) error {
	kind, found := kinds[m.Entity]
	if !found {
		return fmt.Errorf("unknown entity %q", m.Entity)
	}

	switch m.Mode {
	case ModeLast, ModeInsert, ModeReplace:
	default:
		return fmt.Errorf("unknown mode %q", m.Mode)
	}

	if kind == KindContinuous {
		if _, ok := toFloat(m.Value); !ok {
			return fmt.Errorf("value %v is not a number", m.Value)
		}
	}

	if m.At < 0 || m.At > s.Until {
		return fmt.Errorf("at %g is outside [0, %g]", m.At, s.Until)
	}

	return nil
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
