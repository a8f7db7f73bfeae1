package policy

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy is a fixed-window admission budget for a single identifier.
//
// The window is measured from the moment an identifier's first admitted
// request starts it, not aligned to wall-clock boundaries. When the window
// elapses the budget resets in full; a caller can therefore spend one budget
// at the very end of a window and another at the very start of the next.
// That burst is inherent to fixed-window counting and is accepted here in
// exchange for O(1) state per identifier.
type Policy struct {
	// Window is the length of the counting window. Must be > 0.
	Window time.Duration

	// MaxRequests is the number of admissions allowed per window. Must be > 0.
	MaxRequests int
}

// Built-in presets. These are ordinary Policy values; configuration may
// reference them by name or define its own.
var (
	// Strict suits expensive trigger surfaces: 10 requests per minute.
	Strict = Policy{Window: time.Minute, MaxRequests: 10}

	// Standard is the default budget: 30 requests per minute.
	Standard = Policy{Window: time.Minute, MaxRequests: 30}
)

// ByName returns the built-in preset with the given name (case-insensitive).
func ByName(name string) (Policy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "strict":
		return Strict, true
	case "standard":
		return Standard, true
	}
	return Policy{}, false
}

// Validate checks that the policy is enforceable.
func (p Policy) Validate() error {
	if p.Window <= 0 {
		return fmt.Errorf("window must be positive, got %v", p.Window)
	}
	if p.MaxRequests <= 0 {
		return fmt.Errorf("max_requests must be positive, got %d", p.MaxRequests)
	}
	return nil
}

// String returns a compact human-readable form, e.g. "10req/1m0s".
func (p Policy) String() string {
	return fmt.Sprintf("%dreq/%v", p.MaxRequests, p.Window)
}

// Spec is the YAML-facing form of a policy reference. A value may be either
// a scalar naming a preset or previously defined policy:
//
//	route_policy: strict
//
// or an inline definition:
//
//	route_policy:
//	  window: 60s
//	  max_requests: 10
//
// Resolve turns a Spec into a concrete Policy against a set of named
// policies.
type Spec struct {
	// Name is set when the YAML value was a scalar reference.
	Name string

	// Inline is set when the YAML value was a mapping.
	Inline *Policy
}

// specBody mirrors the inline mapping form for yaml decoding.
type specBody struct {
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max_requests"`
}

// UnmarshalYAML accepts either a scalar policy name or an inline mapping.
func (s *Spec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var name string
		if err := value.Decode(&name); err != nil {
			return err
		}
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("policy reference is empty")
		}
		s.Name = strings.TrimSpace(name)
		s.Inline = nil
		return nil

	case yaml.MappingNode:
		var body specBody
		if err := value.Decode(&body); err != nil {
			return err
		}
		s.Name = ""
		s.Inline = &Policy{Window: body.Window, MaxRequests: body.MaxRequests}
		return nil

	default:
		return fmt.Errorf("policy must be a name or a {window, max_requests} mapping")
	}
}

// Resolve produces the concrete Policy for this spec. Named references check
// the supplied named set first, then the built-in presets. Inline definitions
// are validated before being returned.
func (s Spec) Resolve(named map[string]Policy) (Policy, error) {
	if s.Inline != nil {
		if err := s.Inline.Validate(); err != nil {
			return Policy{}, err
		}
		return *s.Inline, nil
	}

	if s.Name == "" {
		return Policy{}, fmt.Errorf("policy reference is empty")
	}

	if p, ok := named[s.Name]; ok {
		return p, nil
	}
	if p, ok := ByName(s.Name); ok {
		return p, nil
	}
	return Policy{}, fmt.Errorf("unknown policy %q", s.Name)
}
