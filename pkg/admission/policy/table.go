package policy

import (
	"fmt"
	"sort"
	"strings"
)

// Source identifies which level of the table produced a policy.
type Source string

const (
	// SourceRoute means a per-route override matched.
	SourceRoute Source = "route"

	// SourceTier means a per-tier override matched.
	SourceTier Source = "tier"

	// SourceDefault means the table default applied.
	SourceDefault Source = "default"
)

// Lookup is the result of resolving a request against a Table.
type Lookup struct {
	Policy Policy
	Source Source

	// Scope is the table entry that matched: the route key for route
	// overrides (the prefix itself on a prefix match), the tier name for
	// tier overrides, and empty for the default. Callers use it to keep
	// counters from different overrides apart.
	Scope string
}

// TableConfig describes the contents of a Table.
type TableConfig struct {
	// Default applies when no route or tier override matches.
	// Zero value means Standard.
	Default Policy

	// Routes maps route keys to policies. Keys ending in "/" match any
	// deeper path by prefix; all other keys match exactly.
	Routes map[string]Policy

	// Tiers maps caller tiers to policies.
	Tiers map[string]Policy
}

// Table resolves the policy governing a request. Construction validates
// every referenced policy; after that the table is immutable and safe for
// unsynchronized concurrent reads.
type Table struct {
	fallback Policy
	routes   map[string]Policy
	tiers    map[string]Policy

	// prefixes holds the "/"-terminated route keys longest-first so the
	// most specific prefix wins.
	prefixes []string
}

// NewTable builds an immutable lookup table from cfg.
//
// Returns an error if any policy in cfg fails validation.
func NewTable(cfg TableConfig) (*Table, error) {
	fallback := cfg.Default
	if fallback == (Policy{}) {
		fallback = Standard
	}
	if err := fallback.Validate(); err != nil {
		return nil, fmt.Errorf("default policy: %w", err)
	}

	t := &Table{
		fallback: fallback,
		routes:   make(map[string]Policy, len(cfg.Routes)),
		tiers:    make(map[string]Policy, len(cfg.Tiers)),
	}

	for route, p := range cfg.Routes {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("route %q: %w", route, err)
		}
		t.routes[route] = p
		if strings.HasSuffix(route, "/") {
			t.prefixes = append(t.prefixes, route)
		}
	}
	sort.Slice(t.prefixes, func(i, j int) bool {
		return len(t.prefixes[i]) > len(t.prefixes[j])
	})

	for tier, p := range cfg.Tiers {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("tier %q: %w", tier, err)
		}
		t.tiers[tier] = p
	}

	return t, nil
}

// Resolve returns the policy for a route and caller tier. Precedence is
// route override, then tier override, then the default. Either argument may
// be empty; a miss at every level yields the default, never an error.
func (t *Table) Resolve(route, tier string) Lookup {
	if p, ok := t.routes[route]; ok {
		return Lookup{Policy: p, Source: SourceRoute, Scope: route}
	}
	for _, prefix := range t.prefixes {
		if strings.HasPrefix(route, prefix) {
			return Lookup{Policy: t.routes[prefix], Source: SourceRoute, Scope: prefix}
		}
	}
	if tier != "" {
		if p, ok := t.tiers[tier]; ok {
			return Lookup{Policy: p, Source: SourceTier, Scope: tier}
		}
	}
	return Lookup{Policy: t.fallback, Source: SourceDefault}
}

// Default returns the table's fallback policy.
func (t *Table) Default() Policy {
	return t.fallback
}

// Len returns the number of route and tier overrides.
func (t *Table) Len() int {
	return len(t.routes) + len(t.tiers)
}
