package flee

import (
	"sync/atomic"

	"scarify.ai/internal/scarify"
)

type rosterEntry struct {
	override    float64
	hasOverride bool
}

// Roster is a Lookup the engine thread can read while the console host
// publishes registry changes from its own goroutine. Each RecordPlayers call
// swaps in a fresh map.
type Roster struct {
	m atomic.Pointer[map[string]rosterEntry]
}

func NewRoster() *Roster {
	r := &Roster{}
	empty := map[string]rosterEntry{}
	r.m.Store(&empty)
	return r
}

func (r *Roster) RecordPlayers(players []scarify.PlayerInfo) error {
	m := make(map[string]rosterEntry, len(players))
	for _, p := range players {
		m[p.Name] = rosterEntry{override: p.DistanceOverride, hasOverride: p.HasOverride}
	}
	r.m.Store(&m)
	return nil
}

func (r *Roster) IsScary(name string) bool {
	_, ok := (*r.m.Load())[name]
	return ok
}

func (r *Roster) DistanceOverride(name string) (float64, bool) {
	e, ok := (*r.m.Load())[name]
	if !ok || !e.hasOverride {
		return 0, false
	}
	return e.override, true
}

func (r *Roster) Len() int { return len(*r.m.Load()) }

// Factory builds goals for every mob the engine loads, sharing one game
// rule, one registry view and one set of options.
type Factory struct {
	rules  Rules
	lookup Lookup
	opts   Options
}

func NewFactory(rules Rules, lookup Lookup, opts Options) *Factory {
	return &Factory{rules: rules, lookup: lookup, opts: opts}
}

func (f *Factory) Options() Options { return f.opts }

func (f *Factory) Rules() Rules { return f.rules }

// NewGoal builds a goal for one mob. A Host without Rules gets the
// factory's rule.
func (f *Factory) NewGoal(h Host) *Goal {
	if h.Rules == nil {
		h.Rules = f.rules
	}
	return NewGoal(h, f.lookup, f.opts)
}

// Attach builds a goal for the mob and injects it into its selector.
func (f *Factory) Attach(sel Selector, h Host) *Goal {
	g := f.NewGoal(h)
	Inject(sel, g)
	return g
}
