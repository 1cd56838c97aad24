package scarify

import (
	"errors"
	"log"
	"math"

	"scarify.ai/internal/cfgfile"
)

const KeyDistanceOverride = "distanceOverride"

var (
	ErrAlreadyAdded    = errors.New("player already added")
	ErrNotAdded        = errors.New("player not added")
	ErrNoOverride      = errors.New("player has no distance override")
	ErrInvalidDistance = errors.New("distance must be greater than 0")
	ErrEmptyName       = errors.New("empty player name")
)

// Registry is not safe for concurrent use. Every mutation is followed by a
// full save of the backing file.
type Registry struct {
	store *cfgfile.Store
	path  string
	log   *log.Logger
}

// PlayerInfo is one row of the read model.
type PlayerInfo struct {
	Name             string  `json:"name"`
	HasOverride      bool    `json:"has_override"`
	DistanceOverride float64 `json:"distance_override,omitempty"`
}

// New wraps store. An empty path disables saving.
func New(store *cfgfile.Store, path string, logger *log.Logger) *Registry {
	if store == nil {
		store = cfgfile.New()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{store: store, path: path, log: logger}
}

// Open loads path (missing file → empty store) and wraps it.
func Open(path string, warnIfMissing bool, logger *log.Logger) *Registry {
	return New(cfgfile.Load(path, warnIfMissing, logger), path, logger)
}

func (r *Registry) Store() *cfgfile.Store { return r.store }
func (r *Registry) Path() string          { return r.path }

// Save writes the whole store. Failures are logged by the store and dropped.
func (r *Registry) Save() {
	if r.path == "" {
		return
	}
	r.store.Save(r.path, r.log)
}

func (r *Registry) IsScary(name string) bool {
	return name != cfgfile.GlobalSection && r.store.HasSection(name)
}

func (r *Registry) Players() []string {
	names := r.store.SectionNames()
	out := names[:0]
	for _, n := range names {
		if n != cfgfile.GlobalSection {
			out = append(out, n)
		}
	}
	return out
}

func (r *Registry) Add(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if r.store.HasSection(name) {
		return ErrAlreadyAdded
	}
	r.store.ReplaceSection(name, cfgfile.Section{})
	r.Save()
	return nil
}

func (r *Registry) Remove(name string) error {
	if !r.IsScary(name) {
		return ErrNotAdded
	}
	r.store.DeleteSection(name)
	r.Save()
	return nil
}

// SetDistanceOverride replaces the player's section with just the override,
// adding the player if needed.
func (r *Registry) SetDistanceOverride(name string, distance float64) error {
	if name == "" {
		return ErrEmptyName
	}
	if math.IsNaN(distance) || math.IsInf(distance, 0) || distance <= 0 {
		return ErrInvalidDistance
	}
	r.store.ReplaceSection(name, cfgfile.Section{KeyDistanceOverride: cfgfile.Double(distance)})
	r.Save()
	return nil
}

func (r *Registry) ResetDistanceOverride(name string) error {
	if !r.IsScary(name) {
		return ErrNotAdded
	}
	if !r.store.DeleteKey(name, KeyDistanceOverride) {
		return ErrNoOverride
	}
	r.Save()
	return nil
}

// DistanceOverride reports the stored override. Only a double counts; an
// int written by hand into the file is ignored, as is any other tag.
func (r *Registry) DistanceOverride(name string) (float64, bool) {
	v, ok := r.store.Peek(name, KeyDistanceOverride)
	if !ok {
		return 0, false
	}
	return v.AsDouble()
}

func (r *Registry) HasKey(name, key string) bool {
	_, ok := r.store.Peek(name, key)
	return ok
}

// View returns a copy of the player's section.
func (r *Registry) View(name string) (cfgfile.Section, error) {
	if !r.IsScary(name) {
		return nil, ErrNotAdded
	}
	return r.store.Section(name).Clone(), nil
}

// Snapshot lists every player in name order.
func (r *Registry) Snapshot() []PlayerInfo {
	players := r.Players()
	out := make([]PlayerInfo, 0, len(players))
	for _, name := range players {
		info := PlayerInfo{Name: name}
		if d, ok := r.DistanceOverride(name); ok {
			info.HasOverride = true
			info.DistanceOverride = d
		}
		out = append(out, info)
	}
	return out
}
