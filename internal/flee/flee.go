// Package flee makes mobs run from nearby scary players.
package flee

import (
	"log"
	"sync/atomic"

	"scarify.ai/internal/addons"
)

type Vec3 struct{ X, Y, Z float64 }

func (v Vec3) SquaredDistance(o Vec3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return dx*dx + dy*dy + dz*dz
}

type Player interface {
	Name() string
	Pos() Vec3
	IsCreative() bool
	IsSpectator() bool
	IsInvisible() bool
}

type Mob interface {
	Pos() Vec3
	MovementSpeed() float64
	FollowRange() float64
	CanSee(Player) bool
}

// Path is an opaque host path handle.
type Path any

type Navigator interface {
	FindPathTo(target Vec3) (Path, bool)
	StartMovingAlong(p Path, speed float64)
	IsIdle() bool
	SetSpeed(speed float64)
}

// Targeting finds a reachable position within the given ranges that moves
// the mob away from a point.
type Targeting interface {
	FindFrom(mob Mob, horizontal, vertical int, away Vec3) (Vec3, bool)
}

type World interface {
	Players() []Player
}

// Rules reports whether the enableScarify game rule is on.
type Rules interface {
	Enabled() bool
}

// Lookup is the registry view the goal reads every tick.
type Lookup interface {
	IsScary(name string) bool
	DistanceOverride(name string) (float64, bool)
}

// VisibilityScaler is provided by an optional size-changing add-on.
type VisibilityScaler interface {
	VisibilityScale(p Player) (float64, error)
}

// PehkuiAddon is the add-on name the visibility scaler is registered under.
const PehkuiAddon = "pehkui"

// ResolveScaler returns the registered scaler, or nil when the add-on is
// absent or does not provide one.
func ResolveScaler(r *addons.Registry) VisibilityScaler {
	s, ok := addons.Lookup[VisibilityScaler](r, PehkuiAddon)
	if !ok {
		return nil
	}
	return s
}

// GameRule is a Rules backed by an atomic flag so the host can flip it from
// its command thread.
type GameRule struct{ v atomic.Bool }

func NewGameRule(enabled bool) *GameRule {
	r := &GameRule{}
	r.v.Store(enabled)
	return r
}

func (r *GameRule) Enabled() bool { return r.v.Load() }

func (r *GameRule) Set(enabled bool) { r.v.Store(enabled) }

type Options struct {
	SearchRadius   int
	SearchHeight   int
	SlowSpeedBonus float64
	FastSpeedBonus float64
	Scaler         VisibilityScaler
	Logger         *log.Logger
}

func DefaultOptions() Options {
	return Options{
		SearchRadius:   16,
		SearchHeight:   7,
		SlowSpeedBonus: 0.8,
		FastSpeedBonus: 1.3,
	}
}

// Host bundles the engine objects one goal works against.
type Host struct {
	Mob       Mob
	Nav       Navigator
	World     World
	Targeting Targeting
	// Rules may be nil, meaning always enabled.
	Rules Rules
}
