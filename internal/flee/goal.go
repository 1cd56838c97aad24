package flee

import "log"

// Goal makes one mob flee the closest visible scary player. The host's goal
// scheduler calls CanStart, Start, Tick, ShouldContinue and Stop on its own
// thread; the Lookup must be owned by that same thread.
type Goal struct {
	host   Host
	lookup Lookup
	opts   Options
	log    *log.Logger

	slowSpeed float64
	fastSpeed float64

	target   Player
	fleePath Path
}

func NewGoal(host Host, lookup Lookup, opts Options) *Goal {
	def := DefaultOptions()
	if opts.SearchRadius <= 0 {
		opts.SearchRadius = def.SearchRadius
	}
	if opts.SearchHeight <= 0 {
		opts.SearchHeight = def.SearchHeight
	}
	if opts.SlowSpeedBonus == 0 {
		opts.SlowSpeedBonus = def.SlowSpeedBonus
	}
	if opts.FastSpeedBonus == 0 {
		opts.FastSpeedBonus = def.FastSpeedBonus
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	speed := host.Mob.MovementSpeed()
	return &Goal{
		host:      host,
		lookup:    lookup,
		opts:      opts,
		log:       logger,
		slowSpeed: speed + opts.SlowSpeedBonus,
		fastSpeed: speed + opts.FastSpeedBonus,
	}
}

func (g *Goal) Target() Player { return g.target }

func (g *Goal) Speeds() (slow, fast float64) { return g.slowSpeed, g.fastSpeed }

func (g *Goal) CanStart() bool {
	if g.host.Rules != nil && !g.host.Rules.Enabled() {
		return false
	}
	g.target = g.ClosestPlayerInRange()
	if g.target == nil {
		return false
	}
	away := g.target.Pos()
	pos, ok := g.host.Targeting.FindFrom(g.host.Mob, g.opts.SearchRadius, g.opts.SearchHeight, away)
	if !ok {
		return false
	}
	// Never run toward the player.
	if away.SquaredDistance(pos) < away.SquaredDistance(g.host.Mob.Pos()) {
		return false
	}
	path, ok := g.host.Nav.FindPathTo(pos)
	if !ok {
		g.fleePath = nil
		return false
	}
	g.fleePath = path
	return true
}

// ClosestPlayerInRange returns the nearest scary player the mob can see and
// who is within the player's flee distance, or nil.
func (g *Goal) ClosestPlayerInRange() Player {
	mob := g.host.Mob
	var (
		best     Player
		bestDist float64
	)
	for _, p := range g.host.World.Players() {
		if !g.lookup.IsScary(p.Name()) ||
			p.IsCreative() ||
			p.IsSpectator() ||
			p.IsInvisible() ||
			!mob.CanSee(p) {
			continue
		}
		maxDist, ok := g.lookup.DistanceOverride(p.Name())
		if !ok {
			maxDist = mob.FollowRange() * g.visibilityScale(p)
		}
		maxDist *= maxDist
		d := mob.Pos().SquaredDistance(p.Pos())
		if d >= maxDist {
			continue
		}
		if best == nil || d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

func (g *Goal) visibilityScale(p Player) float64 {
	if g.opts.Scaler == nil {
		return 1
	}
	s, err := g.opts.Scaler.VisibilityScale(p)
	if err != nil {
		g.log.Printf("flee: visibility scale for %s: %v", p.Name(), err)
		return 1
	}
	return s
}

func (g *Goal) ShouldContinue() bool { return !g.host.Nav.IsIdle() }

func (g *Goal) Start() { g.host.Nav.StartMovingAlong(g.fleePath, g.slowSpeed) }

func (g *Goal) Stop() { g.target = nil }

func (g *Goal) Tick() { g.host.Nav.SetSpeed(g.fastSpeed) }

// Selector is the host's prioritized goal list for one mob.
type Selector interface {
	RemoveIf(func(goal any) bool)
	Add(priority int, goal any)
}

// Inject replaces any flee goal already on sel with g at top priority, so
// reloading a mob never stacks goals.
func Inject(sel Selector, g *Goal) {
	sel.RemoveIf(func(goal any) bool {
		_, ok := goal.(*Goal)
		return ok
	})
	sel.Add(0, g)
}
