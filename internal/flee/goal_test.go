package flee

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"scarify.ai/internal/addons"
)

type fakePlayer struct {
	name      string
	pos       Vec3
	creative  bool
	spectator bool
	invisible bool
}

func (p *fakePlayer) Name() string      { return p.name }
func (p *fakePlayer) Pos() Vec3         { return p.pos }
func (p *fakePlayer) IsCreative() bool  { return p.creative }
func (p *fakePlayer) IsSpectator() bool { return p.spectator }
func (p *fakePlayer) IsInvisible() bool { return p.invisible }

type fakeMob struct {
	pos    Vec3
	speed  float64
	follow float64
	blind  map[string]bool
}

func (m *fakeMob) Pos() Vec3              { return m.pos }
func (m *fakeMob) MovementSpeed() float64 { return m.speed }
func (m *fakeMob) FollowRange() float64   { return m.follow }
func (m *fakeMob) CanSee(p Player) bool   { return !m.blind[p.Name()] }

type fakeNav struct {
	noPath   bool
	idle     bool
	started  Path
	startSpd float64
	speed    float64
}

func (n *fakeNav) FindPathTo(target Vec3) (Path, bool) {
	if n.noPath {
		return nil, false
	}
	return target, true
}
func (n *fakeNav) StartMovingAlong(p Path, speed float64) { n.started, n.startSpd = p, speed }
func (n *fakeNav) IsIdle() bool                           { return n.idle }
func (n *fakeNav) SetSpeed(speed float64)                 { n.speed = speed }

type fakeTargeting struct {
	pos Vec3
	ok  bool
}

func (t fakeTargeting) FindFrom(Mob, int, int, Vec3) (Vec3, bool) { return t.pos, t.ok }

type fakeWorld []Player

func (w fakeWorld) Players() []Player { return w }

type fakeLookup struct {
	scary     map[string]bool
	overrides map[string]float64
}

func (l fakeLookup) IsScary(name string) bool { return l.scary[name] }
func (l fakeLookup) DistanceOverride(name string) (float64, bool) {
	v, ok := l.overrides[name]
	return v, ok
}

type scaler map[string]float64

func (s scaler) VisibilityScale(p Player) (float64, error) {
	v, ok := s[p.Name()]
	if !ok {
		return 0, errors.New("no scale data")
	}
	return v, nil
}

func scary(names ...string) fakeLookup {
	l := fakeLookup{scary: map[string]bool{}, overrides: map[string]float64{}}
	for _, n := range names {
		l.scary[n] = true
	}
	return l
}

func newGoal(world fakeWorld, lookup Lookup, opts Options) (*Goal, *fakeNav) {
	nav := &fakeNav{}
	host := Host{
		Mob:       &fakeMob{speed: 0.25, follow: 16, blind: map[string]bool{}},
		Nav:       nav,
		World:     world,
		Targeting: fakeTargeting{pos: Vec3{X: -10}, ok: true},
	}
	return NewGoal(host, lookup, opts), nav
}

func TestClosestPlayerInRange(t *testing.T) {
	near := &fakePlayer{name: "Near", pos: Vec3{X: 3}}
	far := &fakePlayer{name: "Far", pos: Vec3{X: 10}}
	g, _ := newGoal(fakeWorld{far, near}, scary("Near", "Far"), Options{})
	if got := g.ClosestPlayerInRange(); got != near {
		t.Fatalf("closest=%v", got)
	}
}

func TestClosestPlayerInRange_Filters(t *testing.T) {
	cases := []struct {
		name   string
		player *fakePlayer
		lookup fakeLookup
		blind  bool
	}{
		{"not scary", &fakePlayer{name: "P", pos: Vec3{X: 2}}, scary(), false},
		{"creative", &fakePlayer{name: "P", pos: Vec3{X: 2}, creative: true}, scary("P"), false},
		{"spectator", &fakePlayer{name: "P", pos: Vec3{X: 2}, spectator: true}, scary("P"), false},
		{"invisible", &fakePlayer{name: "P", pos: Vec3{X: 2}, invisible: true}, scary("P"), false},
		{"not visible", &fakePlayer{name: "P", pos: Vec3{X: 2}}, scary("P"), true},
		{"outside follow range", &fakePlayer{name: "P", pos: Vec3{X: 20}}, scary("P"), false},
		{"exactly at range", &fakePlayer{name: "P", pos: Vec3{X: 16}}, scary("P"), false},
	}
	for _, tc := range cases {
		g, _ := newGoal(fakeWorld{tc.player}, tc.lookup, Options{})
		if tc.blind {
			g.host.Mob.(*fakeMob).blind["P"] = true
		}
		if got := g.ClosestPlayerInRange(); got != nil {
			t.Fatalf("%s: got %s", tc.name, got.Name())
		}
	}
}

func TestClosestPlayerInRange_Override(t *testing.T) {
	p := &fakePlayer{name: "Steve", pos: Vec3{X: 20}}
	l := scary("Steve")
	l.overrides["Steve"] = 25
	g, _ := newGoal(fakeWorld{p}, l, Options{})
	if g.ClosestPlayerInRange() != p {
		t.Fatalf("override should extend range")
	}

	l.overrides["Steve"] = 2
	if g.ClosestPlayerInRange() != nil {
		t.Fatalf("override should shrink range")
	}
}

func TestClosestPlayerInRange_VisibilityScale(t *testing.T) {
	small := &fakePlayer{name: "Tiny", pos: Vec3{X: 10}}
	broken := &fakePlayer{name: "Broken", pos: Vec3{Z: 12}}

	var buf bytes.Buffer
	r := addons.New()
	r.Register(PehkuiAddon, scaler{"Tiny": 0.5})
	opts := Options{Scaler: ResolveScaler(r), Logger: log.New(&buf, "", 0)}

	g, _ := newGoal(fakeWorld{small, broken}, scary("Tiny", "Broken"), opts)
	if got := g.ClosestPlayerInRange(); got != broken {
		t.Fatalf("closest=%v", got)
	}
	if !strings.Contains(buf.String(), "no scale data") {
		t.Fatalf("scaler error not logged: %q", buf.String())
	}
}

func TestDefaultOptions(t *testing.T) {
	g, _ := newGoal(nil, scary(), Options{})
	if g.opts.SearchRadius != 16 || g.opts.SearchHeight != 7 {
		t.Fatalf("search ranges=%d,%d", g.opts.SearchRadius, g.opts.SearchHeight)
	}
	d := DefaultOptions()
	slow, fast := g.Speeds()
	if slow != 0.25+d.SlowSpeedBonus || fast != 0.25+d.FastSpeedBonus {
		t.Fatalf("speeds=%v,%v", slow, fast)
	}
}

func TestResolveScaler_Absent(t *testing.T) {
	if ResolveScaler(addons.New()) != nil {
		t.Fatalf("empty registry produced a scaler")
	}
	r := addons.New()
	r.Register(PehkuiAddon, "installed without scaler")
	if ResolveScaler(r) != nil {
		t.Fatalf("non-scaler add-on produced a scaler")
	}
}

func TestGoalLifecycle(t *testing.T) {
	p := &fakePlayer{name: "Steve", pos: Vec3{X: 4}}
	g, nav := newGoal(fakeWorld{p}, scary("Steve"), Options{SlowSpeedBonus: 0.5, FastSpeedBonus: 0.75})

	if !g.CanStart() {
		t.Fatalf("CanStart=false")
	}
	if g.Target() != p {
		t.Fatalf("target=%v", g.Target())
	}
	g.Start()
	slow, fast := g.Speeds()
	if slow != 0.75 || fast != 1 {
		t.Fatalf("speeds=%v,%v", slow, fast)
	}
	if nav.startSpd != slow || nav.started != (Vec3{X: -10}) {
		t.Fatalf("start speed=%v path=%v", nav.startSpd, nav.started)
	}
	g.Tick()
	if nav.speed != fast {
		t.Fatalf("tick speed=%v", nav.speed)
	}
	if !g.ShouldContinue() {
		t.Fatalf("should continue while navigating")
	}
	nav.idle = true
	if g.ShouldContinue() {
		t.Fatalf("should stop when idle")
	}
	g.Stop()
	if g.Target() != nil {
		t.Fatalf("Stop kept target")
	}
}

func TestCanStart_Rejections(t *testing.T) {
	p := &fakePlayer{name: "Steve", pos: Vec3{X: 4}}

	rule := NewGameRule(false)
	g, _ := newGoal(fakeWorld{p}, scary("Steve"), Options{})
	g.host.Rules = rule
	if g.CanStart() {
		t.Fatalf("started with rule disabled")
	}
	rule.Set(true)
	if !g.CanStart() {
		t.Fatalf("did not start with rule enabled")
	}

	g, _ = newGoal(fakeWorld{p}, scary("Steve"), Options{})
	g.host.Targeting = fakeTargeting{}
	if g.CanStart() {
		t.Fatalf("started without flee position")
	}

	g, _ = newGoal(fakeWorld{p}, scary("Steve"), Options{})
	g.host.Targeting = fakeTargeting{pos: Vec3{X: 3}, ok: true}
	if g.CanStart() {
		t.Fatalf("started toward the player")
	}

	g, nav := newGoal(fakeWorld{p}, scary("Steve"), Options{})
	nav.noPath = true
	if g.CanStart() {
		t.Fatalf("started without path")
	}
}

type fakeSelector struct {
	goals []any
	prios []int
}

func (s *fakeSelector) RemoveIf(f func(any) bool) {
	var goals []any
	var prios []int
	for i, g := range s.goals {
		if !f(g) {
			goals = append(goals, g)
			prios = append(prios, s.prios[i])
		}
	}
	s.goals, s.prios = goals, prios
}

func (s *fakeSelector) Add(priority int, goal any) {
	s.goals = append(s.goals, goal)
	s.prios = append(s.prios, priority)
}

func TestInject(t *testing.T) {
	sel := &fakeSelector{}
	sel.Add(3, "wander")
	first, _ := newGoal(nil, scary(), Options{})
	second, _ := newGoal(nil, scary(), Options{})

	Inject(sel, first)
	Inject(sel, second)
	if len(sel.goals) != 2 || sel.goals[1] != second || sel.prios[1] != 0 {
		t.Fatalf("goals=%v prios=%v", sel.goals, sel.prios)
	}
	if sel.goals[0] != "wander" {
		t.Fatalf("unrelated goal removed")
	}
}
