package main

import (
	"encoding/json"
	"log"
	"net/http"

	"scarify.ai/internal/addons"
	"scarify.ai/internal/flee"
	"scarify.ai/internal/serverconfig"
)

// newFleeFactory is the hook an embedding engine uses to attach flee goals to
// the mobs it loads. Add-ons must be registered before it is called.
func newFleeFactory(cfg serverconfig.Config, rule *flee.GameRule, roster *flee.Roster, ads *addons.Registry, logger *log.Logger) *flee.Factory {
	opts := cfg.FleeOptions()
	opts.Logger = logger
	opts.Scaler = flee.ResolveScaler(ads)
	if opts.Scaler == nil {
		logger.Printf("no visibility scaler add-on; flee distance uses follow range")
	}
	return flee.NewFactory(rule, roster, opts)
}

type previewPlayer struct {
	Name      string    `json:"name"`
	Pos       flee.Vec3 `json:"pos"`
	Creative  bool      `json:"creative"`
	Spectator bool      `json:"spectator"`
	Invisible bool      `json:"invisible"`
	// Hidden means the mob has no line of sight.
	Hidden    bool      `json:"hidden"`
}

type previewScene struct {
	Mob struct {
		Pos         flee.Vec3 `json:"pos"`
		Speed       float64   `json:"speed"`
		FollowRange float64   `json:"follow_range"`
	} `json:"mob"`
	Players []previewPlayer `json:"players"`
}

type scenePlayer struct{ p previewPlayer }

func (s scenePlayer) Name() string      { return s.p.Name }
func (s scenePlayer) Pos() flee.Vec3    { return s.p.Pos }
func (s scenePlayer) IsCreative() bool  { return s.p.Creative }
func (s scenePlayer) IsSpectator() bool { return s.p.Spectator }
func (s scenePlayer) IsInvisible() bool { return s.p.Invisible }

type sceneMob struct{ sc *previewScene }

func (m sceneMob) Pos() flee.Vec3         { return m.sc.Mob.Pos }
func (m sceneMob) MovementSpeed() float64 { return m.sc.Mob.Speed }
func (m sceneMob) FollowRange() float64   { return m.sc.Mob.FollowRange }
func (m sceneMob) CanSee(p flee.Player) bool {
	sp, ok := p.(scenePlayer)
	return !ok || !sp.p.Hidden
}

type sceneWorld []flee.Player

func (w sceneWorld) Players() []flee.Player { return w }

// idleNav and noTargeting stand in for an engine; a preview never moves.
type idleNav struct{}

func (idleNav) FindPathTo(flee.Vec3) (flee.Path, bool) { return nil, false }
func (idleNav) StartMovingAlong(flee.Path, float64)    {}
func (idleNav) IsIdle() bool                           { return true }
func (idleNav) SetSpeed(float64)                       {}

type noTargeting struct{}

func (noTargeting) FindFrom(flee.Mob, int, int, flee.Vec3) (flee.Vec3, bool) {
	return flee.Vec3{}, false
}

// handleFleePreview runs the configured flee goal against a posted scene and
// reports which player the mob would run from.
func (a *app) handleFleePreview(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var sc previewScene
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 1<<20)).Decode(&sc); err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad scene: " + err.Error()})
		return
	}
	world := make(sceneWorld, 0, len(sc.Players))
	for _, p := range sc.Players {
		world = append(world, scenePlayer{p: p})
	}
	g := a.flee.NewGoal(flee.Host{
		Mob:       sceneMob{sc: &sc},
		Nav:       idleNav{},
		World:     world,
		Targeting: noTargeting{},
	})

	enabled := a.flee.Rules().Enabled()
	target := ""
	if enabled {
		if p := g.ClosestPlayerInRange(); p != nil {
			target = p.Name()
		}
	}
	slow, fast := g.Speeds()
	writeJSON(rw, http.StatusOK, map[string]any{
		"ok":             true,
		"enable_scarify": enabled,
		"target":         target,
		"slow_speed":     slow,
		"fast_speed":     fast,
		"scaler":         a.flee.Options().Scaler != nil,
	})
}
