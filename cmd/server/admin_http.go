package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scarify.ai/internal/addons"
	"scarify.ai/internal/console"
	"scarify.ai/internal/flee"
	"scarify.ai/internal/persistence/backup"
	"scarify.ai/internal/persistence/offsite"
	"scarify.ai/internal/scarify"
	"scarify.ai/internal/serverconfig"
	"scarify.ai/internal/transport/ws"
)

// app carries everything the HTTP handlers need.
type app struct {
	cfg    serverconfig.Config
	host   *console.Host
	ws     *ws.Server
	idx    runtimeIndex
	mirror *offsite.Mirror
	rule   *flee.GameRule
	roster *flee.Roster
	flee   *flee.Factory
	addons *addons.Registry
	log    *log.Logger
	now    func() time.Time
}

func (a *app) routes(enableAdmin bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", a.handleMetrics)
	mux.HandleFunc("/v1/console", a.ws.Handler())

	if enableAdmin {
		mux.HandleFunc("/admin/v1/state", a.loopbackOnly(a.handleState))
		mux.HandleFunc("/admin/v1/players", a.loopbackOnly(a.handlePlayers))
		mux.HandleFunc("/admin/v1/backup", a.loopbackOnly(a.handleBackup))
		mux.HandleFunc("/admin/v1/gamerule", a.loopbackOnly(a.handleGameRule))
		mux.HandleFunc("/admin/v1/flee/preview", a.loopbackOnly(a.handleFleePreview))
	} else {
		a.log.Printf("admin endpoints disabled (SCARIFY_ENABLE_ADMIN_HTTP=false)")
	}
	return mux
}

func (a *app) loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (a *app) state(r *http.Request) (console.State, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	return a.host.State(ctx)
}

func (a *app) handleState(rw http.ResponseWriter, r *http.Request) {
	st, err := a.state(r)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	online := st.Online
	if online == nil {
		online = []string{}
	}
	resp := struct {
		ConfigPath    string   `json:"config_path"`
		Config        string   `json:"config"`
		Players       int      `json:"players"`
		Online        []string `json:"online"`
		Sessions      int      `json:"sessions"`
		EnableScarify bool     `json:"enable_scarify"`
		Addons        []string `json:"addons"`
		Flee          any      `json:"flee"`
	}{
		ConfigPath:    a.cfg.ConfigPath,
		Config:        st.Text,
		Players:       len(st.Players),
		Online:        online,
		Sessions:      len(a.ws.Sessions()),
		EnableScarify: a.rule.Enabled(),
		Addons:        append([]string{}, a.addons.Names()...),
		Flee:          a.cfg.Flee,
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (a *app) handlePlayers(rw http.ResponseWriter, r *http.Request) {
	st, err := a.state(r)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	players := st.Players
	if players == nil {
		players = []scarify.PlayerInfo{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"players": players})
}

func (a *app) handleBackup(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	st, err := a.state(r)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	path, err := backup.Write(a.cfg.BackupDir(), a.cfg.ConfigPath, st.Text, a.now())
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	a.mirror.Enqueue(path)
	pruned, err := backup.Prune(a.cfg.BackupDir(), a.cfg.Backups.Keep)
	if err != nil {
		a.log.Printf("backup prune: %v", err)
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "path": path, "pruned": pruned})
}

// handleGameRule reports the enableScarify rule; POST ?enable_scarify=bool
// flips it.
func (a *app) handleGameRule(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get("enable_scarify")))
		if err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "enable_scarify must be a bool"})
			return
		}
		a.rule.Set(v)
		a.log.Printf("gamerule enableScarify=%v", v)
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "enable_scarify": a.rule.Enabled()})
}

func (a *app) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	players := -1
	if st, err := a.state(r); err == nil {
		players = len(st.Players)
	}
	fmt.Fprintf(rw, "# HELP scarify_players Players registered as scary.\n")
	fmt.Fprintf(rw, "# TYPE scarify_players gauge\n")
	fmt.Fprintf(rw, "scarify_players %d\n", players)

	fmt.Fprintf(rw, "# HELP scarify_console_sessions Connected remote console sessions.\n")
	fmt.Fprintf(rw, "# TYPE scarify_console_sessions gauge\n")
	fmt.Fprintf(rw, "scarify_console_sessions %d\n", len(a.ws.Sessions()))

	enabled := 0
	if a.rule.Enabled() {
		enabled = 1
	}
	fmt.Fprintf(rw, "# HELP scarify_enabled Value of the enableScarify game rule.\n")
	fmt.Fprintf(rw, "# TYPE scarify_enabled gauge\n")
	fmt.Fprintf(rw, "scarify_enabled %d\n", enabled)

	if a.mirror != nil {
		m := a.mirror.Stats()
		fmt.Fprintf(rw, "# HELP scarify_offsite_queue_depth Offsite mirror backlog.\n")
		fmt.Fprintf(rw, "# TYPE scarify_offsite_queue_depth gauge\n")
		fmt.Fprintf(rw, "scarify_offsite_queue_depth %d\n", m.QueueDepth)
		fmt.Fprintf(rw, "# HELP scarify_offsite_uploads_total Offsite uploads by outcome.\n")
		fmt.Fprintf(rw, "# TYPE scarify_offsite_uploads_total counter\n")
		fmt.Fprintf(rw, "scarify_offsite_uploads_total{result=%q} %d\n", "ok", m.UploadSuccessTotal)
		fmt.Fprintf(rw, "scarify_offsite_uploads_total{result=%q} %d\n", "fail", m.UploadFailTotal)
		fmt.Fprintf(rw, "scarify_offsite_uploads_total{result=%q} %d\n", "dropped", m.DroppedTotal)
	}

	if a.idx == nil {
		return
	}
	s := a.idx.Stats()
	fmt.Fprintf(rw, "# HELP scarify_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE scarify_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "scarify_index_queue_depth %d\n", s.QueueDepth)
	fmt.Fprintf(rw, "# HELP scarify_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE scarify_index_dropped_total counter\n")
	fmt.Fprintf(rw, "scarify_index_dropped_total{kind=%q} %d\n", "audit", s.DropAuditTotal)
	fmt.Fprintf(rw, "scarify_index_dropped_total{kind=%q} %d\n", "players", s.DropPlayersTotal)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
