package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"scarify.ai/internal/addons"
	"scarify.ai/internal/console"
	"scarify.ai/internal/flee"
	"scarify.ai/internal/persistence/backup"
	"scarify.ai/internal/persistence/offsite"
	persistlog "scarify.ai/internal/persistence/log"
	"scarify.ai/internal/scarify"
	"scarify.ai/internal/serverconfig"
	"scarify.ai/internal/transport/ws"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/server.yaml", "server config path (defaults apply if missing)")
		addr       = flag.String("addr", "", "http listen address (default: console.listen)")
		dataDir    = flag.String("data", "", "runtime data directory (default: data_dir)")
		cfgPath    = flag.String("cfg", "", "scarify config file (default: config_path)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read model")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := serverconfig.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load config: %v", err)
		}
		logger.Printf("server config not found (%s); using defaults", *configPath)
		cfg = serverconfig.Defaults()
	}
	if v := strings.TrimSpace(*addr); v != "" {
		cfg.Console.Listen = v
	}
	if v := strings.TrimSpace(*dataDir); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(*cfgPath); v != "" {
		cfg.ConfigPath = v
	}
	if v := strings.TrimSpace(os.Getenv("SCARIFY_CONSOLE_TOKEN")); v != "" {
		cfg.Console.Token = v
	}
	_ = os.MkdirAll(cfg.DataDir, 0o755)

	mirror, err := buildMirror(cfg, logger)
	if err != nil {
		logger.Fatalf("offsite mirror: %v", err)
	}
	defer mirror.Close()

	backupOnStartup(cfg, mirror, logger)

	idx, err := openRuntimeIndex(cfg, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	auditLog := persistlog.NewAuditLogger(cfg.DataDir, persistlog.LoggerOptions{OnClose: mirror.Enqueue})
	defer auditLog.Close()
	roster := flee.NewRoster()
	sinks := scarify.AuditSinks{auditLog}
	readModels := console.ReadModels{roster}
	if idx != nil {
		sinks = append(sinks, idx)
		readModels = append(readModels, idx)
	}

	reg := scarify.Open(cfg.ConfigPath, cfg.WarnIfMissing, logger)
	logger.Printf("loaded %s players=%d", cfg.ConfigPath, len(reg.Players()))

	host := console.New(reg, console.Options{
		RequiredLevel: cfg.PermissionLevel,
		Audit:         sinks,
		ReadModel:     readModels,
		Logger:        logger,
	})

	// Add-ons register here before the flee factory resolves them.
	ads := addons.New()
	rule := flee.NewGameRule(cfg.EnableScarify)
	fleeGoals := newFleeFactory(cfg, rule, roster, ads, logger)

	ctx, cancel := signalContext()
	defer cancel()

	hostDone := make(chan struct{})
	go func() {
		defer close(hostDone)
		if err := host.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("console host stopped: %v", err)
		}
	}()

	a := &app{
		cfg:    cfg,
		host:   host,
		ws:     ws.NewServer(host, ws.Options{Token: cfg.Console.Token}, logger),
		idx:    idx,
		mirror: mirror,
		rule:   rule,
		roster: roster,
		flee:   fleeGoals,
		addons: ads,
		log:    logger,
		now:    time.Now,
	}
	if cfg.Console.Token == "" && !isLoopbackListen(cfg.Console.Listen) {
		logger.Printf("warning: console on %s has no token", cfg.Console.Listen)
	}

	srv := &http.Server{
		Addr:              cfg.Console.Listen,
		Handler:           a.routes(envBool("SCARIFY_ENABLE_ADMIN_HTTP", true)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", cfg.Console.Listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-hostDone
	reg.Save()
}

// backupOnStartup copies the config file as found on disk before the
// server can rewrite it.
func backupOnStartup(cfg serverconfig.Config, mirror *offsite.Mirror, logger *log.Logger) {
	b, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Printf("backup: read %s: %v", cfg.ConfigPath, err)
		}
		return
	}
	path, err := backup.Write(cfg.BackupDir(), cfg.ConfigPath, string(b), time.Now())
	if err != nil {
		logger.Printf("backup: %v", err)
		return
	}
	mirror.Enqueue(path)
	if n, err := backup.Prune(cfg.BackupDir(), cfg.Backups.Keep); err != nil {
		logger.Printf("backup prune: %v", err)
	} else if n > 0 {
		logger.Printf("backup: pruned %d old backups", n)
	}
	logger.Printf("backup: %s", path)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackListen(addr string) bool {
	return isLoopbackRemote(addr) || strings.HasPrefix(addr, "localhost:")
}
