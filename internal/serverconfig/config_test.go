package serverconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("cfg=%+v", cfg)
	}
	if !cfg.EnableScarify || cfg.Index.Backend != IndexSQLite || cfg.Backups.Keep != 10 {
		t.Fatalf("defaults=%+v", cfg)
	}
	opts := cfg.FleeOptions()
	if opts.SearchRadius != 16 || opts.SearchHeight != 7 || opts.SlowSpeedBonus != 0.8 || opts.FastSpeedBonus != 1.3 {
		t.Fatalf("flee=%+v", opts)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeYAML(t, `
config_path: /srv/scarify.cfg
enable_scarify: false
permission_level: 2
console:
  token: s3cret
flee:
  search_radius: 24
index:
  backend: " NONE "
offsite:
  enabled: true
  endpoint: " r2.example.com "
  bucket: scarify
  workers: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfigPath != "/srv/scarify.cfg" || cfg.EnableScarify || cfg.PermissionLevel != 2 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.Console.Token != "s3cret" || cfg.Console.Listen != "127.0.0.1:8095" {
		t.Fatalf("console=%+v", cfg.Console)
	}
	if cfg.Flee.SearchRadius != 24 || cfg.Flee.SearchHeight != 7 {
		t.Fatalf("flee=%+v", cfg.Flee)
	}
	if cfg.Index.Backend != IndexNone {
		t.Fatalf("backend=%q", cfg.Index.Backend)
	}
	if !cfg.Offsite.Enabled || cfg.Offsite.Endpoint != "r2.example.com" || cfg.Offsite.Workers != 2 {
		t.Fatalf("offsite=%+v", cfg.Offsite)
	}
	if cfg.IndexPath() != filepath.Join("data", "index", "scarify.sqlite") {
		t.Fatalf("index path=%s", cfg.IndexPath())
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(err) {
		t.Fatalf("missing file err=%v", err)
	}

	cases := []struct {
		body string
		want string
	}{
		{"permission_level: 9\n", "permission_level"},
		{"console:\n  listen: nope\n", "console.listen"},
		{"flee:\n  search_height: -1\n", "search_height"},
		{"flee:\n  fast_speed_bonus: -0.5\n", "speed bonuses"},
		{"index:\n  backend: d1\n", "index.backend"},
		{"backups:\n  keep: -1\n", "backups.keep"},
		{"offsite:\n  enabled: true\n  bucket: b\n", "offsite.endpoint"},
		{"console: [\n", "server.yaml"},
	}
	for _, tc := range cases {
		_, err := Load(writeYAML(t, tc.body))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%q: err=%v want %q", tc.body, err, tc.want)
		}
	}
}
