package serverconfig

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"scarify.ai/internal/flee"
)

const (
	IndexSQLite = "sqlite"
	IndexNone   = "none"
)

type Config struct {
	ConfigPath      string `yaml:"config_path"`
	DataDir         string `yaml:"data_dir"`
	WarnIfMissing   bool   `yaml:"warn_if_missing"`
	EnableScarify   bool   `yaml:"enable_scarify"`
	PermissionLevel int    `yaml:"permission_level"`

	Console Console `yaml:"console"`
	Flee    Flee    `yaml:"flee"`
	Index   Index   `yaml:"index"`
	Backups Backups `yaml:"backups"`
	Offsite Offsite `yaml:"offsite"`
}

type Console struct {
	Listen string `yaml:"listen"`
	Token  string `yaml:"token"`
}

type Flee struct {
	SearchRadius   int     `yaml:"search_radius" json:"search_radius"`
	SearchHeight   int     `yaml:"search_height" json:"search_height"`
	SlowSpeedBonus float64 `yaml:"slow_speed_bonus" json:"slow_speed_bonus"`
	FastSpeedBonus float64 `yaml:"fast_speed_bonus" json:"fast_speed_bonus"`
}

type Index struct {
	Backend string `yaml:"backend"`
}

type Backups struct {
	Keep int `yaml:"keep"`
}

// Offsite mirrors backups and closed audit files to an S3-compatible
// bucket. Credentials come from SCARIFY_OFFSITE_ACCESS_KEY_ID and
// SCARIFY_OFFSITE_SECRET_ACCESS_KEY, never from the file.
type Offsite struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Workers  int    `yaml:"workers"`
}

func Defaults() Config {
	d := flee.DefaultOptions()
	return Config{
		ConfigPath:      "./config/scarify.cfg",
		DataDir:         "./data",
		EnableScarify:   true,
		PermissionLevel: 1,
		Console:         Console{Listen: "127.0.0.1:8095"},
		Flee: Flee{
			SearchRadius:   d.SearchRadius,
			SearchHeight:   d.SearchHeight,
			SlowSpeedBonus: d.SlowSpeedBonus,
			FastSpeedBonus: d.FastSpeedBonus,
		},
		Index:   Index{Backend: IndexSQLite},
		Backups: Backups{Keep: 10},
		Offsite: Offsite{Workers: 2},
	}
}

// Load reads path over Defaults. An empty path returns the defaults; a
// missing file returns an error satisfying os.IsNotExist.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("server.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("server.yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	d := Defaults()
	c.ConfigPath = strings.TrimSpace(c.ConfigPath)
	if c.ConfigPath == "" {
		c.ConfigPath = d.ConfigPath
	}
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	c.Console.Listen = strings.TrimSpace(c.Console.Listen)
	if c.Console.Listen == "" {
		c.Console.Listen = d.Console.Listen
	}
	c.Index.Backend = strings.ToLower(strings.TrimSpace(c.Index.Backend))
	if c.Index.Backend == "" {
		c.Index.Backend = d.Index.Backend
	}
	c.Offsite.Endpoint = strings.TrimSpace(c.Offsite.Endpoint)
	c.Offsite.Bucket = strings.TrimSpace(c.Offsite.Bucket)
	if c.Offsite.Workers <= 0 {
		c.Offsite.Workers = d.Offsite.Workers
	}
}

func (c Config) Validate() error {
	if c.PermissionLevel < 0 || c.PermissionLevel > 4 {
		return fmt.Errorf("permission_level must be in [0, 4]")
	}
	if _, _, err := net.SplitHostPort(c.Console.Listen); err != nil {
		return fmt.Errorf("console.listen: %w", err)
	}
	if c.Flee.SearchRadius <= 0 || c.Flee.SearchHeight <= 0 {
		return fmt.Errorf("flee search_radius and search_height must be > 0")
	}
	if c.Flee.SlowSpeedBonus < 0 || c.Flee.FastSpeedBonus < 0 {
		return fmt.Errorf("flee speed bonuses must be >= 0")
	}
	switch c.Index.Backend {
	case IndexSQLite, IndexNone:
	default:
		return fmt.Errorf("index.backend %q must be %s or %s", c.Index.Backend, IndexSQLite, IndexNone)
	}
	if c.Backups.Keep < 0 {
		return fmt.Errorf("backups.keep must be >= 0")
	}
	if c.Offsite.Enabled && (c.Offsite.Endpoint == "" || c.Offsite.Bucket == "") {
		return fmt.Errorf("offsite.endpoint and offsite.bucket are required when offsite.enabled")
	}
	return nil
}

func (c Config) FleeOptions() flee.Options {
	return flee.Options{
		SearchRadius:   c.Flee.SearchRadius,
		SearchHeight:   c.Flee.SearchHeight,
		SlowSpeedBonus: c.Flee.SlowSpeedBonus,
		FastSpeedBonus: c.Flee.FastSpeedBonus,
	}
}

func (c Config) AuditDir() string  { return filepath.Join(c.DataDir, "audit") }
func (c Config) BackupDir() string { return filepath.Join(c.DataDir, "backups") }
func (c Config) IndexPath() string { return filepath.Join(c.DataDir, "index", "scarify.sqlite") }
