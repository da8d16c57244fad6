package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"dirsweep/internal/deltree"
)

// Target is one directory tree swept on every run
type Target struct {
	Path     string   `yaml:"path" json:"path"`
	Options  []string `yaml:"options" json:"options"`     // Delete options, e.g. override-read-only
	Recreate bool     `yaml:"recreate" json:"recreate"`   // Recreate the empty root after the sweep
	MaxDepth int      `yaml:"max_depth" json:"max_depth"` // Overrides the global max_depth when set
}

type PrometheusCfg struct {
	Port int `yaml:"port" json:"port"`
}

// APICfg configures the authenticated sweep API. A zero port disables it.
type APICfg struct {
	Port          int     `yaml:"port" json:"port"`
	JWTSecretFile string  `yaml:"jwt_secret_file" json:"jwt_secret_file"` // HS256 signing key; empty leaves the API open
	RateLimit     float64 `yaml:"rate_limit_per_second" json:"rate_limit_per_second"`
	RateBurst     int     `yaml:"rate_burst" json:"rate_burst"`
}

type LoggingCfg struct {
	Level        string `yaml:"level" json:"level"`                 // debug, info, warn, error
	Format       string `yaml:"format" json:"format"`               // text or json
	File         string `yaml:"file" json:"file"`                   // Optional log file, rotated by age
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
}

type ResourceLimits struct {
	MaxCPUPercent float64 `yaml:"max_cpu_percent" json:"max_cpu_percent"` // Maximum CPU usage (e.g., 10.0)
}

type WorkerPoolConfig struct {
	Concurrency int `yaml:"concurrency" json:"concurrency"` // Sibling subtrees walked at once; 1 is sequential
}

type Config struct {
	Targets         []Target         `yaml:"targets" json:"targets"`
	AllowedRoots    []string         `yaml:"allowed_roots" json:"allowed_roots"`
	ProtectedPaths  []string         `yaml:"protected_paths" json:"protected_paths"`
	IntervalMinutes int              `yaml:"interval_minutes" json:"interval_minutes"`
	MissingOK       bool             `yaml:"missing_ok" json:"missing_ok"` // A missing target is skipped instead of failing
	MaxDepth        int              `yaml:"max_depth" json:"max_depth"`
	Prometheus      PrometheusCfg    `yaml:"prometheus" json:"prometheus"`
	API             APICfg           `yaml:"api" json:"api"`
	Logging         LoggingCfg       `yaml:"logging" json:"logging"`
	ResourceLimits  ResourceLimits   `yaml:"resource_limits" json:"resource_limits"`
	WorkerPool      WorkerPoolConfig `yaml:"worker_pool" json:"worker_pool"`
	NFSTimeout      int              `yaml:"nfs_timeout_seconds" json:"nfs_timeout_seconds"` // Timeout for NFS operations
	DatabasePath    string           `yaml:"database_path" json:"database_path"`             // SQLite sweep history
}

var (
	ErrNoTargets       = errors.New("configuration must specify targets")
	ErrInvalidPath     = errors.New("path must be absolute")
	ErrInvalidLevel    = errors.New("unknown log level")
	ErrInvalidFormat   = errors.New("log format must be text or json")
	ErrNegativeSetting = errors.New("setting cannot be negative")
)

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes, validates and defaults a configuration
func Parse(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if len(c.Targets) == 0 {
		return ErrNoTargets
	}

	if c.IntervalMinutes < 0 || c.MaxDepth < 0 || c.WorkerPool.Concurrency < 0 || c.NFSTimeout < 0 {
		return ErrNegativeSetting
	}
	if c.IntervalMinutes == 0 {
		c.IntervalMinutes = 15
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = deltree.DefaultMaxDepth
	}
	if c.WorkerPool.Concurrency == 0 {
		c.WorkerPool.Concurrency = 1
	}

	if c.Prometheus.Port == 0 {
		c.Prometheus.Port = 9090
	}

	if c.API.Port < 0 || c.API.RateLimit < 0 || c.API.RateBurst < 0 {
		return ErrNegativeSetting
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = 1
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = 5
	}

	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if !lo.Contains([]string{"trace", "debug", "info", "warn", "warning", "error"}, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("%w: %s", ErrInvalidLevel, c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("%w: %s", ErrInvalidFormat, c.Logging.Format)
	}

	if c.ResourceLimits.MaxCPUPercent <= 0 {
		c.ResourceLimits.MaxCPUPercent = 100 // No throttling
	}

	if c.NFSTimeout == 0 {
		c.NFSTimeout = 5
	}

	if c.DatabasePath == "" {
		c.DatabasePath = "/var/lib/dirsweep/sweeps.db"
	}

	for i := range c.Targets {
		t := &c.Targets[i]
		cp, err := cleanAbsolute(t.Path)
		if err != nil {
			return fmt.Errorf("target %d: %w", i, err)
		}
		t.Path = cp
		if t.MaxDepth < 0 {
			return fmt.Errorf("target %s: max_depth: %w", t.Path, ErrNegativeSetting)
		}
		if _, err := deltree.ParseDeleteOptions(t.Options); err != nil {
			return fmt.Errorf("target %s: %w", t.Path, err)
		}
	}
	// First entry for a path wins
	c.Targets = lo.UniqBy(c.Targets, func(t Target) string { return t.Path })

	for _, list := range []*[]string{&c.AllowedRoots, &c.ProtectedPaths} {
		cleaned := make([]string, 0, len(*list))
		for _, p := range *list {
			cp, err := cleanAbsolute(p)
			if err != nil {
				return err
			}
			cleaned = append(cleaned, cp)
		}
		*list = lo.Uniq(cleaned)
	}
	// Without explicit roots each target only authorizes itself
	if len(c.AllowedRoots) == 0 {
		c.AllowedRoots = c.TargetPaths()
	}

	return nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", ErrInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	return cp, nil
}

// DeleteOptions returns the parsed options of the target. Load has already
// rejected unknown names.
func (t Target) DeleteOptions() deltree.DeleteOptions {
	opts, _ := deltree.ParseDeleteOptions(t.Options)
	return opts
}

// Depth returns the walk depth limit for t
func (c *Config) Depth(t Target) int {
	if t.MaxDepth > 0 {
		return t.MaxDepth
	}
	return c.MaxDepth
}

// TargetPaths lists the configured target paths
func (c *Config) TargetPaths() []string {
	return lo.Map(c.Targets, func(t Target, _ int) string { return t.Path })
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c *Config) NFSTimeoutDuration() time.Duration {
	return time.Duration(c.NFSTimeout) * time.Second
}

func (c *Config) PrometheusAddress() string {
	return fmt.Sprintf(":%d", c.Prometheus.Port)
}

func (c *Config) APIAddress() string {
	return fmt.Sprintf(":%d", c.API.Port)
}
