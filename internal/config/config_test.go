package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirsweep/internal/deltree"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
targets:
  - path: /srv/scratch
`))
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.IntervalMinutes)
	assert.Equal(t, 15*time.Minute, cfg.Interval())
	assert.Equal(t, deltree.DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, 1, cfg.WorkerPool.Concurrency)
	assert.Equal(t, ":9090", cfg.PrometheusAddress())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 30, cfg.Logging.RotationDays)
	assert.Equal(t, 5*time.Second, cfg.NFSTimeoutDuration())
	assert.Equal(t, "/var/lib/dirsweep/sweeps.db", cfg.DatabasePath)
	assert.True(t, cfg.Targets[0].DeleteOptions().IsEmpty())
	assert.Equal(t, []string{"/srv/scratch"}, cfg.AllowedRoots)
	assert.Zero(t, cfg.API.Port)
	assert.Equal(t, 1.0, cfg.API.RateLimit)
	assert.Equal(t, 5, cfg.API.RateBurst)
}

func TestParseTargets(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
max_depth: 64
targets:
  - path: /srv/scratch/
    options: [override-read-only]
    recreate: true
  - path: /tmp/build
    max_depth: 8
  - path: /srv/scratch
allowed_roots: [/srv, /tmp, /srv/]
`))
	require.NoError(t, err)

	require.Len(t, cfg.Targets, 2)
	assert.Equal(t, []string{"/srv/scratch", "/tmp/build"}, cfg.TargetPaths())
	assert.True(t, cfg.Targets[0].Recreate)
	assert.True(t, cfg.Targets[0].DeleteOptions().OverrideReadOnly())
	assert.Equal(t, 64, cfg.Depth(cfg.Targets[0]))
	assert.Equal(t, 8, cfg.Depth(cfg.Targets[1]))
	assert.Equal(t, []string{"/srv", "/tmp"}, cfg.AllowedRoots)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"no targets", "interval_minutes: 5\n", ErrNoTargets},
		{"relative target", "targets: [{path: scratch}]\n", ErrInvalidPath},
		{"empty target", "targets: [{path: ''}]\n", ErrInvalidPath},
		{"unknown option", "targets: [{path: /a, options: [follow-links]}]\n", deltree.ErrInvalidOptions},
		{"negative depth", "targets: [{path: /a, max_depth: -1}]\n", ErrNegativeSetting},
		{"negative interval", "interval_minutes: -1\ntargets: [{path: /a}]\n", ErrNegativeSetting},
		{"bad level", "logging: {level: loud}\ntargets: [{path: /a}]\n", ErrInvalidLevel},
		{"bad format", "logging: {format: xml}\ntargets: [{path: /a}]\n", ErrInvalidFormat},
		{"negative api port", "api: {port: -1}\ntargets: [{path: /a}]\n", ErrNegativeSetting},
		{"relative allowed root", "allowed_roots: [srv]\ntargets: [{path: /a}]\n", ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseUnknownField(t *testing.T) {
	_, err := Parse(strings.NewReader("targets: [{path: /a}]\nscan_paths: [/b]\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirsweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("targets: [{path: /var/tmp/x}]\nmissing_ok: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.MissingOK)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
