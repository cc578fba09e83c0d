package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forceviz/forceviz/internal/core/colorgrad"
	"github.com/forceviz/forceviz/internal/core/sensorfield"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	ramp, err := cfg.Ramp.Build()
	require.NoError(t, err)
	assert.Equal(t, colorgrad.DefaultRamp(), ramp)
	assert.Equal(t, time.Second/60, cfg.Field.TickInterval())
}

func TestLoadOverridesDefaults(t *testing.T) {
	doc := `
ramp:
  low: "#0000FF"
  threshold: 10
field:
  stale_policy: hide
server:
  listen_addr: ":9000"
  write_timeout: 2s
`
	cfg, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "#0000FF", cfg.Ramp.Low)
	assert.Equal(t, "FF0000", cfg.Ramp.High)
	assert.Equal(t, 10.0, cfg.Ramp.Threshold)
	assert.Equal(t, 0.66, cfg.Ramp.Alpha)
	assert.Equal(t, "hide", cfg.Field.StalePolicy)
	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.Equal(t, 2*time.Second, cfg.Server.WriteTimeout)

	opts, err := cfg.FieldOptions()
	require.NoError(t, err)
	f := sensorfield.New(opts...)
	assert.Equal(t, colorgrad.Blue, f.Ramp().Low)
	assert.Equal(t, sensorfield.StaleHide, f.StalePolicy())
}

func TestLoadEmptyDocument(t *testing.T) {
	cfg, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("empty document changed defaults (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad hex", "ramp:\n  high: 12345Z\n"},
		{"zero threshold", "ramp:\n  threshold: 0\n"},
		{"alpha above one", "ramp:\n  alpha: 1.5\n"},
		{"unknown policy", "field:\n  stale_policy: drop\n"},
		{"zero tick rate", "field:\n  tick_rate: 0\n"},
		{"inverted slider", "sliders:\n  force:\n    min: 5\n    max: -5\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"bad encoding", "log:\n  encoding: xml\n"},
		{"cert without key", "server:\n  tls_cert_file: cert.pem\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(strings.NewReader("rampp:\n  low: 00FF00\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "forceviz.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n  encoding: console\n"), 0o600))
	cfg, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Encoding)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWatcherReloadsValidEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forceviz.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ramp:\n  threshold: 10\n"), 0o600))

	got := make(chan Config, 4)
	w, err := NewWatcher(path, func(c Config) {
		select {
		case got <- c:
		default:
		}
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// An invalid edit is skipped; the valid one after it is delivered.
	require.NoError(t, os.WriteFile(path, []byte("ramp:\n  threshold: 0\n"), 0o600))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("ramp:\n  threshold: 40\n"), 0o600))

	want := Default()
	want.Ramp.Threshold = 40
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-got:
			if c.Ramp.Threshold != 40 {
				continue
			}
			if diff := cmp.Diff(want, c); diff != "" {
				t.Fatalf("reloaded config mismatch (-want +got):\n%s", diff)
			}
			return
		case <-timeout:
			t.Fatal("no reload delivered")
		}
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forceviz.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	got := make(chan Config, 1)
	w, err := NewWatcher(path, func(c Config) { got <- c }, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600))
	select {
	case <-got:
		t.Fatal("reload for an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
	cancel()
	require.NoError(t, <-done)
}

func TestNewWatcherMissingDirectory(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope", "forceviz.yaml"), func(Config) {})
	assert.Error(t, err)
}

func TestLogConfigOutputPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forceviz.log")
	cfg, err := Load(strings.NewReader("log:\n  level: debug\n  output_paths: [" + path + "]\n  development: true\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{path}, cfg.Log.OutputPaths)
	assert.True(t, cfg.Log.Development)

	logger, err := cfg.Log.Logger()
	require.NoError(t, err)
	logger.Info("written to file")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")

	cfg.Log.OutputPaths = []string{filepath.Join(t.TempDir(), "missing", "dir", "x.log")}
	_, err = cfg.Log.Logger()
	assert.Error(t, err)
}
