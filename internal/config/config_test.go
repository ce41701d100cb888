package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/logger"
	"github.com/tejashwikalptaru/beatify/internal/testutil"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beatify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "com.beatify.app", cfg.App.ID)
	assert.Equal(t, "Beatify", cfg.App.Name)
	assert.Equal(t, float32(960), cfg.App.WindowWidth)
	assert.Equal(t, float32(640), cfg.App.WindowHeight)
	assert.Equal(t, 60, cfg.Render.FPS)
	assert.Equal(t, domain.ModeBars, cfg.Mode())
	assert.Equal(t, 0.3, cfg.Audio.Volume)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 512, cfg.Audio.CaptureFrames)
	assert.Equal(t, -1, cfg.Audio.CaptureDevice)
	assert.False(t, cfg.Audio.Mock)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	require.Len(t, cfg.TrialTracks(), 3)
	assert.True(t, cfg.TrialTracks()[0].Trial)
}

func TestLoad_DefaultPathInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultPath), []byte("render:\n  mode: radial\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeRadial, cfg.Mode())
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_ParseError(t *testing.T) {
	path := writeTempConfig(t, ":\n:bad")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
app:
  name: Party
render:
  fps: 30
  mode: Wave
audio:
  volume: 0.8
  capture_device: 2
tracks:
  - name: Local
    src: /music/local.flac
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Party", cfg.App.Name)
	assert.Equal(t, "com.beatify.app", cfg.App.ID)
	assert.Equal(t, 30, cfg.Render.FPS)
	assert.Equal(t, domain.ModeWaveform, cfg.Mode())
	assert.Equal(t, 0.8, cfg.Audio.Volume)
	assert.Equal(t, 2, cfg.Audio.CaptureDevice)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, []domain.Track{{Name: "Local", Src: "/music/local.flac", Trial: true}}, cfg.TrialTracks())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeTempConfig(t, "render:\n  fps: 30\n")
	t.Setenv(EnvFPS, "90")
	t.Setenv(EnvMode, "radial")
	t.Setenv(EnvVolume, "0.5")
	t.Setenv(EnvMockAudio, "true")
	t.Setenv(EnvDevice, "3")
	t.Setenv(logger.EnvLevel, "warn")
	t.Setenv(EnvLogFormat, "json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 90, cfg.Render.FPS)
	assert.Equal(t, domain.ModeRadial, cfg.Mode())
	assert.Equal(t, 0.5, cfg.Audio.Volume)
	assert.True(t, cfg.Audio.Mock)
	assert.Equal(t, 3, cfg.Audio.CaptureDevice)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrideIgnoresGarbage(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvFPS, "fast")
	t.Setenv(EnvVolume, "loud")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Render.FPS)
	assert.Equal(t, 0.3, cfg.Audio.Volume)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty id", func(c *Config) { c.App.ID = "" }},
		{"zero window", func(c *Config) { c.App.WindowWidth = 0 }},
		{"volume too high", func(c *Config) { c.Audio.Volume = 1.5 }},
		{"volume negative", func(c *Config) { c.Audio.Volume = -0.1 }},
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 100 }},
		{"capture frames", func(c *Config) { c.Audio.CaptureFrames = 0 }},
		{"remote size", func(c *Config) { c.Audio.MaxRemoteSizeMB = 0 }},
		{"fps zero", func(c *Config) { c.Render.FPS = 0 }},
		{"fps too high", func(c *Config) { c.Render.FPS = 1000 }},
		{"unknown mode", func(c *Config) { c.Render.Mode = "Spiral" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"track without src", func(c *Config) { c.Tracks = []TrackConfig{{Name: "x"}} }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_VolumeWrapsSentinel(t *testing.T) {
	cfg := Default()
	cfg.Audio.Volume = 3
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidVolume)
}

func TestWatcher_Reload(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreConfigWatcher())

	path := writeTempConfig(t, "render:\n  fps: 30\n")
	w, err := NewWatcher(path, logger.NewTestLogger())
	require.NoError(t, err)
	defer func() { require.NoError(t, w.Close()) }()

	assert.Equal(t, 30, w.Get().Render.FPS)

	var got atomic.Int64
	w.OnReload(func(c *Config) { got.Store(int64(c.Render.FPS)) })

	require.NoError(t, os.WriteFile(path, []byte("render:\n  fps: 45\n"), 0o644))
	require.Eventually(t, func() bool { return got.Load() == 45 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 45, w.Get().Render.FPS)

	// An invalid file keeps the previous values
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte("render:\n  fps: -5\n"), 0o644))
	require.NoError(t, os.Rename(tmp, path))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 45, w.Get().Render.FPS)
}

func TestWatcher_MissingFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "none.yaml"), logger.NewTestLogger())
	assert.Error(t, err)
}

func TestWatcher_CloseIdempotent(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreConfigWatcher())

	w, err := NewWatcher(writeTempConfig(t, "{}\n"), logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
