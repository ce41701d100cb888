// Package config loads the Beatify configuration from YAML, environment
// variables and command-line flags, and watches the file for changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/logger"
)

// DefaultPath is looked up in the working directory when no path is given.
const DefaultPath = "beatify.yaml"

// Environment variables overriding file values.
const (
	EnvMode      = "BEATIFY_MODE"
	EnvFPS       = "BEATIFY_FPS"
	EnvVolume    = "BEATIFY_VOLUME"
	EnvMockAudio = "BEATIFY_MOCK_AUDIO"
	EnvDevice    = "BEATIFY_CAPTURE_DEVICE"
	EnvLogFormat = "BEATIFY_LOG_FORMAT"
)

// Config is the application configuration.
type Config struct {
	App    AppConfig     `yaml:"app"`
	Audio  AudioConfig   `yaml:"audio"`
	Render RenderConfig  `yaml:"render"`
	Tracks []TrackConfig `yaml:"tracks"`
	Log    LogConfig     `yaml:"log"`
}

// AppConfig holds window and identity settings.
type AppConfig struct {
	ID           string  `yaml:"id"`            // Fyne application ID
	Name         string  `yaml:"name"`          // Window title
	WindowWidth  float32 `yaml:"window_width"`  // Initial window width in layout pixels
	WindowHeight float32 `yaml:"window_height"` // Initial window height in layout pixels
}

// AudioConfig holds output and capture settings.
type AudioConfig struct {
	Mock            bool    `yaml:"mock"`               // Use the in-memory platform with a synthetic signal
	Volume          float64 `yaml:"volume"`             // Initial element volume (0.0 to 1.0)
	SampleRate      int     `yaml:"sample_rate"`        // Output and capture sample rate in Hz
	CaptureFrames   int     `yaml:"capture_frames"`     // Frames per capture buffer
	CaptureDevice   int     `yaml:"capture_device"`     // PortAudio input device index (-1 for default)
	MaxRemoteSizeMB int     `yaml:"max_remote_size_mb"` // Download cap for http(s) sources
}

// RenderConfig holds visualizer settings.
type RenderConfig struct {
	FPS  int    `yaml:"fps"`  // Frame rate of the display ticker
	Mode string `yaml:"mode"` // Initial mode: Bars, Wave or Radial
}

// TrackConfig is a built-in trial track.
type TrackConfig struct {
	Name string `yaml:"name"`
	Src  string `yaml:"src"` // File path or http(s) URL
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // text or json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			ID:           "com.beatify.app",
			Name:         "Beatify",
			WindowWidth:  960,
			WindowHeight: 640,
		},
		Audio: AudioConfig{
			Volume:          0.3,
			SampleRate:      44100,
			CaptureFrames:   512,
			CaptureDevice:   -1,
			MaxRemoteSizeMB: 64,
		},
		Render: RenderConfig{
			FPS:  60,
			Mode: domain.ModeBars.String(),
		},
		Tracks: []TrackConfig{
			{Name: "Mr Smith", Src: "music/Mr Smith - Hip Shot.mp3"},
			{Name: "Oneosune", Src: "music/Oneosune - Ancient Ruins.mp3"},
			{Name: "VADE", Src: "music/VADE - Chinatown.mp3"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// environment overrides, then validates it. An empty path uses DefaultPath
// when it exists and the defaults otherwise.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.App.ID == "" {
		errs = append(errs, errors.New("app.id must be set"))
	}
	if c.App.WindowWidth <= 0 || c.App.WindowHeight <= 0 {
		errs = append(errs, fmt.Errorf("app window size %gx%g must be positive", c.App.WindowWidth, c.App.WindowHeight))
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		errs = append(errs, fmt.Errorf("audio.volume %g: %w", c.Audio.Volume, domain.ErrInvalidVolume))
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d out of range 8000-192000", c.Audio.SampleRate))
	}
	if c.Audio.CaptureFrames <= 0 {
		errs = append(errs, fmt.Errorf("audio.capture_frames %d must be positive", c.Audio.CaptureFrames))
	}
	if c.Audio.MaxRemoteSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("audio.max_remote_size_mb %d must be positive", c.Audio.MaxRemoteSizeMB))
	}
	if c.Render.FPS < 1 || c.Render.FPS > 240 {
		errs = append(errs, fmt.Errorf("render.fps %d out of range 1-240", c.Render.FPS))
	}
	if _, err := domain.ParseMode(c.Render.Mode); err != nil {
		errs = append(errs, fmt.Errorf("render.mode: %w", err))
	}
	if _, ok := logger.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	for i, t := range c.Tracks {
		if strings.TrimSpace(t.Src) == "" {
			errs = append(errs, fmt.Errorf("tracks[%d].src must be set", i))
		}
	}

	return errors.Join(errs...)
}

// Mode returns the parsed initial mode.
func (c *Config) Mode() domain.Mode {
	mode, _ := domain.ParseMode(c.Render.Mode)
	return mode
}

// TrialTracks converts the track list to domain tracks.
func (c *Config) TrialTracks() []domain.Track {
	tracks := make([]domain.Track, 0, len(c.Tracks))
	for _, t := range c.Tracks {
		tracks = append(tracks, domain.Track{Name: t.Name, Src: t.Src, Trial: true})
	}
	return tracks
}

func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv(EnvMode); ok {
		c.Render.Mode = val
	}
	if val, ok := os.LookupEnv(EnvFPS); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Render.FPS = n
		}
	}
	if val, ok := os.LookupEnv(EnvVolume); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Audio.Volume = f
		}
	}
	if val, ok := os.LookupEnv(EnvMockAudio); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Audio.Mock = b
		}
	}
	if val, ok := os.LookupEnv(EnvDevice); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Audio.CaptureDevice = n
		}
	}
	if val, ok := os.LookupEnv(logger.EnvLevel); ok {
		c.Log.Level = val
	}
	if val, ok := os.LookupEnv(EnvLogFormat); ok {
		c.Log.Format = val
	}
}
