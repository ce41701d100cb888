// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the application lifecycle.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"

	"github.com/tejashwikalptaru/beatify/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/beatify/internal/adapter/audio/native"
	"github.com/tejashwikalptaru/beatify/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/beatify/internal/adapter/frame"
	fyneui "github.com/tejashwikalptaru/beatify/internal/adapter/ui/fyne"
	"github.com/tejashwikalptaru/beatify/internal/config"
	"github.com/tejashwikalptaru/beatify/internal/logger"
	"github.com/tejashwikalptaru/beatify/internal/ports"
	"github.com/tejashwikalptaru/beatify/internal/service"
)

// Application is the root application structure that holds all dependencies.
// It follows the Dependency Injection pattern with constructor-based injection.
//
// The Application struct is responsible for:
// - Creating and wiring all dependencies
// - Managing the application lifecycle (startup, shutdown)
// - Applying configuration reloads
type Application struct {
	// Core dependencies
	logger   *slog.Logger
	logLevel *slog.LevelVar
	fyneApp  fyne.App

	// Configuration
	cfg       *config.Config
	overrides func(*config.Config)
	watcher   *config.Watcher

	// Infrastructure
	eventBus *eventbus.SyncEventBus
	platform ports.AudioPlatform
	element  ports.MediaElement
	frames   *frame.TickerScheduler

	// Services
	graph     *service.AudioGraphManager
	scheduler *service.RenderScheduler
	session   *service.Session
	catalog   *service.TrackCatalog

	// UI
	presenter  *fyneui.Presenter
	mainWindow *fyneui.MainWindow

	shutdownOnce sync.Once
	shutdownErr  error
}

// Options holds what NewApplication needs beyond the configuration values.
type Options struct {
	// Config is the loaded configuration (config.Default when nil)
	Config *config.Config

	// ConfigPath enables hot reload of the file at this path when set
	ConfigPath string

	// Overrides re-applies command-line flags after every reload
	Overrides func(*config.Config)

	// LogOutput receives log records (stderr when nil)
	LogOutput io.Writer

	// TestFyneApp allows injecting a test Fyne app for testing (nil for production)
	TestFyneApp fyne.App
}

// NewApplication creates a new application with all dependencies wired.
// This is the main dependency injection function.
func NewApplication(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	a := &Application{cfg: cfg, overrides: opts.Overrides}

	// Step 1: Create logger
	level, _ := logger.ParseLevel(cfg.Log.Level)
	a.logger, a.logLevel = logger.NewLeveledLogger(logger.Config{
		Level:  level,
		Format: cfg.Log.Format,
		Output: opts.LogOutput,
	})
	a.logger.Info("initializing application",
		slog.String("app_id", cfg.App.ID),
		slog.String("version", GetVersionInfo().FullString()),
		slog.Bool("mock_audio", cfg.Audio.Mock))

	// Step 2: Create Fyne application
	if opts.TestFyneApp != nil {
		a.fyneApp = opts.TestFyneApp
	} else {
		a.fyneApp = fyneapp.NewWithID(cfg.App.ID)
	}

	// Step 3: Create an event bus
	a.eventBus = eventbus.NewSyncEventBus()
	a.eventBus.SetLogger(a.logger.With(slog.String("component", "eventbus")))

	// Step 4: Create the audio platform and the media element
	a.createAudio()

	// Step 5: Create the display ticker
	a.frames = frame.NewTickerScheduler(cfg.Render.FPS, a.logger)

	// Step 6: Create services (with dependency injection)
	a.graph = service.NewAudioGraphManager(
		a.logger.With(slog.String("service", "audio_graph")),
		a.platform,
		a.eventBus,
	)
	a.scheduler = service.NewRenderScheduler(
		a.logger.With(slog.String("service", "render_scheduler")),
		a.graph,
		a.frames,
	)
	a.session = service.NewSession(
		a.logger.With(slog.String("service", "session")),
		a.graph,
		a.scheduler,
		a.element,
		a.eventBus,
		service.SessionConfig{Mode: cfg.Mode(), Volume: cfg.Audio.Volume},
	)
	a.catalog = service.NewTrackCatalog(
		a.logger.With(slog.String("service", "track_catalog")),
		cfg.TrialTracks(),
	)

	// Step 7: Create UI
	a.mainWindow = fyneui.NewMainWindow(a.fyneApp, a.scheduler, fyneui.WindowConfig{
		Title:      cfg.App.Name,
		Width:      cfg.App.WindowWidth,
		Height:     cfg.App.WindowHeight,
		Extensions: a.catalog.GetSupportedFormats(),
	}, a.logger.With(slog.String("component", "main_window")))
	a.mainWindow.Surface().SetOnResize(a.scheduler.Resize)
	a.scheduler.OnFrame(a.mainWindow.RefreshSurface)

	// Step 8: Start the session
	if err := a.session.Start(); err != nil {
		a.frames.Close()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	// Step 9: Create Presenter and wire with UI
	a.presenter = fyneui.NewPresenter(
		a.logger.With(slog.String("component", "presenter")),
		a.session,
		a.catalog,
		a.eventBus,
		a.mainWindow,
	)
	a.mainWindow.SetPresenter(a.presenter)

	// Step 10: Watch the config file
	if opts.ConfigPath != "" {
		if err := a.watchConfig(opts.ConfigPath); err != nil {
			// Non-fatal - the app runs with the loaded configuration
			a.logger.Warn("config hot reload disabled", slog.Any("error", err))
		}
	}

	return a, nil
}

// createAudio selects the mock or the native platform.
func (a *Application) createAudio() {
	if a.cfg.Audio.Mock {
		platform := mock.NewPlatform()
		platform.SetLogger(a.logger.With(slog.String("platform", "mock")))
		platform.SetSynthetic(true)

		element := mock.NewElement()
		element.SetLogger(a.logger.With(slog.String("platform", "mock")))

		a.platform = platform
		a.element = element
		return
	}

	platform := native.NewPlatform(native.Options{
		SampleRate:     a.cfg.Audio.SampleRate,
		CaptureFrames:  a.cfg.Audio.CaptureFrames,
		CaptureDevice:  a.cfg.Audio.CaptureDevice,
		MaxRemoteBytes: int64(a.cfg.Audio.MaxRemoteSizeMB) << 20,
	}, a.logger.With(slog.String("platform", "native")))

	a.platform = platform
	a.element = platform.NewElement()
}

// watchConfig starts the file watcher and applies every reload.
func (a *Application) watchConfig(path string) error {
	w, err := config.NewWatcher(path, a.logger.With(slog.String("component", "config")))
	if err != nil {
		return err
	}
	w.OnReload(a.applyConfig)
	a.watcher = w
	return nil
}

// applyConfig applies the settings that can change while running: log
// level, frame rate, volume, mode and trial tracks.
func (a *Application) applyConfig(cfg *config.Config) {
	if a.overrides != nil {
		a.overrides(cfg)
	}

	if level, ok := logger.ParseLevel(cfg.Log.Level); ok {
		a.logLevel.Set(level)
	}
	a.frames.SetFPS(cfg.Render.FPS)

	if err := a.session.SetVolume(cfg.Audio.Volume); err != nil {
		a.logger.Warn("ignoring reloaded volume", slog.Any("error", err))
	} else {
		a.mainWindow.SetVolume(cfg.Audio.Volume)
	}

	a.session.SetMode(cfg.Mode())

	a.catalog.SetTrials(cfg.TrialTracks())
	a.mainWindow.SetTracks(a.catalog.Trials())

	a.logger.Info("configuration applied",
		slog.String("level", cfg.Log.Level),
		slog.Int("fps", cfg.Render.FPS),
		slog.Float64("volume", cfg.Audio.Volume))
}

// Run shows the window and blocks until it is closed.
func (a *Application) Run() error {
	a.logger.Info("Beatify started")
	a.mainWindow.ShowAndRun()
	return nil
}

// Shutdown gracefully shuts down the application.
// It's safe to call multiple times.
func (a *Application) Shutdown() error {
	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down application")

		var errs []error
		if a.watcher != nil {
			errs = append(errs, a.watcher.Close())
		}

		// Shutdown UI and presenter
		if a.presenter != nil {
			a.presenter.Shutdown()
		}

		// Release the graph before the ticker stops
		if a.session != nil {
			errs = append(errs, a.session.Close())
		}
		if a.frames != nil {
			a.frames.Close()
		}

		if c, ok := a.element.(io.Closer); ok {
			errs = append(errs, c.Close())
		}

		if a.eventBus != nil {
			errs = append(errs, a.eventBus.Close())
		}

		a.shutdownErr = errors.Join(errs...)
		if a.shutdownErr != nil {
			a.logger.Warn("shutdown finished with errors", slog.Any("error", a.shutdownErr))
		} else {
			a.logger.Info("application shutdown complete")
		}
	})
	return a.shutdownErr
}

// GetSession returns the session service.
func (a *Application) GetSession() *service.Session {
	return a.session
}

// GetScheduler returns the render scheduler.
func (a *Application) GetScheduler() *service.RenderScheduler {
	return a.scheduler
}

// GetGraph returns the audio graph manager.
func (a *Application) GetGraph() *service.AudioGraphManager {
	return a.graph
}

// GetCatalog returns the track catalog.
func (a *Application) GetCatalog() *service.TrackCatalog {
	return a.catalog
}

// GetEventBus returns the event bus.
func (a *Application) GetEventBus() ports.EventBus {
	return a.eventBus
}

// GetFyneApp returns the Fyne application.
func (a *Application) GetFyneApp() fyne.App {
	return a.fyneApp
}
