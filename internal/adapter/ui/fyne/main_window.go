package fyne

import (
	"fmt"
	"log/slog"
	"sync"

	fyneapp "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/tejashwikalptaru/beatify/internal/adapter/ui/fyne/widgets"
	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/ports"
)

const (
	micOnLabel  = "Disable Mic"
	micOffLabel = "Enable Mic"
)

// WindowConfig sizes and names the main window.
type WindowConfig struct {
	Title      string
	Width      float32
	Height     float32
	Extensions []string // accepted by the open dialog
}

// MainWindow is the main UI window implementing ports.View.
//
// It is a "dumb view": user interactions are forwarded to the Presenter and
// every update arrives through the View methods, which marshal onto the
// Fyne thread.
type MainWindow struct {
	app    fyneapp.App
	window fyneapp.Window
	logger *slog.Logger
	cfg    WindowConfig

	// UI components
	openButton  *widget.Button
	trialSelect *widget.Select
	micButton   *widget.Button
	modeSelect  *widget.Select
	playButton  *widget.Button
	volume      *widget.Slider
	trackInfo   *widget.Label
	notice      *widget.Label
	surface     *widgets.SurfaceView

	// updating suppresses widget callbacks while the view mirrors state.
	updating bool

	closeOnce sync.Once

	// Presenter (set after construction)
	presenter *Presenter
}

// Verify View implementation
var _ ports.View = (*MainWindow)(nil)

// NewMainWindow creates the main window drawing frames from source.
func NewMainWindow(app fyneapp.App, source widgets.FrameSource, cfg WindowConfig, logger *slog.Logger) *MainWindow {
	w := &MainWindow{
		app:    app,
		logger: logger,
		cfg:    cfg,
	}

	w.window = app.NewWindow(cfg.Title)
	w.surface = widgets.NewSurfaceView(source)
	w.buildUI()

	w.window.Resize(fyneapp.NewSize(cfg.Width, cfg.Height))
	return w
}

// SetPresenter connects the presenter to this view.
// This must be called before showing the window.
func (w *MainWindow) SetPresenter(presenter *Presenter) {
	w.presenter = presenter
	w.wirePresenterHandlers()
	w.addShortcuts()
}

// Surface returns the visualizer surface widget.
func (w *MainWindow) Surface() *widgets.SurfaceView {
	return w.surface
}

// buildUI constructs the UI components.
func (w *MainWindow) buildUI() {
	w.openButton = widget.NewButtonWithIcon("Open", theme.FolderOpenIcon(), nil)
	w.trialSelect = widget.NewSelect(nil, nil)
	w.trialSelect.PlaceHolder = "Trial tracks"
	w.micButton = widget.NewButtonWithIcon(micOffLabel, theme.MediaRecordIcon(), nil)

	modes := make([]string, 0, len(domain.Modes))
	for _, m := range domain.Modes {
		modes = append(modes, m.String())
	}
	w.modeSelect = widget.NewSelect(modes, nil)

	w.playButton = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), nil)

	w.volume = widget.NewSlider(0, 100)
	w.volume.Orientation = widget.Horizontal
	volumeHolder := container.NewBorder(nil, nil, widget.NewIcon(theme.VolumeUpIcon()), nil, w.volume)

	w.trackInfo = widget.NewLabel("No track loaded")
	w.trackInfo.Truncation = fyneapp.TextTruncateEllipsis
	w.trackInfo.TextStyle = fyneapp.TextStyle{Bold: true, Italic: true}

	w.notice = widget.NewLabel("")
	w.notice.Truncation = fyneapp.TextTruncateEllipsis

	toolbar := container.NewHBox(w.openButton, w.trialSelect, w.micButton, w.modeSelect)
	controls := container.NewBorder(nil, nil, w.playButton, container.NewGridWrap(fyneapp.NewSize(180, 36), volumeHolder), w.trackInfo)
	bottom := container.NewVBox(controls, w.notice)

	w.window.SetContent(container.NewBorder(toolbar, bottom, nil, nil, w.surface))
}

// wirePresenterHandlers connects UI events to presenter handlers.
func (w *MainWindow) wirePresenterHandlers() {
	if w.presenter == nil {
		return
	}

	w.openButton.OnTapped = w.handleOpenFile

	w.trialSelect.OnChanged = func(name string) {
		if w.updating || name == "" {
			return
		}
		w.presenter.OnTrialSelected(name)
	}

	w.micButton.OnTapped = func() {
		w.presenter.OnMicClicked()
	}

	w.modeSelect.OnChanged = func(name string) {
		if w.updating {
			return
		}
		w.presenter.OnModeSelected(name)
	}

	w.playButton.OnTapped = func() {
		w.presenter.OnPlayClicked()
	}

	w.volume.OnChanged = func(value float64) {
		if w.updating {
			return
		}
		w.presenter.OnVolumeChanged(value)
	}

	w.surface.SetOnTapped(w.presenter.OnUserGesture)
}

// handleOpenFile shows the open dialog.
func (w *MainWindow) handleOpenFile() {
	if w.presenter == nil {
		return
	}
	w.presenter.OnUserGesture()

	dialog := NewFileDialog(w.window, w.cfg.Extensions, func(filePath string) {
		if err := w.presenter.OnFileOpened(filePath); err != nil {
			w.ShowNotice(fmt.Sprintf("Failed to open file: %v", err))
		}
	}, w.logger)
	dialog.Show()
}

// addShortcuts adds keyboard handling. Every key press counts as a user
// gesture; a few keys also drive the controls.
func (w *MainWindow) addShortcuts() {
	w.window.Canvas().SetOnTypedKey(func(ev *fyneapp.KeyEvent) {
		w.presenter.OnUserGesture()

		switch ev.Name {
		case fyneapp.KeySpace:
			w.presenter.OnPlayClicked()
		case fyneapp.KeyM:
			w.presenter.OnMicClicked()
		case fyneapp.Key1, fyneapp.Key2, fyneapp.Key3:
			idx := int(ev.Name[0] - '1')
			w.presenter.OnModeSelected(domain.Modes[idx].String())
		}
	})

	w.window.Canvas().AddShortcut(&desktop.CustomShortcut{
		KeyName:  fyneapp.KeyUp,
		Modifier: fyneapp.KeyModifierAlt,
	}, func(fyneapp.Shortcut) {
		w.volume.SetValue(min(w.volume.Value+5, 100))
	})

	w.window.Canvas().AddShortcut(&desktop.CustomShortcut{
		KeyName:  fyneapp.KeyDown,
		Modifier: fyneapp.KeyModifierAlt,
	}, func(fyneapp.Shortcut) {
		w.volume.SetValue(max(w.volume.Value-5, 0))
	})
}

// ShowAndRun shows the window and runs the application.
func (w *MainWindow) ShowAndRun() {
	w.window.ShowAndRun()
}

// SetOnClosed registers a callback run when the window closes.
func (w *MainWindow) SetOnClosed(fn func()) {
	w.window.SetOnClosed(fn)
}

// Close closes the window. It's safe to call multiple times.
func (w *MainWindow) Close() {
	w.closeOnce.Do(func() {
		fyneapp.Do(w.window.Close)
	})
}

// GetWindow returns the underlying Fyne window.
func (w *MainWindow) GetWindow() fyneapp.Window {
	return w.window
}

// View interface implementation

// SetTracks fills the trial selector.
func (w *MainWindow) SetTracks(tracks []domain.Track) {
	names := make([]string, 0, len(tracks))
	for _, t := range tracks {
		names = append(names, t.Name)
	}
	fyneapp.Do(func() {
		w.trialSelect.SetOptions(names)
	})
}

// SetTrackInfo shows the track in the label and the window title.
func (w *MainWindow) SetTrackInfo(track domain.Track) {
	name := track.DisplayName()
	fyneapp.Do(func() {
		w.trackInfo.SetText(name)
		w.window.SetTitle(fmt.Sprintf("%s - %s", w.cfg.Title, name))
	})
}

// SetMode selects the mode without notifying the presenter.
func (w *MainWindow) SetMode(mode domain.Mode) {
	fyneapp.Do(func() {
		w.updating = true
		w.modeSelect.SetSelected(mode.String())
		w.updating = false
	})
}

// SetMicState updates the mic button label.
func (w *MainWindow) SetMicState(enabled bool) {
	fyneapp.Do(func() {
		if enabled {
			w.micButton.SetText(micOnLabel)
			w.micButton.Importance = widget.HighImportance
		} else {
			w.micButton.SetText(micOffLabel)
			w.micButton.Importance = widget.MediumImportance
		}
		w.micButton.Refresh()
	})
}

// SetPlayState updates the play/pause button state.
func (w *MainWindow) SetPlayState(playing bool) {
	fyneapp.Do(func() {
		if playing {
			w.playButton.SetIcon(theme.MediaPauseIcon())
		} else {
			w.playButton.SetIcon(theme.MediaPlayIcon())
		}
	})
}

// SetVolume updates the volume slider.
func (w *MainWindow) SetVolume(volume float64) {
	fyneapp.Do(func() {
		w.updating = true
		// Convert from 0.0-1.0 to 0-100
		w.volume.SetValue(volume * 100.0)
		w.updating = false
	})
}

// ClearTrialSelection resets the trial selector.
func (w *MainWindow) ClearTrialSelection() {
	fyneapp.Do(func() {
		w.updating = true
		w.trialSelect.ClearSelected()
		w.updating = false
	})
}

// ShowNotice displays a message under the controls.
func (w *MainWindow) ShowNotice(message string) {
	fyneapp.Do(func() {
		w.notice.SetText(message)
	})
}

// RefreshSurface repaints the visualizer.
func (w *MainWindow) RefreshSurface() {
	fyneapp.Do(w.surface.Refresh)
}
