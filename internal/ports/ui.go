// Package ports define the View interface for view abstraction.
// The presenter updates the view through it without depending on Fyne.
package ports

import (
	"github.com/tejashwikalptaru/beatify/internal/domain"
)

// View is the interface for the user interface layer.
//
// Thread-safety: implementations marshal calls onto their UI thread.
type View interface {
	// SetTracks fills the trial track selector.
	SetTracks(tracks []domain.Track)

	// SetTrackInfo shows the loaded track.
	SetTrackInfo(track domain.Track)

	// SetMode selects the mode in the mode selector.
	SetMode(mode domain.Mode)

	// SetMicState updates the mic toggle.
	SetMicState(enabled bool)

	// SetPlayState updates the play/pause button.
	SetPlayState(playing bool)

	// SetVolume updates the volume slider (0.0 to 1.0).
	SetVolume(volume float64)

	// ClearTrialSelection resets the trial track selector.
	ClearTrialSelection()

	// ShowNotice displays a short, non-blocking message.
	ShowNotice(message string)

	// RefreshSurface schedules a repaint of the visualizer surface.
	RefreshSurface()
}
