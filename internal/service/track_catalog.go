package service

import (
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dhowden/tag"

	"github.com/tejashwikalptaru/beatify/internal/domain"
)

// supportedExts lists the file extensions the native decoders accept.
var supportedExts = []string{".mp3", ".wav", ".ogg", ".oga", ".flac", ".fla"}

// SupportedFormats returns the file extensions the native decoders accept.
func SupportedFormats() []string {
	return append([]string(nil), supportedExts...)
}

// TrackCatalog holds the built-in trial tracks and describes user files.
// All operations are thread-safe via sync.RWMutex.
type TrackCatalog struct {
	logger *slog.Logger

	trials        []domain.Track
	supportedExts []string

	mu sync.RWMutex
}

// NewTrackCatalog creates a catalog with the given trial tracks.
func NewTrackCatalog(logger *slog.Logger, trials []domain.Track) *TrackCatalog {
	c := &TrackCatalog{
		logger:        logger,
		supportedExts: SupportedFormats(),
	}
	c.SetTrials(trials)
	return c
}

// SetTrials replaces the trial track list.
func (c *TrackCatalog) SetTrials(trials []domain.Track) {
	list := make([]domain.Track, 0, len(trials))
	for _, t := range trials {
		if strings.TrimSpace(t.Src) == "" {
			c.logger.Warn("skipping trial track without source", slog.String("name", t.Name))
			continue
		}
		t.Trial = true
		if t.Name == "" {
			t.Name = baseName(t.Src)
		}
		list = append(list, t)
	}

	c.mu.Lock()
	c.trials = list
	c.mu.Unlock()
}

// Trials returns a copy of the trial tracks.
func (c *TrackCatalog) Trials() []domain.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Track(nil), c.trials...)
}

// Trial finds a trial track by name.
func (c *TrackCatalog) Trial(name string) (domain.Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.trials {
		if t.Name == name {
			return t, true
		}
	}
	return domain.Track{}, false
}

// GetSupportedFormats returns the list of supported file extensions.
func (c *TrackCatalog) GetSupportedFormats() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.supportedExts...)
}

// IsFormatSupported checks if a file has a decodable extension.
func (c *TrackCatalog) IsFormatSupported(src string) bool {
	ext := strings.ToLower(filepath.Ext(stripQuery(src)))
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.supportedExts {
		if e == ext {
			return true
		}
	}
	return false
}

// Describe builds a Track for a local file or URL. Local files are read for
// title and artist tags; the file name is used when tags are missing.
func (c *TrackCatalog) Describe(src string) domain.Track {
	track := domain.Track{Name: baseName(src), Src: src}
	if isRemote(src) {
		return track
	}

	file, err := os.Open(src)
	if err != nil {
		c.logger.Debug("cannot open track for tags", slog.String("src", src), slog.Any("error", err))
		return track
	}
	defer file.Close()

	metadata, err := tag.ReadFrom(file)
	if err != nil || metadata == nil {
		return track
	}

	if title := strings.TrimSpace(metadata.Title()); title != "" {
		track.Name = title
	}
	if artist := strings.TrimSpace(metadata.Artist()); artist != "" {
		track.Artist = artist
	}
	return track
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func stripQuery(src string) string {
	if !isRemote(src) {
		return src
	}
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	return u.Path
}

func baseName(src string) string {
	var name string
	if isRemote(src) {
		name = path.Base(stripQuery(src))
	} else {
		name = filepath.Base(src)
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." || name == "/" {
		return src
	}
	return name
}
