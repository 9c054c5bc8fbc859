package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	toml "github.com/pelletier/go-toml/v2"

	"focusbeat/backend/internal/logging"
	"focusbeat/backend/internal/model"
)

// Playlists resolves the playlist for a mood.
type Playlists interface {
	Playlist(mood model.Mood) (model.Playlist, bool)
}

type catalogFile struct {
	Playlists []model.Playlist `toml:"playlists"`
}

// Catalog holds one playlist per mood. It can be reloaded from a TOML file
// while engines are reading it.
type Catalog struct {
	mu        sync.RWMutex
	playlists map[model.Mood]model.Playlist
	path      string
	logger    hclog.Logger
}

// ParseCatalog decodes and validates a TOML catalog. Every mood must have a
// playlist of at least MinPlaylistTracks tracks.
func ParseCatalog(data []byte) (map[model.Mood]model.Playlist, error) {
	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	playlists := make(map[model.Mood]model.Playlist, len(file.Playlists))
	for _, playlist := range file.Playlists {
		if err := playlist.Validate(); err != nil {
			return nil, err
		}
		if _, dup := playlists[playlist.Mood]; dup {
			return nil, fmt.Errorf("duplicate playlist for mood %s", playlist.Mood)
		}
		playlists[playlist.Mood] = playlist
	}
	for _, mood := range model.Moods {
		if _, ok := playlists[mood]; !ok {
			return nil, fmt.Errorf("catalog has no playlist for mood %s", mood)
		}
	}
	return playlists, nil
}

// LoadCatalog reads path. An empty path yields the built-in catalog.
func LoadCatalog(path string, logger hclog.Logger) (*Catalog, error) {
	logger = logging.OrNop(logger)
	if path == "" {
		c := DefaultCatalog()
		c.logger = logger
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	playlists, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return &Catalog{playlists: playlists, path: path, logger: logger}, nil
}

func (c *Catalog) Playlist(mood model.Mood) (model.Playlist, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	playlist, ok := c.playlists[mood]
	if !ok {
		return model.Playlist{}, false
	}
	playlist.Tracks = append([]model.Track(nil), playlist.Tracks...)
	return playlist, true
}

func (c *Catalog) Path() string {
	return c.path
}

// Reload re-reads the catalog file. A file that fails validation is
// rejected and the current playlists stay in place.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", c.path, err)
	}
	playlists, err := ParseCatalog(data)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.playlists = playlists
	c.mu.Unlock()
	c.logger.Info("catalog reloaded", "path", c.path)
	return nil
}

const catalogDebounce = 250 * time.Millisecond

// Watch reloads the catalog whenever its file changes. It blocks until ctx
// is cancelled. The parent directory is watched so editors that replace the
// file on save are still seen.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(c.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch catalog dir: %w", err)
	}
	c.logger.Info("watching catalog", "path", target)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			pending = time.After(catalogDebounce)

		case <-pending:
			pending = nil
			if err := c.Reload(); err != nil {
				c.logger.Warn("keeping previous catalog", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("catalog watcher error", "error", err)
		}
	}
}

// DefaultCatalog is used when no catalog file is configured. Sources are
// relative to the UI host.
func DefaultCatalog() *Catalog {
	track := func(mood model.Mood, n int, title, artist string, seconds int) model.Track {
		return model.Track{
			ID:       fmt.Sprintf("%s-%02d", mood, n),
			Title:    title,
			Artist:   artist,
			Src:      fmt.Sprintf("/audio/%s/%02d.mp3", mood, n),
			Duration: seconds,
		}
	}

	playlists := map[model.Mood]model.Playlist{
		model.MoodHappy: {Mood: model.MoodHappy, Tracks: []model.Track{
			track(model.MoodHappy, 1, "Morning Light", "Lumen Drift", 184),
			track(model.MoodHappy, 2, "Open Windows", "Paper Kites Club", 201),
			track(model.MoodHappy, 3, "Bright Side Loop", "Lumen Drift", 176),
		}},
		model.MoodNeutral: {Mood: model.MoodNeutral, Tracks: []model.Track{
			track(model.MoodNeutral, 1, "Desk Lamp", "Quiet Hours", 222),
			track(model.MoodNeutral, 2, "Tape Hiss", "Low Tide", 195),
			track(model.MoodNeutral, 3, "Long Corridor", "Quiet Hours", 240),
		}},
		model.MoodSad: {Mood: model.MoodSad, Tracks: []model.Track{
			track(model.MoodSad, 1, "Rain on Glass", "Grey Harbor", 213),
			track(model.MoodSad, 2, "Last Train", "Nocturne Set", 230),
			track(model.MoodSad, 3, "Slow Return", "Grey Harbor", 199),
		}},
	}
	return &Catalog{playlists: playlists, logger: logging.Nop()}
}
