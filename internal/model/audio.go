package model

import "fmt"

type Mood string

const (
	MoodHappy   Mood = "happy"
	MoodNeutral Mood = "neutral"
	MoodSad     Mood = "sad"
)

var Moods = []Mood{MoodHappy, MoodNeutral, MoodSad}

func (m Mood) Valid() bool {
	return m == MoodHappy || m == MoodNeutral || m == MoodSad
}

type Track struct {
	ID       string `json:"id" toml:"id"`
	Title    string `json:"title" toml:"title"`
	Artist   string `json:"artist" toml:"artist"`
	Src      string `json:"src" toml:"src"`
	Duration int    `json:"duration" toml:"duration"` // seconds
}

type Playlist struct {
	Mood   Mood    `json:"mood" toml:"mood"`
	Tracks []Track `json:"tracks" toml:"tracks"`
}

// MinPlaylistTracks is the smallest playlist a catalog may hold per mood.
const MinPlaylistTracks = 3

func (p Playlist) Validate() error {
	if !p.Mood.Valid() {
		return fmt.Errorf("invalid playlist mood %q", p.Mood)
	}
	if len(p.Tracks) < MinPlaylistTracks {
		return fmt.Errorf("playlist %s has %d tracks, need at least %d", p.Mood, len(p.Tracks), MinPlaylistTracks)
	}
	for i, track := range p.Tracks {
		if track.ID == "" || track.Src == "" {
			return fmt.Errorf("playlist %s track %d needs id and src", p.Mood, i)
		}
	}
	return nil
}

type PlaybackState string

const (
	PlaybackStopped PlaybackState = "stopped"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
)

// AudioEngineState is in-memory only.
type AudioEngineState struct {
	Playback        PlaybackState `json:"playback"`
	IsPlaying       bool          `json:"isPlaying"`
	CurrentMood     Mood          `json:"currentMood"`
	TrackIndex      int           `json:"trackIndex"`
	Track           *Track        `json:"track,omitempty"`
	Volume          int           `json:"volume"`
	Is8DEnabled     bool          `json:"is8DEnabled"`
	SpatialCapable  bool          `json:"spatialCapable"`
	Progress        float64       `json:"progress"`
	PositionSeconds float64       `json:"positionSeconds"`
}
