package model

import (
	"errors"
	"time"
)

type Profile struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	PassphraseHash string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Preferences is the persisted `preferences` record.
type Preferences struct {
	TimerMode    TimerMode `json:"timerMode"`
	SelectedMood Mood      `json:"selectedMood"`
	Volume       int       `json:"volume"`
	Is8DEnabled  bool      `json:"is8DEnabled"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		TimerMode:    ModeStopwatch,
		SelectedMood: MoodNeutral,
		Volume:       70,
		Is8DEnabled:  false,
	}
}

func (p Preferences) Validate() error {
	if !p.TimerMode.Valid() {
		return ErrInvalidPreferences
	}
	if !p.SelectedMood.Valid() {
		return ErrInvalidPreferences
	}
	if p.Volume < 0 || p.Volume > 100 {
		return ErrInvalidPreferences
	}
	return nil
}

var ErrInvalidPreferences = errors.New("invalid preferences")
