package repository

import (
	"fmt"
	"time"
)

// sqliteTimestamp is what CURRENT_TIMESTAMP produces, for rows written
// outside the app.
const sqliteTimestamp = "2006-01-02 15:04:05"

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, sqliteTimestamp}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
