package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// Validator is implemented by every persisted record type.
type Validator interface {
	Validate() error
}

// ParseError describes why a persisted value was rejected.
type ParseError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Key, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Decode is total: it returns either a validated value with a nil error or
// the zero value with a *ParseError. It never panics on malformed input.
func Decode[T Validator](key string, raw []byte) (T, *ParseError) {
	var zero T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return zero, &ParseError{Key: key, Reason: "empty value"}
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return zero, &ParseError{Key: key, Reason: "null value"}
	}

	var value T
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	if err := decoder.Decode(&value); err != nil {
		return zero, &ParseError{Key: key, Reason: "malformed json", Err: err}
	}
	if decoder.More() {
		return zero, &ParseError{Key: key, Reason: "trailing data"}
	}
	if err := value.Validate(); err != nil {
		return zero, &ParseError{Key: key, Reason: "schema mismatch", Err: err}
	}
	return value, nil
}

// Load reads key and returns the decoded value with ok=true, or fallback
// with ok=false when the key is missing, unreadable or fails validation.
// Corrupt entries are logged and left for the next Save to overwrite.
func Load[T Validator](ctx context.Context, s Store, key string, fallback T, logger hclog.Logger) (T, bool) {
	raw, found, err := s.Get(ctx, key)
	if err != nil {
		if logger != nil {
			logger.Warn("read persisted value", "key", key, "error", err)
		}
		return fallback, false
	}
	if !found {
		return fallback, false
	}

	value, parseErr := Decode[T](key, raw)
	if parseErr != nil {
		if logger != nil {
			logger.Warn("discarding corrupt persisted value", "key", key, "error", parseErr)
		}
		return fallback, false
	}
	return value, true
}

func Save[T any](ctx context.Context, s Store, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
