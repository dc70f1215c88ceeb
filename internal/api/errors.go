package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidTicker = errors.New("invalid ticker")
	ErrAuthFailed    = errors.New("authentication failed")
)

// FetchError is a non-success HTTP status from an upstream source.
type FetchError struct {
	Source     Source
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Source, e.StatusCode, e.Body)
}

// Unwrap maps auth rejections onto ErrAuthFailed.
func (e *FetchError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrAuthFailed
	}
	return nil
}

// SchemaError means a mandatory payload lacks a required field or path.
type SchemaError struct {
	Source Source
	Path   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: payload missing %s", e.Source, e.Path)
}

// TransientSourceFailure wraps any failure of an optional source. It never
// aborts a refresh cycle.
type TransientSourceFailure struct {
	Source Source
	Err    error
}

func (e *TransientSourceFailure) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Source, e.Err)
}

func (e *TransientSourceFailure) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
