// Package ocrerr defines the error taxonomy shared by the page pipeline.
//
// Every error carries the page it applies to (0 when it is not tied to a
// page) so batch callers can report partial success.
package ocrerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that map errors to responses.
type Kind string

const (
	KindInput         Kind = "input"
	KindEngine        Kind = "engine"
	KindConfiguration Kind = "configuration"
	KindInternal      Kind = "internal"
)

// InputError reports malformed or missing caller input: undecodable image
// bytes, a missing field, an empty polygon.
type InputError struct {
	Page int
	Msg  string
	Err  error
}

func (e *InputError) Error() string { return format(e.Page, e.Msg, e.Err) }
func (e *InputError) Unwrap() error { return e.Err }

// EngineError reports a failure inside the OCR engine collaborator.
type EngineError struct {
	Page   int
	Engine string
	Err    error
}

func (e *EngineError) Error() string {
	return format(e.Page, fmt.Sprintf("%s engine failed", e.Engine), e.Err)
}
func (e *EngineError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid configuration value. These are
// raised at startup, never per request.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Msg)
}

// Input builds an InputError.
func Input(page int, err error, msg string, args ...any) *InputError {
	return &InputError{Page: page, Msg: fmt.Sprintf(msg, args...), Err: err}
}

// Engine builds an EngineError.
func Engine(page int, engine string, err error) *EngineError {
	return &EngineError{Page: page, Engine: engine, Err: err}
}

// Config builds a ConfigurationError.
func Config(field, msg string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Msg: fmt.Sprintf(msg, args...)}
}

// AtPage returns err with its page set when err is an InputError or an
// EngineError that has no page yet. Other errors are returned unchanged.
func AtPage(err error, page int) error {
	var inErr *InputError
	if errors.As(err, &inErr) && inErr.Page == 0 {
		cp := *inErr
		cp.Page = page
		return &cp
	}
	var engErr *EngineError
	if errors.As(err, &engErr) && engErr.Page == 0 {
		cp := *engErr
		cp.Page = page
		return &cp
	}
	return err
}

// KindOf classifies err.
func KindOf(err error) Kind {
	var inErr *InputError
	var engErr *EngineError
	var cfgErr *ConfigurationError
	switch {
	case errors.As(err, &inErr):
		return KindInput
	case errors.As(err, &engErr):
		return KindEngine
	case errors.As(err, &cfgErr):
		return KindConfiguration
	default:
		return KindInternal
	}
}

// PageOf returns the page recorded on err, or 0.
func PageOf(err error) int {
	var inErr *InputError
	if errors.As(err, &inErr) {
		return inErr.Page
	}
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Page
	}
	return 0
}

func format(page int, msg string, err error) string {
	s := msg
	if err != nil {
		s = fmt.Sprintf("%s: %v", msg, err)
	}
	if page > 0 {
		return fmt.Sprintf("page %d: %s", page, s)
	}
	return s
}
