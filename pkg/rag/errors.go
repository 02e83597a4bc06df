package rag

import (
	"errors"
	"fmt"
)

// Sentinel errors for the retrieval and conversation engine
var (
	// ErrParseAmbiguous indicates reference text was only partially recognized.
	// It is control flow: the query simply has no exact hit.
	ErrParseAmbiguous = errors.New("ambiguous reference")
	// ErrRetrievalUnavailable indicates the vector index failed after retries
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrGenerationFailure indicates the generation service failed after retries
	ErrGenerationFailure = errors.New("generation failure")
	// ErrSessionNotFound indicates an unknown session id; callers create a new session
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidPreference indicates an unsupported translation or denomination
	ErrInvalidPreference = errors.New("invalid preference")
)

// UnavailableError reports an external dependency that could not be reached
type UnavailableError struct {
	Dependency string // e.g. "vector index", "embedding"
	Attempts   int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s unavailable after %d attempt(s): %v", e.Dependency, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s unavailable after %d attempt(s)", e.Dependency, e.Attempts)
}

func (e *UnavailableError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRetrievalUnavailable, e.Err}
	}
	return []error{ErrRetrievalUnavailable}
}

// GenerationError reports a generation call that failed after retries
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("generation failed after %d attempt(s)", e.Attempts)
}

func (e *GenerationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrGenerationFailure, e.Err}
	}
	return []error{ErrGenerationFailure}
}

// PreferenceError reports an unsupported preference value
type PreferenceError struct {
	Field string
	Value string
}

func (e *PreferenceError) Error() string {
	return fmt.Sprintf("invalid preference %s: %q", e.Field, e.Value)
}

func (e *PreferenceError) Unwrap() error {
	return ErrInvalidPreference
}

// IsUnavailable reports whether err is a retrieval unavailability
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrRetrievalUnavailable)
}

// IsGenerationFailure reports whether err is a generation failure
func IsGenerationFailure(err error) bool {
	return errors.Is(err, ErrGenerationFailure)
}
