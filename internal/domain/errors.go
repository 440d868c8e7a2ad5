package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine matches exactly one of
// these with errors.Is, except ProcessingError which also matches its cause.
var (
	ErrValidation  = errors.New("validation error")
	ErrProvider    = errors.New("provider error")
	ErrPersistence = errors.New("persistence error")
	ErrProcessing  = errors.New("processing error")
)

// Ingestion stages reported by ProcessingError.
const (
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StagePersist = "persist"
)

// ProcessingError wraps the first failure of an ingestion run.
type ProcessingError struct {
	Stage    string
	Filename string
	Err      error
}

func (e *ProcessingError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("processing failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("processing %s failed at %s: %v", e.Filename, e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Is reports ErrProcessing as a match in addition to the wrapped cause.
func (e *ProcessingError) Is(target error) bool { return target == ErrProcessing }

// Validationf builds an error of kind ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Providerf builds an error of kind ErrProvider, optionally wrapping cause.
func Providerf(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrProvider, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrProvider, msg, cause)
}

// Persistencef builds an error of kind ErrPersistence, optionally wrapping cause.
func Persistencef(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrPersistence, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, msg, cause)
}
