package common

import (
	"errors"
	"fmt"
)

// Configuration errors. These are fatal for the caller and raised before any batch work starts.
var (
	ErrUnknownDataset = errors.New("unknown dataset identifier")
	ErrInvalidMode    = errors.New("invalid generation mode")
	ErrMissingTargets = errors.New("train mode requires targets")
	ErrInvalidOption  = errors.New("invalid option")
)

// Shape errors. These fail a single study without touching shared state.
var (
	ErrImageCount    = errors.New("unexpected image count for fusion strategy")
	ErrEmptyBlock    = errors.New("empty block in sequence fusion")
	ErrShapeMismatch = errors.New("feature shape mismatch")
)

// ErrIDOutOfRange is returned when decoding an id that the vocabulary does not know.
var ErrIDOutOfRange = errors.New("token id out of range")

// WrapError wraps an error with additional context
func WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	context := fmt.Sprintf(message, args...)
	return fmt.Errorf("%s: %w", context, err)
}

// StudyError ties a per-study failure to its position in the batch
type StudyError struct {
	Index   int
	StudyID string
	Err     error
}

func (e *StudyError) Error() string {
	if e.StudyID != "" {
		return fmt.Sprintf("study %d (%s): %v", e.Index, e.StudyID, e.Err)
	}
	return fmt.Sprintf("study %d: %v", e.Index, e.Err)
}

func (e *StudyError) Unwrap() error { return e.Err }
