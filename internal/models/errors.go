package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors.
var (
	// ErrURLRequired indicates a required URL field is empty.
	ErrURLRequired = errors.New("url is required")

	// ErrInvalidURL indicates a malformed URL.
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrNoSegments indicates a cut request without segments.
	ErrNoSegments = errors.New("at least one segment is required")

	// ErrInvalidCropMode indicates an unsupported crop mode.
	ErrInvalidCropMode = errors.New("invalid crop mode: must be 'center', 'blur_pad', 'letterbox' or 'smart_reframe'")

	// ErrInvalidQuality indicates an unsupported quality level.
	ErrInvalidQuality = errors.New("invalid quality: must be 1080, 720 or 480")

	// ErrBatchTooLarge indicates a batch request beyond the URL limit.
	ErrBatchTooLarge = errors.New("batch size exceeds the maximum of 20 urls")

	// ErrJobNotFound indicates a lookup for an unknown job ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrCancelled indicates an operation observed its cancel flag.
	ErrCancelled = errors.New("cancelled")
)
