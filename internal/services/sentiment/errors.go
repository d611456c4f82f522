package sentiment

import "errors"

var (
	// ErrEmptyText is returned when the input is empty after normalization.
	ErrEmptyText = errors.New("text is empty")

	// ErrTextTooLong is returned when the input exceeds the configured limit.
	ErrTextTooLong = errors.New("text exceeds maximum length")

	// ErrModelUnavailable is returned when no model could be loaded.
	ErrModelUnavailable = errors.New("model is not available")

	// ErrBatchEmpty is returned for a batch request with no texts.
	ErrBatchEmpty = errors.New("batch contains no texts")

	// ErrBatchTooLarge is returned when a batch exceeds the configured limit.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
)
