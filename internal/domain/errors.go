package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the engine components. Callers match them
// with errors.Is to choose a response.
var (
	// ErrModelNotLoaded means the embedding model has not been loaded yet.
	ErrModelNotLoaded = errors.New("embedding model not loaded")

	// ErrModelLoadFailed means the one-shot model load failed. The load is
	// not retried within the process.
	ErrModelLoadFailed = errors.New("embedding model failed to load")

	// ErrItemNotFound means no item exists with the requested id.
	ErrItemNotFound = errors.New("item not found")

	// ErrNoPriceData means the item has no tick carrying a usable price.
	ErrNoPriceData = errors.New("no price data")
)

// FeedError wraps any failure talking to the external feed, tagged with
// the endpoint that failed.
type FeedError struct {
	Endpoint string
	Err      error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed %s: %v", e.Endpoint, e.Err)
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// ValidationError reports a rejected request parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
