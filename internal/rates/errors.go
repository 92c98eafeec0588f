package rates

import (
	"errors"
	"fmt"
)

// ErrRateNotFound is returned when no stored rate exists for a currency.
var ErrRateNotFound = errors.New("rate not found")

// SourceError is an adapter-level network or parse failure. It is contained
// per source by the collector and never propagates past it.
type SourceError struct {
	SourceID string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.SourceID, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError wraps err with the failing source's identity.
func NewSourceError(sourceID string, err error) *SourceError {
	return &SourceError{SourceID: sourceID, Err: err}
}
