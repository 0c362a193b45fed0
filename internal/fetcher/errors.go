package fetcher

import (
	"errors"
	"fmt"
)

// ErrStoreNotFound reports that upstream has no store for the requested ID.
var ErrStoreNotFound = errors.New("store_not_found")

// TransportError reports a failed HTTP exchange: network failure, timeout,
// or a non-2xx status.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FormatError reports a response body that could not be interpreted:
// malformed JSON or a payload missing required fields.
type FormatError struct {
	Op     string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
