package unbxd

import (
	"errors"
	"fmt"
)

// ErrResponseTooLarge is returned when a response body exceeds MaxResponseSize
var ErrResponseTooLarge = errors.New("response body too large")

// ErrMissingUploadID is returned by CheckStatus when no upload ID is given
var ErrMissingUploadID = errors.New("upload ID is required")

// TransportError reports a call that produced no API response:
// a timeout, a refused connection, a DNS failure or an unreadable body.
type TransportError struct {
	Op      Operation
	StoreID string
	URL     string
	Err     error
}

// NewTransportError creates a new transport error
func NewTransportError(op Operation, storeID, url string, err error) *TransportError {
	return &TransportError{
		Op:      op,
		StoreID: storeID,
		URL:     url,
		Err:     err,
	}
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request for store %s to %s failed: %v", e.Op, e.StoreID, e.URL, e.Err)
}

// Unwrap returns the underlying cause
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is or wraps a TransportError
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
