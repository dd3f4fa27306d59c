package model

import (
	"errors"
	"fmt"
)

var (
	// pipeline-fatal
	ErrMalformedInput     = errors.New("malformed input")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrUnknownLayer       = errors.New("unknown layer")
	ErrNoResult           = errors.New("no layer produced a result")

	// scoped to one sample or one layer
	ErrInvalidCRS        = errors.New("invalid crs")
	ErrOutOfDomain       = errors.New("coordinate out of domain")
	ErrConversionFailure = errors.New("conversion failure")
	ErrSchemaMismatch    = errors.New("schema mismatch")
	ErrServiceError      = errors.New("service error")
)

// ServiceError is a transport or remote-side failure of one remote call.
// Status is 0 when no HTTP response was received.
type ServiceError struct {
	Status int
	Detail string
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Status == 0 {
		if e.Err != nil {
			return fmt.Sprintf("service error: %s: %v", e.Detail, e.Err)
		}
		return "service error: " + e.Detail
	}
	return fmt.Sprintf("service error: status %d: %s", e.Status, e.Detail)
}

func (e *ServiceError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrServiceError, e.Err}
	}
	return []error{ErrServiceError}
}

// Fatal reports whether err aborts the whole pipeline.
func Fatal(err error) bool {
	return errors.Is(err, ErrMalformedInput) ||
		errors.Is(err, ErrCatalogUnavailable) ||
		errors.Is(err, ErrUnknownLayer) ||
		errors.Is(err, ErrNoResult)
}
