package domain

import "errors"

var (
	// ErrNotFound is returned when the requested series does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidBatch indicates a batch payload that cannot be accepted.
	ErrInvalidBatch = errors.New("invalid batch")
	// ErrNonNumeric is reported when a gauge value cannot be coerced to a number.
	ErrNonNumeric = errors.New("non-numeric gauge value")
	// ErrRejectedName is reported when a sanitizer refuses a measurement name.
	ErrRejectedName = errors.New("rejected measurement name")
)
