package models

import (
	"errors"
	"fmt"
)

// Per instrument failures. These are local to the instrument being processed,
// the batch records them and keeps going.
var (
	ErrDataUnavailable  = errors.New("source data file unavailable")
	ErrInsufficientData = errors.New("insufficient observations for method")
	ErrInvalidPrices    = errors.New("non-positive or non-finite closing prices")
	ErrNumericalFailure = errors.New("numerical failure in estimator")
)

// ConfigurationError is fatal at the run level, it is surfaced before any
// instrument is touched.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Field, e.Reason)
}

func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
