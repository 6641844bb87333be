package models

import "errors"

// Fatal error classes. Anything wrapping one of these aborts the run; every
// other error is recorded against a single record.
var (
	ErrDependencyCycle   = errors.New("dependency cycle between entity types")
	ErrUnknownFilter     = errors.New("filter value not found in source")
	ErrIncompleteListing = errors.New("target returned an incomplete listing (page size ceiling is enforced)")
)

// IsFatal reports whether err belongs to a fatal class.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDependencyCycle) ||
		errors.Is(err, ErrUnknownFilter) ||
		errors.Is(err, ErrIncompleteListing)
}
