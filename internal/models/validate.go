package models

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New()

// Validate checks a record's field constraints and that it yields a natural
// key. A failure is a mapping error: recorded against the record, never fatal.
func Validate(r Record) error {
	if r == nil {
		return errors.New("nil record")
	}
	if err := validate.Struct(r); err != nil {
		return &MappingError{Type: r.Type(), Key: r.NaturalKey(), Err: err}
	}
	if r.NaturalKey() == "" {
		return &MappingError{Type: r.Type(), Err: errors.New("empty natural key")}
	}
	return nil
}

// MappingError reports a source row that cannot be translated.
type MappingError struct {
	Type EntityType
	Key  string
	Err  error
}

func (e *MappingError) Error() string {
	if e.Key == "" {
		return "mapping " + e.Type.String() + ": " + e.Err.Error()
	}
	return "mapping " + e.Type.String() + " " + e.Key + ": " + e.Err.Error()
}

func (e *MappingError) Unwrap() error { return e.Err }
