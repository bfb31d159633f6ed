package store

import (
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors reused across the store's entity operations. Higher
// layers match on these to map failures to user-facing messages instead
// of treating everything as an unknown storage error. Absence of a row
// is not an error anywhere in this package: point lookups return nil.
var (
	// ErrConstraint is returned when an insert or update violates a unique
	// or foreign-key constraint, e.g. a duplicate email or favorite pair.
	ErrConstraint = errors.New("constraint violation")

	// ErrInvalidInput is returned when an input struct fails validation
	// before any SQL runs.
	ErrInvalidInput = errors.New("invalid input")
)

// wrapErr translates driver errors into the store's taxonomy while
// keeping the underlying cause in the chain.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%s: %w: %v", op, ErrConstraint, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Store) checkInput(name string, v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%s: %w: %v", name, ErrInvalidInput, err)
	}
	return nil
}
