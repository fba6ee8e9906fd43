package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRule   = errors.New("invalid rule")
	ErrNameMismatch  = errors.New("rule name does not match its key")
	ErrRuleNotFound  = errors.New("rule not found")
	ErrInvalidSchema = errors.New("invalid catalog schema version")
)

// NotFoundError is returned when a rule is requested that the catalog does
// not contain.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("rule %q not found in catalog", e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrRuleNotFound
}
