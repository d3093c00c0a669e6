package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Domain errors returned by every service. Handlers map them to HTTP status codes.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("access denied")
	ErrValidation        = errors.New("validation failed")
)

// lookupErr turns a repository lookup failure into ErrNotFound when the row is missing.
func lookupErr(entity string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %w", entity, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func transitionErr(entity, from, to string) error {
	return fmt.Errorf("%w: %s cannot move from %s to %s", ErrInvalidTransition, entity, from, to)
}
