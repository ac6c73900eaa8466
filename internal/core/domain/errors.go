package domain

import (
	"errors"
	"fmt"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidAgent   = errors.New("invalid agent")
	ErrInvalidRating  = errors.New("invalid rating")
	ErrEmptySelection = errors.New("empty agent selection")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrTemporary      = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
