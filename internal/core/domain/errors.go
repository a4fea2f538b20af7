package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrConfig             = errors.New("configuration error")
	ErrUnknownMode        = fmt.Errorf("unknown mode: %w", ErrConfig)
	ErrUnsupportedFormat  = errors.New("unsupported file type")
	ErrUnavailable        = errors.New("dependency unavailable")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrExperimentNotFound = errors.New("experiment not found")
	ErrDimensionMismatch  = errors.New("vector dimension mismatch")
	ErrCacheMiss          = errors.New("cache miss")
	ErrTemporary          = errors.New("temporary failure")
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
