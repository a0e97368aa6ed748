package services

import (
	"errors"
	"fmt"
)

var (
	ErrNoCategories       = errors.New("no categories configured")
	ErrNoFallbackCategory = errors.New(`fallback category "Other" is missing`)
	ErrSessionNotFound    = errors.New("import session not found")
	ErrRateLimited        = errors.New("import rate limit exceeded")
	ErrDuplicateHash      = errors.New("transaction with this message hash already exists")
)

// ConfigurationError aborts a whole batch before any message is processed
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
