package service

import (
	"errors"
	"fmt"

	"league-engine/internal/repository"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnavailable marks a storage failure the caller may retry.
	ErrUnavailable = errors.New("league store unavailable")

	ErrNotFound = repository.ErrNotFound
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
