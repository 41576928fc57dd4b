package commands

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateCommand is returned when a root name is already registered in a scope.
	ErrDuplicateCommand = errors.New("duplicate command")
	// ErrUnknownCommand is returned when no registered node matches the invoked path.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMalformedOptions is returned when option values are missing or fail coercion.
	ErrMalformedOptions = errors.New("malformed options")
	// ErrInvalidCommand is returned by Build for a tree the platform would reject.
	ErrInvalidCommand = errors.New("invalid command")
)

// ResolveError describes why an interaction could not be resolved. It
// unwraps to ErrUnknownCommand or ErrMalformedOptions.
type ResolveError struct {
	Err    error
	Path   []string
	Option string
	Reason string
}

func (e *ResolveError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "resolving /%s: %v", strings.Join(e.Path, " "), e.Err)
	if e.Option != "" {
		fmt.Fprintf(&b, ": option %q", e.Option)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

func (e *ResolveError) Unwrap() error { return e.Err }

func unknown(path []string, reason string) *ResolveError {
	return &ResolveError{Err: ErrUnknownCommand, Path: path, Reason: reason}
}

func malformed(path []string, option, reason string) *ResolveError {
	return &ResolveError{Err: ErrMalformedOptions, Path: path, Option: option, Reason: reason}
}

func invalid(path []string, format string, args ...any) error {
	return fmt.Errorf("%w /%s: %s", ErrInvalidCommand, strings.Join(path, " "), fmt.Sprintf(format, args...))
}
