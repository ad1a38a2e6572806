package renderer

import (
	"errors"
	"fmt"
)

// Renderer errors.
var (
	// ErrSynchronization indicates the shared render state can no longer be
	// trusted, typically because a panic occurred while its lock was held.
	// It is terminal for the renderer instance.
	ErrSynchronization = errors.New("synchronization failure")

	// ErrTerminalIO indicates a terminal read, write or query failed.
	// Restarting the session may recover.
	ErrTerminalIO = errors.New("terminal I/O failure")

	// ErrAlreadyRunning indicates Run was called twice.
	ErrAlreadyRunning = errors.New("renderer already running")
)

// Kind classifies a renderer failure.
type Kind int

const (
	// KindSynchronization is a shared state failure.
	KindSynchronization Kind = iota + 1
	// KindTerminalIO is a terminal failure.
	KindTerminalIO
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSynchronization:
		return "synchronization"
	case KindTerminalIO:
		return "terminal-io"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindSynchronization:
		return ErrSynchronization
	case KindTerminalIO:
		return ErrTerminalIO
	default:
		return nil
	}
}

// Error is a renderer failure with the operation that produced it.
type Error struct {
	Kind   Kind   // Failure class
	Op     string // Operation name (e.g., "detect-resize", "commit")
	Detail string // Human readable detail
	Err    error  // Underlying error, if any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	msg := e.Kind.String() + " failure"
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is implements errors.Is for Error.
// Matches the sentinel for the error's kind as well as the wrapped error.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		return e == t
	}
	if s := e.Kind.sentinel(); s != nil && target == s {
		return true
	}
	return false
}

// IsSynchronization reports whether err is a synchronization failure.
func IsSynchronization(err error) bool {
	return errors.Is(err, ErrSynchronization)
}

// IsTerminalIO reports whether err is a terminal I/O failure.
func IsTerminalIO(err error) bool {
	return errors.Is(err, ErrTerminalIO)
}

func terminalIOError(op string, err error) *Error {
	return &Error{Kind: KindTerminalIO, Op: op, Err: err}
}

func syncError(op, detail string) *Error {
	return &Error{Kind: KindSynchronization, Op: op, Detail: detail}
}
