package app

import (
	"errors"
	"testing"
)

func TestOperationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *OperationError
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "op only",
			err:      &OperationError{Op: "init terminal"},
			expected: "init terminal",
		},
		{
			name:     "op and target",
			err:      &OperationError{Op: "load config", Target: "taskdash.toml"},
			expected: "load config taskdash.toml",
		},
		{
			name:     "full error chain",
			err:      &OperationError{Op: "produce content", Target: "tasks.yaml", Err: errors.New("io error")},
			expected: "produce content tasks.yaml: io error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.err.Error()
			if result != tt.expected {
				t.Errorf("Error() = '%s', expected '%s'", result, tt.expected)
			}
		})
	}
}

func TestOperationError_Is(t *testing.T) {
	inner := errors.New("inner")
	err := NewOperationError("open log", "/tmp/x", inner)

	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to match wrapped error")
	}
	if !errors.Is(err, err) {
		t.Error("expected errors.Is to match itself")
	}
	if errors.Is(err, NewOperationError("open log", "/tmp/x", inner)) {
		t.Error("distinct wrappers should not match")
	}

	var nilErr *OperationError
	if nilErr.Is(inner) {
		t.Error("nil receiver should not match")
	}
	if nilErr.Unwrap() != nil {
		t.Error("nil receiver should unwrap to nil")
	}
}

func TestInitError(t *testing.T) {
	inner := errors.New("bad fps")
	err := initError("load config", "taskdash.toml", inner)

	if !errors.Is(err, ErrInitialization) {
		t.Error("expected ErrInitialization")
	}
	if !errors.Is(err, inner) {
		t.Error("expected wrapped cause")
	}

	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Target != "taskdash.toml" {
		t.Errorf("expected OperationError for taskdash.toml, got %v", err)
	}
}
