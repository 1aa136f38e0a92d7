package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "error with cause",
			err: Wrap(KindConfig, "load", "failed to load config",
				errors.New("file not found")),
			contains: []string{"[config:load]", "failed to load config", "file not found"},
		},
		{
			name:     "error without cause",
			err:      New(KindValidation, "validate", "unsupported media type"),
			contains: []string{"[validation:validate]", "unsupported media type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(KindUpstream, "test", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestWrap_KeepsInnermostKind(t *testing.T) {
	inner := New(KindGate, "gate.evaluate", "no food")
	outer := Wrap(KindInternal, "pipeline", "failed", fmt.Errorf("context: %w", inner))
	if outer.Kind != KindGate {
		t.Fatalf("expected gate kind to survive wrapping, got %s", outer.Kind)
	}
	if Wrap(KindInternal, "x", "y", nil) != nil {
		t.Fatal("wrapping nil must yield nil")
	}
}

func TestRewrap_OverridesKind(t *testing.T) {
	inner := New(KindUpstream, "vlm", "timeout")
	outer := Rewrap(KindInternal, "pipeline.identify", "identification failed", inner)
	if KindOf(outer) != KindInternal {
		t.Fatalf("expected internal, got %s", KindOf(outer))
	}
	if OpOf(outer) != "pipeline.identify" {
		t.Fatalf("unexpected op %q", OpOf(outer))
	}
	if !errors.Is(outer, inner) {
		t.Fatal("rewrap must keep the cause chain")
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{
			name:     "direct error kind match",
			err:      New(KindConfig, "test", "message"),
			kind:     KindConfig,
			expected: true,
		},
		{
			name:     "wrapped error kind match",
			err:      fmt.Errorf("outer: %w", Wrap(KindUpstream, "test", "message", errors.New("cause"))),
			kind:     KindUpstream,
			expected: true,
		},
		{
			name:     "error kind mismatch",
			err:      New(KindConfig, "test", "message"),
			kind:     KindDomain,
			expected: false,
		},
		{
			name:     "non-typed error",
			err:      errors.New("plain error"),
			kind:     KindConfig,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsKind(tt.err, tt.kind)
			if result != tt.expected {
				t.Errorf("IsKind() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestKindOf_Untyped(t *testing.T) {
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatal("untyped errors report unknown kind")
	}
	if OpOf(errors.New("plain")) != "" {
		t.Fatal("untyped errors report empty op")
	}
}
