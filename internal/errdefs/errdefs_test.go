package errdefs

import (
	"fmt"
	"testing"
)

func TestValidationErrorMessage(t *testing.T) {
	tests := []struct {
		err  *ValidationError
		want string
	}{
		{&ValidationError{Kind: KindInvalidWeight, Subject: "t1"}, "InvalidWeight(t1)"},
		{&ValidationError{Kind: KindCountOutOfRange, Detail: "single expects 1 target, got 2"}, "CountOutOfRange: single expects 1 target, got 2"},
		{&ValidationError{Kind: KindMalformedAddress, Subject: "t2", Detail: `"10.0.0.300"`}, `MalformedAddress(t2): "10.0.0.300"`},
		{&ValidationError{Kind: KindUnknownType}, "UnknownType"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error(): got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassification(t *testing.T) {
	wrapped := fmt.Errorf("creating record: %w", Invalid(KindInvalidWeight, "t1", ""))
	if !IsValidation(wrapped, KindInvalidWeight) {
		t.Error("expected wrapped error to match InvalidWeight")
	}
	if !IsValidation(wrapped, "") {
		t.Error("expected empty kind to match any validation error")
	}
	if IsValidation(wrapped, KindMalformedAddress) {
		t.Error("expected kind mismatch to not match")
	}

	if !IsNotFound(fmt.Errorf("record %q: %w", "example.com", ErrNotFound)) {
		t.Error("expected IsNotFound on wrapped ErrNotFound")
	}
	if IsConflict(ErrNotFound) {
		t.Error("ErrNotFound is not a conflict")
	}
}
