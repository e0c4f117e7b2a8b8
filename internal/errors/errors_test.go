package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestGeometaError_Format verifies that messages include reason, suggestion and cause.
func TestGeometaError_Format(t *testing.T) {
	err := NewEngineQueryFailed("mysql", "shadow upsert", fmt.Errorf("connection reset"))

	msg := err.Error()
	for _, want := range []string{"shadow upsert failed on mysql", "Reason:", "Suggestion:", "Caused by: connection reset"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected message to contain %q, got %q", want, msg)
		}
	}
}

// TestGeometaError_Unwrap verifies that causes stay reachable through errors.Is.
func TestGeometaError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", NewMigrationFailed("000001_settings", cause))

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the cause")
	}

	var mf *ErrMigrationFailed
	if !errors.As(err, &mf) {
		t.Fatalf("expected errors.As to find ErrMigrationFailed")
	}
	if mf.Migration != "000001_settings" {
		t.Errorf("expected migration '000001_settings', got %q", mf.Migration)
	}
}

// TestCodeOf verifies exit-code mapping.
func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCode
	}{
		{NewUnknownObjectType("widget"), CodeValidation},
		{NewConfigInvalid("engine.driver", "required"), CodeConfig},
		{NewDatabaseUnavailable("refused"), CodeEngine},
		{fmt.Errorf("outer: %w", NewSettingsUnavailable("k", nil)), CodeEngine},
		{errors.New("plain"), CodeInternal},
	}

	for _, tc := range cases {
		if got := CodeOf(tc.err); got != tc.want {
			t.Errorf("CodeOf(%v): expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
