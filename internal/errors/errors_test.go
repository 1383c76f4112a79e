package errors

import (
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := NewInvalidRequest("role is required")
	if got := err.Error(); got != "INVALID_REQUEST: role is required" {
		t.Errorf("Error() = %q", got)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *DossierError
		code   ErrorCode
		status int
	}{
		{"invalid request", NewInvalidRequest("x"), ErrInvalidRequest, 400},
		{"unknown role", NewUnknownRole("intern-agent"), ErrUnknownRole, 400},
		{"blank git ref", NewBlankGitRef(), ErrBlankGitRef, 400},
		{"not found", NewNotFound("bundle", "01X"), ErrNotFound, 404},
		{"version conflict", NewVersionConflict("acme/widgets", "tkt_01", "qa-agent", 4), ErrVersionConflict, 409},
		{"distillation failed", NewDistillationFailed(map[string]string{"art_01": "boom"}), ErrDistillationFailed, 422},
		{"receipt write failed", NewReceiptWriteFailed("01X", fmt.Errorf("disk full")), ErrReceiptWriteFailed, 500},
		{"internal", NewInternal(fmt.Errorf("boom")), ErrInternal, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
			if tt.err.Message == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestDetails(t *testing.T) {
	conflict := NewVersionConflict("acme/widgets", "tkt_01", "qa-agent", 4)
	if conflict.Details["version"] != 4 || conflict.Details["role"] != "qa-agent" {
		t.Errorf("Details = %v", conflict.Details)
	}

	distill := NewDistillationFailed(map[string]string{"art_01": "boom", "art_02": "cancelled"})
	failures, ok := distill.Details["failures"].(map[string]string)
	if !ok || len(failures) != 2 {
		t.Errorf("failures detail = %v", distill.Details)
	}

	rollback := NewReceiptWriteFailed("01X", fmt.Errorf("disk full"))
	if rollback.Details["bundle_id"] != "01X" {
		t.Errorf("Details = %v", rollback.Details)
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestIs(t *testing.T) {
	err := NewNotFound("bundle", "01X")
	if !Is(err, ErrNotFound) {
		t.Error("Is(NewNotFound, ErrNotFound) = false")
	}
	if Is(err, ErrInternal) {
		t.Error("Is matched the wrong code")
	}
	if Is(fmt.Errorf("plain"), ErrNotFound) {
		t.Error("Is matched a non-DossierError")
	}
	if Is(nil, ErrNotFound) {
		t.Error("Is matched nil")
	}
}
