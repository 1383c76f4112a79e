package errors

import "fmt"

// ErrorCode represents a Dossier error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"      // 400
	ErrUnknownRole        ErrorCode = "UNKNOWN_ROLE"         // 400
	ErrBlankGitRef        ErrorCode = "BLANK_GIT_REF"        // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"            // 404
	ErrVersionConflict    ErrorCode = "VERSION_CONFLICT"     // 409
	ErrDistillationFailed ErrorCode = "DISTILLATION_FAILED"  // 422
	ErrReceiptWriteFailed ErrorCode = "RECEIPT_WRITE_FAILED" // 500
	ErrInternal           ErrorCode = "INTERNAL"             // 500
)

// DossierError represents a structured error with code, status, and details.
type DossierError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *DossierError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *DossierError {
	return &DossierError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnknownRole creates a 400 error for a role outside the budget table.
func NewUnknownRole(role string) *DossierError {
	return &DossierError{
		Code:    ErrUnknownRole,
		Status:  400,
		Message: fmt.Sprintf("unknown role: %q", role),
		Details: map[string]any{"role": role},
	}
}

// NewBlankGitRef creates a 400 error for a git ref with no usable sub-field.
func NewBlankGitRef() *DossierError {
	return &DossierError{
		Code:    ErrBlankGitRef,
		Status:  400,
		Message: "git_ref must carry at least one of pr_url, base_sha, head_sha",
	}
}

// NewNotFound creates a 404 error for a missing bundle, receipt, or
// collaborator record.
func NewNotFound(kind, identifier string) *DossierError {
	return &DossierError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewVersionConflict creates a 409 error for a version race that survived
// all retries.
func NewVersionConflict(repo, ticketPK, role string, version int) *DossierError {
	return &DossierError{
		Code:    ErrVersionConflict,
		Status:  409,
		Message: fmt.Sprintf("version %d already written for (%s, %s, %s); retry the request", version, repo, ticketPK, role),
		Details: map[string]any{"repo_full_name": repo, "ticket_pk": ticketPK, "role": role, "version": version},
	}
}

// NewDistillationFailed creates a 422 error carrying every per-artifact
// failure. The whole request is rejected; no partial bundle exists.
func NewDistillationFailed(failures map[string]string) *DossierError {
	return &DossierError{
		Code:    ErrDistillationFailed,
		Status:  422,
		Message: fmt.Sprintf("distillation failed for %d artifact(s); no bundle was persisted", len(failures)),
		Details: map[string]any{"failures": failures},
	}
}

// NewReceiptWriteFailed creates a 500 error for a receipt insert failure.
// The surrounding transaction is rolled back, so no orphan bundle remains;
// the message still names both halves so operators know what happened.
func NewReceiptWriteFailed(bundleID string, err error) *DossierError {
	return &DossierError{
		Code:    ErrReceiptWriteFailed,
		Status:  500,
		Message: fmt.Sprintf("bundle %s write rolled back: receipt insert failed: %v", bundleID, err),
		Details: map[string]any{"bundle_id": bundleID},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *DossierError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &DossierError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a DossierError with the given code.
func Is(err error, code ErrorCode) bool {
	if dErr, ok := err.(*DossierError); ok {
		return dErr.Code == code
	}
	return false
}
