package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/db"
	"github.com/mvickers/dossier/internal/errors"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// TicketIdentity carries the fields a request may use to name a ticket:
// either a direct (ticket_pk [, repo_full_name]) pair or an external
// ticket_id (optionally narrowed by repo).
type TicketIdentity struct {
	TicketPK     string
	TicketID     string
	RepoFullName string
}

// resolveTicket resolves a TicketIdentity to its backing row.
// Fails with NOT_FOUND when the lookup misses and INVALID_REQUEST when no
// usable identity field was supplied.
func resolveTicket(ctx context.Context, database *sql.DB, id TicketIdentity) (*db.Ticket, error) {
	pk := strings.TrimSpace(id.TicketPK)
	external := strings.TrimSpace(id.TicketID)

	switch {
	case pk != "":
		return db.GetTicketByPK(ctx, database, pk)
	case external != "":
		return db.GetTicketByExternalID(ctx, database, strings.TrimSpace(id.RepoFullName), external)
	default:
		return nil, errors.NewInvalidRequest("must specify ticket_pk or ticket_id")
	}
}

// validateRole returns the budget entry for a role, or UNKNOWN_ROLE.
func validateRole(role string) (bundle.RoleBudget, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return bundle.RoleBudget{}, errors.NewInvalidRequest("role is required")
	}
	budget, ok := bundle.GetRoleBudget(role)
	if !ok {
		return bundle.RoleBudget{}, errors.NewUnknownRole(role)
	}
	return budget, nil
}

// clampLimit applies list limit defaults and bounds.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
