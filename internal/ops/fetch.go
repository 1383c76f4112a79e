package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/db"
	"github.com/mvickers/dossier/internal/errors"
)

// FetchInput contains parameters for the Fetch operation.
// Address by bundle ID, or by identity tuple (repo + ticket_pk + role);
// version 0 means latest.
type FetchInput struct {
	BundleID string

	RepoFullName string
	TicketPK     string
	Role         string
	Version      int

	IncludePayload *bool // default: true
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	bundle.Summary                // embedded
	Payload        bundle.Payload `json:"payload,omitempty"`
}

// Fetch retrieves a bundle by ID or identity tuple.
func Fetch(ctx context.Context, database *sql.DB, input FetchInput) (*FetchOutput, error) {
	b, err := fetchBundle(ctx, database, input)
	if err != nil {
		return nil, err
	}

	out := &FetchOutput{Summary: b.ToSummary()}

	includePayload := true
	if input.IncludePayload != nil {
		includePayload = *input.IncludePayload
	}
	if includePayload {
		payload, err := bundle.ParsePayload(b.BundleJSON)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out.Payload = payload
	}

	return out, nil
}

func fetchBundle(ctx context.Context, database *sql.DB, input FetchInput) (*bundle.ContextBundle, error) {
	id := strings.TrimSpace(input.BundleID)
	if id != "" {
		return db.GetBundleByID(ctx, database, id)
	}

	repo := strings.TrimSpace(input.RepoFullName)
	ticketPK := strings.TrimSpace(input.TicketPK)
	role := strings.TrimSpace(input.Role)
	if repo == "" || ticketPK == "" || role == "" {
		return nil, errors.NewInvalidRequest("must specify bundle_id or (repo_full_name, ticket_pk, role)")
	}
	if _, err := validateRole(role); err != nil {
		return nil, err
	}

	return db.GetBundleByIdentity(ctx, database, repo, ticketPK, role, input.Version)
}
