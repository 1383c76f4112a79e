package ops

import (
	"context"
	"database/sql"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/db"
	"github.com/mvickers/dossier/internal/errors"
)

// LatestInput contains parameters for the Latest operation.
type LatestInput struct {
	TicketPK     string // one of TicketPK or TicketID is required
	TicketID     string
	RepoFullName string
	Role         string // required

	IncludePayload *bool // default: false
}

// LatestOutput contains the result of the Latest operation.
type LatestOutput struct {
	bundle.Summary
	Versions []int          `json:"versions"`
	Payload  bundle.Payload `json:"payload,omitempty"`
}

// Latest returns the highest-version bundle for (ticket, role) along with
// the full version history for that identity.
func Latest(ctx context.Context, database *sql.DB, input LatestInput) (*LatestOutput, error) {
	if _, err := validateRole(input.Role); err != nil {
		return nil, err
	}

	ticket, err := resolveTicket(ctx, database, TicketIdentity{
		TicketPK:     input.TicketPK,
		TicketID:     input.TicketID,
		RepoFullName: input.RepoFullName,
	})
	if err != nil {
		return nil, err
	}

	b, err := db.GetBundleByIdentity(ctx, database, ticket.RepoFullName, ticket.PK, input.Role, 0)
	if err != nil {
		return nil, err
	}
	versions, err := db.ListVersions(ctx, database, ticket.RepoFullName, ticket.PK, input.Role)
	if err != nil {
		return nil, err
	}

	out := &LatestOutput{Summary: b.ToSummary(), Versions: versions}

	if input.IncludePayload != nil && *input.IncludePayload {
		payload, err := bundle.ParsePayload(b.BundleJSON)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out.Payload = payload
	}

	return out, nil
}
