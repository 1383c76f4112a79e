package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/db"
	"github.com/mvickers/dossier/internal/errors"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	TicketPK     string // one of TicketPK or TicketID is required
	TicketID     string
	RepoFullName string
	Role         string // optional filter

	Limit  int
	Offset int
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Bundles    []bundle.Summary `json:"bundles"`
	Pagination Pagination       `json:"pagination"`
}

// List returns bundle summaries for a ticket, newest version first per role.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	role := strings.TrimSpace(input.Role)
	if role != "" {
		if _, err := validateRole(role); err != nil {
			return nil, err
		}
	}
	if input.Offset < 0 {
		return nil, errors.NewInvalidRequest("offset must be non-negative")
	}

	ticket, err := resolveTicket(ctx, database, TicketIdentity{
		TicketPK:     input.TicketPK,
		TicketID:     input.TicketID,
		RepoFullName: input.RepoFullName,
	})
	if err != nil {
		return nil, err
	}

	limit := clampLimit(input.Limit)
	items, total, err := db.ListBundles(ctx, database, ticket.RepoFullName, ticket.PK, role, limit, input.Offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []bundle.Summary{}
	}

	return &ListOutput{
		Bundles: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  input.Offset,
			HasMore: input.Offset+len(items) < total,
			Total:   total,
		},
	}, nil
}
