package ops

import (
	"context"
	"database/sql"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/db"
	"github.com/mvickers/dossier/internal/distill"
	"github.com/mvickers/dossier/internal/errors"
)

// PreviewInput contains parameters for the Preview operation.
// Same shape as BuildInput minus the git ref: preview is a pure
// read/compute path and persists nothing.
type PreviewInput struct {
	TicketPK     string
	TicketID     string
	RepoFullName string
	Role         string // required

	SelectedArtifactIDs []string
	SelectedSnippets    []bundle.Snippet
	AgentRun            map[string]any
	Progress            map[string]any
	Events              []any
	Content             bundle.Payload
}

// BudgetReport describes how the previewed bundle sits against the role's
// hard character limit.
type BudgetReport struct {
	CharacterCount int    `json:"characterCount"`
	HardLimit      int    `json:"hardLimit"`
	Role           string `json:"role"`
	DisplayName    string `json:"displayName"`
	Exceeds        bool   `json:"exceeds"`
	Overage        int    `json:"overage"`
}

// PreviewOutput contains the result of the Preview operation.
type PreviewOutput struct {
	Budget         BudgetReport   `json:"budget"`
	SectionMetrics map[string]int `json:"sectionMetrics"`
	Bundle         bundle.Payload `json:"bundle"`
}

// Preview assembles and checksums a bundle without writing anything.
// The meta section is stamped with the version the next Build would use.
func Preview(ctx context.Context, database *sql.DB, gate *distill.Gate, input PreviewInput) (*PreviewOutput, error) {
	budget, err := validateRole(input.Role)
	if err != nil {
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

	asm, err := assemblePayload(ctx, database, gate, assembleInput{
		Ticket:              ticket,
		SelectedArtifactIDs: input.SelectedArtifactIDs,
		SelectedSnippets:    input.SelectedSnippets,
		AgentRun:            input.AgentRun,
		Progress:            input.Progress,
		Events:              input.Events,
		Content:             input.Content,
	})
	if err != nil {
		return nil, err
	}

	// Provisional next version, purely informational here.
	maxVersion, err := db.MaxVersion(ctx, database, ticket.RepoFullName, ticket.PK, input.Role)
	if err != nil {
		return nil, err
	}

	identity := bundle.Identity{
		RepoFullName: ticket.RepoFullName,
		TicketPK:     ticket.PK,
		TicketID:     ticket.TicketID,
		Role:         input.Role,
		Version:      maxVersion + 1,
	}
	if _, _, err := bundle.Stamp(asm.Payload, identity); err != nil {
		return nil, errors.NewInternal(err)
	}

	metrics, err := bundle.SectionMetrics(asm.Payload)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	total := bundle.TotalCharacters(metrics)

	return &PreviewOutput{
		Budget: BudgetReport{
			CharacterCount: total,
			HardLimit:      budget.HardLimit,
			Role:           budget.Role,
			DisplayName:    budget.DisplayName,
			Exceeds:        budget.ExceedsBudget(total),
			Overage:        budget.CalculateOverage(total),
		},
		SectionMetrics: metrics,
		Bundle:         asm.Payload,
	}, nil
}
