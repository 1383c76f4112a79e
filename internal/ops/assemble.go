package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/db"
	"github.com/mvickers/dossier/internal/distill"
	"github.com/mvickers/dossier/internal/errors"
)

// assembleInput carries everything the builder merges into a payload.
type assembleInput struct {
	Ticket              *db.Ticket
	SelectedArtifactIDs []string
	SelectedSnippets    []bundle.Snippet
	AgentRun            map[string]any
	Progress            map[string]any
	Events              []any
	Content             bundle.Payload // explicit content override
}

// assembled is the builder's result: the canonical payload (meta still
// unstamped) plus the provenance the receipt records.
type assembled struct {
	Payload      bundle.Payload
	ArtifactRefs []bundle.ArtifactRef
	RedRef       *bundle.DocRef
	ManifestRef  *bundle.ManifestRef
}

// assemblePayload builds the canonical bundle payload from ticket data, the
// latest requirements and manifest references, and distilled or explicitly
// selected artifact content. The meta section is left as a placeholder for
// the checksum engine to fill.
func assemblePayload(ctx context.Context, database *sql.DB, gate *distill.Gate, in assembleInput) (*assembled, error) {
	repo := in.Ticket.RepoFullName

	redRef, err := db.LatestRequirementsRef(ctx, database, repo)
	if err != nil {
		return nil, err
	}
	manifestRef, err := db.LatestManifestRef(ctx, database, repo, 0)
	if err != nil {
		return nil, err
	}

	out := &assembled{RedRef: redRef, ManifestRef: manifestRef}

	// Explicit content wins over assembly; the caller supplied the exact
	// payload to snapshot. Meta is always rebuilt by the checksum engine.
	if in.Content != nil {
		out.Payload = bundle.WithoutMeta(in.Content)
		out.Payload[bundle.MetaSection] = emptyMeta()
		return out, nil
	}

	payload := bundle.Payload{
		bundle.SectionTicket: map[string]any{
			"ticket_pk":      in.Ticket.PK,
			"repo_full_name": in.Ticket.RepoFullName,
			"ticket_id":      in.Ticket.TicketID,
			"display_id":     in.Ticket.DisplayID,
			"body_md":        in.Ticket.BodyMD,
		},
	}

	if len(in.SelectedArtifactIDs) > 0 {
		distilled, refs, err := distillSelection(ctx, database, gate, in.Ticket.PK, in.SelectedArtifactIDs)
		if err != nil {
			return nil, err
		}
		payload[bundle.SectionDistilledArtifacts] = distilled
		out.ArtifactRefs = refs
	}

	if len(in.SelectedSnippets) > 0 {
		payload[bundle.SectionSelectedSnippets] = in.SelectedSnippets
	}
	if in.AgentRun != nil {
		payload[bundle.SectionAgentRun] = in.AgentRun
	}
	if in.Progress != nil {
		payload[bundle.SectionProgress] = in.Progress
	}
	if in.Events != nil {
		payload[bundle.SectionEvents] = in.Events
	}
	if redRef != nil {
		payload[bundle.SectionRequirements] = redRef
	}
	if manifestRef != nil {
		payload[bundle.SectionManifest] = manifestRef
	}

	payload[bundle.MetaSection] = emptyMeta()
	out.Payload = payload
	return out, nil
}

// distillSelection loads the selected artifacts and runs them through the
// distillation gate. Unknown artifact ids are a client error before any
// summarizer call is made.
func distillSelection(ctx context.Context, database *sql.DB, gate *distill.Gate, ticketPK string, ids []string) ([]bundle.DistilledArtifact, []bundle.ArtifactRef, error) {
	found, missing, err := db.GetArtifactsByIDs(ctx, database, ticketPK, ids)
	if err != nil {
		return nil, nil, err
	}
	if len(missing) > 0 {
		return nil, nil, errors.NewInvalidRequest(
			fmt.Sprintf("artifacts not found for ticket %s: %s", ticketPK, strings.Join(missing, ", ")))
	}
	if len(found) == 0 {
		return nil, nil, errors.NewInvalidRequest("artifact selection matched no artifacts")
	}

	sources := make([]distill.SourceArtifact, len(found))
	refs := make([]bundle.ArtifactRef, len(found))
	for i, a := range found {
		sources[i] = distill.SourceArtifact{
			ArtifactID: a.ArtifactID,
			Title:      a.Title,
			BodyMD:     a.BodyMD,
		}
		refs[i] = bundle.ArtifactRef{ArtifactID: a.ArtifactID, Title: a.Title}
	}

	distilled, err := gate.DistillAll(ctx, sources)
	if err != nil {
		return nil, nil, err
	}
	return distilled, refs, nil
}

// emptyMeta is the placeholder the checksum engine overwrites.
func emptyMeta() map[string]any {
	return map[string]any{
		"content_checksum": "",
		"bundle_checksum":  "",
	}
}
