package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/config"
	"github.com/mvickers/dossier/internal/db"
	"github.com/mvickers/dossier/internal/distill"
)

// TestFullWorkflow exercises the whole lifecycle end to end: seed a ticket
// with artifacts and repo documents, build a bundle, read it back through
// every query path, verify it, and confirm a rebuild reuses it.
func TestFullWorkflow(t *testing.T) {
	ctx := context.Background()

	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	cfg := config.DefaultConfig()
	cfg.CreatedBy = "workflow-test"
	gate := distill.ForConfig(cfg)

	// Seed the repo surface
	ticket, err := TicketAdd(ctx, database, TicketAddInput{
		RepoFullName: "acme/widgets",
		TicketID:     "ISSUE-7",
		DisplayID:    "#7",
		BodyMD:       "## Goal\nAdd the export endpoint.",
	})
	require.NoError(t, err)
	require.NotEmpty(t, ticket.TicketPK)

	artifact, err := ArtifactAdd(ctx, database, ArtifactAddInput{
		TicketPK: ticket.TicketPK,
		Title:    "Export Design",
		BodyMD:   "Exports stream as CSV.\n\n- batch size is 500 rows\n- output path /var/exports",
	})
	require.NoError(t, err)

	_, err = RedAdd(ctx, database, RedAddInput{RepoFullName: "acme/widgets", Version: 1})
	require.NoError(t, err)
	_, err = ManifestAdd(ctx, database, ManifestAddInput{RepoFullName: "acme/widgets", Version: 1, SchemaVersion: 1})
	require.NoError(t, err)

	// Preview first: nothing persisted, budget reported
	preview, err := Preview(ctx, database, gate, PreviewInput{
		TicketPK:            ticket.TicketPK,
		Role:                bundle.RoleImplementation,
		SelectedArtifactIDs: []string{artifact.ArtifactID},
	})
	require.NoError(t, err)
	require.False(t, preview.Budget.Exceeds)
	require.Contains(t, preview.Bundle, bundle.SectionDistilledArtifacts)

	// Build version 1
	built, err := Build(ctx, database, cfg, gate, BuildInput{
		TicketPK:            ticket.TicketPK,
		Role:                bundle.RoleImplementation,
		SelectedArtifactIDs: []string{artifact.ArtifactID},
		Progress:            map[string]any{"phase": "implementation"},
		GitRef:              bundle.GitRef{PRURL: "https://github.com/acme/widgets/pull/7", PRNumber: 7},
	})
	require.NoError(t, err)
	require.True(t, built.Success)
	require.False(t, built.Reused)
	require.Equal(t, 1, built.Bundle.Version)
	require.Equal(t, preview.Budget.CharacterCount, built.Receipt.TotalCharacters)

	// Fetch by id and by identity agree
	fetched, err := Fetch(ctx, database, FetchInput{BundleID: built.Bundle.BundleID})
	require.NoError(t, err)
	require.Equal(t, built.Receipt.ContentChecksum, fetched.ContentChecksum)
	require.NotNil(t, fetched.Payload)

	byIdentity, err := Fetch(ctx, database, FetchInput{
		RepoFullName: "acme/widgets",
		TicketPK:     ticket.TicketPK,
		Role:         bundle.RoleImplementation,
	})
	require.NoError(t, err)
	require.Equal(t, fetched.ID, byIdentity.ID)

	// Receipt records provenance
	receipt, err := GetReceipt(ctx, database, GetReceiptInput{BundleID: built.Bundle.BundleID})
	require.NoError(t, err)
	require.Equal(t, built.Receipt.ReceiptID, receipt.Receipt.ID)
	require.NotNil(t, receipt.Receipt.RedRef)
	require.NotNil(t, receipt.Receipt.ManifestRef)
	require.Len(t, receipt.Receipt.ArtifactRefs, 1)
	require.Equal(t, artifact.ArtifactID, receipt.Receipt.ArtifactRefs[0].ArtifactID)

	// Verify reports a clean store
	verified, err := Verify(ctx, database, VerifyInput{BundleID: built.Bundle.BundleID})
	require.NoError(t, err)
	require.True(t, verified.Valid, "problems: %v", verified.Problems)

	// Identical rebuild reuses version 1
	rebuilt, err := Build(ctx, database, cfg, gate, BuildInput{
		TicketPK:            ticket.TicketPK,
		Role:                bundle.RoleImplementation,
		SelectedArtifactIDs: []string{artifact.ArtifactID},
		Progress:            map[string]any{"phase": "implementation"},
		GitRef:              bundle.GitRef{PRURL: "https://github.com/acme/widgets/pull/7", PRNumber: 7},
	})
	require.NoError(t, err)
	require.True(t, rebuilt.Reused)
	require.Equal(t, built.Bundle.BundleID, rebuilt.Bundle.BundleID)

	// Changed content takes version 2
	updated, err := Build(ctx, database, cfg, gate, BuildInput{
		TicketPK:            ticket.TicketPK,
		Role:                bundle.RoleImplementation,
		SelectedArtifactIDs: []string{artifact.ArtifactID},
		Progress:            map[string]any{"phase": "review"},
		GitRef:              bundle.GitRef{PRURL: "https://github.com/acme/widgets/pull/7", PRNumber: 7},
	})
	require.NoError(t, err)
	require.False(t, updated.Reused)
	require.Equal(t, 2, updated.Bundle.Version)

	// List and latest see both versions
	listed, err := List(ctx, database, ListInput{TicketPK: ticket.TicketPK})
	require.NoError(t, err)
	require.Equal(t, 2, listed.Pagination.Total)
	require.Equal(t, 2, listed.Bundles[0].Version, "newest first")

	latest, err := Latest(ctx, database, LatestInput{TicketPK: ticket.TicketPK, Role: bundle.RoleImplementation})
	require.NoError(t, err)
	require.Equal(t, updated.Bundle.BundleID, latest.ID)
	require.Equal(t, []int{1, 2}, latest.Versions)
}
