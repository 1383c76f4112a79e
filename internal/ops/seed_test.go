package ops

import (
	"context"
	"testing"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/errors"
)

func TestTicketAdd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := TicketAdd(ctx, env.db, TicketAddInput{
		RepoFullName: testRepo,
		TicketID:     "ISSUE-99",
		BodyMD:       "body",
	})
	if err != nil {
		t.Fatalf("TicketAdd error = %v", err)
	}
	if !out.Success || out.TicketPK == "" {
		t.Errorf("out = %+v, want success with a generated pk", out)
	}
	if out.Ticket.DisplayID != "ISSUE-99" {
		t.Errorf("DisplayID = %s, want the ticket id fallback", out.Ticket.DisplayID)
	}

	ticket, err := resolveTicket(ctx, env.db, TicketIdentity{TicketPK: out.TicketPK})
	if err != nil {
		t.Fatalf("resolveTicket error = %v", err)
	}
	if ticket.TicketID != "ISSUE-99" {
		t.Errorf("TicketID = %s, want ISSUE-99", ticket.TicketID)
	}
}

func TestTicketAdd_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := TicketAdd(ctx, env.db, TicketAddInput{TicketID: "ISSUE-99"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("missing repo error = %v, want INVALID_REQUEST", err)
	}
	if _, err := TicketAdd(ctx, env.db, TicketAddInput{RepoFullName: testRepo}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("missing ticket_id error = %v, want INVALID_REQUEST", err)
	}
}

func TestArtifactAdd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := ArtifactAdd(ctx, env.db, ArtifactAddInput{
		TicketPK: testTicketPK,
		Title:    "Design Notes",
		BodyMD:   "Tokens expire after 900 seconds.",
	})
	if err != nil {
		t.Fatalf("ArtifactAdd error = %v", err)
	}
	if !out.Success || out.ArtifactID == "" {
		t.Errorf("out = %+v", out)
	}

	// The artifact is selectable in a build
	input := buildInput(bundle.RoleImplementation)
	input.SelectedArtifactIDs = []string{out.ArtifactID}
	if _, err := Build(ctx, env.db, env.cfg, env.gate, input); err != nil {
		t.Fatalf("Build with added artifact error = %v", err)
	}
}

func TestArtifactAdd_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []ArtifactAddInput{
		{Title: "t", BodyMD: "b"},
		{TicketPK: testTicketPK, BodyMD: "b"},
		{TicketPK: testTicketPK, Title: "t"},
	}
	for i, input := range cases {
		if _, err := ArtifactAdd(ctx, env.db, input); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("case %d error = %v, want INVALID_REQUEST", i, err)
		}
	}

	if _, err := ArtifactAdd(ctx, env.db, ArtifactAddInput{TicketPK: "ghost", Title: "t", BodyMD: "b"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown ticket error = %v, want NOT_FOUND", err)
	}
}

func TestRedAdd_ReferencedByNextBuild(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := RedAdd(ctx, env.db, RedAddInput{RepoFullName: testRepo, Version: 3})
	if err != nil {
		t.Fatalf("RedAdd error = %v", err)
	}
	if !out.Success || out.Version != 3 {
		t.Errorf("out = %+v", out)
	}

	built, err := Build(ctx, env.db, env.cfg, env.gate, buildInput(bundle.RoleImplementation))
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	receipt, err := GetReceipt(ctx, env.db, GetReceiptInput{BundleID: built.Bundle.BundleID})
	if err != nil {
		t.Fatalf("GetReceipt error = %v", err)
	}
	if receipt.Receipt.RedRef == nil || receipt.Receipt.RedRef.Version != 3 {
		t.Errorf("RedRef = %+v, want the registered doc at version 3", receipt.Receipt.RedRef)
	}
}

func TestManifestAdd_ReferencedByNextBuild(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := ManifestAdd(ctx, env.db, ManifestAddInput{RepoFullName: testRepo, Version: 2, SchemaVersion: 1})
	if err != nil {
		t.Fatalf("ManifestAdd error = %v", err)
	}
	if !out.Success {
		t.Errorf("out = %+v", out)
	}

	built, err := Build(ctx, env.db, env.cfg, env.gate, buildInput(bundle.RoleImplementation))
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	receipt, err := GetReceipt(ctx, env.db, GetReceiptInput{BundleID: built.Bundle.BundleID})
	if err != nil {
		t.Fatalf("GetReceipt error = %v", err)
	}
	if receipt.Receipt.ManifestRef == nil || receipt.Receipt.ManifestRef.Version != 2 {
		t.Errorf("ManifestRef = %+v, want the registered manifest at version 2", receipt.Receipt.ManifestRef)
	}
}

func TestRedAdd_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := RedAdd(ctx, env.db, RedAddInput{Version: 1}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("missing repo error = %v, want INVALID_REQUEST", err)
	}
	if _, err := RedAdd(ctx, env.db, RedAddInput{RepoFullName: testRepo, Version: 0}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("version 0 error = %v, want INVALID_REQUEST", err)
	}
	if _, err := ManifestAdd(ctx, env.db, ManifestAddInput{RepoFullName: testRepo, Version: 1, SchemaVersion: 0}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("schema 0 error = %v, want INVALID_REQUEST", err)
	}
}
