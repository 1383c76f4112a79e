package ops

import (
	"context"
	"testing"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/errors"
)

func TestVerify_CleanBundle(t *testing.T) {
	env := newTestEnv(t)
	built := seedBuilds(t, env, bundle.RoleImplementation, 1)[0]

	out, err := Verify(context.Background(), env.db, VerifyInput{BundleID: built.Bundle.BundleID})
	if err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if !out.Valid {
		t.Fatalf("clean bundle failed verification: %v", out.Problems)
	}
	if !out.ContentChecksumOK || !out.BundleChecksumOK || !out.MetaOK || !out.ReceiptOK || !out.MetricsOK {
		t.Errorf("verification flags = %+v, want all true", out)
	}
	if len(out.Problems) != 0 {
		t.Errorf("Problems = %v, want none", out.Problems)
	}
}

func TestVerify_ByIdentity(t *testing.T) {
	env := newTestEnv(t)
	seedBuilds(t, env, bundle.RoleQA, 2)

	out, err := Verify(context.Background(), env.db, VerifyInput{
		RepoFullName: testRepo,
		TicketPK:     testTicketPK,
		Role:         bundle.RoleQA,
		Version:      1,
	})
	if err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if !out.Valid {
		t.Errorf("verification failed: %v", out.Problems)
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	env := newTestEnv(t)
	built := seedBuilds(t, env, bundle.RoleImplementation, 1)[0]
	ctx := context.Background()

	// Corrupt the stored payload behind the checksum's back
	_, err := env.db.ExecContext(ctx,
		`UPDATE bundles SET bundle_json = replace(bundle_json, 'widget', 'gadget') WHERE bundle_id = ?`,
		built.Bundle.BundleID)
	if err != nil {
		t.Fatalf("tamper update error = %v", err)
	}

	out, err := Verify(ctx, env.db, VerifyInput{BundleID: built.Bundle.BundleID})
	if err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if out.Valid {
		t.Fatal("tampered bundle passed verification")
	}
	if out.ContentChecksumOK {
		t.Error("content checksum mismatch not detected")
	}
	if len(out.Problems) == 0 {
		t.Error("no problems reported for a tampered bundle")
	}
}

func TestVerify_Missing(t *testing.T) {
	env := newTestEnv(t)

	_, err := Verify(context.Background(), env.db, VerifyInput{BundleID: "01GHOST"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}
