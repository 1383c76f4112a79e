package ops

import (
	"context"
	"testing"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/errors"
)

// seedBuilds creates n bundles with distinct content for the given role and
// returns their build outputs in version order.
func seedBuilds(t *testing.T, env *testEnv, role string, n int) []*BuildOutput {
	t.Helper()
	out := make([]*BuildOutput, n)
	for i := range out {
		input := buildInput(role)
		input.Progress = map[string]any{"step": i + 1}
		built, err := Build(context.Background(), env.db, env.cfg, env.gate, input)
		if err != nil {
			t.Fatalf("seed Build %d error = %v", i+1, err)
		}
		out[i] = built
	}
	return out
}

func TestFetch_ByBundleID(t *testing.T) {
	env := newTestEnv(t)
	built := seedBuilds(t, env, bundle.RoleImplementation, 1)[0]

	out, err := Fetch(context.Background(), env.db, FetchInput{BundleID: built.Bundle.BundleID})
	if err != nil {
		t.Fatalf("Fetch error = %v", err)
	}
	if out.ID != built.Bundle.BundleID || out.Version != 1 {
		t.Errorf("summary = %+v", out.Summary)
	}
	if out.Payload == nil {
		t.Fatal("payload included by default")
	}
	if _, ok := out.Payload[bundle.SectionTicket]; !ok {
		t.Error("payload missing ticket section")
	}
}

func TestFetch_ByIdentity(t *testing.T) {
	env := newTestEnv(t)
	builds := seedBuilds(t, env, bundle.RoleImplementation, 3)

	// No version: latest wins
	out, err := Fetch(context.Background(), env.db, FetchInput{
		RepoFullName: testRepo,
		TicketPK:     testTicketPK,
		Role:         bundle.RoleImplementation,
	})
	if err != nil {
		t.Fatalf("Fetch error = %v", err)
	}
	if out.ID != builds[2].Bundle.BundleID {
		t.Errorf("ID = %s, want the latest %s", out.ID, builds[2].Bundle.BundleID)
	}

	// Explicit version
	out, err = Fetch(context.Background(), env.db, FetchInput{
		RepoFullName: testRepo,
		TicketPK:     testTicketPK,
		Role:         bundle.RoleImplementation,
		Version:      2,
	})
	if err != nil {
		t.Fatalf("Fetch error = %v", err)
	}
	if out.Version != 2 {
		t.Errorf("Version = %d, want 2", out.Version)
	}
}

func TestFetch_ExcludePayload(t *testing.T) {
	env := newTestEnv(t)
	built := seedBuilds(t, env, bundle.RolePM, 1)[0]

	no := false
	out, err := Fetch(context.Background(), env.db, FetchInput{BundleID: built.Bundle.BundleID, IncludePayload: &no})
	if err != nil {
		t.Fatalf("Fetch error = %v", err)
	}
	if out.Payload != nil {
		t.Error("payload returned despite include_payload=false")
	}
	if out.ContentChecksum == "" {
		t.Error("summary fields must survive payload exclusion")
	}
}

func TestFetch_Missing(t *testing.T) {
	env := newTestEnv(t)

	if _, err := Fetch(context.Background(), env.db, FetchInput{BundleID: "01GHOST"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
	if _, err := Fetch(context.Background(), env.db, FetchInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("error = %v, want INVALID_REQUEST for missing addressing", err)
	}
}

func TestGetReceipt(t *testing.T) {
	env := newTestEnv(t)
	built := seedBuilds(t, env, bundle.RoleImplementation, 1)[0]

	out, err := GetReceipt(context.Background(), env.db, GetReceiptInput{BundleID: built.Bundle.BundleID})
	if err != nil {
		t.Fatalf("GetReceipt error = %v", err)
	}
	if out.Receipt.ID != built.Receipt.ReceiptID {
		t.Errorf("ReceiptID = %s, want %s", out.Receipt.ID, built.Receipt.ReceiptID)
	}
	if out.Receipt.GitRef.PRNumber != 7 {
		t.Errorf("GitRef = %+v, want the build's ref", out.Receipt.GitRef)
	}

	// Identity addressing resolves through the bundle
	byIdentity, err := GetReceipt(context.Background(), env.db, GetReceiptInput{
		RepoFullName: testRepo,
		TicketPK:     testTicketPK,
		Role:         bundle.RoleImplementation,
	})
	if err != nil {
		t.Fatalf("GetReceipt by identity error = %v", err)
	}
	if byIdentity.Receipt.ID != out.Receipt.ID {
		t.Errorf("identity lookup receipt = %s, want %s", byIdentity.Receipt.ID, out.Receipt.ID)
	}
}

func TestList(t *testing.T) {
	env := newTestEnv(t)
	seedBuilds(t, env, bundle.RoleImplementation, 3)
	seedBuilds(t, env, bundle.RoleQA, 1)

	out, err := List(context.Background(), env.db, ListInput{TicketPK: testTicketPK})
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if out.Pagination.Total != 4 {
		t.Errorf("Total = %d, want 4", out.Pagination.Total)
	}
	if len(out.Bundles) != 4 {
		t.Fatalf("len(Bundles) = %d, want 4", len(out.Bundles))
	}

	// Role filter
	out, err = List(context.Background(), env.db, ListInput{TicketPK: testTicketPK, Role: bundle.RoleQA})
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if len(out.Bundles) != 1 || out.Bundles[0].Role != bundle.RoleQA {
		t.Errorf("Bundles = %+v, want the single qa bundle", out.Bundles)
	}
}

func TestList_Pagination(t *testing.T) {
	env := newTestEnv(t)
	seedBuilds(t, env, bundle.RoleImplementation, 3)

	out, err := List(context.Background(), env.db, ListInput{TicketPK: testTicketPK, Limit: 2})
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if len(out.Bundles) != 2 || !out.Pagination.HasMore {
		t.Errorf("page 1 = %d bundles, HasMore = %v", len(out.Bundles), out.Pagination.HasMore)
	}

	out, err = List(context.Background(), env.db, ListInput{TicketPK: testTicketPK, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if len(out.Bundles) != 1 || out.Pagination.HasMore {
		t.Errorf("page 2 = %d bundles, HasMore = %v", len(out.Bundles), out.Pagination.HasMore)
	}
	// Newest first, so the last page holds version 1
	if out.Bundles[0].Version != 1 {
		t.Errorf("last page version = %d, want 1", out.Bundles[0].Version)
	}
}

func TestList_Validation(t *testing.T) {
	env := newTestEnv(t)

	if _, err := List(context.Background(), env.db, ListInput{TicketPK: testTicketPK, Role: "intern-agent"}); !errors.Is(err, errors.ErrUnknownRole) {
		t.Errorf("error = %v, want UNKNOWN_ROLE", err)
	}
	if _, err := List(context.Background(), env.db, ListInput{TicketPK: testTicketPK, Offset: -1}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("error = %v, want INVALID_REQUEST for negative offset", err)
	}
}

func TestList_EmptyResult(t *testing.T) {
	env := newTestEnv(t)

	out, err := List(context.Background(), env.db, ListInput{TicketPK: testTicketPK})
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if out.Bundles == nil {
		t.Error("Bundles must be an empty slice, not nil")
	}
	if out.Pagination.Total != 0 || out.Pagination.HasMore {
		t.Errorf("Pagination = %+v", out.Pagination)
	}
}

func TestLatest(t *testing.T) {
	env := newTestEnv(t)
	builds := seedBuilds(t, env, bundle.RoleImplementation, 3)

	out, err := Latest(context.Background(), env.db, LatestInput{TicketPK: testTicketPK, Role: bundle.RoleImplementation})
	if err != nil {
		t.Fatalf("Latest error = %v", err)
	}
	if out.ID != builds[2].Bundle.BundleID || out.Version != 3 {
		t.Errorf("latest = %+v, want version 3", out.Summary)
	}
	if len(out.Versions) != 3 || out.Versions[0] != 1 || out.Versions[2] != 3 {
		t.Errorf("Versions = %v, want [1 2 3]", out.Versions)
	}
	if out.Payload != nil {
		t.Error("payload excluded by default for latest")
	}

	yes := true
	out, err = Latest(context.Background(), env.db, LatestInput{TicketPK: testTicketPK, Role: bundle.RoleImplementation, IncludePayload: &yes})
	if err != nil {
		t.Fatalf("Latest error = %v", err)
	}
	if out.Payload == nil {
		t.Error("payload missing despite include_payload=true")
	}
}

func TestLatest_NoBundles(t *testing.T) {
	env := newTestEnv(t)

	_, err := Latest(context.Background(), env.db, LatestInput{TicketPK: testTicketPK, Role: bundle.RoleImplementation})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestBudgetGet(t *testing.T) {
	out, err := BudgetGet(BudgetGetInput{})
	if err != nil {
		t.Fatalf("BudgetGet error = %v", err)
	}
	if len(out.Budgets) != 4 {
		t.Errorf("len(Budgets) = %d, want all four roles", len(out.Budgets))
	}

	out, err = BudgetGet(BudgetGetInput{Role: bundle.RoleProcessReview})
	if err != nil {
		t.Fatalf("BudgetGet error = %v", err)
	}
	if len(out.Budgets) != 1 || out.Budgets[0].HardLimit != 16000 {
		t.Errorf("Budgets = %+v, want the process review budget", out.Budgets)
	}

	if _, err := BudgetGet(BudgetGetInput{Role: "intern-agent"}); !errors.Is(err, errors.ErrUnknownRole) {
		t.Errorf("error = %v, want UNKNOWN_ROLE", err)
	}
}
