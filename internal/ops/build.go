package ops

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/config"
	"github.com/mvickers/dossier/internal/db"
	"github.com/mvickers/dossier/internal/distill"
	"github.com/mvickers/dossier/internal/errors"
)

// versionRaceRetries bounds how often a build re-reads the max version
// after losing a unique-constraint race to a concurrent writer.
const versionRaceRetries = 3

// BuildInput contains parameters for the Build operation.
type BuildInput struct {
	TicketPK     string // one of TicketPK or TicketID is required
	TicketID     string
	RepoFullName string
	Role         string // required

	SelectedArtifactIDs []string
	SelectedSnippets    []bundle.Snippet
	AgentRun            map[string]any
	Progress            map[string]any
	Events              []any
	Content             bundle.Payload // optional explicit payload override

	GitRef    bundle.GitRef // required, non-blank
	CreatedBy string        // defaults to config
}

// BuildOutput contains the result of the Build operation.
type BuildOutput struct {
	Success bool        `json:"success"`
	Bundle  BundleInfo  `json:"bundle"`
	Receipt ReceiptInfo `json:"receipt"`
	Reused  bool        `json:"reused"`
}

// BundleInfo is the bundle slice of a build response.
type BundleInfo struct {
	BundleID  string `json:"bundle_id"`
	Version   int    `json:"version"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
}

// ReceiptInfo is the receipt slice of a build response.
type ReceiptInfo struct {
	ReceiptID       string         `json:"receipt_id"`
	ContentChecksum string         `json:"content_checksum"`
	BundleChecksum  string         `json:"bundle_checksum"`
	SectionMetrics  map[string]int `json:"section_metrics"`
	TotalCharacters int            `json:"total_characters"`
}

// Build creates (or reuses) a versioned context bundle with its receipt.
//
// Flow: validate → assemble → content checksum → idempotency check →
// allocate next version → write bundle + receipt in one transaction.
// Identical content for the same (repo, ticket, role) returns the existing
// bundle's receipt unchanged with reused: true.
func Build(ctx context.Context, database *sql.DB, cfg *config.Config, gate *distill.Gate, input BuildInput) (*BuildOutput, error) {
	// Client input errors are rejected before any external call.
	if _, err := validateRole(input.Role); err != nil {
		return nil, err
	}
	if input.GitRef.IsBlank() {
		return nil, errors.NewBlankGitRef()
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

	contentChecksum, err := bundle.ContentChecksum(asm.Payload)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	// Idempotency: a store error here is surfaced rather than falling
	// through to a new write, which would mask duplicates.
	existing, err := db.FindByContentChecksum(ctx, database, ticket.RepoFullName, ticket.PK, input.Role, contentChecksum)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		receipt, err := db.GetReceiptByBundleID(ctx, database, existing.ID)
		if err != nil {
			return nil, err
		}
		return &BuildOutput{
			Success: true,
			Bundle: BundleInfo{
				BundleID:  existing.ID,
				Version:   existing.Version,
				Role:      existing.Role,
				CreatedAt: existing.CreatedAt,
			},
			Receipt: receiptInfo(receipt),
			Reused:  true,
		}, nil
	}

	createdBy := input.CreatedBy
	if createdBy == "" {
		createdBy = cfg.CreatedBy
	}

	// Versioned write. The unique index on (repo, ticket, role, version) is
	// the authority under concurrency; on conflict re-read max and retry.
	var lastVersion int
	for attempt := 0; attempt < versionRaceRetries; attempt++ {
		maxVersion, err := db.MaxVersion(ctx, database, ticket.RepoFullName, ticket.PK, input.Role)
		if err != nil {
			return nil, err
		}
		version := maxVersion + 1
		lastVersion = version

		out, err := writeVersion(ctx, database, asm, ticket, input, createdBy, version, contentChecksum)
		if err == db.ErrVersionTaken {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	return nil, errors.NewVersionConflict(ticket.RepoFullName, ticket.PK, input.Role, lastVersion)
}

// writeVersion stamps the payload with the authoritative version and
// persists bundle + receipt atomically.
func writeVersion(ctx context.Context, database *sql.DB, asm *assembled, ticket *db.Ticket, input BuildInput, createdBy string, version int, contentChecksum string) (*BuildOutput, error) {
	identity := bundle.Identity{
		RepoFullName: ticket.RepoFullName,
		TicketPK:     ticket.PK,
		TicketID:     ticket.TicketID,
		Role:         input.Role,
		Version:      version,
	}

	stampedContent, bundleChecksum, err := bundle.Stamp(asm.Payload, identity)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if stampedContent != contentChecksum {
		// Stamp recomputes from the same payload; a mismatch means the
		// payload mutated between checksum and write.
		return nil, errors.NewInternal(fmt.Errorf("content checksum drifted during build"))
	}

	bundleJSON, err := bundle.CanonicalString(asm.Payload)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	// Metrics are computed from the final stored payload.
	metrics, err := bundle.SectionMetrics(asm.Payload)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	total := bundle.TotalCharacters(metrics)

	bundleID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	receiptID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()

	var createdByPtr *string
	if createdBy != "" {
		createdByPtr = &createdBy
	}

	b := &bundle.ContextBundle{
		ID:              bundleID,
		RepoFullName:    ticket.RepoFullName,
		TicketPK:        ticket.PK,
		TicketID:        ticket.TicketID,
		Role:            input.Role,
		Version:         version,
		BundleJSON:      bundleJSON,
		ContentChecksum: contentChecksum,
		BundleChecksum:  bundleChecksum,
		CreatedBy:       createdByPtr,
		CreatedAt:       now,
	}

	r := &bundle.Receipt{
		ID:               receiptID,
		BundleID:         bundleID,
		RepoFullName:     ticket.RepoFullName,
		TicketPK:         ticket.PK,
		TicketID:         ticket.TicketID,
		Role:             input.Role,
		ContentChecksum:  contentChecksum,
		BundleChecksum:   bundleChecksum,
		SectionMetrics:   metrics,
		TotalCharacters:  total,
		RedRef:           asm.RedRef,
		ManifestRef:      asm.ManifestRef,
		GitRef:           input.GitRef,
		ArtifactRefs:     asm.ArtifactRefs,
		SelectedSnippets: input.SelectedSnippets,
		CreatedAt:        now,
	}

	if err := db.InsertBundleAndReceipt(ctx, database, b, r); err != nil {
		return nil, err
	}

	return &BuildOutput{
		Success: true,
		Bundle: BundleInfo{
			BundleID:  bundleID,
			Version:   version,
			Role:      input.Role,
			CreatedAt: now,
		},
		Receipt: receiptInfo(r),
		Reused:  false,
	}, nil
}

func receiptInfo(r *bundle.Receipt) ReceiptInfo {
	return ReceiptInfo{
		ReceiptID:       r.ID,
		ContentChecksum: r.ContentChecksum,
		BundleChecksum:  r.BundleChecksum,
		SectionMetrics:  r.SectionMetrics,
		TotalCharacters: r.TotalCharacters,
	}
}
