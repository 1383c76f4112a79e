package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/db"
	"github.com/mvickers/dossier/internal/errors"
)

// VerifyInput contains parameters for the Verify operation.
type VerifyInput struct {
	BundleID string

	RepoFullName string
	TicketPK     string
	Role         string
	Version      int
}

// VerifyOutput contains the result of the Verify operation.
type VerifyOutput struct {
	BundleID string `json:"bundle_id"`
	Valid    bool   `json:"valid"`

	ContentChecksumOK bool `json:"content_checksum_ok"`
	BundleChecksumOK  bool `json:"bundle_checksum_ok"`
	MetaOK            bool `json:"meta_ok"`
	ReceiptOK         bool `json:"receipt_ok"`
	MetricsOK         bool `json:"metrics_ok"`

	Problems []string `json:"problems,omitempty"`
}

// Verify recomputes a stored bundle's checksums and metrics from its
// serialized payload and checks them against the bundle row, the embedded
// meta section, and the receipt. A clean store always verifies; any
// mismatch means the row was tampered with or corrupted.
func Verify(ctx context.Context, database *sql.DB, input VerifyInput) (*VerifyOutput, error) {
	b, err := fetchBundle(ctx, database, FetchInput{
		BundleID:     input.BundleID,
		RepoFullName: input.RepoFullName,
		TicketPK:     input.TicketPK,
		Role:         input.Role,
		Version:      input.Version,
	})
	if err != nil {
		return nil, err
	}
	receipt, err := db.GetReceiptByBundleID(ctx, database, b.ID)
	if err != nil {
		return nil, err
	}

	payload, err := bundle.ParsePayload(b.BundleJSON)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	contentChecksum, err := bundle.ContentChecksum(payload)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	bundleChecksum := bundle.BundleChecksum(contentChecksum, bundle.Identity{
		RepoFullName: b.RepoFullName,
		TicketPK:     b.TicketPK,
		TicketID:     b.TicketID,
		Role:         b.Role,
		Version:      b.Version,
	})
	metrics, err := bundle.SectionMetrics(payload)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	total := bundle.TotalCharacters(metrics)

	out := &VerifyOutput{
		BundleID:          b.ID,
		ContentChecksumOK: contentChecksum == b.ContentChecksum,
		BundleChecksumOK:  bundleChecksum == b.BundleChecksum,
		MetaOK:            metaMatches(payload, contentChecksum, bundleChecksum),
		ReceiptOK:         receipt.ContentChecksum == b.ContentChecksum && receipt.BundleChecksum == b.BundleChecksum,
		MetricsOK:         receipt.TotalCharacters == total && metricsMatch(receipt.SectionMetrics, metrics),
	}

	if !out.ContentChecksumOK {
		out.Problems = append(out.Problems, fmt.Sprintf("content checksum mismatch: stored %s, recomputed %s", b.ContentChecksum, contentChecksum))
	}
	if !out.BundleChecksumOK {
		out.Problems = append(out.Problems, fmt.Sprintf("bundle checksum mismatch: stored %s, recomputed %s", b.BundleChecksum, bundleChecksum))
	}
	if !out.MetaOK {
		out.Problems = append(out.Problems, "embedded meta section does not match recomputed checksums")
	}
	if !out.ReceiptOK {
		out.Problems = append(out.Problems, "receipt checksums disagree with bundle row")
	}
	if !out.MetricsOK {
		out.Problems = append(out.Problems, "receipt section metrics disagree with recomputed metrics")
	}

	out.Valid = len(out.Problems) == 0
	return out, nil
}

// metaMatches checks the checksums embedded in the payload's meta section.
func metaMatches(p bundle.Payload, contentChecksum, bundleChecksum string) bool {
	meta, ok := p[bundle.MetaSection].(map[string]any)
	if !ok {
		return false
	}
	gotContent, _ := meta["content_checksum"].(string)
	gotBundle, _ := meta["bundle_checksum"].(string)
	return gotContent == contentChecksum && gotBundle == bundleChecksum
}

func metricsMatch(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
