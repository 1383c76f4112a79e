package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/db"
	"github.com/mvickers/dossier/internal/errors"
)

// GetReceiptInput contains parameters for the GetReceipt operation.
type GetReceiptInput struct {
	BundleID string

	RepoFullName string
	TicketPK     string
	Role         string
	Version      int // 0 = latest
}

// GetReceiptOutput contains the result of the GetReceipt operation.
type GetReceiptOutput struct {
	Receipt *bundle.Receipt `json:"receipt"`
}

// GetReceipt retrieves the receipt for a bundle, addressed by bundle ID
// or by identity tuple.
func GetReceipt(ctx context.Context, database *sql.DB, input GetReceiptInput) (*GetReceiptOutput, error) {
	bundleID := strings.TrimSpace(input.BundleID)
	if bundleID == "" {
		b, err := fetchBundle(ctx, database, FetchInput{
			RepoFullName: input.RepoFullName,
			TicketPK:     input.TicketPK,
			Role:         input.Role,
			Version:      input.Version,
		})
		if err != nil {
			if errors.Is(err, errors.ErrInvalidRequest) {
				return nil, errors.NewInvalidRequest("must specify bundle_id or (repo_full_name, ticket_pk, role)")
			}
			return nil, err
		}
		bundleID = b.ID
	}

	receipt, err := db.GetReceiptByBundleID(ctx, database, bundleID)
	if err != nil {
		return nil, err
	}
	return &GetReceiptOutput{Receipt: receipt}, nil
}
