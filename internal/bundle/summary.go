package bundle

// Summary represents a bundle's identity and checksums without the payload.
// Used for browse operations (list, latest) to reduce data transfer.
type Summary struct {
	ID              string  `json:"bundle_id"`
	RepoFullName    string  `json:"repo_full_name"`
	TicketPK        string  `json:"ticket_pk"`
	TicketID        string  `json:"ticket_id"`
	Role            string  `json:"role"`
	Version         int     `json:"version"`
	ContentChecksum string  `json:"content_checksum"`
	BundleChecksum  string  `json:"bundle_checksum"`
	CreatedBy       *string `json:"created_by,omitempty"`
	CreatedAt       int64   `json:"created_at"`
}

// ToSummary converts a ContextBundle to a Summary by stripping the payload.
func (b *ContextBundle) ToSummary() Summary {
	return Summary{
		ID:              b.ID,
		RepoFullName:    b.RepoFullName,
		TicketPK:        b.TicketPK,
		TicketID:        b.TicketID,
		Role:            b.Role,
		Version:         b.Version,
		ContentChecksum: b.ContentChecksum,
		BundleChecksum:  b.BundleChecksum,
		CreatedBy:       b.CreatedBy,
		CreatedAt:       b.CreatedAt,
	}
}
