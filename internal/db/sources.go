package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/errors"
)

// Ticket is one row of the dashboard's ticket backlog.
type Ticket struct {
	PK           string `json:"ticket_pk"`
	RepoFullName string `json:"repo_full_name"`
	TicketID     string `json:"ticket_id"`
	DisplayID    string `json:"display_id"`
	BodyMD       string `json:"body_md"`
	CreatedAt    int64  `json:"created_at"`
}

// Artifact is one long-form source artifact attached to a ticket.
type Artifact struct {
	ArtifactID string `json:"artifact_id"`
	TicketPK   string `json:"ticket_pk"`
	Title      string `json:"title"`
	BodyMD     string `json:"body_md"`
	CreatedAt  int64  `json:"created_at"`
}

// InsertTicket stores a ticket row.
func InsertTicket(ctx context.Context, db *sql.DB, t *Ticket) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO tickets (ticket_pk, repo_full_name, ticket_id, display_id, body_md, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.PK, t.RepoFullName, t.TicketID, t.DisplayID, t.BodyMD, t.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewInvalidRequest("ticket already exists: " + t.PK)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetTicketByPK retrieves a ticket by primary key.
func GetTicketByPK(ctx context.Context, db *sql.DB, pk string) (*Ticket, error) {
	row := db.QueryRowContext(ctx, `
		SELECT ticket_pk, repo_full_name, ticket_id, display_id, body_md, created_at
		FROM tickets WHERE ticket_pk = ?
	`, pk)
	return scanTicket(row, pk)
}

// GetTicketByExternalID retrieves a ticket by its external identifier.
// Repo narrows the search when provided.
func GetTicketByExternalID(ctx context.Context, db *sql.DB, repo, ticketID string) (*Ticket, error) {
	query := `
		SELECT ticket_pk, repo_full_name, ticket_id, display_id, body_md, created_at
		FROM tickets WHERE ticket_id = ?
	`
	args := []any{ticketID}
	if repo != "" {
		query += " AND repo_full_name = ?"
		args = append(args, repo)
	}

	row := db.QueryRowContext(ctx, query, args...)
	return scanTicket(row, ticketID)
}

func scanTicket(row *sql.Row, identifier string) (*Ticket, error) {
	var t Ticket
	err := row.Scan(&t.PK, &t.RepoFullName, &t.TicketID, &t.DisplayID, &t.BodyMD, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("ticket", identifier)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &t, nil
}

// InsertArtifact stores an artifact row.
func InsertArtifact(ctx context.Context, db *sql.DB, a *Artifact) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO artifacts (artifact_id, ticket_pk, title, body_md, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, a.ArtifactID, a.TicketPK, a.Title, a.BodyMD, a.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewInvalidRequest("artifact already exists: " + a.ArtifactID)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return errors.NewNotFound("ticket", a.TicketPK)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetArtifactsByIDs retrieves artifacts for a ticket in the order of the
// requested id list. IDs that match no row are returned in missing.
func GetArtifactsByIDs(ctx context.Context, db *sql.DB, ticketPK string, ids []string) (found []Artifact, missing []string, err error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, ticketPK)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT artifact_id, ticket_pk, title, body_md, created_at
		FROM artifacts
		WHERE ticket_pk = ? AND artifact_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, nil, errors.NewInternal(err)
	}
	defer rows.Close()

	byID := make(map[string]Artifact, len(ids))
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ArtifactID, &a.TicketPK, &a.Title, &a.BodyMD, &a.CreatedAt); err != nil {
			return nil, nil, errors.NewInternal(err)
		}
		byID[a.ArtifactID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.NewInternal(err)
	}

	// Preserve request order
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			found = append(found, a)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing, nil
}

// InsertRequirementsDoc stores a requirements document reference.
func InsertRequirementsDoc(ctx context.Context, db *sql.DB, id, repo string, version int, createdAt int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO requirements_docs (red_id, repo_full_name, version, created_at)
		VALUES (?, ?, ?, ?)
	`, id, repo, version, createdAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewInvalidRequest("requirements doc version already exists for " + repo)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// LatestRequirementsRef returns the highest-version requirements doc for a
// repo, or nil when the repo has none.
func LatestRequirementsRef(ctx context.Context, db *sql.DB, repo string) (*bundle.DocRef, error) {
	var ref bundle.DocRef
	err := db.QueryRowContext(ctx, `
		SELECT red_id, version FROM requirements_docs
		WHERE repo_full_name = ?
		ORDER BY version DESC LIMIT 1
	`, repo).Scan(&ref.ID, &ref.Version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ref, nil
}

// InsertManifest stores an integration manifest reference.
func InsertManifest(ctx context.Context, db *sql.DB, id, repo string, version, schemaVersion int, createdAt int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO integration_manifests (manifest_id, repo_full_name, version, schema_version, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, repo, version, schemaVersion, createdAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewInvalidRequest("manifest version already exists for " + repo)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// LatestManifestRef returns the highest-version manifest for a repo and
// schema version, or nil when none exists. Schema version 0 means any.
func LatestManifestRef(ctx context.Context, db *sql.DB, repo string, schemaVersion int) (*bundle.ManifestRef, error) {
	query := `
		SELECT manifest_id, version, schema_version FROM integration_manifests
		WHERE repo_full_name = ?
	`
	args := []any{repo}
	if schemaVersion > 0 {
		query += " AND schema_version = ?"
		args = append(args, schemaVersion)
	}
	query += " ORDER BY version DESC LIMIT 1"

	var ref bundle.ManifestRef
	err := db.QueryRowContext(ctx, query, args...).Scan(&ref.ManifestID, &ref.Version, &ref.SchemaVersion)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ref, nil
}
