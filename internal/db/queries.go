package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/errors"
)

// ErrVersionTaken is returned when a bundle insert loses a version race.
// Callers re-read the max version and retry.
var ErrVersionTaken = &errors.DossierError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "bundle version already written for this (repo, ticket, role)",
}

// InsertBundleAndReceipt writes a bundle and its receipt in one transaction.
// Either both rows land or neither does; a receipt failure rolls the bundle
// back and is surfaced as RECEIPT_WRITE_FAILED.
func InsertBundleAndReceipt(ctx context.Context, db *sql.DB, b *bundle.ContextBundle, r *bundle.Receipt) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bundles (
			bundle_id, repo_full_name, ticket_pk, ticket_id, role, version,
			bundle_json, content_checksum, bundle_checksum, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, b.RepoFullName, b.TicketPK, b.TicketID, b.Role, b.Version,
		b.BundleJSON, b.ContentChecksum, b.BundleChecksum, toNullString(b.CreatedBy), b.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrVersionTaken
		}
		return errors.NewInternal(err)
	}

	metricsJSON, err := json.Marshal(r.SectionMetrics)
	if err != nil {
		return errors.NewInternal(err)
	}
	gitRefJSON, err := json.Marshal(r.GitRef)
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO receipts (
			receipt_id, bundle_id, repo_full_name, ticket_pk, ticket_id, role,
			content_checksum, bundle_checksum, section_metrics_json, total_characters,
			red_ref_json, manifest_ref_json, git_ref_json,
			artifact_refs_json, selected_snippets_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.BundleID, r.RepoFullName, r.TicketPK, r.TicketID, r.Role,
		r.ContentChecksum, r.BundleChecksum, string(metricsJSON), r.TotalCharacters,
		marshalNullable(r.RedRef), marshalNullable(r.ManifestRef), string(gitRefJSON),
		marshalNullableSlice(r.ArtifactRefs), marshalNullableSlice(r.SelectedSnippets), r.CreatedAt,
	)
	if err != nil {
		return errors.NewReceiptWriteFailed(b.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// MaxVersion returns the highest version written for an identity tuple,
// or 0 when no bundle exists yet.
func MaxVersion(ctx context.Context, db *sql.DB, repo, ticketPK, role string) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM bundles
		WHERE repo_full_name = ? AND ticket_pk = ? AND role = ?
	`, repo, ticketPK, role).Scan(&v)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return v, nil
}

// FindByContentChecksum returns the most recent bundle for the identity
// tuple with the given content checksum, or nil when none exists.
// Any store error is surfaced; the caller must never treat it as "not found".
func FindByContentChecksum(ctx context.Context, db *sql.DB, repo, ticketPK, role, checksum string) (*bundle.ContextBundle, error) {
	row := db.QueryRowContext(ctx, selectBundle+`
		WHERE repo_full_name = ? AND ticket_pk = ? AND role = ? AND content_checksum = ?
		ORDER BY version DESC LIMIT 1
	`, repo, ticketPK, role, checksum)

	b, err := scanBundle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return b, nil
}

// GetBundleByID retrieves a bundle by its ULID.
func GetBundleByID(ctx context.Context, db *sql.DB, id string) (*bundle.ContextBundle, error) {
	row := db.QueryRowContext(ctx, selectBundle+" WHERE bundle_id = ?", id)
	b, err := scanBundle(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("bundle", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return b, nil
}

// GetBundleByIdentity retrieves a bundle by identity tuple and version.
// Version 0 means the latest version.
func GetBundleByIdentity(ctx context.Context, db *sql.DB, repo, ticketPK, role string, version int) (*bundle.ContextBundle, error) {
	query := selectBundle + " WHERE repo_full_name = ? AND ticket_pk = ? AND role = ?"
	args := []any{repo, ticketPK, role}
	if version > 0 {
		query += " AND version = ?"
		args = append(args, version)
	} else {
		query += " ORDER BY version DESC LIMIT 1"
	}

	row := db.QueryRowContext(ctx, query, args...)
	b, err := scanBundle(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("bundle", repo+"/"+ticketPK+"/"+role)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return b, nil
}

// GetReceiptByBundleID retrieves the receipt for a bundle.
func GetReceiptByBundleID(ctx context.Context, db *sql.DB, bundleID string) (*bundle.Receipt, error) {
	row := db.QueryRowContext(ctx, `
		SELECT receipt_id, bundle_id, repo_full_name, ticket_pk, ticket_id, role,
			content_checksum, bundle_checksum, section_metrics_json, total_characters,
			red_ref_json, manifest_ref_json, git_ref_json,
			artifact_refs_json, selected_snippets_json, created_at
		FROM receipts
		WHERE bundle_id = ?
	`, bundleID)

	r, err := scanReceipt(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("receipt", bundleID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListBundles returns bundle summaries for a ticket, newest first.
// Role is optional; empty string means all roles.
func ListBundles(ctx context.Context, db *sql.DB, repo, ticketPK, role string, limit, offset int) ([]bundle.Summary, int, error) {
	where := " WHERE repo_full_name = ? AND ticket_pk = ?"
	args := []any{repo, ticketPK}
	if role != "" {
		where += " AND role = ?"
		args = append(args, role)
	}

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bundles"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT bundle_id, repo_full_name, ticket_pk, ticket_id, role, version,
			content_checksum, bundle_checksum, created_by, created_at
		FROM bundles` + where + `
		ORDER BY role, version DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var items []bundle.Summary
	for rows.Next() {
		var (
			s         bundle.Summary
			createdBy sql.NullString
		)
		if err := rows.Scan(
			&s.ID, &s.RepoFullName, &s.TicketPK, &s.TicketID, &s.Role, &s.Version,
			&s.ContentChecksum, &s.BundleChecksum, &createdBy, &s.CreatedAt,
		); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		s.CreatedBy = fromNullString(createdBy)
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return items, total, nil
}

// ListVersions returns all version numbers for an identity tuple, ascending.
func ListVersions(ctx context.Context, db *sql.DB, repo, ticketPK, role string) ([]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT version FROM bundles
		WHERE repo_full_name = ? AND ticket_pk = ? AND role = ?
		ORDER BY version ASC
	`, repo, ticketPK, role)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, errors.NewInternal(err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return versions, nil
}

const selectBundle = `
	SELECT bundle_id, repo_full_name, ticket_pk, ticket_id, role, version,
		bundle_json, content_checksum, bundle_checksum, created_by, created_at
	FROM bundles
`

// scanBundle scans a single row into a ContextBundle struct.
func scanBundle(row *sql.Row) (*bundle.ContextBundle, error) {
	var (
		b         bundle.ContextBundle
		createdBy sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.RepoFullName, &b.TicketPK, &b.TicketID, &b.Role, &b.Version,
		&b.BundleJSON, &b.ContentChecksum, &b.BundleChecksum, &createdBy, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.CreatedBy = fromNullString(createdBy)
	return &b, nil
}

// scanReceipt scans a single row into a Receipt struct.
func scanReceipt(row *sql.Row) (*bundle.Receipt, error) {
	var (
		r            bundle.Receipt
		metricsJSON  string
		gitRefJSON   string
		redJSON      sql.NullString
		manifestJSON sql.NullString
		artifactJSON sql.NullString
		snippetJSON  sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.BundleID, &r.RepoFullName, &r.TicketPK, &r.TicketID, &r.Role,
		&r.ContentChecksum, &r.BundleChecksum, &metricsJSON, &r.TotalCharacters,
		&redJSON, &manifestJSON, &gitRefJSON,
		&artifactJSON, &snippetJSON, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(metricsJSON), &r.SectionMetrics); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(gitRefJSON), &r.GitRef); err != nil {
		return nil, err
	}
	if redJSON.Valid {
		if err := json.Unmarshal([]byte(redJSON.String), &r.RedRef); err != nil {
			return nil, err
		}
	}
	if manifestJSON.Valid {
		if err := json.Unmarshal([]byte(manifestJSON.String), &r.ManifestRef); err != nil {
			return nil, err
		}
	}
	if artifactJSON.Valid {
		if err := json.Unmarshal([]byte(artifactJSON.String), &r.ArtifactRefs); err != nil {
			return nil, err
		}
	}
	if snippetJSON.Valid {
		if err := json.Unmarshal([]byte(snippetJSON.String), &r.SelectedSnippets); err != nil {
			return nil, err
		}
	}

	return &r, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// marshalNullable marshals a pointer value to a NULL-able JSON column.
func marshalNullable(v any) sql.NullString {
	if v == nil || isNilPointer(v) {
		return sql.NullString{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

// marshalNullableSlice marshals a slice to a NULL-able JSON column,
// storing NULL for empty slices.
func marshalNullableSlice[T any](s []T) sql.NullString {
	if len(s) == 0 {
		return sql.NullString{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func isNilPointer(v any) bool {
	switch p := v.(type) {
	case *bundle.DocRef:
		return p == nil
	case *bundle.ManifestRef:
		return p == nil
	}
	return false
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
