package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mvickers/dossier/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite database at baseDir/dossier.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.dossier.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, "dossier.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS bundles (
		  bundle_id        TEXT PRIMARY KEY,
		  repo_full_name   TEXT NOT NULL,
		  ticket_pk        TEXT NOT NULL,
		  ticket_id        TEXT NOT NULL,
		  role             TEXT NOT NULL,
		  version          INTEGER NOT NULL CHECK (version >= 1),
		  bundle_json      TEXT NOT NULL,
		  content_checksum TEXT NOT NULL,
		  bundle_checksum  TEXT NOT NULL,
		  created_by       TEXT,
		  created_at       INTEGER NOT NULL
		);

		-- Authority for version races: concurrent writers for the same
		-- identity tuple collide here and the loser retries.
		CREATE UNIQUE INDEX IF NOT EXISTS idx_bundles_identity_version
		ON bundles(repo_full_name, ticket_pk, role, version);

		-- Idempotency lookup: newest identical-content bundle first.
		CREATE INDEX IF NOT EXISTS idx_bundles_content
		ON bundles(repo_full_name, ticket_pk, role, content_checksum, version DESC);

		CREATE TABLE IF NOT EXISTS receipts (
		  receipt_id             TEXT PRIMARY KEY,
		  bundle_id              TEXT NOT NULL UNIQUE REFERENCES bundles(bundle_id),
		  repo_full_name         TEXT NOT NULL,
		  ticket_pk              TEXT NOT NULL,
		  ticket_id              TEXT NOT NULL,
		  role                   TEXT NOT NULL,
		  content_checksum       TEXT NOT NULL,
		  bundle_checksum        TEXT NOT NULL,
		  section_metrics_json   TEXT NOT NULL,
		  total_characters       INTEGER NOT NULL,
		  red_ref_json           TEXT,
		  manifest_ref_json      TEXT,
		  git_ref_json           TEXT NOT NULL,
		  artifact_refs_json     TEXT,
		  selected_snippets_json TEXT,
		  created_at             INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_receipts_identity
		ON receipts(repo_full_name, ticket_pk, role);

		CREATE TABLE IF NOT EXISTS tickets (
		  ticket_pk      TEXT PRIMARY KEY,
		  repo_full_name TEXT NOT NULL,
		  ticket_id      TEXT NOT NULL,
		  display_id     TEXT NOT NULL,
		  body_md        TEXT NOT NULL,
		  created_at     INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_repo_ticket_id
		ON tickets(repo_full_name, ticket_id);

		CREATE TABLE IF NOT EXISTS artifacts (
		  artifact_id TEXT PRIMARY KEY,
		  ticket_pk   TEXT NOT NULL REFERENCES tickets(ticket_pk),
		  title       TEXT NOT NULL,
		  body_md     TEXT NOT NULL,
		  created_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_artifacts_ticket
		ON artifacts(ticket_pk);

		CREATE TABLE IF NOT EXISTS requirements_docs (
		  red_id         TEXT PRIMARY KEY,
		  repo_full_name TEXT NOT NULL,
		  version        INTEGER NOT NULL CHECK (version >= 1),
		  created_at     INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_red_repo_version
		ON requirements_docs(repo_full_name, version);

		CREATE TABLE IF NOT EXISTS integration_manifests (
		  manifest_id    TEXT PRIMARY KEY,
		  repo_full_name TEXT NOT NULL,
		  version        INTEGER NOT NULL CHECK (version >= 1),
		  schema_version INTEGER NOT NULL,
		  created_at     INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_manifests_repo_schema_version
		ON integration_manifests(repo_full_name, schema_version, version);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
