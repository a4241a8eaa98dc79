// Package store is the structured store: document ownership rows, the
// job ledger (which doubles as the durable work queue), and artifact
// metadata. Artifact and document content live in the blob store; a row
// here is the sole visibility gate for that content.
package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Verify at compile time that Store implements all interfaces.
var (
	_ DocumentStore = (*Store)(nil)
	_ JobLedger     = (*Store)(nil)
	_ ArtifactStore = (*Store)(nil)
)

// Store provides data access to the SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// currentSchemaVersion is bumped whenever the schema changes.
// Add a new migration function in the migrations slice below.
const currentSchemaVersion = 1

func (s *Store) migrate() error {
	// Ensure the schema_version table exists.
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		// Fresh database: initialize to version 0.
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// migrations is an ordered list of migration functions.
	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: initial schema
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema (v0 → v1).
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id              TEXT PRIMARY KEY,
		owner_id        TEXT NOT NULL,
		source_type     TEXT NOT NULL,
		source_url      TEXT,
		title           TEXT,
		content_address TEXT NOT NULL,
		fingerprint     TEXT NOT NULL,
		word_count      INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id, created_at);

	CREATE TABLE IF NOT EXISTS jobs (
		id            TEXT PRIMARY KEY,
		document_id   TEXT NOT NULL REFERENCES documents(id),
		operation     TEXT NOT NULL,
		version       INTEGER NOT NULL,
		state         TEXT NOT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		tier_used     TEXT,
		tiers_tried   TEXT NOT NULL DEFAULT '',
		error         TEXT,
		run_after     TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_active
		ON jobs(document_id, operation) WHERE state IN ('QUEUED','RUNNING');
	CREATE INDEX IF NOT EXISTS idx_jobs_queue ON jobs(state, run_after);

	CREATE TABLE IF NOT EXISTS artifacts (
		id              TEXT PRIMARY KEY,
		document_id     TEXT NOT NULL REFERENCES documents(id),
		operation       TEXT NOT NULL,
		version         INTEGER NOT NULL,
		content_address TEXT NOT NULL,
		tier            TEXT NOT NULL,
		confidence      REAL NOT NULL,
		created_at      TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_artifacts_version
		ON artifacts(document_id, operation, version);

	CREATE TABLE IF NOT EXISTS current_artifacts (
		document_id TEXT NOT NULL REFERENCES documents(id),
		operation   TEXT NOT NULL,
		artifact_id TEXT NOT NULL REFERENCES artifacts(id),
		PRIMARY KEY (document_id, operation)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
