package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
)

const artifactColumns = `id, document_id, operation, version, content_address, tier, confidence, created_at`

// CommitSucceeded records a finished job in one transaction: the
// artifact metadata row, the current pointer for (document, operation),
// and the ledger flip RUNNING -> SUCCEEDED. The artifact payload must
// already be in the blob store; this row is what makes it visible.
func (s *Store) CommitSucceeded(ctx context.Context, jobID string, artifact model.Artifact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET state = ?, tier_used = ?, error = NULL, updated_at = ?
		WHERE id = ? AND state = ?`,
		model.JobSucceeded, artifact.Tier, now, jobID, model.JobRunning,
	)
	if err := casResult(res, err); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO artifacts (`+artifactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		artifact.ID, artifact.DocumentID, artifact.Operation, artifact.Version,
		artifact.ContentAddress, artifact.Tier, artifact.Confidence, artifact.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO current_artifacts (document_id, operation, artifact_id)
		VALUES (?, ?, ?)
		ON CONFLICT(document_id, operation) DO UPDATE SET artifact_id = excluded.artifact_id`,
		artifact.DocumentID, artifact.Operation, artifact.ID,
	); err != nil {
		return fmt.Errorf("update current artifact: %w", err)
	}

	return tx.Commit()
}

// GetArtifact returns an artifact by ID.
func (s *Store) GetArtifact(ctx context.Context, id string) (*model.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id)
	return scanArtifact(row)
}

// GetCurrentArtifact returns the artifact the current pointer for
// (document, operation) designates, or ErrNotFound if the operation has
// never succeeded for this document.
func (s *Store) GetCurrentArtifact(ctx context.Context, documentID, operation string) (*model.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.document_id, a.operation, a.version, a.content_address, a.tier, a.confidence, a.created_at
		FROM artifacts a
		JOIN current_artifacts c ON c.artifact_id = a.id
		WHERE c.document_id = ? AND c.operation = ?`,
		documentID, operation,
	)
	return scanArtifact(row)
}

// ListArtifacts returns all artifact versions for a document, newest first.
func (s *Store) ListArtifacts(ctx context.Context, documentID string) ([]model.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+artifactColumns+` FROM artifacts
		WHERE document_id = ? ORDER BY operation ASC, version DESC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []model.Artifact
	for rows.Next() {
		a, err := scanArtifactRows(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, rows.Err()
}

func scanArtifact(row rowScanner) (*model.Artifact, error) {
	a, err := scanArtifactRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return a, err
}

func scanArtifactRows(row rowScanner) (*model.Artifact, error) {
	var a model.Artifact
	if err := row.Scan(&a.ID, &a.DocumentID, &a.Operation, &a.Version,
		&a.ContentAddress, &a.Tier, &a.Confidence, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
