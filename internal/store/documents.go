package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
)

const documentColumns = `id, owner_id, source_type, source_url, title, content_address, fingerprint, word_count, created_at`

// CreateDocument inserts a new document row.
func (s *Store) CreateDocument(ctx context.Context, doc model.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.OwnerID, doc.SourceType, nullable(doc.SourceURL), nullable(doc.Title),
		doc.ContentAddress, doc.Fingerprint, doc.WordCount, doc.CreatedAt,
	)
	return err
}

// GetDocument returns a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// ListDocumentsByOwner returns all documents owned by ownerID, newest first.
func (s *Store) ListDocumentsByOwner(ctx context.Context, ownerID string) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// DocumentOwners resolves owner IDs for a set of documents in one query.
// Unknown IDs are simply absent from the result.
func (s *Store) DocumentOwners(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id FROM documents WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, owner string
		if err := rows.Scan(&id, &owner); err != nil {
			return nil, err
		}
		out[id] = owner
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	doc, err := scanDocumentRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return doc, err
}

func scanDocumentRows(row rowScanner) (*model.Document, error) {
	var doc model.Document
	var sourceURL, title sql.NullString
	if err := row.Scan(&doc.ID, &doc.OwnerID, &doc.SourceType, &sourceURL, &title,
		&doc.ContentAddress, &doc.Fingerprint, &doc.WordCount, &doc.CreatedAt); err != nil {
		return nil, err
	}
	doc.SourceURL = sourceURL.String
	doc.Title = title.String
	return &doc, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
