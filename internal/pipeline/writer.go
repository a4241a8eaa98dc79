// Package pipeline runs queued jobs to completion: claiming from the
// ledger, routing to a model tier, validating the draft, and committing
// through the dual-store writer.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/engine"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/index"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/store"
)

// BlobStore is the writer's view of the content store.
type BlobStore interface {
	Put(address string, value []byte) error
	Get(address string) ([]byte, error)
}

// Writer commits finished work to both stores in the only safe order:
// payload blob first, metadata row second. The metadata row is the
// visibility gate, so a crash between the two leaves an orphaned blob
// and nothing else.
type Writer struct {
	blobs   BlobStore
	store   store.ArtifactStore
	keyword index.Index
	vector  index.Index
	logger  *slog.Logger
}

// NewWriter creates a Writer. The indexes may be nil when search is not
// wired (some tests).
func NewWriter(blobs BlobStore, artifacts store.ArtifactStore, keyword, vector index.Index, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{blobs: blobs, store: artifacts, keyword: keyword, vector: vector, logger: logger}
}

// Commit persists a validated draft for job: blob write, then the
// single-transaction metadata commit, then best-effort index refresh.
// A failure before the metadata commit leaves the artifact invisible.
func (w *Writer) Commit(ctx context.Context, jobID string, artifact model.Artifact, payload []byte, documentText string) error {
	if err := w.blobs.Put(artifact.ContentAddress, payload); err != nil {
		return err
	}
	if err := w.store.CommitSucceeded(ctx, jobID, artifact); err != nil {
		if errors.Is(err, model.ErrStateConflict) {
			return err
		}
		return &model.StorageError{Op: "commit artifact", Err: err}
	}

	// Index refresh is best-effort: the indexes are rebuildable caches,
	// never a reason to fail a committed job.
	w.refreshIndexes(artifact, payload, documentText)
	return nil
}

func (w *Writer) refreshIndexes(artifact model.Artifact, payload []byte, documentText string) {
	if w.keyword == nil || w.vector == nil {
		return
	}
	text := documentText
	if artifact.Operation == model.OpSummarize {
		var p model.SummaryPayload
		if err := json.Unmarshal(payload, &p); err == nil && p.Summary != "" {
			text = documentText + "\n" + p.Summary
		}
	}
	w.keyword.Upsert(artifact.DocumentID, text)
	w.vector.Upsert(artifact.DocumentID, text)
}

// ValidatePayload checks a draft against the operation schema before
// anything is written.
func ValidatePayload(kind string, draft *engine.Draft) error {
	return engine.ValidateDraft(kind, draft.Payload)
}
