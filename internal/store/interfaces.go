package store

import (
	"context"
	"time"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
)

// DocumentStore provides access to document ownership rows.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocumentsByOwner(ctx context.Context, ownerID string) ([]model.Document, error)
	DocumentOwners(ctx context.Context, ids []string) (map[string]string, error)
}

// JobLedger is the durable job lifecycle record. Its compare-and-set
// transitions are the pipeline's only synchronization point.
type JobLedger interface {
	EnqueueJob(ctx context.Context, job model.Job) (*model.Job, bool, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobsForDocument(ctx context.Context, documentID string) ([]model.Job, error)
	ClaimNextQueued(ctx context.Context) (*model.Job, error)
	RequeueJob(ctx context.Context, id string, attemptCount int, runAfter time.Time, tiersTried string) error
	MarkJobFailed(ctx context.Context, id, tier string, info model.ErrorInfo) error
	CancelJob(ctx context.Context, id string) error
	ReenqueueFailed(ctx context.Context, id string) error
	ResetStaleRunning(ctx context.Context) (int64, error)
	MaxJobVersion(ctx context.Context, documentID, operation string) (int, error)
}

// ArtifactStore provides access to committed artifact metadata. Commit
// happens through CommitSucceeded so the metadata row, current pointer,
// and ledger flip land in one transaction.
type ArtifactStore interface {
	CommitSucceeded(ctx context.Context, jobID string, artifact model.Artifact) error
	GetArtifact(ctx context.Context, id string) (*model.Artifact, error)
	GetCurrentArtifact(ctx context.Context, documentID, operation string) (*model.Artifact, error)
	ListArtifacts(ctx context.Context, documentID string) ([]model.Artifact, error)
}

// Repository combines everything the API layer needs.
type Repository interface {
	DocumentStore
	JobLedger
	ArtifactStore
}
