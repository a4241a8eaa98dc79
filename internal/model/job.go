package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Job state constants
const (
	JobQueued    = "QUEUED"
	JobRunning   = "RUNNING"
	JobSucceeded = "SUCCEEDED"
	JobFailed    = "FAILED"
	JobCancelled = "CANCELLED"
)

// Operation kinds a job can perform on a document.
const (
	OpSummarize = "summarize"
	OpTag       = "tag"
	OpGroup     = "group"
)

// ValidOperation reports whether kind names a known operation.
func ValidOperation(kind string) bool {
	switch kind {
	case OpSummarize, OpTag, OpGroup:
		return true
	}
	return false
}

// Job is the durable ledger record of one processing attempt series.
// Its ID is deterministic, so identical requests collapse to one job.
type Job struct {
	ID           string  `json:"id"`
	DocumentID   string  `json:"document_id"`
	Operation    string  `json:"operation"`
	Version      int     `json:"version"`
	State        string  `json:"state"`
	AttemptCount int     `json:"attempt_count"`
	TierUsed     string  `json:"tier_used,omitempty"`
	TiersTried   string  `json:"-"` // comma-separated tiers that hard-failed for this job
	Error        *string `json:"error,omitempty"`
	RunAfter     string  `json:"-"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// JobID derives the deterministic job identifier from the document,
// operation kind, content fingerprint and reprocess version. The same
// submission always maps to the same identifier.
func JobID(documentID, operation, fingerprint string, version int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%s\x00%d", documentID, operation, fingerprint, version)))
	return hex.EncodeToString(h[:16])
}

// NewJob creates a job in QUEUED state for the given document and operation.
func NewJob(documentID, operation, fingerprint string, version int) Job {
	now := time.Now().UTC().Format(time.RFC3339)
	return Job{
		ID:           JobID(documentID, operation, fingerprint, version),
		DocumentID:   documentID,
		Operation:    operation,
		Version:      version,
		State:        JobQueued,
		AttemptCount: 0,
		RunAfter:     now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Terminal reports whether the job has reached a terminal state.
func (j *Job) Terminal() bool {
	return j.State == JobSucceeded || j.State == JobFailed || j.State == JobCancelled
}

// TriedTiers returns the set of tiers that hard-failed for this job.
func (j *Job) TriedTiers() map[string]bool {
	out := map[string]bool{}
	for _, t := range strings.Split(j.TiersTried, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out[t] = true
		}
	}
	return out
}

// JoinTiers serializes a tried-tier set for storage.
func JoinTiers(tried map[string]bool) string {
	names := make([]string, 0, len(tried))
	for t := range tried {
		names = append(names, t)
	}
	// Stable order keeps the column diffable.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return strings.Join(names, ",")
}
