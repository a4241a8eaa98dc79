package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced directly to callers.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrAllTiersExhausted means every usable model tier already
	// hard-failed for this job. Non-retryable.
	ErrAllTiersExhausted = errors.New("all model tiers exhausted")

	// ErrStateConflict is returned by the ledger when a compare-and-set
	// transition finds the job in a different state than expected.
	ErrStateConflict = errors.New("job state conflict")
)

// Failure reason codes recorded on terminal FAILED jobs.
const (
	ReasonExtraction        = "ExtractionError"
	ReasonModel             = "ModelError"
	ReasonAllTiersExhausted = "AllTiersExhausted"
	ReasonRetriesExhausted  = "RetriesExhausted"
	ReasonStorage           = "StorageError"
)

// ExtractionError means the input could not be normalized into plain
// text. Surfaced to the caller at submit time, never retried.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return "extraction: " + e.Reason + ": " + e.Err.Error()
	}
	return "extraction: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ModelUnavailableError means the adapter is down or overloaded.
// Retryable, but never again on the same tier within one job.
type ModelUnavailableError struct {
	Tier string
	Err  error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model tier %s unavailable: %v", e.Tier, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// ModelTimeoutError means the adapter exceeded its hard deadline.
// Retryable on the same or a lower tier.
type ModelTimeoutError struct {
	Tier string
	Err  error
}

func (e *ModelTimeoutError) Error() string {
	return fmt.Sprintf("model tier %s timed out: %v", e.Tier, e.Err)
}

func (e *ModelTimeoutError) Unwrap() error { return e.Err }

// ModelError means the adapter produced output that failed structural
// validation. Non-retryable.
type ModelError struct {
	Tier string
	Err  error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model tier %s error: %v", e.Tier, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// BackoffError signals that every selectable tier is at capacity right
// now. The scheduler re-queues the job after Delay instead of failing.
type BackoffError struct {
	Delay time.Duration
}

func (e *BackoffError) Error() string {
	return "all tiers saturated, back off " + e.Delay.String()
}

// StorageError wraps a failed store write during commit. Retryable up
// to the same attempt cap as model errors.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrorInfo is the structured failure detail recorded on a FAILED job.
type ErrorInfo struct {
	Reason   string `json:"reason"`
	Message  string `json:"message"`
	Tier     string `json:"tier,omitempty"`
	FailedAt string `json:"failed_at"`
}

// ToJSON serializes ErrorInfo to a JSON string for the jobs table.
func (e ErrorInfo) ToJSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// NewErrorInfo builds an ErrorInfo with the current timestamp.
func NewErrorInfo(reason, message, tier string) ErrorInfo {
	return ErrorInfo{
		Reason:   reason,
		Message:  message,
		Tier:     tier,
		FailedAt: time.Now().UTC().Format(time.RFC3339),
	}
}
