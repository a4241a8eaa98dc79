// Package engine defines the model adapter contract and the concrete
// tiers behind it. Tiers form a closed set ranked by quality; the
// fallback router picks among them. Adapters never write to any store —
// only the dual-store writer commits.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
)

// Health is the result of an adapter's self probe, independent of Produce.
type Health int

const (
	Healthy Health = iota
	Degraded
	Unhealthy
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	default:
		return "unhealthy"
	}
}

// Draft is a produced artifact candidate plus its quality/cost signal.
// Payload is the JSON payload for the operation's schema in
// internal/model (SummaryPayload, TagPayload, GroupPayload).
type Draft struct {
	Payload      []byte
	Confidence   float64
	CostEstimate float64
}

// Options tune a single Produce invocation.
type Options struct {
	MaxSummarySentences int
	MaxTags             int
}

// Adapter is the capability interface every model tier implements.
type Adapter interface {
	Name() string
	Produce(ctx context.Context, kind, text string, opts Options) (*Draft, error)
	Ping(ctx context.Context) Health
}

// ValidateDraft checks a draft payload against the operation's schema.
// A failure here is a non-retryable model error.
func ValidateDraft(kind string, payload []byte) error {
	switch kind {
	case model.OpSummarize:
		var p model.SummaryPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("summary payload: %w", err)
		}
		if p.Summary == "" {
			return errors.New("summary payload: empty summary")
		}
	case model.OpTag:
		var p model.TagPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("tag payload: %w", err)
		}
		if p.Entities == nil && p.Topics == nil {
			return errors.New("tag payload: neither entities nor topics present")
		}
	case model.OpGroup:
		var p model.GroupPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("group payload: %w", err)
		}
		if p.Group == "" {
			return errors.New("group payload: empty group")
		}
		if p.Similarity < 0 || p.Similarity > 1 {
			return fmt.Errorf("group payload: similarity %v out of range", p.Similarity)
		}
	default:
		return errUnknownKind(kind)
	}
	return nil
}

func errUnknownKind(kind string) error {
	return fmt.Errorf("unknown operation kind %q", kind)
}
