package engine

import (
	"context"
	"encoding/json"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
)

// StubAdapter returns canned drafts (for development and testing). Its
// health and failure behavior are scriptable so routing and retry paths
// can be exercised without a real backend.
type StubAdapter struct {
	TierName   string
	Health_    Health
	Err        error
	Confidence float64
	Produced   int // number of Produce calls observed
}

var _ Adapter = (*StubAdapter)(nil)

// NewStubAdapter creates a healthy stub tier.
func NewStubAdapter(name string) *StubAdapter {
	return &StubAdapter{TierName: name, Health_: Healthy, Confidence: 0.9}
}

func (s *StubAdapter) Name() string { return s.TierName }

func (s *StubAdapter) Ping(_ context.Context) Health { return s.Health_ }

func (s *StubAdapter) Produce(_ context.Context, kind, text string, _ Options) (*Draft, error) {
	s.Produced++
	if s.Err != nil {
		return nil, s.Err
	}

	var payload any
	switch kind {
	case model.OpSummarize:
		snippet := text
		if len(snippet) > 120 {
			snippet = snippet[:120]
		}
		payload = model.SummaryPayload{Summary: "[stub] " + snippet}
	case model.OpTag:
		payload = model.TagPayload{
			Entities: []string{"Stub Entity"},
			Topics:   []string{"stub", "testing"},
		}
	case model.OpGroup:
		payload = model.GroupPayload{Group: "topic:stub", Similarity: 0.8}
	default:
		return nil, &model.ModelError{Tier: s.TierName, Err: errUnknownKind(kind)}
	}

	b, _ := json.Marshal(payload)
	return &Draft{Payload: b, Confidence: s.Confidence, CostEstimate: 1}, nil
}
