// Package query is the read-side facade: artifact retrieval gated by
// ownership, and hybrid search blending the keyword and vector indexes.
package query

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/index"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/store"
)

// BlobGetter is the facade's view of the content store.
type BlobGetter interface {
	Get(address string) ([]byte, error)
}

// Service answers read queries. It never mutates any store.
type Service struct {
	repo          store.Repository
	blobs         BlobGetter
	keyword       index.Index
	vector        index.Index
	keywordWeight float64
	vectorWeight  float64
	pageSize      int
}

// New creates a query Service. Weights blend the two indexes' max-
// normalized scores; pageSize bounds one search page.
func New(repo store.Repository, blobs BlobGetter, keyword, vector index.Index, keywordWeight, vectorWeight float64, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Service{
		repo:          repo,
		blobs:         blobs,
		keyword:       keyword,
		vector:        vector,
		keywordWeight: keywordWeight,
		vectorWeight:  vectorWeight,
		pageSize:      pageSize,
	}
}

// ArtifactResult is a current artifact plus its payload.
type ArtifactResult struct {
	Artifact model.Artifact  `json:"artifact"`
	Payload  json.RawMessage `json:"payload"`
}

// Result returns the current artifact of kind for a document the caller
// owns. ErrForbidden hides nothing: the caller already proved the
// document exists by naming it, ownership is still required to read it.
func (s *Service) Result(ctx context.Context, userID, documentID, kind string) (*ArtifactResult, error) {
	if !model.ValidOperation(kind) {
		return nil, model.ErrNotFound
	}
	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != userID {
		return nil, model.ErrForbidden
	}
	artifact, err := s.repo.GetCurrentArtifact(ctx, documentID, kind)
	if err != nil {
		return nil, err
	}
	payload, err := s.blobs.Get(artifact.ContentAddress)
	if err != nil {
		return nil, err
	}
	return &ArtifactResult{Artifact: *artifact, Payload: payload}, nil
}

// SearchResult is one scored document in a search page.
type SearchResult struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title,omitempty"`
	Score      float64 `json:"score"`
}

// SearchPage is one page of blended search results.
type SearchPage struct {
	Results  []SearchResult `json:"results"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int            `json:"total"`
}

// Search runs the query against both indexes, blends their normalized
// scores, filters to documents the caller owns, and returns one page.
// Page numbering starts at 1.
func (s *Service) Search(ctx context.Context, userID, query string, page int) (*SearchPage, error) {
	if page < 1 {
		page = 1
	}

	blended := blend(s.keyword.Search(query, 0), s.vector.Search(query, 0), s.keywordWeight, s.vectorWeight)

	ids := make([]string, 0, len(blended))
	for id := range blended {
		ids = append(ids, id)
	}
	owners, err := s.repo.DocumentOwners(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchResult, 0, len(blended))
	for id, score := range blended {
		if owners[id] != userID {
			continue
		}
		hits = append(hits, SearchResult{DocumentID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})

	total := len(hits)
	start := (page - 1) * s.pageSize
	if start > total {
		start = total
	}
	end := start + s.pageSize
	if end > total {
		end = total
	}
	pageHits := hits[start:end]

	for i := range pageHits {
		doc, err := s.repo.GetDocument(ctx, pageHits[i].DocumentID)
		if err != nil {
			continue
		}
		pageHits[i].Title = doc.Title
	}

	return &SearchPage{
		Results:  pageHits,
		Page:     page,
		PageSize: s.pageSize,
		Total:    total,
	}, nil
}

// blend max-normalizes each index's scores and combines them with the
// configured weights. A document present in only one index keeps its
// single weighted contribution.
func blend(keyword, vector []index.Hit, kwWeight, vecWeight float64) map[string]float64 {
	out := map[string]float64{}
	for _, h := range normalize(keyword) {
		out[h.DocumentID] += kwWeight * h.Score
	}
	for _, h := range normalize(vector) {
		out[h.DocumentID] += vecWeight * h.Score
	}
	return out
}

func normalize(hits []index.Hit) []index.Hit {
	var max float64
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	if max == 0 {
		return nil
	}
	out := make([]index.Hit, len(hits))
	for i, h := range hits {
		out[i] = index.Hit{DocumentID: h.DocumentID, Score: h.Score / max}
	}
	return out
}
