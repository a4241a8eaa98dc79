package index

import (
	"math"
	"sync"
)

// Vector is a brute-force cosine index over sparse term-frequency
// vectors. IDF weighting is applied at query time so upserts never
// trigger a corpus-wide re-embed.
type Vector struct {
	mu   sync.RWMutex
	docs map[string]sparseVec // docID -> term -> tf
	df   map[string]int
}

type sparseVec map[string]float64

var _ Index = (*Vector)(nil)

// NewVector creates an empty vector index.
func NewVector() *Vector {
	return &Vector{
		docs: map[string]sparseVec{},
		df:   map[string]int{},
	}
}

// Upsert embeds text under documentID, replacing any previous vector.
func (v *Vector) Upsert(documentID, text string) {
	counts, total := termCounts(text)
	vec := make(sparseVec, len(counts))
	for term, count := range counts {
		vec[term] = float64(count) / float64(max(total, 1))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if old, ok := v.docs[documentID]; ok {
		for term := range old {
			if v.df[term]--; v.df[term] <= 0 {
				delete(v.df, term)
			}
		}
	}
	v.docs[documentID] = vec
	for term := range vec {
		v.df[term]++
	}
}

// Search embeds the query and returns the top limit documents by
// cosine similarity, highest first.
func (v *Vector) Search(query string, limit int) []Hit {
	queryCounts, queryTotal := termCounts(query)
	if queryTotal == 0 {
		return nil
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	n := float64(len(v.docs))
	idf := func(term string) float64 {
		return math.Log((1+n)/(1+float64(v.df[term]))) + 1
	}

	queryVec := make(sparseVec, len(queryCounts))
	for term, count := range queryCounts {
		queryVec[term] = float64(count) / float64(queryTotal) * idf(term)
	}
	queryNorm := norm(queryVec)
	if queryNorm == 0 {
		return nil
	}

	scores := map[string]float64{}
	for docID, vec := range v.docs {
		dot := 0.0
		docNorm := 0.0
		for term, tf := range vec {
			w := tf * idf(term)
			docNorm += w * w
			if qw, ok := queryVec[term]; ok {
				dot += w * qw
			}
		}
		if dot == 0 || docNorm == 0 {
			continue
		}
		scores[docID] = dot / (math.Sqrt(docNorm) * queryNorm)
	}
	return topHits(scores, limit)
}

func norm(vec sparseVec) float64 {
	sum := 0.0
	for _, w := range vec {
		sum += w * w
	}
	return math.Sqrt(sum)
}
