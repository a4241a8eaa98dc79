package index

import (
	"math"
	"sort"
	"sync"
)

// Keyword is an inverted index scored with smoothed TF-IDF. Documents
// are replaceable: upserting an ID removes its previous postings first.
type Keyword struct {
	mu      sync.RWMutex
	docs    map[string]map[string]int // docID -> term -> count
	lengths map[string]int            // docID -> token total
	df      map[string]int            // term -> documents containing it
}

var _ Index = (*Keyword)(nil)

// NewKeyword creates an empty keyword index.
func NewKeyword() *Keyword {
	return &Keyword{
		docs:    map[string]map[string]int{},
		lengths: map[string]int{},
		df:      map[string]int{},
	}
}

// Upsert indexes text under documentID, replacing any previous content.
func (k *Keyword) Upsert(documentID, text string) {
	counts, total := termCounts(text)

	k.mu.Lock()
	defer k.mu.Unlock()

	if old, ok := k.docs[documentID]; ok {
		for term := range old {
			if k.df[term]--; k.df[term] <= 0 {
				delete(k.df, term)
			}
		}
	}
	k.docs[documentID] = counts
	k.lengths[documentID] = total
	for term := range counts {
		k.df[term]++
	}
}

// Search scores every document containing at least one query term and
// returns the top limit hits, highest score first.
func (k *Keyword) Search(query string, limit int) []Hit {
	queryCounts, _ := termCounts(query)
	if len(queryCounts) == 0 {
		return nil
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	n := float64(len(k.docs))
	scores := map[string]float64{}
	for term := range queryCounts {
		df, ok := k.df[term]
		if !ok {
			continue
		}
		idf := math.Log((1+n)/(1+float64(df))) + 1
		for docID, counts := range k.docs {
			count, ok := counts[term]
			if !ok {
				continue
			}
			tf := float64(count) / float64(k.lengths[docID])
			scores[docID] += tf * idf
		}
	}
	return topHits(scores, limit)
}

func topHits(scores map[string]float64, limit int) []Hit {
	hits := make([]Hit, 0, len(scores))
	for docID, score := range scores {
		hits = append(hits, Hit{DocumentID: docID, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
