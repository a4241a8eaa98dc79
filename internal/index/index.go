// Package index holds the in-process search indexes the query facade
// fans out to: an inverted keyword index and a brute-force cosine
// vector index. Both are rebuilt from committed artifacts, so losing
// them loses nothing durable.
package index

import (
	"regexp"
	"strings"
)

// Hit is one scored match from an index.
type Hit struct {
	DocumentID string
	Score      float64
}

// Index is the contract both search indexes satisfy.
type Index interface {
	Upsert(documentID, text string)
	Search(query string, limit int) []Hit
}

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, isStop := stopwords[tok]; isStop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func termCounts(text string) (map[string]int, int) {
	counts := map[string]int{}
	total := 0
	for _, tok := range tokenize(text) {
		counts[tok]++
		total++
	}
	return counts, total
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
