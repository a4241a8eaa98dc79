package index

import "testing"

const (
	docCats  = "Cats are small carnivorous mammals. Cats hunt mice and sleep most of the day."
	docDogs  = "Dogs are loyal companions. Dogs guard houses and love long walks."
	docSpace = "Rockets launch satellites into orbit. Spaceflight demands precise engineering."
)

func TestKeywordSearchRanksRelevantFirst(t *testing.T) {
	idx := NewKeyword()
	idx.Upsert("cats", docCats)
	idx.Upsert("dogs", docDogs)
	idx.Upsert("space", docSpace)

	hits := idx.Search("cats mice", 10)
	if len(hits) == 0 {
		t.Fatal("no hits")
	}
	if hits[0].DocumentID != "cats" {
		t.Errorf("top hit %s, want cats", hits[0].DocumentID)
	}
	for _, h := range hits {
		if h.DocumentID == "space" {
			t.Errorf("space matched a cat query: %+v", h)
		}
	}
}

func TestKeywordSearchNoMatch(t *testing.T) {
	idx := NewKeyword()
	idx.Upsert("cats", docCats)

	if hits := idx.Search("quantum chromodynamics", 10); len(hits) != 0 {
		t.Errorf("got %v, want no hits", hits)
	}
	if hits := idx.Search("", 10); len(hits) != 0 {
		t.Errorf("empty query: got %v, want no hits", hits)
	}
}

func TestKeywordUpsertReplaces(t *testing.T) {
	idx := NewKeyword()
	idx.Upsert("doc", docCats)
	idx.Upsert("doc", docSpace)

	if hits := idx.Search("cats", 10); len(hits) != 0 {
		t.Errorf("stale postings after replace: %v", hits)
	}
	if hits := idx.Search("rockets", 10); len(hits) != 1 || hits[0].DocumentID != "doc" {
		t.Errorf("got %v, want doc", hits)
	}
}

func TestKeywordSearchLimit(t *testing.T) {
	idx := NewKeyword()
	idx.Upsert("a", "shared term alpha")
	idx.Upsert("b", "shared term beta")
	idx.Upsert("c", "shared term gamma")

	if hits := idx.Search("shared term", 2); len(hits) != 2 {
		t.Errorf("got %d hits, want 2", len(hits))
	}
}

func TestVectorSearchRanksRelevantFirst(t *testing.T) {
	idx := NewVector()
	idx.Upsert("cats", docCats)
	idx.Upsert("dogs", docDogs)
	idx.Upsert("space", docSpace)

	hits := idx.Search("small mammals that hunt mice", 10)
	if len(hits) == 0 {
		t.Fatal("no hits")
	}
	if hits[0].DocumentID != "cats" {
		t.Errorf("top hit %s, want cats", hits[0].DocumentID)
	}
}

func TestVectorScoresAreCosine(t *testing.T) {
	idx := NewVector()
	idx.Upsert("cats", docCats)
	idx.Upsert("dogs", docDogs)

	for _, h := range idx.Search("cats sleep", 10) {
		if h.Score < 0 || h.Score > 1.0001 {
			t.Errorf("score %f out of cosine range for %s", h.Score, h.DocumentID)
		}
	}
}

func TestVectorUpsertReplaces(t *testing.T) {
	idx := NewVector()
	idx.Upsert("doc", docDogs)
	idx.Upsert("doc", docSpace)

	if hits := idx.Search("loyal dogs", 10); len(hits) != 0 {
		t.Errorf("stale vector after replace: %v", hits)
	}
}

func TestTokenizeDropsStopwords(t *testing.T) {
	tokens := tokenize("The cat is on the mat")
	for _, tok := range tokens {
		if tok == "the" || tok == "is" || tok == "on" {
			t.Errorf("stopword %q survived", tok)
		}
	}
	if len(tokens) != 2 {
		t.Errorf("got %v, want [cat mat]", tokens)
	}
}
