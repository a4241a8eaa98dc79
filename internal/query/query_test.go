package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/blob"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/index"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/store"
)

type testEnv struct {
	store   *store.Store
	blobs   *blob.Store
	keyword *index.Keyword
	vector  *index.Vector
	svc     *Service
}

func newTestEnv(t *testing.T, pageSize int) *testEnv {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	st, err := store.New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	blobs, err := blob.Open("", true)
	if err != nil {
		t.Fatalf("open blob: %v", err)
	}
	t.Cleanup(func() { blobs.Close() })

	env := &testEnv{
		store:   st,
		blobs:   blobs,
		keyword: index.NewKeyword(),
		vector:  index.NewVector(),
	}
	env.svc = New(st, blobs, env.keyword, env.vector, 0.5, 0.5, pageSize)
	return env
}

func (e *testEnv) seedDocument(t *testing.T, ownerID, text string) model.Document {
	t.Helper()
	fp := uuid.NewString()
	doc := model.NewDocument(uuid.NewString(), ownerID, model.SourceText, "", "Doc "+fp[:8],
		model.DocumentAddress(fp), fp, len(text))
	if err := e.store.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := e.blobs.Put(doc.ContentAddress, []byte(text)); err != nil {
		t.Fatalf("put content: %v", err)
	}
	e.keyword.Upsert(doc.ID, text)
	e.vector.Upsert(doc.ID, text)
	return doc
}

func (e *testEnv) commitSummary(t *testing.T, doc model.Document, summary string) model.Artifact {
	t.Helper()
	ctx := context.Background()
	job := model.NewJob(doc.ID, model.OpSummarize, doc.Fingerprint, 1)
	if _, _, err := e.store.EnqueueJob(ctx, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := e.store.ClaimNextQueued(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	artifact := model.NewArtifact(uuid.NewString(), doc.ID, model.OpSummarize, 1, "economy", 0.6)
	payload, _ := json.Marshal(model.SummaryPayload{Summary: summary})
	if err := e.blobs.Put(artifact.ContentAddress, payload); err != nil {
		t.Fatalf("put payload: %v", err)
	}
	if err := e.store.CommitSucceeded(ctx, job.ID, artifact); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return artifact
}

func TestResultReturnsCurrentArtifact(t *testing.T) {
	env := newTestEnv(t, 20)
	ctx := context.Background()
	doc := env.seedDocument(t, "alice", "Long text about glaciers melting in the Alps.")
	env.commitSummary(t, doc, "Glaciers are melting.")

	res, err := env.svc.Result(ctx, "alice", doc.ID, model.OpSummarize)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	var p model.SummaryPayload
	if err := json.Unmarshal(res.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Summary != "Glaciers are melting." {
		t.Errorf("got %q", p.Summary)
	}
	if res.Artifact.Tier != "economy" {
		t.Errorf("tier %q, want economy", res.Artifact.Tier)
	}
}

func TestResultAccessControl(t *testing.T) {
	env := newTestEnv(t, 20)
	ctx := context.Background()
	doc := env.seedDocument(t, "alice", "Private notes.")
	env.commitSummary(t, doc, "Notes.")

	if _, err := env.svc.Result(ctx, "bob", doc.ID, model.OpSummarize); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("other user: got %v, want ErrForbidden", err)
	}
	if _, err := env.svc.Result(ctx, "alice", "missing", model.OpSummarize); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing document: got %v, want ErrNotFound", err)
	}
	if _, err := env.svc.Result(ctx, "alice", doc.ID, model.OpTag); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("no artifact yet: got %v, want ErrNotFound", err)
	}
	if _, err := env.svc.Result(ctx, "alice", doc.ID, "transmogrify"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown kind: got %v, want ErrNotFound", err)
	}
}

func TestSearchFiltersByOwner(t *testing.T) {
	env := newTestEnv(t, 20)
	ctx := context.Background()
	mine := env.seedDocument(t, "alice", "Solar panels convert sunlight into electricity.")
	env.seedDocument(t, "bob", "Solar flares disrupt satellite electronics.")

	page, err := env.svc.Search(ctx, "alice", "solar", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.Total != 1 || len(page.Results) != 1 {
		t.Fatalf("got %+v, want exactly my document", page)
	}
	if page.Results[0].DocumentID != mine.ID {
		t.Errorf("got %s, want %s", page.Results[0].DocumentID, mine.ID)
	}
	if page.Results[0].Title == "" {
		t.Error("title not resolved")
	}
}

func TestSearchRanksBlendedScores(t *testing.T) {
	env := newTestEnv(t, 20)
	ctx := context.Background()
	strong := env.seedDocument(t, "alice", "Coffee roasting guide. Coffee beans, coffee grinders, coffee brewing.")
	weak := env.seedDocument(t, "alice", "A single mention of coffee in a story otherwise about trains and stations.")

	page, err := env.svc.Search(ctx, "alice", "coffee brewing", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(page.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(page.Results))
	}
	if page.Results[0].DocumentID != strong.ID || page.Results[1].DocumentID != weak.ID {
		t.Errorf("order %s, %s; want %s first", page.Results[0].DocumentID, page.Results[1].DocumentID, strong.ID)
	}
	for _, r := range page.Results {
		if r.Score <= 0 || r.Score > 1.0001 {
			t.Errorf("blended score %f out of range", r.Score)
		}
	}
}

func TestSearchPagination(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		env.seedDocument(t, "alice", fmt.Sprintf("Gardening tips volume %d: soil, seeds and watering.", i))
	}

	first, err := env.svc.Search(ctx, "alice", "gardening soil", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if first.Total != 3 || len(first.Results) != 2 || first.Page != 1 {
		t.Fatalf("page 1: %+v", first)
	}

	second, err := env.svc.Search(ctx, "alice", "gardening soil", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(second.Results) != 1 || second.Total != 3 {
		t.Fatalf("page 2: %+v", second)
	}

	beyond, err := env.svc.Search(ctx, "alice", "gardening soil", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(beyond.Results) != 0 {
		t.Errorf("page past the end: %+v", beyond)
	}
}

func TestSearchNoMatches(t *testing.T) {
	env := newTestEnv(t, 20)
	env.seedDocument(t, "alice", "Nothing relevant here.")

	page, err := env.svc.Search(context.Background(), "alice", "xylophone maintenance", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.Total != 0 || len(page.Results) != 0 {
		t.Errorf("got %+v, want empty page", page)
	}
}
