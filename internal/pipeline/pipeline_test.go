package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/blob"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/engine"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/index"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/router"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/store"
)

type testEnv struct {
	store   *store.Store
	blobs   *blob.Store
	premium *engine.StubAdapter
	economy *engine.StubAdapter
	keyword *index.Keyword
	vector  *index.Vector
	sched   *Scheduler
}

func newTestEnv(t *testing.T) *testEnv {
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
		premium: engine.NewStubAdapter("premium"),
		economy: engine.NewStubAdapter("economy"),
		keyword: index.NewKeyword(),
		vector:  index.NewVector(),
	}
	rt := router.New([]router.Tier{
		{Name: "premium", Rank: 0, Adapter: env.premium, MaxInFlight: 4},
		{Name: "economy", Rank: 1, Adapter: env.economy, MaxInFlight: 4},
	})
	writer := NewWriter(blobs, st, env.keyword, env.vector, nil)
	sched, err := NewScheduler(st, blobs, rt, writer, Options{
		Workers:        1,
		PollInterval:   time.Millisecond,
		MaxAttempts:    3,
		BackoffBase:    time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
		ProduceTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	env.sched = sched
	return env
}

func (e *testEnv) seedJob(t *testing.T, op string) *model.Job {
	t.Helper()
	ctx := context.Background()
	text := "Oxford researchers published a landmark study. The study changes how we think about sleep."
	fp := "fp-" + op
	doc := model.NewDocument("doc-"+op, "alice", model.SourceText, "", "Study",
		model.DocumentAddress(fp), fp, 15)
	if err := e.store.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := e.blobs.Put(doc.ContentAddress, []byte(text)); err != nil {
		t.Fatalf("put content: %v", err)
	}
	job := model.NewJob(doc.ID, op, fp, 1)
	if _, _, err := e.store.EnqueueJob(ctx, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return &job
}

func (e *testEnv) claim(t *testing.T) *model.Job {
	t.Helper()
	job, err := e.store.ClaimNextQueued(context.Background())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job == nil {
		t.Fatal("no claimable job")
	}
	return job
}

func TestProcessSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedJob(t, model.OpSummarize)

	claimed := env.claim(t)
	env.sched.process(ctx, claimed)

	job, err := env.store.GetJob(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.State != model.JobSucceeded || job.TierUsed != "premium" {
		t.Fatalf("job after process: %+v", job)
	}

	artifact, err := env.store.GetCurrentArtifact(ctx, job.DocumentID, model.OpSummarize)
	if err != nil {
		t.Fatalf("current artifact: %v", err)
	}
	payload, err := env.blobs.Get(artifact.ContentAddress)
	if err != nil {
		t.Fatalf("artifact payload: %v", err)
	}
	if len(payload) == 0 {
		t.Error("empty artifact payload")
	}

	// The committed document is searchable.
	if hits := env.keyword.Search("landmark study", 10); len(hits) == 0 || hits[0].DocumentID != job.DocumentID {
		t.Errorf("keyword search after commit: %v", hits)
	}
}

func TestProcessFallsBackWhenPremiumUnavailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.premium.Err = &model.ModelUnavailableError{Tier: "premium", Err: errors.New("503")}
	env.seedJob(t, model.OpTag)

	claimed := env.claim(t)
	env.sched.process(ctx, claimed)

	// First attempt burned the premium tier and requeued.
	job, err := env.store.GetJob(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.State != model.JobQueued || job.AttemptCount != 1 {
		t.Fatalf("after unavailable: %+v", job)
	}
	if !job.TriedTiers()["premium"] {
		t.Fatalf("premium not recorded as tried: %q", job.TiersTried)
	}

	// Second attempt must route around premium.
	time.Sleep(1100 * time.Millisecond) // run_after has second resolution
	claimed = env.claim(t)
	env.sched.process(ctx, claimed)

	job, _ = env.store.GetJob(ctx, claimed.ID)
	if job.State != model.JobSucceeded || job.TierUsed != "economy" {
		t.Fatalf("after fallback: %+v", job)
	}
	if env.premium.Produced != 1 {
		t.Errorf("premium invoked %d times, want 1", env.premium.Produced)
	}
}

func TestProcessModelErrorIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.premium.Err = &model.ModelError{Tier: "premium", Err: errors.New("malformed output")}
	env.seedJob(t, model.OpSummarize)

	claimed := env.claim(t)
	env.sched.process(ctx, claimed)

	job, _ := env.store.GetJob(ctx, claimed.ID)
	if job.State != model.JobFailed {
		t.Fatalf("after model error: %+v", job)
	}
	if job.Error == nil {
		t.Fatal("no error detail recorded")
	}
}

func TestProcessAllTiersExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedJob(t, model.OpGroup)

	claimed := env.claim(t)
	claimed.TiersTried = model.JoinTiers(map[string]bool{"premium": true, "economy": true})
	env.sched.process(ctx, claimed)

	job, _ := env.store.GetJob(ctx, claimed.ID)
	if job.State != model.JobFailed {
		t.Fatalf("after exhaustion: %+v", job)
	}
	if env.premium.Produced != 0 || env.economy.Produced != 0 {
		t.Error("exhausted tiers were still invoked")
	}
}

func TestProcessRetriesExhausted(t *testing.T) {
	env := newTestEnv(t)
	env.sched.opts.MaxAttempts = 1
	ctx := context.Background()
	env.premium.Err = &model.ModelTimeoutError{Tier: "premium", Err: context.DeadlineExceeded}
	env.seedJob(t, model.OpSummarize)

	claimed := env.claim(t)
	env.sched.process(ctx, claimed)

	job, _ := env.store.GetJob(ctx, claimed.ID)
	if job.State != model.JobFailed {
		t.Fatalf("after exhausted retries: %+v", job)
	}
}

// failingBlobs injects a write failure to prove the commit ordering:
// if the payload never lands, no metadata row may appear.
type failingBlobs struct {
	*blob.Store
	failPuts bool
}

func (f *failingBlobs) Put(address string, value []byte) error {
	if f.failPuts {
		return &model.StorageError{Op: "blob put", Err: errors.New("disk full")}
	}
	return f.Store.Put(address, value)
}

func TestBlobFailureLeavesNoMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedJob(t, model.OpSummarize)

	faulty := &failingBlobs{Store: env.blobs, failPuts: true}
	env.sched.writer = NewWriter(faulty, env.store, env.keyword, env.vector, nil)

	claimed := env.claim(t)
	env.sched.process(ctx, claimed)

	// The job went back to QUEUED for another attempt and nothing
	// became visible.
	job, _ := env.store.GetJob(ctx, claimed.ID)
	if job.State != model.JobQueued || job.AttemptCount != 1 {
		t.Fatalf("after blob failure: %+v", job)
	}
	if _, err := env.store.GetCurrentArtifact(ctx, job.DocumentID, model.OpSummarize); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("metadata visible after failed blob write: %v", err)
	}
}

// claimWhenDue retries the claim until run_after passes.
func (e *testEnv) claimWhenDue(t *testing.T) *model.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := e.store.ClaimNextQueued(context.Background())
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if job != nil {
			return job
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("no job became claimable")
	return nil
}

func TestSaturatedTierBacksOffThenSucceeds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rt := router.New([]router.Tier{
		{Name: "economy", Rank: 0, Adapter: env.economy, MaxInFlight: 1},
	}, router.WithBackoffDelay(time.Millisecond))
	env.sched.router = rt
	env.seedJob(t, model.OpTag)

	// Another attempt holds the only in-flight slot.
	sel, err := rt.Pick(ctx, nil)
	if err != nil {
		t.Fatalf("occupy slot: %v", err)
	}

	claimed := env.claim(t)
	env.sched.process(ctx, claimed)

	// Saturation requeues and consumes an attempt.
	job, err := env.store.GetJob(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.State != model.JobQueued || job.AttemptCount != 1 {
		t.Fatalf("after saturation: %+v", job)
	}

	// Load clears; the next cycle must run and succeed.
	rt.Report(sel.Tier, time.Millisecond, nil)
	claimed = env.claimWhenDue(t)
	env.sched.process(ctx, claimed)

	job, _ = env.store.GetJob(ctx, claimed.ID)
	if job.State != model.JobSucceeded || job.TierUsed != "economy" {
		t.Fatalf("after load cleared: %+v", job)
	}
	if job.AttemptCount > env.sched.opts.MaxAttempts {
		t.Errorf("attempt count %d exceeds cap %d", job.AttemptCount, env.sched.opts.MaxAttempts)
	}
}

func TestSustainedSaturationTripsRetryCap(t *testing.T) {
	env := newTestEnv(t)
	env.sched.opts.MaxAttempts = 2
	ctx := context.Background()
	rt := router.New([]router.Tier{
		{Name: "economy", Rank: 0, Adapter: env.economy, MaxInFlight: 1},
	}, router.WithBackoffDelay(time.Millisecond))
	env.sched.router = rt
	env.seedJob(t, model.OpSummarize)

	// Slot held for the whole test: the tier never clears.
	if _, err := rt.Pick(ctx, nil); err != nil {
		t.Fatalf("occupy slot: %v", err)
	}

	claimed := env.claim(t)
	env.sched.process(ctx, claimed)
	job, _ := env.store.GetJob(ctx, claimed.ID)
	if job.State != model.JobQueued || job.AttemptCount != 1 {
		t.Fatalf("after first saturation: %+v", job)
	}

	claimed = env.claimWhenDue(t)
	env.sched.process(ctx, claimed)

	job, _ = env.store.GetJob(ctx, claimed.ID)
	if job.State != model.JobFailed {
		t.Fatalf("cap never tripped under sustained saturation: %+v", job)
	}
	if job.Error == nil {
		t.Error("no failure detail recorded")
	}
	if env.economy.Produced != 0 {
		t.Errorf("saturated tier was invoked %d times", env.economy.Produced)
	}
}

func TestSchedulerRunsEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob(t, model.OpSummarize)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.sched.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	var job *model.Job
	for time.Now().Before(deadline) {
		jobs, err := env.store.ListJobsForDocument(context.Background(), "doc-"+model.OpSummarize)
		if err == nil && len(jobs) == 1 && jobs[0].Terminal() {
			job = &jobs[0]
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if job == nil || job.State != model.JobSucceeded {
		t.Fatalf("job never succeeded: %+v", job)
	}
}
