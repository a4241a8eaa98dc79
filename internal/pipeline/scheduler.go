package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/engine"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/router"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/store"
)

// Ledger is the scheduler's view of the job ledger.
type Ledger interface {
	store.JobLedger
	GetDocument(ctx context.Context, id string) (*model.Document, error)
}

// Options tunes scheduler behavior.
type Options struct {
	Workers        int
	PollInterval   time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	ProduceTimeout time.Duration
}

func (o *Options) fill() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Minute
	}
	if o.ProduceTimeout <= 0 {
		o.ProduceTimeout = time.Minute
	}
}

// produceOpts bounds adapter output regardless of tier.
var produceOpts = engine.Options{MaxSummarySentences: 5, MaxTags: 8}

// Scheduler claims due jobs and dispatches each attempt onto a worker
// pool. One Scheduler per process; workers share the router's health
// state so a tier demoted by one attempt is demoted for all.
type Scheduler struct {
	ledger Ledger
	blobs  BlobStore
	router *router.Router
	writer *Writer
	opts   Options
	pool   *ants.Pool
	logger *slog.Logger
}

// NewScheduler creates a Scheduler with a worker pool of opts.Workers.
func NewScheduler(ledger Ledger, blobs BlobStore, rt *router.Router, writer *Writer, opts Options) (*Scheduler, error) {
	opts.fill()
	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		ledger: ledger,
		blobs:  blobs,
		router: rt,
		writer: writer,
		opts:   opts,
		pool:   pool,
		logger: slog.Default(),
	}, nil
}

// Start begins the claim loop. It blocks until ctx is cancelled, then
// drains the pool.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started", "workers", s.opts.Workers, "poll_interval", s.opts.PollInterval.String())
	for {
		select {
		case <-ctx.Done():
			s.pool.Release()
			s.logger.Info("scheduler stopped")
			return
		default:
		}

		job, err := s.ledger.ClaimNextQueued(ctx)
		if err != nil {
			s.logger.Error("claim error", "error", err)
			s.sleep(ctx)
			continue
		}
		if job == nil {
			s.sleep(ctx)
			continue
		}

		claimed := job
		if err := s.pool.Submit(func() { s.process(ctx, claimed) }); err != nil {
			// Pool is shutting down; put the job back for the next boot.
			s.logger.Error("dispatch error", "job_id", claimed.ID, "error", err)
			s.requeue(context.Background(), claimed, claimed.AttemptCount, time.Now(), claimed.TiersTried)
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.opts.PollInterval):
	}
}

// process runs one attempt of a claimed job from tier selection through
// commit, and maps every failure onto requeue-or-fail.
func (s *Scheduler) process(ctx context.Context, job *model.Job) {
	log := s.logger.With("job_id", job.ID, "operation", job.Operation, "attempt", job.AttemptCount+1)

	doc, err := s.ledger.GetDocument(ctx, job.DocumentID)
	if err != nil {
		log.Error("load document", "error", err)
		s.retryOrFail(ctx, job, "", &model.StorageError{Op: "load document", Err: err})
		return
	}
	textBytes, err := s.blobs.Get(doc.ContentAddress)
	if err != nil {
		log.Error("load content", "error", err)
		s.retryOrFail(ctx, job, "", &model.StorageError{Op: "load content", Err: err})
		return
	}
	text := string(textBytes)

	tried := job.TriedTiers()
	sel, err := s.router.Pick(ctx, tried)
	if err != nil {
		var backoff *model.BackoffError
		switch {
		case errors.As(err, &backoff):
			// Saturation consumes an attempt like any other retryable
			// outcome, so a permanently overloaded tier set still trips
			// the retry cap instead of queueing forever.
			log.Info("all tiers saturated", "delay", backoff.Delay.String())
			s.retryOrFailAfter(ctx, job, "", err, backoff.Delay)
		case errors.Is(err, model.ErrAllTiersExhausted):
			log.Warn("all tiers exhausted")
			s.fail(ctx, job, "", model.NewErrorInfo(model.ReasonAllTiersExhausted, err.Error(), ""))
		default:
			log.Error("tier selection", "error", err)
			s.retryOrFail(ctx, job, "", err)
		}
		return
	}

	produceCtx, cancel := context.WithTimeout(ctx, s.opts.ProduceTimeout)
	start := time.Now()
	draft, err := sel.Adapter.Produce(produceCtx, job.Operation, text, produceOpts)
	latency := time.Since(start)
	cancel()
	s.router.Report(sel.Tier, latency, err)

	if err != nil {
		s.handleProduceError(ctx, job, sel.Tier, err, log)
		return
	}

	if err := engine.ValidateDraft(job.Operation, draft.Payload); err != nil {
		log.Warn("draft rejected", "tier", sel.Tier, "error", err)
		s.fail(ctx, job, sel.Tier, model.NewErrorInfo(model.ReasonModel, err.Error(), sel.Tier))
		return
	}

	artifact := model.NewArtifact(uuid.NewString(), job.DocumentID, job.Operation, job.Version, sel.Tier, draft.Confidence)
	if err := s.writer.Commit(ctx, job.ID, artifact, draft.Payload, text); err != nil {
		if errors.Is(err, model.ErrStateConflict) {
			// Job moved underneath us (reset or cancel); nothing to do.
			log.Warn("commit conflict", "error", err)
			return
		}
		log.Error("commit failed", "error", err)
		s.retryOrFail(ctx, job, sel.Tier, err)
		return
	}
	log.Info("job succeeded", "tier", sel.Tier, "latency", latency.String(), "artifact_id", artifact.ID)
}

// handleProduceError applies the per-class retry rules: unavailable
// bans the tier for this job and retries, timeout retries on any tier,
// everything else is a terminal model failure.
func (s *Scheduler) handleProduceError(ctx context.Context, job *model.Job, tier string, err error, log *slog.Logger) {
	var (
		unavailable *model.ModelUnavailableError
		timeout     *model.ModelTimeoutError
	)
	switch {
	case errors.As(err, &unavailable):
		log.Warn("tier unavailable", "tier", tier, "error", err)
		tried := job.TriedTiers()
		tried[tier] = true
		job.TiersTried = model.JoinTiers(tried)
		s.retryOrFail(ctx, job, tier, err)
	case errors.As(err, &timeout):
		log.Warn("tier timed out", "tier", tier, "error", err)
		s.retryOrFail(ctx, job, tier, err)
	default:
		log.Warn("model failure", "tier", tier, "error", err)
		s.fail(ctx, job, tier, model.NewErrorInfo(model.ReasonModel, err.Error(), tier))
	}
}

// retryOrFail requeues with exponential backoff until the attempt cap,
// then records a terminal failure.
func (s *Scheduler) retryOrFail(ctx context.Context, job *model.Job, tier string, cause error) {
	s.retryOrFailAfter(ctx, job, tier, cause, 0)
}

// retryOrFailAfter is retryOrFail with an explicit delay (for backoff
// signals that carry their own). Zero means exponential backoff.
func (s *Scheduler) retryOrFailAfter(ctx context.Context, job *model.Job, tier string, cause error, delay time.Duration) {
	attempt := job.AttemptCount + 1
	if attempt >= s.opts.MaxAttempts {
		reason := model.ReasonRetriesExhausted
		var storageErr *model.StorageError
		if errors.As(cause, &storageErr) {
			reason = model.ReasonStorage
		}
		s.fail(ctx, job, tier, model.NewErrorInfo(reason, cause.Error(), tier))
		return
	}
	if delay <= 0 {
		delay = s.backoffDelay(attempt)
	}
	s.requeue(ctx, job, attempt, time.Now().Add(delay), job.TiersTried)
}

func (s *Scheduler) requeue(ctx context.Context, job *model.Job, attempt int, runAfter time.Time, tiersTried string) {
	if err := s.ledger.RequeueJob(ctx, job.ID, attempt, runAfter, tiersTried); err != nil {
		s.logger.Error("requeue failed", "job_id", job.ID, "error", err)
	}
}

func (s *Scheduler) fail(ctx context.Context, job *model.Job, tier string, info model.ErrorInfo) {
	if err := s.ledger.MarkJobFailed(ctx, job.ID, tier, info); err != nil {
		s.logger.Error("mark failed errored", "job_id", job.ID, "error", err)
	}
}

// backoffDelay grows exponentially from BackoffBase with 20% jitter,
// capped at BackoffMax.
func (s *Scheduler) backoffDelay(attempt int) time.Duration {
	delay := s.opts.BackoffBase
	for i := 1; i < attempt && delay < s.opts.BackoffMax; i++ {
		delay *= 2
	}
	if delay > s.opts.BackoffMax {
		delay = s.opts.BackoffMax
	}
	if span := int64(delay) / 5; span > 0 {
		delay += time.Duration(rand.Int63n(span)) - time.Duration(span/2)
	}
	return delay
}
