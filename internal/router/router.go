// Package router picks the model tier serving each attempt. It prefers
// the highest-quality healthy tier, demotes past unhealthy or failing
// tiers, refuses to re-run a tier that already hard-failed for the same
// job, and signals backoff instead of blocking when every selectable
// tier is at capacity.
package router

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/engine"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
)

// Tier describes one model tier. Lower Rank means higher quality and
// higher preference.
type Tier struct {
	Name        string
	Rank        int
	Adapter     engine.Adapter
	MaxInFlight int
}

// Selection is a granted routing decision. The scheduler must call
// Router.Report with the same tier name once the attempt finishes so
// the in-flight slot is released and health stats are updated.
type Selection struct {
	Tier    string
	Adapter engine.Adapter
}

// tierState is the router-owned mutable record per tier. It is a cache:
// it resets to open-for-probing defaults on restart by construction.
type tierState struct {
	Tier

	inFlight    int
	failureRate float64 // exponentially weighted, decayed over time
	avgLatency  time.Duration
	lastUpdate  time.Time

	lastPing   time.Time
	pingResult engine.Health
}

// Router owns tier health state. It is injectable and updated purely by
// reported outcomes, never a process-wide singleton.
type Router struct {
	mu               sync.Mutex
	tiers            []*tierState
	failureThreshold float64
	pingInterval     time.Duration
	decayHalfLife    time.Duration
	backoffDelay     time.Duration
	now              func() time.Time
}

// Option configures the Router.
type Option func(*Router)

// WithFailureThreshold sets the rolling failure rate above which a tier
// is demoted past. Default 0.5.
func WithFailureThreshold(t float64) Option {
	return func(r *Router) { r.failureThreshold = t }
}

// WithPingInterval sets how long a Ping result is cached. Zero pings on
// every selection. Default 30s.
func WithPingInterval(d time.Duration) Option {
	return func(r *Router) { r.pingInterval = d }
}

// WithBackoffDelay sets the delay signalled when all tiers are saturated.
func WithBackoffDelay(d time.Duration) Option {
	return func(r *Router) { r.backoffDelay = d }
}

// WithClock injects a clock, letting tests drive health decay.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// New creates a Router over the given closed set of tiers.
func New(tiers []Tier, opts ...Option) *Router {
	r := &Router{
		failureThreshold: 0.5,
		pingInterval:     30 * time.Second,
		decayHalfLife:    time.Minute,
		backoffDelay:     5 * time.Second,
		now:              time.Now,
	}
	for _, t := range tiers {
		r.tiers = append(r.tiers, &tierState{Tier: t})
	}
	sort.SliceStable(r.tiers, func(i, j int) bool { return r.tiers[i].Rank < r.tiers[j].Rank })
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Pick selects the best available tier for a new attempt, skipping the
// tiers in tried. Returns a BackoffError when the only thing standing
// in the way is capacity, ErrAllTiersExhausted otherwise.
func (r *Router) Pick(ctx context.Context, tried map[string]bool) (*Selection, error) {
	r.refreshHealth(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	saturated := false
	for _, ts := range r.tiers {
		if tried[ts.Name] {
			continue
		}
		if ts.pingResult != engine.Healthy {
			continue
		}
		if r.decayedFailureRate(ts) > r.failureThreshold {
			continue
		}
		if ts.MaxInFlight > 0 && ts.inFlight >= ts.MaxInFlight {
			saturated = true
			continue
		}
		ts.inFlight++
		return &Selection{Tier: ts.Name, Adapter: ts.Adapter}, nil
	}

	if saturated {
		return nil, &model.BackoffError{Delay: r.backoffDelay}
	}
	return nil, model.ErrAllTiersExhausted
}

// Report records the outcome of an attempt on tier, releasing its
// in-flight slot and folding the outcome into the rolling health stats.
func (r *Router) Report(tier string, latency time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.find(tier)
	if ts == nil {
		return
	}
	if ts.inFlight > 0 {
		ts.inFlight--
	}

	// Decay old history first so a quiet tier drifts back toward healthy.
	rate := r.decayedFailureRate(ts)

	const alpha = 0.3
	sample := 0.0
	if err != nil {
		sample = 1.0
	}
	ts.failureRate = rate*(1-alpha) + sample*alpha
	if latency > 0 {
		if ts.avgLatency == 0 {
			ts.avgLatency = latency
		} else {
			ts.avgLatency = time.Duration(float64(ts.avgLatency)*(1-alpha) + float64(latency)*alpha)
		}
	}
	ts.lastUpdate = r.now()
}

// TierHealth is a read-only view of one tier's rolling stats.
type TierHealth struct {
	Name        string        `json:"name"`
	Rank        int           `json:"rank"`
	InFlight    int           `json:"in_flight"`
	FailureRate float64       `json:"failure_rate"`
	AvgLatency  time.Duration `json:"avg_latency"`
}

// Snapshot returns the current health view of all tiers, in rank order.
func (r *Router) Snapshot() []TierHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]TierHealth, 0, len(r.tiers))
	for _, ts := range r.tiers {
		out = append(out, TierHealth{
			Name:        ts.Name,
			Rank:        ts.Rank,
			InFlight:    ts.inFlight,
			FailureRate: r.decayedFailureRate(ts),
			AvgLatency:  ts.avgLatency,
		})
	}
	return out
}

func (r *Router) find(name string) *tierState {
	for _, ts := range r.tiers {
		if ts.Name == name {
			return ts
		}
	}
	return nil
}

// refreshHealth re-probes tiers whose cached ping result is stale.
// Probes run outside the mutex: a slow remote Ping must not serialize
// every concurrent Pick and Report behind one network call.
func (r *Router) refreshHealth(ctx context.Context) {
	r.mu.Lock()
	now := r.now()
	var stale []*tierState
	for _, ts := range r.tiers {
		if r.pingInterval <= 0 || ts.lastPing.IsZero() || now.Sub(ts.lastPing) >= r.pingInterval {
			stale = append(stale, ts)
		}
	}
	r.mu.Unlock()

	for _, ts := range stale {
		result := ts.Adapter.Ping(ctx)
		r.mu.Lock()
		ts.pingResult = result
		ts.lastPing = r.now()
		r.mu.Unlock()
	}
}

// decayedFailureRate halves the recorded failure rate every
// decayHalfLife of silence, so a demoted tier becomes selectable again.
func (r *Router) decayedFailureRate(ts *tierState) float64 {
	if ts.lastUpdate.IsZero() || ts.failureRate == 0 {
		return ts.failureRate
	}
	elapsed := r.now().Sub(ts.lastUpdate)
	if elapsed <= 0 {
		return ts.failureRate
	}
	return ts.failureRate * math.Pow(0.5, float64(elapsed)/float64(r.decayHalfLife))
}
