package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/filter"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/ledger"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/queue"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/risk"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/triangle"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/venue"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DETECTION ENGINE - The repeating tick
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow per tick:
//   Fetch → Filter → Refresh pools → Search → Cost → Govern → Enqueue
//
// Runs independently of the submission consumer; the bounded queue and the
// ledger are the only coupling.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Fetcher pulls the current observation snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) ([]types.PriceObservation, error)
}

// Evaluator prices a candidate.
type Evaluator interface {
	Evaluate(cand types.TriangleCandidate) types.CostBreakdown
}

// Counters are per-process tick totals.
type Counters struct {
	Ticks      int64
	TickErrors int64
	Candidates int64
	Approved   int64
	Enqueued   int64
	QueueFull  int64
	Rejections map[string]int64
}

type Detector struct {
	fetcher  Fetcher
	filter   *filter.Filter
	registry *venue.Registry
	search   *triangle.Search
	model    Evaluator
	governor *risk.Governor
	q        *queue.Queue
	led      *ledger.Ledger
	breaker  *risk.Breaker
	interval time.Duration

	mu       sync.Mutex
	counters Counters
}

func NewDetector(
	fetcher Fetcher,
	fl *filter.Filter,
	registry *venue.Registry,
	search *triangle.Search,
	model Evaluator,
	governor *risk.Governor,
	q *queue.Queue,
	led *ledger.Ledger,
	breaker *risk.Breaker,
	interval time.Duration,
) *Detector {
	return &Detector{
		fetcher:  fetcher,
		filter:   fl,
		registry: registry,
		search:   search,
		model:    model,
		governor: governor,
		q:        q,
		led:      led,
		breaker:  breaker,
		interval: interval,
		counters: Counters{Rejections: make(map[string]int64)},
	}
}

// Run ticks until the context ends.
func (d *Detector) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs one detection pass. An error-free pass lets a rearming breaker
// close.
func (d *Detector) Tick(ctx context.Context) {
	d.mu.Lock()
	d.counters.Ticks++
	d.mu.Unlock()

	observations, err := d.fetcher.Fetch(ctx)
	if err != nil {
		d.mu.Lock()
		d.counters.TickErrors++
		d.mu.Unlock()
		log.Warn().Err(err).Msg("⚠️ Price fetch failed, skipping tick")
		return
	}

	clean := d.filter.Apply(observations, time.Now())
	d.registry.Refresh(clean)

	candidates := d.search.Find(clean)
	d.mu.Lock()
	d.counters.Candidates += int64(len(candidates))
	d.mu.Unlock()

	for _, cand := range candidates {
		cb := d.model.Evaluate(cand)
		job, reason := d.governor.Approve(cand, cb)
		if job == nil {
			d.mu.Lock()
			d.counters.Rejections[reason]++
			d.mu.Unlock()
			continue
		}

		d.mu.Lock()
		d.counters.Approved++
		d.mu.Unlock()

		if err := d.q.TryEnqueue(job); err != nil {
			// The reservation belongs to the enqueue caller until the
			// consumer owns the job.
			d.led.ReleaseUnsubmitted(job.Reserved)
			d.mu.Lock()
			d.counters.QueueFull++
			d.mu.Unlock()
			log.Warn().Str("job", job.ID).Msg("⚠️ Queue full, reservation released")
			continue
		}

		d.mu.Lock()
		d.counters.Enqueued++
		d.mu.Unlock()
	}

	d.breaker.NoteCleanTick()
}

// Snapshot returns tick totals for the reporter.
func (d *Detector) Snapshot() Counters {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.counters
	out.Rejections = make(map[string]int64, len(d.counters.Rejections))
	for k, v := range d.counters.Rejections {
		out.Rejections[k] = v
	}
	return out
}
