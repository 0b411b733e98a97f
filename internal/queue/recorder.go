package queue

import (
	"sync"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/ledger"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
)

// Sink receives terminal job outcomes. Storage and the notifier implement
// it; failures there must not affect the pipeline.
type Sink interface {
	RecordOutcome(job *types.SubmissionJob, outcome types.Outcome, reason string)
}

// Recorder settles a job against the ledger and fans the outcome out to the
// sinks. PnL policy: net profit is credited when the channel accepts the
// bundle; a bundle that never landed costs nothing but its failure count.
type Recorder struct {
	ledger *ledger.Ledger

	mu    sync.Mutex
	sinks []Sink

	counts map[types.Outcome]int64
}

func NewRecorder(led *ledger.Ledger) *Recorder {
	return &Recorder{ledger: led, counts: make(map[types.Outcome]int64)}
}

func (r *Recorder) AddSink(s Sink) {
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
}

// Record settles one terminal outcome. Every path releases the reservation
// exactly once.
func (r *Recorder) Record(job *types.SubmissionJob, outcome types.Outcome, reason string) {
	switch outcome {
	case types.OutcomeLanded, types.OutcomePaper:
		r.ledger.RecordSuccess(job.Reserved, job.Cost.NetProfit)
	case types.OutcomeStale:
		r.ledger.ReleaseUnsubmitted(job.Reserved)
	default:
		r.ledger.RecordFailure(job.Reserved)
	}

	r.mu.Lock()
	r.counts[outcome]++
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.Unlock()

	for _, s := range sinks {
		s.RecordOutcome(job, outcome, reason)
	}
}

// Counts returns outcome totals for the reporter.
func (r *Recorder) Counts() map[types.Outcome]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[types.Outcome]int64, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}
