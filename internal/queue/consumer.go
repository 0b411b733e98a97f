package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/transport"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SUBMISSION CONSUMER - Single task draining the queue
// ═══════════════════════════════════════════════════════════════════════════════
//
// Jobs go out in enqueue order, spaced by the minimum submit interval.
// Primary first, Secondary on transport error. A failed bundle is never
// retried against the same opportunity: the window is already gone and a
// retry executes at a worse price. The only "retry" is Primary→Secondary
// inside one attempt.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ConsumerOptions tune the submission loop.
type ConsumerOptions struct {
	MinInterval     time.Duration
	AttemptDeadline time.Duration
	PaperMode       bool
}

type Consumer struct {
	q         *Queue
	primary   transport.Transport
	secondary transport.Transport
	rec       *Recorder
	opts      ConsumerOptions

	lastSubmit time.Time
	now        func() time.Time
}

func NewConsumer(q *Queue, primary, secondary transport.Transport, rec *Recorder, opts ConsumerOptions) *Consumer {
	return &Consumer{
		q:         q,
		primary:   primary,
		secondary: secondary,
		rec:       rec,
		opts:      opts,
		now:       time.Now,
	}
}

// Run drains the queue until the context ends, then releases whatever is
// still queued.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.drainRemaining()

	for {
		job, ok := c.q.Dequeue(ctx)
		if !ok {
			return nil
		}
		c.process(ctx, job)
	}
}

func (c *Consumer) process(ctx context.Context, job *types.SubmissionJob) {
	// Respect the external rate limit before anything else; the age check
	// runs after the wait so a job that expired while queued behind another
	// is dropped, not submitted late.
	if !c.waitForSlot(ctx) {
		c.rec.Record(job, types.OutcomeStale, "shutdown")
		return
	}

	if c.now().After(job.Deadline) {
		log.Warn().
			Str("job", job.ID).
			Str("path", job.Candidate.Path()).
			Dur("age", c.now().Sub(job.EnqueuedAt)).
			Msg("⚠️ Job stale at dequeue, dropping")
		c.rec.Record(job, types.OutcomeStale, "stale")
		return
	}

	if c.opts.PaperMode {
		log.Info().
			Str("job", job.ID).
			Str("path", job.Candidate.Path()).
			Str("net", job.Cost.NetProfit.StringFixed(6)).
			Str("tip", job.Cost.Tip.StringFixed(6)).
			Msg("📝 PAPER: bundle would be submitted")
		c.lastSubmit = c.now()
		c.rec.Record(job, types.OutcomePaper, "")
		return
	}

	result := c.attempt(ctx, job)
	c.lastSubmit = c.now()

	switch result.Kind {
	case transport.Accepted:
		log.Info().
			Str("job", job.ID).
			Str("bundle_id", result.BundleID).
			Str("net", job.Cost.NetProfit.StringFixed(6)).
			Msg("✅ Bundle accepted")
		c.rec.Record(job, types.OutcomeLanded, result.BundleID)
	case transport.RateLimited:
		log.Warn().Str("job", job.ID).Str("reason", result.Reason).Msg("⚠️ Rate limited, dropping job")
		c.rec.Record(job, types.OutcomeRateLimit, result.Reason)
	case transport.Rejected:
		log.Warn().Str("job", job.ID).Str("reason", result.Reason).Msg("⚠️ Bundle rejected")
		c.rec.Record(job, types.OutcomeRejected, result.Reason)
	default:
		log.Warn().Str("job", job.ID).Err(result.Err).Msg("⚠️ Both transports failed")
		c.rec.Record(job, types.OutcomeFailed, errString(result.Err))
	}
}

// attempt runs Primary, falling back to Secondary only on transport error.
// Rate limits are non-retryable within the job: by the time the channel
// throttles us the opportunity is stale anyway.
func (c *Consumer) attempt(ctx context.Context, job *types.SubmissionJob) transport.Result {
	bundle := &transport.Bundle{UUID: job.ID, Transactions: job.Transactions}

	primaryCtx, cancel := context.WithTimeout(ctx, c.opts.AttemptDeadline)
	result := c.primary.Submit(primaryCtx, bundle)
	cancel()
	if result.Kind != transport.TransportError {
		return result
	}

	log.Warn().Str("job", job.ID).Err(result.Err).Msg("⚠️ Primary transport failed, trying secondary")

	secondaryCtx, cancel := context.WithTimeout(ctx, c.opts.AttemptDeadline)
	result = c.secondary.Submit(secondaryCtx, bundle)
	cancel()
	return result
}

// waitForSlot sleeps out the remainder of the submit interval. Returns false
// when the context ended first.
func (c *Consumer) waitForSlot(ctx context.Context) bool {
	wait := c.opts.MinInterval - c.now().Sub(c.lastSubmit)
	if wait <= 0 {
		return true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// drainRemaining settles whatever was queued when the loop stopped.
func (c *Consumer) drainRemaining() {
	n := c.q.Drain(func(job *types.SubmissionJob) {
		c.rec.Record(job, types.OutcomeStale, "shutdown")
	})
	if n > 0 {
		log.Info().Int("dropped", n).Msg("Queue drained on shutdown")
	}
}

// SetClock overrides time for tests.
func (c *Consumer) SetClock(now func() time.Time) {
	c.now = now
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
