package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/engine"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/filter"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/ledger"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/queue"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/risk"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
)

// Reporter logs a periodic health summary: what the filter dropped, what the
// search emitted, what the queue holds, and where the money stands.
type Reporter struct {
	interval time.Duration
	filter   *filter.Filter
	detector *engine.Detector
	q        *queue.Queue
	led      *ledger.Ledger
	breaker  *risk.Breaker
	recorder *queue.Recorder
}

func NewReporter(
	interval time.Duration,
	fl *filter.Filter,
	detector *engine.Detector,
	q *queue.Queue,
	led *ledger.Ledger,
	breaker *risk.Breaker,
	recorder *queue.Recorder,
) *Reporter {
	return &Reporter{
		interval: interval,
		filter:   fl,
		detector: detector,
		q:        q,
		led:      led,
		breaker:  breaker,
		recorder: recorder,
	}
}

// Run logs until the context ends.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	fc := r.filter.Snapshot()
	dc := r.detector.Snapshot()
	ls := r.led.Snapshot()
	state, _, reason := r.breaker.State()
	outcomes := r.recorder.Counts()

	log.Info().
		Int64("prices_seen", fc.Seen).
		Int64("prices_kept", fc.Kept).
		Int64("dropped_stale", fc.Stale).
		Int64("dropped_volume", fc.LowVolume).
		Int64("dropped_swaps", fc.LowSwaps).
		Int64("dropped_zero", fc.ZeroPrice).
		Int64("dropped_deviation", fc.Deviation).
		Int64("ticks", dc.Ticks).
		Int64("candidates", dc.Candidates).
		Int64("approved", dc.Approved).
		Int64("enqueued", dc.Enqueued).
		Int("queue_depth", r.q.Len()).
		Int64("landed", outcomes[types.OutcomeLanded]).
		Int64("paper", outcomes[types.OutcomePaper]).
		Int64("stale", outcomes[types.OutcomeStale]).
		Int64("failed", outcomes[types.OutcomeFailed]).
		Str("daily_pnl", ls.DailyPnL.StringFixed(6)).
		Str("reserved", ls.Reserved.StringFixed(4)).
		Int("daily_trades", ls.DailyTrades).
		Int("consec_fails", ls.ConsecFails).
		Str("breaker", state.String()).
		Str("breaker_reason", reason).
		Msg("📊 Pipeline stats")
}
