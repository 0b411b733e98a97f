package risk

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/ledger"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SAFETY GOVERNOR - Last gate before a candidate becomes a job
// ═══════════════════════════════════════════════════════════════════════════════
//
// Detection asks → Governor approves/rejects → Queue submits
//
// Checks run in a fixed order, first failure wins. Acceptance reserves the
// cycle input atomically and hands back a fully built, signed job.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Rejection reasons. Stable strings; they appear in logs and counters.
const (
	ReasonPaperOnly    = "paper mode"
	ReasonKillSwitch   = "kill switch engaged"
	ReasonBreakerOpen  = "breaker open"
	ReasonDailyLoss    = "daily loss limit"
	ReasonTradeCap     = "daily trade cap"
	ReasonConsecFails  = "consecutive failures"
	ReasonNoCapital    = "insufficient free capital"
	ReasonBelowMargin  = "below margin"
	ReasonVenueRefused = "venue builder refused"
)

// JobBuilder turns an approved candidate into a signed, encoded bundle job.
type JobBuilder interface {
	Build(cand types.TriangleCandidate, cb types.CostBreakdown) (*types.SubmissionJob, error)
}

// Options are the governor thresholds.
type Options struct {
	TradingEnabled bool
	InputSize      decimal.Decimal
	DailyTradeCap  int
	DailyLossLimit decimal.Decimal
	FailCap        int
	JobDeadline    time.Duration
}

type Governor struct {
	opts    Options
	ledger  *ledger.Ledger
	breaker *Breaker
	kill    *KillSwitch
	builder JobBuilder
}

func NewGovernor(opts Options, led *ledger.Ledger, breaker *Breaker, kill *KillSwitch, builder JobBuilder) *Governor {
	return &Governor{opts: opts, ledger: led, breaker: breaker, kill: kill, builder: builder}
}

// Approve runs the check ladder. On success the input is reserved, the trade
// counted, and the returned job carries its built transactions and deadline.
// On rejection the reason string is returned and the ledger is untouched.
func (g *Governor) Approve(cand types.TriangleCandidate, cb types.CostBreakdown) (*types.SubmissionJob, string) {
	if !g.opts.TradingEnabled {
		log.Debug().Str("path", cand.Path()).Msg("🚫 Rejected: trading disabled")
		return nil, ReasonPaperOnly
	}

	if g.kill.Engaged() {
		g.breaker.Open(ReasonKillSwitch)
		log.Warn().Str("path", cand.Path()).Msg("🚫 Rejected: kill switch engaged")
		return nil, ReasonKillSwitch
	}

	if !g.breaker.Allows() {
		log.Debug().Str("path", cand.Path()).Msg("🚫 Rejected: breaker open")
		return nil, ReasonBreakerOpen
	}

	snap := g.ledger.Snapshot()

	if snap.DailyPnL.LessThanOrEqual(g.opts.DailyLossLimit.Neg()) {
		g.breaker.Open(ReasonDailyLoss)
		log.Warn().
			Str("daily_pnl", snap.DailyPnL.StringFixed(4)).
			Msg("🚫 Rejected: daily loss limit")
		return nil, ReasonDailyLoss
	}

	if snap.DailyTrades >= g.opts.DailyTradeCap {
		log.Warn().Int("daily_trades", snap.DailyTrades).Msg("🚫 Rejected: daily trade cap")
		return nil, ReasonTradeCap
	}

	if snap.ConsecFails >= g.opts.FailCap {
		g.breaker.Open(ReasonConsecFails)
		log.Warn().Int("consecutive_failures", snap.ConsecFails).Msg("🚫 Rejected: consecutive failures")
		return nil, ReasonConsecFails
	}

	if err := g.ledger.Reserve(g.opts.InputSize); err != nil {
		log.Info().
			Str("reserved", snap.Reserved.StringFixed(4)).
			Str("input", g.opts.InputSize.StringFixed(4)).
			Msg("🚫 Rejected: insufficient free capital")
		return nil, ReasonNoCapital
	}

	if !cb.MeetsMargin {
		g.ledger.ReleaseUnsubmitted(g.opts.InputSize)
		log.Debug().
			Str("net", cb.NetProfit.String()).
			Str("cost", cb.TotalCost.String()).
			Msg("🚫 Rejected: below margin")
		return nil, ReasonBelowMargin
	}

	job, err := g.builder.Build(cand, cb)
	if err != nil {
		g.ledger.ReleaseUnsubmitted(g.opts.InputSize)
		log.Warn().Err(err).Str("path", cand.Path()).Msg("🚫 Rejected: venue builder refused")
		return nil, ReasonVenueRefused
	}

	now := time.Now()
	job.Reserved = g.opts.InputSize
	job.EnqueuedAt = now
	job.Deadline = now.Add(g.opts.JobDeadline)

	log.Info().
		Str("path", cand.Path()).
		Str("net", cb.NetProfit.StringFixed(6)).
		Str("tip", cb.Tip.StringFixed(6)).
		Msg("✅ Candidate approved")

	return job, ""
}
