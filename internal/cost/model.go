package cost

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// COST MODEL - Candidate → CostBreakdown → go/no-go
// ═══════════════════════════════════════════════════════════════════════════════
//
// Tipping starts at the configured market percentile; high-margin trades are
// boosted toward a target fraction of gross profit, under three simultaneous
// caps and a floor. Gas scales off the tip. Pure function of
// (candidate, tip snapshot, config).
//
// ═══════════════════════════════════════════════════════════════════════════════

// Tip caps relative to profit. The profit cap bounds the tip even at the top
// percentile; the net cap keeps the tip from eating the post-fee margin.
var (
	tipProfitCapFrac = decimal.NewFromFloat(0.17)
	tipNetCapFrac    = decimal.NewFromFloat(0.30)
)

// FeeRater resolves a venue's published swap fee.
type FeeRater interface {
	FeeRate(venueID string, fallback decimal.Decimal) decimal.Decimal
}

// Options are the cost-model parameters.
type Options struct {
	MarginMultiplier  decimal.Decimal
	TipPercentile     int
	TipTargetFrac     decimal.Decimal // target tip as a fraction of gross on boosts
	TipBoostThreshold decimal.Decimal // venue_fees/gross below this triggers the boost
	TipAbsCap         decimal.Decimal
	TipMin            decimal.Decimal
	GasMult           decimal.Decimal
	DefaultFeeRate    decimal.Decimal // per-leg fallback when a venue publishes none
}

// DefaultLegFeeRate is the per-leg fallback fee, 0.25%.
var DefaultLegFeeRate = decimal.NewFromFloat(0.0025)

type Model struct {
	opts Options
	fees FeeRater
	tips func() TipSnapshot
}

func New(opts Options, fees FeeRater, tips func() TipSnapshot) *Model {
	if opts.DefaultFeeRate.IsZero() {
		opts.DefaultFeeRate = DefaultLegFeeRate
	}
	return &Model{opts: opts, fees: fees, tips: tips}
}

// Evaluate derives the breakdown and margin verdict for a candidate.
func (m *Model) Evaluate(cand types.TriangleCandidate) types.CostBreakdown {
	gross := cand.GrossProfit()
	fees := m.venueFees(cand)
	tip := m.tipFor(gross, fees)
	gas := tip.Mul(m.opts.GasMult)
	total := fees.Add(tip).Add(gas)
	net := gross.Sub(total)

	ratio := decimal.Zero
	if total.IsPositive() {
		ratio = net.Div(total)
	}

	meets := net.IsPositive() && net.GreaterThanOrEqual(m.opts.MarginMultiplier.Mul(total))

	cb := types.CostBreakdown{
		VenueFees:   fees,
		Tip:         tip,
		Gas:         gas,
		TotalCost:   total,
		GrossProfit: gross,
		NetProfit:   net,
		MarginRatio: ratio,
		MeetsMargin: meets,
	}

	log.Debug().
		Str("gross", gross.String()).
		Str("fees", fees.String()).
		Str("tip", tip.String()).
		Str("gas", gas.String()).
		Str("net", net.String()).
		Bool("meets_margin", meets).
		Msg("cost breakdown")

	return cb
}

// venueFees charges each leg's base-denominated notional at its venue's rate.
func (m *Model) venueFees(cand types.TriangleCandidate) decimal.Decimal {
	legVenues := [3]string{cand.BuyX.Venue, cand.SellX.Venue, cand.SellY.Venue}
	fees := decimal.Zero
	for i, venueID := range legVenues {
		rate := m.fees.FeeRate(venueID, m.opts.DefaultFeeRate)
		fees = fees.Add(cand.LegNotional[i].Mul(rate))
	}
	return fees
}

// tipFor picks the tip: percentile base, profit-scaled boost for high-margin
// candidates, then floor and the three caps. Caps win over the floor.
func (m *Model) tipFor(gross, fees decimal.Decimal) decimal.Decimal {
	tip := m.tips().Percentile(m.opts.TipPercentile)

	if gross.IsPositive() {
		feeShare := fees.Div(gross)
		if feeShare.LessThan(m.opts.TipBoostThreshold) {
			if target := gross.Mul(m.opts.TipTargetFrac); target.GreaterThan(tip) {
				tip = target
			}
		}
	}

	if tip.LessThan(m.opts.TipMin) {
		tip = m.opts.TipMin
	}

	caps := []decimal.Decimal{
		gross.Mul(tipProfitCapFrac),
		gross.Sub(fees).Mul(tipNetCapFrac),
		m.opts.TipAbsCap,
	}
	for _, limit := range caps {
		if tip.GreaterThan(limit) {
			tip = limit
		}
	}
	if tip.IsNegative() {
		tip = decimal.Zero
	}
	return tip
}
