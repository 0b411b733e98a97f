package filter

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PRICE FILTER - Layered rejection before any arithmetic
// ═══════════════════════════════════════════════════════════════════════════════
//
// L1 freshness → L2 volume/activity → L3 non-zero → L4 median deviation
//
// A single large trade can produce a misleading price, and small pools with
// legitimate volume but wildly offset prices are almost always manipulated or
// stale. The 50% deviation bound keeps multi-percent real spreads while
// rejecting ≥2x outliers.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Options are the filter thresholds.
type Options struct {
	FreshnessHorizon time.Duration   // L1
	MinVolume24h     decimal.Decimal // L2
	MinSwaps24h      int64           // L2
	MaxDeviation     decimal.Decimal // L4, |price-median|/median bound
	MinPoolsPerToken int             // population needed to run the deviation test
}

// Counters tracks drops per reason since the filter was created.
type Counters struct {
	Seen      int64
	Malformed int64
	Stale     int64
	LowVolume int64
	LowSwaps  int64
	ZeroPrice int64
	Deviation int64
	Kept      int64
}

// Filter applies the layered policy. Safe for use from a single detection
// task; counter reads may come from the stats reporter concurrently.
type Filter struct {
	opts Options

	mu       sync.Mutex
	counters Counters
}

func New(opts Options) *Filter {
	return &Filter{opts: opts}
}

// Apply transforms raw observations into the clean set. Every returned record
// is fresh, active, positively priced, and within the per-token median
// deviation bound. Malformed records are dropped and counted, never returned
// as errors.
func (f *Filter) Apply(observations []types.PriceObservation, now time.Time) []types.PriceObservation {
	survivors := make([]types.PriceObservation, 0, len(observations))

	f.mu.Lock()
	f.counters.Seen += int64(len(observations))
	for _, obs := range observations {
		switch {
		case obs.Token == "" || obs.Venue == "" || obs.Pool == "" || obs.ObservedAt.IsZero():
			f.counters.Malformed++
		case now.Sub(obs.ObservedAt) > f.opts.FreshnessHorizon:
			f.counters.Stale++
		case obs.Volume24h.LessThan(f.opts.MinVolume24h):
			f.counters.LowVolume++
		case obs.Swaps24h < f.opts.MinSwaps24h:
			f.counters.LowSwaps++
		case obs.Price.LessThanOrEqual(decimal.Zero):
			f.counters.ZeroPrice++
		default:
			survivors = append(survivors, obs)
			continue
		}
		log.Debug().
			Str("token", types.Abbrev(obs.Token)).
			Str("venue", obs.Venue).
			Str("pool", types.Abbrev(obs.Pool)).
			Msg("price record dropped")
	}
	f.mu.Unlock()

	clean := f.applyDeviation(survivors)

	f.mu.Lock()
	f.counters.Kept += int64(len(clean))
	f.mu.Unlock()

	return clean
}

// applyDeviation is the second pass: group survivors by token, compute the
// median, reject offset pools. Tokens with fewer than MinPoolsPerToken
// survivors skip the test (a lone pool has nothing to deviate from).
func (f *Filter) applyDeviation(survivors []types.PriceObservation) []types.PriceObservation {
	byToken := make(map[string][]types.PriceObservation)
	for _, obs := range survivors {
		byToken[obs.Token] = append(byToken[obs.Token], obs)
	}

	clean := make([]types.PriceObservation, 0, len(survivors))
	for token, group := range byToken {
		if len(group) < f.opts.MinPoolsPerToken {
			clean = append(clean, group...)
			continue
		}
		median := medianPrice(group)
		for _, obs := range group {
			dev := obs.Price.Sub(median).Abs().Div(median)
			if dev.GreaterThan(f.opts.MaxDeviation) {
				f.mu.Lock()
				f.counters.Deviation++
				f.mu.Unlock()
				log.Debug().
					Str("token", types.Abbrev(token)).
					Str("venue", obs.Venue).
					Str("price", obs.Price.String()).
					Str("median", median.String()).
					Msg("price record outside deviation bound")
				continue
			}
			clean = append(clean, obs)
		}
	}

	// Stable output order for deterministic downstream replays.
	sort.Slice(clean, func(i, j int) bool {
		return clean[i].Key() < clean[j].Key()
	})
	return clean
}

// medianPrice returns the median of the group's prices. Even populations take
// the arithmetic mean of the two central elements.
func medianPrice(group []types.PriceObservation) decimal.Decimal {
	prices := make([]decimal.Decimal, len(group))
	for i, obs := range group {
		prices[i] = obs.Price
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })

	n := len(prices)
	if n%2 == 1 {
		return prices[n/2]
	}
	return prices[n/2-1].Add(prices[n/2]).Div(decimal.NewFromInt(2))
}

// Snapshot returns the current drop counters.
func (f *Filter) Snapshot() Counters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters
}
