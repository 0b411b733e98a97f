package triangle

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRIANGLE SEARCH - base→X→Y→base cycle enumeration
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every pool quotes a token against the base asset, so the middle X→Y
// conversion routes through base: sell X into one pool, buy Y from another.
// Output is chained through the venue quote functions, never the spot-price
// shortcut. Candidates come out in deterministic order so replays reproduce
// the identical sequence.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Quoter simulates one swap against cached pool state.
type Quoter interface {
	Quote(ref types.PoolRef, inputToken string, input decimal.Decimal) (decimal.Decimal, error)
}

// Options are the search parameters.
type Options struct {
	BaseToken         string
	Input             decimal.Decimal // fixed cycle input in base
	MaxObsSkew        time.Duration   // max spread of the legs' observation times
	MaxGrossReturnPct decimal.Decimal // sanity cap; larger returns are bad data
	MinSpreadPct      decimal.Decimal // cheap early reject before the cost model
}

// Counters tracks prunes per reason since start.
type Counters struct {
	Assignments  int64
	SkewDropped  int64
	Unprofitable int64
	TooLarge     int64
	BelowSpread  int64
	Refused      int64
	Emitted      int64
}

type Search struct {
	opts   Options
	quoter Quoter

	mu       sync.Mutex
	counters Counters
}

func New(opts Options, quoter Quoter) *Search {
	return &Search{opts: opts, quoter: quoter}
}

// Find enumerates candidate cycles over the clean set. Synchronous; expected
// to complete well inside the tick period, so partial assignments are
// abandoned as soon as a leg has no quoting pools.
func (s *Search) Find(clean []types.PriceObservation) []types.TriangleCandidate {
	byToken := make(map[string][]types.PriceObservation)
	for _, obs := range clean {
		if obs.Token == s.opts.BaseToken {
			continue
		}
		byToken[obs.Token] = append(byToken[obs.Token], obs)
	}

	tokens := make([]string, 0, len(byToken))
	for token := range byToken {
		sort.Slice(byToken[token], func(i, j int) bool {
			a, b := byToken[token][i], byToken[token][j]
			if a.Venue != b.Venue {
				return a.Venue < b.Venue
			}
			return a.Pool < b.Pool
		})
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	var out []types.TriangleCandidate
	for _, x := range tokens {
		for _, y := range tokens {
			if x == y {
				continue
			}
			out = append(out, s.findPair(x, y, byToken[x], byToken[y])...)
		}
	}
	return out
}

// findPair walks every pool assignment for one ordered (X, Y) pair. The
// nested iteration order over sorted pools is the published emission order.
func (s *Search) findPair(x, y string, poolsX, poolsY []types.PriceObservation) []types.TriangleCandidate {
	var out []types.TriangleCandidate

	for _, buyX := range poolsX {
		amtX, err := s.quoter.Quote(ref(buyX), s.opts.BaseToken, s.opts.Input)
		if err != nil {
			s.count(func(c *Counters) { c.Refused++ })
			continue
		}
		for _, sellX := range poolsX {
			baseMid, err := s.quoter.Quote(ref(sellX), x, amtX)
			if err != nil {
				s.count(func(c *Counters) { c.Refused++ })
				continue
			}
			for _, buyY := range poolsY {
				amtY, err := s.quoter.Quote(ref(buyY), s.opts.BaseToken, baseMid)
				if err != nil {
					s.count(func(c *Counters) { c.Refused++ })
					continue
				}
				for _, sellY := range poolsY {
					cand, ok := s.finishCycle(x, y, buyX, sellX, buyY, sellY, amtY, baseMid)
					if ok {
						out = append(out, cand)
					}
				}
			}
		}
	}
	return out
}

func (s *Search) finishCycle(x, y string, buyX, sellX, buyY, sellY types.PriceObservation, amtY, baseMid decimal.Decimal) (types.TriangleCandidate, bool) {
	s.count(func(c *Counters) { c.Assignments++ })

	output, err := s.quoter.Quote(ref(sellY), y, amtY)
	if err != nil {
		s.count(func(c *Counters) { c.Refused++ })
		return types.TriangleCandidate{}, false
	}

	// Legs observed too far apart are worse than no data.
	oldest, newest := obsSpan(buyX, sellX, buyY, sellY)
	if newest.Sub(oldest) > s.opts.MaxObsSkew {
		s.count(func(c *Counters) { c.SkewDropped++ })
		return types.TriangleCandidate{}, false
	}

	gross := output.Sub(s.opts.Input)
	if gross.LessThanOrEqual(decimal.Zero) {
		s.count(func(c *Counters) { c.Unprofitable++ })
		return types.TriangleCandidate{}, false
	}

	returnPct := gross.Div(s.opts.Input).Mul(decimal.NewFromInt(100))
	if returnPct.GreaterThan(s.opts.MaxGrossReturnPct) {
		s.count(func(c *Counters) { c.TooLarge++ })
		return types.TriangleCandidate{}, false
	}
	if returnPct.LessThan(s.opts.MinSpreadPct) {
		s.count(func(c *Counters) { c.BelowSpread++ })
		return types.TriangleCandidate{}, false
	}

	s.count(func(c *Counters) { c.Emitted++ })
	return types.TriangleCandidate{
		TokenX:      x,
		TokenY:      y,
		BuyX:        ref(buyX),
		SellX:       ref(sellX),
		BuyY:        ref(buyY),
		SellY:       ref(sellY),
		Input:       s.opts.Input,
		Output:      output,
		LegNotional: [3]decimal.Decimal{s.opts.Input, baseMid, output},
		ObservedAt:  oldest,
	}, true
}

func (s *Search) count(fn func(*Counters)) {
	s.mu.Lock()
	fn(&s.counters)
	s.mu.Unlock()
}

// Snapshot returns the prune counters.
func (s *Search) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

func ref(obs types.PriceObservation) types.PoolRef {
	return types.PoolRef{Venue: obs.Venue, Pool: obs.Pool}
}

func obsSpan(legs ...types.PriceObservation) (oldest, newest time.Time) {
	oldest, newest = legs[0].ObservedAt, legs[0].ObservedAt
	for _, l := range legs[1:] {
		if l.ObservedAt.Before(oldest) {
			oldest = l.ObservedAt
		}
		if l.ObservedAt.After(newest) {
			newest = l.ObservedAt
		}
	}
	return oldest, newest
}
