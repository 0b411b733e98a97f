package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// PriceObservation is one reading for one (token, venue, pool). Immutable;
// replaced wholesale on each ingest.
type PriceObservation struct {
	Token      string
	Venue      string
	Pool       string
	Price      decimal.Decimal // in base asset, > 0 for a valid record
	Volume24h  decimal.Decimal // in base asset
	Swaps24h   int64
	ObservedAt time.Time
}

// Key identifies the cache slot. The same venue may host multiple pools for
// the same token at materially different prices, so the pool is part of it.
func (o PriceObservation) Key() string {
	return o.Token + "|" + o.Venue + "|" + o.Pool
}

// PoolRef names a single pool at a venue.
type PoolRef struct {
	Venue string
	Pool  string
}

func (p PoolRef) String() string {
	return p.Venue + "/" + Abbrev(p.Pool)
}

// TriangleCandidate is a base→X→Y→base cycle. All pools quote against the
// base token, so the middle X→Y conversion routes through base: four pool
// assignments across three legs. Never mutated after creation.
type TriangleCandidate struct {
	TokenX string
	TokenY string

	BuyX  PoolRef // leg 1: base → X
	SellX PoolRef // leg 2: X sold back to base ...
	BuyY  PoolRef // leg 2: ... base into Y
	SellY PoolRef // leg 3: Y → base

	Input  decimal.Decimal // fixed cycle input in base
	Output decimal.Decimal // simulated round-trip output in base

	// Base-denominated value entering each leg, for venue fee accounting.
	LegNotional [3]decimal.Decimal

	ObservedAt time.Time // min of the legs' observation times
}

// Path renders the cycle for logs, pools abbreviated.
func (c TriangleCandidate) Path() string {
	return fmt.Sprintf("base→%s(%s→%s)→%s(%s→%s)→base",
		Abbrev(c.TokenX), c.BuyX, c.SellX,
		Abbrev(c.TokenY), c.BuyY, c.SellY)
}

// GrossProfit is Output − Input.
func (c TriangleCandidate) GrossProfit() decimal.Decimal {
	return c.Output.Sub(c.Input)
}

// CostBreakdown is derived from a candidate and the current tip-floor
// snapshot. Stateless.
type CostBreakdown struct {
	VenueFees   decimal.Decimal
	Tip         decimal.Decimal
	Gas         decimal.Decimal
	TotalCost   decimal.Decimal
	GrossProfit decimal.Decimal
	NetProfit   decimal.Decimal
	MarginRatio decimal.Decimal // NetProfit / TotalCost
	MeetsMargin bool
}

// SubmissionJob is an approved, fully built bundle waiting in the queue.
// Owned by the queue; freed after the consumer records an outcome.
type SubmissionJob struct {
	ID           string
	Candidate    TriangleCandidate
	Cost         CostBreakdown
	Transactions []string // signed, base58 encoded
	Reserved     decimal.Decimal
	EnqueuedAt   time.Time
	Deadline     time.Time
}

// Outcome classifies a terminal job result.
type Outcome string

const (
	OutcomeLanded    Outcome = "landed"
	OutcomePaper     Outcome = "paper"
	OutcomeStale     Outcome = "stale"
	OutcomeRateLimit Outcome = "rate_limited"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "transport_failed"
)

// Abbrev shortens a pool address or token mint to its first 8 characters
// for readability. Short identifiers pass through unchanged.
func Abbrev(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
