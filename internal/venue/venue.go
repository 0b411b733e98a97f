package venue

import (
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// VENUE BUILDERS - Pluggable swap construction per DEX program
// ═══════════════════════════════════════════════════════════════════════════════
//
// The pipeline never branches on venue names outside the registry. Each venue
// owns its pool-state cache and quoting math; stale state surfaces as an
// unprofitable quote or a failed on-chain execution.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ErrRefused is returned when a builder cannot produce a quote or instruction
// for the requested pool. Candidates touching such a pool are dropped.
var ErrRefused = errors.New("venue builder refused")

// Instruction is one low-level program invocation to include in a bundle
// transaction.
type Instruction struct {
	Program  string
	Accounts []string
	Data     []byte
}

// Builder is the capability set a venue exposes to the core.
type Builder interface {
	// Quote simulates a swap against cached pool state. Deterministic, no
	// I/O, and exclusive of the venue fee (the cost model charges fees).
	Quote(pool, inputToken string, input decimal.Decimal) (decimal.Decimal, error)

	// BuildSwap returns the instructions for one swap leg.
	BuildSwap(pool, inputToken string, input, minOutput decimal.Decimal, wallet string) ([]Instruction, error)

	// ProgramID is the opaque venue-program handle.
	ProgramID() string

	// FeeRate is the venue's published fee per swap.
	FeeRate() decimal.Decimal
}

// StateUpdater is implemented by builders whose pool caches refresh from the
// observation stream.
type StateUpdater interface {
	UpdatePool(obs types.PriceObservation)
}

// Registry routes venue identifiers to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

func (r *Registry) Register(id string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[id] = b
}

func (r *Registry) Builder(id string) (Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[id]
	return b, ok
}

// Venues lists registered venue identifiers in stable order.
func (r *Registry) Venues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.builders))
	for id := range r.builders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Quote dispatches to the pool's venue. Unknown venues refuse.
func (r *Registry) Quote(ref types.PoolRef, inputToken string, input decimal.Decimal) (decimal.Decimal, error) {
	b, ok := r.Builder(ref.Venue)
	if !ok {
		return decimal.Zero, ErrRefused
	}
	return b.Quote(ref.Pool, inputToken, input)
}

// FeeRate returns the venue's published fee rate, or the fallback when the
// venue is unknown or publishes none.
func (r *Registry) FeeRate(venueID string, fallback decimal.Decimal) decimal.Decimal {
	b, ok := r.Builder(venueID)
	if !ok {
		return fallback
	}
	if rate := b.FeeRate(); rate.IsPositive() {
		return rate
	}
	return fallback
}

// Refresh pushes the clean observation set into every builder that keeps
// pool state.
func (r *Registry) Refresh(clean []types.PriceObservation) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, obs := range clean {
		b, ok := r.builders[obs.Venue]
		if !ok {
			continue
		}
		if u, ok := b.(StateUpdater); ok {
			u.UpdatePool(obs)
		}
	}
}
