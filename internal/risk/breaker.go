package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CIRCUIT BREAKER - Process-wide submission veto
// ═══════════════════════════════════════════════════════════════════════════════
//
// Open vetoes every candidate. The breaker never closes from inside the
// process: only removal of the kill-switch marker moves it to rearming, and
// the next error-free detection tick closes it. A tripped breaker means a
// human should look first.
//
// ═══════════════════════════════════════════════════════════════════════════════

// BreakerState is the lifecycle position.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerRearming
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	default:
		return "rearming"
	}
}

type Breaker struct {
	mu       sync.RWMutex
	state    BreakerState
	openedAt time.Time
	reason   string

	onTrip func(reason string)
}

func NewBreaker() *Breaker {
	return &Breaker{state: BreakerClosed}
}

// Allows reports whether submissions may proceed.
func (b *Breaker) Allows() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state == BreakerClosed
}

// Open trips the breaker. Idempotent while already open.
func (b *Breaker) Open(reason string) {
	b.mu.Lock()
	if b.state == BreakerOpen {
		b.mu.Unlock()
		return
	}
	b.state = BreakerOpen
	b.openedAt = time.Now()
	b.reason = reason
	cb := b.onTrip
	b.mu.Unlock()

	log.Error().Str("reason", reason).Msg("🚨 CIRCUIT BREAKER OPEN")
	if cb != nil {
		cb(reason)
	}
}

// Rearm is called when the operator removes the kill-switch marker. The
// breaker stays shut to traffic until a clean tick confirms the pipeline.
func (b *Breaker) Rearm() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BreakerOpen {
		return
	}
	b.state = BreakerRearming
	log.Info().Msg("🔄 Breaker rearming, waiting for a clean detection tick")
}

// NoteCleanTick closes a rearming breaker after an error-free detection pass.
func (b *Breaker) NoteCleanTick() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BreakerRearming {
		return
	}
	b.state = BreakerClosed
	b.reason = ""
	log.Info().Msg("✅ Breaker closed")
}

// State returns the current state and the reason it last opened.
func (b *Breaker) State() (BreakerState, time.Time, string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state, b.openedAt, b.reason
}

// OnTrip registers a callback fired once per open transition.
func (b *Breaker) OnTrip(fn func(reason string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = fn
}
