package transport

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BLOCK-INCLUSION TRANSPORTS - Primary (framed ws) and Secondary (HTTP)
// ═══════════════════════════════════════════════════════════════════════════════
//
// Both channels accept a bundle of signed, base58-encoded transactions and
// answer with an id, a rate-limit signal, or a rejection. Endpoints rotate
// after repeated transport errors.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Bundle is what goes over the wire.
type Bundle struct {
	UUID         string
	Transactions []string // signed, base58 encoded
}

// ResultKind classifies a submission attempt.
type ResultKind int

const (
	Accepted ResultKind = iota
	RateLimited
	Rejected
	TransportError
)

func (k ResultKind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case RateLimited:
		return "rate_limited"
	case Rejected:
		return "rejected"
	default:
		return "transport_error"
	}
}

// Result is the outcome of one submission attempt.
type Result struct {
	Kind     ResultKind
	BundleID string
	Reason   string
	Err      error
}

// Transport is the shared submission operation. Attempts honor the context
// deadline; exceeding it counts as a transport error.
type Transport interface {
	Name() string
	Submit(ctx context.Context, bundle *Bundle) Result
}

// rotation tracks consecutive transport errors per endpoint list and rotates
// the active index when the streak hits the threshold.
type rotation struct {
	mu        sync.Mutex
	endpoints []string
	index     int
	streak    int
	after     int
}

func newRotation(endpoints []string, after int) *rotation {
	if after <= 0 {
		after = 3
	}
	return &rotation{endpoints: endpoints, after: after}
}

func (r *rotation) current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endpoints[r.index]
}

func (r *rotation) noteSuccess() {
	r.mu.Lock()
	r.streak = 0
	r.mu.Unlock()
}

// noteError advances the streak and rotates when it crosses the threshold.
// Returns true when the endpoint changed.
func (r *rotation) noteError(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streak++
	if r.streak < r.after || len(r.endpoints) < 2 {
		return false
	}
	r.streak = 0
	r.index = (r.index + 1) % len(r.endpoints)
	log.Warn().
		Str("transport", name).
		Str("endpoint", r.endpoints[r.index]).
		Msg("⚠️ Rotating to next endpoint")
	return true
}
