package cost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TIP FLOOR MONITOR - Percentile curve of recently landed bundle tips
// ═══════════════════════════════════════════════════════════════════════════════
//
// Refreshes every 10 minutes from the bundle channel's tip-floor API. Readers
// take the snapshot lock-free; a stale snapshot is acceptable and better than
// the defaults.
//
// ═══════════════════════════════════════════════════════════════════════════════

// TipSnapshot is one observation of the landed-tip distribution, in base
// units.
type TipSnapshot struct {
	P25       decimal.Decimal
	P50       decimal.Decimal
	P75       decimal.Decimal
	P95       decimal.Decimal
	P99       decimal.Decimal
	EMA50     decimal.Decimal
	FetchedAt time.Time
}

// Percentile returns the requested percentile from the curve.
func (s TipSnapshot) Percentile(p int) decimal.Decimal {
	switch p {
	case 25:
		return s.P25
	case 50:
		return s.P50
	case 75:
		return s.P75
	case 95:
		return s.P95
	default:
		return s.P99
	}
}

// Stale reports whether the snapshot has outlived two refresh periods plus
// buffer.
func (s TipSnapshot) Stale(now time.Time) bool {
	return now.Sub(s.FetchedAt) > 35*time.Minute
}

// defaultSnapshot is used until the first successful fetch. Conservative:
// if the API is down, tip high rather than miss.
func defaultSnapshot() TipSnapshot {
	return TipSnapshot{
		P25:       decimal.NewFromFloat(0.000001),
		P50:       decimal.NewFromFloat(0.000001),
		P75:       decimal.NewFromFloat(0.00001),
		P95:       decimal.NewFromFloat(0.001),
		P99:       decimal.NewFromFloat(0.01),
		EMA50:     decimal.NewFromFloat(0.000001),
		FetchedAt: time.Now(),
	}
}

type tipFloorEntry struct {
	P25   float64 `json:"landed_tips_25th_percentile"`
	P50   float64 `json:"landed_tips_50th_percentile"`
	P75   float64 `json:"landed_tips_75th_percentile"`
	P95   float64 `json:"landed_tips_95th_percentile"`
	P99   float64 `json:"landed_tips_99th_percentile"`
	EMA50 float64 `json:"ema_landed_tips_50th_percentile"`
}

// TipFloorMonitor owns the snapshot and its refresh loop.
type TipFloorMonitor struct {
	url      string
	interval time.Duration
	client   *http.Client
	current  atomic.Pointer[TipSnapshot]
}

func NewTipFloorMonitor(url string, interval time.Duration) *TipFloorMonitor {
	m := &TipFloorMonitor{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	snap := defaultSnapshot()
	m.current.Store(&snap)
	return m
}

// Snapshot returns the current curve without locking.
func (m *TipFloorMonitor) Snapshot() TipSnapshot {
	return *m.current.Load()
}

// Run refreshes the snapshot until the context ends. Fetch failures keep the
// previous snapshot.
func (m *TipFloorMonitor) Run(ctx context.Context) error {
	if m.url == "" {
		log.Warn().Msg("⚠️ No tip floor URL, using conservative defaults")
		<-ctx.Done()
		return nil
	}

	m.refresh(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

func (m *TipFloorMonitor) refresh(ctx context.Context) {
	snap, err := m.fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Tip floor fetch failed, keeping previous snapshot")
		if m.Snapshot().Stale(time.Now()) {
			log.Warn().Msg("⚠️ Tip floor data is stale, still using it over defaults")
		}
		return
	}

	old := m.Snapshot()
	m.current.Store(&snap)

	// Surface big market moves; a quiet refresh stays at debug.
	if old.P99.IsPositive() {
		move := snap.P99.Sub(old.P99).Abs().Div(old.P99)
		if move.GreaterThan(decimal.NewFromFloat(0.20)) {
			log.Info().
				Str("p95", snap.P95.String()).
				Str("p99", snap.P99.String()).
				Msg("📊 Tip floor moved significantly")
			return
		}
	}
	log.Debug().Str("p99", snap.P99.String()).Msg("tip floor refreshed")
}

func (m *TipFloorMonitor) fetch(ctx context.Context) (TipSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return TipSnapshot{}, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return TipSnapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TipSnapshot{}, fmt.Errorf("tip floor API returned %d", resp.StatusCode)
	}

	var entries []tipFloorEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return TipSnapshot{}, fmt.Errorf("parse tip floor: %w", err)
	}
	if len(entries) == 0 {
		return TipSnapshot{}, fmt.Errorf("empty tip floor response")
	}

	latest := entries[0]
	return TipSnapshot{
		P25:       decimal.NewFromFloat(latest.P25),
		P50:       decimal.NewFromFloat(latest.P50),
		P75:       decimal.NewFromFloat(latest.P75),
		P95:       decimal.NewFromFloat(latest.P95),
		P99:       decimal.NewFromFloat(latest.P99),
		EMA50:     decimal.NewFromFloat(latest.EMA50),
		FetchedAt: time.Now(),
	}, nil
}
