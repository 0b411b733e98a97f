package ledger

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION LEDGER - The single process-wide account
// ═══════════════════════════════════════════════════════════════════════════════
//
// Capital, in-flight reservations, daily PnL and counters all live here,
// mutated through one mutex. Every critical section is a compare/increment/
// decrement; no I/O happens under the lock.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ErrInsufficientCapital is returned when a reservation would exceed free
// capital.
var ErrInsufficientCapital = errors.New("insufficient free capital")

// Snapshot is a consistent read of the account.
type Snapshot struct {
	Capital       decimal.Decimal
	FeeReserve    decimal.Decimal
	Reserved      decimal.Decimal
	DailyPnL      decimal.Decimal
	DailyTrades   int
	ConsecFails   int
	TradesTotal   int
	LandedTotal   int
	FailuresTotal int
}

type Ledger struct {
	mu sync.Mutex

	capital    decimal.Decimal
	feeReserve decimal.Decimal
	reserved   decimal.Decimal

	dailyPnL    decimal.Decimal
	dailyTrades int
	consecFails int

	tradesTotal   int
	landedTotal   int
	failuresTotal int

	lastResetDay int
	now          func() time.Time
}

func New(capital, feeReserve decimal.Decimal) *Ledger {
	return &Ledger{
		capital:      capital,
		feeReserve:   feeReserve,
		dailyPnL:     decimal.Zero,
		lastResetDay: time.Now().YearDay(),
		now:          time.Now,
	}
}

// Reserve earmarks amount for an in-flight job and counts the trade. Fails
// without side effects when free capital is short.
func (l *Ledger) Reserve(amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkDayReset()

	free := l.capital.Sub(l.feeReserve).Sub(l.reserved)
	if amount.GreaterThan(free) {
		return ErrInsufficientCapital
	}
	l.reserved = l.reserved.Add(amount)
	l.dailyTrades++
	l.tradesTotal++
	return nil
}

// ReleaseUnsubmitted returns a reservation that never reached a transport
// (queue full, stale at dequeue, shutdown drain) and restores the daily
// trade count to pre-reserve parity.
func (l *Ledger) ReleaseUnsubmitted(amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.release(amount)
	if l.dailyTrades > 0 {
		l.dailyTrades--
	}
	if l.tradesTotal > 0 {
		l.tradesTotal--
	}
}

// RecordSuccess releases the reservation, credits net profit, and clears the
// consecutive-failure streak. Paper fills use it with their simulated net.
func (l *Ledger) RecordSuccess(amount, netProfit decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.release(amount)
	l.dailyPnL = l.dailyPnL.Add(netProfit)
	l.capital = l.capital.Add(netProfit)
	l.consecFails = 0
	l.landedTotal++
}

// RecordFailure releases the reservation and extends the failure streak. The
// bundle did not land, so no cost is realized against PnL.
func (l *Ledger) RecordFailure(amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.release(amount)
	l.consecFails++
	l.failuresTotal++
}

// release must run under l.mu.
func (l *Ledger) release(amount decimal.Decimal) {
	l.reserved = l.reserved.Sub(amount)
	if l.reserved.IsNegative() {
		// Reservation underflow means double release or a phantom job.
		log.Fatal().
			Str("reserved", l.reserved.String()).
			Str("amount", amount.String()).
			Msg("🚨 Ledger reservation underflow")
	}
}

// checkDayReset rolls the daily counters at local-day rollover. Must run
// under l.mu.
func (l *Ledger) checkDayReset() {
	today := l.now().YearDay()
	if l.lastResetDay == today {
		return
	}
	l.dailyPnL = decimal.Zero
	l.dailyTrades = 0
	l.consecFails = 0
	l.lastResetDay = today
	log.Info().Str("capital", l.capital.StringFixed(4)).Msg("📅 Daily ledger stats reset")
}

// Snapshot returns a consistent view for the governor and the reporter.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkDayReset()
	return Snapshot{
		Capital:       l.capital,
		FeeReserve:    l.feeReserve,
		Reserved:      l.reserved,
		DailyPnL:      l.dailyPnL,
		DailyTrades:   l.dailyTrades,
		ConsecFails:   l.consecFails,
		TradesTotal:   l.tradesTotal,
		LandedTotal:   l.landedTotal,
		FailuresTotal: l.failuresTotal,
	}
}

// SetClock overrides the rollover clock. Test hook.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
