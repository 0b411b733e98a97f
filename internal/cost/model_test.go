package cost

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
)

type flatFees struct{}

func (flatFees) FeeRate(venueID string, fallback decimal.Decimal) decimal.Decimal {
	return fallback
}

func fixedSnapshot(p99 float64) func() TipSnapshot {
	snap := TipSnapshot{
		P25:       decimal.NewFromFloat(0.0000005),
		P50:       decimal.NewFromFloat(0.000001),
		P75:       decimal.NewFromFloat(0.00001),
		P95:       decimal.NewFromFloat(0.0003),
		P99:       decimal.NewFromFloat(p99),
		FetchedAt: time.Now(),
	}
	return func() TipSnapshot { return snap }
}

func testOptions() Options {
	return Options{
		MarginMultiplier:  decimal.NewFromFloat(1.05),
		TipPercentile:     99,
		TipTargetFrac:     decimal.NewFromFloat(0.10),
		TipBoostThreshold: decimal.NewFromFloat(0.05),
		TipAbsCap:         decimal.NewFromFloat(0.005),
		TipMin:            decimal.NewFromFloat(0.0001),
		GasMult:           decimal.NewFromFloat(1.5),
	}
}

func candidate(input, output float64, notionals [3]float64) types.TriangleCandidate {
	return types.TriangleCandidate{
		TokenX: "T1", TokenY: "T2",
		BuyX:  types.PoolRef{Venue: "v1", Pool: "a"},
		SellX: types.PoolRef{Venue: "v2", Pool: "b"},
		BuyY:  types.PoolRef{Venue: "v1", Pool: "c"},
		SellY: types.PoolRef{Venue: "v2", Pool: "d"},
		Input:  decimal.NewFromFloat(input),
		Output: decimal.NewFromFloat(output),
		LegNotional: [3]decimal.Decimal{
			decimal.NewFromFloat(notionals[0]),
			decimal.NewFromFloat(notionals[1]),
			decimal.NewFromFloat(notionals[2]),
		},
	}
}

func approx(t *testing.T, name string, got decimal.Decimal, want, tol float64) {
	t.Helper()
	if got.Sub(decimal.NewFromFloat(want)).Abs().GreaterThan(decimal.NewFromFloat(tol)) {
		t.Fatalf("%s = %s, want ≈%v", name, got, want)
	}
}

func TestHappyPathBreakdown(t *testing.T) {
	m := New(testOptions(), flatFees{}, fixedSnapshot(0.0007))
	cand := candidate(1.0, 1.0201, [3]float64{1.0, 1.01, 1.0201})

	cb := m.Evaluate(cand)

	approx(t, "gross", cb.GrossProfit, 0.0201, 1e-9)
	approx(t, "venue fees", cb.VenueFees, 0.0075, 0.0002)
	approx(t, "tip", cb.Tip, 0.0007, 1e-9)
	approx(t, "gas", cb.Gas, 0.00105, 1e-9)
	approx(t, "total", cb.TotalCost, 0.00925, 0.0002)
	approx(t, "net", cb.NetProfit, 0.01075, 0.0002)
	if !cb.MeetsMargin {
		t.Fatal("happy path must meet margin")
	}
}

func TestMarginVerdict(t *testing.T) {
	m := New(testOptions(), flatFees{}, fixedSnapshot(0.0007))

	// Barely above water but under 1.05x cost: no go.
	cand := candidate(1.0, 1.0101, [3]float64{1.0, 1.005, 1.0101})
	cb := m.Evaluate(cand)
	if cb.NetProfit.IsNegative() {
		t.Fatalf("expected positive net, got %s", cb.NetProfit)
	}
	if cb.NetProfit.GreaterThanOrEqual(cb.TotalCost.Mul(decimal.NewFromFloat(1.05))) {
		t.Skip("candidate unexpectedly rich for this case")
	}
	if cb.MeetsMargin {
		t.Fatal("thin candidate must not meet margin")
	}
}

func TestAcceptedImpliesMarginInvariant(t *testing.T) {
	m := New(testOptions(), flatFees{}, fixedSnapshot(0.0007))
	outputs := []float64{1.001, 1.005, 1.01, 1.02, 1.05, 1.10, 1.19}
	for _, out := range outputs {
		cand := candidate(1.0, out, [3]float64{1.0, out, out})
		cb := m.Evaluate(cand)
		if cb.MeetsMargin {
			if !cb.NetProfit.IsPositive() {
				t.Fatalf("output %v: accepted with non-positive net %s", out, cb.NetProfit)
			}
			floor := cb.TotalCost.Mul(decimal.NewFromFloat(1.05))
			if cb.NetProfit.LessThan(floor) {
				t.Fatalf("output %v: net %s below margin floor %s", out, cb.NetProfit, floor)
			}
		}
	}
}

func TestTipBoostOnHighMargin(t *testing.T) {
	opts := testOptions()
	opts.TipAbsCap = decimal.NewFromFloat(0.1) // out of the way
	m := New(opts, flatFees{}, fixedSnapshot(0.0000001))

	// Tiny venue fees against a fat gross: fees/gross < 5% triggers the
	// scale toward 10% of gross.
	cand := candidate(1.0, 1.15, [3]float64{0.01, 0.01, 0.01})
	cb := m.Evaluate(cand)

	target := cb.GrossProfit.Mul(decimal.NewFromFloat(0.10))
	if !cb.Tip.Equal(target) {
		t.Fatalf("boosted tip = %s, want %s", cb.Tip, target)
	}
}

func TestTipCapBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		p99     float64
		absCap  float64
		gross   float64
		fees    float64
		wantTip func(gross, fees decimal.Decimal) decimal.Decimal
	}{
		{
			name: "profit cap", p99: 0.5, absCap: 10, gross: 0.02, fees: 0.0075,
			wantTip: func(g, f decimal.Decimal) decimal.Decimal {
				return g.Mul(decimal.NewFromFloat(0.17))
			},
		},
		{
			name: "net cap", p99: 0.5, absCap: 10, gross: 0.02, fees: 0.017,
			wantTip: func(g, f decimal.Decimal) decimal.Decimal {
				return g.Sub(f).Mul(decimal.NewFromFloat(0.30))
			},
		},
		{
			name: "absolute cap", p99: 0.5, absCap: 0.001, gross: 1.0, fees: 0.01,
			wantTip: func(g, f decimal.Decimal) decimal.Decimal {
				return decimal.NewFromFloat(0.001)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := testOptions()
			opts.TipAbsCap = decimal.NewFromFloat(tc.absCap)
			m := New(opts, flatFees{}, fixedSnapshot(tc.p99))

			gross := decimal.NewFromFloat(tc.gross)
			fees := decimal.NewFromFloat(tc.fees)
			got := m.tipFor(gross, fees)
			want := tc.wantTip(gross, fees)
			if !got.Equal(want) {
				t.Fatalf("tip = %s, want %s", got, want)
			}
		})
	}
}

func TestTipFloor(t *testing.T) {
	m := New(testOptions(), flatFees{}, fixedSnapshot(0.00000001))
	// Percentile under the floor, no boost: the floor holds.
	got := m.tipFor(decimal.NewFromFloat(0.02), decimal.NewFromFloat(0.0075))
	if !got.Equal(decimal.NewFromFloat(0.0001)) {
		t.Fatalf("tip = %s, want the 0.0001 floor", got)
	}
}

func TestEvaluateIsPure(t *testing.T) {
	m := New(testOptions(), flatFees{}, fixedSnapshot(0.0007))
	cand := candidate(1.0, 1.0201, [3]float64{1.0, 1.01, 1.0201})

	a := m.Evaluate(cand)
	b := m.Evaluate(cand)
	if !a.TotalCost.Equal(b.TotalCost) || !a.NetProfit.Equal(b.NetProfit) || !a.Tip.Equal(b.Tip) {
		t.Fatal("identical inputs must produce identical breakdowns")
	}
}
