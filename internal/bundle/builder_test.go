package bundle

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/venue"
)

const base = "So11111111111111111111111111111111111111112"

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func testRegistry() *venue.Registry {
	r := venue.NewRegistry()
	c := venue.NewCPMM("raydium", "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8",
		d(0.0025), base, decimal.NewFromInt(50))
	c.SetPoolState("pool-x1", "T1", d(1e9), d(1e9))
	c.SetPoolState("pool-x2", "T1", d(1e9), d(1e9))
	c.SetPoolState("pool-y1", "T2", d(1e9), d(5e8))
	c.SetPoolState("pool-y2", "T2", d(1e9), d(5e8))
	r.Register("raydium", c)
	return r
}

func testCandidate() types.TriangleCandidate {
	return types.TriangleCandidate{
		TokenX: "T1", TokenY: "T2",
		BuyX:  types.PoolRef{Venue: "raydium", Pool: "pool-x1"},
		SellX: types.PoolRef{Venue: "raydium", Pool: "pool-x2"},
		BuyY:  types.PoolRef{Venue: "raydium", Pool: "pool-y1"},
		SellY: types.PoolRef{Venue: "raydium", Pool: "pool-y2"},
		Input: d(1.0), Output: d(1.02),
		LegNotional: [3]decimal.Decimal{d(1.0), d(1.0), d(1.02)},
	}
}

func testCost() types.CostBreakdown {
	return types.CostBreakdown{
		GrossProfit: d(0.02),
		VenueFees:   d(0.0075),
		Tip:         d(0.0007),
		Gas:         d(0.00105),
		TotalCost:   d(0.00925),
		NetProfit:   d(0.01075),
		MeetsMargin: true,
	}
}

func TestBuildProducesSignedBundle(t *testing.T) {
	signer, err := NewEphemeralSigner()
	if err != nil {
		t.Fatal(err)
	}
	a := NewAssembler(testRegistry(), signer, Options{BaseToken: base})

	job, err := a.Build(testCandidate(), testCost())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if job.ID == "" {
		t.Fatal("job id missing")
	}
	if len(job.Transactions) != 3 {
		t.Fatalf("got %d transactions, want 3", len(job.Transactions))
	}

	pub, err := base58.Decode(signer.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	for i, tx := range job.Transactions {
		sig, msg, err := DecodeTransaction(tx)
		if err != nil {
			t.Fatalf("tx %d decode: %v", i, err)
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
			t.Fatalf("tx %d signature does not verify", i)
		}
	}
}

func TestBuildRefusesUnknownPool(t *testing.T) {
	signer, err := NewEphemeralSigner()
	if err != nil {
		t.Fatal(err)
	}
	a := NewAssembler(testRegistry(), signer, Options{BaseToken: base})

	cand := testCandidate()
	cand.SellY.Pool = "missing"
	if _, err := a.Build(cand, testCost()); err == nil {
		t.Fatal("expected refusal for unknown pool")
	}
}

func TestSignerRoundTrip(t *testing.T) {
	s1, err := NewEphemeralSigner()
	if err != nil {
		t.Fatal(err)
	}
	// Export/import via base58 reproduces the key.
	raw := make([]byte, ed25519.PrivateKeySize)
	copy(raw, s1.key)
	s2, err := NewLocalSigner(base58.Encode(raw))
	if err != nil {
		t.Fatalf("reload key: %v", err)
	}
	if s1.PublicKey() != s2.PublicKey() {
		t.Fatal("public keys diverge after reload")
	}

	msg := []byte("message")
	if string(s1.Sign(msg)) != string(s2.Sign(msg)) {
		t.Fatal("signatures diverge after reload")
	}
}

func TestLocalSignerRejectsBadKeys(t *testing.T) {
	if _, err := NewLocalSigner("not-base58-!!!"); err == nil {
		t.Fatal("expected decode failure")
	}
	if _, err := NewLocalSigner(base58.Encode([]byte("short"))); err == nil {
		t.Fatal("expected length failure")
	}
}
