package venue

import (
	"encoding/binary"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
)

// Constant-product AMM builder. Covers the Raydium- and Orca-style pools in
// the injected pool set; each instance is configured with its program id and
// published fee rate.
//
// Pool state is a pair of virtual reserves derived from the observation
// stream: base depth tracks 24h volume scaled by depthMult, token depth
// follows from the observed price. Quoting slides along x*y=k.
type CPMM struct {
	name      string
	program   string
	fee       decimal.Decimal
	baseToken string
	depthMult decimal.Decimal

	mu    sync.RWMutex
	pools map[string]*cpmmPool
}

type cpmmPool struct {
	token        string
	baseReserve  decimal.Decimal
	tokenReserve decimal.Decimal
}

// cpmmSwapOp is the swap discriminator in the instruction data layout shared
// by the supported CPMM programs.
const cpmmSwapOp = 9

// minPoolDepth floors the virtual base reserve so a quiet pool still quotes
// instead of dividing into dust.
var minPoolDepth = decimal.NewFromInt(1000)

func NewCPMM(name, program string, feeRate decimal.Decimal, baseToken string, depthMult decimal.Decimal) *CPMM {
	return &CPMM{
		name:      name,
		program:   program,
		fee:       feeRate,
		baseToken: baseToken,
		depthMult: depthMult,
		pools:     make(map[string]*cpmmPool),
	}
}

func (c *CPMM) ProgramID() string        { return c.program }
func (c *CPMM) FeeRate() decimal.Decimal { return c.fee }

// UpdatePool refreshes the virtual reserves for one pool from a clean
// observation.
func (c *CPMM) UpdatePool(obs types.PriceObservation) {
	if obs.Price.LessThanOrEqual(decimal.Zero) {
		return
	}
	base := obs.Volume24h.Mul(c.depthMult)
	if base.LessThan(minPoolDepth) {
		base = minPoolDepth
	}
	c.mu.Lock()
	c.pools[obs.Pool] = &cpmmPool{
		token:        obs.Token,
		baseReserve:  base,
		tokenReserve: base.Div(obs.Price),
	}
	c.mu.Unlock()
}

// SetPoolState installs explicit reserves. Only tests call it; the running
// bot creates and refreshes pool state through UpdatePool.
func (c *CPMM) SetPoolState(pool, token string, baseReserve, tokenReserve decimal.Decimal) {
	c.mu.Lock()
	c.pools[pool] = &cpmmPool{token: token, baseReserve: baseReserve, tokenReserve: tokenReserve}
	c.mu.Unlock()
}

// Quote applies constant-product math to the cached reserves. The venue fee
// is not included here; the cost model accounts for it.
func (c *CPMM) Quote(pool, inputToken string, input decimal.Decimal) (decimal.Decimal, error) {
	if input.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrRefused
	}
	c.mu.RLock()
	st, ok := c.pools[pool]
	c.mu.RUnlock()
	if !ok {
		return decimal.Zero, ErrRefused
	}

	switch inputToken {
	case c.baseToken:
		// base → token
		return st.tokenReserve.Mul(input).Div(st.baseReserve.Add(input)), nil
	case st.token:
		// token → base
		return st.baseReserve.Mul(input).Div(st.tokenReserve.Add(input)), nil
	default:
		return decimal.Zero, ErrRefused
	}
}

// BuildSwap produces the single swap instruction for this leg. Amounts are
// carried in lamports (1e9 per base unit).
func (c *CPMM) BuildSwap(pool, inputToken string, input, minOutput decimal.Decimal, wallet string) ([]Instruction, error) {
	c.mu.RLock()
	st, ok := c.pools[pool]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrRefused
	}
	if inputToken != c.baseToken && inputToken != st.token {
		return nil, ErrRefused
	}

	data := make([]byte, 17)
	data[0] = cpmmSwapOp
	binary.LittleEndian.PutUint64(data[1:9], toLamports(input))
	binary.LittleEndian.PutUint64(data[9:17], toLamports(minOutput))

	return []Instruction{{
		Program:  c.program,
		Accounts: []string{pool, wallet},
		Data:     data,
	}}, nil
}

func toLamports(d decimal.Decimal) uint64 {
	v := d.Mul(decimal.NewFromInt(1_000_000_000)).IntPart()
	if v < 0 {
		return 0
	}
	return uint64(v)
}
