package bundle

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/venue"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BUNDLE ASSEMBLY - Candidate → signed base58 transactions
// ═══════════════════════════════════════════════════════════════════════════════
//
// One transaction per cycle leg, the last one carrying the tip transfer. The
// bundle is atomic on-chain or not at all, so per-leg slippage guards only
// need to catch stale pool state.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	systemProgram        = "11111111111111111111111111111111"
	computeBudgetProgram = "ComputeBudget111111111111111111111111111111"

	systemTransferOp   = 2
	computeUnitPriceOp = 3
)

// tipAccounts are the block-inclusion channel's tip destinations. One is
// picked per bundle off the job id.
var tipAccounts = []string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
}

// Options configure assembly.
type Options struct {
	BaseToken         string
	SlippageTolerance decimal.Decimal // per-leg minimum-output guard
	GasBaseFrac       decimal.Decimal // share of gas counted as base fee, left out of the compute-budget instructions
}

// Assembler builds, signs, and encodes bundles through the venue registry.
type Assembler struct {
	registry *venue.Registry
	signer   Signer
	opts     Options
}

func NewAssembler(registry *venue.Registry, signer Signer, opts Options) *Assembler {
	if opts.SlippageTolerance.IsZero() {
		opts.SlippageTolerance = decimal.NewFromFloat(0.01)
	}
	if opts.GasBaseFrac.IsZero() {
		opts.GasBaseFrac = decimal.NewFromFloat(0.70)
	}
	return &Assembler{registry: registry, signer: signer, opts: opts}
}

// Build assembles the three leg transactions for an approved candidate.
func (a *Assembler) Build(cand types.TriangleCandidate, cb types.CostBreakdown) (*types.SubmissionJob, error) {
	wallet := a.signer.PublicKey()
	id := uuid.NewString()

	// Re-quote each hop so instruction amounts match current pool state.
	amtX, err := a.registry.Quote(cand.BuyX, a.opts.BaseToken, cand.Input)
	if err != nil {
		return nil, fmt.Errorf("leg 1 quote: %w", err)
	}
	baseMid, err := a.registry.Quote(cand.SellX, cand.TokenX, amtX)
	if err != nil {
		return nil, fmt.Errorf("leg 2 quote: %w", err)
	}
	amtY, err := a.registry.Quote(cand.BuyY, a.opts.BaseToken, baseMid)
	if err != nil {
		return nil, fmt.Errorf("leg 2 quote: %w", err)
	}
	out, err := a.registry.Quote(cand.SellY, cand.TokenY, amtY)
	if err != nil {
		return nil, fmt.Errorf("leg 3 quote: %w", err)
	}

	legs := []struct {
		ref       types.PoolRef
		input     decimal.Decimal
		inputTok  string
		minOutput decimal.Decimal
	}{
		{cand.BuyX, cand.Input, a.opts.BaseToken, a.guard(amtX)},
		{cand.SellX, amtX, cand.TokenX, a.guard(baseMid)},
		{cand.BuyY, baseMid, a.opts.BaseToken, a.guard(amtY)},
		{cand.SellY, amtY, cand.TokenY, a.guard(out)},
	}

	// Compute-unit budget rides on every transaction and carries the compute
	// share of gas (1 − GasBaseFrac); the base-fee share is not written into
	// any instruction.
	computeFee := cb.Gas.Mul(decimal.NewFromInt(1).Sub(a.opts.GasBaseFrac))
	computePerTx := computeFee.Div(decimal.NewFromInt(3))

	var txs []string

	// Leg 1 and the two middle swaps share transactions 1 and 2; the final
	// sell carries the tip.
	groups := [][]int{{0}, {1, 2}, {3}}
	for gi, group := range groups {
		instrs := []venue.Instruction{computeBudgetInstruction(computePerTx)}
		for _, li := range group {
			leg := legs[li]
			b, ok := a.registry.Builder(leg.ref.Venue)
			if !ok {
				return nil, venue.ErrRefused
			}
			swap, err := b.BuildSwap(leg.ref.Pool, leg.inputTok, leg.input, leg.minOutput, wallet)
			if err != nil {
				return nil, fmt.Errorf("build swap %s: %w", leg.ref, err)
			}
			instrs = append(instrs, swap...)
		}
		if gi == len(groups)-1 {
			instrs = append(instrs, tipInstruction(wallet, id, cb.Tip))
		}
		txs = append(txs, a.signAndEncode(instrs))
	}

	return &types.SubmissionJob{
		ID:           id,
		Candidate:    cand,
		Cost:         cb,
		Transactions: txs,
	}, nil
}

func (a *Assembler) guard(quoted decimal.Decimal) decimal.Decimal {
	return quoted.Mul(decimal.NewFromInt(1).Sub(a.opts.SlippageTolerance))
}

// signAndEncode serializes the instruction list into the wire layout,
// signs the message, and returns signature‖message in base58.
func (a *Assembler) signAndEncode(instrs []venue.Instruction) string {
	message := encodeMessage(a.signer.PublicKey(), instrs)
	sig := a.signer.Sign(message)

	wire := make([]byte, 0, 1+len(sig)+len(message))
	wire = append(wire, 1) // signature count
	wire = append(wire, sig...)
	wire = append(wire, message...)
	return base58.Encode(wire)
}

// encodeMessage lays out the transaction message deterministically:
// payer, instruction count, then each instruction as
// program, account list, and length-prefixed data.
func encodeMessage(payer string, instrs []venue.Instruction) []byte {
	var msg []byte
	msg = appendString(msg, payer)
	msg = append(msg, byte(len(instrs)))
	for _, in := range instrs {
		msg = appendString(msg, in.Program)
		msg = append(msg, byte(len(in.Accounts)))
		for _, acc := range in.Accounts {
			msg = appendString(msg, acc)
		}
		var dataLen [2]byte
		binary.LittleEndian.PutUint16(dataLen[:], uint16(len(in.Data)))
		msg = append(msg, dataLen[:]...)
		msg = append(msg, in.Data...)
	}
	return msg
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

// DecodeTransaction splits a wire transaction back into signature and
// message bytes. Used by tests and diagnostics.
func DecodeTransaction(encoded string) (sig, message []byte, err error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) < 1+64 || raw[0] != 1 {
		return nil, nil, fmt.Errorf("malformed transaction wire")
	}
	return raw[1:65], raw[65:], nil
}

func computeBudgetInstruction(fee decimal.Decimal) venue.Instruction {
	data := make([]byte, 9)
	data[0] = computeUnitPriceOp
	binary.LittleEndian.PutUint64(data[1:], toLamports(fee))
	return venue.Instruction{Program: computeBudgetProgram, Data: data}
}

func tipInstruction(wallet, jobID string, tip decimal.Decimal) venue.Instruction {
	account := tipAccounts[0]
	if len(jobID) > 0 {
		account = tipAccounts[int(jobID[0])%len(tipAccounts)]
	}
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferOp)
	binary.LittleEndian.PutUint64(data[4:12], toLamports(tip))
	return venue.Instruction{
		Program:  systemProgram,
		Accounts: []string{wallet, account},
		Data:     data,
	}
}

func toLamports(d decimal.Decimal) uint64 {
	v := d.Mul(decimal.NewFromInt(1_000_000_000)).IntPart()
	if v < 0 {
		return 0
	}
	return uint64(v)
}
