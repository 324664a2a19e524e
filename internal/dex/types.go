package dex

import (
	"math/big"

	"DexLedger/internal/asset"
	"DexLedger/internal/plutus"
)

// Record is one raw ledger UTXO as handed over by the backend: an address,
// its multi-asset balance, and the opaque datum blob. PoolNFT, LPTokens and
// DexNFT may be pre-populated when an upstream pass already extracted them;
// classification then re-validates instead of re-deriving.
type Record struct {
	Address   string
	Assets    asset.Bag
	DatumCBOR []byte
	TxHash    string
	TxIndex   int

	PoolNFT  asset.Bag
	LPTokens asset.Bag
	DexNFT   asset.Bag
}

// ID returns the UTXO reference "txhash#index".
func (r Record) ID() string {
	return utxoRef(r.TxHash, r.TxIndex)
}

// PricingStyle selects which invariant governs a pool's quotes.
type PricingStyle int

const (
	StyleConstantProduct PricingStyle = iota
	StyleStableswap
)

// Fees is a pool's trading-fee schedule over a common basis. NumA applies
// when selling the pair's first unit, NumB when selling the second;
// symmetric protocols set both to the same value.
type Fees struct {
	Basis int64
	NumA  int64
	NumB  int64
}

// ForInput returns the fee numerator applied when the given unit is sold
// into the pool.
func (f Fees) ForInput(p *PoolState, unit string) int64 {
	if unit == p.UnitB {
		return f.NumB
	}
	return f.NumA
}

// PoolState is a validated projection of one pool UTXO: normalized reserves,
// identity tokens, fee schedule and pricing parameters. It is a value the
// caller owns; deriving a post-trade state always builds a new PoolState.
type PoolState struct {
	Protocol string
	Address  string
	TxHash   string
	TxIndex  int

	UnitA    string
	UnitB    string
	Reserves asset.Bag

	PoolNFT  asset.Bag
	LPTokens asset.Bag
	DexNFT   asset.Bag

	Style PricingStyle
	Fees  Fees

	// Stableswap parameters. Ann is the scaled amplification value; the
	// multipliers normalize per-asset decimal precision.
	Ann         int64
	MultiplierA int64
	MultiplierB int64

	// Carried balances excluded from the pricing reserves. Treasury
	// accrual on trades updates these on the derived state.
	TreasuryA int64
	TreasuryB int64
	FeeShare  int64

	Active bool

	Datum plutus.Data
}

// ReserveA returns the pricing reserve of the pair's first unit.
func (p *PoolState) ReserveA() int64 { return p.Reserves.QuantityOf(p.UnitA) }

// ReserveB returns the pricing reserve of the pair's second unit.
func (p *PoolState) ReserveB() int64 { return p.Reserves.QuantityOf(p.UnitB) }

// OppositeUnit returns the other side of the pair, or "" if unit is not in
// the pair.
func (p *PoolState) OppositeUnit(unit string) string {
	switch unit {
	case p.UnitA:
		return p.UnitB
	case p.UnitB:
		return p.UnitA
	}
	return ""
}

// ID returns the UTXO reference of the pool's backing output.
func (p *PoolState) ID() string { return utxoRef(p.TxHash, p.TxIndex) }

// Clone returns an independent copy, sharing only the immutable datum tree.
func (p *PoolState) Clone() *PoolState {
	out := *p
	out.Reserves = p.Reserves.Clone()
	out.PoolNFT = p.PoolNFT.Clone()
	out.LPTokens = p.LPTokens.Clone()
	out.DexNFT = p.DexNFT.Clone()
	return &out
}

// OrderKind classifies an order datum's action.
type OrderKind int

const (
	KindSwap OrderKind = iota
	KindDeposit
	KindWithdraw
	KindOther
)

func (k OrderKind) String() string {
	switch k {
	case KindSwap:
		return "swap"
	case KindDeposit:
		return "deposit"
	case KindWithdraw:
		return "withdraw"
	default:
		return "other"
	}
}

// OrderState is a validated projection of one order UTXO.
type OrderState struct {
	Protocol string
	Address  string
	TxHash   string
	TxIndex  int

	Kind  OrderKind
	Owner plutus.Address

	// In is what the order offers, Out the unit it wants. MinReceive is
	// the minimum acceptable output; withdraw-type orders carry the
	// per-asset pair in MinReceiveA/MinReceiveB instead.
	InUnit      string
	InAmount    int64
	OutUnit     string
	MinReceive  int64
	MinReceiveA int64
	MinReceiveB int64

	// Limit price as an exact rational; nil for market-style orders.
	Price *big.Rat

	// Millisecond timestamps bounding validity; zero means unbounded.
	StartTime int64
	EndTime   int64

	BatcherFee int64
	Deposit    int64

	IdentityNFT asset.Bag

	Active bool

	Datum plutus.Data
}

// ID returns the UTXO reference of the order's backing output.
func (o *OrderState) ID() string { return utxoRef(o.TxHash, o.TxIndex) }

// RequestedAmount returns the minimum acceptable output for swap and
// deposit orders; withdraw orders report their per-asset pair and other
// actions report nothing.
func (o *OrderState) RequestedAmount() asset.Bag {
	switch o.Kind {
	case KindSwap, KindDeposit:
		return asset.Single(o.OutUnit, o.MinReceive)
	case KindWithdraw:
		return asset.New(o.InUnit, o.MinReceiveA, o.OutUnit, o.MinReceiveB)
	default:
		return asset.Bag{}
	}
}

// Quote is a priced trade leg. Amount is the settlement-exact output (or
// input, for inverse quotes); Slippage is advisory only and never feeds
// back into settlement arithmetic.
type Quote struct {
	Amount   asset.Bag
	Slippage float64
}
