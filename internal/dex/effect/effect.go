// Package effect derives the consequences of a settled trade: the
// successor pool or order state and the output descriptors a settlement
// transaction would have to produce. Descriptors are handed off as data;
// building and signing the transaction is the caller's business.
package effect

import (
	"errors"
	"fmt"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/dex/ob"
	"DexLedger/internal/plutus"
)

// Output describes one transaction output a settlement must create.
// Script-bound outputs carry a bech32 address; payouts to an order
// owner carry the owner's decoded credentials instead.
type Output struct {
	Address string
	Owner   *plutus.Address
	Assets  asset.Bag
	Datum   plutus.Data
}

// OrderResult is the outcome of filling one order. Order is the
// re-emitted live order after a partial fill, nil when the fill
// consumed the order. Fees is set on complete fills of protocols that
// accrue fees inside the order UTXO and release them on closure.
type OrderResult struct {
	Order  *dex.OrderState
	Output Output
	Fees   *Output
}

var (
	errNotInPair  = errors.New("effect: input unit is not in the pool pair")
	errEmptyTrade = errors.New("effect: trade amounts must be positive")
	errOverdrawn  = errors.New("effect: output exceeds pool reserves")
	errFillTooBig = errors.New("effect: fill exceeds the order's remaining amount")
)

// ApplySwap derives the pool state after a swap of amountIn of inUnit
// against the quoted output, plus the descriptor for the pool's
// successor UTXO. When the pool shares fees with a treasury, the
// treasury's cut of the input is diverted before the reserve credit.
func ApplySwap(p *dex.PoolState, inUnit string, amountIn int64, quote dex.Quote) (*dex.PoolState, Output, error) {
	outUnit := p.OppositeUnit(inUnit)
	if outUnit == "" {
		return nil, Output{}, errNotInPair
	}
	amountOut := quote.Amount.QuantityOf(outUnit)
	if amountIn <= 0 || amountOut <= 0 {
		return nil, Output{}, errEmptyTrade
	}
	if amountOut >= p.Reserves.QuantityOf(outUnit) {
		return nil, Output{}, errOverdrawn
	}

	next := p.Clone()

	var share int64
	if p.FeeShare > 0 && p.Fees.Basis > 0 {
		share = amountIn * p.FeeShare / p.Fees.Basis
		if inUnit == p.UnitA {
			next.TreasuryA += share
		} else {
			next.TreasuryB += share
		}
	}

	next.Reserves = next.Reserves.
		AddQuantity(inUnit, amountIn-share).
		AddQuantity(outUnit, -amountOut)
	if next.Reserves.HasNegative() {
		return nil, Output{}, errOverdrawn
	}

	balance := next.Reserves.
		AddQuantity(next.UnitA, next.TreasuryA).
		AddQuantity(next.UnitB, next.TreasuryB).
		Add(next.PoolNFT).
		Add(next.LPTokens).
		Add(next.DexNFT)

	return next, Output{
		Address: next.Address,
		Assets:  balance,
		Datum:   next.Datum,
	}, nil
}

// datumFiller is implemented by order protocols whose orders survive
// partial fills with a rewritten datum.
type datumFiller interface {
	FillDatum(o *dex.OrderState, pay, take int64) (plutus.Data, error)
}

// FillOrder derives the consequence of one fill: a partial fill
// re-emits the order at its script address with the filled portion
// swapped out of its balance, a complete fill pays the owner out and
// releases any fees the order accrued. balance is the order UTXO's
// current multi-asset value.
func FillOrder(proto dex.OrderProtocol, o *dex.OrderState, f ob.Fill, balance asset.Bag) (OrderResult, error) {
	if f.Take <= 0 || f.Take > o.InAmount {
		return OrderResult{}, errFillTooBig
	}

	if !f.Complete {
		filler, ok := proto.(datumFiller)
		if !ok {
			return OrderResult{}, fmt.Errorf("effect: %s orders cannot be partially filled", proto.Name())
		}
		datum, err := filler.FillDatum(o, f.Pay, f.Take)
		if err != nil {
			return OrderResult{}, err
		}

		next := *o
		next.InAmount = f.Remaining
		next.Kind = dex.KindSwap
		next.Datum = datum

		assets := balance.
			AddQuantity(o.InUnit, -f.Take).
			AddQuantity(o.OutUnit, f.Pay).
			AddQuantity(asset.Lovelace, o.BatcherFee)
		if assets.HasNegative() {
			return OrderResult{}, errOverdrawn
		}
		return OrderResult{
			Order:  &next,
			Output: Output{Address: o.Address, Assets: assets, Datum: datum},
		}, nil
	}

	owner := o.Owner
	payout := asset.Single(o.OutUnit, f.Pay)
	if o.Deposit > 0 {
		payout = payout.AddQuantity(asset.Lovelace, o.Deposit)
	}
	result := OrderResult{
		Output: Output{Owner: &owner, Assets: payout},
	}
	if fees := accruedFees(o, balance, f); fees.Len() > 0 {
		result.Fees = &Output{Assets: fees}
	}
	return result, nil
}

// accruedFees returns the fee balance a closing order releases: whatever
// the UTXO holds beyond the offered remainder and its identity token.
func accruedFees(o *dex.OrderState, balance asset.Bag, f ob.Fill) asset.Bag {
	rest := balance.
		AddQuantity(o.InUnit, -f.Take).
		Sub(o.IdentityNFT)
	fees := asset.Bag{}
	for _, unit := range rest.Units() {
		if qty := rest.QuantityOf(unit); qty > 0 {
			fees = fees.AddQuantity(unit, qty)
		}
	}
	return fees
}

// AggregateFees folds per-fill fee outputs into the single payment a
// settlement makes to the protocol's fee address.
func AggregateFees(results []OrderResult) *Output {
	var agg *Output
	for _, r := range results {
		if r.Fees == nil {
			continue
		}
		if agg == nil {
			out := *r.Fees
			agg = &out
			continue
		}
		agg.Assets = agg.Assets.Add(r.Fees.Assets)
	}
	return agg
}
