// Package ob models peer-to-peer order books: open orders partitioned
// into buy and sell sides over a pair, price-sorted with exact rational
// arithmetic, and matched best-price-first with partial fills.
package ob

import (
	"fmt"
	"math/big"
	"sort"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
)

// DefaultDepth caps each book side. Partial-fill chains past a few
// orders blow the script memory budget, so quoting deeper is pointless.
const DefaultDepth = 3

// Book is a two-sided view of open orders over a pair. Sell orders
// offer UnitB against UnitA payment, buy orders the reverse. Both sides
// are sorted ascending by price, so index 0 is the best fill.
type Book struct {
	UnitA string
	UnitB string

	Sell []*dex.OrderState
	Buy  []*dex.OrderState

	proto dex.OrderProtocol
}

// Fill is one order's contribution to a match. Pay is the asked asset
// routed into the order, Take the offered asset removed from it.
// Remaining is the offered amount left behind; a Complete fill consumes
// the order entirely and its UTXO is terminal.
type Fill struct {
	Order     *dex.OrderState
	Pay       int64
	Take      int64
	Remaining int64
	Complete  bool
}

// NewBook partitions orders into the two sides of the unitA/unitB pair,
// dropping inactive orders and anything without a usable price or
// remaining amount. Each side is sorted ascending by price and cut to
// depth entries; depth <= 0 keeps the full side.
func NewBook(proto dex.OrderProtocol, unitA, unitB string, orders []*dex.OrderState, depth int) *Book {
	b := &Book{UnitA: unitA, UnitB: unitB, proto: proto}
	for _, o := range orders {
		if !o.Active || o.Price == nil || o.Price.Sign() <= 0 || o.InAmount <= 0 {
			continue
		}
		switch {
		case o.InUnit == unitB && o.OutUnit == unitA:
			b.Sell = append(b.Sell, o)
		case o.InUnit == unitA && o.OutUnit == unitB:
			b.Buy = append(b.Buy, o)
		}
	}
	sortByPrice(b.Sell)
	sortByPrice(b.Buy)
	if depth > 0 {
		if len(b.Sell) > depth {
			b.Sell = b.Sell[:depth]
		}
		if len(b.Buy) > depth {
			b.Buy = b.Buy[:depth]
		}
	}
	return b
}

func sortByPrice(side []*dex.OrderState) {
	sort.SliceStable(side, func(i, j int) bool {
		return side[i].Price.Cmp(side[j].Price) < 0
	})
}

// side returns the book side a taker paying inUnit consumes, and the
// unit received back.
func (b *Book) side(inUnit string) ([]*dex.OrderState, string, error) {
	switch inUnit {
	case b.UnitA:
		return b.Sell, b.UnitB, nil
	case b.UnitB:
		return b.Buy, b.UnitA, nil
	}
	return nil, "", fmt.Errorf("ob: unit %s not in pair %s/%s", inUnit, b.UnitA, b.UnitB)
}

// AmountOut returns the total output for spending amount of inUnit
// across the book, walking orders best-price-first. Intermediate sums
// stay rational; only the final total is floored.
func (b *Book) AmountOut(inUnit string, amount int64) (dex.Quote, error) {
	side, outUnit, err := b.side(inUnit)
	if err != nil {
		return dex.Quote{}, err
	}

	budget := new(big.Rat).SetInt64(amount)
	total := new(big.Rat)
	for _, o := range side {
		if budget.Sign() <= 0 {
			break
		}
		qty := new(big.Rat).SetInt64(o.InAmount)
		cost := new(big.Rat).Mul(qty, o.Price)
		if cost.Cmp(budget) > 0 {
			total.Add(total, new(big.Rat).Quo(budget, o.Price))
			budget.SetInt64(0)
		} else {
			total.Add(total, qty)
			budget.Sub(budget, cost)
		}
	}

	return dex.Quote{Amount: asset.Single(outUnit, ratFloor(total))}, nil
}

// AmountIn returns the payment needed to take amount of outUnit off the
// book. The walk mirrors AmountOut; the final total is rounded up so the
// quoted payment is never short.
func (b *Book) AmountIn(outUnit string, amount int64) (dex.Quote, error) {
	var side []*dex.OrderState
	var inUnit string
	switch outUnit {
	case b.UnitB:
		side, inUnit = b.Sell, b.UnitA
	case b.UnitA:
		side, inUnit = b.Buy, b.UnitB
	default:
		return dex.Quote{}, fmt.Errorf("ob: unit %s not in pair %s/%s", outUnit, b.UnitA, b.UnitB)
	}

	want := amount
	total := new(big.Rat)
	for _, o := range side {
		if want <= 0 {
			break
		}
		take := o.InAmount
		if take > want {
			take = want
		}
		cost := new(big.Rat).SetInt64(take)
		cost.Mul(cost, o.Price)
		total.Add(total, cost)
		want -= take
	}

	return dex.Quote{Amount: asset.Single(inUnit, ratCeil(total))}, nil
}

// Take matches a demand for want units of outUnit against the book,
// best price first. Each consumed order yields one Fill priced by the
// protocol's own fee and rounding rules. The leftover demand the book
// could not cover is returned alongside the fills.
func (b *Book) Take(outUnit string, want int64) ([]Fill, int64, error) {
	var side []*dex.OrderState
	switch outUnit {
	case b.UnitB:
		side = b.Sell
	case b.UnitA:
		side = b.Buy
	default:
		return nil, want, fmt.Errorf("ob: unit %s not in pair %s/%s", outUnit, b.UnitA, b.UnitB)
	}

	var fills []Fill
	for _, o := range side {
		if want <= 0 {
			break
		}
		take := o.InAmount
		if take > want {
			take = want
		}
		pay, err := b.proto.TakerIn(o, take)
		if err != nil {
			return nil, want, err
		}
		fills = append(fills, Fill{
			Order:     o,
			Pay:       pay,
			Take:      take,
			Remaining: o.InAmount - take,
			Complete:  take == o.InAmount,
		})
		want -= take
	}
	return fills, want, nil
}

// Spend routes a payment of pay units of inUnit through the book,
// letting each order's protocol decide how much of the remaining budget
// it absorbs. Loose change too small to buy a single unit at the next
// order's price is returned unspent.
func (b *Book) Spend(inUnit string, pay int64) ([]Fill, int64, error) {
	side, _, err := b.side(inUnit)
	if err != nil {
		return nil, pay, err
	}

	var fills []Fill
	for _, o := range side {
		if pay <= 0 {
			break
		}
		out, err := b.proto.TakerOut(o, pay)
		if err != nil {
			return nil, pay, err
		}
		if out <= 0 {
			break
		}
		cost, err := b.proto.TakerIn(o, out)
		if err != nil {
			return nil, pay, err
		}
		if cost > pay {
			break
		}
		fills = append(fills, Fill{
			Order:     o,
			Pay:       cost,
			Take:      out,
			Remaining: o.InAmount - out,
			Complete:  out == o.InAmount,
		})
		pay -= cost
	}
	return fills, pay, nil
}

// MidPrice returns the pair's mid price as (price of B in A, price of A
// in B), averaging the best entries of the two sides. Both values are
// nil when either side is empty.
func (b *Book) MidPrice() (*big.Rat, *big.Rat) {
	if len(b.Sell) == 0 || len(b.Buy) == 0 {
		return nil, nil
	}
	sell := b.Sell[0].Price
	buy := b.Buy[0].Price

	invSell := new(big.Rat).Inv(sell)
	invBuy := new(big.Rat).Inv(buy)
	half := big.NewRat(1, 2)

	bInA := new(big.Rat).Add(sell, invBuy)
	bInA.Mul(bInA, half)
	aInB := new(big.Rat).Add(buy, invSell)
	aInB.Mul(aInB, half)
	return bInA, aInB
}

func ratFloor(r *big.Rat) int64 {
	q := new(big.Int).Quo(r.Num(), r.Denom())
	if r.Sign() < 0 && new(big.Int).Mul(q, r.Denom()).Cmp(r.Num()) != 0 {
		q.Sub(q, big.NewInt(1))
	}
	return q.Int64()
}

func ratCeil(r *big.Rat) int64 {
	q := new(big.Int).Quo(r.Num(), r.Denom())
	if r.Sign() > 0 && new(big.Int).Mul(q, r.Denom()).Cmp(r.Num()) != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Int64()
}
