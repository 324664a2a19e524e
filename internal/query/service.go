// Package query serves read-only views over the classified state store:
// pools, open orders, aggregated books and trade quotes.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"DexLedger/internal/asset"
	"DexLedger/internal/backend"
	"DexLedger/internal/dex"
	"DexLedger/internal/dex/effect"
	"DexLedger/internal/dex/ob"
	"DexLedger/internal/observability"
	"DexLedger/internal/state"
)

var (
	ErrUnknownProtocol = errors.New("query: unknown protocol")
	ErrNoLiquidity     = errors.New("query: no liquidity for pair")
)

type Service struct {
	store    *state.Store
	registry *dex.Registry
	chain    backend.Backend
	metrics  *observability.Metrics
	log      zerolog.Logger
}

func NewService(store *state.Store, reg *dex.Registry, chain backend.Backend, m *observability.Metrics, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		registry: reg,
		chain:    chain,
		metrics:  m,
		log:      log.With().Str("component", "query").Logger(),
	}
}

// Tip returns the backend's most recent block.
func (s *Service) Tip(ctx context.Context) (*ChainTip, error) {
	blocks, err := s.chain.LastBlocks(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("query tip: %w", err)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("query tip: no blocks")
	}
	b := blocks[0]
	return &ChainTip{
		BlockNo: b.BlockNo,
		SlotNo:  b.SlotNo,
		TxCount: b.TxCount,
		Time:    b.Time,
	}, nil
}

// Pools lists tracked pools, optionally filtered by protocol.
func (s *Service) Pools(protocol string) []PoolResponse {
	var out []PoolResponse
	for _, p := range s.store.Pools() {
		if protocol != "" && p.Protocol != protocol {
			continue
		}
		out = append(out, poolResponse(p))
	}
	return out
}

// Orders lists open orders, optionally filtered by protocol.
func (s *Service) Orders(protocol string) []OrderResponse {
	var out []OrderResponse
	for _, o := range s.store.Orders(protocol) {
		out = append(out, orderResponse(o))
	}
	return out
}

// Book aggregates one protocol's open orders for a pair.
func (s *Service) Book(protocol, unitA, unitB string) (*BookResponse, error) {
	proto, ok := s.registry.OrderProtocol(protocol)
	if !ok {
		return nil, ErrUnknownProtocol
	}
	orders := s.store.OrdersByPair(protocol, unitA, unitB)
	book := ob.NewBook(proto, unitA, unitB, orders, ob.DefaultDepth)

	resp := &BookResponse{
		Protocol: protocol,
		UnitA:    unitA,
		UnitB:    unitB,
		Sell:     levels(book.Sell),
		Buy:      levels(book.Buy),
	}
	if bInA, aInB := book.MidPrice(); bInA != nil {
		resp.MidBInA = bInA.RatString()
		resp.MidAInB = aInB.RatString()
	}
	return resp, nil
}

// QuoteOut prices spending amount of inUnit for outUnit on one protocol,
// against its best pool or across its order book.
func (s *Service) QuoteOut(protocol, inUnit, outUnit string, amount int64) (*QuoteResponse, error) {
	s.metrics.QuoteRequests.WithLabelValues(protocol, "out").Inc()

	if amm, ok := s.registry.AMM(protocol); ok {
		pool, quote, err := s.bestPoolOut(amm, protocol, inUnit, outUnit, amount)
		if err != nil {
			s.countQuoteError(protocol, err)
			return nil, err
		}
		resp := &QuoteResponse{
			Protocol:  protocol,
			UTxO:      pool.ID(),
			InUnit:    inUnit,
			InAmount:  amount,
			OutUnit:   outUnit,
			OutAmount: quote.Amount.QuantityOf(outUnit),
			Slippage:  quote.Slippage,
		}
		resp.BatcherFee, resp.Deposit = amm.BatcherFee(adaLeg(inUnit, amount, outUnit, resp.OutAmount), nil)
		s.projectSwap(resp, pool, inUnit, amount, quote)
		return resp, nil
	}

	if proto, ok := s.registry.OrderProtocol(protocol); ok {
		book := ob.NewBook(proto, inUnit, outUnit, s.store.OrdersByPair(protocol, inUnit, outUnit), ob.DefaultDepth)
		quote, err := book.AmountOut(inUnit, amount)
		if err != nil {
			s.countQuoteError(protocol, err)
			return nil, err
		}
		return &QuoteResponse{
			Protocol:  protocol,
			InUnit:    inUnit,
			InAmount:  amount,
			OutUnit:   outUnit,
			OutAmount: quote.Amount.QuantityOf(outUnit),
		}, nil
	}

	s.countQuoteError(protocol, ErrUnknownProtocol)
	return nil, ErrUnknownProtocol
}

// QuoteIn prices receiving amount of outUnit, reporting the input needed.
func (s *Service) QuoteIn(protocol, inUnit, outUnit string, amount int64) (*QuoteResponse, error) {
	s.metrics.QuoteRequests.WithLabelValues(protocol, "in").Inc()

	if amm, ok := s.registry.AMM(protocol); ok {
		pool, quote, err := s.bestPoolIn(amm, protocol, inUnit, outUnit, amount)
		if err != nil {
			s.countQuoteError(protocol, err)
			return nil, err
		}
		resp := &QuoteResponse{
			Protocol:  protocol,
			UTxO:      pool.ID(),
			InUnit:    inUnit,
			InAmount:  quote.Amount.QuantityOf(inUnit),
			OutUnit:   outUnit,
			OutAmount: amount,
			Slippage:  quote.Slippage,
		}
		resp.BatcherFee, resp.Deposit = amm.BatcherFee(adaLeg(inUnit, resp.InAmount, outUnit, amount), nil)
		s.projectSwap(resp, pool, inUnit, resp.InAmount, dex.Quote{Amount: asset.Single(outUnit, amount)})
		return resp, nil
	}

	if proto, ok := s.registry.OrderProtocol(protocol); ok {
		book := ob.NewBook(proto, inUnit, outUnit, s.store.OrdersByPair(protocol, inUnit, outUnit), ob.DefaultDepth)
		quote, err := book.AmountIn(outUnit, amount)
		if err != nil {
			s.countQuoteError(protocol, err)
			return nil, err
		}
		return &QuoteResponse{
			Protocol:  protocol,
			InUnit:    inUnit,
			InAmount:  quote.Amount.QuantityOf(inUnit),
			OutUnit:   outUnit,
			OutAmount: amount,
		}, nil
	}

	s.countQuoteError(protocol, ErrUnknownProtocol)
	return nil, ErrUnknownProtocol
}

// bestPoolOut quotes every active pool for the pair and keeps the one
// paying the most output.
func (s *Service) bestPoolOut(amm dex.AMM, protocol, inUnit, outUnit string, amount int64) (*dex.PoolState, dex.Quote, error) {
	var (
		best      *dex.PoolState
		bestQuote dex.Quote
	)
	for _, p := range s.store.PoolsByPair(inUnit, outUnit) {
		if p.Protocol != protocol || !p.Active {
			continue
		}
		quote, err := amm.AmountOut(p, inUnit, amount)
		if err != nil {
			s.log.Debug().Str("pool", p.ID()).Err(err).Msg("pool quote failed")
			continue
		}
		if best == nil || quote.Amount.QuantityOf(outUnit) > bestQuote.Amount.QuantityOf(outUnit) {
			best, bestQuote = p, quote
		}
	}
	if best == nil {
		return nil, dex.Quote{}, ErrNoLiquidity
	}
	return best, bestQuote, nil
}

// bestPoolIn mirrors bestPoolOut, keeping the pool needing the least input.
func (s *Service) bestPoolIn(amm dex.AMM, protocol, inUnit, outUnit string, amount int64) (*dex.PoolState, dex.Quote, error) {
	var (
		best      *dex.PoolState
		bestQuote dex.Quote
	)
	for _, p := range s.store.PoolsByPair(inUnit, outUnit) {
		if p.Protocol != protocol || !p.Active {
			continue
		}
		quote, err := amm.AmountIn(p, outUnit, amount)
		if err != nil {
			s.log.Debug().Str("pool", p.ID()).Err(err).Msg("pool quote failed")
			continue
		}
		if best == nil || quote.Amount.QuantityOf(inUnit) < bestQuote.Amount.QuantityOf(inUnit) {
			best, bestQuote = p, quote
		}
	}
	if best == nil {
		return nil, dex.Quote{}, ErrNoLiquidity
	}
	return best, bestQuote, nil
}

// projectSwap attaches the post-trade reserves to an AMM quote. A
// projection failure leaves the quote itself standing.
func (s *Service) projectSwap(resp *QuoteResponse, pool *dex.PoolState, inUnit string, amountIn int64, quote dex.Quote) {
	next, _, err := effect.ApplySwap(pool, inUnit, amountIn, quote)
	if err != nil {
		s.log.Debug().Str("pool", pool.ID()).Err(err).Msg("swap projection failed")
		return
	}
	resp.NextReserveA = next.ReserveA()
	resp.NextReserveB = next.ReserveB()
}

func (s *Service) countQuoteError(protocol string, err error) {
	reason := "quote_failed"
	switch {
	case errors.Is(err, ErrNoLiquidity):
		reason = "no_liquidity"
	case errors.Is(err, ErrUnknownProtocol):
		reason = "unknown_protocol"
	}
	s.metrics.QuoteErrors.WithLabelValues(protocol, reason).Inc()
}

// adaLeg returns the lovelace quantity on whichever trade leg carries it,
// zero for token-to-token trades.
func adaLeg(inUnit string, inAmount int64, outUnit string, outAmount int64) int64 {
	if inUnit == asset.Lovelace {
		return inAmount
	}
	if outUnit == asset.Lovelace {
		return outAmount
	}
	return 0
}

func poolResponse(p *dex.PoolState) PoolResponse {
	return PoolResponse{
		Protocol: p.Protocol,
		UTxO:     p.ID(),
		UnitA:    p.UnitA,
		UnitB:    p.UnitB,
		ReserveA: p.ReserveA(),
		ReserveB: p.ReserveB(),
		FeeBasis: p.Fees.Basis,
		FeeNumA:  p.Fees.NumA,
		FeeNumB:  p.Fees.NumB,
		Active:   p.Active,
	}
}

func orderResponse(o *dex.OrderState) OrderResponse {
	resp := OrderResponse{
		Protocol:  o.Protocol,
		UTxO:      o.ID(),
		Kind:      o.Kind.String(),
		InUnit:    o.InUnit,
		InAmount:  o.InAmount,
		OutUnit:   o.OutUnit,
		StartTime: o.StartTime,
		EndTime:   o.EndTime,
		Active:    o.Active,
	}
	if o.Price != nil {
		resp.Price = o.Price.RatString()
	}
	return resp
}

func levels(side []*dex.OrderState) []BookLevel {
	out := make([]BookLevel, 0, len(side))
	for _, o := range side {
		out = append(out, BookLevel{
			UTxO:   o.ID(),
			Price:  o.Price.RatString(),
			Amount: o.InAmount,
		})
	}
	return out
}
