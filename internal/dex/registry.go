package dex

import (
	"fmt"
	"sort"

	"DexLedger/internal/asset"
	"DexLedger/internal/plutus"
)

// AMM is the capability set an automated-market-maker protocol implements:
// classify a raw record into a PoolState and quote trades against it.
type AMM interface {
	Name() string

	// PoolAddresses lists the script addresses holding this protocol's
	// pool UTXOs, used by the backend to scope queries.
	PoolAddresses() []string

	// OrderAddresses lists the script addresses collecting the
	// protocol's pending batcher orders.
	OrderAddresses() []string

	// ParseOrder decodes a batcher-order record placed at one of the
	// protocol's order addresses. now is a unix timestamp in seconds
	// used for expiry checks.
	ParseOrder(rec Record, now int64) (*OrderState, error)

	// ParsePool validates and decodes one record. Classification errors
	// (NotAPoolError, InvalidLPError, SchemaMismatchError,
	// MalformedAssetError, NoAssetsError) are per-record recoverable.
	ParsePool(rec Record) (*PoolState, error)

	// AmountOut quotes the exact output for selling amount of inUnit.
	AmountOut(p *PoolState, inUnit string, amount int64) (Quote, error)

	// AmountIn quotes the input needed to receive amount of outUnit,
	// rounded so the computed input is never insufficient on-chain.
	AmountIn(p *PoolState, outUnit string, amount int64) (Quote, error)

	// BatcherFee returns the operator fee and refundable deposit in
	// lovelace for an order. adaInOut is the combined lovelace quantity
	// across the order's input and output legs (zero for token pairs);
	// wallet carries the submitter's balances for fee-discount tokens.
	BatcherFee(adaInOut int64, wallet map[string]int64) (fee, deposit int64)

	// SwapOrder builds the order datum placing a swap of in against the
	// pool, paying min out to owner. deadline is a millisecond timestamp
	// for protocols that enforce an expiry; others ignore it.
	SwapOrder(p *PoolState, owner plutus.Address, in, out asset.Bag, deadline int64) (plutus.Data, error)
}

// OrderProtocol is the capability set a peer-to-peer order protocol
// implements: classify a raw record into an OrderState and quote fills
// against it from the taker's side.
type OrderProtocol interface {
	Name() string
	OrderAddresses() []string

	// ParseOrder classifies a raw record into an order. now is a unix
	// timestamp in seconds used for validity-window checks.
	ParseOrder(rec Record, now int64) (*OrderState, error)

	// TakerOut returns how much of the order's offered asset a taker
	// receives for paying pay units of the asked asset, protocol fee
	// and rounding applied. The result never exceeds the remaining
	// offered amount.
	TakerOut(o *OrderState, pay int64) (int64, error)

	// TakerIn returns the asked-asset cost, fee included, for taking
	// want units of the offered asset.
	TakerIn(o *OrderState, want int64) (int64, error)
}

// Registry holds the known protocol implementations keyed by name.
type Registry struct {
	amms   map[string]AMM
	orders map[string]OrderProtocol
}

func NewRegistry() *Registry {
	return &Registry{
		amms:   make(map[string]AMM),
		orders: make(map[string]OrderProtocol),
	}
}

// RegisterAMM adds an AMM protocol; duplicate names are a programmer error.
func (r *Registry) RegisterAMM(a AMM) {
	if _, ok := r.amms[a.Name()]; ok {
		panic(fmt.Sprintf("dex: amm %q registered twice", a.Name()))
	}
	r.amms[a.Name()] = a
}

// RegisterOrderProtocol adds an order-book protocol.
func (r *Registry) RegisterOrderProtocol(o OrderProtocol) {
	if _, ok := r.orders[o.Name()]; ok {
		panic(fmt.Sprintf("dex: order protocol %q registered twice", o.Name()))
	}
	r.orders[o.Name()] = o
}

// AMM looks up an AMM protocol by name.
func (r *Registry) AMM(name string) (AMM, bool) {
	a, ok := r.amms[name]
	return a, ok
}

// OrderProtocol looks up an order protocol by name.
func (r *Registry) OrderProtocol(name string) (OrderProtocol, bool) {
	o, ok := r.orders[name]
	return o, ok
}

// AMMNames returns the registered AMM names sorted for stable iteration.
func (r *Registry) AMMNames() []string {
	names := make([]string, 0, len(r.amms))
	for name := range r.amms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OrderProtocolNames returns the registered order-protocol names sorted.
func (r *Registry) OrderProtocolNames() []string {
	names := make([]string, 0, len(r.orders))
	for name := range r.orders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func utxoRef(txHash string, index int) string {
	return fmt.Sprintf("%s#%d", txHash, index)
}
