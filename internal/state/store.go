// Package state keeps the latest classified view of the chain in memory:
// one PoolState per pool identity and one OrderState per open order UTXO.
// Ingestion writes, the query API reads.
package state

import (
	"sort"
	"sync"

	"DexLedger/internal/dex"
)

type Store struct {
	mu sync.RWMutex

	// Pools are keyed by their identity NFT unit so a new UTXO for the
	// same pool replaces the spent one. Orders are keyed by UTXO ref.
	pools  map[string]*dex.PoolState
	orders map[string]*dex.OrderState
}

func NewStore() *Store {
	return &Store{
		pools:  make(map[string]*dex.PoolState),
		orders: make(map[string]*dex.OrderState),
	}
}

// PutPool installs or replaces the pool identified by its pool NFT.
// Pools without an identity token fall back to the UTXO ref as key.
func (s *Store) PutPool(p *dex.PoolState) {
	key := p.PoolNFT.Unit()
	if key == "" {
		key = p.ID()
	}
	s.mu.Lock()
	s.pools[key] = p
	s.mu.Unlock()
}

// Pool returns the pool with the given identity NFT unit.
func (s *Store) Pool(nftUnit string) (*dex.PoolState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[nftUnit]
	return p, ok
}

// Pools returns all known pools, ordered by identity for stable output.
func (s *Store) Pools() []*dex.PoolState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.pools))
	for k := range s.pools {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*dex.PoolState, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.pools[k])
	}
	return out
}

// PoolsByPair returns every pool trading the pair, in either orientation.
func (s *Store) PoolsByPair(unitX, unitY string) []*dex.PoolState {
	var out []*dex.PoolState
	for _, p := range s.Pools() {
		if (p.UnitA == unitX && p.UnitB == unitY) || (p.UnitA == unitY && p.UnitB == unitX) {
			out = append(out, p)
		}
	}
	return out
}

// PutOrder installs or replaces the order at its UTXO ref.
func (s *Store) PutOrder(o *dex.OrderState) {
	s.mu.Lock()
	s.orders[o.ID()] = o
	s.mu.Unlock()
}

// RemoveOrder drops a spent order. Removing an unknown ref is a no-op.
func (s *Store) RemoveOrder(utxoRef string) {
	s.mu.Lock()
	delete(s.orders, utxoRef)
	s.mu.Unlock()
}

// Order returns the order at the given UTXO ref.
func (s *Store) Order(utxoRef string) (*dex.OrderState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[utxoRef]
	return o, ok
}

// Orders returns open orders for one protocol, ordered by UTXO ref.
// An empty protocol matches everything.
func (s *Store) Orders(protocol string) []*dex.OrderState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.orders))
	for k, o := range s.orders {
		if protocol == "" || o.Protocol == protocol {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]*dex.OrderState, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.orders[k])
	}
	return out
}

// OrdersByPair returns one protocol's open orders trading the pair, in
// either orientation.
func (s *Store) OrdersByPair(protocol, unitX, unitY string) []*dex.OrderState {
	var out []*dex.OrderState
	for _, o := range s.Orders(protocol) {
		if (o.InUnit == unitX && o.OutUnit == unitY) || (o.InUnit == unitY && o.OutUnit == unitX) {
			out = append(out, o)
		}
	}
	return out
}

// Counts reports the number of tracked pools and orders.
func (s *Store) Counts() (pools, orders int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pools), len(s.orders)
}
