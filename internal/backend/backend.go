// Package backend defines the ledger data source the engine classifies
// from: current and historical script UTXOs, reference scripts and
// inline datums, resolved against a Cardano db-sync database or any
// equivalent index.
package backend

import (
	"context"

	"DexLedger/internal/dex"
)

// UTxOQuery narrows a script UTXO lookup. Addresses are bech32 payment
// addresses whose payment credential is matched; Assets optionally
// restricts to outputs holding one of the listed units. Historical
// includes spent outputs. Limit/Page window the result set.
type UTxOQuery struct {
	Addresses  []string
	Assets     []string
	Historical bool
	Limit      int
	Page       int
}

// Block is one chain tip entry.
type Block struct {
	SlotNo  int64
	BlockNo int64
	TxCount int64
	Time    int64
}

// ScriptRef points at a reference script or inline-datum UTXO.
type ScriptRef struct {
	TxHash    string
	TxIndex   int
	Address   string
	DatumHash string
	DatumCBOR []byte
	Script    []byte
}

// Backend is the read side against the ledger index. Implementations
// must be safe for concurrent use.
type Backend interface {
	// PoolUTxOs returns script UTXOs carrying a datum, newest window
	// first per the query paging.
	PoolUTxOs(ctx context.Context, q UTxOQuery) ([]dex.Record, error)

	// PoolInTx returns the matching script outputs created by one
	// transaction.
	PoolInTx(ctx context.Context, txHash string, q UTxOQuery) ([]dex.Record, error)

	// ScriptFromAddress resolves the newest unspent reference-script
	// output whose script hash matches the address's payment part.
	ScriptFromAddress(ctx context.Context, address string) (*ScriptRef, error)

	// DatumFromAddress resolves the newest unspent inline-datum output
	// at the address, optionally restricted to outputs holding unit.
	DatumFromAddress(ctx context.Context, address string, unit string) (*ScriptRef, error)

	// LastBlocks returns the n most recent blocks, newest first.
	LastBlocks(ctx context.Context, n int) ([]Block, error)
}
