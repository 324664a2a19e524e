// Package dbsync reads ledger state out of a Cardano db-sync Postgres
// schema. Queries match script outputs by payment credential and hand
// back raw records for classification.
package dbsync

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"DexLedger/internal/asset"
	"DexLedger/internal/backend"
	"DexLedger/internal/dex"
)

const defaultLimit = 1000

// Store implements backend.Backend against db-sync.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

func New(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "dbsync").Logger()}
}

// recordColumns is the projection shared by the UTXO queries. Assets
// come back as one jsonb object of unit to quantity, lovelace included.
const recordColumns = `
SELECT txo.address,
	ENCODE(tx.hash, 'hex') AS tx_hash,
	txo.index AS tx_index,
	ENCODE(datum.bytes, 'hex') AS datum_cbor,
	(SELECT COALESCE(
		jsonb_object_agg(CONCAT(ENCODE(ma.policy, 'hex'), ENCODE(ma.name, 'hex')), mto.quantity::TEXT),
		'{}'::jsonb)
	 FROM ma_tx_out mto
	 JOIN multi_asset ma ON mto.ident = ma.id
	 WHERE mto.tx_out_id = txo.id
	) || jsonb_build_object('lovelace', txo.value::TEXT) AS assets
FROM (
	SELECT tx_out.*, address.address, address.payment_cred
	FROM tx_out
	LEFT JOIN address ON tx_out.address_id = address.id
	WHERE address.payment_cred = ANY($1)
) AS txo
LEFT JOIN tx ON txo.tx_id = tx.id
LEFT JOIN datum ON txo.data_hash = datum.hash
LEFT JOIN block ON tx.block_id = block.id
WHERE datum.hash IS NOT NULL`

func (s *Store) PoolUTxOs(ctx context.Context, q backend.UTxOQuery) ([]dex.Record, error) {
	query, args, err := buildRecordQuery(q, "")
	if err != nil {
		return nil, err
	}
	return s.records(ctx, query, args)
}

func (s *Store) PoolInTx(ctx context.Context, txHash string, q backend.UTxOQuery) ([]dex.Record, error) {
	q.Historical = true
	query, args, err := buildRecordQuery(q, txHash)
	if err != nil {
		return nil, err
	}
	return s.records(ctx, query, args)
}

// buildRecordQuery assembles the UTXO query with its positional
// arguments. txHash, when set, pins the result to one transaction.
func buildRecordQuery(q backend.UTxOQuery, txHash string) (string, []any, error) {
	creds, err := paymentCreds(q.Addresses)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString(recordColumns)
	args := []any{pq.ByteaArray(creds)}

	if txHash != "" {
		args = append(args, txHash)
		fmt.Fprintf(&sb, "\nAND tx.hash = DECODE($%d, 'hex')", len(args))
	}
	if !q.Historical {
		sb.WriteString("\nAND txo.consumed_by_tx_id IS NULL")
	}
	if len(q.Assets) > 0 {
		policies, names, err := splitUnits(q.Assets)
		if err != nil {
			return "", nil, err
		}
		args = append(args, pq.ByteaArray(policies), pq.ByteaArray(names))
		fmt.Fprintf(&sb, `
AND EXISTS (
	SELECT 1 FROM ma_tx_out mtxo
	JOIN multi_asset ma ON ma.id = mtxo.ident
	WHERE mtxo.tx_out_id = txo.id
	AND ma.policy = ANY($%d) AND ma.name = ANY($%d)
)`, len(args)-1, len(args))
	}

	if txHash == "" {
		limit := q.Limit
		if limit <= 0 {
			limit = defaultLimit
		}
		args = append(args, limit, q.Page*limit)
		fmt.Fprintf(&sb, "\nLIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return sb.String(), args, nil
}

func (s *Store) records(ctx context.Context, query string, args []any) ([]dex.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dbsync: query utxos: %w", err)
	}
	defer rows.Close()

	var out []dex.Record
	for rows.Next() {
		var (
			rec       dex.Record
			datumHex  sql.NullString
			assetJSON []byte
		)
		if err := rows.Scan(&rec.Address, &rec.TxHash, &rec.TxIndex, &datumHex, &assetJSON); err != nil {
			return nil, fmt.Errorf("dbsync: scan utxo: %w", err)
		}
		if datumHex.Valid {
			if rec.DatumCBOR, err = hex.DecodeString(datumHex.String); err != nil {
				s.log.Warn().Str("tx", rec.TxHash).Err(err).Msg("skipping utxo with undecodable datum")
				continue
			}
		}
		if rec.Assets, err = assetsFromJSON(assetJSON); err != nil {
			return nil, fmt.Errorf("dbsync: parse assets for %s: %w", rec.TxHash, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ScriptFromAddress(ctx context.Context, address string) (*backend.ScriptRef, error) {
	cred, err := paymentCred(address)
	if err != nil {
		return nil, err
	}
	const query = `
SELECT ENCODE(tx.hash, 'hex') AS tx_hash,
	tx_out.index AS tx_index,
	address.address,
	COALESCE(ENCODE(datum.hash, 'hex'), '') AS datum_hash,
	COALESCE(ENCODE(datum.bytes, 'hex'), '') AS datum_cbor,
	COALESCE(ENCODE(s.bytes, 'hex'), '') AS script
FROM script s
LEFT JOIN tx_out ON s.id = tx_out.reference_script_id
LEFT JOIN address ON tx_out.address_id = address.id
LEFT JOIN tx ON tx.id = tx_out.tx_id
LEFT JOIN datum ON tx_out.inline_datum_id = datum.id
LEFT JOIN block ON block.id = tx.block_id
WHERE s.hash = $1 AND tx_out.consumed_by_tx_id IS NULL
ORDER BY block.time DESC
LIMIT 1`
	return s.scriptRef(ctx, query, cred)
}

func (s *Store) DatumFromAddress(ctx context.Context, address string, unit string) (*backend.ScriptRef, error) {
	cred, err := paymentCred(address)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.WriteString(`
SELECT ENCODE(tx.hash, 'hex') AS tx_hash,
	tx_out.index AS tx_index,
	address.address,
	COALESCE(ENCODE(datum.hash, 'hex'), '') AS datum_hash,
	COALESCE(ENCODE(datum.bytes, 'hex'), '') AS datum_cbor,
	COALESCE(ENCODE(s.bytes, 'hex'), '') AS script
FROM tx_out
LEFT JOIN address ON tx_out.address_id = address.id
LEFT JOIN tx ON tx.id = tx_out.tx_id
LEFT JOIN datum ON tx_out.inline_datum_id = datum.id
LEFT JOIN block ON block.id = tx.block_id
LEFT JOIN script s ON s.id = tx_out.reference_script_id
WHERE address.payment_cred = $1 AND tx_out.consumed_by_tx_id IS NULL`)
	args := []any{cred}

	if unit != "" && unit != asset.Lovelace {
		policy, err := hex.DecodeString(asset.PolicyID(unit))
		if err != nil {
			return nil, fmt.Errorf("dbsync: unit %s: %w", unit, err)
		}
		name, err := hex.DecodeString(asset.Name(unit))
		if err != nil {
			return nil, fmt.Errorf("dbsync: unit %s: %w", unit, err)
		}
		args = append(args, policy, name)
		fmt.Fprintf(&sb, `
AND EXISTS (
	SELECT 1 FROM ma_tx_out mtxo
	JOIN multi_asset ma ON ma.id = mtxo.ident
	WHERE mtxo.tx_out_id = tx_out.id AND ma.policy = $%d AND ma.name = $%d
)`, len(args)-1, len(args))
	}

	sb.WriteString(`
AND tx_out.inline_datum_id IS NOT NULL
ORDER BY block.time DESC
LIMIT 1`)
	return s.scriptRef(ctx, sb.String(), args...)
}

func (s *Store) scriptRef(ctx context.Context, query string, args ...any) (*backend.ScriptRef, error) {
	var (
		ref                 backend.ScriptRef
		datumHex, scriptHex string
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&ref.TxHash, &ref.TxIndex, &ref.Address, &ref.DatumHash, &datumHex, &scriptHex,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dbsync: query reference: %w", err)
	}
	if datumHex != "" {
		if ref.DatumCBOR, err = hex.DecodeString(datumHex); err != nil {
			return nil, fmt.Errorf("dbsync: reference datum: %w", err)
		}
	}
	if scriptHex != "" {
		if ref.Script, err = hex.DecodeString(scriptHex); err != nil {
			return nil, fmt.Errorf("dbsync: reference script: %w", err)
		}
	}
	return &ref, nil
}

func (s *Store) LastBlocks(ctx context.Context, n int) ([]backend.Block, error) {
	const query = `
SELECT epoch_slot_no, block_no, tx_count,
	EXTRACT(epoch FROM block.time)::INTEGER AS block_time
FROM block
WHERE block_no IS NOT NULL
ORDER BY block_no DESC
LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("dbsync: query blocks: %w", err)
	}
	defer rows.Close()

	var out []backend.Block
	for rows.Next() {
		var b backend.Block
		if err := rows.Scan(&b.SlotNo, &b.BlockNo, &b.TxCount, &b.Time); err != nil {
			return nil, fmt.Errorf("dbsync: scan block: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// assetsFromJSON turns the aggregated jsonb object into a Bag. db-sync
// stores quantities as numeric, projected to text to survive int64.
func assetsFromJSON(raw []byte) (asset.Bag, error) {
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return asset.Bag{}, err
	}
	out := make(map[string]int64, len(m))
	for unit, qty := range m {
		n, err := strconv.ParseInt(qty, 10, 64)
		if err != nil {
			return asset.Bag{}, fmt.Errorf("quantity %q for %s: %w", qty, unit, err)
		}
		out[unit] = n
	}
	return asset.FromMap(out), nil
}

func paymentCreds(addresses []string) ([][]byte, error) {
	out := make([][]byte, 0, len(addresses))
	for _, a := range addresses {
		cred, err := paymentCred(a)
		if err != nil {
			return nil, err
		}
		out = append(out, cred)
	}
	return out, nil
}

func splitUnits(units []string) (policies, names [][]byte, err error) {
	for _, u := range units {
		policy, err := hex.DecodeString(asset.PolicyID(u))
		if err != nil {
			return nil, nil, fmt.Errorf("dbsync: unit %s: %w", u, err)
		}
		name, err := hex.DecodeString(asset.Name(u))
		if err != nil {
			return nil, nil, fmt.Errorf("dbsync: unit %s: %w", u, err)
		}
		policies = append(policies, policy)
		names = append(names, name)
	}
	return policies, names, nil
}
