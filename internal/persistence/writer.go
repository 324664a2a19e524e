// Package persistence records classified state history in the service's
// own Postgres schema, separate from the read-only db-sync database.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PoolRow is one row in dexledger.pool_snapshots.
type PoolRow struct {
	UTxO       string
	Protocol   string
	UnitA      string
	UnitB      string
	ReserveA   int64
	ReserveB   int64
	ObservedAt time.Time
}

// OrderRow is one row in dexledger.order_events. Event is "created" or
// "removed".
type OrderRow struct {
	UTxO       string
	Event      string
	Protocol   string
	InUnit     string
	InAmount   int64
	OutUnit    string
	ObservedAt time.Time
}

// HistoryWriter batch-writes state history using multi-row INSERT.
// Writes are idempotent: a replayed UTXO hits the primary key and is
// dropped on conflict.
type HistoryWriter struct {
	db *sql.DB
}

func NewHistoryWriter(db *sql.DB) *HistoryWriter {
	return &HistoryWriter{db: db}
}

// WritePoolBatch inserts pool snapshot rows inside tx.
func (w *HistoryWriter) WritePoolBatch(ctx context.Context, tx *sql.Tx, rows []PoolRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO dexledger.pool_snapshots
		(utxo, protocol, unit_a, unit_b, reserve_a, reserve_b, observed_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*7)

	for i, r := range rows {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			r.UTxO, r.Protocol, r.UnitA, r.UnitB,
			r.ReserveA, r.ReserveB, r.ObservedAt,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (utxo) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteOrderBatch inserts order lifecycle rows inside tx.
func (w *HistoryWriter) WriteOrderBatch(ctx context.Context, tx *sql.Tx, rows []OrderRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO dexledger.order_events
		(utxo, event, protocol, in_unit, in_amount, out_unit, observed_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*7)

	for i, r := range rows {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			r.UTxO, r.Event, r.Protocol, r.InUnit,
			r.InAmount, r.OutUnit, r.ObservedAt,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (utxo, event) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
