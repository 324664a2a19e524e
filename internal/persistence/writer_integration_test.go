package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"DexLedger/internal/observability"
	"DexLedger/internal/testutil"
)

func TestWritePoolBatchIdempotent(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	log := observability.NewLoggerWithLevel("test", zerolog.Disabled)
	if err := NewMigrator(db, "../../migrations", log).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	w := NewHistoryWriter(db)
	rows := []PoolRow{
		{UTxO: "aa#0", Protocol: "CSWAP", UnitA: "lovelace", UnitB: "tok", ReserveA: 10, ReserveB: 20, ObservedAt: time.Now()},
		{UTxO: "bb#0", Protocol: "CSWAP", UnitA: "lovelace", UnitB: "tok", ReserveA: 30, ReserveB: 40, ObservedAt: time.Now()},
	}

	for i := 0; i < 2; i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if err := w.WritePoolBatch(ctx, tx, rows); err != nil {
			t.Fatalf("write batch: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dexledger.pool_snapshots`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("rows = %d, want 2 (replay must hit the primary key)", count)
	}
}

func TestWriteOrderBatchEvents(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	log := observability.NewLoggerWithLevel("test", zerolog.Disabled)
	if err := NewMigrator(db, "../../migrations", log).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	w := NewHistoryWriter(db)
	rows := []OrderRow{
		{UTxO: "cc#0", Event: "created", Protocol: "GeniusYield", InUnit: "tok", InAmount: 5, OutUnit: "lovelace", ObservedAt: time.Now()},
		{UTxO: "cc#0", Event: "removed", Protocol: "GeniusYield", InUnit: "tok", InAmount: 5, OutUnit: "lovelace", ObservedAt: time.Now()},
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := w.WriteOrderBatch(ctx, tx, rows); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dexledger.order_events WHERE utxo = 'cc#0'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("events = %d, want created and removed", count)
	}
}
