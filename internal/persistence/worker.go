package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"DexLedger/internal/ingestion"
	"DexLedger/internal/observability"
)

// HistoryWorker drains classified state updates and batch-writes them to
// Postgres. Flushes happen when the batch fills or the flush timeout
// expires; failed flushes retry with exponential backoff and are never
// dropped.
type HistoryWorker struct {
	writer       *HistoryWriter
	in           <-chan ingestion.StateUpdate
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewHistoryWorker(
	db *sql.DB,
	in <-chan ingestion.StateUpdate,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *HistoryWorker {
	return &HistoryWorker{
		writer:       NewHistoryWriter(db),
		in:           in,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          log.With().Str("component", "history").Logger(),
	}
}

// Run blocks until ctx is cancelled or the input channel closes, flushing
// any remainder on the way out.
func (hw *HistoryWorker) Run(ctx context.Context) error {
	pools := make([]PoolRow, 0, hw.batchSize)
	orders := make([]OrderRow, 0, hw.batchSize)

	timer := time.NewTimer(hw.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := hw.flush(context.Background(), pools, orders); err != nil {
				hw.log.Error().Err(err).Msg("final flush failed")
			}
			return ctx.Err()

		case u, ok := <-hw.in:
			if !ok {
				if err := hw.flush(context.Background(), pools, orders); err != nil {
					hw.log.Error().Err(err).Msg("final flush failed")
				}
				return nil
			}

			pools, orders = appendUpdate(pools, orders, u)
			if len(pools)+len(orders) >= hw.batchSize {
				hw.flushWithRetry(ctx, pools, orders)
				pools, orders = pools[:0], orders[:0]
				timer.Reset(hw.flushTimeout)
			}

		case <-timer.C:
			if len(pools)+len(orders) > 0 {
				hw.flushWithRetry(ctx, pools, orders)
				pools, orders = pools[:0], orders[:0]
			}
			timer.Reset(hw.flushTimeout)
		}
	}
}

func appendUpdate(pools []PoolRow, orders []OrderRow, u ingestion.StateUpdate) ([]PoolRow, []OrderRow) {
	switch u.Kind {
	case "pool":
		return append(pools, PoolRow{
			UTxO:       u.UTxO,
			Protocol:   u.Protocol,
			UnitA:      u.UnitA,
			UnitB:      u.UnitB,
			ReserveA:   u.ReserveA,
			ReserveB:   u.ReserveB,
			ObservedAt: u.Time,
		}), orders
	case "order", "order_removed":
		event := "created"
		if u.Kind == "order_removed" {
			event = "removed"
		}
		return pools, append(orders, OrderRow{
			UTxO:       u.UTxO,
			Event:      event,
			Protocol:   u.Protocol,
			InUnit:     u.InUnit,
			InAmount:   u.InAmount,
			OutUnit:    u.OutUnit,
			ObservedAt: u.Time,
		})
	}
	return pools, orders
}

func (hw *HistoryWorker) flushWithRetry(ctx context.Context, pools []PoolRow, orders []OrderRow) {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	err := backoff.RetryNotify(
		func() error { return hw.flush(ctx, pools, orders) },
		policy,
		func(err error, wait time.Duration) {
			hw.metrics.PersistErrors.WithLabelValues("retry").Inc()
			hw.log.Warn().Err(err).Dur("backoff", wait).Int("rows", len(pools)+len(orders)).Msg("flush retry")
		},
	)
	if err != nil {
		// Context cancelled mid-retry. One last attempt so a graceful
		// shutdown does not drop the batch.
		if ferr := hw.flush(context.Background(), pools, orders); ferr != nil {
			hw.log.Error().Err(ferr).Msg("batch lost on shutdown")
		}
	}
}

func (hw *HistoryWorker) flush(ctx context.Context, pools []PoolRow, orders []OrderRow) error {
	if len(pools)+len(orders) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := hw.writer.db.BeginTx(ctx, nil)
	if err != nil {
		hw.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		return err
	}
	defer tx.Rollback()

	if err := hw.writer.WritePoolBatch(ctx, tx, pools); err != nil {
		hw.metrics.PersistErrors.WithLabelValues("write_pools").Inc()
		return err
	}
	if err := hw.writer.WriteOrderBatch(ctx, tx, orders); err != nil {
		hw.metrics.PersistErrors.WithLabelValues("write_orders").Inc()
		return err
	}
	if err := tx.Commit(); err != nil {
		hw.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		return err
	}

	hw.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
	hw.metrics.PersistRows.WithLabelValues("pool_snapshots").Add(float64(len(pools)))
	hw.metrics.PersistRows.WithLabelValues("order_events").Add(float64(len(orders)))
	return nil
}
