package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"DexLedger/internal/dex"
	"DexLedger/internal/observability"
	"DexLedger/internal/state"
)

// Classifier runs records from the subscriber through the protocol
// registry and installs the results in the state store. Records failing
// with a recoverable classification error are counted and dropped;
// unrelated UTXOs landing on shared script addresses are expected.
type Classifier struct {
	registry *dex.Registry
	store    *state.Store
	metrics  *observability.Metrics
	log      zerolog.Logger
	updates  chan<- StateUpdate
	seen     *SeenCache

	// now supplies the unix-seconds clock for order validity checks.
	now func() int64
}

// defaultSeenCapacity bounds the redelivery dedup cache. At mainnet DEX
// throughput this covers several hours of UTxO churn.
const defaultSeenCapacity = 1 << 16

func NewClassifier(reg *dex.Registry, store *state.Store, m *observability.Metrics, log zerolog.Logger) *Classifier {
	return &Classifier{
		registry: reg,
		store:    store,
		metrics:  m,
		log:      log.With().Str("component", "classifier").Logger(),
		seen:     NewSeenCache(defaultSeenCapacity),
		now:      func() int64 { return time.Now().Unix() },
	}
}

// WithUpdates attaches an outbound update channel. Sends never block;
// updates are dropped when the channel is full.
func (c *Classifier) WithUpdates(ch chan<- StateUpdate) *Classifier {
	c.updates = ch
	return c
}

// Run processes messages with the given parallelism until ctx is done or
// the input channel closes.
func (c *Classifier) Run(ctx context.Context, in <-chan RawMsg, workers int) error {
	if workers < 1 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case msg, ok := <-in:
					if !ok {
						return nil
					}
					c.Handle(msg)
				}
			}
		})
	}
	return g.Wait()
}

// Handle classifies one message. The message is always acked: records
// that cannot be classified now will not classify better on redelivery.
func (c *Classifier) Handle(msg RawMsg) {
	defer msg.Ack()
	c.metrics.RecordsConsumed.WithLabelValues(msg.Subject).Inc()

	if msg.Subject == SubjectSpent {
		c.handleSpent(msg)
		return
	}

	protocol := protocolFromSubject(msg.Subject)
	if protocol == "" {
		c.metrics.RecordsInvalid.WithLabelValues(msg.Subject).Inc()
		c.log.Warn().Str("subject", msg.Subject).Msg("unroutable subject")
		return
	}

	rec, err := ParseRecord(msg.Data)
	if err != nil {
		c.metrics.RecordsInvalid.WithLabelValues(msg.Subject).Inc()
		c.log.Warn().Str("subject", msg.Subject).Err(err).Msg("bad record payload")
		return
	}

	if c.seen.Seen("created:" + rec.ID()) {
		c.metrics.RecordsDeduped.WithLabelValues("created").Inc()
		return
	}

	start := time.Now()
	defer func() {
		c.metrics.ClassifyDuration.WithLabelValues(protocol).Observe(time.Since(start).Seconds())
	}()

	if amm, ok := c.registry.AMM(protocol); ok {
		if ammOrderAddress(amm, rec.Address) {
			order, err := amm.ParseOrder(rec, c.now())
			if err != nil {
				c.reject(protocol, rec, err)
				return
			}
			c.store.PutOrder(order)
			c.metrics.ClassifyOK.WithLabelValues(protocol, "order").Inc()
			c.refreshGauges()
			c.emit(orderUpdate(order))
			return
		}
		pool, err := amm.ParsePool(rec)
		if err != nil {
			c.reject(protocol, rec, err)
			return
		}
		c.store.PutPool(pool)
		c.metrics.ClassifyOK.WithLabelValues(protocol, "pool").Inc()
		c.refreshGauges()
		c.emit(poolUpdate(pool))
		return
	}

	if op, ok := c.registry.OrderProtocol(protocol); ok {
		order, err := op.ParseOrder(rec, c.now())
		if err != nil {
			c.reject(protocol, rec, err)
			return
		}
		c.store.PutOrder(order)
		c.metrics.ClassifyOK.WithLabelValues(protocol, "order").Inc()
		c.refreshGauges()
		c.emit(orderUpdate(order))
		return
	}

	c.metrics.RecordsInvalid.WithLabelValues(msg.Subject).Inc()
	c.log.Warn().Str("protocol", protocol).Msg("unknown protocol")
}

// ammOrderAddress reports whether addr is one of the AMM's batcher-order
// addresses and not also a pool address: some protocols run pools and
// orders from the same script, and those records classify as pools.
func ammOrderAddress(amm dex.AMM, addr string) bool {
	for _, a := range amm.PoolAddresses() {
		if a == addr {
			return false
		}
	}
	for _, a := range amm.OrderAddresses() {
		if a == addr {
			return true
		}
	}
	return false
}

func (c *Classifier) handleSpent(msg RawMsg) {
	ref, err := ParseSpent(msg.Data)
	if err != nil {
		c.metrics.RecordsInvalid.WithLabelValues(msg.Subject).Inc()
		c.log.Warn().Err(err).Msg("bad spent payload")
		return
	}
	if c.seen.Seen("spent:" + ref) {
		c.metrics.RecordsDeduped.WithLabelValues("spent").Inc()
		return
	}
	if order, ok := c.store.Order(ref); ok {
		c.store.RemoveOrder(ref)
		c.metrics.OrdersRemoved.Inc()
		c.refreshGauges()
		c.emit(removedUpdate(order))
	}
}

func (c *Classifier) reject(protocol string, rec dex.Record, err error) {
	if dex.Recoverable(err) {
		c.metrics.ClassifySkipped.WithLabelValues(protocol, skipReason(err)).Inc()
		c.log.Debug().Str("protocol", protocol).Str("utxo", rec.ID()).Err(err).Msg("record skipped")
		return
	}
	c.metrics.ClassifyErrors.WithLabelValues(protocol).Inc()
	c.log.Error().Str("protocol", protocol).Str("utxo", rec.ID()).Err(err).Msg("classification failed")
}

func (c *Classifier) refreshGauges() {
	pools, orders := c.store.Counts()
	c.metrics.TrackedPools.Set(float64(pools))
	c.metrics.TrackedOrders.Set(float64(orders))
}

func (c *Classifier) emit(u StateUpdate) {
	if c.updates == nil {
		return
	}
	select {
	case c.updates <- u:
	default:
	}
}

// skipReason maps the recoverable classification errors to a stable
// metric label.
func skipReason(err error) string {
	var (
		notAPool  *dex.NotAPoolError
		invalidLP *dex.InvalidLPError
		schema    *dex.SchemaMismatchError
		malformed *dex.MalformedAssetError
		noAssets  *dex.NoAssetsError
	)
	switch {
	case errors.As(err, &notAPool):
		return "not_a_pool"
	case errors.As(err, &invalidLP):
		return "invalid_lp"
	case errors.As(err, &schema):
		return "schema_mismatch"
	case errors.As(err, &malformed):
		return "malformed_asset"
	case errors.As(err, &noAssets):
		return "no_assets"
	default:
		return "other"
	}
}
