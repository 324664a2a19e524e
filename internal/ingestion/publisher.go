package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"DexLedger/internal/dex"
)

// StateUpdate is a classified state change ready for outbound publishing,
// so downstream consumers can follow pool and order state without
// re-classifying the chain themselves.
type StateUpdate struct {
	Kind     string    `json:"kind"` // "pool", "order" or "order_removed"
	Protocol string    `json:"protocol"`
	UTxO     string    `json:"utxo"`
	UnitA    string    `json:"unit_a,omitempty"`
	UnitB    string    `json:"unit_b,omitempty"`
	ReserveA int64     `json:"reserve_a,omitempty"`
	ReserveB int64     `json:"reserve_b,omitempty"`
	InUnit   string    `json:"in_unit,omitempty"`
	InAmount int64     `json:"in_amount,omitempty"`
	OutUnit  string    `json:"out_unit,omitempty"`
	Time     time.Time `json:"time"`
}

func poolUpdate(p *dex.PoolState) StateUpdate {
	return StateUpdate{
		Kind:     "pool",
		Protocol: p.Protocol,
		UTxO:     p.ID(),
		UnitA:    p.UnitA,
		UnitB:    p.UnitB,
		ReserveA: p.ReserveA(),
		ReserveB: p.ReserveB(),
		Time:     time.Now(),
	}
}

func orderUpdate(o *dex.OrderState) StateUpdate {
	return StateUpdate{
		Kind:     "order",
		Protocol: o.Protocol,
		UTxO:     o.ID(),
		InUnit:   o.InUnit,
		InAmount: o.InAmount,
		OutUnit:  o.OutUnit,
		Time:     time.Now(),
	}
}

func removedUpdate(o *dex.OrderState) StateUpdate {
	u := orderUpdate(o)
	u.Kind = "order_removed"
	return u
}

// OutboundPublisher publishes state updates for downstream consumers on
// dex.state.{kind}.{protocol}.
type OutboundPublisher struct {
	js  jetstream.JetStream
	in  <-chan StateUpdate
	log zerolog.Logger
}

func NewOutboundPublisher(js jetstream.JetStream, in <-chan StateUpdate, log zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{
		js:  js,
		in:  in,
		log: log.With().Str("component", "publisher").Logger(),
	}
}

// Run publishes updates until ctx is done or the channel closes. Publish
// failures are logged and skipped; consumers needing a complete view can
// query the HTTP API instead.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-op.in:
			if !ok {
				return nil
			}
			if err := op.publish(ctx, u); err != nil {
				op.log.Warn().Str("utxo", u.UTxO).Err(err).Msg("outbound publish failed")
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, u StateUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	subject := fmt.Sprintf("dex.state.%s.%s", u.Kind, u.Protocol)
	if _, err := op.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// EnsureStateStream creates the outbound stream if it does not exist.
func EnsureStateStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "DEX_STATE",
		Subjects:  []string{"dex.state.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream DEX_STATE: %w", err)
	}
	return nil
}
