// Package ingestion feeds raw UTXO records from NATS JetStream through
// protocol classification into the state store. The chain follower
// publishing the records sits outside this service.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	// StreamName holds every raw record subject.
	StreamName = "DEX_UTXOS"

	// SubjectCreated carries new script outputs, one protocol per final
	// token. SubjectSpent carries consumed output references.
	SubjectCreated = "dex.utxo.created"
	SubjectSpent   = "dex.utxo.spent"
)

// RawMsg is one message off the stream, ready for classification. Ack
// confirms processing; Nak requests redelivery.
type RawMsg struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	Ack       func()
	Nak       func()
}

// Subscriber creates JetStream consumers and forwards messages into the
// classifier channel.
type Subscriber struct {
	js        jetstream.JetStream
	out       chan<- RawMsg
	log       zerolog.Logger
	consumers []jetstream.ConsumeContext
}

func NewSubscriber(js jetstream.JetStream, out chan<- RawMsg, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		js:  js,
		out: out,
		log: log.With().Str("component", "ingestion").Logger(),
	}
}

// Subscribe creates one durable consumer per registered protocol plus one
// for spent references. Consumers use explicit ACK with redelivery.
func (s *Subscriber) Subscribe(ctx context.Context, protocols []string) error {
	subjects := []struct {
		subject  string
		consumer string
	}{
		{SubjectSpent, "dex-spent"},
	}
	for _, name := range protocols {
		subjects = append(subjects, struct {
			subject  string
			consumer string
		}{
			subject:  fmt.Sprintf("%s.%s", SubjectCreated, name),
			consumer: "dex-created-" + name,
		})
	}

	for _, cfg := range subjects {
		consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.consumer,
			FilterSubject: cfg.subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.consumer, err)
		}

		cc, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawMsg{
				Subject:   msg.Subject(),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				Ack:       func() { msg.Ack() },
				Nak:       func() { msg.Nak() },
			}

			select {
			case s.out <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.consumer, err)
		}

		s.consumers = append(s.consumers, cc)
		s.log.Info().Str("subject", cfg.subject).Str("consumer", cfg.consumer).Msg("subscribed")
	}

	return nil
}

// EnsureStream creates the record stream if it does not exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"dex.utxo.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", StreamName, err)
	}
	return nil
}

// Stop gracefully stops all consumers.
func (s *Subscriber) Stop() {
	for _, cc := range s.consumers {
		cc.Stop()
	}
	s.log.Info().Msg("subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
