// Package stream moves sealed ledger blocks over NATS JetStream so the
// matching engine and indexer can run out of process from the ledger
// runtime.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/ksred/rtp-api/internal/runtime"
	"github.com/ksred/rtp-api/internal/types"
)

const (
	// StreamName is the JetStream stream holding sealed blocks.
	StreamName = "RTP_BLOCKS"
	// SubjectPrefix is the subject root; blocks publish to
	// rtp.blocks.<height>.
	SubjectPrefix = "rtp.blocks"
)

// Connect establishes a NATS connection and returns a JetStream context.
func Connect(url string, logger zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats reconnected")
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

// EnsureBlockStream creates the block stream if it does not exist.
func EnsureBlockStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ".>"},
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

// Publisher forwards sealed blocks from the runtime onto JetStream.
type Publisher struct {
	js     jetstream.JetStream
	blocks <-chan runtime.Block
	logger zerolog.Logger
}

func NewPublisher(js jetstream.JetStream, blocks <-chan runtime.Block, logger zerolog.Logger) *Publisher {
	return &Publisher{
		js:     js,
		blocks: blocks,
		logger: logger,
	}
}

// Run publishes blocks until the context is cancelled or the block
// channel closes. A failed publish is logged and skipped; consumers
// that need a gapless view resume from their persisted cursor and
// re-read the stream.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case block, ok := <-p.blocks:
			if !ok {
				return nil
			}

			data, err := json.Marshal(block)
			if err != nil {
				p.logger.Error().Err(err).Uint64("height", block.Height).Msg("failed to marshal block")
				continue
			}

			subject := fmt.Sprintf("%s.%d", SubjectPrefix, block.Height)
			if _, err := p.js.Publish(ctx, subject, data); err != nil {
				p.logger.Warn().Err(err).Uint64("height", block.Height).Msg("block publish failed")
			}
		}
	}
}

// Subscriber delivers blocks from JetStream in height order through a
// durable consumer.
type Subscriber struct {
	js      jetstream.JetStream
	durable string
	logger  zerolog.Logger

	consume jetstream.ConsumeContext
}

func NewSubscriber(js jetstream.JetStream, durable string, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		js:      js,
		durable: durable,
		logger:  logger,
	}
}

// Subscribe creates the durable consumer and returns a channel of
// decoded blocks. The channel closes when Stop is called.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan runtime.Block, error) {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       s.durable,
		FilterSubject: SubjectPrefix + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer %s: %w", s.durable, err)
	}

	out := make(chan runtime.Block, 64)
	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		var block runtime.Block
		if err := json.Unmarshal(msg.Data(), &block); err != nil {
			s.logger.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to decode block, dropping")
			msg.Ack()
			return
		}

		select {
		case out <- block:
			msg.Ack()
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		close(out)
		return nil, fmt.Errorf("consume %s: %w", s.durable, err)
	}

	s.consume = consumeCtx
	go func() {
		<-ctx.Done()
		consumeCtx.Stop()
		close(out)
	}()

	return out, nil
}

// Stop halts delivery.
func (s *Subscriber) Stop() {
	if s.consume != nil {
		s.consume.Stop()
	}
}

// BlockEvents extracts the domain events carried by a block's
// successful receipts, in receipt then log order. Failed receipts never
// contribute events.
func BlockEvents(block runtime.Block) []types.Event {
	var events []types.Event
	for _, receipt := range block.Receipts {
		if !receipt.Success {
			continue
		}
		for _, line := range receipt.Logs {
			if event, ok := types.ParseEventLog(line); ok {
				events = append(events, event)
			}
		}
	}
	return events
}

// Events adapts a block channel into a flat event channel for consumers
// that do not care about block boundaries, such as the matching engine.
func Events(ctx context.Context, blocks <-chan runtime.Block) <-chan types.Event {
	out := make(chan types.Event, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case block, ok := <-blocks:
				if !ok {
					return
				}
				for _, event := range BlockEvents(block) {
					select {
					case out <- event:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}
