package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/pm/patient-management/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/codes"
)

// Handler processes one message. A returned error is retried; malformed
// messages should be logged and acknowledged by returning nil.
type Handler func(ctx context.Context, msg kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     messageReader
	logger     *slog.Logger
	handler    Handler
	maxRetries int
	retryDelay time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newConsumer(reader, logger, handler)
}

func newConsumer(reader messageReader, logger *slog.Logger, handler Handler) *Consumer {
	return &Consumer{
		reader:     reader,
		logger:     logger,
		handler:    handler,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Run consumes until ctx is cancelled. Offsets are committed only after the
// handler succeeded or its retries were exhausted.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			if !sleep(ctx, c.retryDelay) {
				return
			}
			continue
		}

		if !c.handle(ctx, msg) {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// handle reports false when ctx was cancelled mid-retry.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	ctxSpan, span := kafkax.StartConsumeSpan(ctx, msg)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	for attempt := 1; ; attempt++ {
		err := c.handler(ctxSpan, msg)
		if err == nil {
			return true
		}
		span.RecordError(err)
		if attempt > c.maxRetries {
			span.SetStatus(codes.Error, "handler failed")
			c.logger.Error("handler failed; skipping message", "err", err, "event_id", meta.EventID, "attempts", attempt)
			return true
		}
		c.logger.Warn("handler error; retrying", "err", err, "event_id", meta.EventID, "attempt", attempt)
		if !sleep(ctx, c.retryDelay) {
			return false
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
