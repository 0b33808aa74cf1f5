package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pm/patient-management/libs/kafkax"
	"github.com/pm/patient-management/services/patient-service/internal/patient"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrDisabled is returned when no brokers are configured.
var ErrDisabled = errors.New("event publishing disabled")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// envelope is the JSON value written to the topic.
type envelope struct {
	EventID    string    `json:"eventId"`
	OccurredAt time.Time `json:"occurredAt"`
	patient.RegistrationEvent
}

// KafkaPublisher writes registration events keyed by patient id, so every
// event for one patient lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// DefaultBatchTimeout bounds how long a single event waits for a batch to
// fill. Publish runs inside the registration request, so it stays small.
const DefaultBatchTimeout = 5 * time.Millisecond

type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	BatchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Topic == "" {
		c.Topic = patient.EventsTopic
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	return c
}

func NewKafkaPublisher(cfg Config) *KafkaPublisher {
	cfg = cfg.withDefaults()
	return newKafkaPublisher(cfg.Topic, newWriter(cfg))
}

func newWriter(cfg Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
	}
}

func newKafkaPublisher(topic string, w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, now: time.Now}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt patient.RegistrationEvent) error {
	ctx, span := kafkax.StartPublishSpan(ctx, p.topic)
	defer span.End()

	eventID := uuid.NewString()
	span.SetAttributes(attribute.String("messaging.message.id", eventID))
	payload, err := json.Marshal(envelope{
		EventID:           eventID,
		OccurredAt:        p.now().UTC(),
		RegistrationEvent: evt,
	})
	if err != nil {
		return err
	}

	meta := kafkax.EventMeta{EventID: eventID, EventType: evt.EventType}
	msg := kafka.Message{
		Key:     []byte(evt.PatientID),
		Value:   payload,
		Headers: kafkax.InjectTraceHeaders(ctx, meta.Headers()),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "kafka write failed")
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type DisabledPublisher struct{}

func (DisabledPublisher) Publish(context.Context, patient.RegistrationEvent) error {
	return ErrDisabled
}
