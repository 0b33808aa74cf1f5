package patientevents

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pm/patient-management/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

type Observer interface {
	EventRecorded(eventType string)
	DuplicateSkipped(eventType string)
	MalformedSkipped()
}

type payload struct {
	EventID    string    `json:"eventId"`
	OccurredAt time.Time `json:"occurredAt"`
	PatientID  string    `json:"patientId"`
	EventType  string    `json:"eventType"`
}

type Processor struct {
	store    Store
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

func NewProcessor(store Store, observer Observer, logger *slog.Logger) *Processor {
	return &Processor{store: store, observer: observer, logger: logger, now: time.Now}
}

// Handle records one patient event. Malformed messages are logged and
// acknowledged; only storage errors are returned for retry.
func (p *Processor) Handle(ctx context.Context, msg kafka.Message) error {
	var body payload
	if err := json.Unmarshal(msg.Value, &body); err != nil {
		p.logger.ErrorContext(ctx, "invalid patient event payload", "err", err, "offset", msg.Offset)
		p.observer.MalformedSkipped()
		return nil
	}

	meta := kafkax.ExtractEventMeta(msg)
	evt := Event{
		EventID:    firstNonEmpty(body.EventID, meta.EventID),
		EventType:  firstNonEmpty(body.EventType, meta.EventType),
		PatientID:  firstNonEmpty(body.PatientID, string(msg.Key)),
		OccurredAt: body.OccurredAt,
	}
	if evt.EventID == "" || evt.PatientID == "" || evt.EventType == "" {
		p.logger.ErrorContext(ctx, "missing patient event fields", "offset", msg.Offset)
		p.observer.MalformedSkipped()
		return nil
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = msg.Time
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = p.now()
	}

	recorded, err := p.store.Record(ctx, evt)
	if err != nil {
		return err
	}
	if !recorded {
		p.logger.InfoContext(ctx, "duplicate event ignored", "event_id", evt.EventID, "event_type", evt.EventType)
		p.observer.DuplicateSkipped(evt.EventType)
		return nil
	}
	p.observer.EventRecorded(evt.EventType)
	p.logger.InfoContext(ctx, "patient event recorded", "event_id", evt.EventID, "event_type", evt.EventType, "patient_id", evt.PatientID)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
