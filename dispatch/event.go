package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/autom8ter/notify"
	"github.com/autom8ter/notify/errors"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/ksuid"
)

// Publisher is the slice of kafka.Writer the event dispatcher needs. The writer must
// be created without a fixed topic - the destination names the topic per message.
type Publisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Event publishes notifications as keyed messages to the broker topic named by the
// destination. Only a "definitely not persisted" acknowledgement (surfaced by the
// writer as an error) counts as failure.
type Event struct {
	publisher Publisher
	source    string
	logger    notify.Logger
}

// NewEvent returns an event dispatcher. source names this pipeline in the outbound
// envelope metadata.
func NewEvent(publisher Publisher, source string, logger notify.Logger) *Event {
	return &Event{publisher: publisher, source: source, logger: logger}
}

type eventEnvelope struct {
	Metadata eventMetadata `json:"metadata"`
	Data     eventData     `json:"data"`
}

type eventMetadata struct {
	Action         string    `json:"action"`
	ActionDatetime time.Time `json:"actionDatetime"`
	CorrelationId  string    `json:"correlationId"`
	EventDatetime  time.Time `json:"eventDatetime"`
	Source         string    `json:"source"`
}

type eventData struct {
	Document map[string]any `json:"document,omitempty"`
	Entity   string         `json:"entity"`
	Id       string         `json:"id"`
}

func (e *Event) Dispatch(ctx context.Context, data notify.NotifData, destination string) error {
	envelope := eventEnvelope{
		Metadata: eventMetadata{
			Action:         data.ChangeType,
			ActionDatetime: data.ChangeTime,
			CorrelationId:  ksuid.New().String(),
			EventDatetime:  data.EventTime,
			Source:         e.source,
		},
		Data: eventData{
			Document: data.Document,
			Entity:   data.Entity,
			Id:       data.Id,
		},
	}
	bits, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, errors.Internal, "failed to encode event envelope")
	}
	err = e.publisher.WriteMessages(ctx, kafka.Message{
		Topic: destination,
		Key:   []byte(data.Id),
		Value: bits,
	})
	if err != nil {
		e.logger.Warn(ctx, "event publish failed", map[string]any{
			"topic": destination,
			"id":    data.Id,
			"error": err.Error(),
		})
		return errors.Wrap(err, errors.Unavailable, "event publish failed: %s", destination)
	}
	e.logger.Debug(ctx, "event published", map[string]any{
		"topic": destination,
		"id":    data.Id,
	})
	return nil
}
