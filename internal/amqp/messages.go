package amqp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"casaspese/internal/analytics"
)

// EventMessage carries one analytics event across the broker. MessageID
// lets consumers drop redeliveries.
type EventMessage struct {
	MessageID   string            `json:"message_id"`
	InstanceID  string            `json:"instance_id"`
	Seq         int64             `json:"seq"`
	Name        string            `json:"name"`
	Payload     analytics.Payload `json:"payload,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
	PublishedAt time.Time         `json:"published_at"`
}

// NewEventMessage wraps e with a fresh message id.
func NewEventMessage(e analytics.Event) *EventMessage {
	return &EventMessage{
		MessageID:   uuid.NewString(),
		InstanceID:  e.InstanceID,
		Seq:         e.Seq,
		Name:        string(e.Name),
		Payload:     e.Payload,
		OccurredAt:  e.At,
		PublishedAt: time.Now().UTC(),
	}
}

// Event converts the message back to an analytics event.
func (m *EventMessage) Event() analytics.Event {
	return analytics.Event{
		InstanceID: m.InstanceID,
		Seq:        m.Seq,
		Name:       analytics.Name(m.Name),
		Payload:    m.Payload,
		At:         m.OccurredAt,
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes a message and checks the fields consumers
// rely on.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return nil, err
	}
	if msg.InstanceID == "" || msg.Seq <= 0 || msg.Name == "" {
		return nil, fmt.Errorf("incomplete event message %q", msg.MessageID)
	}
	return &msg, nil
}
