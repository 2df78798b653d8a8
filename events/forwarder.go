package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const subjectPrefix = "arcade.event."

// Envelope is the wire form of an event on NATS.
type Envelope struct {
	ID      uuid.UUID       `json:"id"`
	Type    EventType       `json:"type"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// Forwarder republishes every bus event to NATS so other services can react
// without coupling to this process. Publish failures are logged, never
// propagated: the engine's own state is already committed by the time an
// event exists.
type Forwarder struct {
	conn *nats.Conn
}

// NewForwarder connects to the NATS server at url.
func NewForwarder(url string) (*Forwarder, error) {
	conn, err := nats.Connect(url,
		nats.Name("arcade"),
		nats.Timeout(10*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Forwarder{conn: conn}, nil
}

// Attach subscribes the forwarder to every event type on the bus.
func (f *Forwarder) Attach(bus *Bus) {
	bus.SubscribeAll(func(ctx context.Context, event Event) {
		f.forward(event)
	})
}

func (f *Forwarder) forward(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to encode event payload")
		return
	}
	envelope, err := json.Marshal(Envelope{
		ID:      uuid.New(),
		Type:    event.Type(),
		At:      time.Now().UTC(),
		Payload: payload,
	})
	if err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to encode event envelope")
		return
	}

	subject := subjectPrefix + string(event.Type())
	if err := f.conn.Publish(subject, envelope); err != nil {
		log.WithFields(log.Fields{
			"subject": subject,
			"error":   err,
		}).Error("Failed to publish event to NATS")
	}
}

// Close drains the connection so queued publishes get out.
func (f *Forwarder) Close() {
	if err := f.conn.Drain(); err != nil {
		log.WithError(err).Warn("Failed to drain NATS connection")
	}
}
