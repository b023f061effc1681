package forward

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject position batches publish on.
const DefaultSubject = "condor.positions"

// NATSSink publishes position batches to a NATS subject for consumers
// that want a push feed instead of polling the HTTP API.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink connects to a NATS server. An empty subject uses
// DefaultSubject.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url,
		nats.Name("condor-feed"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

func (s *NATSSink) Name() string { return "nats" }

// Publish sends one batch as a single JSON array message.
func (s *NATSSink) Publish(_ context.Context, batch []Position) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	if err := s.conn.Publish(s.subject, body); err != nil {
		return fmt.Errorf("publish to %s: %w", s.subject, err)
	}
	return nil
}

// Close drains and closes the connection.
func (s *NATSSink) Close() {
	_ = s.conn.Drain()
}
