package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher publishes audit events to JetStream. Producing components link
// this package; the service itself only uses it from tests and tooling.
type Publisher struct {
	js jetstream.JetStream
}

func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishAuditEvent publishes one produced audit event for ingestion.
func (p *Publisher) PublishAuditEvent(ctx context.Context, event EventMessage) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", SubjectAuditEvent, err)
	}
	if _, err := p.js.Publish(ctx, SubjectAuditEvent, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", SubjectAuditEvent, err)
	}
	return nil
}
