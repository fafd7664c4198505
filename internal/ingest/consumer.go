// Package ingest persists produced audit events from the event stream.
// Well-formed events land in their domain's collection; malformed ones are
// diverted to the invalid-records sink and never surface on the read API.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/auditline-platform/auditline/internal/auditevent"
	"github.com/auditline-platform/auditline/internal/metrics"
	inats "github.com/auditline-platform/auditline/internal/nats"
)

const consumerName = "audit-persister"

// Sink is the slice of the event repository the consumer needs.
type Sink interface {
	Save(ctx context.Context, event *auditevent.AuditEvent) error
	SaveInvalid(ctx context.Context, reason string, payload map[string]any) error
}

type Consumer struct {
	sink        Sink
	consumerMgr *inats.ConsumerManager
	validate    *validator.Validate
}

func NewConsumer(sink Sink, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{
		sink:        sink,
		consumerMgr: consumerMgr,
		validate:    validator.New(),
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamEvents, consumerName, inats.SubjectAuditEvent)
	if err != nil {
		return err
	}

	slog.Info("audit ingest consumer started", "consumer", consumerName)

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("ingest consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleEvent(ctx context.Context, msg jetstream.Msg) {
	var event inats.EventMessage
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		c.divert(ctx, msg, "unparsable payload", map[string]any{"raw": string(msg.Data())})
		return
	}

	if reason := c.rejectReason(event); reason != "" {
		payload := map[string]any{}
		_ = json.Unmarshal(msg.Data(), &payload)
		c.divert(ctx, msg, reason, payload)
		return
	}

	if err := c.sink.Save(ctx, convertMessage(event)); err != nil {
		slog.Error("ingest consumer: persisting audit event", "error", err,
			"domain", event.DomainID, "type", event.Type)
		metrics.EventsIngestedTotal.WithLabelValues("error").Inc()
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()
	metrics.EventsIngestedTotal.WithLabelValues("stored").Inc()

	slog.Debug("ingest consumer: persisted event",
		"domain", event.DomainID, "type", event.Type, "user_login", event.UserLogin)
}

// divert routes a malformed event to the invalid-records sink. Diverted
// events are acked: replaying them could never make them valid.
func (c *Consumer) divert(ctx context.Context, msg jetstream.Msg, reason string, payload map[string]any) {
	if err := c.sink.SaveInvalid(ctx, reason, payload); err != nil {
		slog.Error("ingest consumer: persisting invalid record", "error", err, "reason", reason)
		metrics.EventsIngestedTotal.WithLabelValues("error").Inc()
		_ = msg.Nak()
		return
	}

	slog.Warn("ingest consumer: diverted invalid event", "reason", reason)
	metrics.EventsIngestedTotal.WithLabelValues("invalid").Inc()
	_ = msg.Ack()
}

// rejectReason reports why an event cannot be stored, or "" if it can.
func (c *Consumer) rejectReason(event inats.EventMessage) string {
	if err := c.validate.Struct(event); err != nil {
		var fields []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return "missing required fields: " + strings.Join(fields, ", ")
		}
		return fmt.Sprintf("invalid event: %v", err)
	}

	if !auditevent.ValidDomain(event.DomainID) {
		return fmt.Sprintf("invalid domain %q", event.DomainID)
	}
	return ""
}

func convertMessage(event inats.EventMessage) *auditevent.AuditEvent {
	return &auditevent.AuditEvent{
		DomainID:  event.DomainID,
		UserLogin: event.UserLogin,
		Occurred:  event.Occurred.UTC(),
		UserIP:    event.UserIP,
		Success:   event.Success,
		Type:      event.Type,
		Params:    event.Params,
		Links:     event.Links,
	}
}
