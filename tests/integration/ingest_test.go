//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/auditline-platform/auditline/internal/auditevent"
	"github.com/auditline-platform/auditline/internal/config"
	"github.com/auditline-platform/auditline/internal/ingest"
	inats "github.com/auditline-platform/auditline/internal/nats"
)

func setupNATSContainer(t *testing.T) *inats.Client {
	t.Helper()
	ctx := context.Background()

	natsContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2-alpine",
			ExposedPorts: []string{"4222/tcp"},
			Cmd:          []string{"--jetstream", "--store_dir", "/data"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { natsContainer.Terminate(ctx) })

	host, _ := natsContainer.Host(ctx)
	port, _ := natsContainer.MappedPort(ctx, "4222")

	client, err := inats.NewClient(ctx, config.NATSConfig{
		URL: fmt.Sprintf("nats://%s:%s", host, port.Port()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

// memorySink collects what the consumer would persist.
type memorySink struct {
	saved   chan auditevent.AuditEvent
	invalid chan string
}

func newMemorySink() *memorySink {
	return &memorySink{
		saved:   make(chan auditevent.AuditEvent, 16),
		invalid: make(chan string, 16),
	}
}

func (s *memorySink) Save(ctx context.Context, event *auditevent.AuditEvent) error {
	s.saved <- *event
	return nil
}

func (s *memorySink) SaveInvalid(ctx context.Context, reason string, payload map[string]any) error {
	s.invalid <- reason
	return nil
}

func TestIngestPublishConsume(t *testing.T) {
	client := setupNATSContainer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := inats.NewPublisher(client.JetStream())
	sink := newMemorySink()
	consumer := ingest.NewConsumer(sink, inats.NewConsumerManager(client.JetStream()))

	go consumer.Start(ctx)

	t.Run("valid event is persisted", func(t *testing.T) {
		err := publisher.PublishAuditEvent(ctx, inats.EventMessage{
			DomainID:  "ing-domain",
			UserLogin: "ing-user@example.com",
			UserIP:    "10.0.0.9",
			Occurred:  time.Now(),
			Success:   true,
			Type:      "login",
			Component: "webapp",
		})
		require.NoError(t, err)

		select {
		case e := <-sink.saved:
			assert.Equal(t, "ing-domain", e.DomainID)
			assert.Equal(t, "ing-user@example.com", e.UserLogin)
			assert.Equal(t, "login", e.Type)
		case <-time.After(10 * time.Second):
			t.Fatal("event never reached the sink")
		}
	})

	t.Run("event missing fields is diverted", func(t *testing.T) {
		err := publisher.PublishAuditEvent(ctx, inats.EventMessage{
			DomainID: "ing-domain",
			Occurred: time.Now(),
			Type:     "login",
		})
		require.NoError(t, err)

		select {
		case reason := <-sink.invalid:
			assert.Contains(t, reason, "UserLogin")
		case <-time.After(10 * time.Second):
			t.Fatal("invalid event never reached the sink")
		}
	})

	t.Run("NATS client is healthy", func(t *testing.T) {
		assert.True(t, client.Healthy())
	})
}
