package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultNATSSubject is the subject prefix events are published under.
// The event type is appended: storyflow.events.story_created.
const DefaultNATSSubject = "storyflow.events"

// DefaultNATSStream is the stream that captures published events.
const DefaultNATSStream = "STORYFLOW_EVENTS"

// Publisher is the subset of jetstream.JetStream used by NATSNotifier.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSNotifier publishes events to JetStream.
type NATSNotifier struct {
	js      Publisher
	subject string
	nc      *nats.Conn
}

// NewNATSNotifier wraps an existing publisher.
func NewNATSNotifier(js Publisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSNotifier{js: js, subject: subject}
}

// ConnectNATS connects to url, makes sure the event stream exists and
// returns a notifier that owns the connection.
func ConnectNATS(ctx context.Context, url, subject string, logger *slog.Logger) (*NATSNotifier, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	if subject == "" {
		subject = DefaultNATSSubject
	}
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(
		url,
		nats.Name("storyflow"),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(5),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream instance: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     DefaultNATSStream,
		Subjects: []string{subject + ".>"},
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", DefaultNATSStream, err)
	}

	n := NewNATSNotifier(js, subject)
	n.nc = nc
	return n, nil
}

// Subject returns the subject an event of type t is published on.
func (n *NATSNotifier) Subject(t EventType) string {
	return n.subject + "." + string(t)
}

// Notify implements Notifier.
func (n *NATSNotifier) Notify(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	opts := []jetstream.PublishOpt{}
	if event.RunID != "" {
		opts = append(opts, jetstream.WithMsgID(event.RunID+":"+string(event.Type)))
	}
	if _, err := n.js.Publish(ctx, n.Subject(event.Type), data, opts...); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close closes the connection when the notifier owns one.
func (n *NATSNotifier) Close() error {
	if n.nc != nil && !n.nc.IsClosed() {
		n.nc.Close()
	}
	return nil
}
