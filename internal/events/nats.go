// Package events publishes core lifecycle events over NATS for external
// collaborators (call history, economy, achievements, presence). The core
// treats these consumers as write-only: they receive session-started,
// session-ended, user-connected, user-disconnected, and search-timeout, and
// never mutate core state.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/drift/meet-app/internal/engine"
)

// NATS subjects, one per lifecycle event type.
const (
	SubjectUserConnected    = "core.user.connected"
	SubjectUserDisconnected = "core.user.disconnected"
	SubjectSessionStarted   = "core.session.started"
	SubjectSessionEnded     = "core.session.ended"
	SubjectSearchTimeout    = "core.search.timeout"
)

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "drift-server",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// Publisher forwards engine events to NATS. Publish is fire-and-forget:
// nats.Conn buffers writes internally, so it never blocks the engine's
// critical section, and delivery failures are logged and dropped.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to NATS with the given config and returns a ready
// publisher. It returns an error if the initial connection fails.
func NewPublisher(config Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())
	return &Publisher{conn: nc}, nil
}

// Publish implements engine.Sink. The event is serialized as JSON and sent
// to the subject matching its type; unknown types are dropped.
func (p *Publisher) Publish(ev engine.Event) {
	subject, ok := subjectFor(ev.Type)
	if !ok {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[events] marshal %s: %v", ev.Type, err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		log.Printf("[events] publish %s: %v", subject, err)
	}
}

func subjectFor(t engine.EventType) (string, bool) {
	switch t {
	case engine.EventUserConnected:
		return SubjectUserConnected, true
	case engine.EventUserDisconnected:
		return SubjectUserDisconnected, true
	case engine.EventSessionStarted:
		return SubjectSessionStarted, true
	case engine.EventSessionEnded:
		return SubjectSessionEnded, true
	case engine.EventSearchTimeout:
		return SubjectSearchTimeout, true
	default:
		return "", false
	}
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}
	log.Printf("[nats] publisher closed")
}
