// Package events listens for content change notifications on NATS and
// invalidates derived caches when published content changes.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docsite/internal/metrics"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject the CMS change hooks publish on.
const DefaultSubject = "docs.changed"

// natsConnectFunc allows test injection.
var natsConnectFunc = nats.Connect

// Invalidator drops cached state derived from content.
type Invalidator interface {
	Invalidate()
}

// Event is the payload of a change notification. Every field is optional; an
// empty message still counts as a change.
type Event struct {
	Collection string    `json:"collection,omitempty"`
	Operation  string    `json:"operation,omitempty"`
	ID         string    `json:"id,omitempty"`
	Slug       string    `json:"slug,omitempty"`
	At         time.Time `json:"at,omitzero"`
}

// Subscriber invalidates its targets on every change event.
type Subscriber struct {
	url     string
	subject string
	targets []Invalidator
	log     *slog.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	conn *nats.Conn
	sub  *nats.Subscription
}

func NewSubscriber(url, subject string, log *slog.Logger, m *metrics.Metrics, targets ...Invalidator) *Subscriber {
	if url == "" {
		url = nats.DefaultURL
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &Subscriber{
		url:     url,
		subject: subject,
		targets: targets,
		log:     log,
		metrics: m,
	}
}

// Start connects and subscribes. Reconnects are retried forever; since
// events may be lost while disconnected, a reconnect also invalidates.
func (s *Subscriber) Start() error {
	nc, err := natsConnectFunc(s.url,
		nats.Name("docsite"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			s.log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			s.log.Info("nats reconnected", "url", c.ConnectedUrl())
			s.invalidate()
		}),
	)
	if err != nil {
		return fmt.Errorf("connect nats %s: %w", s.url, err)
	}

	sub, err := nc.Subscribe(s.subject, s.handle)
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}

	s.mu.Lock()
	s.conn, s.sub = nc, sub
	s.mu.Unlock()

	s.log.Info("listening for content changes", "url", s.url, "subject", s.subject)
	return nil
}

func (s *Subscriber) handle(msg *nats.Msg) {
	var ev Event
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			s.log.Warn("undecodable change event, invalidating anyway",
				"subject", msg.Subject, "error", err)
		}
	}
	s.log.Info("content changed",
		"subject", msg.Subject,
		"collection", ev.Collection,
		"operation", ev.Operation,
		"doc_id", ev.ID,
	)
	if s.metrics != nil {
		s.metrics.ContentEventsTotal.WithLabelValues(msg.Subject).Inc()
	}
	s.invalidate()
}

func (s *Subscriber) invalidate() {
	for _, t := range s.targets {
		t.Invalidate()
	}
}

// Publish announces a change to every subscriber, this one included.
func (s *Subscriber) Publish(ev Event) error {
	s.mu.Lock()
	nc := s.conn
	s.mu.Unlock()
	if nc == nil {
		return errors.New("publish change event: not connected")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := nc.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Close unsubscribes and closes the connection.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	nc, sub := s.conn, s.sub
	s.conn, s.sub = nil, nil
	s.mu.Unlock()

	if nc == nil {
		return nil
	}
	var err error
	if sub != nil {
		err = sub.Unsubscribe()
	}
	nc.Close()
	return err
}
