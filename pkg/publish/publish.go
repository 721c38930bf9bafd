// Package publish emits stored posts to NATS with trace context in the
// message headers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"xhsdl/pkg/logger"
	"xhsdl/pkg/models"
	"xhsdl/pkg/storage"
)

// DefaultSubject receives upserted posts
const DefaultSubject = "xhsdl.posts"

// headerCarrier adapts nats.Msg headers for the OTel TextMapCarrier
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Conn is the part of *nats.Conn the publisher uses
type Conn interface {
	PublishMsg(m *nats.Msg) error
	Drain() error
}

// Message builds the message for post on subject, injecting trace context
// from ctx
func Message(ctx context.Context, subject string, post models.Post) (*nats.Msg, error) {
	data, err := json.Marshal(post)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal post: %w", err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return msg, nil
}

// Store wraps a storage.Store and publishes every merged post after a
// successful upsert. Publish failures are logged and do not fail the upsert.
type Store struct {
	storage.Store
	conn    Conn
	subject string
	logger  logger.Logger
}

// Wrap decorates inner. An empty subject uses DefaultSubject.
func Wrap(inner storage.Store, conn Conn, subject string, log logger.Logger) *Store {
	if subject == "" {
		subject = DefaultSubject
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{Store: inner, conn: conn, subject: subject, logger: log}
}

// Connect dials the NATS server at url
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("xhsdl"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return nc, nil
}

// Upsert implements storage.Store
func (s *Store) Upsert(ctx context.Context, post models.Post) (models.Post, error) {
	merged, err := s.Store.Upsert(ctx, post)
	if err != nil {
		return merged, err
	}

	msg, err := Message(ctx, s.subject, merged)
	if err == nil {
		err = s.conn.PublishMsg(msg)
	}
	if err != nil {
		s.logger.WithError(err).WarnWithFields("Post not published", map[string]interface{}{
			"item_id": merged.ID,
			"subject": s.subject,
		})
	}
	return merged, nil
}

// Close drains the connection and closes the wrapped store
func (s *Store) Close() error {
	if err := s.conn.Drain(); err != nil {
		s.logger.WithError(err).Warn("Failed to drain nats connection")
	}
	return s.Store.Close()
}
