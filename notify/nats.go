package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"bilbasen-scraper/models"
)

const (
	DefaultSubject = "bilbasen.snapshot.written"

	flushTimeout = 5 * time.Second
)

// headerCarrier adapts nats.Msg headers for OTel TextMapCarrier.
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

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSNotifier publishes SnapshotWritten events as JSON on one subject.
type NATSNotifier struct {
	nc      *nats.Conn
	pub     msgPublisher
	subject string
}

var _ Notifier = (*NATSNotifier)(nil)

// NewNATSNotifier connects to url. An empty subject means DefaultSubject.
func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	nc, err := nats.Connect(url, nats.Name("bilbasen-scraper"), nats.Timeout(flushTimeout))
	if err != nil {
		return nil, fmt.Errorf("notify: connect %s: %w", url, err)
	}
	n := newNATSNotifier(nc, subject)
	n.nc = nc
	return n, nil
}

func newNATSNotifier(pub msgPublisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{pub: pub, subject: subject}
}

// SnapshotWritten publishes ev. Trace context from ctx is injected into the
// message headers.
func (n *NATSNotifier) SnapshotWritten(ctx context.Context, ev models.SnapshotWritten) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	msg := &nats.Msg{
		Subject: n.subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	if err := n.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("notify: publish %s: %w", n.subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *NATSNotifier) Close() error {
	if n.nc == nil {
		return nil
	}
	err := n.nc.FlushTimeout(flushTimeout)
	n.nc.Close()
	if err != nil {
		return fmt.Errorf("notify: flush: %w", err)
	}
	return nil
}
