package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"bilbasen-scraper/models"
)

type fakePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakePublisher) PublishMsg(m *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func TestHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*headerCarrier)(msg)

	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}
	if keys := carrier.Keys(); len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestHeaderCarrierNilHeader(t *testing.T) {
	carrier := (*headerCarrier)(&nats.Msg{})
	if got := carrier.Get("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}
}

func TestSnapshotWrittenPublishesJSON(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	pub := &fakePublisher{}
	n := newNATSNotifier(pub, "")
	ev := models.SnapshotWritten{
		RunID:         "run-1",
		Path:          "data/bilbasen_cars_20250314_092653.json",
		TotalListings: 42,
		ScrapedAt:     time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
	}
	if err := n.SnapshotWritten(ctx, ev); err != nil {
		t.Fatal(err)
	}

	if len(pub.msgs) != 1 {
		t.Fatalf("want 1 message, got %d", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.Subject != DefaultSubject {
		t.Errorf("subject: %q", msg.Subject)
	}
	if msg.Header.Get("traceparent") == "" {
		t.Error("trace context not injected")
	}

	var got models.SnapshotWritten
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.RunID != ev.RunID || got.Path != ev.Path || got.TotalListings != 42 || !got.ScrapedAt.Equal(ev.ScrapedAt) {
		t.Errorf("decoded %+v, want %+v", got, ev)
	}
}

func TestSnapshotWrittenPublishError(t *testing.T) {
	n := newNATSNotifier(&fakePublisher{err: errors.New("connection closed")}, "custom.subject")
	err := n.SnapshotWritten(context.Background(), models.SnapshotWritten{RunID: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if n.subject != "custom.subject" {
		t.Errorf("subject: %q", n.subject)
	}
}

func TestNopAndUnconnectedClose(t *testing.T) {
	var n Notifier = Nop{}
	if err := n.SnapshotWritten(context.Background(), models.SnapshotWritten{}); err != nil {
		t.Error(err)
	}
	if err := newNATSNotifier(&fakePublisher{}, "").Close(); err != nil {
		t.Error(err)
	}
}
