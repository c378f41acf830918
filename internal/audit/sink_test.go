package audit

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/warehouse-backend/pkg/config"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
)

type fakePublisher struct {
	topic string
	data  []byte
	attrs map[string]string
	id    string
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	f.topic = topic
	f.data = data
	f.attrs = attrs
	return f.id, f.err
}

type fakeInserter struct {
	table     string
	calls     int
	rows      []any
	responses []error
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	f.table = table
	f.rows = rows
	f.calls++
	if len(f.responses) == 0 {
		return nil
	}
	err := f.responses[0]
	f.responses = f.responses[1:]
	return err
}

func (f *fakeInserter) MovementsTable() string { return "movements" }

func sampleMovement() Movement {
	return Movement{
		EventID:      uuid.New(),
		MovementType: enums.MovementOutflow,
		ProductID:    uuid.New(),
		LotID:        uuid.New(),
		WarehouseID:  uuid.New(),
		Quantity:     decimal.NewFromInt(3),
		ActorID:      uuid.New(),
		OccurredAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestLogSinkReturnsMockTransactionIDs(t *testing.T) {
	sink := NewLogSink(nil)
	first, err := sink.Record(context.Background(), sampleMovement())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := sink.Record(context.Background(), sampleMovement())
	if !strings.HasPrefix(first, "MOCKTX-") {
		t.Fatalf("expected MOCKTX prefix, got %q", first)
	}
	if first == second {
		t.Fatalf("expected distinct transaction ids")
	}
}

func TestPubSubSinkPublishesToAuditTopic(t *testing.T) {
	pub := &fakePublisher{id: "msg-1"}
	sink, err := NewPubSubSink(pub, " audit ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	movement := sampleMovement()
	txID, err := sink.Record(context.Background(), movement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txID != "msg-1" {
		t.Fatalf("expected message id as transaction id, got %q", txID)
	}
	if pub.topic != "audit" {
		t.Fatalf("unexpected topic %q", pub.topic)
	}
	if pub.attrs["event_id"] != movement.EventID.String() || pub.attrs["movement_type"] != "outflow" {
		t.Fatalf("unexpected attributes %v", pub.attrs)
	}
	if !strings.Contains(string(pub.data), `"quantity":"3"`) {
		t.Fatalf("payload missing quantity: %s", pub.data)
	}
}

func TestPubSubSinkErrors(t *testing.T) {
	if _, err := NewPubSubSink(nil, "audit"); err == nil {
		t.Fatal("expected error for nil publisher")
	}
	if _, err := NewPubSubSink(&fakePublisher{}, " "); err == nil {
		t.Fatal("expected error for empty topic")
	}

	sink, _ := NewPubSubSink(&fakePublisher{err: errors.New("down")}, "audit")
	if _, err := sink.Record(context.Background(), sampleMovement()); err == nil {
		t.Fatal("expected publish error")
	}
	sink, _ = NewPubSubSink(&fakePublisher{}, "audit")
	if _, err := sink.Record(context.Background(), sampleMovement()); err == nil {
		t.Fatal("expected error for empty message id")
	}
}

func newTestBigQuerySink(t *testing.T, inserter *fakeInserter) *BigQuerySink {
	t.Helper()
	sink, err := NewBigQuerySink(inserter, "movements", RetryPolicy{MaxAttempts: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sink.sleep = func(context.Context, time.Duration) error { return nil }
	return sink
}

func TestBigQuerySinkUsesEventIDAsInsertID(t *testing.T) {
	inserter := &fakeInserter{}
	sink := newTestBigQuerySink(t, inserter)
	movement := sampleMovement()

	txID, err := sink.Record(context.Background(), movement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txID != "BQ-"+movement.EventID.String() {
		t.Fatalf("unexpected transaction id %q", txID)
	}
	if inserter.table != "movements" || len(inserter.rows) != 1 {
		t.Fatalf("unexpected insert table=%q rows=%d", inserter.table, len(inserter.rows))
	}
	row, ok := inserter.rows[0].(*movementRow)
	if !ok {
		t.Fatalf("unexpected row type %T", inserter.rows[0])
	}
	values, insertID, err := row.Save()
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if insertID != movement.EventID.String() {
		t.Fatalf("unexpected insert id %q", insertID)
	}
	if values["movement_type"] != "outflow" || values["quantity"] != "3" {
		t.Fatalf("unexpected values %v", values)
	}
}

func TestBigQuerySinkRetriesTransientErrors(t *testing.T) {
	inserter := &fakeInserter{responses: []error{&googleapi.Error{Code: http.StatusServiceUnavailable}, nil}}
	sink := newTestBigQuerySink(t, inserter)

	if _, err := sink.Record(context.Background(), sampleMovement()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserter.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", inserter.calls)
	}
}

func TestBigQuerySinkStopsOnPermanentErrors(t *testing.T) {
	inserter := &fakeInserter{responses: []error{&googleapi.Error{Code: http.StatusBadRequest}}}
	sink := newTestBigQuerySink(t, inserter)

	if _, err := sink.Record(context.Background(), sampleMovement()); err == nil {
		t.Fatal("expected error")
	}
	if inserter.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", inserter.calls)
	}
}

func TestNewSinkSelectsKind(t *testing.T) {
	cases := []struct {
		kind string
		deps SinkDeps
		want string
	}{
		{config.AuditSinkLog, SinkDeps{}, config.AuditSinkLog},
		{"", SinkDeps{}, config.AuditSinkLog},
		{config.AuditSinkPubSub, SinkDeps{PubSub: &fakePublisher{}, Topic: "audit"}, config.AuditSinkPubSub},
		{config.AuditSinkBigQuery, SinkDeps{BigQuery: &fakeInserter{}}, config.AuditSinkBigQuery},
	}
	for _, tc := range cases {
		sink, err := NewSink(config.AuditConfig{Sink: tc.kind}, tc.deps)
		if err != nil {
			t.Fatalf("kind %q: unexpected error: %v", tc.kind, err)
		}
		if sink.Name() != tc.want {
			t.Fatalf("kind %q: expected %s, got %s", tc.kind, tc.want, sink.Name())
		}
	}

	if _, err := NewSink(config.AuditConfig{Sink: config.AuditSinkPubSub}, SinkDeps{}); err == nil {
		t.Fatal("expected error when pubsub client missing")
	}
}
