package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSaveOutboxEvent_PayloadAsText(t *testing.T) {
	s, mock := newMockStore(t)
	payload := []byte(`{"invoice_id":1}`)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, payload)`)).
		WithArgs("invoice", "1", "invoice.created", "invoice_events", string(payload)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx Tx) error {
		return tx.SaveOutboxEvent(context.Background(), OutboxEventRow{
			AggregateType: "invoice",
			AggregateID:   "1",
			EventType:     "invoice.created",
			Topic:         "invoice_events",
			Payload:       payload,
		})
	})
	if err != nil {
		t.Fatalf("SaveOutboxEvent failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPendingEventsAndMarks(t *testing.T) {
	s, mock := newMockStore(t)
	cols := []string{"id", "aggregate_type", "aggregate_id", "event_type", "topic", "payload", "created_at", "attempts"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE published_at IS NULL AND attempts < $1 ORDER BY id LIMIT $2 FOR UPDATE SKIP LOCKED`)).
		WithArgs(10, 50).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(1), "invoice", "4", "invoice.created", "invoice_events", []byte(`{"a":1}`), time.Now(), 0).
			AddRow(int64(2), "invoice", "5", "invoice.deleted", "invoice_events", []byte(`{"a":2}`), time.Now(), 3))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE outbox SET published_at = NOW(), last_error = NULL WHERE id = $1`)).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`)).
		WithArgs(int64(2), "broker down").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx Tx) error {
		events, err := tx.PendingEvents(context.Background(), 10, 50)
		if err != nil {
			return err
		}
		if len(events) != 2 || string(events[0].Payload) != `{"a":1}` || events[1].Attempts != 3 {
			t.Fatalf("unexpected events: %+v", events)
		}
		if err := tx.MarkEventPublished(context.Background(), events[0].ID); err != nil {
			return err
		}
		return tx.MarkEventFailed(context.Background(), events[1].ID, "broker down")
	})
	if err != nil {
		t.Fatalf("outbox tx failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
