package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"despesas/internal/amqp"
	"despesas/internal/sheets"
	"despesas/internal/sheets/memory"
)

type fakeConsumer struct {
	events []*amqp.ExpenseEvent
	err    error
	// handlerErrs collects handler results in delivery order.
	handlerErrs []error
}

func (f *fakeConsumer) ConsumeExpenseEvents(ctx context.Context, handler func(context.Context, *amqp.ExpenseEvent) error) error {
	for _, evt := range f.events {
		f.handlerErrs = append(f.handlerErrs, handler(ctx, evt))
	}
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type failingWriter struct{}

func (failingWriter) AppendActivity(context.Context, sheets.ActivityRow) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestActivityWorker_RunAppendsEvents(t *testing.T) {
	ts := time.Date(2024, 8, 10, 9, 30, 0, 0, time.UTC)
	consumer := &fakeConsumer{events: []*amqp.ExpenseEvent{
		{Type: amqp.EventExpenseCreated, ExpenseID: "e1", UserID: "u1", Name: "Aluguel", Amount: "1200.00", Timestamp: ts},
		{Type: amqp.EventPaymentRecorded, ExpenseID: "e1", UserID: "u1", Months: []string{"2024-08"}, Timestamp: ts},
	}}
	store := memory.New()
	w := NewActivityWorker(consumer, store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rows := store.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Type != "expense.created" || rows[0].Name != "Aluguel" || !rows[0].Timestamp.Equal(ts) {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Type != "payment.recorded" || len(rows[1].Months) != 1 {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
	if processed, failed := w.Stats(); processed != 2 || failed != 0 {
		t.Errorf("Stats() = %d, %d", processed, failed)
	}
}

func TestActivityWorker_RunStopsCleanlyOnCancel(t *testing.T) {
	w := NewActivityWorker(&fakeConsumer{}, memory.New(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestActivityWorker_RunReturnsConsumerError(t *testing.T) {
	boom := errors.New("message channel closed")
	w := NewActivityWorker(&fakeConsumer{err: boom}, memory.New(), nil)

	if err := w.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
}

func TestActivityWorker_HandleEventFailureIsReturned(t *testing.T) {
	w := NewActivityWorker(&fakeConsumer{}, failingWriter{}, nil)

	err := w.HandleEvent(context.Background(), &amqp.ExpenseEvent{Type: amqp.EventExpenseDeleted, ExpenseID: "e9"})
	if err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	if err := w.HandleEvent(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil event")
	}
	if _, failed := w.Stats(); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestRowFromEvent_DefaultsTimestamp(t *testing.T) {
	row := RowFromEvent(&amqp.ExpenseEvent{Type: amqp.EventExpenseEdited, ExpenseID: "e1", Scope: "future"})
	if row.Timestamp.IsZero() {
		t.Error("expected timestamp to be filled")
	}
	if row.Scope != "future" || row.ExpenseID != "e1" {
		t.Errorf("unexpected row: %+v", row)
	}
}
