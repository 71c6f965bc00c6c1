package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"despesas/internal/amqp"
	applog "despesas/internal/log"
	"despesas/internal/sheets"
)

const defaultStatsInterval = 5 * time.Minute

// EventConsumer delivers expense events to a handler until ctx is done.
// *amqp.Client implements it.
type EventConsumer interface {
	ConsumeExpenseEvents(ctx context.Context, handler func(context.Context, *amqp.ExpenseEvent) error) error
}

// ActivityWorker appends every expense event it receives to the activity log.
type ActivityWorker struct {
	consumer      EventConsumer
	writer        sheets.ActivityWriter
	logger        *applog.Logger
	statsInterval time.Duration

	processed atomic.Int64
	failed    atomic.Int64
}

func NewActivityWorker(consumer EventConsumer, writer sheets.ActivityWriter, logger *applog.Logger) *ActivityWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ActivityWorker{
		consumer:      consumer,
		writer:        writer,
		logger:        logger.WithComponent(applog.ComponentWorker),
		statsInterval: defaultStatsInterval,
	}
}

// HandleEvent writes one event. A returned error makes the consumer requeue
// the message.
func (w *ActivityWorker) HandleEvent(ctx context.Context, evt *amqp.ExpenseEvent) error {
	if evt == nil {
		return errors.New("nil event")
	}

	ref, err := w.writer.AppendActivity(ctx, RowFromEvent(evt))
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("append activity for %s: %w", evt.ExpenseID, err)
	}
	w.processed.Add(1)

	w.logger.DebugContext(ctx, "Activity appended",
		applog.FieldOperation, applog.OpAppend,
		applog.FieldEventType, evt.Type,
		applog.FieldExpenseID, evt.ExpenseID,
		applog.FieldSheetsRef, ref)
	return nil
}

// Run consumes events until ctx is cancelled, logging throughput every
// stats interval. A cancelled context is a clean stop.
func (w *ActivityWorker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.consumer.ConsumeExpenseEvents(gctx, w.HandleEvent)
	})

	g.Go(func() error {
		ticker := time.NewTicker(w.statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				w.logStats(gctx)
			}
		}
	})

	err := g.Wait()
	w.logStats(context.WithoutCancel(ctx))
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func (w *ActivityWorker) logStats(ctx context.Context) {
	w.logger.InfoContext(ctx, "Activity worker stats",
		"processed", w.processed.Load(),
		"failed", w.failed.Load())
}

// Stats returns how many events were written and how many failed.
func (w *ActivityWorker) Stats() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}

// RowFromEvent maps an event onto the activity log layout.
func RowFromEvent(evt *amqp.ExpenseEvent) sheets.ActivityRow {
	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return sheets.ActivityRow{
		Timestamp: ts,
		Type:      string(evt.Type),
		ExpenseID: evt.ExpenseID,
		UserID:    evt.UserID,
		Name:      evt.Name,
		Scope:     evt.Scope,
		Months:    evt.Months,
		Amount:    evt.Amount,
	}
}
