package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Stage string

const (
	StageSubmission Stage = "submission"
	StageProcessing Stage = "processing"
)

// Event is one observation about a transaction: that a submission was
// attempted, or that processing reached a terminal outcome.
type Event struct {
	TransactionID string
	Stage         Stage
	Success       bool
	Reason        string
	ObservedAt    time.Time
	Took          time.Duration
}

const (
	bufferSize     = 1000
	maxBatchSize   = 100
	maxBatchWindow = 2 * time.Millisecond
)

// PgTracker records dispatch events into postgres. Writes are buffered and
// flushed in batches; a full buffer drops the event with a log line rather
// than stalling the dispatch path.
type PgTracker struct {
	dbpool *pgxpool.Pool
	buffer chan Event
	done   chan struct{}
	logger *slog.Logger
	flush  func([]Event)
}

func NewPgTracker(dbpool *pgxpool.Pool, logger *slog.Logger) *PgTracker {
	t := &PgTracker{
		dbpool: dbpool,
		buffer: make(chan Event, bufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	t.flush = t.flushToDb
	go t.consume()
	return t
}

func (t *PgTracker) LogSubmission(ctx context.Context, success bool, transactionID string, observedAt time.Time, took time.Duration) error {
	return t.add(Event{
		TransactionID: transactionID,
		Stage:         StageSubmission,
		Success:       success,
		ObservedAt:    observedAt,
		Took:          took,
	})
}

func (t *PgTracker) LogProcessing(ctx context.Context, success bool, observedAt time.Time, transactionID string, reason string) error {
	return t.add(Event{
		TransactionID: transactionID,
		Stage:         StageProcessing,
		Success:       success,
		Reason:        reason,
		ObservedAt:    observedAt,
	})
}

func (t *PgTracker) add(ev Event) error {
	select {
	case t.buffer <- ev:
	default:
		t.logger.Warn("event buffer is full, dropping event", "transactionId", ev.TransactionID, "stage", ev.Stage)
	}
	return nil
}

func (t *PgTracker) Close() { close(t.done) }

func (t *PgTracker) consume() {
	var (
		batch      []Event
		timer      *time.Timer
		timerCh    <-chan time.Time
		addToBatch = func(ev Event) {
			batch = append(batch, ev)
			if len(batch) == 1 {
				if timer == nil {
					timer = time.NewTimer(maxBatchWindow)
				} else {
					timer.Reset(maxBatchWindow)
				}
				timerCh = timer.C
			}
			if len(batch) >= maxBatchSize {
				t.flush(batch)
				batch = nil
				if timer != nil {
					timer.Stop()
				}
				timerCh = nil
			}
		}
	)

	for {
		select {
		case ev := <-t.buffer:
			addToBatch(ev)
		case <-timerCh:
			if len(batch) > 0 {
				t.flush(batch)
				batch = nil
			}
			timerCh = nil
		case <-t.done:
			if len(batch) > 0 {
				t.flush(batch)
				batch = nil
			}
			return
		}
	}
}

var tracer = otel.Tracer("event-tracker")

func (t *PgTracker) flushToDb(batch []Event) {
	go func(batchCopy []Event) {
		ctx, span := tracer.Start(
			context.Background(),
			"tracker.flush",
			trace.WithAttributes(
				attribute.Int("batch.size", len(batchCopy)),
			),
		)
		defer span.End()

		if len(batchCopy) == 1 {
			ev := batchCopy[0]
			_, err := t.dbpool.Exec(
				ctx,
				"INSERT INTO transaction_events (transaction_id, stage, success, reason, observed_at, took_ms) VALUES ($1, $2, $3, $4, $5, $6)",
				ev.TransactionID,
				string(ev.Stage),
				ev.Success,
				ev.Reason,
				ev.ObservedAt,
				ev.Took.Milliseconds(),
			)
			if err != nil {
				t.logger.Error("failed to insert event into database", "error", err)
			}
			return
		}

		_, err := t.dbpool.CopyFrom(
			ctx,
			pgx.Identifier{"transaction_events"},
			[]string{"transaction_id", "stage", "success", "reason", "observed_at", "took_ms"},
			pgx.CopyFromSlice(len(batchCopy), func(i int) ([]any, error) {
				ev := batchCopy[i]
				return []any{ev.TransactionID, string(ev.Stage), ev.Success, ev.Reason, ev.ObservedAt, ev.Took.Milliseconds()}, nil
			}),
		)
		if err != nil {
			t.logger.Error("failed to insert events into database", "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
			span.SetAttributes(attribute.Int("rows.inserted", len(batchCopy)))
		}
	}(batch)
}
