package outbox

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Ameur-sidahmed/Stocks-backend/applog"
	"github.com/Ameur-sidahmed/Stocks-backend/store"
)

// MaxAttempts is how many publish failures an event may collect before the
// relay stops picking it up.
const MaxAttempts = 10

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx store.Tx) error) error
}

// Relay moves committed outbox rows to the broker. Delivery is at least once:
// a batch whose bookkeeping fails is rolled back and retried as a whole.
type Relay struct {
	db        TxRunner
	publisher Publisher
	logger    *zap.Logger
	batchSize int
	interval  time.Duration
	tracer    trace.Tracer
}

func NewRelay(db TxRunner, publisher Publisher, logger *zap.Logger, batchSize int, interval time.Duration) *Relay {
	return &Relay{
		db:        db,
		publisher: publisher,
		logger:    logger,
		batchSize: batchSize,
		interval:  interval,
		tracer:    otel.Tracer("outbox-relay"),
	}
}

// Start blocks until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) {
	applog.Info(ctx, r.logger, "starting outbox relay",
		zap.Int("batch_size", r.batchSize), zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			applog.Info(context.WithoutCancel(ctx), r.logger, "outbox relay stopping")
			return
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				applog.Error(ctx, r.logger, "outbox batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes up to batchSize pending events and returns how many
// were marked published.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := r.tracer.Start(ctx, "Relay.ProcessBatch")
	defer span.End()

	published := 0
	err := r.db.WithTx(ctx, func(tx store.Tx) error {
		published = 0

		events, err := tx.PendingEvents(ctx, MaxAttempts, r.batchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		applog.Debug(ctx, r.logger, "processing outbox events", zap.Int("count", len(events)))

		for _, ev := range events {
			if err := r.publisher.Publish(ctx, ev.Topic, ev.AggregateID, ev.Payload); err != nil {
				applog.Warn(ctx, r.logger, "publish outbox event failed",
					zap.Int64("event_id", ev.ID),
					zap.String("event_type", ev.EventType),
					zap.Int("attempts", ev.Attempts+1),
					zap.Error(err),
				)
				if mErr := tx.MarkEventFailed(ctx, ev.ID, err.Error()); mErr != nil {
					return mErr
				}
				continue
			}

			if err := tx.MarkEventPublished(ctx, ev.ID); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	span.SetAttributes(attribute.Int("published", published))
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return published, nil
}
