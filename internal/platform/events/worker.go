package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const defaultPollInterval = 2 * time.Second

// Worker drains the outbox: it publishes pending events in order and marks
// them published. Publish failures leave rows pending, so delivery is
// at-least-once and consumers must deduplicate on event id.
type Worker struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewWorker(store Store, publisher Publisher, logger *slog.Logger) *Worker {
	return &Worker{
		store:     store,
		publisher: publisher,
		logger:    logger,
		interval:  defaultPollInterval,
		batchSize: 100,
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch of pending events. Exposed for tests and for a
// final flush during shutdown.
func (w *Worker) Drain(ctx context.Context) error {
	pending, err := w.store.ListPending(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(pending))
	for _, event := range pending {
		if err := w.publisher.Publish(ctx, event); err != nil {
			// Stop at the first failure to preserve per-register ordering.
			w.logger.WarnContext(ctx, "publish sale event failed",
				"event_id", event.ID,
				"sale_id", event.SaleID,
				"error", err,
			)
			break
		}
		published = append(published, event.ID)
	}
	if len(published) == 0 {
		return nil
	}
	return w.store.MarkPublished(ctx, published)
}
