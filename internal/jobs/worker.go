package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pricegrove/wishlist-tracker/internal/events"
	"github.com/pricegrove/wishlist-tracker/internal/queue"
	"github.com/pricegrove/wishlist-tracker/internal/scraper"
)

// StartWorkers launches n scrape workers that drain the queue until
// ctx is done. Each worker handles one scrape at a time; there is no
// parallelism within a single scrape.
func (m *Manager) StartWorkers(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		go m.runWorker(ctx, i)
	}
	m.logger.Info("scrape workers started", "count", n)
}

func (m *Manager) runWorker(ctx context.Context, id int) {
	logger := m.logger.With("worker", id)

	for {
		task, err := m.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrQueueClosed) {
				logger.Info("worker stopping")
				return
			}
			logger.Error("failed to pop task", "error", err)
			continue
		}

		if err := m.limiter.Wait(ctx); err != nil {
			m.resolve(task, Outcome{Err: err})
			return
		}

		m.resolve(task, m.processTask(ctx, logger, task))
	}
}

// processTask runs one scrape end to end: scrape, reconcile, record
// the wishlist name, publish the ingestion event, archive failures.
func (m *Manager) processTask(ctx context.Context, logger *slog.Logger, task *queue.Task) Outcome {
	result := m.scraper.Scrape(ctx, task.URL)

	switch result.Status {
	case scraper.StatusUsable:
		m.limiter.RecordSuccess()
	case scraper.StatusTransientError:
		m.limiter.RecordError()
	}

	if result.Status != scraper.StatusUsable {
		logger.Info("scrape not usable",
			"task_id", task.ID,
			"collection_id", task.CollectionID,
			"status", result.Status.String(),
			"message", result.Message)
		m.archiveFailure(task, result)
		return Outcome{Result: result}
	}

	processed, err := m.ingestor.Ingest(ctx, task.CollectionID, result.Items)
	if err != nil {
		logger.Error("ingestion failed",
			"task_id", task.ID,
			"collection_id", task.CollectionID,
			"error", err)
		return Outcome{Result: result, Err: err}
	}

	if m.namer != nil {
		if err := m.namer.SetCollectionName(ctx, task.CollectionID, result.ListName); err != nil {
			logger.Error("failed to record wishlist name", "task_id", task.ID, "error", err)
		}
	}

	if m.archive != nil {
		if err := m.archive.Clear(task.URL); err != nil {
			logger.Error("failed to clear failure record", "task_id", task.ID, "error", err)
		}
	}

	if m.publisher != nil {
		err := m.publisher.PublishWishlistScraped(ctx, &events.WishlistScrapedPayload{
			CollectionID:     task.CollectionID,
			WishlistURL:      task.URL,
			WishlistName:     result.ListName,
			ItemsSeen:        len(result.Items),
			PricePointsAdded: processed,
		})
		if err != nil {
			logger.Error("failed to publish event", "task_id", task.ID, "error", err)
		}
	}

	logger.Info("scrape completed",
		"task_id", task.ID,
		"collection_id", task.CollectionID,
		"items", len(result.Items),
		"price_points", processed)

	return Outcome{Result: result, ItemsProcessed: processed}
}

func (m *Manager) archiveFailure(task *queue.Task, result scraper.Result) {
	if m.archive == nil {
		return
	}
	err := m.archive.Record(task.URL, task.CollectionID, result.Status.String(), result.Message)
	if err != nil {
		m.logger.Error("failed to archive scrape failure",
			"task_id", task.ID, "error", err)
	}
}
