package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pricegrove/wishlist-tracker/internal/events"
	"github.com/pricegrove/wishlist-tracker/internal/queue"
	"github.com/pricegrove/wishlist-tracker/internal/ratelimit"
	"github.com/pricegrove/wishlist-tracker/internal/scraper"
	"github.com/pricegrove/wishlist-tracker/internal/storage"
)

// ErrScrapeInFlight is returned when a scrape for the same collection
// is already queued or running. Serializing per collection keeps the
// reconciler's check-then-create step race free.
var ErrScrapeInFlight = errors.New("a scrape for this collection is already in flight")

// ScrapeService runs one scrape attempt.
type ScrapeService interface {
	Scrape(ctx context.Context, url string) scraper.Result
}

// Ingestor reconciles scraped items into the catalog.
type Ingestor interface {
	Ingest(ctx context.Context, collectionID int64, items []scraper.Item) (int, error)
}

// EventPublisher announces completed ingestion passes.
type EventPublisher interface {
	PublishWishlistScraped(ctx context.Context, payload *events.WishlistScrapedPayload) error
}

// CollectionNamer records the wishlist display name seen on a scrape.
type CollectionNamer interface {
	SetCollectionName(ctx context.Context, id int64, name string) error
}

// Outcome is what a submitted scrape job eventually resolves to.
type Outcome struct {
	Result         scraper.Result
	ItemsProcessed int
	Err            error
}

// Manager owns the scrape job queue: it accepts submissions from the
// request path, guards against concurrent scrapes of one collection,
// and hands each caller a future for the outcome.
type Manager struct {
	queue     *queue.InMemoryQueue
	scraper   ScrapeService
	ingestor  Ingestor
	publisher EventPublisher
	namer     CollectionNamer
	limiter   *ratelimit.AdaptiveRateLimiter
	archive   *storage.FailureArchive // optional
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[int64]struct{}
	waiters  map[string]chan Outcome
}

type ManagerOptions struct {
	Scraper   ScrapeService
	Ingestor  Ingestor
	Publisher EventPublisher
	Namer     CollectionNamer
	Limiter   *ratelimit.AdaptiveRateLimiter
	Archive   *storage.FailureArchive
	Logger    *slog.Logger
}

func NewManager(opts ManagerOptions) *Manager {
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewAdaptiveRateLimiter(time.Second, 3*time.Second)
	}

	return &Manager{
		queue:     queue.NewInMemoryQueue(),
		scraper:   opts.Scraper,
		ingestor:  opts.Ingestor,
		publisher: opts.Publisher,
		namer:     opts.Namer,
		limiter:   limiter,
		archive:   opts.Archive,
		logger:    opts.Logger.With("component", "job_manager"),
		inflight:  make(map[int64]struct{}),
		waiters:   make(map[string]chan Outcome),
	}
}

// Submit queues one scrape of url for collectionID and returns a
// future carrying the outcome. At most one scrape per collection is in
// flight at a time.
func (m *Manager) Submit(collectionID int64, url string) (<-chan Outcome, error) {
	m.mu.Lock()
	if _, busy := m.inflight[collectionID]; busy {
		m.mu.Unlock()
		return nil, ErrScrapeInFlight
	}
	m.inflight[collectionID] = struct{}{}

	task := &queue.Task{
		ID:           uuid.New().String(),
		CollectionID: collectionID,
		URL:          url,
		EnqueuedAt:   time.Now(),
	}

	// Buffered so a worker never blocks on a caller that gave up.
	result := make(chan Outcome, 1)
	m.waiters[task.ID] = result
	m.mu.Unlock()

	if err := m.queue.Push(task); err != nil {
		m.release(task)
		return nil, err
	}

	m.logger.Info("scrape queued",
		"task_id", task.ID,
		"collection_id", collectionID,
		"url", url)

	return result, nil
}

// QueueSize reports how many scrapes are waiting for a worker.
func (m *Manager) QueueSize() int {
	return m.queue.Size()
}

// Close stops accepting new tasks and unblocks idle workers.
func (m *Manager) Close() error {
	return m.queue.Close()
}

// resolve delivers the outcome to the waiting caller and frees the
// collection for the next scrape.
func (m *Manager) resolve(task *queue.Task, outcome Outcome) {
	m.mu.Lock()
	waiter := m.waiters[task.ID]
	delete(m.waiters, task.ID)
	delete(m.inflight, task.CollectionID)
	m.mu.Unlock()

	if waiter != nil {
		waiter <- outcome
	}
}

func (m *Manager) release(task *queue.Task) {
	m.mu.Lock()
	delete(m.waiters, task.ID)
	delete(m.inflight, task.CollectionID)
	m.mu.Unlock()
}
