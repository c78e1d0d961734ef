package jobs

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricegrove/wishlist-tracker/internal/events"
	"github.com/pricegrove/wishlist-tracker/internal/ratelimit"
	"github.com/pricegrove/wishlist-tracker/internal/scraper"
)

type fakeScraper struct {
	mu      sync.Mutex
	results map[string]scraper.Result
	calls   []string
}

func (s *fakeScraper) Scrape(_ context.Context, url string) scraper.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, url)
	if result, ok := s.results[url]; ok {
		return result
	}
	return scraper.Result{Status: scraper.StatusUsable, ListName: "Lista"}
}

type fakeIngestor struct {
	mu        sync.Mutex
	err       error
	processed int
	batches   [][]scraper.Item
}

func (i *fakeIngestor) Ingest(_ context.Context, _ int64, items []scraper.Item) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.batches = append(i.batches, items)
	if i.err != nil {
		return 0, i.err
	}
	return i.processed, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []*events.WishlistScrapedPayload
}

func (p *fakePublisher) PublishWishlistScraped(_ context.Context, payload *events.WishlistScrapedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

type fakeNamer struct {
	mu    sync.Mutex
	names map[int64]string
}

func (n *fakeNamer) SetCollectionName(_ context.Context, id int64, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.names == nil {
		n.names = make(map[int64]string)
	}
	n.names[id] = name
	return nil
}

func newTestManager(s *fakeScraper, i *fakeIngestor, p *fakePublisher, n *fakeNamer) *Manager {
	return NewManager(ManagerOptions{
		Scraper:   s,
		Ingestor:  i,
		Publisher: p,
		Namer:     n,
		Limiter:   ratelimit.NewAdaptiveRateLimiter(0, 0),
		Logger:    slog.Default(),
	})
}

func awaitOutcome(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case outcome := <-ch:
		return outcome
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for scrape outcome")
		return Outcome{}
	}
}

func TestSubmitAndProcessUsableScrape(t *testing.T) {
	url := "https://www.amazon.com.br/hz/wishlist/ls/ABC123"
	price := 99.90
	scr := &fakeScraper{results: map[string]scraper.Result{
		url: {
			Status:   scraper.StatusUsable,
			ListName: "Presentes",
			Items: []scraper.Item{
				{Name: "Echo Dot", ASIN: "B0A1B2C3D4", Price: &price, CapturedAt: "2026-08-28 10:00:00"},
			},
		},
	}}
	ing := &fakeIngestor{processed: 1}
	pub := &fakePublisher{}
	namer := &fakeNamer{}

	m := newTestManager(scr, ing, pub, namer)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartWorkers(ctx, 1)

	ch, err := m.Submit(1, url)
	require.NoError(t, err)

	outcome := awaitOutcome(t, ch)
	require.NoError(t, outcome.Err)
	assert.Equal(t, scraper.StatusUsable, outcome.Result.Status)
	assert.Equal(t, 1, outcome.ItemsProcessed)

	assert.Equal(t, "Presentes", namer.names[1])
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, int64(1), pub.payloads[0].CollectionID)
	assert.Equal(t, 1, pub.payloads[0].ItemsSeen)
	assert.Equal(t, 1, pub.payloads[0].PricePointsAdded)
}

func TestSubmitRejectsInFlightCollection(t *testing.T) {
	m := newTestManager(&fakeScraper{}, &fakeIngestor{}, &fakePublisher{}, &fakeNamer{})
	defer m.Close()

	// No workers running, so the first submission stays queued.
	_, err := m.Submit(1, "https://www.amazon.com.br/hz/wishlist/ls/ABC")
	require.NoError(t, err)

	_, err = m.Submit(1, "https://www.amazon.com.br/hz/wishlist/ls/ABC")
	assert.ErrorIs(t, err, ErrScrapeInFlight)

	// A different collection is unaffected.
	_, err = m.Submit(2, "https://www.amazon.com.br/hz/wishlist/ls/DEF")
	assert.NoError(t, err)

	assert.Equal(t, 2, m.QueueSize())
}

func TestCollectionFreedAfterOutcome(t *testing.T) {
	url := "https://www.amazon.com.br/hz/wishlist/ls/ABC"
	m := newTestManager(&fakeScraper{}, &fakeIngestor{}, &fakePublisher{}, &fakeNamer{})
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartWorkers(ctx, 1)

	ch, err := m.Submit(1, url)
	require.NoError(t, err)
	awaitOutcome(t, ch)

	// The first scrape resolved, so the collection can be scraped again.
	ch, err = m.Submit(1, url)
	require.NoError(t, err)
	awaitOutcome(t, ch)
}

func TestNonUsableScrapeSkipsIngestion(t *testing.T) {
	url := "https://www.amazon.com.br/hz/wishlist/ls/GONE"
	scr := &fakeScraper{results: map[string]scraper.Result{
		url: {Status: scraper.StatusNotFound, Message: "wishlist not found"},
	}}
	ing := &fakeIngestor{}
	pub := &fakePublisher{}

	m := newTestManager(scr, ing, pub, &fakeNamer{})
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartWorkers(ctx, 1)

	ch, err := m.Submit(1, url)
	require.NoError(t, err)

	outcome := awaitOutcome(t, ch)
	require.NoError(t, outcome.Err)
	assert.Equal(t, scraper.StatusNotFound, outcome.Result.Status)
	assert.Equal(t, 0, outcome.ItemsProcessed)

	assert.Empty(t, ing.batches)
	assert.Empty(t, pub.payloads)
}

func TestIngestionFailureSurfacesInOutcome(t *testing.T) {
	ing := &fakeIngestor{err: assert.AnError}
	pub := &fakePublisher{}

	m := newTestManager(&fakeScraper{}, ing, pub, &fakeNamer{})
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartWorkers(ctx, 1)

	ch, err := m.Submit(1, "https://www.amazon.com.br/hz/wishlist/ls/ABC")
	require.NoError(t, err)

	outcome := awaitOutcome(t, ch)
	assert.ErrorIs(t, outcome.Err, assert.AnError)
	assert.Empty(t, pub.payloads)
}

func TestSubmitAfterClose(t *testing.T) {
	m := newTestManager(&fakeScraper{}, &fakeIngestor{}, &fakePublisher{}, &fakeNamer{})
	require.NoError(t, m.Close())

	_, err := m.Submit(1, "https://www.amazon.com.br/hz/wishlist/ls/ABC")
	assert.Error(t, err)
}
