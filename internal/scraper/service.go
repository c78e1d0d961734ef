package scraper

import (
	"context"
	"log/slog"
	"time"
)

// PageFetcher renders a wishlist URL and returns the resulting page
// content. Implementations own the rendering session and must release
// it on every exit path.
type PageFetcher interface {
	FetchRenderedPage(ctx context.Context, url string, timeout time.Duration) (string, error)
}

// Service orchestrates one scrape attempt: fetch the rendered page,
// extract items, classify the outcome. Each call is a single
// best-effort attempt; retry policy belongs to the caller.
type Service struct {
	fetcher   PageFetcher
	extractor *Extractor
	timeout   time.Duration
	logger    *slog.Logger
}

func NewService(fetcher PageFetcher, extractor *Extractor, timeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		fetcher:   fetcher,
		extractor: extractor,
		timeout:   timeout,
		logger:    logger.With("component", "scraper"),
	}
}

// Scrape resolves url into exactly one of the four result variants.
// It never returns an error: faults that escape the fetch or parse
// become StatusTransientError.
func (s *Service) Scrape(ctx context.Context, url string) Result {
	start := time.Now()

	html, err := s.fetcher.FetchRenderedPage(ctx, url, s.timeout)
	if err != nil {
		s.logger.Error("page fetch failed", "url", url, "error", err)
		return TransientFailure(err)
	}

	page, err := s.extractor.ParsePage(html, time.Now())
	if err != nil {
		s.logger.Error("page parse failed", "url", url, "error", err)
		return TransientFailure(err)
	}

	result := Classify(page)

	s.logger.Info("scrape attempt finished",
		"url", url,
		"status", result.Status.String(),
		"items", len(result.Items),
		"duration", time.Since(start))

	return result
}
