package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pricegrove/wishlist-tracker/internal/database"
	"github.com/pricegrove/wishlist-tracker/internal/scraper"
)

// ErrBadTimestamp flags a malformed capture timestamp reaching the
// reconciler. Unlike page structure, capture timestamps are produced
// internally, so a bad one is a data integrity fault that aborts the
// whole batch instead of being dropped quietly.
var ErrBadTimestamp = errors.New("malformed capture timestamp")

// Store is the slice of the catalog persistence API the reconciler
// needs. *database.DB satisfies it.
type Store interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
	ProductsByASIN(ctx context.Context, tx pgx.Tx, collectionID int64, asins []string) (map[string]int64, error)
	InsertProduct(ctx context.Context, tx pgx.Tx, p database.NewProduct) (int64, error)
	InsertPricePoint(ctx context.Context, tx pgx.Tx, productID, collectionID int64, price *float64, observedAt time.Time) error
}

// Reconciler merges scraped items into the persistent catalog: new
// products are created on first sighting, and every priced observation
// appends to the product's history. All writes for one call happen in
// a single transaction.
type Reconciler struct {
	store  Store
	logger *slog.Logger
}

func NewReconciler(store Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger.With("component", "reconciler"),
	}
}

// Ingest reconciles items against collectionID and returns the number
// of items that produced a price point.
//
// Items whose catalog code could not be derived are skipped: without a
// code there is no identity to reconcile against. Items with a nil
// price still create (or find) their product but never append history;
// an unobservable price leaves no observation. Product metadata is
// never refreshed after first sighting.
func (r *Reconciler) Ingest(ctx context.Context, collectionID int64, items []scraper.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	appended := 0
	err := r.store.Transaction(ctx, func(tx pgx.Tx) error {
		existing, err := r.store.ProductsByASIN(ctx, tx, collectionID, distinctCodes(items))
		if err != nil {
			return err
		}

		for _, item := range items {
			if item.ASIN == "" {
				r.logger.Warn("item without catalog code skipped",
					"collection_id", collectionID, "link", item.Link)
				continue
			}

			productID, ok := existing[item.ASIN]
			if !ok {
				productID, err = r.store.InsertProduct(ctx, tx, database.NewProduct{
					CollectionID: collectionID,
					ASIN:         item.ASIN,
					Name:         item.Name,
					URL:          item.Link,
					Image:        item.Image,
				})
				if err != nil {
					return err
				}
				existing[item.ASIN] = productID
			}

			if item.Price == nil {
				continue
			}

			observedAt, err := time.Parse(scraper.CaptureTimeLayout, item.CapturedAt)
			if err != nil {
				return fmt.Errorf("%w: %q: %v", ErrBadTimestamp, item.CapturedAt, err)
			}

			if err := r.store.InsertPricePoint(ctx, tx, productID, collectionID, item.Price, observedAt); err != nil {
				return err
			}
			appended++
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to ingest batch for collection %d: %w", collectionID, err)
	}

	r.logger.Info("batch ingested",
		"collection_id", collectionID,
		"items", len(items),
		"price_points", appended)

	return appended, nil
}

// distinctCodes collects the set of catalog codes present in the
// batch, preserving first-seen order.
func distinctCodes(items []scraper.Item) []string {
	seen := make(map[string]struct{}, len(items))
	var codes []string
	for _, item := range items {
		if item.ASIN == "" {
			continue
		}
		if _, ok := seen[item.ASIN]; ok {
			continue
		}
		seen[item.ASIN] = struct{}{}
		codes = append(codes, item.ASIN)
	}
	return codes
}
