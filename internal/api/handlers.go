package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pricegrove/wishlist-tracker/internal/database"
	"github.com/pricegrove/wishlist-tracker/internal/jobs"
	"github.com/pricegrove/wishlist-tracker/internal/scraper"
)

// CatalogStore is the persistence surface the handlers read from.
// *database.DB satisfies it.
type CatalogStore interface {
	EnsureCollection(ctx context.Context, url string) (*database.Collection, error)
	ListCollections(ctx context.Context) ([]*database.Collection, error)
	DeleteCollection(ctx context.Context, id int64) error
	ListProducts(ctx context.Context, collectionID int64) ([]*database.Product, error)
	GetProductHistory(ctx context.Context, collectionID int64, asin string) (*database.ProductHistory, error)
}

// ScrapeSubmitter queues a scrape and returns a future for its outcome.
type ScrapeSubmitter interface {
	Submit(collectionID int64, url string) (<-chan jobs.Outcome, error)
}

type Handlers struct {
	store  CatalogStore
	jobs   ScrapeSubmitter
	logger *slog.Logger
}

func NewHandlers(store CatalogStore, jobs ScrapeSubmitter, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:  store,
		jobs:   jobs,
		logger: logger,
	}
}

// ScrapeRequest asks for one scrape-and-ingest pass of a wishlist URL.
type ScrapeRequest struct {
	URL string `json:"url"`
}

// ScrapeResponse reports a successful pass.
type ScrapeResponse struct {
	Message        string `json:"message"`
	CollectionID   int64  `json:"collection_id"`
	WishlistName   string `json:"wishlist_name"`
	ItemsProcessed int    `json:"items_processed"`
}

// ScrapeWishlist validates the wishlist URL, registers the collection,
// queues the scrape, and waits for the outcome.
func (h *Handlers) ScrapeWishlist(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !ValidWishlistURL(req.URL) {
		h.respondError(w, http.StatusBadRequest, "the provided URL does not look like a wishlist URL")
		return
	}

	collection, err := h.store.EnsureCollection(r.Context(), req.URL)
	if err != nil {
		h.logger.Error("failed to register collection", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to register wishlist")
		return
	}

	outcome, err := h.jobs.Submit(collection.ID, collection.URL)
	if err != nil {
		if errors.Is(err, jobs.ErrScrapeInFlight) {
			h.respondError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to queue scrape", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to queue scrape")
		return
	}

	select {
	case <-r.Context().Done():
		h.respondError(w, http.StatusGatewayTimeout, "scrape did not finish in time")
	case result := <-outcome:
		h.respondScrapeOutcome(w, collection, result)
	}
}

// respondScrapeOutcome maps the four scrape result variants onto HTTP
// statuses: not-found → 404, empty/private → 400, everything else
// that failed → 502.
func (h *Handlers) respondScrapeOutcome(w http.ResponseWriter, collection *database.Collection, outcome jobs.Outcome) {
	if outcome.Err != nil {
		h.logger.Error("scrape job failed", "collection_id", collection.ID, "error", outcome.Err)
		h.respondError(w, http.StatusInternalServerError, "failed to process wishlist")
		return
	}

	switch outcome.Result.Status {
	case scraper.StatusUsable:
		h.respondJSON(w, http.StatusOK, ScrapeResponse{
			Message:        "wishlist scraped successfully",
			CollectionID:   collection.ID,
			WishlistName:   outcome.Result.ListName,
			ItemsProcessed: outcome.ItemsProcessed,
		})
	case scraper.StatusNotFound:
		h.respondError(w, http.StatusNotFound, outcome.Result.Message)
	case scraper.StatusEmptyOrPrivate:
		h.respondError(w, http.StatusBadRequest, outcome.Result.Message)
	case scraper.StatusTransientError:
		h.respondError(w, http.StatusBadGateway, outcome.Result.Message)
	default:
		h.respondError(w, http.StatusInternalServerError, "unknown scrape outcome")
	}
}

// ListCollections returns every registered wishlist.
func (h *Handlers) ListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := h.store.ListCollections(r.Context())
	if err != nil {
		h.logger.Error("failed to list collections", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list collections")
		return
	}
	if collections == nil {
		collections = []*database.Collection{}
	}

	h.respondJSON(w, http.StatusOK, collections)
}

// DeleteCollection removes a wishlist and, via cascade, its products
// and price history.
func (h *Handlers) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	id, ok := h.collectionID(w, r)
	if !ok {
		return
	}

	err := h.store.DeleteCollection(r.Context(), id)
	if errors.Is(err, database.ErrCollectionNotFound) {
		h.respondError(w, http.StatusNotFound, "collection not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete collection", "id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to delete collection")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListProducts returns product summaries for one collection.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.collectionID(w, r)
	if !ok {
		return
	}

	products, err := h.store.ListProducts(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list products", "collection_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []*database.Product{}
	}

	h.respondJSON(w, http.StatusOK, products)
}

// GetProductHistory returns a product and its ordered price history.
func (h *Handlers) GetProductHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.collectionID(w, r)
	if !ok {
		return
	}

	asin := chi.URLParam(r, "asin")
	if asin == "" {
		h.respondError(w, http.StatusBadRequest, "asin is required")
		return
	}

	history, err := h.store.GetProductHistory(r.Context(), id, asin)
	if errors.Is(err, database.ErrProductNotFound) {
		h.respondError(w, http.StatusNotFound, "product not found in this collection")
		return
	}
	if err != nil {
		h.logger.Error("failed to get product history",
			"collection_id", id, "asin", asin, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get product history")
		return
	}

	h.respondJSON(w, http.StatusOK, history)
}

// ValidWishlistURL checks the caller-supplied URL against the expected
// marketplace wishlist path shape before any scrape is attempted.
func ValidWishlistURL(url string) bool {
	return strings.Contains(url, "amazon.com") && strings.Contains(url, "/hz/wishlist/ls/")
}

func (h *Handlers) collectionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "collectionID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid collection id")
		return 0, false
	}
	return id, true
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
