package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricegrove/wishlist-tracker/internal/database"
	"github.com/pricegrove/wishlist-tracker/internal/jobs"
	"github.com/pricegrove/wishlist-tracker/internal/scraper"
)

const validURL = "https://www.amazon.com.br/hz/wishlist/ls/ABC123XYZ"

type fakeStore struct {
	collections []*database.Collection
	products    []*database.Product
	history     *database.ProductHistory
	deleteErr   error
	historyErr  error
	deletedID   int64
	ensuredURL  string
}

func (s *fakeStore) EnsureCollection(_ context.Context, url string) (*database.Collection, error) {
	s.ensuredURL = url
	return &database.Collection{ID: 42, URL: url}, nil
}

func (s *fakeStore) ListCollections(context.Context) ([]*database.Collection, error) {
	return s.collections, nil
}

func (s *fakeStore) DeleteCollection(_ context.Context, id int64) error {
	s.deletedID = id
	return s.deleteErr
}

func (s *fakeStore) ListProducts(context.Context, int64) ([]*database.Product, error) {
	return s.products, nil
}

func (s *fakeStore) GetProductHistory(context.Context, int64, string) (*database.ProductHistory, error) {
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return s.history, nil
}

type fakeSubmitter struct {
	outcome jobs.Outcome
	err     error
}

func (s *fakeSubmitter) Submit(int64, string) (<-chan jobs.Outcome, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan jobs.Outcome, 1)
	ch <- s.outcome
	return ch, nil
}

func newTestRouter(store *fakeStore, submitter *fakeSubmitter) http.Handler {
	h := NewHandlers(store, submitter, slog.Default())

	r := chi.NewRouter()
	r.Post("/api/v1/wishlists/scrape", h.ScrapeWishlist)
	r.Get("/api/v1/collections", h.ListCollections)
	r.Delete("/api/v1/collections/{collectionID}", h.DeleteCollection)
	r.Get("/api/v1/collections/{collectionID}/products", h.ListProducts)
	r.Get("/api/v1/collections/{collectionID}/products/{asin}/history", h.GetProductHistory)
	return r
}

func postScrape(t *testing.T, router http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(ScrapeRequest{URL: url})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wishlists/scrape", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestScrapeWishlistSuccess(t *testing.T) {
	store := &fakeStore{}
	submitter := &fakeSubmitter{outcome: jobs.Outcome{
		Result: scraper.Result{
			Status:   scraper.StatusUsable,
			ListName: "Presentes",
		},
		ItemsProcessed: 3,
	}}

	rec := postScrape(t, newTestRouter(store, submitter), validURL)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, validURL, store.ensuredURL)

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.CollectionID)
	assert.Equal(t, "Presentes", resp.WishlistName)
	assert.Equal(t, 3, resp.ItemsProcessed)
}

func TestScrapeWishlistRejectsBadURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"not amazon", "https://example.com/hz/wishlist/ls/ABC"},
		{"not a wishlist path", "https://www.amazon.com.br/dp/B0A1B2C3D4"},
	}

	router := newTestRouter(&fakeStore{}, &fakeSubmitter{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postScrape(t, router, tt.url)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestScrapeWishlistInvalidBody(t *testing.T) {
	router := newTestRouter(&fakeStore{}, &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wishlists/scrape", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeWishlistAlreadyInFlight(t *testing.T) {
	submitter := &fakeSubmitter{err: jobs.ErrScrapeInFlight}
	rec := postScrape(t, newTestRouter(&fakeStore{}, submitter), validURL)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScrapeWishlistOutcomeStatuses(t *testing.T) {
	tests := []struct {
		name     string
		outcome  jobs.Outcome
		wantCode int
	}{
		{
			name:     "not found",
			outcome:  jobs.Outcome{Result: scraper.Result{Status: scraper.StatusNotFound, Message: "wishlist not found"}},
			wantCode: http.StatusNotFound,
		},
		{
			name:     "empty or private",
			outcome:  jobs.Outcome{Result: scraper.Result{Status: scraper.StatusEmptyOrPrivate, Message: "wishlist is empty or private"}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "transient",
			outcome:  jobs.Outcome{Result: scraper.Result{Status: scraper.StatusTransientError, Message: "navigation timeout"}},
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "ingest failure",
			outcome:  jobs.Outcome{Err: assert.AnError},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postScrape(t, newTestRouter(&fakeStore{}, &fakeSubmitter{outcome: tt.outcome}), validURL)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestListCollectionsEmpty(t *testing.T) {
	router := newTestRouter(&fakeStore{}, &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/collections", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// nil slice still renders as an empty JSON array.
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestDeleteCollection(t *testing.T) {
	store := &fakeStore{}
	router := newTestRouter(store, &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/collections/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(42), store.deletedID)
}

func TestDeleteCollectionNotFound(t *testing.T) {
	store := &fakeStore{deleteErr: database.ErrCollectionNotFound}
	router := newTestRouter(store, &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/collections/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteCollectionBadID(t *testing.T) {
	router := newTestRouter(&fakeStore{}, &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/collections/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProductHistory(t *testing.T) {
	store := &fakeStore{history: &database.ProductHistory{
		Product: database.Product{ID: 7, CollectionID: 42, ASIN: "B0A1B2C3D4", Name: "Echo Dot"},
	}}
	router := newTestRouter(store, &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/collections/42/products/B0A1B2C3D4/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var history database.ProductHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Equal(t, "B0A1B2C3D4", history.ASIN)
}

func TestGetProductHistoryNotFound(t *testing.T) {
	store := &fakeStore{historyErr: database.ErrProductNotFound}
	router := newTestRouter(store, &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/collections/42/products/B0MISSING0/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidWishlistURL(t *testing.T) {
	assert.True(t, ValidWishlistURL("https://www.amazon.com.br/hz/wishlist/ls/ABC123"))
	assert.True(t, ValidWishlistURL("https://www.amazon.com/hz/wishlist/ls/XYZ"))
	assert.False(t, ValidWishlistURL("https://www.amazon.com.br/dp/B0A1B2C3D4"))
	assert.False(t, ValidWishlistURL("https://lista.example.com/hz/wishlist/ls/ABC"))
}
