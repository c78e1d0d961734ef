package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

var ErrProductNotFound = errors.New("product not found")

// Product is one catalog entry, scoped to a single collection.
// Name, URL and image are captured at first sighting and never
// refreshed afterwards; history lives in price points, not metadata.
type Product struct {
	ID           int64     `json:"id"`
	CollectionID int64     `json:"collection_id"`
	ASIN         string    `json:"asin"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Image        string    `json:"image"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewProduct carries the fields of a product about to be created.
type NewProduct struct {
	CollectionID int64
	ASIN         string
	Name         string
	URL          string
	Image        string
}

// PricePoint is one immutable price observation. A nil price means the
// item was observed but its price was unavailable.
type PricePoint struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	Price      *float64  `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

// ProductHistory is a product together with its ordered price history.
type ProductHistory struct {
	Product
	History []PricePoint `json:"price_history"`
}

// ProductsByASIN loads the ids of the collection's existing products
// whose code is in asins, as one batched lookup.
func (db *DB) ProductsByASIN(ctx context.Context, tx pgx.Tx, collectionID int64, asins []string) (map[string]int64, error) {
	if len(asins) == 0 {
		return map[string]int64{}, nil
	}

	rows, err := tx.Query(ctx,
		`SELECT asin, id FROM products WHERE collection_id = $1 AND asin = ANY($2)`,
		collectionID, asins)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by asin: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]int64, len(asins))
	for rows.Next() {
		var asin string
		var id int64
		if err := rows.Scan(&asin, &id); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		existing[asin] = id
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return existing, nil
}

// InsertProduct creates a product and returns its identity immediately
// so price points can reference it within the same transaction.
func (db *DB) InsertProduct(ctx context.Context, tx pgx.Tx, p NewProduct) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`INSERT INTO products (collection_id, asin, name, url, image)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		p.CollectionID, p.ASIN, p.Name, p.URL, p.Image).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}
	return id, nil
}

// InsertPricePoint appends one observation to a product's history.
func (db *DB) InsertPricePoint(ctx context.Context, tx pgx.Tx, productID, collectionID int64, price *float64, observedAt time.Time) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO price_points (product_id, collection_id, price, observed_at)
		 VALUES ($1, $2, $3, $4)`,
		productID, collectionID, price, observedAt)
	if err != nil {
		return fmt.Errorf("failed to insert price point: %w", err)
	}
	return nil
}

// ListProducts returns the products registered for a collection.
func (db *DB) ListProducts(ctx context.Context, collectionID int64) ([]*Product, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, collection_id, asin, name, url, image, created_at
		 FROM products
		 WHERE collection_id = $1
		 ORDER BY created_at`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p := &Product{}
		err := rows.Scan(&p.ID, &p.CollectionID, &p.ASIN, &p.Name, &p.URL, &p.Image, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return products, nil
}

// GetProductHistory returns a product and its full price history in
// observation order.
func (db *DB) GetProductHistory(ctx context.Context, collectionID int64, asin string) (*ProductHistory, error) {
	h := &ProductHistory{History: []PricePoint{}}

	err := db.pool.QueryRow(ctx,
		`SELECT id, collection_id, asin, name, url, image, created_at
		 FROM products
		 WHERE collection_id = $1 AND asin = $2`, collectionID, asin).
		Scan(&h.ID, &h.CollectionID, &h.ASIN, &h.Name, &h.URL, &h.Image, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, product_id, price, observed_at
		 FROM price_points
		 WHERE product_id = $1
		 ORDER BY observed_at, id`, h.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pp PricePoint
		if err := rows.Scan(&pp.ID, &pp.ProductID, &pp.Price, &pp.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		h.History = append(h.History, pp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return h, nil
}
