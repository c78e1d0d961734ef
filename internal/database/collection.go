package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

var ErrCollectionNotFound = errors.New("collection not found")

// Collection is a registered wishlist, identified by its stable URL.
type Collection struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// EnsureCollection registers url if it is new and returns the
// collection row either way.
func (db *DB) EnsureCollection(ctx context.Context, url string) (*Collection, error) {
	query := `
		INSERT INTO collections (url)
		VALUES ($1)
		ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url
		RETURNING id, url, name, created_at`

	c := &Collection{}
	err := db.pool.QueryRow(ctx, query, url).Scan(&c.ID, &c.URL, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	return c, nil
}

// SetCollectionName records the display name observed on the latest
// usable scrape.
func (db *DB) SetCollectionName(ctx context.Context, id int64, name string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE collections SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("failed to set collection name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCollectionNotFound
	}
	return nil
}

func (db *DB) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	c := &Collection{}
	err := db.pool.QueryRow(ctx,
		`SELECT id, url, name, created_at FROM collections WHERE id = $1`, id).
		Scan(&c.ID, &c.URL, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return c, nil
}

func (db *DB) ListCollections(ctx context.Context) ([]*Collection, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, url, name, created_at FROM collections ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var collections []*Collection
	for rows.Next() {
		c := &Collection{}
		if err := rows.Scan(&c.ID, &c.URL, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return collections, nil
}

// DeleteCollection removes a collection; its products and price points
// go with it via cascade.
func (db *DB) DeleteCollection(ctx context.Context, id int64) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCollectionNotFound
	}
	return nil
}
