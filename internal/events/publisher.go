package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pricegrove/wishlist-tracker/internal/database"
)

type EventType string

const (
	// EventTypeWishlistScraped is published after a usable scrape has
	// been reconciled into the catalog.
	EventTypeWishlistScraped EventType = "WISHLIST_SCRAPED"
)

// WishlistScrapedPayload describes one completed ingestion pass.
type WishlistScrapedPayload struct {
	EventID          string    `json:"event_id"`
	EventType        string    `json:"event_type"`
	Timestamp        time.Time `json:"timestamp"`
	CollectionID     int64     `json:"collection_id"`
	WishlistURL      string    `json:"wishlist_url"`
	WishlistName     string    `json:"wishlist_name"`
	ItemsSeen        int       `json:"items_seen"`
	PricePointsAdded int       `json:"price_points_added"`
	Source           string    `json:"source"`
}

// Publisher writes ingestion events through the transactional outbox;
// the relay delivers them to the redis stream.
type Publisher struct {
	db     *database.DB
	outbox *database.OutboxRepository
	logger *slog.Logger
}

func NewPublisher(db *database.DB, logger *slog.Logger) *Publisher {
	return &Publisher{
		db:     db,
		outbox: database.NewOutboxRepository(db),
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishWishlistScraped records a WISHLIST_SCRAPED event in the outbox.
func (p *Publisher) PublishWishlistScraped(ctx context.Context, payload *WishlistScrapedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeWishlistScraped)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}
	if payload.Source == "" {
		payload.Source = "wishlist-tracker"
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "collection",
		AggregateID:   strconv.FormatInt(payload.CollectionID, 10),
		EventType:     string(EventTypeWishlistScraped),
		Payload:       data,
		TargetStream:  database.DefaultTargetStream,
	}

	err = p.db.Transaction(ctx, func(tx pgx.Tx) error {
		return p.outbox.InsertWithTx(ctx, tx, outboxEvent)
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"collection_id", payload.CollectionID,
		"outbox_id", outboxEvent.ID,
	)

	return nil
}
