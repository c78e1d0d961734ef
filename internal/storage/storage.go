package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// FailureRecord is one archived non-usable scrape outcome, kept on
// disk for later inspection of flaky or dead wishlists.
type FailureRecord struct {
	URL          string    `json:"url"`
	CollectionID int64     `json:"collection_id"`
	Status       string    `json:"status"` // not_found, empty_or_private, transient_error
	Message      string    `json:"message"`
	Attempts     int       `json:"attempts"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// FailureArchive is a small JSON-file index of failed scrape attempts,
// keyed by wishlist URL.
type FailureArchive struct {
	mu       sync.RWMutex
	records  map[string]*FailureRecord
	filename string
}

func NewFailureArchive(filename string) (*FailureArchive, error) {
	a := &FailureArchive{
		records:  make(map[string]*FailureRecord),
		filename: filename,
	}

	if err := a.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return a, nil
}

// Record notes one failed attempt, folding repeats of the same URL
// into a single record with an attempt counter.
func (a *FailureArchive) Record(url string, collectionID int64, status, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if url == "" {
		return fmt.Errorf("url is required")
	}

	now := time.Now()
	rec, exists := a.records[url]
	if !exists {
		rec = &FailureRecord{
			URL:          url,
			CollectionID: collectionID,
			FirstSeenAt:  now,
		}
		a.records[url] = rec
	}

	rec.Status = status
	rec.Message = message
	rec.Attempts++
	rec.LastSeenAt = now

	return a.save()
}

func (a *FailureArchive) Get(url string) (*FailureRecord, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rec, exists := a.records[url]
	return rec, exists
}

// Clear drops the record for url, typically after a scrape recovers.
func (a *FailureArchive) Clear(url string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.records[url]; !exists {
		return nil
	}
	delete(a.records, url)
	return a.save()
}

func (a *FailureArchive) Stats() map[string]int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := make(map[string]int)
	for _, rec := range a.records {
		stats[rec.Status]++
	}
	stats["total"] = len(a.records)
	return stats
}

func (a *FailureArchive) save() error {
	data, err := json.MarshalIndent(a.records, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first for atomicity
	tmpFile := a.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, a.filename)
}

func (a *FailureArchive) load() error {
	data, err := os.ReadFile(a.filename)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &a.records)
}
