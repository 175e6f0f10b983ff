package store

import (
	"time"

	"github.com/ai-learning-tracker/tracker/internal/models"
)

// Document is a research document the chat assistant can cite.
type Document struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Type      models.SourceType `json:"type"`
	URL       *string           `json:"url"`
	Content   string            `json:"content"`
	CreatedAt time.Time         `json:"created_at"`
}

// CacheEntry is a stored chat answer keyed by the normalized query hash.
type CacheEntry struct {
	QueryHash string
	QueryText string
	Response  string
	Sources   []models.ChatSource
	HitCount  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the entry can no longer be served at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
