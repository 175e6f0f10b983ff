package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ai-learning-tracker/tracker/internal/logging"
	"github.com/ai-learning-tracker/tracker/internal/models"
	"github.com/ai-learning-tracker/tracker/internal/store"
)

const (
	// MaxContextDocuments caps how many documents are handed to the answerer.
	MaxContextDocuments = 5

	NoDocumentsAnswer = "죄송합니다. 현재 검색할 수 있는 문서가 없습니다. 데이터베이스에 문서가 아직 인덱싱되지 않았습니다."
)

var ErrEmptyQuery = errors.New("query cannot be empty")

// Answerer writes an answer to query using docs as context.
type Answerer interface {
	Answer(ctx context.Context, query string, docs []store.Document) (string, error)
}

type ChatStore interface {
	GetCachedResponse(hash string) (*store.CacheEntry, error)
	SaveCachedResponse(e store.CacheEntry) error
	InvalidateCache(hash string) (bool, error)
	ListDocuments(limit int) ([]store.Document, error)
	CountDocuments() (int, error)
}

type ChatService struct {
	store    ChatStore
	answerer Answerer
	cacheTTL time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewChatService(db ChatStore, answerer Answerer, cacheTTL time.Duration, logger *zap.Logger) *ChatService {
	return &ChatService{
		store:    db,
		answerer: answerer,
		cacheTTL: cacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logging.OrNop(logger),
	}
}

// QueryHash keys the exact-match cache: case and runs of whitespace are
// ignored.
func QueryHash(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:32]
}

// Ask answers query from the cache when possible, otherwise through the
// answerer, caching the result.
func (s *ChatService) Ask(ctx context.Context, query string) (*models.ChatResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	hash := QueryHash(query)

	cached, err := s.store.GetCachedResponse(hash)
	if err != nil {
		// A broken cache should not take chat down with it.
		s.logger.Warn("cache lookup failed", zap.String("query_hash", hash), zap.Error(err))
	}
	if cached != nil {
		s.logger.Debug("cache hit", zap.String("query_hash", hash), zap.Int("hit_count", cached.HitCount))
		return &models.ChatResponse{Message: s.assistantMessage(cached.Response, cached.Sources), Cached: true}, nil
	}

	docs, err := s.store.ListDocuments(MaxContextDocuments)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	var answer string
	var sources []models.ChatSource
	if len(docs) == 0 {
		answer = NoDocumentsAnswer
	} else {
		answer, err = s.answerer.Answer(ctx, query, docs)
		if err != nil {
			return nil, fmt.Errorf("failed to generate answer: %w", err)
		}
		sources = documentSources(docs)
	}

	entry := store.CacheEntry{
		QueryHash: hash,
		QueryText: query,
		Response:  answer,
		Sources:   sources,
		ExpiresAt: s.now().Add(s.cacheTTL),
	}
	if err := s.store.SaveCachedResponse(entry); err != nil {
		s.logger.Warn("failed to cache answer", zap.String("query_hash", hash), zap.Error(err))
	}

	return &models.ChatResponse{Message: s.assistantMessage(answer, sources), Cached: false}, nil
}

// Forget drops the cached answer for query. It reports whether one existed.
func (s *ChatService) Forget(query string) (bool, error) {
	hash := QueryHash(query)
	removed, err := s.store.InvalidateCache(hash)
	if err != nil {
		return false, fmt.Errorf("failed to invalidate cache entry %s: %w", hash, err)
	}
	return removed, nil
}

// documentSources cites every context document. No ranking happens here, so
// relevance scores stay unset.
func documentSources(docs []store.Document) []models.ChatSource {
	sources := make([]models.ChatSource, len(docs))
	for i, d := range docs {
		sources[i] = models.ChatSource{Title: d.Title, URL: d.URL, Type: d.Type}
	}
	return sources
}

func (s *ChatService) assistantMessage(content string, sources []models.ChatSource) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   content,
		Sources:   sources,
		CreatedAt: s.now(),
	}
}

func (s *ChatService) Stats() (models.ChatStats, error) {
	n, err := s.store.CountDocuments()
	if err != nil {
		return models.ChatStats{}, err
	}
	status := models.StatsNoDocuments
	if n > 0 {
		status = models.StatsReady
	}
	return models.ChatStats{DocumentCount: n, Status: status}, nil
}
