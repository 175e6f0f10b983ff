// Package chat drives a conversation with the research assistant.
//
// A Session holds the conversation for one page visit. Submitting appends the
// user's question immediately, then the assistant's answer when it arrives.
// Only one question may be in flight; a failed send leaves the question in
// place and records a single error.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ai-learning-tracker/tracker/internal/logging"
	"github.com/ai-learning-tracker/tracker/internal/models"
	"github.com/ai-learning-tracker/tracker/internal/session"
)

// FailureMessage is shown under the conversation when a send fails.
const FailureMessage = "메시지 전송에 실패했습니다. 다시 시도해주세요."

var (
	ErrBusy   = errors.New("a message is already being sent")
	ErrClosed = errors.New("chat session closed")
)

var suggestions = []string{
	"Transformer 아키텍처란?",
	"최신 LLM 트렌드",
	"RAG 시스템 설명해줘",
	"Attention mechanism이 뭐야?",
}

// Suggestions are the prompt shortcuts offered on an empty conversation.
func Suggestions() []string {
	return append([]string(nil), suggestions...)
}

type API interface {
	SendChatMessage(ctx context.Context, query string, userID string) (*models.ChatResponse, error)
	GetChatStats(ctx context.Context) (*models.ChatStats, error)
}

// Identity supplies the signed-in user; session.Provider implements it.
type Identity interface {
	Status() session.Status
	Profile() session.Profile
}

type Session struct {
	api      API
	identity Identity
	logger   *zap.Logger
	newID    func() string
	now      func() time.Time

	ctx    context.Context // cancelled by Close
	cancel context.CancelFunc

	mu         sync.Mutex
	messages   []models.ChatMessage
	loading    bool
	errMsg     string
	lastCached bool
	stats      *models.ChatStats
	closed     bool
	onChange   func(n int)
}

// New starts a session. identity may be nil for an anonymous visitor.
func New(api API, identity Identity, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		api:      api,
		identity: identity,
		logger:   logging.OrNop(logger),
		newID:    uuid.NewString,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnChange registers fn to run whenever the conversation grows. It receives
// the new length and is how a view knows to scroll to the latest message.
func (s *Session) OnChange(fn func(n int)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Submit sends query to the assistant. A blank query is ignored. While an
// earlier query is in flight Submit returns ErrBusy and changes nothing.
func (s *Session) Submit(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.loading {
		s.mu.Unlock()
		return ErrBusy
	}
	s.messages = append(s.messages, models.ChatMessage{
		ID:        s.newID(),
		Role:      models.RoleUser,
		Content:   query,
		CreatedAt: s.now().UTC(),
	})
	s.loading = true
	s.errMsg = ""
	n, notify := len(s.messages), s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(n)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	resp, err := s.api.SendChatMessage(ctx, query, s.userID())
	if err == nil && resp.Message.Role != models.RoleAssistant {
		err = fmt.Errorf("unexpected reply role %q", resp.Message.Role)
	}

	s.mu.Lock()
	s.loading = false
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		s.errMsg = FailureMessage
		s.mu.Unlock()
		s.logger.Error("failed to send chat message", zap.Error(err))
		return err
	}
	s.messages = append(s.messages, resp.Message)
	s.lastCached = resp.Cached
	n, notify = len(s.messages), s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(n)
	}
	return nil
}

// The chat endpoint receives the provider identity key, not the internal id.
func (s *Session) userID() string {
	if s.identity == nil || s.identity.Status() != session.StatusAuthenticated {
		return ""
	}
	return s.identity.Profile().GoogleID
}

// LoadStats fetches the indexed document count shown as a hint. Failure is
// treated as zero documents.
func (s *Session) LoadStats(ctx context.Context) models.ChatStats {
	stats, err := s.api.GetChatStats(ctx)
	if err != nil {
		s.logger.Warn("failed to fetch chat stats", zap.Error(err))
		stats = &models.ChatStats{DocumentCount: 0}
	}
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
	return *stats
}

func (s *Session) Stats() (models.ChatStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats == nil {
		return models.ChatStats{}, false
	}
	return *s.stats, true
}

// Messages returns a copy of the conversation in submission order.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatMessage(nil), s.messages...)
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the error text to show, or "".
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// LastCached reports whether the latest answer was served from the cache.
func (s *Session) LastCached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCached
}

// Close cancels any request in flight; its result is discarded.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}
