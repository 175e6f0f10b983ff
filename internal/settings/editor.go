// Package settings edits the set of gurus a user follows.
package settings

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ai-learning-tracker/tracker/internal/logging"
	"github.com/ai-learning-tracker/tracker/internal/models"
	"github.com/ai-learning-tracker/tracker/internal/session"
)

const (
	SavedMessage      = "설정이 저장되었습니다!"
	SaveFailedMessage = "저장에 실패했습니다."

	MessageDuration = 3 * time.Second
)

var (
	// ErrUnauthenticated means the visitor must sign in first.
	ErrUnauthenticated = errors.New("sign-in required to edit settings")
	// ErrSessionLoading means the session has not settled yet; callers wait
	// and retry rather than sending the visitor to sign in.
	ErrSessionLoading  = errors.New("session still loading")
	ErrNoUser          = errors.New("signed-in user is not known to the backend")
)

type API interface {
	GetGurus(ctx context.Context) ([]models.Guru, error)
	GetUserGurus(ctx context.Context, userID string) ([]models.Guru, error)
	UpdateUserGurus(ctx context.Context, userID string, guruIDs []string) ([]models.Guru, error)
}

type Identity interface {
	Status() session.Status
	UserID(ctx context.Context) (string, error)
}

// Editor holds a local follow-set that only reaches the server on Save.
// Unsaved toggles are lost with the editor.
type Editor struct {
	api         API
	identity    Identity
	logger      *zap.Logger
	msgDuration time.Duration

	mu       sync.Mutex
	catalog  []models.Guru
	followed map[string]bool
	userID   string
	loading  bool
	saving   bool
	message  string
	msgTimer *time.Timer
}

func NewEditor(api API, identity Identity, logger *zap.Logger) *Editor {
	return &Editor{
		api:         api,
		identity:    identity,
		logger:      logging.OrNop(logger),
		msgDuration: MessageDuration,
		followed:    map[string]bool{},
	}
}

// Load fetches the guru catalog and the user's current follow-set.
func (e *Editor) Load(ctx context.Context) error {
	if e.identity == nil {
		return ErrUnauthenticated
	}
	switch e.identity.Status() {
	case session.StatusLoading:
		return ErrSessionLoading
	case session.StatusAuthenticated:
	default:
		return ErrUnauthenticated
	}

	e.mu.Lock()
	e.loading = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.loading = false
		e.mu.Unlock()
	}()

	catalog, err := e.api.GetGurus(ctx)
	if err != nil {
		e.logger.Error("failed to load guru catalog", zap.Error(err))
		return err
	}
	e.mu.Lock()
	e.catalog = catalog
	e.mu.Unlock()

	userID, err := e.identity.UserID(ctx)
	if err != nil {
		e.logger.Error("failed to resolve user", zap.Error(err))
		return err
	}
	if userID == "" {
		return ErrNoUser
	}

	followed, err := e.api.GetUserGurus(ctx, userID)
	if err != nil {
		e.logger.Error("failed to load followed gurus", zap.String("user_id", userID), zap.Error(err))
		return err
	}

	e.mu.Lock()
	e.userID = userID
	e.followed = make(map[string]bool, len(followed))
	for _, g := range followed {
		e.followed[g.ID] = true
	}
	e.mu.Unlock()
	return nil
}

// Toggle flips guruID locally and reports whether it is now followed.
func (e *Editor) Toggle(guruID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.followed[guruID] {
		delete(e.followed, guruID)
		return false
	}
	e.followed[guruID] = true
	return true
}

func (e *Editor) IsFollowed(guruID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.followed[guruID]
}

// Followed returns the local follow-set, sorted.
func (e *Editor) Followed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.followedLocked()
}

func (e *Editor) followedLocked() []string {
	ids := make([]string, 0, len(e.followed))
	for id := range e.followed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Editor) Catalog() []models.Guru {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Guru(nil), e.catalog...)
}

// Save replaces the server follow-set with the local one. A save while
// another is running, or before a user is loaded, does nothing.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.userID == "" || e.saving {
		e.mu.Unlock()
		return nil
	}
	e.saving = true
	userID, ids := e.userID, e.followedLocked()
	e.mu.Unlock()

	saved, err := e.api.UpdateUserGurus(ctx, userID, ids)

	e.mu.Lock()
	e.saving = false
	if err != nil {
		e.setMessageLocked(SaveFailedMessage)
		e.mu.Unlock()
		e.logger.Error("failed to save followed gurus", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	// The server's answer is authoritative: unknown ids are dropped there.
	e.followed = make(map[string]bool, len(saved))
	for _, g := range saved {
		e.followed[g.ID] = true
	}
	e.setMessageLocked(SavedMessage)
	e.mu.Unlock()
	return nil
}

// setMessageLocked shows msg and clears it after msgDuration unless a newer
// message replaced it.
func (e *Editor) setMessageLocked(msg string) {
	if e.msgTimer != nil {
		e.msgTimer.Stop()
	}
	e.message = msg
	var timer *time.Timer
	timer = time.AfterFunc(e.msgDuration, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.msgTimer == timer {
			e.message = ""
			e.msgTimer = nil
		}
	})
	e.msgTimer = timer
}

// Message is the transient save banner, or "".
func (e *Editor) Message() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.message
}

func (e *Editor) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

func (e *Editor) Saving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saving
}

// Close stops the banner timer.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.msgTimer != nil {
		e.msgTimer.Stop()
		e.msgTimer = nil
	}
}
