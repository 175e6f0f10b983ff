package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ai-learning-tracker/tracker/internal/models"
)

type fakeUserAPI struct {
	syncErr   error
	syncUser  *models.User
	lookups   atomic.Int32
	lookupErr error
	byGoogle  map[string]*models.User
	synced    []models.SyncUserRequest
	mu        sync.Mutex
}

func (f *fakeUserAPI) SyncUser(ctx context.Context, req models.SyncUserRequest) (*models.User, error) {
	f.mu.Lock()
	f.synced = append(f.synced, req)
	f.mu.Unlock()
	return f.syncUser, f.syncErr
}

func (f *fakeUserAPI) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	f.lookups.Add(1)
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.byGoogle[googleID], nil
}

func newSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return s
}

func TestSignIn_SyncFailureDoesNotBlock(t *testing.T) {
	api := &fakeUserAPI{syncErr: errors.New("backend down")}
	p := NewProvider(api, newSigner(t), nil, nil)

	token, err := p.SignIn(context.Background(), Profile{GoogleID: "g-1", Email: "a@b.c", Name: "Ada"})
	if err != nil {
		t.Fatalf("sign-in should succeed despite sync failure: %v", err)
	}
	if token == "" || p.Status() != StatusAuthenticated {
		t.Errorf("expected authenticated session with token")
	}
	if len(api.synced) != 1 || api.synced[0].GoogleID != "g-1" || api.synced[0].AvatarURL != nil {
		t.Errorf("unexpected sync request %+v", api.synced)
	}
}

func TestSignIn_RequiresIdentity(t *testing.T) {
	p := NewProvider(&fakeUserAPI{}, newSigner(t), nil, nil)
	if _, err := p.SignIn(context.Background(), Profile{}); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("expected ErrNoIdentity, got %v", err)
	}
}

func TestUserID_CachedOncePerSession(t *testing.T) {
	api := &fakeUserAPI{byGoogle: map[string]*models.User{"g-1": {ID: "u-1"}}}
	p := NewProvider(api, newSigner(t), nil, nil)
	if _, err := p.SignIn(context.Background(), Profile{GoogleID: "g-1"}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	for i := 0; i < 3; i++ {
		id, err := p.UserID(context.Background())
		if err != nil || id != "u-1" {
			t.Fatalf("UserID = %q, %v", id, err)
		}
	}
	if n := api.lookups.Load(); n != 1 {
		t.Errorf("expected one lookup, got %d", n)
	}
}

func TestUserID_SyncPrimesCache(t *testing.T) {
	api := &fakeUserAPI{syncUser: &models.User{ID: "u-9"}}
	p := NewProvider(api, newSigner(t), nil, nil)
	p.SignIn(context.Background(), Profile{GoogleID: "g-9"})

	id, err := p.UserID(context.Background())
	if err != nil || id != "u-9" {
		t.Fatalf("UserID = %q, %v", id, err)
	}
	if api.lookups.Load() != 0 {
		t.Error("expected no lookup when sync returned the user")
	}
}

func TestUserID_AnonymousAndUnknown(t *testing.T) {
	api := &fakeUserAPI{byGoogle: map[string]*models.User{}}
	p := NewProvider(api, newSigner(t), nil, nil)

	// Still loading: no lookup.
	if id, err := p.UserID(context.Background()); id != "" || err != nil {
		t.Errorf("loading session: got %q, %v", id, err)
	}
	p.Restore()
	if id, err := p.UserID(context.Background()); id != "" || err != nil {
		t.Errorf("anonymous session: got %q, %v", id, err)
	}
	if api.lookups.Load() != 0 {
		t.Error("anonymous session must not resolve identity")
	}

	p.SignIn(context.Background(), Profile{GoogleID: "g-unknown"})
	if id, err := p.UserID(context.Background()); id != "" || err != nil {
		t.Errorf("unknown user: got %q, %v", id, err)
	}
}

func TestRestoreFromFileStore(t *testing.T) {
	store := FileTokenStore{Path: filepath.Join(t.TempDir(), "nested", "session.jwt")}
	signer := newSigner(t)

	first := NewProvider(&fakeUserAPI{syncUser: &models.User{ID: "u-1"}}, signer, store, nil)
	if _, err := first.SignIn(context.Background(), Profile{GoogleID: "g-1", Name: "Ada"}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	second := NewProvider(&fakeUserAPI{}, signer, store, nil)
	if second.Status() != StatusLoading {
		t.Fatalf("expected loading before restore, got %s", second.Status())
	}
	if err := second.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if second.Status() != StatusAuthenticated || second.Profile().Name != "Ada" {
		t.Errorf("unexpected restored session %s %+v", second.Status(), second.Profile())
	}
	if id, _ := second.UserID(context.Background()); id != "u-1" {
		t.Errorf("expected cached id from token, got %q", id)
	}

	if err := second.SignOut(); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if token, _ := store.Load(); token != "" {
		t.Error("expected token file cleared")
	}
	if second.Status() != StatusUnauthenticated {
		t.Error("expected unauthenticated after sign-out")
	}
}

func TestRestoreRejectsForeignToken(t *testing.T) {
	store := FileTokenStore{Path: filepath.Join(t.TempDir(), "session.jwt")}
	other, _ := NewSigner("other-secret", time.Hour)
	token, _ := other.Issue(Profile{GoogleID: "g-1"}, "")
	store.Save(token)

	p := NewProvider(&fakeUserAPI{}, newSigner(t), store, nil)
	if err := p.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if p.Status() != StatusUnauthenticated {
		t.Errorf("expected unauthenticated, got %s", p.Status())
	}
}

func TestSignerExpiry(t *testing.T) {
	s := newSigner(t)
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	token, err := s.Issue(Profile{GoogleID: "g-1"}, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	s.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := s.Parse(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestNewSignerRequiresSecret(t *testing.T) {
	if _, err := NewSigner("", 0); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		wantErr  string
	}{
		{"ok", "?state=s1&code=abc", "abc", ""},
		{"mismatch", "?state=evil&code=abc", "", "state mismatch"},
		{"denied", "?error=access_denied", "", "denied"},
		{"no code", "?state=s1", "", "no code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make(chan callbackResult, 1)
			rec := httptest.NewRecorder()
			callbackHandler("s1", results)(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil))

			res := <-results
			if res.code != tt.wantCode {
				t.Errorf("code = %q, want %q", res.code, tt.wantCode)
			}
			if tt.wantErr == "" && res.err != nil {
				t.Errorf("unexpected error %v", res.err)
			}
			if tt.wantErr != "" && (res.err == nil || !strings.Contains(res.err.Error(), tt.wantErr)) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, res.err)
			}
			if tt.wantErr != "" && rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}
