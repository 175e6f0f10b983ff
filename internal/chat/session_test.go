package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ai-learning-tracker/tracker/internal/models"
	"github.com/ai-learning-tracker/tracker/internal/session"
)

type fakeAPI struct {
	mu      sync.Mutex
	calls   []string
	userIDs []string
	err     error
	block   chan struct{} // when set, SendChatMessage waits on it or ctx
	started chan struct{}
	cached  bool
	stats   *models.ChatStats
}

func (f *fakeAPI) SendChatMessage(ctx context.Context, query string, userID string) (*models.ChatResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	f.userIDs = append(f.userIDs, userID)
	n := len(f.calls)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.ChatResponse{
		Message: models.ChatMessage{
			ID:      fmt.Sprintf("srv-%d", n),
			Role:    models.RoleAssistant,
			Content: "answer to " + query,
		},
		Cached: f.cached,
	}, nil
}

func (f *fakeAPI) GetChatStats(ctx context.Context) (*models.ChatStats, error) {
	if f.stats == nil {
		return nil, errors.New("stats unavailable")
	}
	return f.stats, nil
}

type fakeIdentity struct {
	status  session.Status
	profile session.Profile
}

func (f fakeIdentity) Status() session.Status    { return f.status }
func (f fakeIdentity) Profile() session.Profile { return f.profile }

func TestSubmit_AlternatesInOrder(t *testing.T) {
	api := &fakeAPI{}
	s := New(api, nil, nil)
	defer s.Close()

	queries := []string{"one", "two", "three", "four"}
	for _, q := range queries {
		if err := s.Submit(context.Background(), q); err != nil {
			t.Fatalf("Submit(%q): %v", q, err)
		}
	}

	msgs := s.Messages()
	if len(msgs) != 2*len(queries) {
		t.Fatalf("expected %d messages, got %d", 2*len(queries), len(msgs))
	}
	for i, msg := range msgs {
		wantRole := models.RoleUser
		if i%2 == 1 {
			wantRole = models.RoleAssistant
		}
		if msg.Role != wantRole {
			t.Errorf("message %d: role %s, want %s", i, msg.Role, wantRole)
		}
		q := queries[i/2]
		if i%2 == 0 && msg.Content != q {
			t.Errorf("message %d: content %q, want %q", i, msg.Content, q)
		}
		if i%2 == 1 && msg.Content != "answer to "+q {
			t.Errorf("message %d: content %q", i, msg.Content)
		}
	}
	if s.Loading() || s.Err() != "" {
		t.Errorf("expected idle without error")
	}
}

func TestSubmit_IgnoredWhileLoading(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(api, nil, nil)
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "first") }()
	<-api.started

	if !s.Loading() {
		t.Fatal("expected loading while request in flight")
	}
	before := len(s.Messages())

	if err := s.Submit(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if got := len(s.Messages()); got != before {
		t.Errorf("conversation changed while busy: %d -> %d", before, got)
	}
	if !s.Loading() {
		t.Error("loading flag must stay set")
	}

	close(api.block)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if len(api.calls) != 1 {
		t.Errorf("expected exactly one request, got %v", api.calls)
	}
}

func TestSubmit_FailureKeepsQuestion(t *testing.T) {
	api := &fakeAPI{err: errors.New("boom")}
	s := New(api, nil, nil)
	defer s.Close()

	if err := s.Submit(context.Background(), "why?"); err == nil {
		t.Fatal("expected error")
	}

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Role != models.RoleUser || msgs[0].Content != "why?" {
		t.Fatalf("expected only the user message, got %+v", msgs)
	}
	if s.Err() != FailureMessage {
		t.Errorf("expected failure message, got %q", s.Err())
	}
	if s.Loading() {
		t.Error("expected loading cleared")
	}

	// A later success clears the error.
	api.err = nil
	if err := s.Submit(context.Background(), "again"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if s.Err() != "" {
		t.Errorf("expected error cleared, got %q", s.Err())
	}
	if len(s.Messages()) != 3 {
		t.Errorf("expected 3 messages, got %d", len(s.Messages()))
	}
}

func TestSubmit_BlankIsNoop(t *testing.T) {
	api := &fakeAPI{}
	s := New(api, nil, nil)
	defer s.Close()

	if err := s.Submit(context.Background(), "   \n"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(s.Messages()) != 0 || len(api.calls) != 0 {
		t.Error("blank query must not be sent")
	}
}

func TestSubmit_EndToEndWithIdentity(t *testing.T) {
	api := &fakeAPI{cached: true}
	id := fakeIdentity{status: session.StatusAuthenticated, profile: session.Profile{GoogleID: "g-42"}}
	s := New(api, id, nil)
	defer s.Close()

	var lengths []int
	s.OnChange(func(n int) { lengths = append(lengths, n) })

	if err := s.Submit(context.Background(), "RAG 시스템 설명해줘"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID == "" || msgs[0].CreatedAt.IsZero() {
		t.Error("optimistic message needs a client id and timestamp")
	}
	if msgs[1].ID != "srv-1" {
		t.Errorf("expected server id on assistant message, got %q", msgs[1].ID)
	}
	if !s.LastCached() {
		t.Error("expected cached flag available")
	}
	if api.userIDs[0] != "g-42" {
		t.Errorf("expected provider id sent, got %q", api.userIDs[0])
	}
	if len(lengths) != 2 || lengths[0] != 1 || lengths[1] != 2 {
		t.Errorf("expected change notifications [1 2], got %v", lengths)
	}
}

func TestSubmit_AnonymousSendsNoUser(t *testing.T) {
	api := &fakeAPI{}
	s := New(api, fakeIdentity{status: session.StatusUnauthenticated}, nil)
	defer s.Close()

	s.Submit(context.Background(), "hi")
	if api.userIDs[0] != "" {
		t.Errorf("expected no user id, got %q", api.userIDs[0])
	}
}

func TestOptimisticIDsAreUnique(t *testing.T) {
	s := New(&fakeAPI{}, nil, nil)
	defer s.Close()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.Submit(context.Background(), "a")
	s.Submit(context.Background(), "b")
	msgs := s.Messages()
	if msgs[0].ID == msgs[2].ID {
		t.Error("user message ids collided under an identical clock")
	}
}

func TestClose_DiscardsLateResult(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(api, nil, nil)

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "slow") }()
	<-api.started

	s.Close()
	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if len(s.Messages()) != 1 {
		t.Errorf("late answer must not be appended, got %d messages", len(s.Messages()))
	}
	if err := s.Submit(context.Background(), "after"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}

func TestLoadStats(t *testing.T) {
	s := New(&fakeAPI{}, nil, nil)
	defer s.Close()
	if _, ok := s.Stats(); ok {
		t.Error("expected no stats before load")
	}
	if got := s.LoadStats(context.Background()); got.DocumentCount != 0 {
		t.Errorf("expected zero fallback, got %d", got.DocumentCount)
	}

	s2 := New(&fakeAPI{stats: &models.ChatStats{DocumentCount: 12, Status: models.StatsReady}}, nil, nil)
	defer s2.Close()
	s2.LoadStats(context.Background())
	if st, ok := s2.Stats(); !ok || st.DocumentCount != 12 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestSuggestionsAreCopies(t *testing.T) {
	got := Suggestions()
	got[0] = "changed"
	if Suggestions()[0] == "changed" {
		t.Error("Suggestions must return a copy")
	}
}
