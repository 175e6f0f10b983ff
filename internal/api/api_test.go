package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ai-learning-tracker/tracker/internal/apiclient"
	"github.com/ai-learning-tracker/tracker/internal/chat"
	"github.com/ai-learning-tracker/tracker/internal/core"
	"github.com/ai-learning-tracker/tracker/internal/feed"
	"github.com/ai-learning-tracker/tracker/internal/models"
	"github.com/ai-learning-tracker/tracker/internal/session"
	"github.com/ai-learning-tracker/tracker/internal/settings"
	"github.com/ai-learning-tracker/tracker/internal/store"
)

type stubAnswerer struct{ calls int }

func (s *stubAnswerer) Answer(ctx context.Context, query string, docs []store.Document) (string, error) {
	s.calls++
	return "RAG는 검색된 문서를 컨텍스트로 사용해 답변을 생성합니다.", nil
}

type testEnv struct {
	server   *httptest.Server
	store    *store.SQLiteStore
	answerer *stubAnswerer
	signer   *session.Signer
}

func newEnv(t *testing.T, withAuth bool) *testEnv {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Seed(time.Now()); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	signer, err := session.NewSigner("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	ans := &stubAnswerer{}
	h := NewAPIHandler(core.NewFeedService(db), core.NewUserService(db), core.NewChatService(db, ans, time.Hour, nil), nil)
	opts := RouterOptions{}
	if withAuth {
		opts = RouterOptions{Tokens: signer, Users: db}
	}
	srv := httptest.NewServer(NewRouter(h, opts))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, store: db, answerer: ans, signer: signer}
}

func TestHealth(t *testing.T) {
	env := newEnv(t, false)
	h, err := apiclient.NewClient(env.server.URL).Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if h.Status != "healthy" || h.Service != ServiceName {
		t.Errorf("unexpected health %+v", h)
	}
}

// TestSignedInJourney drives the client state machines against the real router.
func TestSignedInJourney(t *testing.T) {
	env := newEnv(t, true)
	ctx := context.Background()

	var provider *session.Provider
	client := apiclient.NewClient(env.server.URL, apiclient.WithBearer(func() string { return provider.Token() }))
	provider = session.NewProvider(client, env.signer, nil, nil)
	provider.Restore()

	if _, err := provider.SignIn(ctx, session.Profile{GoogleID: "g-42", Email: "learner@example.com", Name: "Learner"}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	userID, err := provider.UserID(ctx)
	if err != nil || userID == "" {
		t.Fatalf("expected a synced user id, got %q, %v", userID, err)
	}

	// Follow two gurus, then replace with a different pair.
	editor := settings.NewEditor(client, provider, nil)
	defer editor.Close()
	if err := editor.Load(ctx); err != nil {
		t.Fatalf("editor Load: %v", err)
	}
	editor.Toggle("guru-andrew-ng")
	editor.Toggle("guru-yann-lecun")
	if err := editor.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	editor.Toggle("guru-andrew-ng")
	editor.Toggle("guru-jim-fan")
	if err := editor.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	followed, err := client.GetUserGurus(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, g := range followed {
		ids = append(ids, g.ID)
	}
	if want := []string{"guru-jim-fan", "guru-yann-lecun"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("expected follow-set %v, got %v", want, ids)
	}

	// The feed is filtered to the follow-set.
	pager := feed.NewPager(client, provider, nil)
	defer pager.Close()
	if err := pager.Load(ctx); err != nil {
		t.Fatalf("pager Load: %v", err)
	}
	if pager.Total() != 4 || len(pager.Posts()) != 4 || pager.HasMore() {
		t.Errorf("unexpected feed: total=%d posts=%d", pager.Total(), len(pager.Posts()))
	}
	for _, p := range pager.Posts() {
		if p.GuruID != "guru-jim-fan" && p.GuruID != "guru-yann-lecun" {
			t.Errorf("post from unfollowed guru %s", p.GuruID)
		}
	}

	// Asking the same question twice is served from the cache the second time.
	conv := chat.New(client, provider, nil)
	defer conv.Close()
	if err := conv.Submit(ctx, "RAG 시스템 설명해줘"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if conv.LastCached() {
		t.Error("first answer must not be cached")
	}
	if err := conv.Submit(ctx, "rag 시스템   설명해줘"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	msgs := conv.Messages()
	if len(msgs) != 4 || !conv.LastCached() || env.answerer.calls != 1 {
		t.Errorf("expected 4 messages with a cached second answer, got %d cached=%v calls=%d", len(msgs), conv.LastCached(), env.answerer.calls)
	}
	if len(msgs[1].Sources) == 0 || msgs[1].Sources[0].RelevanceScore != nil {
		t.Errorf("expected unranked sources, got %+v", msgs[1].Sources)
	}

	stats, err := client.GetChatStats(ctx)
	if err != nil || stats.Status != models.StatsReady || stats.DocumentCount == 0 {
		t.Errorf("unexpected stats %+v, %v", stats, err)
	}
}

func TestFollowSetWriteRequiresOwnToken(t *testing.T) {
	env := newEnv(t, true)
	ctx := context.Background()

	owner, _ := env.store.SyncUser(models.SyncUserRequest{GoogleID: "g-owner", Email: "o@example.com"})
	other, _ := env.store.SyncUser(models.SyncUserRequest{GoogleID: "g-other", Email: "x@example.com"})

	ownerToken, _ := env.signer.Issue(session.Profile{GoogleID: "g-owner"}, owner.ID)
	// Issued before sync finished: resolved through the Google subject.
	legacyToken, _ := env.signer.Issue(session.Profile{GoogleID: "g-owner"}, "")
	otherToken, _ := env.signer.Issue(session.Profile{GoogleID: "g-other"}, other.ID)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"someone else", otherToken, http.StatusForbidden},
		{"owner", ownerToken, 0},
		{"owner via subject", legacyToken, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := tt.token
			client := apiclient.NewClient(env.server.URL, apiclient.WithBearer(func() string { return token }))
			_, err := client.UpdateUserGurus(ctx, owner.ID, []string{"guru-fei-fei-li"})
			if tt.status == 0 {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			var fe *apiclient.FetchError
			if !errors.As(err, &fe) || fe.Status != tt.status || fe.Kind != apiclient.KindUnauthorized {
				t.Errorf("expected %d unauthorized, got %v", tt.status, err)
			}
		})
	}
}

func TestErrorEnvelopes(t *testing.T) {
	env := newEnv(t, false)
	client := apiclient.NewClient(env.server.URL)
	ctx := context.Background()

	user, err := client.GetUserByGoogleID(ctx, "nobody")
	if err != nil || user != nil {
		t.Errorf("unknown google id must be (nil, nil), got %v, %v", user, err)
	}

	if _, err := client.GetUserGurus(ctx, "nobody"); !apiclient.IsNotFound(err) {
		t.Errorf("expected not_found, got %v", err)
	}
	if _, err := client.GetUser(ctx, "nobody"); !apiclient.IsNotFound(err) {
		t.Errorf("expected not_found, got %v", err)
	}
	if _, err := client.SendChatMessage(ctx, "   ", ""); apiclient.KindOf(err) != apiclient.KindBadRequest {
		t.Errorf("expected bad_request for empty query, got %v", err)
	}
	if _, err := client.GetFeed(ctx, models.FeedRequest{Limit: 500}); apiclient.KindOf(err) != apiclient.KindBadRequest {
		t.Errorf("expected bad_request for limit 500, got %v", err)
	}
}

func TestFeedPaginationOverHTTP(t *testing.T) {
	env := newEnv(t, false)
	client := apiclient.NewClient(env.server.URL)
	ctx := context.Background()

	first, err := client.GetFeed(ctx, models.FeedRequest{Limit: 6})
	if err != nil {
		t.Fatal(err)
	}
	second, err := client.GetFeed(ctx, models.FeedRequest{Limit: 6, Offset: len(first.Posts)})
	if err != nil {
		t.Fatal(err)
	}
	if !first.HasMore || second.HasMore || len(first.Posts)+len(second.Posts) != first.Total {
		t.Errorf("unexpected pages: %d+%d of %d", len(first.Posts), len(second.Posts), first.Total)
	}

	posts, err := client.GetGuruPosts(ctx, "guru-andrew-ng", 20, 0)
	if err != nil || len(posts) != 2 {
		t.Errorf("expected 2 posts for guru-andrew-ng, got %d, %v", len(posts), err)
	}
	gurus, err := client.GetGurus(ctx)
	if err != nil || len(gurus) != 6 {
		t.Errorf("expected 6 gurus, got %d, %v", len(gurus), err)
	}
}
