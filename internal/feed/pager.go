// Package feed pages through guru posts for the signed-in user, or the global
// feed for anonymous visitors.
package feed

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/ai-learning-tracker/tracker/internal/logging"
	"github.com/ai-learning-tracker/tracker/internal/models"
	"github.com/ai-learning-tracker/tracker/internal/session"
)

const (
	PageSize   = 20
	WidgetSize = 3

	LoadFailedMessage = "피드를 불러오는데 실패했습니다."
	EmptyAnonymous    = "표시할 포스트가 없습니다."
	EmptyFollowing    = "팔로우하는 Guru가 없거나 포스트가 없습니다."
)

// ErrSessionLoading is returned while the session has not settled; loading
// then would fetch with a stale identity.
var ErrSessionLoading = errors.New("session still loading")

var errClosed = errors.New("feed closed")

type API interface {
	GetFeed(ctx context.Context, req models.FeedRequest) (*models.FeedResponse, error)
}

// Identity resolves the signed-in user; session.Provider implements it.
type Identity interface {
	Status() session.Status
	UserID(ctx context.Context) (string, error)
}

// Pager keeps the posts fetched so far. Its offset always equals the number
// of posts it holds, so each page starts where the previous one ended.
// Posts are not de-duplicated; that relies on the backend keeping a stable
// order between calls.
type Pager struct {
	api      API
	identity Identity
	logger   *zap.Logger
	pageSize int

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	posts   []models.GuruPost
	offset  int
	total   int
	hasMore bool
	loading bool
	loaded  bool
	errMsg  string
	closed  bool
}

func NewPager(api API, identity Identity, logger *zap.Logger) *Pager {
	return newPager(api, identity, logger, PageSize)
}

func newPager(api API, identity Identity, logger *zap.Logger, pageSize int) *Pager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pager{
		api:      api,
		identity: identity,
		logger:   logging.OrNop(logger),
		pageSize: pageSize,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Load fetches the first page, replacing anything loaded before. A failure
// leaves the pager in the error state shown as a full-page message. It does
// nothing while another load is running.
func (p *Pager) Load(ctx context.Context) error {
	if p.identity != nil && p.identity.Status() == session.StatusLoading {
		return ErrSessionLoading
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errClosed
	}
	if p.loading {
		p.mu.Unlock()
		return nil
	}
	p.loading = true
	p.errMsg = ""
	p.mu.Unlock()

	resp, err := p.fetch(ctx, 0)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	if p.closed {
		return errClosed
	}
	if err != nil {
		p.errMsg = LoadFailedMessage
		p.logger.Error("failed to load feed", zap.Error(err))
		return err
	}
	p.posts = append([]models.GuruPost(nil), resp.Posts...)
	p.offset = len(resp.Posts)
	p.total = resp.Total
	p.hasMore = resp.HasMore
	p.loaded = true
	return nil
}

// LoadMore appends the next page at the current offset. It does nothing when
// there is nothing more, before the first load, or while a load is running.
// Failures are logged and leave the list untouched.
func (p *Pager) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errClosed
	}
	if !p.loaded || !p.hasMore || p.loading {
		p.mu.Unlock()
		return nil
	}
	p.loading = true
	offset := p.offset
	p.mu.Unlock()

	resp, err := p.fetch(ctx, offset)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	if p.closed {
		return errClosed
	}
	if err != nil {
		p.logger.Error("failed to load more posts", zap.Int("offset", offset), zap.Error(err))
		return err
	}
	p.posts = append(p.posts, resp.Posts...)
	p.offset += len(resp.Posts)
	p.total = resp.Total
	p.hasMore = resp.HasMore
	return nil
}

func (p *Pager) fetch(ctx context.Context, offset int) (*models.FeedResponse, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	req := models.FeedRequest{Limit: p.pageSize, Offset: offset}
	if p.identity != nil && p.identity.Status() == session.StatusAuthenticated {
		userID, err := p.identity.UserID(ctx)
		if err != nil {
			return nil, err
		}
		req.UserID = userID
	}
	return p.api.GetFeed(ctx, req)
}

func (p *Pager) Posts() []models.GuruPost {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.GuruPost(nil), p.posts...)
}

func (p *Pager) Offset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

func (p *Pager) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

func (p *Pager) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Err returns the full-page error text, or "".
func (p *Pager) Err() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errMsg
}

// EmptyMessage is the text shown for an empty feed.
func (p *Pager) EmptyMessage() string {
	if p.identity != nil && p.identity.Status() == session.StatusAuthenticated {
		return EmptyFollowing
	}
	return EmptyAnonymous
}

// Close cancels any fetch in flight and drops its result.
func (p *Pager) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
}
