package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ai-learning-tracker/tracker/internal/models"
)

// Guru API

func (c *Client) GetGurus(ctx context.Context) ([]models.Guru, error) {
	var gurus []models.Guru
	err := c.do(ctx, call{op: "fetch gurus", method: http.MethodGet, path: "/api/feed/gurus"}, &gurus)
	if err != nil {
		return nil, err
	}
	return gurus, nil
}

func (c *Client) GetUserGurus(ctx context.Context, userID string) ([]models.Guru, error) {
	var gurus []models.Guru
	err := c.do(ctx, call{
		op:     "fetch user gurus",
		method: http.MethodGet,
		path:   "/api/users/" + url.PathEscape(userID) + "/gurus",
	}, &gurus)
	if err != nil {
		return nil, err
	}
	return gurus, nil
}

// UpdateUserGurus replaces the user's follow-set with exactly guruIDs.
func (c *Client) UpdateUserGurus(ctx context.Context, userID string, guruIDs []string) ([]models.Guru, error) {
	if guruIDs == nil {
		guruIDs = []string{} // an empty set must be sent as [] to clear all follows
	}
	var gurus []models.Guru
	err := c.do(ctx, call{
		op:     "update user gurus",
		method: http.MethodPut,
		path:   "/api/users/" + url.PathEscape(userID) + "/gurus",
		body:   models.UpdateGurusRequest{GuruIDs: guruIDs},
	}, &gurus)
	if err != nil {
		return nil, err
	}
	return gurus, nil
}

func (c *Client) GetGuruPosts(ctx context.Context, guruID string, limit, offset int) ([]models.GuruPost, error) {
	var posts []models.GuruPost
	err := c.do(ctx, call{
		op:     "fetch guru posts",
		method: http.MethodGet,
		path:   "/api/feed/guru/" + url.PathEscape(guruID) + "/posts",
		query:  pageQuery(url.Values{}, limit, offset),
	}, &posts)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Feed API

// FeedQuery encodes req, leaving out every parameter that is absent. Without
// user_id the backend serves the global feed.
func FeedQuery(req models.FeedRequest) url.Values {
	q := url.Values{}
	if req.UserID != "" {
		q.Set("user_id", req.UserID)
	}
	if len(req.GuruIDs) > 0 {
		q.Set("guru_ids", strings.Join(req.GuruIDs, ","))
	}
	return pageQuery(q, req.Limit, req.Offset)
}

func pageQuery(q url.Values, limit, offset int) url.Values {
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q
}

func (c *Client) GetFeed(ctx context.Context, req models.FeedRequest) (*models.FeedResponse, error) {
	var feed models.FeedResponse
	err := c.do(ctx, call{
		op:     "fetch feed",
		method: http.MethodGet,
		path:   "/api/feed",
		query:  FeedQuery(req),
	}, &feed)
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

// Chat API

// SendChatMessage posts a query to the assistant. Generation is slow, so the
// chat timeout applies instead of the default one.
func (c *Client) SendChatMessage(ctx context.Context, query string, userID string) (*models.ChatResponse, error) {
	req := models.ChatRequest{Query: query}
	if userID != "" {
		req.UserID = &userID
	}

	var resp models.ChatResponse
	err := c.do(ctx, call{
		op:      "send message",
		method:  http.MethodPost,
		path:    "/api/chat",
		body:    req,
		timeout: c.ChatTimeout,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetChatStats(ctx context.Context) (*models.ChatStats, error) {
	var stats models.ChatStats
	if err := c.do(ctx, call{op: "fetch chat stats", method: http.MethodGet, path: "/api/chat/stats"}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// User API

// GetUserByGoogleID returns (nil, nil) when the backend has no such user.
// Every other non-2xx response is an error.
func (c *Client) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	var user models.User
	err := c.do(ctx, call{
		op:     "fetch user",
		method: http.MethodGet,
		path:   "/api/users/by-google/" + url.PathEscape(googleID),
	}, &user)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (c *Client) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := c.do(ctx, call{
		op:     "fetch user",
		method: http.MethodGet,
		path:   "/api/users/" + url.PathEscape(userID),
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SyncUser upserts the signed-in provider profile.
func (c *Client) SyncUser(ctx context.Context, req models.SyncUserRequest) (*models.User, error) {
	var user models.User
	err := c.do(ctx, call{
		op:     "sync user",
		method: http.MethodPost,
		path:   "/api/users/sync",
		body:   req,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Health(ctx context.Context) (*models.Health, error) {
	var h models.Health
	if err := c.do(ctx, call{op: "check health", method: http.MethodGet, path: "/health"}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
