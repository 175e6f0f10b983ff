package core

import (
	"fmt"
	"strings"

	"github.com/ai-learning-tracker/tracker/internal/models"
)

const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 100
)

type FeedStore interface {
	ListGurus() ([]models.Guru, error)
	FollowedGuruIDs(userID string) ([]string, error)
	ListPosts(guruIDs []string, limit, offset int) ([]models.GuruPost, int, error)
	ListGuruPosts(guruID string, limit, offset int) ([]models.GuruPost, error)
}

type FeedService struct {
	store FeedStore
}

func NewFeedService(db FeedStore) *FeedService {
	return &FeedService{store: db}
}

func (s *FeedService) Gurus() ([]models.Guru, error) {
	return s.store.ListGurus()
}

// Feed picks the guru filter from the user's follow-set when UserID is set,
// otherwise from GuruIDs. An empty filter returns every post. Blank guru ids
// stay in the filter and match nothing, so "guru_ids=," yields no posts.
func (s *FeedService) Feed(req models.FeedRequest) (*models.FeedResponse, error) {
	var filter []string
	switch {
	case req.UserID != "":
		ids, err := s.store.FollowedGuruIDs(req.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load follow-set: %w", err)
		}
		filter = ids
	case len(req.GuruIDs) > 0:
		filter = make([]string, len(req.GuruIDs))
		for i, id := range req.GuruIDs {
			filter[i] = strings.TrimSpace(id)
		}
	}

	posts, total, err := s.store.ListPosts(filter, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	return &models.FeedResponse{
		Posts:   posts,
		Total:   total,
		HasMore: req.Offset+len(posts) < total,
	}, nil
}

func (s *FeedService) GuruPosts(guruID string, limit, offset int) ([]models.GuruPost, error) {
	return s.store.ListGuruPosts(guruID, limit, offset)
}
