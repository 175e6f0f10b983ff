package core

import (
	"errors"
	"strings"

	"github.com/ai-learning-tracker/tracker/internal/models"
)

var ErrInvalidUser = errors.New("google_id and email are required")

type UserStore interface {
	SyncUser(req models.SyncUserRequest) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	GetUserByGoogleID(googleID string) (*models.User, error)
	GetUserGurus(userID string) ([]models.Guru, error)
	ReplaceUserGurus(userID string, guruIDs []string) ([]models.Guru, error)
}

type UserService struct {
	store UserStore
}

func NewUserService(db UserStore) *UserService {
	return &UserService{store: db}
}

// Sync creates or refreshes the user identified by the Google subject.
func (s *UserService) Sync(req models.SyncUserRequest) (*models.User, error) {
	req.GoogleID = strings.TrimSpace(req.GoogleID)
	req.Email = strings.TrimSpace(req.Email)
	if req.GoogleID == "" || req.Email == "" {
		return nil, ErrInvalidUser
	}
	return s.store.SyncUser(req)
}

func (s *UserService) Get(id string) (*models.User, error) {
	return s.store.GetUserByID(id)
}

func (s *UserService) GetByGoogleID(googleID string) (*models.User, error) {
	return s.store.GetUserByGoogleID(googleID)
}

func (s *UserService) Gurus(userID string) ([]models.Guru, error) {
	return s.store.GetUserGurus(userID)
}

// ReplaceGurus makes guruIDs the whole follow-set. A nil slice clears it.
func (s *UserService) ReplaceGurus(userID string, guruIDs []string) ([]models.Guru, error) {
	return s.store.ReplaceUserGurus(userID, guruIDs)
}
