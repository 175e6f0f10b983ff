// Package session holds the signed-in identity and bridges it to the backend.
//
// A Provider is created once per process and passed to every state machine
// that needs to know who is signed in. It starts in StatusLoading until a
// stored token is restored (or found missing), forwards the provider profile
// to the backend on sign-in, and caches the backend's internal user id for the
// rest of the session.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ai-learning-tracker/tracker/internal/logging"
	"github.com/ai-learning-tracker/tracker/internal/models"
)

type Status string

const (
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// Profile is the identity reported by the external provider.
type Profile struct {
	GoogleID  string
	Email     string
	Name      string
	AvatarURL string
}

// UserAPI is the slice of the API client the bridge needs.
type UserAPI interface {
	SyncUser(ctx context.Context, req models.SyncUserRequest) (*models.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)
}

// TokenStore persists the session token between runs.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

var ErrNoIdentity = errors.New("session has no provider identity")

type Provider struct {
	api    UserAPI
	signer *Signer
	store  TokenStore
	logger *zap.Logger

	mu      sync.RWMutex
	status  Status
	profile Profile
	token   string
	userID  string // resolved internal id, "" until known

	resolve singleflight.Group
}

// NewProvider returns a provider in StatusLoading. store may be nil.
func NewProvider(api UserAPI, signer *Signer, store TokenStore, logger *zap.Logger) *Provider {
	return &Provider{
		api:    api,
		signer: signer,
		store:  store,
		logger: logging.OrNop(logger),
		status: StatusLoading,
	}
}

// Restore finishes initialisation from the token store. A missing, expired or
// tampered token leaves the session unauthenticated; only store I/O failures
// are returned.
func (p *Provider) Restore() error {
	if p.store == nil {
		p.setUnauthenticated()
		return nil
	}
	token, err := p.store.Load()
	if err != nil {
		p.setUnauthenticated()
		return err
	}
	if token == "" {
		p.setUnauthenticated()
		return nil
	}

	claims, err := p.signer.Parse(token)
	if err != nil {
		p.logger.Info("stored session token rejected", zap.Error(err))
		p.setUnauthenticated()
		return nil
	}

	p.mu.Lock()
	p.status = StatusAuthenticated
	p.profile = claims.Profile()
	p.token = token
	p.userID = claims.UserID
	p.mu.Unlock()
	return nil
}

// SignIn forwards profile to the backend for upsert and issues a session
// token. A failed sync is logged and does not block sign-in.
func (p *Provider) SignIn(ctx context.Context, profile Profile) (string, error) {
	if profile.GoogleID == "" {
		return "", ErrNoIdentity
	}

	var userID string
	user, err := p.api.SyncUser(ctx, syncRequest(profile))
	if err != nil {
		p.logger.Error("failed to sync user", zap.String("google_id", profile.GoogleID), zap.Error(err))
	} else if user != nil {
		userID = user.ID
	}

	token, err := p.signer.Issue(profile, userID)
	if err != nil {
		return "", err
	}
	if p.store != nil {
		if err := p.store.Save(token); err != nil {
			p.logger.Warn("failed to persist session token", zap.Error(err))
		}
	}

	p.mu.Lock()
	p.status = StatusAuthenticated
	p.profile = profile
	p.token = token
	p.userID = userID
	p.mu.Unlock()
	return token, nil
}

// SignOut tears the session down and forgets the resolved user id.
func (p *Provider) SignOut() error {
	p.setUnauthenticated()
	if p.store != nil {
		return p.store.Clear()
	}
	return nil
}

func (p *Provider) setUnauthenticated() {
	p.mu.Lock()
	p.status = StatusUnauthenticated
	p.profile = Profile{}
	p.token = ""
	p.userID = ""
	p.mu.Unlock()
}

func (p *Provider) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Provider) Profile() Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile
}

func (p *Provider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// UserID maps the signed-in Google id to the backend's internal id. The
// result is cached for the session; concurrent callers share one lookup. An
// anonymous session or a user the backend does not know yields "".
func (p *Provider) UserID(ctx context.Context) (string, error) {
	p.mu.RLock()
	status, googleID, cached := p.status, p.profile.GoogleID, p.userID
	p.mu.RUnlock()

	if status != StatusAuthenticated || googleID == "" {
		return "", nil
	}
	if cached != "" {
		return cached, nil
	}

	v, err, _ := p.resolve.Do(googleID, func() (any, error) {
		user, err := p.api.GetUserByGoogleID(ctx, googleID)
		if err != nil {
			return "", err
		}
		if user == nil {
			return "", nil
		}
		p.mu.Lock()
		// The session may have changed hands while the lookup was in flight.
		if p.profile.GoogleID == googleID {
			p.userID = user.ID
		}
		p.mu.Unlock()
		return user.ID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func syncRequest(profile Profile) models.SyncUserRequest {
	req := models.SyncUserRequest{GoogleID: profile.GoogleID, Email: profile.Email}
	if profile.Name != "" {
		req.Name = &profile.Name
	}
	if profile.AvatarURL != "" {
		req.AvatarURL = &profile.AvatarURL
	}
	return req
}
