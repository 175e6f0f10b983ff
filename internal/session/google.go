package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/ai-learning-tracker/tracker/internal/config"
	"github.com/ai-learning-tracker/tracker/internal/logging"
)

// GoogleAuth runs the Google OAuth2 authorization-code flow and reads the
// signed-in profile.
type GoogleAuth struct {
	oauth  *oauth2.Config
	logger *zap.Logger
}

func NewGoogleAuth(cfg config.Config, logger *zap.Logger) *GoogleAuth {
	return &GoogleAuth{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", oauth2api.UserinfoEmailScope, oauth2api.UserinfoProfileScope},
			Endpoint:     google.Endpoint,
		},
		logger: logging.OrNop(logger),
	}
}

func (g *GoogleAuth) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the user's Google profile.
func (g *GoogleAuth) Exchange(ctx context.Context, code string) (Profile, error) {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(g.oauth.TokenSource(ctx, tok)))
	if err != nil {
		return Profile{}, fmt.Errorf("failed to create userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Profile{}, fmt.Errorf("failed to fetch google profile: %w", err)
	}
	return Profile{
		GoogleID:  info.Id,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	}, nil
}

type callbackResult struct {
	code string
	err  error
}

// callbackHandler accepts exactly one redirect carrying the expected state.
func callbackHandler(state string, results chan<- callbackResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("sign-in was denied: %s", q.Get("error"))
		case q.Get("state") != state:
			res.err = errors.New("sign-in state mismatch")
		case q.Get("code") == "":
			res.err = errors.New("sign-in callback carried no code")
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "Signed in. You can close this window.")
		}
		select {
		case results <- res:
		default:
		}
	}
}

// Login serves the redirect URL locally, hands the consent URL to open, and
// waits for Google to call back. It returns the signed-in profile.
func (g *GoogleAuth) Login(ctx context.Context, open func(authURL string)) (Profile, error) {
	redirect, err := url.Parse(g.oauth.RedirectURL)
	if err != nil {
		return Profile{}, fmt.Errorf("invalid redirect url: %w", err)
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to listen for sign-in callback: %w", err)
	}

	state := uuid.NewString()
	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.Handle(redirect.Path, callbackHandler(state, results))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			g.logger.Error("sign-in callback server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	open(g.AuthCodeURL(state))

	select {
	case <-ctx.Done():
		return Profile{}, ctx.Err()
	case res := <-results:
		if res.err != nil {
			return Profile{}, res.err
		}
		return g.Exchange(ctx, res.code)
	}
}
