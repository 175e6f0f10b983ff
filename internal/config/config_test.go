package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"API_URL", "NEXT_PUBLIC_API_URL", "CACHE_TTL_HOURS", "CHAT_TIMEOUT_SECONDS", "REQUEST_TIMEOUT_SECONDS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("expected default origin %s, got %q", DefaultAPIURL, cfg.APIURL)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Errorf("expected 24h cache ttl, got %v", cfg.CacheTTL)
	}
	if cfg.ChatTimeout != DefaultChatTimeout {
		t.Errorf("expected chat timeout %v, got %v", DefaultChatTimeout, cfg.ChatTimeout)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("expected request timeout %v, got %v", DefaultRequestTimeout, cfg.RequestTimeout)
	}
}

func TestFromEnv_APIURLFallback(t *testing.T) {
	t.Setenv("API_URL", "")
	t.Setenv("NEXT_PUBLIC_API_URL", "https://api.example.com/")

	cfg := FromEnv()
	if cfg.APIURL != "https://api.example.com" {
		t.Errorf("expected trimmed fallback origin, got %q", cfg.APIURL)
	}

	t.Setenv("API_URL", "http://backend:9000")
	cfg = FromEnv()
	if cfg.APIURL != "http://backend:9000" {
		t.Errorf("expected API_URL to win, got %q", cfg.APIURL)
	}
}

func TestFromEnv_InvalidIntsUseDefault(t *testing.T) {
	t.Setenv("CACHE_TTL_HOURS", "soon")
	t.Setenv("CHAT_TIMEOUT_SECONDS", "-5")

	cfg := FromEnv()
	if cfg.CacheTTL != 24*time.Hour {
		t.Errorf("expected default ttl, got %v", cfg.CacheTTL)
	}
	if cfg.ChatTimeout != 60*time.Second {
		t.Errorf("expected default chat timeout, got %v", cfg.ChatTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		server  bool
		wantErr bool
	}{
		{"server missing key", Config{DatabaseURL: "x.db"}, true, true},
		{"server ok", Config{DatabaseURL: "x.db", GeminiAPIKey: "k"}, true, false},
		{"signin missing secret", Config{GoogleClientID: "id", GoogleClientSecret: "s"}, false, true},
		{"signin ok", Config{GoogleClientID: "id", GoogleClientSecret: "s", JWTSecret: "j"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.server {
				err = tt.cfg.ValidateServer()
			} else {
				err = tt.cfg.ValidateSignIn()
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}
