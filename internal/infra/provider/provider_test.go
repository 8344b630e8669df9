package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/yenvi12/aifshop-auth/internal/infra/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(config.ProviderSettings{
		BaseURL: srv.URL,
		APIKey:  "anon-key",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestVerifySessionToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer session-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "ext-42",
			"email": "shopper@example.com",
			"user_metadata": {"full_name": "An Van Nguyen", "avatar_url": "https://cdn.example/a.png"}
		}`))
	})

	profile, err := client.VerifySessionToken(context.Background(), "session-token")
	if err != nil {
		t.Fatalf("VerifySessionToken returned error: %v", err)
	}
	if profile.ProviderUserID != "ext-42" || profile.Email != "shopper@example.com" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.FirstName != "An" || profile.LastName != "Van Nguyen" {
		t.Fatalf("name split %q %q", profile.FirstName, profile.LastName)
	}
	if profile.AvatarURL != "https://cdn.example/a.png" {
		t.Fatalf("avatar %q", profile.AvatarURL)
	}
}

func TestVerifySessionTokenRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"msg":"invalid token"}`, http.StatusUnauthorized)
	})

	if _, err := client.VerifySessionToken(context.Background(), "bad"); !errors.Is(err, ErrSessionRejected) {
		t.Fatalf("expected ErrSessionRejected, got %v", err)
	}
}

func TestVerifySessionTokenEmptyProfile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "", "email": ""}`))
	})

	if _, err := client.VerifySessionToken(context.Background(), "token"); !errors.Is(err, ErrSessionRejected) {
		t.Fatalf("expected ErrSessionRejected, got %v", err)
	}
}

func TestVerifySessionTokenBlank(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("blank token must not reach the provider")
	})

	if _, err := client.VerifySessionToken(context.Background(), "  "); !errors.Is(err, ErrSessionRejected) {
		t.Fatalf("expected ErrSessionRejected, got %v", err)
	}
}
