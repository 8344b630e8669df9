package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yenvi12/aifshop-auth/internal/core/port"
	"github.com/yenvi12/aifshop-auth/internal/infra/config"
)

const defaultTimeout = 10 * time.Second

// ErrSessionRejected is the uniform failure for any session token the
// provider does not accept.
var ErrSessionRejected = errors.New("provider rejected session token")

// Client verifies session tokens against a hosted auth provider's
// user-info endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient constructs a provider client from configuration.
func NewClient(cfg config.ProviderSettings, log *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("provider: base url is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}, nil
}

type userInfoResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
}

// VerifySessionToken asks the provider who the token belongs to. Any
// non-200 answer or unusable profile yields ErrSessionRejected.
func (c *Client) VerifySessionToken(ctx context.Context, token string) (*port.ProviderProfile, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionRejected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("build user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call user info endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Debug("provider declined session token", zap.Int("status", resp.StatusCode))
		return nil, ErrSessionRejected
	}

	var info userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, ErrSessionRejected
	}
	if info.ID == "" || info.Email == "" {
		return nil, ErrSessionRejected
	}

	first := info.UserMetadata.FirstName
	last := info.UserMetadata.LastName
	if first == "" && info.UserMetadata.FullName != "" {
		first, last = splitFullName(info.UserMetadata.FullName)
	}

	return &port.ProviderProfile{
		ProviderUserID: info.ID,
		Email:          info.Email,
		FirstName:      first,
		LastName:       last,
		AvatarURL:      info.UserMetadata.AvatarURL,
	}, nil
}

func splitFullName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

var _ port.IdentityProvider = (*Client)(nil)
