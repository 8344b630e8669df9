package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
)

// ErrInvalidOrExpiredToken is the single verification failure surfaced
// to callers. Bad signature, expiry, wrong kind, and malformed claims
// are deliberately indistinguishable so the verifier cannot be used as
// a forgeability oracle.
var ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenClaims is the claim set carried by both token kinds. Email and
// Role are populated only on access tokens.
type TokenClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

// TokenServiceConfig carries the kind-specific secrets and lifetimes.
type TokenServiceConfig struct {
	Issuer          string
	AccessSecret    []byte
	RefreshSecret   []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TokenService mints and verifies HS256 access and refresh tokens.
// Verification is a pure function of token, secret, and current time.
type TokenService struct {
	cfg TokenServiceConfig
	now func() time.Time
}

// NewTokenService constructs a TokenService after validating secrets.
func NewTokenService(cfg TokenServiceConfig) (*TokenService, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, fmt.Errorf("jwt: access secret is required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, fmt.Errorf("jwt: refresh secret is required")
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = defaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = defaultRefreshTokenTTL
	}

	return &TokenService{cfg: cfg, now: time.Now}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *TokenService) WithClock(clock func() time.Time) *TokenService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// AccessTokenTTL reports the configured access token lifetime.
func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.cfg.AccessTokenTTL
}

// RefreshTokenTTL reports the configured refresh token lifetime.
func (s *TokenService) RefreshTokenTTL() time.Duration {
	return s.cfg.RefreshTokenTTL
}

// IssueAccessToken mints a short-lived access token asserting identity,
// email, and role.
func (s *TokenService) IssueAccessToken(user domain.User) (string, error) {
	if user.ID == "" {
		return "", fmt.Errorf("jwt: user id is required")
	}

	now := s.now().UTC()
	claims := TokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
		Kind:   string(domain.TokenKindAccess),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.cfg.AccessSecret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign access token: %w", err)
	}

	return signed, nil
}

// IssueRefreshToken mints a long-lived refresh token asserting only the
// identity id.
func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("jwt: user id is required")
	}

	now := s.now().UTC()
	claims := TokenClaims{
		UserID: userID,
		Kind:   string(domain.TokenKindRefresh),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.RefreshTokenTTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.cfg.RefreshSecret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign refresh token: %w", err)
	}

	return signed, nil
}

// Verify validates signature, expiry, and claim shape of a presented
// token against the secret for the requested kind. Any failure yields
// ErrInvalidOrExpiredToken.
func (s *TokenService) Verify(token string, kind domain.TokenKind) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	secret := s.cfg.AccessSecret
	if kind == domain.TokenKindRefresh {
		secret = s.cfg.RefreshSecret
	}

	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || parsed == nil || !parsed.Valid {
		return nil, ErrInvalidOrExpiredToken
	}

	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	if claims.Kind != string(kind) {
		return nil, ErrInvalidOrExpiredToken
	}
	if kind == domain.TokenKindAccess && !domain.Role(claims.Role).Valid() {
		return nil, ErrInvalidOrExpiredToken
	}

	return claims, nil
}
