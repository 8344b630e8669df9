package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
	"github.com/yenvi12/aifshop-auth/internal/core/port"
	"github.com/yenvi12/aifshop-auth/internal/infra/config"
	"github.com/yenvi12/aifshop-auth/internal/infra/logger"
	"github.com/yenvi12/aifshop-auth/internal/infra/security"
	"github.com/yenvi12/aifshop-auth/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the email or password is incorrect.
	// Unknown email and wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOrExpiredToken mirrors the uniform token failure from the
	// security layer so transport code depends on one sentinel.
	ErrInvalidOrExpiredToken = security.ErrInvalidOrExpiredToken
	// ErrTooManyAttempts indicates the caller exhausted its rate-limit
	// budget and is temporarily blocked.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrAccountNotVerified indicates the credentials are correct but the
	// account never completed OTP verification.
	ErrAccountNotVerified = errors.New("account not verified")
	// ErrProviderSessionInvalid indicates the external provider rejected
	// the presented session token.
	ErrProviderSessionInvalid = errors.New("invalid provider session")
)

// TooManyAttemptsError carries the block deadline alongside the
// ErrTooManyAttempts sentinel.
type TooManyAttemptsError struct {
	RetryAfter time.Duration
}

func (e *TooManyAttemptsError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAfter)
}

func (e *TooManyAttemptsError) Is(target error) bool {
	return target == ErrTooManyAttempts
}

// AuthService coordinates login, refresh, logout, and the external
// provider session exchange.
type AuthService struct {
	cfg      *config.AppConfig
	users    port.UserRepository
	limiter  port.RateLimitStore
	tokens   *security.TokenService
	events   port.EventPublisher
	provider port.IdentityProvider
	log      *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs an AuthService. The event publisher and
// identity provider are optional.
func NewAuthService(
	cfg *config.AppConfig,
	users port.UserRepository,
	limiter port.RateLimitStore,
	tokens *security.TokenService,
	events port.EventPublisher,
	provider port.IdentityProvider,
	log *zap.Logger,
) (*AuthService, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if users == nil {
		return nil, errors.New("user repository is required")
	}
	if limiter == nil {
		return nil, errors.New("rate limit store is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &AuthService{
		cfg:      cfg,
		users:    users,
		limiter:  limiter,
		tokens:   tokens,
		events:   events,
		provider: provider,
		log:      log,
		now:      time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Login validates credentials and issues a fresh token pair. Every
// attempt, successful or not, counts against the login rate limit; the
// counter is reset on success.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP string) (*domain.TokenPair, *domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	if err := s.checkLimit(ctx, "login:"+email, toPolicy(s.cfg.RateLimit.Login)); err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}

	if !security.VerifyPassword(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	if !user.IsVerified {
		return nil, nil, ErrAccountNotVerified
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.limiter.Reset(ctx, "login:"+email); err != nil {
		s.log.Warn("reset login rate limit", zap.Error(err), zap.String("email", logger.MaskEmail(email)))
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("update last login", zap.Error(err), zap.String("user_id", user.ID))
	}
	user.LastLogin = &now

	s.publishLoggedIn(ctx, user, clientIP, now)

	sanitized := user.Sanitized()
	return pair, &sanitized, nil
}

// Refresh validates a refresh token against the stored hash and rotates
// it: the caller receives a new pair and the old token stops working.
// All failures collapse into ErrInvalidOrExpiredToken.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, domain.TokenKindRefresh)
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user.RefreshTokenHash == nil {
		return nil, ErrInvalidOrExpiredToken
	}

	presented := security.HashToken(refreshToken)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(*user.RefreshTokenHash)) != 1 {
		return nil, ErrInvalidOrExpiredToken
	}

	return s.issuePair(ctx, user)
}

// ParseAccessToken verifies an access token and returns its claims.
func (s *AuthService) ParseAccessToken(token string) (*security.TokenClaims, error) {
	return s.tokens.Verify(token, domain.TokenKindAccess)
}

// Logout clears the stored refresh-token hash so outstanding refresh
// tokens stop working. Logging out an already logged-out user is a
// no-op.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}

	if err := s.users.UpdateRefreshTokenHash(ctx, userID, nil); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("clear refresh token hash: %w", err)
	}

	return nil
}

// ExchangeProviderSession verifies a hosted-provider session token and
// logs the corresponding local account in, creating it on first sight.
func (s *AuthService) ExchangeProviderSession(ctx context.Context, sessionToken string) (*domain.TokenPair, *domain.User, error) {
	if s.provider == nil {
		return nil, nil, ErrProviderSessionInvalid
	}

	profile, err := s.provider.VerifySessionToken(ctx, sessionToken)
	if err != nil {
		return nil, nil, ErrProviderSessionInvalid
	}

	user, err := s.users.GetByProviderID(ctx, profile.ProviderUserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("lookup user by provider id: %w", err)
		}
		user, err = s.adoptProviderProfile(ctx, profile)
		if err != nil {
			return nil, nil, err
		}
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("update last login", zap.Error(err), zap.String("user_id", user.ID))
	}
	user.LastLogin = &now

	s.publishLoggedIn(ctx, user, "", now)

	sanitized := user.Sanitized()
	return pair, &sanitized, nil
}

// adoptProviderProfile creates a verified local account for a
// provider-asserted identity. The account gets an unguessable password
// so credential login stays impossible until a password is set.
func (s *AuthService) adoptProviderProfile(ctx context.Context, profile *port.ProviderProfile) (*domain.User, error) {
	email := normalizeEmail(profile.Email)
	if email == "" {
		return nil, ErrProviderSessionInvalid
	}

	if existing, err := s.users.GetByEmail(ctx, email); err == nil {
		providerID := profile.ProviderUserID
		if err := s.users.UpdateProviderID(ctx, existing.ID, providerID); err != nil {
			return nil, fmt.Errorf("link provider account: %w", err)
		}
		existing.ProviderID = &providerID
		return existing, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}

	random, err := security.GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate placeholder secret: %w", err)
	}
	placeholder, err := security.HashPassword(random)
	if err != nil {
		return nil, fmt.Errorf("hash placeholder secret: %w", err)
	}

	now := s.now().UTC()
	providerID := profile.ProviderUserID
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: placeholder,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Role:         domain.RoleUser,
		IsVerified:   true,
		ProviderID:   &providerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if profile.AvatarURL != "" {
		avatar := profile.AvatarURL
		user.AvatarURL = &avatar
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("provider account adopted",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return &user, nil
}

// issuePair mints an access and refresh token and persists the refresh
// hash, invalidating any previously issued refresh token.
func (s *AuthService) issuePair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(*user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	hash := security.HashToken(refresh)
	if err := s.users.UpdateRefreshTokenHash(ctx, user.ID, &hash); err != nil {
		return nil, fmt.Errorf("persist refresh token hash: %w", err)
	}
	user.RefreshTokenHash = &hash

	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresIn:  int(s.tokens.AccessTokenTTL().Seconds()),
		RefreshExpiresIn: int(s.tokens.RefreshTokenTTL().Seconds()),
	}, nil
}

func (s *AuthService) checkLimit(ctx context.Context, key string, policy port.RateLimitPolicy) error {
	decision, err := s.limiter.Check(ctx, key, policy)
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if !decision.Allowed {
		return &TooManyAttemptsError{RetryAfter: decision.RetryAfter}
	}
	return nil
}

func (s *AuthService) publishLoggedIn(ctx context.Context, user *domain.User, clientIP string, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.UserLoggedInEvent{
		EventID:  uuid.NewString(),
		UserID:   user.ID,
		Email:    user.Email,
		LoginAt:  at,
		ClientIP: clientIP,
	}
	if err := s.events.PublishUserLoggedIn(ctx, event); err != nil {
		s.log.Warn("publish user.logged_in", zap.Error(err), zap.String("user_id", user.ID))
	}
}

func toPolicy(rule config.RateLimitRule) port.RateLimitPolicy {
	return port.RateLimitPolicy{
		MaxAttempts: rule.MaxAttempts,
		Window:      rule.Window,
		Block:       rule.Block,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
