package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
	"github.com/yenvi12/aifshop-auth/internal/core/port"
	"github.com/yenvi12/aifshop-auth/internal/infra/config"
	"github.com/yenvi12/aifshop-auth/internal/infra/security"
	"github.com/yenvi12/aifshop-auth/internal/repository"
	"github.com/yenvi12/aifshop-auth/internal/repository/memory"
	"github.com/yenvi12/aifshop-auth/internal/transport/http/middleware"
	"github.com/yenvi12/aifshop-auth/internal/usecase"
)

const testPassword = "Sup3r!SecurePass#7890"

// stubUserRepository is a map-backed port.UserRepository for handler
// tests.
type stubUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newStubUserRepository() *stubUserRepository {
	return &stubUserRepository{users: make(map[string]*domain.User)}
}

func (r *stubUserRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = &user
	return nil
}

func (r *stubUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepository) GetByProviderID(_ context.Context, providerID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.ProviderID != nil && *user.ProviderID == providerID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubUserRepository) UpdateRefreshTokenHash(_ context.Context, id string, hash *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.RefreshTokenHash = hash
	return nil
}

func (r *stubUserRepository) UpdateProviderID(_ context.Context, id string, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.ProviderID = &providerID
	return nil
}

func (r *stubUserRepository) UpdateRole(_ context.Context, id string, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Role = role
	return nil
}

func (r *stubUserRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.LastLogin = &at
	return nil
}

func (r *stubUserRepository) List(_ context.Context, filter port.UserFilter) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		out = append(out, *user)
	}
	return out, nil
}

func (r *stubUserRepository) Count(_ context.Context, filter port.UserFilter) (int, error) {
	users, err := r.List(context.Background(), filter)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

// stubMailSender records the last OTP it was asked to deliver.
type stubMailSender struct {
	mu   sync.Mutex
	code string
}

func (m *stubMailSender) SendOTP(_ context.Context, _, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.code = code
	return nil
}

func (m *stubMailSender) SendWelcome(context.Context, string, string) error {
	return nil
}

func (m *stubMailSender) lastOTP() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

type testEnv struct {
	router *gin.Engine
	users  *stubUserRepository
	mail   *stubMailSender
	tokens *security.TokenService
}

func testAppConfig() *config.AppConfig {
	return &config.AppConfig{
		RateLimit: config.RateLimitSettings{
			Login:     config.RateLimitRule{MaxAttempts: 10, Window: 15 * time.Minute, Block: 15 * time.Minute},
			OTPSend:   config.RateLimitRule{MaxAttempts: 5, Window: time.Hour, Block: 15 * time.Minute},
			OTPVerify: config.RateLimitRule{MaxAttempts: 5, Window: 10 * time.Minute, Block: 5 * time.Minute},
		},
		OTP: config.OTPSettings{TTL: 10 * time.Minute},
	}
}

// newTestEnv wires the full handler stack over in-memory stores the
// same way the application composes it.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)
	cfg := testAppConfig()
	users := newStubUserRepository()
	mail := &stubMailSender{}

	tokens, err := security.NewTokenService(security.TokenServiceConfig{
		Issuer:          "aifshop-test",
		AccessSecret:    []byte("access-secret"),
		RefreshSecret:   []byte("refresh-secret"),
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	auth, err := usecase.NewAuthService(cfg, users, memory.NewRateLimitStore(), tokens, nil, nil, log)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	registration, err := usecase.NewRegistrationService(cfg, users, memory.NewPendingRegistrationStore(), memory.NewRateLimitStore(), nil, tokens, nil, mail, log)
	if err != nil {
		t.Fatalf("NewRegistrationService: %v", err)
	}
	userService, err := usecase.NewUserService(users, nil, log)
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}

	router := gin.New()
	router.Use(middleware.EnrichContext())

	authGroup := router.Group("/api/auth")
	NewAuthHandler(auth, registration, log).RegisterRoutes(authGroup)

	adminGroup := router.Group("/api/admin")
	adminGroup.Use(middleware.RequireAuth(auth), middleware.RequireRole(domain.RoleAdmin))
	NewAdminHandler(userService, log).RegisterRoutes(adminGroup)

	return &testEnv{
		router: router,
		users:  users,
		mail:   mail,
		tokens: tokens,
	}
}

func (env *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// seedUser inserts a verified account directly into the repository.
func (env *testEnv) seedUser(t *testing.T, id, email string, role domain.Role) *domain.User {
	t.Helper()

	hash, err := security.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		FirstName:    "An",
		LastName:     "Nguyen",
		Role:         role,
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := env.users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return &user
}

// accessTokenFor mints a valid access token for a seeded user.
func (env *testEnv) accessTokenFor(t *testing.T, user *domain.User) string {
	t.Helper()

	token, err := env.tokens.IssueAccessToken(*user)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	return token
}
