package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
	"github.com/yenvi12/aifshop-auth/internal/core/port"
	"github.com/yenvi12/aifshop-auth/internal/repository"
)

type mockUserRepository struct {
	createErr   error
	createCalls int
	createdUser domain.User

	usersByID    map[string]*domain.User
	usersByEmail map[string]*domain.User
	lookupErr    error

	existsResult bool
	existsErr    error
	existsCalls  int
	existsEmail  string

	refreshHashErr   error
	refreshHashCalls int
	refreshHashID    string
	refreshHash      *string

	updateRoleErr   error
	updateRoleCalls int
	updateRoleID    string
	updateRoleValue domain.Role

	providerIDErr   error
	providerIDCalls int
	providerIDUser  string
	providerIDValue string

	lastLoginErr   error
	lastLoginCalls int
	lastLoginID    string

	listResult  []domain.User
	listErr     error
	countResult int
	countErr    error
}

func (m *mockUserRepository) Create(_ context.Context, user domain.User) error {
	m.createCalls++
	m.createdUser = user
	return m.createErr
}

func (m *mockUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	if user, ok := m.usersByID[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	if user, ok := m.usersByEmail[email]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) GetByProviderID(_ context.Context, providerID string) (*domain.User, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, user := range m.usersByID {
		if user.ProviderID != nil && *user.ProviderID == providerID {
			copy := *user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.existsCalls++
	m.existsEmail = email
	return m.existsResult, m.existsErr
}

func (m *mockUserRepository) UpdateRefreshTokenHash(_ context.Context, id string, hash *string) error {
	m.refreshHashCalls++
	m.refreshHashID = id
	m.refreshHash = hash
	if m.refreshHashErr == nil {
		if user, ok := m.usersByID[id]; ok {
			user.RefreshTokenHash = hash
		}
	}
	return m.refreshHashErr
}

func (m *mockUserRepository) UpdateProviderID(_ context.Context, id string, providerID string) error {
	m.providerIDCalls++
	m.providerIDUser = id
	m.providerIDValue = providerID
	if m.providerIDErr == nil {
		if user, ok := m.usersByID[id]; ok {
			user.ProviderID = &providerID
		}
	}
	return m.providerIDErr
}

func (m *mockUserRepository) UpdateRole(_ context.Context, id string, role domain.Role) error {
	m.updateRoleCalls++
	m.updateRoleID = id
	m.updateRoleValue = role
	if m.updateRoleErr == nil {
		if user, ok := m.usersByID[id]; ok {
			user.Role = role
		}
	}
	return m.updateRoleErr
}

func (m *mockUserRepository) UpdateLastLogin(_ context.Context, id string, _ time.Time) error {
	m.lastLoginCalls++
	m.lastLoginID = id
	return m.lastLoginErr
}

func (m *mockUserRepository) List(context.Context, port.UserFilter) ([]domain.User, error) {
	return m.listResult, m.listErr
}

func (m *mockUserRepository) Count(context.Context, port.UserFilter) (int, error) {
	return m.countResult, m.countErr
}

type mockRateLimitStore struct {
	decision   port.RateLimitDecision
	checkErr   error
	checkCalls int
	lastKey    string
	lastPolicy port.RateLimitPolicy

	resetErr   error
	resetCalls int
	resetKey   string
}

func (m *mockRateLimitStore) Check(_ context.Context, key string, policy port.RateLimitPolicy) (port.RateLimitDecision, error) {
	m.checkCalls++
	m.lastKey = key
	m.lastPolicy = policy
	return m.decision, m.checkErr
}

func (m *mockRateLimitStore) Reset(_ context.Context, key string) error {
	m.resetCalls++
	m.resetKey = key
	return m.resetErr
}

func allowAll() *mockRateLimitStore {
	return &mockRateLimitStore{decision: port.RateLimitDecision{Allowed: true, Remaining: 1}}
}

type mockPendingStore struct {
	putErr     error
	putCalls   int
	putRecord  domain.PendingRegistration
	putTTL     time.Duration
	records    map[string]domain.PendingRegistration
	consumeErr error
}

func newMockPendingStore() *mockPendingStore {
	return &mockPendingStore{records: make(map[string]domain.PendingRegistration)}
}

func (m *mockPendingStore) Put(_ context.Context, record domain.PendingRegistration, ttl time.Duration) error {
	m.putCalls++
	m.putRecord = record
	m.putTTL = ttl
	if m.putErr == nil {
		m.records[record.TransactionID] = record
	}
	return m.putErr
}

func (m *mockPendingStore) Consume(_ context.Context, transactionID string) (*domain.PendingRegistration, error) {
	if m.consumeErr != nil {
		return nil, m.consumeErr
	}
	record, ok := m.records[transactionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(m.records, transactionID)
	return &record, nil
}

type mockEventPublisher struct {
	registeredCalls int
	registered      domain.UserRegisteredEvent
	promotedCalls   int
	promoted        domain.UserPromotedEvent
	loggedInCalls   int
	loggedIn        domain.UserLoggedInEvent
	err             error
}

func (m *mockEventPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	m.registeredCalls++
	m.registered = event
	return m.err
}

func (m *mockEventPublisher) PublishUserPromoted(_ context.Context, event domain.UserPromotedEvent) error {
	m.promotedCalls++
	m.promoted = event
	return m.err
}

func (m *mockEventPublisher) PublishUserLoggedIn(_ context.Context, event domain.UserLoggedInEvent) error {
	m.loggedInCalls++
	m.loggedIn = event
	return m.err
}

// mockMailSender is mutex-guarded because welcome mail is dispatched
// from a detached goroutine.
type mockMailSender struct {
	mu           sync.Mutex
	otpCalls     int
	otpEmail     string
	otpCode      string
	welcomeCalls int
	welcomeEmail string
	err          error
}

func (m *mockMailSender) SendOTP(_ context.Context, email, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otpCalls++
	m.otpEmail = email
	m.otpCode = code
	return m.err
}

func (m *mockMailSender) SendWelcome(_ context.Context, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomeCalls++
	m.welcomeEmail = email
	return m.err
}

func (m *mockMailSender) lastOTP() (string, string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.otpEmail, m.otpCode, m.otpCalls
}

func (m *mockMailSender) welcomeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.welcomeCalls
}

type mockIdentityProvider struct {
	profile *port.ProviderProfile
	err     error
	calls   int
	token   string
}

func (m *mockIdentityProvider) VerifySessionToken(_ context.Context, token string) (*port.ProviderProfile, error) {
	m.calls++
	m.token = token
	if m.err != nil {
		return nil, m.err
	}
	if m.profile == nil {
		return nil, errors.New("no profile configured")
	}
	return m.profile, nil
}
