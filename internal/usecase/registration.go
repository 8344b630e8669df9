package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
	"github.com/yenvi12/aifshop-auth/internal/core/port"
	"github.com/yenvi12/aifshop-auth/internal/infra/config"
	"github.com/yenvi12/aifshop-auth/internal/infra/logger"
	"github.com/yenvi12/aifshop-auth/internal/infra/security"
	"github.com/yenvi12/aifshop-auth/internal/repository"
)

const minRegistrationAge = 18

var (
	// ErrEmailAlreadyRegistered indicates an account with the email exists.
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	// ErrInvalidRegistration indicates the registration payload failed
	// validation. The wrapped cause names the offending field.
	ErrInvalidRegistration = errors.New("invalid registration")
	// ErrTransactionNotFound indicates the transaction id is unknown,
	// expired, or already consumed. Uniform on purpose.
	ErrTransactionNotFound = errors.New("transaction expired or not found")
	// ErrInvalidOTP indicates the submitted code does not match.
	ErrInvalidOTP = errors.New("invalid verification code")
)

// RegisterInput is the payload accepted by Register.
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
	Phone           *string
	DateOfBirth     *time.Time
}

// phonePattern accepts an optional leading + followed by 8 to 15 digits,
// E.164 without separators.
var phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

func validPersonName(name string) bool {
	for _, r := range name {
		if unicode.IsLetter(r) || r == ' ' || r == '-' || r == '\'' {
			continue
		}
		return false
	}
	return true
}

// RegistrationChallenge is returned by Register; the OTP itself travels
// out of band.
type RegistrationChallenge struct {
	TransactionID string
	Email         string
	ExpiresAt     time.Time
	ExpiresIn     int
}

// RegistrationService owns the two-step register / verify-OTP flow.
type RegistrationService struct {
	cfg       *config.AppConfig
	users     port.UserRepository
	pending   port.PendingRegistrationStore
	limiter   port.RateLimitStore
	validator *security.PasswordValidator
	tokens    *security.TokenService
	events    port.EventPublisher
	mailer    port.MailSender
	log       *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs a RegistrationService. The event
// publisher and mailer are optional.
func NewRegistrationService(
	cfg *config.AppConfig,
	users port.UserRepository,
	pending port.PendingRegistrationStore,
	limiter port.RateLimitStore,
	validator *security.PasswordValidator,
	tokens *security.TokenService,
	events port.EventPublisher,
	mailer port.MailSender,
	log *zap.Logger,
) (*RegistrationService, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if users == nil {
		return nil, errors.New("user repository is required")
	}
	if pending == nil {
		return nil, errors.New("pending registration store is required")
	}
	if limiter == nil {
		return nil, errors.New("rate limit store is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &RegistrationService{
		cfg:       cfg,
		users:     users,
		pending:   pending,
		limiter:   limiter,
		validator: validator,
		tokens:    tokens,
		events:    events,
		mailer:    mailer,
		log:       log,
		now:       time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *RegistrationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Register validates the payload, stores a pending registration under a
// fresh transaction id, and dispatches the OTP by mail. The account
// itself is not created until VerifyOTP succeeds.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*RegistrationChallenge, error) {
	input.Email = normalizeEmail(input.Email)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)

	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	if err := s.checkLimit(ctx, "otp:send:"+input.Email, toPolicy(s.cfg.RateLimit.OTPSend)); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("check email uniqueness: %w", err)
	}
	if exists {
		return nil, ErrEmailAlreadyRegistered
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	code, err := security.GenerateOTP()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	otpHash, otpSalt, err := security.HashOTP(code)
	if err != nil {
		return nil, fmt.Errorf("hash otp: %w", err)
	}

	ttl := s.cfg.OTP.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	now := s.now().UTC()
	record := domain.PendingRegistration{
		TransactionID: uuid.NewString(),
		Email:         input.Email,
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		Phone:         input.Phone,
		DateOfBirth:   input.DateOfBirth,
		PasswordHash:  passwordHash,
		OTPHash:       otpHash,
		OTPSalt:       otpSalt,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}

	if err := s.pending.Put(ctx, record, ttl); err != nil {
		return nil, fmt.Errorf("store pending registration: %w", err)
	}

	s.dispatchOTP(ctx, record, code)

	return &RegistrationChallenge{
		TransactionID: record.TransactionID,
		Email:         record.Email,
		ExpiresAt:     record.ExpiresAt,
		ExpiresIn:     int(ttl.Seconds()),
	}, nil
}

// VerifyOTP consumes the pending registration and, when the code
// matches, creates the verified account and logs it in. A wrong code
// re-stores the record for its remaining lifetime so later attempts
// stay possible within the verify rate limit; a correct consume is
// final.
func (s *RegistrationService) VerifyOTP(ctx context.Context, transactionID, code string) (*domain.TokenPair, *domain.User, error) {
	transactionID = strings.TrimSpace(transactionID)
	code = strings.TrimSpace(code)
	if transactionID == "" {
		return nil, nil, ErrTransactionNotFound
	}

	if err := s.checkLimit(ctx, "otp:verify:"+transactionID, toPolicy(s.cfg.RateLimit.OTPVerify)); err != nil {
		return nil, nil, err
	}

	record, err := s.pending.Consume(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrTransactionNotFound
		}
		return nil, nil, fmt.Errorf("consume pending registration: %w", err)
	}

	if !security.VerifyOTP(code, record.OTPHash, record.OTPSalt) {
		if remaining := record.ExpiresAt.Sub(s.now().UTC()); remaining > 0 {
			if putErr := s.pending.Put(ctx, *record, remaining); putErr != nil {
				s.log.Warn("restore pending registration", zap.Error(putErr),
					zap.String("transaction_id", transactionID))
			}
		}
		return nil, nil, ErrInvalidOTP
	}

	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        record.Email,
		PasswordHash: record.PasswordHash,
		FirstName:    record.FirstName,
		LastName:     record.LastName,
		Phone:        record.Phone,
		DateOfBirth:  record.DateOfBirth,
		Role:         domain.RoleUser,
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Two transactions for the same email can both pass the
		// ExistsByEmail check; the unique index settles the race.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, ErrEmailAlreadyRegistered
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("issue refresh token: %w", err)
	}

	hash := security.HashToken(refresh)
	if err := s.users.UpdateRefreshTokenHash(ctx, user.ID, &hash); err != nil {
		return nil, nil, fmt.Errorf("persist refresh token hash: %w", err)
	}
	user.RefreshTokenHash = &hash

	s.dispatchWelcome(user)
	s.publishRegistered(ctx, user, now)

	pair := &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresIn:  int(s.tokens.AccessTokenTTL().Seconds()),
		RefreshExpiresIn: int(s.tokens.RefreshTokenTTL().Seconds()),
	}

	sanitized := user.Sanitized()
	return pair, &sanitized, nil
}

func (s *RegistrationService) validateInput(input RegisterInput) error {
	if input.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidRegistration)
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return fmt.Errorf("%w: email is malformed", ErrInvalidRegistration)
	}
	if input.FirstName == "" {
		return fmt.Errorf("%w: first name is required", ErrInvalidRegistration)
	}
	if input.LastName == "" {
		return fmt.Errorf("%w: last name is required", ErrInvalidRegistration)
	}
	if !validPersonName(input.FirstName) || !validPersonName(input.LastName) {
		return fmt.Errorf("%w: names may only contain letters, spaces, hyphens and apostrophes", ErrInvalidRegistration)
	}
	if input.Phone != nil && !phonePattern.MatchString(*input.Phone) {
		return fmt.Errorf("%w: phone number is malformed", ErrInvalidRegistration)
	}
	if input.DateOfBirth != nil {
		age := yearsBetween(*input.DateOfBirth, s.now().UTC())
		if age < minRegistrationAge {
			return fmt.Errorf("%w: must be at least %d years old", ErrInvalidRegistration, minRegistrationAge)
		}
	}
	if input.Password != input.ConfirmPassword {
		return fmt.Errorf("%w: passwords do not match", ErrInvalidRegistration)
	}
	if err := s.validator.Validate(input.Password); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
	}
	return nil
}

func (s *RegistrationService) checkLimit(ctx context.Context, key string, policy port.RateLimitPolicy) error {
	decision, err := s.limiter.Check(ctx, key, policy)
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if !decision.Allowed {
		return &TooManyAttemptsError{RetryAfter: decision.RetryAfter}
	}
	return nil
}

func (s *RegistrationService) dispatchOTP(ctx context.Context, record domain.PendingRegistration, code string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendOTP(ctx, record.Email, record.FirstName, code); err != nil {
		s.log.Warn("send otp mail", zap.Error(err),
			zap.String("email", logger.MaskEmail(record.Email)))
	}
}

// dispatchWelcome runs detached from the request so a slow mail API
// never delays the verification response.
func (s *RegistrationService) dispatchWelcome(user domain.User) {
	if s.mailer == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := s.mailer.SendWelcome(ctx, user.Email, user.FirstName); err != nil {
			s.log.Warn("send welcome mail", zap.Error(err),
				zap.String("email", logger.MaskEmail(user.Email)))
		}
	}()
}

func (s *RegistrationService) publishRegistered(ctx context.Context, user domain.User, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Role:         string(user.Role),
		RegisteredAt: at,
		Source:       "otp",
	}
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		s.log.Warn("publish user.registered", zap.Error(err), zap.String("user_id", user.ID))
	}
}

func yearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	if to.Month() < from.Month() || (to.Month() == from.Month() && to.Day() < from.Day()) {
		years--
	}
	return years
}
