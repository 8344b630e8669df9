package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
	"github.com/yenvi12/aifshop-auth/internal/core/port"
	"github.com/yenvi12/aifshop-auth/internal/repository"
)

// ErrUserNotFound indicates the requested account does not exist.
var ErrUserNotFound = errors.New("user not found")

// UserPage is one page of an admin user listing.
type UserPage struct {
	Users  []domain.User
	Total  int
	Limit  int
	Offset int
}

// UserService serves account lookups and the admin surface.
type UserService struct {
	users  port.UserRepository
	events port.EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

// NewUserService constructs a UserService. The event publisher is
// optional.
func NewUserService(users port.UserRepository, events port.EventPublisher, log *zap.Logger) (*UserService, error) {
	if users == nil {
		return nil, errors.New("user repository is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &UserService{
		users:  users,
		events: events,
		log:    log,
		now:    time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *UserService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// GetByID returns the sanitized account for the given id.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrUserNotFound
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	sanitized := user.Sanitized()
	return &sanitized, nil
}

// List returns a page of sanitized accounts matching the filter.
func (s *UserService) List(ctx context.Context, filter port.UserFilter) (*UserPage, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	total, err := s.users.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	for i := range users {
		users[i] = users[i].Sanitized()
	}

	return &UserPage{
		Users:  users,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// Promote grants the ADMIN role to the target account. Promoting an
// existing admin is a no-op.
func (s *UserService) Promote(ctx context.Context, promotedBy, targetID string) (*domain.User, error) {
	if strings.TrimSpace(targetID) == "" {
		return nil, ErrUserNotFound
	}

	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user.Role != domain.RoleAdmin {
		if err := s.users.UpdateRole(ctx, user.ID, domain.RoleAdmin); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("update role: %w", err)
		}
		user.Role = domain.RoleAdmin

		s.publishPromoted(ctx, user, promotedBy)
	}

	sanitized := user.Sanitized()
	return &sanitized, nil
}

func (s *UserService) publishPromoted(ctx context.Context, user *domain.User, promotedBy string) {
	if s.events == nil {
		return
	}

	event := domain.UserPromotedEvent{
		EventID:    uuid.NewString(),
		UserID:     user.ID,
		Email:      user.Email,
		Role:       string(user.Role),
		PromotedBy: promotedBy,
		PromotedAt: s.now().UTC(),
	}
	if err := s.events.PublishUserPromoted(ctx, event); err != nil {
		s.log.Warn("publish user.promoted", zap.Error(err), zap.String("user_id", user.ID))
	}
}
