package port

import (
	"context"
	"time"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
)

// UserFilter narrows user listings for the admin surface.
type UserFilter struct {
	Role     *domain.Role
	Verified *bool
	Search   string
	Limit    int
	Offset   int
}

// UserRepository abstracts persistence of user identities.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByProviderID(ctx context.Context, providerID string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateRefreshTokenHash(ctx context.Context, id string, hash *string) error
	UpdateProviderID(ctx context.Context, id string, providerID string) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	Count(ctx context.Context, filter UserFilter) (int, error)
}
