package port

import (
	"context"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishUserPromoted(ctx context.Context, event domain.UserPromotedEvent) error
	PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error
}
