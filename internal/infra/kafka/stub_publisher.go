package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
	"github.com/yenvi12/aifshop-auth/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserRegistered logs shop.user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"email":         event.Email,
		"first_name":    event.FirstName,
		"last_name":     event.LastName,
		"role":          event.Role,
		"registered_at": event.RegisteredAt,
		"source":        event.Source,
	}
	p.logEvent("shop.user.registered", event.UserID, event.RegisteredAt, payload)
	return nil
}

// PublishUserPromoted logs shop.user.promoted events.
func (p *StubPublisher) PublishUserPromoted(_ context.Context, event domain.UserPromotedEvent) error {
	payload := map[string]any{
		"user_id":     event.UserID,
		"email":       event.Email,
		"role":        event.Role,
		"promoted_by": event.PromotedBy,
		"promoted_at": event.PromotedAt,
	}
	p.logEvent("shop.user.promoted", event.UserID, event.PromotedAt, payload)
	return nil
}

// PublishUserLoggedIn logs shop.user.logged_in events.
func (p *StubPublisher) PublishUserLoggedIn(_ context.Context, event domain.UserLoggedInEvent) error {
	payload := map[string]any{
		"user_id":   event.UserID,
		"email":     event.Email,
		"login_at":  event.LoginAt,
		"client_ip": event.ClientIP,
	}
	p.logEvent("shop.user.logged_in", event.UserID, event.LoginAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
