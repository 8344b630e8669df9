package port

import (
	"context"
	"time"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
)

// PendingRegistrationStore holds unconfirmed registrations with a TTL.
// Consume must be atomic: at most one caller observes a given
// transaction id, and expired records are treated as absent.
type PendingRegistrationStore interface {
	Put(ctx context.Context, record domain.PendingRegistration, ttl time.Duration) error
	Consume(ctx context.Context, transactionID string) (*domain.PendingRegistration, error)
}
