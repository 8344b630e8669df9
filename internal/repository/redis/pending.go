package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
	"github.com/yenvi12/aifshop-auth/internal/core/port"
	"github.com/yenvi12/aifshop-auth/internal/repository"
)

const defaultPendingPrefix = "shop:pending"

// PendingRegistrationRepository keeps unconfirmed registrations in
// Redis with a TTL. Consume relies on GETDEL so two concurrent verify
// attempts for the same transaction cannot both succeed.
type PendingRegistrationRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewPendingRegistrationRepository constructs a pending store with the
// provided Redis client and key prefix.
func NewPendingRegistrationRepository(client *red.Client, keyPrefix string) *PendingRegistrationRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultPendingPrefix
	}

	return &PendingRegistrationRepository{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Put stores a pending registration under its transaction id.
func (r *PendingRegistrationRepository) Put(ctx context.Context, record domain.PendingRegistration, ttl time.Duration) error {
	if strings.TrimSpace(record.TransactionID) == "" {
		return errors.New("transaction id is required")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal pending registration: %w", err)
	}

	if err := r.client.Set(ctx, r.key(record.TransactionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set pending registration: %w", err)
	}

	return nil
}

// Consume fetches and deletes the record in one round trip. Returns
// repository.ErrNotFound when the record is absent, already consumed,
// or expired.
func (r *PendingRegistrationRepository) Consume(ctx context.Context, transactionID string) (*domain.PendingRegistration, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, errors.New("transaction id is required")
	}

	raw, err := r.client.GetDel(ctx, r.key(transactionID)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis getdel pending registration: %w", err)
	}

	var record domain.PendingRegistration
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("unmarshal pending registration: %w", err)
	}

	if record.Expired(r.now().UTC()) {
		return nil, repository.ErrNotFound
	}

	return &record, nil
}

// WithClock overrides the internal clock, used in tests.
func (r *PendingRegistrationRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

func (r *PendingRegistrationRepository) key(transactionID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, transactionID)
}

var _ port.PendingRegistrationStore = (*PendingRegistrationRepository)(nil)
