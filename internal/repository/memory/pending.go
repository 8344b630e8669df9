package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
	"github.com/yenvi12/aifshop-auth/internal/core/port"
	"github.com/yenvi12/aifshop-auth/internal/repository"
)

// PendingRegistrationStore is an in-process pending store used for
// development and tests. Expiry is enforced lazily on Consume.
type PendingRegistrationStore struct {
	mu      sync.Mutex
	records map[string]pendingEntry
	now     func() time.Time
}

type pendingEntry struct {
	record    domain.PendingRegistration
	expiresAt time.Time
}

// NewPendingRegistrationStore constructs an empty store.
func NewPendingRegistrationStore() *PendingRegistrationStore {
	return &PendingRegistrationStore{
		records: make(map[string]pendingEntry),
		now:     time.Now,
	}
}

// Put stores a pending registration under its transaction id.
func (s *PendingRegistrationStore) Put(_ context.Context, record domain.PendingRegistration, ttl time.Duration) error {
	if strings.TrimSpace(record.TransactionID) == "" {
		return errors.New("transaction id is required")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.TransactionID] = pendingEntry{
		record:    record,
		expiresAt: s.now().UTC().Add(ttl),
	}

	return nil
}

// Consume removes and returns the record. At most one caller observes a
// given transaction id.
func (s *PendingRegistrationStore) Consume(_ context.Context, transactionID string) (*domain.PendingRegistration, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, errors.New("transaction id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.records[transactionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(s.records, transactionID)

	now := s.now().UTC()
	if now.After(entry.expiresAt) || entry.record.Expired(now) {
		return nil, repository.ErrNotFound
	}

	record := entry.record
	return &record, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *PendingRegistrationStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

var _ port.PendingRegistrationStore = (*PendingRegistrationStore)(nil)
