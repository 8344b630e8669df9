package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
	"github.com/yenvi12/aifshop-auth/internal/repository"
)

func newTestClient(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := red.NewClient(&red.Options{Addr: srv.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, srv
}

func pendingFixture(now time.Time) domain.PendingRegistration {
	return domain.PendingRegistration{
		TransactionID: "txn-123",
		Email:         "shopper@example.com",
		FirstName:     "An",
		LastName:      "Nguyen",
		PasswordHash:  "argon2id$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		OTPHash:       "abcdef",
		OTPSalt:       "123456",
		CreatedAt:     now,
		ExpiresAt:     now.Add(10 * time.Minute),
	}
}

func TestPendingRegistrationRepository_PutAndConsume(t *testing.T) {
	client, _ := newTestClient(t)
	repo := NewPendingRegistrationRepository(client, "test:pending")

	now := time.Now().UTC().Truncate(time.Second)
	record := pendingFixture(now)

	if err := repo.Put(context.Background(), record, 10*time.Minute); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got, err := repo.Consume(context.Background(), record.TransactionID)
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if got.Email != record.Email || got.OTPHash != record.OTPHash {
		t.Fatalf("consumed record mismatch: %+v", got)
	}

	// A second consume must miss: the record is single use.
	if _, err := repo.Consume(context.Background(), record.TransactionID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second consume, got %v", err)
	}
}

func TestPendingRegistrationRepository_ConsumeMissing(t *testing.T) {
	client, _ := newTestClient(t)
	repo := NewPendingRegistrationRepository(client, "test:pending")

	if _, err := repo.Consume(context.Background(), "unknown"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPendingRegistrationRepository_ConsumeExpired(t *testing.T) {
	client, _ := newTestClient(t)
	repo := NewPendingRegistrationRepository(client, "test:pending")

	now := time.Now().UTC().Truncate(time.Second)
	record := pendingFixture(now)

	if err := repo.Put(context.Background(), record, 10*time.Minute); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	repo.WithClock(func() time.Time { return now.Add(11 * time.Minute) })

	if _, err := repo.Consume(context.Background(), record.TransactionID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired record, got %v", err)
	}
}

func TestPendingRegistrationRepository_PutValidation(t *testing.T) {
	client, _ := newTestClient(t)
	repo := NewPendingRegistrationRepository(client, "test:pending")

	record := pendingFixture(time.Now().UTC())
	record.TransactionID = ""
	if err := repo.Put(context.Background(), record, time.Minute); err == nil {
		t.Fatal("expected error for missing transaction id")
	}

	record.TransactionID = "txn-123"
	if err := repo.Put(context.Background(), record, 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
}
