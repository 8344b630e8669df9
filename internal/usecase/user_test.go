package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
	"github.com/yenvi12/aifshop-auth/internal/core/port"
)

func newUserService(t *testing.T, users *mockUserRepository, events *mockEventPublisher) *UserService {
	t.Helper()

	var eventPort port.EventPublisher
	if events != nil {
		eventPort = events
	}

	svc, err := NewUserService(users, eventPort, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}
	return svc
}

func TestUserServiceGetByID(t *testing.T) {
	user := verifiedUser(t)
	users := &mockUserRepository{usersByID: map[string]*domain.User{user.ID: user}}

	svc := newUserService(t, users, nil)

	got, err := svc.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got.Email != user.Email {
		t.Fatalf("email %q", got.Email)
	}
	if got.PasswordHash != "" || got.RefreshTokenHash != nil {
		t.Fatal("returned user must be sanitized")
	}

	if _, err := svc.GetByID(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserServiceListClampsPaging(t *testing.T) {
	user := verifiedUser(t)
	users := &mockUserRepository{
		listResult:  []domain.User{*user},
		countResult: 1,
	}

	svc := newUserService(t, users, nil)

	page, err := svc.List(context.Background(), port.UserFilter{Limit: 0, Offset: -5})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Limit != 20 || page.Offset != 0 {
		t.Fatalf("paging limit=%d offset=%d", page.Limit, page.Offset)
	}
	if page.Total != 1 || len(page.Users) != 1 {
		t.Fatalf("total=%d users=%d", page.Total, len(page.Users))
	}
	if page.Users[0].PasswordHash != "" {
		t.Fatal("listed users must be sanitized")
	}
}

func TestUserServicePromote(t *testing.T) {
	user := verifiedUser(t)
	users := &mockUserRepository{usersByID: map[string]*domain.User{user.ID: user}}
	events := &mockEventPublisher{}

	svc := newUserService(t, users, events)

	got, err := svc.Promote(context.Background(), "admin-1", user.ID)
	if err != nil {
		t.Fatalf("Promote returned error: %v", err)
	}
	if got.Role != domain.RoleAdmin {
		t.Fatalf("role = %q, want ADMIN", got.Role)
	}
	if users.updateRoleCalls != 1 || users.updateRoleValue != domain.RoleAdmin {
		t.Fatal("role update was not persisted")
	}
	if events.promotedCalls != 1 || events.promoted.PromotedBy != "admin-1" {
		t.Fatal("user.promoted event was not published")
	}
}

func TestUserServicePromoteIdempotent(t *testing.T) {
	user := verifiedUser(t)
	user.Role = domain.RoleAdmin
	users := &mockUserRepository{usersByID: map[string]*domain.User{user.ID: user}}
	events := &mockEventPublisher{}

	svc := newUserService(t, users, events)

	got, err := svc.Promote(context.Background(), "admin-1", user.ID)
	if err != nil {
		t.Fatalf("Promote returned error: %v", err)
	}
	if got.Role != domain.RoleAdmin {
		t.Fatalf("role = %q", got.Role)
	}
	if users.updateRoleCalls != 0 {
		t.Fatal("promoting an admin must not rewrite the role")
	}
	if events.promotedCalls != 0 {
		t.Fatal("promoting an admin must not publish an event")
	}
}

func TestUserServicePromoteMissing(t *testing.T) {
	svc := newUserService(t, &mockUserRepository{}, nil)

	if _, err := svc.Promote(context.Background(), "admin-1", "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
