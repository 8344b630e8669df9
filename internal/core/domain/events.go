package domain

import "time"

// UserRegisteredEvent is published after a pending registration is
// confirmed and the permanent identity exists.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Email        string
	FirstName    string
	LastName     string
	Role         string
	RegisteredAt time.Time
	Source       string
}

// UserPromotedEvent is published when an administrator changes an
// account's role.
type UserPromotedEvent struct {
	EventID    string
	UserID     string
	Email      string
	Role       string
	PromotedBy string
	PromotedAt time.Time
}

// UserLoggedInEvent records a successful credential login.
type UserLoggedInEvent struct {
	EventID  string
	UserID   string
	Email    string
	LoginAt  time.Time
	ClientIP string
}
