package domain

import "time"

// PendingRegistration holds unconfirmed registration data keyed by an
// opaque transaction identifier. The password is stored already hashed;
// the raw OTP never leaves the dispatch path.
type PendingRegistration struct {
	TransactionID string     `json:"transaction_id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Phone         *string    `json:"phone,omitempty"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
	PasswordHash  string     `json:"password_hash"`
	OTPHash       string     `json:"otp_hash"`
	OTPSalt       string     `json:"otp_salt"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at the given
// reference time. Expired records must be treated as absent even if a
// backend has not purged them yet.
func (p PendingRegistration) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
