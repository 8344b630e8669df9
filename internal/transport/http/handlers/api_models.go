package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
)

const dateLayout = "2006-01-02"

// ErrorResponse is the envelope for failed requests.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Success: false,
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// RateLimitedResponse is returned with 429 once a caller is blocked.
type RateLimitedResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
	TraceID    string `json:"trace_id,omitempty"`
}

// MessageResponse is the envelope for successes without data.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RegistrationRequest is the register payload.
type RegistrationRequest struct {
	Email           string  `json:"email" binding:"required"`
	Password        string  `json:"password" binding:"required"`
	ConfirmPassword string  `json:"confirmPassword" binding:"required"`
	FirstName       string  `json:"firstName" binding:"required"`
	LastName        string  `json:"lastName" binding:"required"`
	Phone           *string `json:"phone"`
	DateOfBirth     *string `json:"dateOfBirth"`
}

// RegistrationResponse carries the OTP challenge reference.
type RegistrationResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	ExpiresIn     int    `json:"expiresIn"`
}

// VerifyOTPRequest is the verify-otp payload.
type VerifyOTPRequest struct {
	TransactionID string `json:"transactionId" binding:"required"`
	Code          string `json:"code" binding:"required"`
}

// LoginRequest is the credential login payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is the token refresh payload.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// SessionRequest exchanges a hosted-provider session for local tokens.
type SessionRequest struct {
	SessionToken string `json:"sessionToken" binding:"required"`
}

// TokenPayload carries issued credentials.
type TokenPayload struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	TokenType        string `json:"tokenType"`
	ExpiresIn        int    `json:"expiresIn"`
	RefreshExpiresIn int    `json:"refreshExpiresIn"`
}

// NewTokenPayload converts a domain token pair to its API shape.
func NewTokenPayload(pair domain.TokenPair) TokenPayload {
	return TokenPayload{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        pair.AccessExpiresIn,
		RefreshExpiresIn: pair.RefreshExpiresIn,
	}
}

// UserPayload is the sanitized account view returned by the API.
type UserPayload struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Phone       *string    `json:"phone,omitempty"`
	DateOfBirth *string    `json:"dateOfBirth,omitempty"`
	AvatarURL   *string    `json:"avatarUrl,omitempty"`
	Role        string     `json:"role"`
	IsVerified  bool       `json:"isVerified"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
}

// NewUserPayload converts a domain user to its API shape.
func NewUserPayload(user domain.User) UserPayload {
	payload := UserPayload{
		ID:         user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Phone:      user.Phone,
		AvatarURL:  user.AvatarURL,
		Role:       string(user.Role),
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt,
		LastLogin:  user.LastLogin,
	}
	if user.DateOfBirth != nil {
		dob := user.DateOfBirth.Format(dateLayout)
		payload.DateOfBirth = &dob
	}
	return payload
}

// AuthSuccessResponse is returned by login, verify-otp, and session.
type AuthSuccessResponse struct {
	Success bool         `json:"success"`
	User    UserPayload  `json:"user"`
	Tokens  TokenPayload `json:"tokens"`
}

// RefreshResponse is returned by token refresh.
type RefreshResponse struct {
	Success bool         `json:"success"`
	Tokens  TokenPayload `json:"tokens"`
}

// UserListResponse is the admin listing envelope.
type UserListResponse struct {
	Success bool          `json:"success"`
	Users   []UserPayload `json:"users"`
	Total   int           `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

// PromoteResponse is returned after a role change.
type PromoteResponse struct {
	Success bool        `json:"success"`
	User    UserPayload `json:"user"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports readiness of each dependency.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
