package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yenvi12/aifshop-auth/internal/transport/http/middleware"
	"github.com/yenvi12/aifshop-auth/internal/usecase"
)

// AuthHandler serves the public authentication surface: registration,
// OTP verification, login, refresh, logout, and provider session
// exchange.
type AuthHandler struct {
	auth         *usecase.AuthService
	registration *usecase.RegistrationService
	log          *zap.Logger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(auth *usecase.AuthService, registration *usecase.RegistrationService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		registration: registration,
		log:          log,
	}
}

// RegisterRoutes mounts the auth endpoints on the given group.
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.register)
	rg.POST("/verify-otp", h.verifyOTP)
	rg.POST("/login", h.login)
	rg.POST("/refresh", h.refresh)
	rg.POST("/session", h.session)
	rg.POST("/logout", middleware.RequireAuth(h.auth), h.logout)
}

func (h *AuthHandler) register(c *gin.Context) {
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	input := usecase.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
	}
	if req.DateOfBirth != nil && *req.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, *req.DateOfBirth)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "dateOfBirth must be formatted as YYYY-MM-DD"))
			return
		}
		input.DateOfBirth = &dob
	}

	challenge, err := h.registration.Register(c.Request.Context(), input)
	if err != nil {
		RespondWithMappedError(c, h.log, err, []ErrorCase{
			{Err: usecase.ErrInvalidRegistration, Status: http.StatusBadRequest, Message: "invalid registration details"},
			{Err: usecase.ErrEmailAlreadyRegistered, Status: http.StatusConflict, Message: "email is already registered"},
		}, "registration failed")
		return
	}

	c.JSON(http.StatusOK, RegistrationResponse{
		Success:       true,
		TransactionID: challenge.TransactionID,
		ExpiresIn:     challenge.ExpiresIn,
	})
}

func (h *AuthHandler) verifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	pair, user, err := h.registration.VerifyOTP(c.Request.Context(), req.TransactionID, req.Code)
	if err != nil {
		// Absent, expired, and wrong-code cases collapse into one
		// answer so callers cannot probe for live transactions.
		RespondWithMappedError(c, h.log, err, []ErrorCase{
			{Err: usecase.ErrTransactionNotFound, Status: http.StatusBadRequest, Message: "invalid or expired verification code"},
			{Err: usecase.ErrInvalidOTP, Status: http.StatusBadRequest, Message: "invalid or expired verification code"},
			{Err: usecase.ErrEmailAlreadyRegistered, Status: http.StatusConflict, Message: "email is already registered"},
		}, "verification failed")
		return
	}

	c.JSON(http.StatusOK, AuthSuccessResponse{
		Success: true,
		User:    NewUserPayload(*user),
		Tokens:  NewTokenPayload(*pair),
	})
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	pair, user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		RespondWithMappedError(c, h.log, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
			{Err: usecase.ErrAccountNotVerified, Status: http.StatusForbidden, Message: "account is not verified"},
		}, "login failed")
		return
	}

	c.JSON(http.StatusOK, AuthSuccessResponse{
		Success: true,
		User:    NewUserPayload(*user),
		Tokens:  NewTokenPayload(*pair),
	})
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithMappedError(c, h.log, err, []ErrorCase{
			{Err: usecase.ErrInvalidOrExpiredToken, Status: http.StatusUnauthorized, Message: "invalid or expired token"},
		}, "token refresh failed")
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{
		Success: true,
		Tokens:  NewTokenPayload(*pair),
	})
}

func (h *AuthHandler) session(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	pair, user, err := h.auth.ExchangeProviderSession(c.Request.Context(), req.SessionToken)
	if err != nil {
		RespondWithMappedError(c, h.log, err, []ErrorCase{
			{Err: usecase.ErrProviderSessionInvalid, Status: http.StatusUnauthorized, Message: "invalid provider session"},
		}, "session exchange failed")
		return
	}

	c.JSON(http.StatusOK, AuthSuccessResponse{
		Success: true,
		User:    NewUserPayload(*user),
		Tokens:  NewTokenPayload(*pair),
	})
}

func (h *AuthHandler) logout(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), userID); err != nil {
		RespondWithMappedError(c, h.log, err, nil, "logout failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{
		Success: true,
		Message: "logged out",
	})
}
