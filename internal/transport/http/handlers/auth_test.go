package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
)

func registerBody(email string) string {
	return fmt.Sprintf(`{
		"email": %q,
		"password": %q,
		"confirmPassword": %q,
		"firstName": "An",
		"lastName": "Nguyen",
		"dateOfBirth": "1995-04-12"
	}`, email, testPassword, testPassword)
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", registerBody("shopper@example.com"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}

	var challenge RegistrationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &challenge); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if challenge.TransactionID == "" {
		t.Fatal("expected a transaction id")
	}
	if challenge.ExpiresIn != 600 {
		t.Fatalf("ExpiresIn = %d, want 600", challenge.ExpiresIn)
	}

	code := env.mail.lastOTP()
	if len(code) != 6 {
		t.Fatalf("OTP code = %q, want 6 digits", code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/verify-otp",
		fmt.Sprintf(`{"transactionId": %q, "code": %q}`, challenge.TransactionID, code), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify-otp status = %d, body %s", rec.Code, rec.Body.String())
	}

	var verified AuthSuccessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &verified); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if !verified.Success || verified.Tokens.AccessToken == "" || verified.Tokens.RefreshToken == "" {
		t.Fatal("expected issued tokens")
	}
	if verified.Tokens.ExpiresIn != 900 || verified.Tokens.RefreshExpiresIn != 604800 {
		t.Fatalf("token TTLs = (%d, %d)", verified.Tokens.ExpiresIn, verified.Tokens.RefreshExpiresIn)
	}
	if verified.User.Email != "shopper@example.com" || !verified.User.IsVerified {
		t.Fatalf("unexpected user payload: %+v", verified.User)
	}
	if verified.User.Role != string(domain.RoleUser) {
		t.Fatalf("Role = %s, want USER", verified.User.Role)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login",
		fmt.Sprintf(`{"email": "shopper@example.com", "password": %q}`, testPassword), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", `{"email": "only@example.com"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/register",
		`{"email": "a@b.c", "password": "x", "confirmPassword": "x", "firstName": "A", "lastName": "B", "dateOfBirth": "12/04/1995"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d", rec.Code)
	}
}

func TestRegisterPasswordConfirmationMismatch(t *testing.T) {
	env := newTestEnv(t)

	body := fmt.Sprintf(`{
		"email": "shopper@example.com",
		"password": %q,
		"confirmPassword": "Different!Pass#4321",
		"firstName": "An",
		"lastName": "Nguyen"
	}`, testPassword)

	rec := env.do(t, http.MethodPost, "/api/auth/register", body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "invalid registration details" {
		t.Fatalf("error %q", resp.Error)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "user-1", "taken@example.com", domain.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/auth/register", registerBody("taken@example.com"), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success || resp.Error == "" || resp.TraceID == "" {
		t.Fatalf("unexpected error envelope: %+v", resp)
	}
}

func TestVerifyOTPWrongCode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", registerBody("shopper@example.com"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("register status = %d", rec.Code)
	}
	var challenge RegistrationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &challenge); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/verify-otp",
		fmt.Sprintf(`{"transactionId": %q, "code": "000000"}`, challenge.TransactionID), nil)
	if env.mail.lastOTP() == "000000" {
		t.Skip("generated code collided with the wrong-code fixture")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong code status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Transaction survives a wrong attempt.
	rec = env.do(t, http.MethodPost, "/api/auth/verify-otp",
		fmt.Sprintf(`{"transactionId": %q, "code": %q}`, challenge.TransactionID, env.mail.lastOTP()), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestVerifyOTPUnknownTransaction(t *testing.T) {
	env := newTestEnv(t)

	// Unknown transactions are indistinguishable from wrong codes.
	rec := env.do(t, http.MethodPost, "/api/auth/verify-otp",
		`{"transactionId": "missing", "code": "123456"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "user-1", "shopper@example.com", domain.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/auth/login",
		`{"email": "shopper@example.com", "password": "wrong-password"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login",
		fmt.Sprintf(`{"email": "nobody@example.com", "password": %q}`, testPassword), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email status = %d", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "user-1", "shopper@example.com", domain.RoleUser)

	body := `{"email": "shopper@example.com", "password": "wrong-password"}`
	for i := 0; i < 10; i++ {
		rec := env.do(t, http.MethodPost, "/api/auth/login", body, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i+1, rec.Code)
		}
	}

	rec := env.do(t, http.MethodPost, "/api/auth/login", body, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected a Retry-After header")
	}

	var resp RateLimitedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RetryAfter < 1 {
		t.Fatalf("RetryAfter = %d", resp.RetryAfter)
	}

	// The correct password is refused too while blocked.
	rec = env.do(t, http.MethodPost, "/api/auth/login",
		fmt.Sprintf(`{"email": "shopper@example.com", "password": %q}`, testPassword), nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("blocked login status = %d, want 429", rec.Code)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "user-1", "shopper@example.com", domain.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/auth/login",
		fmt.Sprintf(`{"email": "shopper@example.com", "password": %q}`, testPassword), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	var login AuthSuccessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/refresh",
		fmt.Sprintf(`{"refreshToken": %q}`, login.Tokens.RefreshToken), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	var refreshed RefreshResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &refreshed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if refreshed.Tokens.RefreshToken == login.Tokens.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The consumed token is dead after rotation.
	rec = env.do(t, http.MethodPost, "/api/auth/refresh",
		fmt.Sprintf(`{"refreshToken": %q}`, login.Tokens.RefreshToken), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh status = %d, want 401", rec.Code)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "user-1", "shopper@example.com", domain.RoleUser)
	access := env.accessTokenFor(t, user)

	rec := env.do(t, http.MethodPost, "/api/auth/refresh",
		fmt.Sprintf(`{"refreshToken": %q}`, access), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "user-1", "shopper@example.com", domain.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/auth/login",
		fmt.Sprintf(`{"email": "shopper@example.com", "password": %q}`, testPassword), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	var login AuthSuccessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated logout status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/logout", "", map[string]string{
		"Authorization": "Bearer " + login.Tokens.AccessToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Logout revokes the stored refresh token.
	rec = env.do(t, http.MethodPost, "/api/auth/refresh",
		fmt.Sprintf(`{"refreshToken": %q}`, login.Tokens.RefreshToken), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d, want 401", rec.Code)
	}
}
