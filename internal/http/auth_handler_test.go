package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"bueiro-auth/internal/domain"
	"bueiro-auth/internal/service"
)

var testValidateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

type testEnv struct {
	router *gin.Engine
	repo   *stubUserRepo
	tokens *service.TokenService
	totp   *service.TOTPService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	repo := newStubUserRepo()
	tokens := newTestTokens(t)
	totpSvc := service.NewTOTPService("Bueiro Digital")
	authSvc := service.NewAuthService(logger, repo, tokens, totpSvc)
	handler := NewAuthHandler(logger, authSvc, nil)
	router := NewRouter(logger, handler, tokens, repo, nil, nil)

	return &testEnv{router: router, repo: repo, tokens: tokens, totp: totpSvc}
}

func (e *testEnv) seedUser(t *testing.T, user domain.User, password string) domain.User {
	t.Helper()
	hash, err := service.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user.PasswordHash = hash
	if user.ID == "" {
		user.ID = "u-" + user.Email
	}
	if err := e.repo.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (e *testEnv) postLogin(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	if username != "" {
		form.Set("username", username)
	}
	if password != "" {
		form.Set("password", password)
	}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestLoginEndpoint_Success(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, domain.User{Email: "user@example.com", IsActive: true}, "hunter2")

	rec := env.postLogin(t, "user@example.com", "hunter2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["token_type"] != "bearer" {
		t.Fatalf("expected bearer token_type, got %v", body["token_type"])
	}
	accessToken, _ := body["access_token"].(string)
	if accessToken == "" {
		t.Fatalf("expected access_token in response: %v", body)
	}
	claims, err := env.tokens.Decode(accessToken)
	if err != nil {
		t.Fatalf("decode issued token: %v", err)
	}
	if service.Subject(claims) != "user@example.com" {
		t.Fatalf("unexpected subject: %v", claims["sub"])
	}
}

func TestLoginEndpoint_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, domain.User{Email: "user@example.com", IsActive: true}, "hunter2")

	wrongPassword := env.postLogin(t, "user@example.com", "nope")
	unknownEmail := env.postLogin(t, "ghost@example.com", "hunter2")

	if wrongPassword.Code != http.StatusUnauthorized || unknownEmail.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongPassword.Code, unknownEmail.Code)
	}
	// La respuesta no distingue email inexistente de contraseña incorrecta.
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Fatalf("responses must be identical: %q vs %q", wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestLoginEndpoint_InactiveUser(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, domain.User{Email: "user@example.com", IsActive: false}, "hunter2")

	rec := env.postLogin(t, "user@example.com", "hunter2")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inactive user, got %d", rec.Code)
	}
}

func TestLoginEndpoint_MissingFormFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postLogin(t, "user@example.com", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing password, got %d", rec.Code)
	}
}

func TestLoginEndpoint_Requires2FAReturnsTempToken(t *testing.T) {
	env := newTestEnv(t)
	secret, err := env.totp.GenerateSecret()
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	env.seedUser(t, domain.User{
		Email:           "user@example.com",
		IsActive:        true,
		Requires2FA:     true,
		TwoFactorSecret: secret,
	}, "hunter2")

	rec := env.postLogin(t, "user@example.com", "hunter2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["requires_2fa"] != true {
		t.Fatalf("expected requires_2fa, got %v", body)
	}
	tempToken, _ := body["temp_token"].(string)
	if tempToken == "" {
		t.Fatalf("expected temp_token, got %v", body)
	}
	if _, ok := body["access_token"]; ok {
		t.Fatalf("pending-2fa response must not carry access_token: %v", body)
	}
	claims, err := env.tokens.Decode(tempToken)
	if err != nil {
		t.Fatalf("decode temp token: %v", err)
	}
	if verified, _ := claims[service.TwoFactorVerifiedClaim].(bool); verified {
		t.Fatalf("temp token must not claim 2fa_verified")
	}
}

func TestVerify2FAEndpoint_FullFlow(t *testing.T) {
	env := newTestEnv(t)
	secret, err := env.totp.GenerateSecret()
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	env.seedUser(t, domain.User{
		Email:           "user@example.com",
		IsActive:        true,
		Requires2FA:     true,
		TwoFactorSecret: secret,
	}, "hunter2")

	login := env.postLogin(t, "user@example.com", "hunter2")
	tempToken, _ := decodeBody(t, login)["temp_token"].(string)
	if tempToken == "" {
		t.Fatalf("expected temp token from login")
	}

	code, err := totp.GenerateCodeCustom(secret, time.Now().UTC(), testValidateOpts)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/verify-2fa?two_factor_token="+code, nil)
	req.Header.Set("Authorization", "Bearer "+tempToken)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	accessToken, _ := body["access_token"].(string)
	if accessToken == "" || body["token_type"] != "bearer" {
		t.Fatalf("expected bearer access token, got %v", body)
	}
	claims, err := env.tokens.Decode(accessToken)
	if err != nil {
		t.Fatalf("decode access token: %v", err)
	}
	if verified, _ := claims[service.TwoFactorVerifiedClaim].(bool); !verified {
		t.Fatalf("expected 2fa_verified claim after verification")
	}
}

func TestVerify2FAEndpoint_BadCode(t *testing.T) {
	env := newTestEnv(t)
	secret, err := env.totp.GenerateSecret()
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	env.seedUser(t, domain.User{
		Email:           "user@example.com",
		IsActive:        true,
		Requires2FA:     true,
		TwoFactorSecret: secret,
	}, "hunter2")

	login := env.postLogin(t, "user@example.com", "hunter2")
	tempToken, _ := decodeBody(t, login)["temp_token"].(string)

	body := strings.NewReader(`{"two_factor_token": "000000"}`)
	req := httptest.NewRequest(http.MethodPost, "/verify-2fa", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tempToken)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad code, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestVerify2FAEndpoint_RequiresBearerAuth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/verify-2fa?two_factor_token=123456", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", rec.Code)
	}
}

func TestSetup2FAEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, domain.User{Email: "user@example.com", IsActive: true}, "hunter2")

	login := env.postLogin(t, "user@example.com", "hunter2")
	accessToken, _ := decodeBody(t, login)["access_token"].(string)

	req := httptest.NewRequest(http.MethodPost, "/setup-2fa", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	secret, _ := body["secret"].(string)
	uri, _ := body["uri"].(string)
	if secret == "" || !strings.HasPrefix(uri, "otpauth://totp/") {
		t.Fatalf("expected secret and otpauth uri, got %v", body)
	}

	stored, err := env.repo.GetByEmail(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.TwoFactorSecret != secret || !stored.Requires2FA {
		t.Fatalf("expected persisted secret and flag, got %+v", stored)
	}

	// Segunda llamada: el alta es de un solo uso.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/setup-2fa", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on repeated setup, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body)
	}
}
