package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"bueiro-auth/internal/domain"
	"bueiro-auth/internal/repository"
)

// TwoFactorVerifiedClaim es el claim que distingue un token de sesión
// completo de un token temporal a la espera del segundo factor.
const TwoFactorVerifiedClaim = "2fa_verified"

var (
	ErrInvalidCredentials         = errors.New("invalid credentials")
	ErrInactiveAccount            = errors.New("inactive account")
	ErrInvalidTwoFactorCode       = errors.New("invalid two factor code")
	ErrTwoFactorAlreadyConfigured = errors.New("two factor already configured")
)

// AuthService coordina login, verificación 2FA y alta de 2FA.
type AuthService struct {
	logger *zap.Logger
	users  repository.UserRepository
	tokens *TokenService
	totp   *TOTPService
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, tokens *TokenService, totp *TOTPService) *AuthService {
	return &AuthService{
		logger: logger,
		users:  users,
		tokens: tokens,
		totp:   totp,
	}
}

// LoginResult es la respuesta de Login y VerifyTwoFactor. O bien trae un
// access token usable, o bien marca que falta el segundo factor y entrega
// un token temporal para completarlo.
type LoginResult struct {
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	Requires2FA bool   `json:"requires_2fa,omitempty"`
	TempToken   string `json:"temp_token,omitempty"`
}

// TwoFactorSetup es la respuesta de SetupTwoFactor.
type TwoFactorSetup struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

// Login autentica email y contraseña y emite un token con sub=email.
// Un email inexistente y una contraseña incorrecta devuelven exactamente
// el mismo error: la respuesta nunca revela cuál de los dos falló.
// La cuenta inactiva se chequea recién después de verificar la contraseña
// y se reporta distinta a propósito; es el comportamiento observable del
// sistema, no un descuido.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if s.users == nil {
		return LoginResult{}, errors.New("auth service not configured")
	}

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		// Hash ilegible: problema del almacén, no del usuario. Se loguea
		// distinto pero hacia afuera responde igual que una credencial mala.
		if s.logger != nil {
			s.logger.Error("stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
		}
		return LoginResult{}, ErrCorruptCredential
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		return LoginResult{}, ErrInactiveAccount
	}

	token, err := s.tokens.Issue(user.Email, nil, s.tokens.DefaultTTL())
	if err != nil {
		return LoginResult{}, err
	}

	if user.Requires2FA {
		return LoginResult{Requires2FA: true, TempToken: token}, nil
	}
	return LoginResult{AccessToken: token, TokenType: "bearer"}, nil
}

// VerifyTwoFactor valida el código TOTP de una identidad ya autenticada
// (resuelta por el middleware bearer) y emite el token de sesión completo
// con el claim 2fa_verified.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, user domain.User, code string) (LoginResult, error) {
	if s.totp == nil || s.tokens == nil {
		return LoginResult{}, errors.New("auth service not configured")
	}

	if user.TwoFactorSecret == "" || !s.totp.VerifyCode(user.TwoFactorSecret, code) {
		return LoginResult{}, ErrInvalidTwoFactorCode
	}

	token, err := s.tokens.Issue(user.Email, map[string]any{TwoFactorVerifiedClaim: true}, s.tokens.DefaultTTL())
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{AccessToken: token, TokenType: "bearer"}, nil
}

// SetupTwoFactor genera el secreto 2FA de la cuenta y lo persiste junto
// con requires_2fa. Es de un solo uso: si ya hay secreto, falla; no existe
// rotación ni baja del secreto.
func (s *AuthService) SetupTwoFactor(ctx context.Context, user domain.User) (TwoFactorSetup, error) {
	if s.users == nil || s.totp == nil {
		return TwoFactorSetup{}, errors.New("auth service not configured")
	}

	if user.TwoFactorSecret != "" {
		return TwoFactorSetup{}, ErrTwoFactorAlreadyConfigured
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return TwoFactorSetup{}, err
	}
	uri, err := s.totp.ProvisioningURI(secret, user.Email)
	if err != nil {
		return TwoFactorSetup{}, err
	}

	if err := s.users.UpdateTwoFactor(ctx, user.ID, secret, true); err != nil {
		return TwoFactorSetup{}, err
	}

	return TwoFactorSetup{Secret: secret, URI: uri}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
