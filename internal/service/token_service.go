package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService emite y valida tokens firmados de sesión.
// Es agnóstico respecto a los claims: la política sobre qué claims hacen
// falta (por ejemplo "2fa_verified") vive en AuthService.
type TokenService struct {
	secret     []byte
	method     jwt.SigningMethod
	defaultTTL time.Duration
}

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// DefaultAccessTokenTTL replica el vencimiento de 30 minutos del login.
const DefaultAccessTokenTTL = 30 * time.Minute

// NewTokenService construye el codec con clave y algoritmo fijos.
// Solo se aceptan variantes HMAC (HS256, HS384, HS512).
func NewTokenService(secret, algorithm string, defaultTTL time.Duration) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token service: empty secret")
	}
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("token service: unknown algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("token service: algorithm %q is not an HMAC variant", algorithm)
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultAccessTokenTTL
	}
	return &TokenService{
		secret:     []byte(secret),
		method:     method,
		defaultTTL: defaultTTL,
	}, nil
}

// DefaultTTL expone el vencimiento configurado.
func (s *TokenService) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Issue firma un conjunto de claims con subject y vencimiento now+ttl.
// Los claims extra se copian tal cual dentro del payload firmado.
func (s *TokenService) Issue(subject string, extra map[string]any, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": jwt.NewNumericDate(time.Now().UTC().Add(ttl)),
	}
	for k, v := range extra {
		claims[k] = v
	}
	token := jwt.NewWithClaims(s.method, claims)
	return token.SignedString(s.secret)
}

// Decode verifica firma y vencimiento y devuelve los claims.
// Un token vencido (incluido el instante exacto de expiración) devuelve
// ErrTokenExpired; cualquier otro fallo devuelve ErrTokenInvalid.
func (s *TokenService) Decode(tokenString string) (jwt.MapClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrTokenInvalid
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Subject extrae el claim sub de un payload decodificado.
func Subject(claims jwt.MapClaims) string {
	sub, _ := claims["sub"].(string)
	return sub
}
