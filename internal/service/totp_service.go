package service

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Parámetros TOTP fijos: paso de 30 segundos, 6 dígitos, SHA-1 y una
// ventana de tolerancia de ±1 paso para desfase de reloj. La tolerancia
// acotada evita ventanas de replay abiertas.
const (
	totpPeriod     = 30
	totpSecretSize = 20
)

var totpValidateOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// TOTPService genera secretos 2FA y verifica códigos de un solo uso.
type TOTPService struct {
	issuer string
}

func NewTOTPService(issuer string) *TOTPService {
	if strings.TrimSpace(issuer) == "" {
		issuer = "Bueiro Digital"
	}
	return &TOTPService{issuer: issuer}
}

// GenerateSecret devuelve un secreto aleatorio en base32 sin padding,
// listo para enrolar en una app de autenticación.
func (s *TOTPService) GenerateSecret() (string, error) {
	buf := make([]byte, totpSecretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// VerifyCode valida un código contra el secreto en la ventana de tiempo
// actual. Un código incorrecto o malformado devuelve false, nunca error.
func (s *TOTPService) VerifyCode(secret, code string) bool {
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totpValidateOpts)
	if err != nil {
		return false
	}
	return ok
}

// ProvisioningURI arma la URL otpauth:// para enrolar el secreto vía QR.
// No toca red ni estado: es solo formateo.
func (s *TOTPService) ProvisioningURI(secret, accountLabel string) (string, error) {
	raw, err := decodeBase32Secret(secret)
	if err != nil {
		return "", err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountLabel,
		Secret:      raw,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}

func decodeBase32Secret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "="))
	if normalized == "" {
		return nil, errors.New("empty totp secret")
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
}
