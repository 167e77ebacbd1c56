package service

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrCorruptCredential indica que el hash almacenado no se puede interpretar.
// Se distingue de una contraseña incorrecta: la primera es un problema del
// almacén de credenciales, la segunda es un fallo normal de login.
var ErrCorruptCredential = errors.New("corrupt credential hash")

// HashPassword genera un hash bcrypt con salt aleatorio y el costo por
// defecto. Dos llamadas con la misma contraseña producen hashes distintos.
func HashPassword(plain string) (string, error) {
	return HashPasswordWithCost(plain, bcrypt.DefaultCost)
}

// HashPasswordWithCost permite ajustar el factor de trabajo; un costo
// menor al mínimo cae al valor por defecto de bcrypt.
func HashPasswordWithCost(plain string, cost int) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

// VerifyPassword compara una contraseña en claro contra el hash almacenado.
// Devuelve (false, nil) si no coincide y (false, ErrCorruptCredential) si el
// hash almacenado está malformado.
func VerifyPassword(plain, storedHash string) (bool, error) {
	if strings.TrimSpace(storedHash) == "" {
		return false, ErrCorruptCredential
	}
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, ErrCorruptCredential
}
