package keys

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"tradelifecycle/src/security"
)

var ErrEmptyInput = errors.New("input is empty")

// Seal encrypts a venue secret with EXCHANGE_CREDENTIALS_KEY and writes the
// value to put in BINANCE_API_SECRET_SEALED.
func Seal(w io.Writer, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrEmptyInput
	}
	sealed, err := security.EncryptString(secret)
	if err != nil {
		return fmt.Errorf("seal secret: %w", err)
	}
	_, err = fmt.Fprintln(w, sealed)
	return err
}

// Open reverses Seal, for checking a sealed value before deploying it.
func Open(w io.Writer, sealed string) error {
	sealed = strings.TrimSpace(sealed)
	if sealed == "" {
		return ErrEmptyInput
	}
	plain, err := security.DecryptString(sealed)
	if err != nil {
		return fmt.Errorf("open sealed secret: %w", err)
	}
	_, err = fmt.Fprintln(w, plain)
	return err
}

// HashToken writes the bcrypt hash for API_TOKEN_HASH.
func HashToken(w io.Writer, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyInput
	}
	hash, err := security.HashToken(token)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}
