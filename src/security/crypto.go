package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var (
	ErrInvalidKey        = errors.New("credentials key must be 32 bytes, base64 encoded")
	ErrCiphertextInvalid = errors.New("ciphertext is malformed or was sealed with another key")
)

func loadKey(encoded string) (*[32]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidKey
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// EncryptString seals plaintext with the configured key. The result is
// base64(nonce || box).
func EncryptString(plaintext string) (string, error) {
	return EncryptStringWithKey(GetConfig().ExchangeCRKey, plaintext)
}

// DecryptString opens a value produced by EncryptString.
func DecryptString(sealed string) (string, error) {
	return DecryptStringWithKey(GetConfig().ExchangeCRKey, sealed)
}

func EncryptStringWithKey(encodedKey, plaintext string) (string, error) {
	key, err := loadKey(encodedKey)
	if err != nil {
		return "", err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func DecryptStringWithKey(encodedKey, sealed string) (string, error) {
	key, err := loadKey(encodedKey)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrCiphertextInvalid
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, key)
	if !ok {
		return "", ErrCiphertextInvalid
	}
	return string(plain), nil
}

// HashToken bcrypt-hashes an operator API token.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", errors.New("token is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckToken reports whether token matches the bcrypt hash.
func CheckToken(hash, token string) bool {
	if hash == "" || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
