// Package krypto implements the PII encryption boundary. Encryption must
// be deterministic: encrypted usernames and phone numbers are used as
// exact-match query predicates and back a unique index, so the same
// plaintext has to produce the same ciphertext on every call.
package krypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/flipsapp/flips-backend/internal/model"
)

const nonceSize = 12

var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// Krypto encrypts and decrypts PII field values with AES-GCM. The nonce
// is synthesized from an HMAC of the plaintext, which makes the output
// deterministic at the cost of revealing equality between ciphertexts.
// Equality is exactly what the storage layer needs here.
type Krypto struct {
	key      []byte
	nonceKey []byte
}

// New derives the AES key and the nonce key from the configured secret
func New(secret string) *Krypto {
	key := sha256.Sum256([]byte(secret))
	nonceKey := sha256.Sum256([]byte("nonce:" + secret))
	return &Krypto{key: key[:], nonceKey: nonceKey[:]}
}

// Encrypt returns the deterministic ciphertext for a field value. Empty
// input is passed through untouched so optional fields stay optional.
func (k *Krypto) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aesgcm, err := k.aead()
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, k.nonceKey)
	mac.Write([]byte(plaintext))
	nonce := mac.Sum(nil)[:nonceSize]

	sealed := aesgcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Malformed input yields ErrMalformedCiphertext
// rather than a panic, so batch callers can degrade per record.
func (k *Krypto) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	if len(raw) < nonceSize {
		return "", ErrMalformedCiphertext
	}

	aesgcm, err := k.aead()
	if err != nil {
		return "", err
	}

	plaintext, err := aesgcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	return string(plaintext), nil
}

// DecryptUser returns a projection of the user with every PII field
// replaced by its decrypted value. Best effort: a field that fails to
// decrypt is passed through as stored instead of failing the record.
func (k *Krypto) DecryptUser(user model.User) model.User {
	user.Username = k.decryptField(user.Username)
	user.FirstName = k.decryptField(user.FirstName)
	user.LastName = k.decryptField(user.LastName)
	user.PhoneNumber = k.decryptField(user.PhoneNumber)
	user.Nickname = k.decryptField(user.Nickname)
	return user
}

// DecryptUsers applies DecryptUser to each element. Every element is
// processed even if earlier ones had undecryptable fields.
func (k *Krypto) DecryptUsers(users []model.User) []model.User {
	decrypted := make([]model.User, 0, len(users))
	for _, user := range users {
		decrypted = append(decrypted, k.DecryptUser(user))
	}
	return decrypted
}

func (k *Krypto) decryptField(value string) string {
	plaintext, err := k.Decrypt(value)
	if err != nil {
		return value
	}
	return plaintext
}

func (k *Krypto) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
