package model

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ProtocolLocal is the only credential protocol currently issued
const ProtocolLocal = "local"

// Passport is the credential record for a user, kept apart from the
// profile. One local passport per user; the Password column holds a
// bcrypt hash, never plaintext.
type Passport struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	Protocol  string    `json:"protocol" gorm:"type:varchar(20);not null;default:'local'"`
	Password  string    `json:"-" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetPassword hashes the plaintext password into the record
func (p *Passport) SetPassword(plaintext string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.Password = string(hashed)
	return nil
}

// ValidatePassword checks the plaintext password against the stored hash
func (p *Passport) ValidatePassword(plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(p.Password), []byte(plaintext)) == nil
}

// HashPassword hashes a plaintext password for storage in a passport
func HashPassword(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
