// Package bootstrap seeds the built-in service accounts at startup.
package bootstrap

import (
	"context"
	"time"

	"github.com/flipsapp/flips-backend/internal/apperror"
	"github.com/flipsapp/flips-backend/internal/identity"
	"github.com/flipsapp/flips-backend/internal/krypto"
	"github.com/flipsapp/flips-backend/internal/model"
	"github.com/flipsapp/flips-backend/pkg/config"

	"go.uber.org/zap"
)

// UserStore is the subset of user persistence the seeder needs.
type UserStore interface {
	FindByUsername(ctx context.Context, encryptedUsername string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
}

// PassportStore is the subset of passport persistence the seeder needs.
type PassportStore interface {
	Create(ctx context.Context, passport *model.Passport) error
	UpdatePassword(ctx context.Context, userID uint, passwordHash string) (int64, error)
}

// Seeder creates the service accounts the mobile clients expect to exist.
type Seeder struct {
	users     UserStore
	passports PassportStore
	crypto    *krypto.Krypto
	log       *zap.Logger
}

func NewSeeder(users UserStore, passports PassportStore, crypto *krypto.Krypto, log *zap.Logger) *Seeder {
	return &Seeder{users: users, passports: passports, crypto: crypto, log: log}
}

// Run seeds every configured account. Failures are logged and never
// abort startup; a half-seeded account is repaired on the next run.
func (s *Seeder) Run(ctx context.Context, cfg config.SeedConfig) {
	for _, account := range []config.SeedAccount{cfg.Team, cfg.Stock} {
		if account.Username == "" {
			continue
		}
		if err := s.seedAccount(ctx, account); err != nil {
			s.log.Error("##### CRITICAL ERROR: seeding service account failed",
				zap.String("username", account.Username), zap.Error(err))
		}
	}
}

func (s *Seeder) seedAccount(ctx context.Context, account config.SeedAccount) error {
	if !identity.ValidPassword(account.Password) {
		return apperror.NewValidationError("seed password does not satisfy the password policy")
	}

	encryptedUsername, err := s.crypto.Encrypt(account.Username)
	if err != nil {
		return err
	}

	user, err := s.users.FindByUsername(ctx, encryptedUsername)
	if err != nil {
		if !apperror.IsType(err, apperror.NotFoundError) {
			return err
		}
		user, err = s.createUser(ctx, account, encryptedUsername)
		if err != nil {
			return err
		}
		s.log.Info("Service account created",
			zap.String("username", account.Username), zap.Uint("user_id", user.ID))
	}

	// Re-applying the password keeps the stored hash in sync with the
	// environment even when the account already exists.
	hash, err := model.HashPassword(account.Password)
	if err != nil {
		return err
	}
	rows, err := s.passports.UpdatePassword(ctx, user.ID, hash)
	if err != nil {
		return err
	}
	if rows < 1 {
		passport := &model.Passport{UserID: user.ID, Protocol: model.ProtocolLocal, Password: hash}
		return s.passports.Create(ctx, passport)
	}
	return nil
}

func (s *Seeder) createUser(ctx context.Context, account config.SeedAccount, encryptedUsername string) (*model.User, error) {
	encryptedFirstName, err := s.crypto.Encrypt(account.FirstName)
	if err != nil {
		return nil, err
	}
	encryptedLastName, err := s.crypto.Encrypt(" ")
	if err != nil {
		return nil, err
	}
	encryptedPhone, err := s.crypto.Encrypt(account.PhoneNumber)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:    encryptedUsername,
		FirstName:   encryptedFirstName,
		LastName:    encryptedLastName,
		PhoneNumber: encryptedPhone,
		PhotoURL:    account.PhotoURL,
		IsTemporary: false,
	}
	if account.Birthday != "" {
		if birthday, parseErr := time.Parse("2006-01-02", account.Birthday); parseErr == nil {
			user.Birthday = birthday
		}
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
