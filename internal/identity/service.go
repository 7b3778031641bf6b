// Package identity ties devices to users: phone-number binding, password
// reset gated by device verification, temporary-user promotion, and the
// local signup/login protocol. It never compares verification codes
// itself; all code handling goes through the verification package.
package identity

import (
	"context"
	"time"

	"github.com/flipsapp/flips-backend/internal/apperror"
	"github.com/flipsapp/flips-backend/internal/krypto"
	"github.com/flipsapp/flips-backend/internal/model"
	"github.com/flipsapp/flips-backend/internal/verification"
	"github.com/flipsapp/flips-backend/pkg/jwtutil"
	"github.com/flipsapp/flips-backend/prometheus"

	"go.uber.org/zap"
)

// MinimalAge is the youngest age allowed to sign up
const MinimalAge = 13

// UserStore is the user persistence the identity flows need
type UserStore interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByEncryptedPhone(ctx context.Context, encryptedPhone string) (*model.User, error)
	FindByUsername(ctx context.Context, encryptedUsername string) (*model.User, error)
	FindByUsernameAndPhone(ctx context.Context, encryptedUsername, encryptedPhone string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Save(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, user *model.User) error
}

// DeviceStore is the device persistence the identity flows need
type DeviceStore interface {
	FindByID(ctx context.Context, id uint) (*model.Device, error)
	FindByUser(ctx context.Context, userID uint) (*model.Device, error)
	Create(ctx context.Context, device *model.Device) error
}

// PassportStore is the credential persistence the identity flows need
type PassportStore interface {
	Create(ctx context.Context, passport *model.Passport) error
	FindByUser(ctx context.Context, userID uint) (*model.Passport, error)
	UpdatePassword(ctx context.Context, userID uint, passwordHash string) (int64, error)
}

// Service implements the identity reconciliation flows
type Service struct {
	users     UserStore
	devices   DeviceStore
	passports PassportStore
	verifier  *verification.Verifier
	crypto    *krypto.Krypto
	jwt       *jwtutil.JWTUtil
	log       *zap.Logger
}

// NewService wires the identity flows to their collaborators
func NewService(users UserStore, devices DeviceStore, passports PassportStore, verifier *verification.Verifier, crypto *krypto.Krypto, jwt *jwtutil.JWTUtil, log *zap.Logger) *Service {
	return &Service{
		users:     users,
		devices:   devices,
		passports: passports,
		verifier:  verifier,
		crypto:    crypto,
		jwt:       jwt,
		log:       log,
	}
}

// ForgotInput carries the forgot-password request fields
type ForgotInput struct {
	PhoneNumber string
	DeviceID    uint   // 0 means no device supplied
	Platform    string // used when a device has to be created
	DeviceToken string
}

// Forgot starts a password reset: it locates the user by phone number,
// reuses or creates a device, and dispatches a fresh verification code.
// Accounts backed by a federated login are rejected before any device is
// created or code dispatched.
func (s *Service) Forgot(ctx context.Context, in ForgotInput) (uint, error) {
	encryptedPhone, err := s.crypto.Encrypt(in.PhoneNumber)
	if err != nil {
		return 0, apperror.NewStorageError("error encrypting phone number", err)
	}

	user, err := s.users.FindByEncryptedPhone(ctx, encryptedPhone)
	if err != nil {
		return 0, err
	}

	if user.FacebookID != "" {
		return 0, apperror.NewPolicyError("this account signs in with facebook; password reset does not apply")
	}

	var device *model.Device
	if in.DeviceID != 0 {
		device, err = s.devices.FindByID(ctx, in.DeviceID)
		if err != nil {
			return 0, err
		}
		if device.UserID != user.ID {
			return 0, apperror.NewValidationError("device does not belong to this user")
		}
	} else {
		device = &model.Device{
			UserID:      user.ID,
			Platform:    in.Platform,
			UUID:        in.DeviceToken,
			PhoneNumber: in.PhoneNumber,
		}
		if err := s.devices.Create(ctx, device); err != nil {
			return 0, err
		}
		device.User = *user
	}

	if err := s.verifier.Resend(ctx, device); err != nil {
		return 0, err
	}

	prometheus.PasswordResetCounter.WithLabelValues("forgot").Inc()
	s.log.Info("Password reset initiated",
		zap.Uint("user_id", user.ID), zap.Uint("device_id", device.ID))
	return device.ID, nil
}

// VerifyForReset submits a code for the reset flow. On success the user
// is promoted out of the temporary state and, if a phone number was
// supplied and none is bound yet, it is bound (first write wins). The
// returned device carries the decrypted user projection.
func (s *Service) VerifyForReset(ctx context.Context, phoneNumber, code string, deviceID uint, newPhoneNumber string) (*model.Device, error) {
	encryptedPhone, err := s.crypto.Encrypt(phoneNumber)
	if err != nil {
		return nil, apperror.NewStorageError("error encrypting phone number", err)
	}

	user, err := s.users.FindByEncryptedPhone(ctx, encryptedPhone)
	if err != nil {
		return nil, err
	}

	device, err := s.devices.FindByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device.UserID != user.ID {
		return nil, apperror.NewValidationError("device does not belong to this user")
	}

	if err := s.verifier.SubmitCode(ctx, device, code); err != nil {
		return nil, err
	}

	user.IsTemporary = false
	if newPhoneNumber != "" {
		if err := s.bindPhoneNumber(user, newPhoneNumber); err != nil {
			return nil, err
		}
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}

	prometheus.PasswordResetCounter.WithLabelValues("verify").Inc()

	device.User = s.crypto.DecryptUser(*user)
	return device, nil
}

// UpdatePassword finishes the reset: all identifiers must match one user,
// the code must match the device, and the new password must satisfy the
// policy. A wrong code silently rotates the stored code instead of
// running the retry state machine.
func (s *Service) UpdatePassword(ctx context.Context, email, phoneNumber, code string, deviceID uint, password string) error {
	encryptedUsername, err := s.crypto.Encrypt(email)
	if err != nil {
		return apperror.NewStorageError("error encrypting email", err)
	}
	encryptedPhone, err := s.crypto.Encrypt(phoneNumber)
	if err != nil {
		return apperror.NewStorageError("error encrypting phone number", err)
	}

	user, err := s.users.FindByUsernameAndPhone(ctx, encryptedUsername, encryptedPhone)
	if err != nil {
		return err
	}

	device, err := s.devices.FindByID(ctx, deviceID)
	if err != nil {
		return err
	}
	if device.UserID != user.ID {
		return apperror.NewValidationError("device does not belong to this user")
	}

	if err := s.verifier.VerifyCodeOrRotate(ctx, device, code); err != nil {
		return err
	}

	if !ValidPassword(password) {
		return apperror.NewPolicyError("password must have at least eight characters, one uppercase letter, one lowercase letter and one number")
	}

	hash, err := model.HashPassword(password)
	if err != nil {
		return apperror.NewStorageError("error hashing password", err)
	}

	rows, err := s.passports.UpdatePassword(ctx, user.ID, hash)
	if err != nil {
		return err
	}
	if rows < 1 {
		return apperror.NewStorageError("no rows affected while updating passport", nil)
	}

	prometheus.PasswordResetCounter.WithLabelValues("update").Inc()
	s.log.Info("Password updated", zap.Uint("user_id", user.ID))
	return nil
}

// bindPhoneNumber encrypts and binds a phone number if none is bound yet.
// Already-bound numbers are left alone: first write wins.
func (s *Service) bindPhoneNumber(user *model.User, phoneNumber string) error {
	if user.PhoneNumber != "" {
		return nil
	}
	encrypted, err := s.crypto.Encrypt(phoneNumber)
	if err != nil {
		return apperror.NewStorageError("error encrypting phone number", err)
	}
	user.PhoneNumber = encrypted
	return nil
}

// GetUser returns the decrypted projection of a user
func (s *Service) GetUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	decrypted := s.crypto.DecryptUser(*user)
	return &decrypted, nil
}

// ageAt returns full years between birthday and now
func ageAt(birthday, now time.Time) int {
	years := now.Year() - birthday.Year()
	if now.YearDay() < birthday.YearDay() {
		years--
	}
	return years
}
