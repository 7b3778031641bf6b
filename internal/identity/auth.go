package identity

import (
	"context"
	"time"

	"github.com/flipsapp/flips-backend/internal/apperror"
	"github.com/flipsapp/flips-backend/internal/model"

	"go.uber.org/zap"
)

// SignupInput carries the fields of a local signup request
type SignupInput struct {
	Username    string
	Password    string
	FirstName   string
	LastName    string
	Birthday    time.Time
	Nickname    string
	PhoneNumber string
	PhotoURL    string
	FacebookID  string
}

// Signup creates a user with encrypted PII plus a local passport. If the
// passport cannot be created, the user insert is rolled back so no
// account is left without credentials.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	if ageAt(in.Birthday, time.Now()) < MinimalAge {
		return nil, apperror.NewPolicyError("you must be at least 13 years old")
	}
	if !ValidPassword(in.Password) {
		return nil, apperror.NewPolicyError("password must have at least eight characters, one uppercase letter, one lowercase letter and one number")
	}

	user := &model.User{
		Birthday:   in.Birthday,
		PhotoURL:   in.PhotoURL,
		FacebookID: in.FacebookID,
	}

	var err error
	if user.Username, err = s.crypto.Encrypt(in.Username); err != nil {
		return nil, apperror.NewStorageError("error encrypting username", err)
	}
	if user.FirstName, err = s.crypto.Encrypt(in.FirstName); err != nil {
		return nil, apperror.NewStorageError("error encrypting first name", err)
	}
	if user.LastName, err = s.crypto.Encrypt(in.LastName); err != nil {
		return nil, apperror.NewStorageError("error encrypting last name", err)
	}
	if user.Nickname, err = s.crypto.Encrypt(in.Nickname); err != nil {
		return nil, apperror.NewStorageError("error encrypting nickname", err)
	}
	if user.PhoneNumber, err = s.crypto.Encrypt(in.PhoneNumber); err != nil {
		return nil, apperror.NewStorageError("error encrypting phone number", err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	passport := &model.Passport{UserID: user.ID, Protocol: model.ProtocolLocal}
	if err := passport.SetPassword(in.Password); err != nil {
		return nil, apperror.NewStorageError("error hashing password", err)
	}
	if err := s.passports.Create(ctx, passport); err != nil {
		if deleteErr := s.users.Delete(ctx, user); deleteErr != nil {
			s.log.Error("Failed to roll back user after passport failure",
				zap.Uint("user_id", user.ID), zap.Error(deleteErr))
		}
		return nil, err
	}

	s.log.Info("User signed up", zap.Uint("user_id", user.ID))

	decrypted := s.crypto.DecryptUser(*user)
	return &decrypted, nil
}

// Login validates local credentials and returns the decrypted user and a
// session token. Unknown users and wrong passwords are indistinguishable
// to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	encryptedUsername, err := s.crypto.Encrypt(username)
	if err != nil {
		return nil, "", apperror.NewStorageError("error encrypting username", err)
	}

	user, err := s.users.FindByUsername(ctx, encryptedUsername)
	if err != nil {
		if apperror.IsType(err, apperror.NotFoundError) {
			return nil, "", apperror.NewAuthError("invalid credentials")
		}
		return nil, "", err
	}

	passport, err := s.passports.FindByUser(ctx, user.ID)
	if err != nil {
		if apperror.IsType(err, apperror.NotFoundError) {
			return nil, "", apperror.NewAuthError("invalid credentials")
		}
		return nil, "", err
	}

	if !passport.ValidatePassword(password) {
		return nil, "", apperror.NewAuthError("invalid credentials")
	}

	token, err := s.jwt.GenerateToken(username, user.ID)
	if err != nil {
		return nil, "", apperror.New(apperror.UnknownError, "error generating session token", err)
	}

	decrypted := s.crypto.DecryptUser(*user)
	return &decrypted, token, nil
}

// UpdateInput carries optional profile changes; nil means leave as is
type UpdateInput struct {
	Username    *string
	FirstName   *string
	LastName    *string
	Nickname    *string
	PhoneNumber *string
	PhotoURL    *string
	Password    *string
}

// UpdateUser applies a profile update, re-encrypting every changed PII
// field. A password change runs through the passport zero-rows path.
func (s *Service) UpdateUser(ctx context.Context, userID uint, in UpdateInput) (*model.User, error) {
	if in.Password != nil && !ValidPassword(*in.Password) {
		return nil, apperror.NewPolicyError("password must have at least eight characters, one uppercase letter, one lowercase letter and one number")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	setEncrypted := func(dst *string, value *string) error {
		if value == nil {
			return nil
		}
		encrypted, err := s.crypto.Encrypt(*value)
		if err != nil {
			return apperror.NewStorageError("error encrypting field", err)
		}
		*dst = encrypted
		return nil
	}

	if err := setEncrypted(&user.Username, in.Username); err != nil {
		return nil, err
	}
	if err := setEncrypted(&user.FirstName, in.FirstName); err != nil {
		return nil, err
	}
	if err := setEncrypted(&user.LastName, in.LastName); err != nil {
		return nil, err
	}
	if err := setEncrypted(&user.Nickname, in.Nickname); err != nil {
		return nil, err
	}
	if err := setEncrypted(&user.PhoneNumber, in.PhoneNumber); err != nil {
		return nil, err
	}
	if in.PhotoURL != nil {
		user.PhotoURL = *in.PhotoURL
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}

	if in.Password != nil {
		hash, err := model.HashPassword(*in.Password)
		if err != nil {
			return nil, apperror.NewStorageError("error hashing password", err)
		}
		rows, err := s.passports.UpdatePassword(ctx, user.ID, hash)
		if err != nil {
			return nil, err
		}
		if rows < 1 {
			return nil, apperror.NewStorageError("no rows affected while updating passport", nil)
		}
	}

	decrypted := s.crypto.DecryptUser(*user)
	return &decrypted, nil
}
