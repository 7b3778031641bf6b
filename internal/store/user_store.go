// Package store holds the gorm-backed persistence layer. Stores are
// plain structs over *gorm.DB, constructed once and injected into the
// services that need them. Lookup predicates on PII columns always take
// already-encrypted values; encryption happens at the caller.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/flipsapp/flips-backend/internal/apperror"
	"github.com/flipsapp/flips-backend/internal/model"
	"github.com/flipsapp/flips-backend/prometheus"

	"gorm.io/gorm"
)

// UserStore persists User records
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a user store over the given database handle
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindByID returns the user with the given id
func (s *UserStore) FindByID(ctx context.Context, id uint) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("user not found")
		}
		return nil, apperror.NewStorageError("error retrieving user", err)
	}
	return &user, nil
}

// FindByEncryptedPhone returns the user owning the given encrypted phone number
func (s *UserStore) FindByEncryptedPhone(ctx context.Context, encryptedPhone string) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	err := s.db.WithContext(ctx).Where("phone_number = ?", encryptedPhone).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("user not found")
		}
		return nil, apperror.NewStorageError("error retrieving user by phone number", err)
	}
	return &user, nil
}

// FindByUsername returns the user with the given encrypted username
func (s *UserStore) FindByUsername(ctx context.Context, encryptedUsername string) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	err := s.db.WithContext(ctx).Where("username = ?", encryptedUsername).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("user not found")
		}
		return nil, apperror.NewStorageError("error retrieving user by username", err)
	}
	return &user, nil
}

// FindByUsernameAndPhone returns the user matching both encrypted predicates
func (s *UserStore) FindByUsernameAndPhone(ctx context.Context, encryptedUsername, encryptedPhone string) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	err := s.db.WithContext(ctx).
		Where("username = ? AND phone_number = ?", encryptedUsername, encryptedPhone).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("username and/or phone number do not match any user")
		}
		return nil, apperror.NewStorageError("error retrieving user", err)
	}
	return &user, nil
}

// FindByEncryptedPhones returns all users whose encrypted phone number is
// in the given batch. The caller is responsible for bounding the batch size.
func (s *UserStore) FindByEncryptedPhones(ctx context.Context, encryptedPhones []string) ([]model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var users []model.User
	err := s.db.WithContext(ctx).Where("phone_number IN ?", encryptedPhones).Find(&users).Error
	if err != nil {
		return nil, apperror.NewStorageError("error matching users by phone number", err)
	}
	return users, nil
}

// FindByFacebookIDs returns all users whose facebook id is in the given batch
func (s *UserStore) FindByFacebookIDs(ctx context.Context, facebookIDs []string) ([]model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var users []model.User
	err := s.db.WithContext(ctx).Where("facebook_id IN ?", facebookIDs).Find(&users).Error
	if err != nil {
		return nil, apperror.NewStorageError("error matching users by facebook id", err)
	}
	return users, nil
}

// Create inserts a new user
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return apperror.NewStorageError("error creating user", err)
	}
	return nil
}

// Save persists changes to an existing user
func (s *UserStore) Save(ctx context.Context, user *model.User) error {
	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return apperror.NewStorageError("error updating user", err)
	}
	return nil
}

// Delete removes a user. Only used to roll back a signup whose passport
// could not be created.
func (s *UserStore) Delete(ctx context.Context, user *model.User) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := s.db.WithContext(ctx).Delete(user).Error; err != nil {
		return apperror.NewStorageError("error deleting user", err)
	}
	return nil
}
