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

// PassportStore persists Passport credential records
type PassportStore struct {
	db *gorm.DB
}

// NewPassportStore creates a passport store over the given database handle
func NewPassportStore(db *gorm.DB) *PassportStore {
	return &PassportStore{db: db}
}

// FindByUser returns the local passport for the given user
func (s *PassportStore) FindByUser(ctx context.Context, userID uint) (*model.Passport, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var passport model.Passport
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND protocol = ?", userID, model.ProtocolLocal).
		First(&passport).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("passport not found")
		}
		return nil, apperror.NewStorageError("error retrieving passport", err)
	}
	return &passport, nil
}

// Create inserts a new passport
func (s *PassportStore) Create(ctx context.Context, passport *model.Passport) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := s.db.WithContext(ctx).Create(passport).Error; err != nil {
		return apperror.NewStorageError("error creating passport", err)
	}
	return nil
}

// UpdatePassword sets a new password hash for the user's passport and
// returns the number of rows affected. Zero rows is a reportable state
// for the caller, distinct from a query error.
func (s *PassportStore) UpdatePassword(ctx context.Context, userID uint, passwordHash string) (int64, error) {
	defer prometheus.TrackDBOperation("update")(time.Now())

	result := s.db.WithContext(ctx).Model(&model.Passport{}).
		Where("user_id = ?", userID).
		Update("password", passwordHash)
	if result.Error != nil {
		return 0, apperror.NewStorageError("error updating passport", result.Error)
	}
	return result.RowsAffected, nil
}
