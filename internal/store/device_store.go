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

// DeviceStore persists Device records
type DeviceStore struct {
	db *gorm.DB
}

// NewDeviceStore creates a device store over the given database handle
func NewDeviceStore(db *gorm.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

// FindByID returns the device with the given id, with its owning user loaded
func (s *DeviceStore) FindByID(ctx context.Context, id uint) (*model.Device, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var device model.Device
	err := s.db.WithContext(ctx).Preload("User").First(&device, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("device not found")
		}
		return nil, apperror.NewStorageError("error retrieving device", err)
	}
	return &device, nil
}

// FindByUser returns the device bound to the given user, with the user loaded
func (s *DeviceStore) FindByUser(ctx context.Context, userID uint) (*model.Device, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var device model.Device
	err := s.db.WithContext(ctx).Preload("User").
		Where("user_id = ?", userID).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("device not found")
		}
		return nil, apperror.NewStorageError("error retrieving device for user", err)
	}
	return &device, nil
}

// Create inserts a new device
func (s *DeviceStore) Create(ctx context.Context, device *model.Device) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := s.db.WithContext(ctx).Omit("User").Create(device).Error; err != nil {
		return apperror.NewStorageError("error creating device", err)
	}
	return nil
}

// Save persists changes to an existing device. Last write wins: two
// concurrent verification attempts against the same device race on
// retry_count and verification_code, which the flow accepts.
func (s *DeviceStore) Save(ctx context.Context, device *model.Device) error {
	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := s.db.WithContext(ctx).Omit("User").Save(device).Error; err != nil {
		return apperror.NewStorageError("error updating device", err)
	}
	return nil
}
