package model

import (
	"time"
)

// Device represents a client installation tied to a user. It is the unit
// of phone verification: the stored code, the retry counter and the
// verified flag live here, and the device row is the sole authority for
// verification status.
type Device struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	UserID           uint      `json:"user_id" gorm:"index;not null"`
	Platform         string    `json:"platform" gorm:"type:varchar(20);not null"`
	UUID             string    `json:"uuid" gorm:"type:varchar(255)"`
	PhoneNumber      string    `json:"phoneNumber" gorm:"type:varchar(30)"`
	VerificationCode string    `json:"verificationCode" gorm:"type:varchar(4)"`
	RetryCount       int       `json:"retryCount" gorm:"default:0"`
	IsVerified       bool      `json:"isVerified" gorm:"default:false"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
