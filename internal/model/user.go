package model

import (
	"time"
)

// User represents an account. Username, FirstName, LastName, PhoneNumber
// and Nickname are stored encrypted; every read path must project them
// through the crypto boundary before returning them to a client. The
// uniqueness constraint on Username relies on the encryption being
// deterministic.
type User struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Username    string    `json:"username" gorm:"type:varchar(512);uniqueIndex;not null"`
	FirstName   string    `json:"firstName" gorm:"type:varchar(512);not null"`
	LastName    string    `json:"lastName" gorm:"type:varchar(512)"`
	PhoneNumber string    `json:"phoneNumber" gorm:"type:varchar(512);index"`
	Nickname    string    `json:"nickname" gorm:"type:varchar(512)"`
	Birthday    time.Time `json:"birthday"`
	PhotoURL    string    `json:"photoUrl" gorm:"type:varchar(1024)"`
	FacebookID  string    `json:"facebookID" gorm:"type:varchar(100);index"`
	IsTemporary bool      `json:"isTemporary" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Devices []Device `json:"devices,omitempty" gorm:"foreignKey:UserID"`
}
