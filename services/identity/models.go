package identity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status int

const (
	StatusNormal   Status = 0
	StatusDisabled Status = 1
)

type User struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	Phone       string     `json:"phone" gorm:"size:20;uniqueIndex;not null"`
	Nickname    string     `json:"nickname" gorm:"size:64"`
	Avatar      string     `json:"avatar" gorm:"size:512"`
	Status      Status     `json:"status" gorm:"not null;default:0"`
	RegisterIP  string     `json:"register_ip" gorm:"size:64"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP string     `json:"last_login_ip" gorm:"size:64"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// DefaultNickname derives the display name given to new users from the last
// four digits of their phone number.
func DefaultNickname(phone string) string {
	suffix := phone
	if len(phone) > 4 {
		suffix = phone[len(phone)-4:]
	}
	return "用户" + suffix
}
