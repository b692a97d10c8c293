package loginlog

import "time"

type LoginType string

const (
	LoginTypeSMS      LoginType = "sms"
	LoginTypeOneClick LoginType = "oneclick"
)

type LoginLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"size:36;index;not null"`
	Phone     string    `json:"phone" gorm:"size:20;index"`
	LoginType LoginType `json:"login_type" gorm:"size:16;not null"`
	IP        string    `json:"ip" gorm:"size:64"`
	UserAgent string    `json:"user_agent" gorm:"size:512"`
	Device    string    `json:"device" gorm:"size:128"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (LoginLog) TableName() string {
	return "login_logs"
}
