package smscode

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownScene = errors.New("unknown verification scene")

// Scene partitions verification codes by purpose so that a code issued for
// one scene can never satisfy another.
type Scene string

const (
	SceneLogin         Scene = "login"
	SceneRegister      Scene = "register"
	SceneResetPassword Scene = "reset_password"
	SceneBindPhone     Scene = "bind_phone"
)

var scenes = map[Scene]bool{
	SceneLogin:         true,
	SceneRegister:      true,
	SceneResetPassword: true,
	SceneBindPhone:     true,
}

// ParseScene normalises a client supplied scene. An empty value means
// SceneLogin; any other value outside the enum is rejected.
func ParseScene(s string) (Scene, error) {
	if s == "" {
		return SceneLogin, nil
	}
	if scene := Scene(s); scene.Valid() {
		return scene, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScene, s)
}

func (s Scene) Valid() bool {
	return scenes[s]
}

type VerificationCode struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	Phone      string     `json:"phone" gorm:"size:20;not null;index:idx_sms_phone_scene,priority:1"`
	Scene      Scene      `json:"scene" gorm:"size:32;not null;index:idx_sms_phone_scene,priority:2"`
	Code       string     `json:"-" gorm:"size:6;not null"`
	DispatchID string     `json:"dispatch_id" gorm:"size:128"`
	ClientIP   string     `json:"client_ip" gorm:"size:64"`
	Debug      bool       `json:"debug" gorm:"not null;default:false"`
	ExpiresAt  time.Time  `json:"expires_at" gorm:"not null;index"`
	Used       bool       `json:"used" gorm:"not null;default:false"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	UsedBy     string     `json:"used_by,omitempty" gorm:"size:64"`
	CreatedAt  time.Time  `json:"created_at" gorm:"not null;index"`
}

func (VerificationCode) TableName() string {
	return "sms_codes"
}

func (c *VerificationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
