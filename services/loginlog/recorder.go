package loginlog

import (
	"context"
	"time"

	"github.com/mileusna/useragent"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Entry struct {
	UserID    string
	Phone     string
	LoginType LoginType
	IP        string
	UserAgent string
}

// Recorder appends successful logins to the login log. Failures are logged
// and never returned; a lost log line must not fail a login.
type Recorder struct {
	db     *gorm.DB
	logger *logging.Service
	clock  func() time.Time
}

func NewRecorder(db *gorm.DB, logger *logging.Service) *Recorder {
	return &Recorder{
		db:     db,
		logger: logger,
		clock:  time.Now,
	}
}

func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.db == nil {
		return
	}

	record := LoginLog{
		UserID:    entry.UserID,
		Phone:     entry.Phone,
		LoginType: entry.LoginType,
		IP:        entry.IP,
		UserAgent: entry.UserAgent,
		Device:    DeviceSummary(entry.UserAgent),
		Success:   true,
		CreatedAt: r.clock().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		r.logger.Warn("failed to record login log",
			zap.String("user_id", entry.UserID),
			zap.String("login_type", string(entry.LoginType)),
			zap.Error(err))
	}
}

// ListForUser returns the most recent entries for a user, newest first.
func (r *Recorder) ListForUser(ctx context.Context, userID string, limit int) ([]LoginLog, error) {
	var logs []LoginLog
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// DeviceSummary condenses a user agent into "Browser on OS (Type)".
func DeviceSummary(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown Device"
	}

	ua := useragent.Parse(userAgentString)

	deviceType := "Desktop"
	switch {
	case ua.Bot:
		deviceType = "Bot"
	case ua.Tablet:
		deviceType = "Tablet"
	case ua.Mobile:
		deviceType = "Mobile"
	}

	browser := "Unknown Browser"
	if ua.Name != "" {
		browser = ua.Name
	}

	os := "Unknown OS"
	if ua.OS != "" {
		os = ua.OS
		if ua.OSVersion != "" {
			os += " " + ua.OSVersion
		}
	}

	return browser + " on " + os + " (" + deviceType + ")"
}
