package loginlog

import (
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideRecorder(db *gorm.DB, logger *logging.Service) *Recorder {
	return NewRecorder(db, logger.Named("loginlog"))
}

var Module = fx.Options(
	fx.Provide(ProvideRecorder),
)
