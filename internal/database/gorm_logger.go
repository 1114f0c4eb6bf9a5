package database

import (
	"time"

	gormlogger "gorm.io/gorm/logger"

	"aktieskat/internal/logger"
)

// zapWriter forwards gorm's log lines to the zap logger.
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	logger.Get().Warnf(format, args...)
}

// newGormLogger reports slow queries and errors, skipping not-found lookups
// which the services treat as regular results.
func newGormLogger() gormlogger.Interface {
	return gormlogger.New(zapWriter{}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
