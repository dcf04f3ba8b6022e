package db

import (
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm/logger"
)

type zerologWriter struct {
	log zerolog.Logger
}

func (w zerologWriter) Printf(format string, args ...interface{}) {
	w.log.Warn().Msgf(format, args...)
}

// NewLogger routes gorm's slow-query and error reports into log.
func NewLogger(log zerolog.Logger) logger.Interface {
	return logger.New(zerologWriter{log: log.With().Str("component", "gorm").Logger()}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
