// Package logging holds zap adapters shared by the api and the scheduler
package logging

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// New returns the global sugared logger
func New() *zap.SugaredLogger {
	return zap.S()
}

// cronLogger routes cron's own messages through zap
type cronLogger struct {
	log *zap.SugaredLogger
}

// CronLogger adapts a zap logger to cron.Logger. Routine scheduling chatter
// is logged at debug.
func CronLogger(log *zap.SugaredLogger) cron.Logger {
	return cronLogger{log: log.Named("cron")}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
