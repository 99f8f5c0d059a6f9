package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// waLogger routes whatsmeow's printf-style logging into zap.
type waLogger struct {
	base  *zap.Logger
	level zapcore.Level
}

// WhatsApp returns a waLog.Logger backed by this logger. Entries below
// minLevel are dropped before formatting; the protocol library is chatty at
// debug level.
func (l *Logger) WhatsApp(module string, minLevel Level) waLog.Logger {
	lvl, err := parseLevel(minLevel)
	if err != nil {
		lvl = zapcore.WarnLevel
	}
	return &waLogger{
		base:  l.Logger.Named("whatsmeow").Named(module).WithOptions(zap.AddCallerSkip(1)),
		level: lvl,
	}
}

func (w *waLogger) Debugf(msg string, args ...interface{}) {
	w.log(zapcore.DebugLevel, msg, args)
}

func (w *waLogger) Infof(msg string, args ...interface{}) {
	w.log(zapcore.InfoLevel, msg, args)
}

func (w *waLogger) Warnf(msg string, args ...interface{}) {
	w.log(zapcore.WarnLevel, msg, args)
}

func (w *waLogger) Errorf(msg string, args ...interface{}) {
	w.log(zapcore.ErrorLevel, msg, args)
}

func (w *waLogger) Sub(module string) waLog.Logger {
	return &waLogger{base: w.base.Named(module), level: w.level}
}

func (w *waLogger) log(level zapcore.Level, msg string, args []interface{}) {
	if level < w.level {
		return
	}
	if ce := w.base.Check(level, fmt.Sprintf(msg, args...)); ce != nil {
		ce.Write()
	}
}
