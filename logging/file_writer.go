package logging

import (
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for log files.
const (
	DefaultMaxSizeMB  = 100
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 30
)

// RotationConfig controls log file rotation. Zero fields take the defaults.
type RotationConfig struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultRotationConfig returns 100MB files, 5 backups, 30 days, gzip on.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSizeMB:  DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAgeDays: DefaultMaxAgeDays,
		Compress:   true,
	}
}

// NewFileWriter returns a rotating zapcore.WriteSyncer backed by lumberjack.
// The file is created lazily on first write.
func NewFileWriter(path string, rc RotationConfig) zapcore.WriteSyncer {
	if rc.MaxSizeMB == 0 {
		rc.MaxSizeMB = DefaultMaxSizeMB
	}
	if rc.MaxBackups == 0 {
		rc.MaxBackups = DefaultMaxBackups
	}
	if rc.MaxAgeDays == 0 {
		rc.MaxAgeDays = DefaultMaxAgeDays
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    rc.MaxSizeMB,
		MaxBackups: rc.MaxBackups,
		MaxAge:     rc.MaxAgeDays,
		Compress:   rc.Compress,
	})
}
