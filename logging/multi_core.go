package logging

import (
	"go.uber.org/zap/zapcore"
)

// NewMultiCore builds the console core and, when fileWriter is non-nil, tees
// it with a JSON file core. The console uses the human-readable encoder in
// development mode and JSON otherwise; files are always JSON.
func NewMultiCore(level zapcore.LevelEnabler, console, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	consoleEncoder := zapcore.NewJSONEncoder(NewEncoderConfig())
	if isDev {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	}
	consoleCore := zapcore.NewCore(consoleEncoder, console, level)

	if fileWriter == nil {
		return consoleCore
	}

	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), fileWriter, level)
	return zapcore.NewTee(consoleCore, fileCore)
}
