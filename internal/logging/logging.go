// Package logging constructs the agent's structured logger: zap writing to
// both stderr and a rotating log file, encoded for humans on a TTY and as
// JSON otherwise.
package logging

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is the agent's configuration-facing log level vocabulary. It is
// distinct from zap's levels so config files keep using the names
// operators already know.
type Level string

const (
	LevelTrace       Level = "Trace"
	LevelDebug       Level = "Debug"
	LevelInformation Level = "Information"
	LevelWarning     Level = "Warning"
	LevelError       Level = "Error"
	LevelCritical    Level = "Critical"
)

// DefaultLevel is used when configuration omits or misconfigures log_level.
const DefaultLevel = LevelInformation

// zapLevel maps the agent's vocabulary onto zap's. Trace and Debug both
// map to zap's Debug since zap has no dedicated trace level; Critical maps
// to DPanic, which logs at the highest severity without panicking in
// production builds.
func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelTrace, LevelDebug:
		return zapcore.DebugLevel
	case LevelInformation:
		return zapcore.InfoLevel
	case LevelWarning:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelCritical:
		return zapcore.DPanicLevel
	default:
		return zapcore.InfoLevel
	}
}

// Valid reports whether l is one of the six recognized levels.
func (l Level) Valid() bool {
	switch l {
	case LevelTrace, LevelDebug, LevelInformation, LevelWarning, LevelError, LevelCritical:
		return true
	default:
		return false
	}
}

// New builds the agent's logger. logFile is the path to the rotating log
// file; level controls the minimum severity emitted to both sinks.
func New(logFile string, level Level) (*zap.Logger, error) {
	if !level.Valid() {
		level = DefaultLevel
	}

	fileSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	})

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEncoder zapcore.Encoder
	if isatty.IsTerminal(os.Stderr.Fd()) {
		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoder = zapcore.NewConsoleEncoder(consoleCfg)
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(encoderCfg)
	}
	fileEncoder := zapcore.NewJSONEncoder(encoderCfg)

	zapLvl := level.zapLevel()
	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), zapLvl),
		zapcore.NewCore(fileEncoder, fileSink, zapLvl),
	)

	return zap.New(core, zap.AddCaller()), nil
}

// NewNop returns a logger that discards everything.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// ParseLevel validates a raw string against the known vocabulary.
func ParseLevel(raw string) (Level, error) {
	l := Level(raw)
	if !l.Valid() {
		return "", fmt.Errorf("unrecognized log_level %q", raw)
	}
	return l, nil
}
