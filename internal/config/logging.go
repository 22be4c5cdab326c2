package config

import (
	"fmt"
	"os"
	"strings"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LOG_FORMAT_CONSOLE = "console"
	LOG_FORMAT_JSON    = "json"
	LOG_FORMAT_LOGFMT  = "logfmt"
)

func ValidateLogFormat(format string) (string, error) {
	format = strings.ToLower(format)
	switch format {
	case LOG_FORMAT_CONSOLE, LOG_FORMAT_JSON, LOG_FORMAT_LOGFMT:
		return format, nil
	default:
		return "", fmt.Errorf("log_format must be 'json', 'console', or 'logfmt', got '%s'", format)
	}
}

// NewLogger builds the process logger. The returned level is shared with the
// logger core so it can be changed at runtime.
func NewLogger(format string, level zap.AtomicLevel) (*zap.Logger, error) {
	if format == LOG_FORMAT_LOGFMT {
		encoderConfig := zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
		core := zapcore.NewCore(
			zaplogfmt.NewEncoder(encoderConfig),
			zapcore.Lock(zapcore.AddSync(os.Stdout)),
			level,
		)
		return zap.New(core, zap.AddCaller()), nil
	}

	var zapCfg zap.Config
	if format == LOG_FORMAT_JSON {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level
	return zapCfg.Build()
}
