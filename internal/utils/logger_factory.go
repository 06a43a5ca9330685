package utils

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	unsupportedLogLevelTemplateConstant  = "unsupported log level %q"
	unsupportedLogFormatTemplateConstant = "unsupported log format %q"
	consoleMessageKeyConstant            = "message"
)

// LogLevel names a supported logging verbosity.
type LogLevel string

// LogFormat names a supported log output encoding.
type LogFormat string

const (
	// LogLevelDebug enables diagnostic logging.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo enables informational logging.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn enables warning logging.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError enables error logging.
	LogLevelError LogLevel = "error"
	// LogFormatStructured emits JSON log lines.
	LogFormatStructured LogFormat = "structured"
	// LogFormatConsole emits human readable log lines.
	LogFormatConsole LogFormat = "console"
)

// LoggerOutputs bundles the diagnostic logger with a console logger used
// for human facing messages. In structured mode console output is
// suppressed so machine consumers receive JSON only.
type LoggerOutputs struct {
	DiagnosticLogger *zap.Logger
	ConsoleLogger    *zap.Logger
}

// LoggerFactory builds zap loggers from level and format selections.
type LoggerFactory struct{}

// NewLoggerFactory constructs a LoggerFactory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// CreateLoggerOutputs builds the diagnostic and console loggers writing to
// standard error.
func (factory *LoggerFactory) CreateLoggerOutputs(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (LoggerOutputs, error) {
	zapLevel, levelSupported := resolveZapLevel(requestedLogLevel)
	if !levelSupported {
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}

	outputWriter := zapcore.Lock(os.Stderr)

	switch requestedLogFormat {
	case LogFormatStructured:
		encoderConfiguration := zap.NewProductionEncoderConfig()
		diagnosticCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfiguration), outputWriter, zapLevel)
		return LoggerOutputs{
			DiagnosticLogger: zap.New(diagnosticCore),
			ConsoleLogger:    zap.NewNop(),
		}, nil
	case LogFormatConsole:
		encoderConfiguration := zap.NewDevelopmentEncoderConfig()
		diagnosticCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfiguration), outputWriter, zapLevel)

		consoleEncoderConfiguration := zapcore.EncoderConfig{
			MessageKey:  consoleMessageKeyConstant,
			LineEnding:  zapcore.DefaultLineEnding,
			EncodeLevel: zapcore.LowercaseLevelEncoder,
		}
		consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfiguration), outputWriter, zapLevel)

		return LoggerOutputs{
			DiagnosticLogger: zap.New(diagnosticCore),
			ConsoleLogger:    zap.New(consoleCore),
		}, nil
	default:
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}
}

func resolveZapLevel(requestedLogLevel LogLevel) (zapcore.Level, bool) {
	switch requestedLogLevel {
	case LogLevelDebug:
		return zapcore.DebugLevel, true
	case LogLevelInfo:
		return zapcore.InfoLevel, true
	case LogLevelWarn:
		return zapcore.WarnLevel, true
	case LogLevelError:
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InvalidLevel, false
	}
}
