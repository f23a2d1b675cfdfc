package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"example.com/microhttpd/internal/config"
)

// LogFields carries structured context attached to a log entry.
type LogFields map[string]interface{}

// Logger bundles the error log and the access log. The error log carries
// server diagnostics at a configured minimum level; the access log records
// one entry per completed request.
type Logger struct {
	errorLog  zerolog.Logger
	accessLog *zerolog.Logger

	// files opened for log targets, closed by CloseLogFiles.
	files []*os.File
}

// NewLogger creates and configures a new Logger instance from the logging
// configuration. The configuration is expected to be defaulted and validated.
func NewLogger(cfg *config.LoggingConfig) (*Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging configuration cannot be nil")
	}

	l := &Logger{}

	errorOutput, err := l.openTarget(cfg.ErrorLog.Target, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("error log: %w", err)
	}
	l.errorLog = zerolog.New(errorOutput).
		Level(zerologLevel(cfg.LogLevel)).
		With().Timestamp().Logger()

	if cfg.AccessLog != nil && (cfg.AccessLog.Enabled == nil || *cfg.AccessLog.Enabled) {
		accessOutput, err := l.openTarget(cfg.AccessLog.Target, os.Stdout)
		if err != nil {
			l.CloseLogFiles()
			return nil, fmt.Errorf("access log: %w", err)
		}
		accessLog := zerolog.New(accessOutput).With().Timestamp().Logger()
		l.accessLog = &accessLog
	}

	return l, nil
}

// NewDiscardLogger returns a logger that drops everything. Used by tests and
// as a fallback when a component is handed a nil logger.
func NewDiscardLogger() *Logger {
	return &Logger{errorLog: zerolog.New(io.Discard).Level(zerolog.Disabled)}
}

// NewTestLogger returns a logger writing all error-log output to w at debug
// level, with no access log.
func NewTestLogger(w io.Writer) *Logger {
	return &Logger{
		errorLog: zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger(),
	}
}

func (l *Logger) openTarget(target string, std *os.File) (io.Writer, error) {
	switch target {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "":
		return std, nil
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", target, err)
	}
	l.files = append(l.files, f)
	return f, nil
}

func zerologLevel(level config.LogLevel) zerolog.Level {
	switch level {
	case config.LogLevelDebug:
		return zerolog.DebugLevel
	case config.LogLevelWarning:
		return zerolog.WarnLevel
	case config.LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func emit(ev *zerolog.Event, msg string, fields LogFields) {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *Logger) Debug(msg string, fields LogFields) { emit(l.errorLog.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields LogFields)  { emit(l.errorLog.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields LogFields)  { emit(l.errorLog.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields LogFields) { emit(l.errorLog.Error(), msg, fields) }

// Access writes one access log entry for a completed request.
func (l *Logger) Access(remoteAddr, method, url string, status int, responseBytes int64, duration time.Duration) {
	if l.accessLog == nil {
		return
	}
	l.accessLog.Log().
		Str("remote_addr", remoteAddr).
		Str("method", method).
		Str("uri", url).
		Int("status", status).
		Int64("resp_bytes", responseBytes).
		Int64("duration_ms", duration.Milliseconds()).
		Send()
}

// CloseLogFiles closes any file-backed log targets, accumulating every close
// failure. Called at shutdown; safe to call more than once.
func (l *Logger) CloseLogFiles() error {
	var result *multierror.Error
	for _, f := range l.files {
		if err := f.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close log file %s: %w", f.Name(), err))
		}
	}
	l.files = nil
	return result.ErrorOrNil()
}
