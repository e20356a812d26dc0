package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"barrierBot/internal/ports"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls formatting, level and destination of log output.
type Config struct {
	Level      string
	Format     string // "text" or "json"
	Output     string // "stdout" or a file path
	MaxSize    int    // Megabytes before rotation
	MaxBackups int
	MaxAge     int // Days
	Compress   bool
}

// Logger implements ports.Logger using logrus.
type Logger struct {
	entry  *logrus.Entry
	closer io.Closer
}

// ParseLevel converts a level name to a logrus level. Unknown names map to Info.
func ParseLevel(levelStr string) logrus.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return logrus.DebugLevel
	case "INFO":
		return logrus.InfoLevel
	case "WARN", "WARNING":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// New creates a logger. A non-stdout Output is written through a rotating file.
func New(cfg Config) *Logger {
	log := logrus.New()

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}
	log.SetLevel(ParseLevel(cfg.Level))

	l := &Logger{}
	if cfg.Output != "" && cfg.Output != "stdout" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		log.SetOutput(rotating)
		l.closer = rotating
	} else {
		log.SetOutput(os.Stdout)
	}

	l.entry = logrus.NewEntry(log)
	return l
}

// WithComponent returns a logger that tags every entry with component.
func (l *Logger) WithComponent(component string) ports.Logger {
	return &Logger{entry: l.entry.WithField("component", component), closer: l.closer}
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) log(ctx context.Context, level logrus.Level, msg string, err error, fields ...map[string]interface{}) {
	if !l.entry.Logger.IsLevelEnabled(level) {
		return
	}
	entry := l.entry.WithContext(ctx)
	for _, f := range fields {
		if f != nil {
			entry = entry.WithFields(logrus.Fields(f))
		}
	}
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Log(level, msg)
}

// Debug logs a message at Debug level.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, logrus.DebugLevel, msg, nil, fields...)
}

// Info logs a message at Info level.
func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, logrus.InfoLevel, msg, nil, fields...)
}

// Warn logs a message at Warning level.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, logrus.WarnLevel, msg, nil, fields...)
}

// Error logs an error message at Error level.
func (l *Logger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.log(ctx, logrus.ErrorLevel, msg, err, fields...)
}
