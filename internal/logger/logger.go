package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a Level. Unknown strings map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger is a leveled logger with key=value fields. The terminal shell owns
// stdout, so the default sink is stderr; callers normally redirect it to a
// file via WithOutput.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	prefix string
}

// Option configures a Logger.
type Option func(*Logger)

// WithOutput sets the output destination.
func WithOutput(w io.Writer) Option {
	return func(l *Logger) { l.out = w }
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) Option {
	return func(l *Logger) { l.level = level }
}

// New creates a Logger with the given options.
func New(opts ...Option) *Logger {
	l := &Logger{out: os.Stderr, level: INFO}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var defaultLogger = New()

// SetDefault replaces the package default logger.
func SetDefault(l *Logger) { defaultLogger = l }

// Default returns the package default logger.
func Default() *Logger { return defaultLogger }

// WithPrefix returns a copy of the logger with the given prefix.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{out: l.out, level: l.level, prefix: prefix}
}

func (l *Logger) log(level Level, msg string, kv ...any) {
	if level < l.level {
		return
	}

	var sb strings.Builder
	sb.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	fmt.Fprintf(&sb, " %-5s ", level.String())
	if l.prefix != "" {
		sb.WriteString("[" + l.prefix + "] ")
	}
	sb.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", kv[i], kv[i+1])
	}
	sb.WriteString("\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.out, sb.String())
}

// Debug logs a message at DEBUG level with optional key/value pairs.
func (l *Logger) Debug(msg string, kv ...any) { l.log(DEBUG, msg, kv...) }

// Info logs a message at INFO level with optional key/value pairs.
func (l *Logger) Info(msg string, kv ...any) { l.log(INFO, msg, kv...) }

// Warn logs a message at WARN level with optional key/value pairs.
func (l *Logger) Warn(msg string, kv ...any) { l.log(WARN, msg, kv...) }

// Error logs a message at ERROR level with optional key/value pairs.
func (l *Logger) Error(msg string, kv ...any) { l.log(ERROR, msg, kv...) }

// Package-level helpers using the default logger.

func Debug(msg string, kv ...any) { defaultLogger.Debug(msg, kv...) }
func Info(msg string, kv ...any)  { defaultLogger.Info(msg, kv...) }
func Warn(msg string, kv ...any)  { defaultLogger.Warn(msg, kv...) }
func Error(msg string, kv ...any) { defaultLogger.Error(msg, kv...) }
