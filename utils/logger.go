package utils

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// String returns the string representation of the log level
func (l LogLevel) String() string {
	if l < DEBUG || l > ERROR {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a config string to a log level, defaulting to INFO
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Logger is a leveled logger with optional key=value fields
type Logger struct {
	*log.Logger
	level  LogLevel
	fields map[string]interface{}
}

// NewLogger creates a logger writing to stdout at the given level
func NewLogger(level LogLevel) *Logger {
	return &Logger{
		Logger: log.New(os.Stdout, "", 0),
		level:  level,
		fields: make(map[string]interface{}),
	}
}

func (l *Logger) emit(level LogLevel, format string, v ...interface{}) {
	if level < l.level {
		return
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString("] [")
	b.WriteString(level.String())
	b.WriteString("] ")
	fmt.Fprintf(&b, format, v...)
	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, l.fields[k])
		}
		b.WriteString("]")
	}
	l.Println(b.String())
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) { l.emit(DEBUG, format, v...) }

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) { l.emit(INFO, format, v...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) { l.emit(WARN, format, v...) }

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) { l.emit(ERROR, format, v...) }

// WithFields returns a copy of the logger with the given fields added
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{Logger: l.Logger, level: l.level, fields: merged}
}

// WithField returns a copy of the logger with a single field added
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// SetLevel changes the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

// Log is the shared logger used across the application
var Log = NewLogger(INFO)
