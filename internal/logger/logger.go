// Package logger provides the leveled logging used by the sync loop and
// the HTTP server.
package logger

import (
	"encoding/json"
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
	DISABLED
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel maps a config string to a Level. Unknown strings mean INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "disabled", "off":
		return DISABLED
	default:
		return INFO
	}
}

// Logger writes leveled messages with attached fields in text or JSON.
type Logger struct {
	level  Level
	json   bool
	out    io.Writer
	fields map[string]interface{}
	mu     *sync.Mutex
}

// New creates a logger writing to out. A nil out means stderr.
func New(level Level, jsonFormat bool, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		level:  level,
		json:   jsonFormat,
		out:    out,
		fields: map[string]interface{}{},
		mu:     &sync.Mutex{},
	}
}

// With returns a child logger carrying an extra field. The parent's writer
// and mutex are shared so output stays interleaving-safe.
func (l *Logger) With(key string, value interface{}) *Logger {
	fields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Logger{
		level:  l.level,
		json:   l.json,
		out:    l.out,
		fields: fields,
		mu:     l.mu,
	}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.level || l.level == DISABLED {
		return
	}

	msg := fmt.Sprintf(format, args...)
	now := time.Now().UTC().Format(time.RFC3339)

	var line string
	if l.json {
		entry := map[string]interface{}{
			"time":    now,
			"level":   levelNames[level],
			"message": msg,
		}
		for k, v := range l.fields {
			entry[k] = v
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return
		}
		line = string(data)
	} else {
		var sb strings.Builder
		sb.WriteString(now)
		sb.WriteString(" [")
		sb.WriteString(levelNames[level])
		sb.WriteString("] ")
		sb.WriteString(msg)
		for k, v := range l.fields {
			fmt.Fprintf(&sb, " %s=%v", k, v)
		}
		line = sb.String()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, line)
}
