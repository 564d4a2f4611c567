// Package logging provides the structured logger used across perfcache.
package logging

import (
	"encoding/json"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	// LevelDebug is for detailed debugging information.
	LevelDebug Level = iota
	// LevelInfo is for general information messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level. Unknown strings map to LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format represents the output format for log messages.
type Format int

const (
	// FormatJSON outputs logs as JSON objects.
	FormatJSON Format = iota
	// FormatText outputs logs as human-readable text.
	FormatText
)

// ParseFormat converts a string to a Format. Unknown strings map to FormatJSON.
func ParseFormat(s string) Format {
	switch s {
	case "text":
		return FormatText
	default:
		return FormatJSON
	}
}

// Entry represents a single log entry.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Instance  string         `json:"instance,omitempty"`
	Component string         `json:"component,omitempty"`
	File      string         `json:"file,omitempty"`
	Line      int            `json:"line,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger writes leveled, structured entries. Loggers derived with With share
// the parent's output but not its fields.
type Logger struct {
	mu         sync.Mutex
	writeMu    *sync.Mutex
	out        io.Writer
	level      Level
	format     Format
	addCaller  bool
	callerSkip int
	instance   string
	component  string
	fields     map[string]any
}

// Config holds configuration for a Logger.
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	AddCaller  bool
	CallerSkip int
}

// New creates a new Logger with the given configuration.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		writeMu:    &sync.Mutex{},
		out:        out,
		level:      cfg.Level,
		format:     cfg.Format,
		addCaller:  cfg.AddCaller,
		callerSkip: cfg.CallerSkip,
		fields:     make(map[string]any),
	}
}

// DefaultLogger returns an info-level JSON logger on stderr.
func DefaultLogger() *Logger {
	return New(Config{Level: LevelInfo, Format: FormatJSON, Output: os.Stderr})
}

// SetLevel updates the minimum logging level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level.
func (l *Logger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetFormat updates the output format.
func (l *Logger) SetFormat(format Format) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.format = format
}

// SetAddCaller enables or disables caller info (file/line).
func (l *Logger) SetAddCaller(add bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addCaller = add
}

// With returns a child logger carrying fields in addition to the parent's.
// The "component" and "instance" keys are promoted to top-level entry fields.
func (l *Logger) With(fields map[string]any) *Logger {
	child := l.clone()
	for k, v := range fields {
		switch k {
		case "component":
			if s, ok := v.(string); ok {
				child.component = s
				continue
			}
		case "instance":
			if s, ok := v.(string); ok {
				child.instance = s
				continue
			}
		}
		child.fields[k] = v
	}
	return child
}

// WithComponent returns a child logger tagged with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	child := l.clone()
	child.component = name
	return child
}

// WithInstance returns a child logger tagged with a process instance ID.
func (l *Logger) WithInstance(id string) *Logger {
	child := l.clone()
	child.instance = id
	return child
}

func (l *Logger) clone() *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	fields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{
		writeMu:    l.writeMu,
		out:        l.out,
		level:      l.level,
		format:     l.format,
		addCaller:  l.addCaller,
		callerSkip: l.callerSkip,
		instance:   l.instance,
		component:  l.component,
		fields:     fields,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) { l.log(LevelDebug, msg, nil) }

// Debugf logs a debug message with fields.
func (l *Logger) Debugf(msg string, fields map[string]any) { l.log(LevelDebug, msg, fields) }

// Info logs an info message.
func (l *Logger) Info(msg string) { l.log(LevelInfo, msg, nil) }

// Infof logs an info message with fields.
func (l *Logger) Infof(msg string, fields map[string]any) { l.log(LevelInfo, msg, fields) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string) { l.log(LevelWarn, msg, nil) }

// Warnf logs a warning message with fields.
func (l *Logger) Warnf(msg string, fields map[string]any) { l.log(LevelWarn, msg, fields) }

// Error logs an error message.
func (l *Logger) Error(msg string) { l.log(LevelError, msg, nil) }

// Errorf logs an error message with fields.
func (l *Logger) Errorf(msg string, fields map[string]any) { l.log(LevelError, msg, fields) }

func (l *Logger) log(level Level, msg string, extra map[string]any) {
	l.mu.Lock()
	if level < l.level {
		l.mu.Unlock()
		return
	}
	entry := Entry{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Message:   msg,
		Instance:  l.instance,
		Component: l.component,
	}
	if len(l.fields) > 0 || len(extra) > 0 {
		entry.Fields = make(map[string]any, len(l.fields)+len(extra))
		for k, v := range l.fields {
			entry.Fields[k] = v
		}
		for k, v := range extra {
			entry.Fields[k] = v
		}
	}
	addCaller, skip, format, out := l.addCaller, l.callerSkip, l.format, l.out
	l.mu.Unlock()

	if addCaller {
		if _, file, line, ok := runtime.Caller(2 + skip); ok {
			entry.File = file
			entry.Line = line
		}
	}

	var data []byte
	if format == FormatText {
		data = formatText(entry)
	} else {
		data, _ = json.Marshal(entry)
		data = append(data, '\n')
	}

	l.writeMu.Lock()
	_, _ = out.Write(data)
	l.writeMu.Unlock()
}

// formatText renders an entry on one line with fields in key order.
func formatText(e Entry) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, e.Timestamp.Format(time.RFC3339)...)
	buf = append(buf, " ["...)
	buf = append(buf, e.Level...)
	buf = append(buf, "] "...)
	buf = append(buf, e.Message...)

	if e.Component != "" {
		buf = append(buf, " component="...)
		buf = append(buf, e.Component...)
	}
	if e.Instance != "" {
		buf = append(buf, " instance="...)
		buf = append(buf, e.Instance...)
	}
	if e.File != "" {
		buf = append(buf, " file="...)
		buf = append(buf, e.File...)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(e.Line), 10)
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf = append(buf, ' ')
		buf = append(buf, k...)
		buf = append(buf, '=')
		switch v := e.Fields[k].(type) {
		case string:
			buf = append(buf, v...)
		default:
			data, _ := json.Marshal(v)
			buf = append(buf, data...)
		}
	}
	return append(buf, '\n')
}
