package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes leveled lines to the terminal, a size-rotated file, or both.
// Sub-loggers created with Named share the parent's writer.
type Logger struct {
	writer io.Writer

	Name  string
	Level LogLevel

	TimeFormat string
	File       string
	NoColor    bool
	JSON       bool
	NoTerminal bool
	Rotation   *Rotation
}

// Rotation configures the rollover of the log file.
type Rotation struct {
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
}

func NewLogger(name string, level LogLevel, file string, noTerminal bool) *Logger {
	l := &Logger{
		Name:       name,
		Level:      level,
		File:       file,
		NoTerminal: noTerminal,

		TimeFormat: "2006-01-02 15:04:05",
		Rotation: &Rotation{
			MaxSize:    128,
			MaxBackups: 5,
			MaxAge:     16,
		},
	}
	l.writer = l.buildWriter()

	return l
}

func (l *Logger) buildWriter() io.Writer {
	var writers []io.Writer

	if !l.NoTerminal {
		writers = append(writers, os.Stdout)
	}
	if l.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   l.File,
			MaxSize:    l.Rotation.MaxSize,
			MaxBackups: l.Rotation.MaxBackups,
			MaxAge:     l.Rotation.MaxAge,
			Compress:   l.Rotation.Compress,
		})
	}

	switch len(writers) {
	case 0:
		return io.Discard
	case 1:
		return writers[0]
	default:
		return io.MultiWriter(writers...)
	}
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if level < l.Level {
		return
	}

	timestamp := time.Now().Format(l.TimeFormat)
	message := fmt.Sprintf(msg, args...)

	if l.JSON {
		l.emitJSON(timestamp, level, message)
	} else {
		l.emitText(timestamp, level, message)
	}

	if level == Fatal {
		os.Exit(1)
	}
}

func (l *Logger) emitJSON(timestamp string, level LogLevel, message string) {
	raw, _ := json.Marshal(logEntry{
		Timestamp: timestamp,
		Level:     level.String(),
		Service:   l.Name,
		Message:   message,
	})
	fmt.Fprintf(l.writer, "%s\n", raw)
}

func (l *Logger) emitText(timestamp string, level LogLevel, message string) {
	prefix := fmt.Sprintf("[%s] %-5s", timestamp, level)
	if l.Name != "" {
		prefix = fmt.Sprintf("%s [%s]", prefix, l.Name)
	}

	if !l.NoTerminal && !l.NoColor {
		fmt.Fprintf(l.writer, "%s%s %s\033[0m\n", level.color(), prefix, message)
		return
	}
	fmt.Fprintf(l.writer, "%s %s\n", prefix, message)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(Debug, msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(Info, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(Warn, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(Error, msg, args...)
}

func (l *Logger) Fatal(msg string, args ...any) {
	l.log(Fatal, msg, args...)
}

// Reject logs a request that was refused because of client input. These stay
// at Debug so a misbehaving caller cannot flood the log; faults the operator
// has to act on go through Error instead.
func (l *Logger) Reject(msg string, args ...any) {
	l.log(Debug, msg, args...)
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{
		writer: l.writer, // Share the same writer

		Name:  fmt.Sprintf("%s/%s", l.Name, name),
		Level: l.Level,

		TimeFormat: l.TimeFormat,
		File:       l.File,
		NoColor:    l.NoColor,
		NoTerminal: l.NoTerminal,
		JSON:       l.JSON,
		Rotation:   l.Rotation,
	}
}
