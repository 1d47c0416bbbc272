// Package logger provides leveled logging for the pipeline commands.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

type leveledLogger struct {
	level Level
	out   *log.Logger
}

var std *leveledLogger

// Init initializes the default logger with the specified level and format.
func Init(level string, format string) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}
	std = &leveledLogger{
		level: parseLevel(level),
		out:   log.New(os.Stderr, "", flags),
	}
}

// SetOutput redirects log output; used by tests.
func SetOutput(w io.Writer) {
	if std != nil {
		std.out.SetOutput(w)
	}
}

func emit(lvl Level, tag, format string, args ...any) {
	if std == nil || std.level > lvl {
		return
	}
	_ = std.out.Output(3, fmt.Sprintf(tag+" "+format, args...))
}

func Debug(format string, args ...any) { emit(DebugLevel, "[DEBUG]", format, args...) }
func Info(format string, args ...any)  { emit(InfoLevel, "[INFO]", format, args...) }
func Warn(format string, args ...any)  { emit(WarnLevel, "[WARN]", format, args...) }
func Error(format string, args ...any) { emit(ErrorLevel, "[ERROR]", format, args...) }

// Fatal logs at error level and terminates the process.
func Fatal(format string, args ...any) {
	if std != nil {
		_ = std.out.Output(3, fmt.Sprintf("[FATAL] "+format, args...))
	}
	os.Exit(1)
}
