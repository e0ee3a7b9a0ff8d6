// Package logger provides the leveled logging interface used by every cache
// and a zerolog-backed implementation of it.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

// Logger is the structured logger the caches write to.
// Args are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type LogBuild struct {
	writer io.Writer
	path   string
	level  zerolog.Level
}

// LogData is a Logger writing JSON lines through zerolog.
type LogData struct {
	LogFile *os.File
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{level: zerolog.InfoLevel}
}

func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// WithLevel sets the minimum level by name. Unknown names keep the default (info).
func (build *LogBuild) WithLevel(level string) *LogBuild {
	if lvl, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && level != "" {
		build.level = lvl
	}
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	writer := build.writer
	if writer == nil {
		writer = os.Stderr
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		writer = zerolog.SyncWriter(logData.LogFile)
	}
	logData.Logger = zerolog.New(writer).Level(build.level).With().Timestamp().Logger()
	return logData, nil
}

func (d *LogData) Debug(msg string, args ...any) {
	d.Logger.Debug().Fields(args).Msg(msg)
}

func (d *LogData) Info(msg string, args ...any) {
	d.Logger.Info().Fields(args).Msg(msg)
}

func (d *LogData) Warn(msg string, args ...any) {
	d.Logger.Warn().Fields(args).Msg(msg)
}

func (d *LogData) Error(msg string, args ...any) {
	d.Logger.Error().Fields(args).Msg(msg)
}

// Close closes the log file, if any.
func (d *LogData) Close() error {
	if d.LogFile == nil {
		return nil
	}
	return d.LogFile.Close()
}

type nop struct{}

func (nop) Debug(string, ...any) {}
func (nop) Info(string, ...any)  {}
func (nop) Warn(string, ...any)  {}
func (nop) Error(string, ...any) {}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nop{} }

// OrNop returns l, or Nop when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
