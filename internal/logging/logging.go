// Package logging wires zerolog up as the process-wide structured logger:
// stderr or pretty console output, an optional timestamped log file, and
// WOLO_LOG_LEVEL-aware level parsing.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Replaced wholesale by Init.
var Logger zerolog.Logger

// logFile is the open per-run log file, when file logging is on.
var logFile *os.File

// Level aliases zerolog's level type so callers don't import zerolog for
// configuration alone.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config selects where and how loudly the process logs.
type Config struct {
	// Level is the minimum level emitted.
	Level Level
	// Output receives console logs; defaults to os.Stderr.
	Output io.Writer
	// Pretty switches console output to zerolog's human format.
	Pretty bool
	// TimeFormat for timestamps; defaults to RFC3339.
	TimeFormat string
	// LogToFile additionally writes to a timestamped file under LogDir.
	LogToFile bool
	// LogDir holds per-run log files; defaults to /tmp.
	LogDir string
}

// DefaultConfig logs info and above to stderr, machine-formatted.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
		LogDir:     "/tmp",
	}
}

// Init replaces the process logger. Safe to call again with a new Config;
// an earlier per-run log file is closed first.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "/tmp"
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	var console io.Writer = cfg.Output
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: cfg.TimeFormat}
	}

	writers := []io.Writer{console}
	if cfg.LogToFile {
		if logFile != nil {
			logFile.Close()
		}
		name := "wolo-" + time.Now().Format("20060102-150405") + ".log"
		f, err := os.OpenFile(filepath.Join(cfg.LogDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			logFile = f
			writers = append(writers, f)
		}
	}

	out := writers[0]
	if len(writers) > 1 {
		out = zerolog.MultiLevelWriter(writers...)
	}

	Logger = zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

// GetLogFilePath returns the active per-run log file path, or "".
func GetLogFilePath() string {
	if logFile == nil {
		return ""
	}
	return logFile.Name()
}

// Close releases the per-run log file, if any.
func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// ParseLevel reads a level name case-insensitively (the WOLO_LOG_LEVEL
// format). Unrecognized values fall back to info rather than failing.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Debug starts a debug-level message on the process logger.
func Debug() *zerolog.Event { return Logger.Debug() }

// Info starts an info-level message.
func Info() *zerolog.Event { return Logger.Info() }

// Warn starts a warn-level message.
func Warn() *zerolog.Event { return Logger.Warn() }

// Error starts an error-level message.
func Error() *zerolog.Event { return Logger.Error() }

// Fatal starts a fatal-level message; Msg/Send exit the process.
func Fatal() *zerolog.Event { return Logger.Fatal() }

// With opens a child-logger context on the process logger.
func With() zerolog.Context { return Logger.With() }

func init() {
	Init(DefaultConfig())
}
