package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for captured service output.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes where a managed service's combined stdout/stderr is
// captured. Output is appended (lumberjack reopens the current file), so a
// relaunched service continues the same log until rotation kicks in.
type Config struct {
	Dir        string `toml:"dir" mapstructure:"dir"`                   // base directory for logs
	Path       string `toml:"path" mapstructure:"path"`                 // explicit path overrides Dir/<name>.log
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`   // megabytes before rotation
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`   // number of backups to keep
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"` // days to keep
	Compress   bool   `toml:"compress" mapstructure:"compress"`         // gzip rotated files
}

// Writer returns an io.WriteCloser capturing both stdout and stderr for the
// named service. Returns nil when neither Dir nor Path is configured.
func (c Config) Writer(name string) (io.WriteCloser, error) {
	path := c.Path
	if path == "" && c.Dir != "" {
		path = filepath.Join(c.Dir, fmt.Sprintf("%s.log", name))
	}
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}, nil
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// NewSupervisorLogger builds the slog logger used for the supervisor's own
// output. Debug switches the handler to LevelDebug.
func NewSupervisorLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := NewColorTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}, true)
	return slog.New(h)
}
