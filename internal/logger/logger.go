package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes the engine log destination.
// If Path is empty and Dir is set, the file will be Dir/opsgate.log.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	Dir        string `toml:"dir" mapstructure:"dir"`
	Path       string `toml:"path" mapstructure:"path"` // explicit path overrides Dir
	Level      string `toml:"level" mapstructure:"level"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// Writer returns a rotating io.WriteCloser for the engine log, or nil when
// no destination is configured (stderr only).
func (c Config) Writer() io.WriteCloser {
	path := c.Path
	if path == "" && c.Dir != "" {
		path = filepath.Join(c.Dir, "opsgate.log")
	}
	if path == "" {
		return nil
	}
	_ = os.MkdirAll(filepath.Dir(path), 0o750)
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// SlogLevel parses the configured level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs the process-wide slog default: colored text on stderr plus
// an optional rotating file. It returns a closer for the file writer (may be
// a no-op).
func Setup(c Config) func() {
	level := c.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = NewColorTextHandler(os.Stderr, opts, true)
	closer := func() {}
	if w := c.Writer(); w != nil {
		handler = newTeeHandler(handler, slog.NewTextHandler(w, opts))
		closer = func() { _ = w.Close() }
	}
	slog.SetDefault(slog.New(handler))
	return closer
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
