package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for the shared session log.
// MaxSizeMB is deliberately large: the session log is treated as
// append-only and rotation only kicks in as a safety valve.
const (
	DefaultMaxSizeMB  = 100 // MB
	DefaultMaxBackups = 3   // number of backup files
	DefaultMaxAgeDays = 7   // days
)

// Config describes the shared session log destination.
// If Path is empty and Dir is set, the file will be Dir/session.log.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	Dir        string `toml:"dir" mapstructure:"dir"`
	Path       string `toml:"path" mapstructure:"path"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// SessionFile resolves the effective session log path, creating the
// directory if needed.
func (c Config) SessionFile() (string, error) {
	p := c.Path
	if p == "" {
		dir := c.Dir
		if dir == "" {
			dir = "log"
		}
		p = filepath.Join(dir, "session.log")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return "", err
	}
	return p, nil
}

// Writer returns an io.WriteCloser for the shared session log backed by
// lumberjack so a runaway child cannot grow the file without bound.
func (c Config) Writer() (io.WriteCloser, error) {
	p, err := c.SessionFile()
	if err != nil {
		return nil, err
	}
	return &lj.Logger{
		Filename:   p,
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

// NewLogger builds the supervisor's own slog logger writing to w.
// level accepts debug, info, warn, error (case-insensitive).
func NewLogger(w io.Writer, level string, color bool) *slog.Logger {
	var lv slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lv = slog.LevelDebug
	case "warn", "warning":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lv}
	if color {
		return slog.New(NewColorTextHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
