package log

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig configures an optional rotating log file. Zero sizes and ages fall back
// to lumberjack's defaults: 100MB per file, every backup kept, no age limit.
type FileConfig struct {
	Path       string `mapstructure:"path"         yaml:"path"         toml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"  toml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"  yaml:"max_backups"  toml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `mapstructure:"compress"     yaml:"compress"     toml:"compress"`
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewWithFile creates a logger writing to w and, when file.Path is set, also to a
// rotating JSON file. Pretty formatting applies to w only. The returned Closer
// closes the file.
func NewWithFile(w io.Writer, level string, pretty bool, file FileConfig) (*Logger, io.Closer) {
	if file.Path == "" {
		return NewWithWriter(w, level, pretty), nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAge:     file.MaxAgeDays,
		Compress:   file.Compress,
	}

	out := w
	if pretty {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	l := zerolog.New(zerolog.MultiLevelWriter(out, rotator)).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: l}, rotator
}
