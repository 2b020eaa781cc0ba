// Package logger builds the zerolog logger used across wharf.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const permission = 0o664

// Build configures where log output goes before Make assembles the
// logger. The zero Build logs to stdout.
type Build struct {
	writer io.Writer
	path   string
	level  zerolog.Level
}

func New() *Build {
	return &Build{level: zerolog.InfoLevel}
}

// ToWriter directs output to w, typically a buffer in tests.
func (b *Build) ToWriter(w io.Writer) *Build {
	b.writer = w
	return b
}

// ToPath appends output to the file at path, creating it if needed.
func (b *Build) ToPath(path string) *Build {
	b.path = path
	return b
}

// Level sets the minimum level; the default is info.
func (b *Build) Level(level zerolog.Level) *Build {
	b.level = level
	return b
}

// Make assembles the logger. When a path was given the file stays open
// for the life of the process.
func (b *Build) Make() (zerolog.Logger, error) {
	w := b.writer
	if w == nil {
		w = os.Stdout
	}
	if b.path != "" {
		f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return zerolog.Nop(), err
		}
		w = zerolog.SyncWriter(f)
	}
	return zerolog.New(w).Level(b.level).With().Timestamp().Logger(), nil
}
