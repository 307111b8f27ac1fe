package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // human readable console output
	File       string // rotating log file, empty disables
	MaxSizeMB  int64
	MaxBackups int
}

// New creates the process logger writing to stdout and, when configured, to a
// size-rotated file. The returned closer releases the file.
func New(cfg Config) (zerolog.Logger, io.Closer) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var console io.Writer = os.Stdout
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	var closer io.Closer = nopCloser{}
	writers := []io.Writer{console}
	if cfg.File != "" {
		rotator, err := NewRotator(cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
		if err != nil {
			log.Warn().Err(err).Str("file", cfg.File).Msg("Failed to open log file, using stdout only")
		} else {
			writers = append(writers, rotator)
			closer = rotator
		}
	}

	l := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Logger()
	return l, closer
}

// SetGlobalLogger sets the package-level logger
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
