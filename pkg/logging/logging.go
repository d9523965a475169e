// Package logging configures the global zerolog logger used across ragchat.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Settings struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	WithCaller bool   `yaml:"with-caller" mapstructure:"with-caller"`
	// LogFile receives the logs instead of stderr when set. The file is
	// rotated at 10MB.
	LogFile string `yaml:"log-file" mapstructure:"log-file"`
}

// ParseLevel converts a string level into zerolog.Level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// InitLogger replaces log.Logger according to s. The returned closer releases
// the log file, if any.
func InitLogger(s Settings) (io.Closer, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	interactive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	if s.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   s.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = rotator
		closer = rotator
		interactive = false
	}

	switch s.Format {
	case "json":
	case "", "text":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: !interactive}
	default:
		_ = closer.Close()
		return nil, errors.Errorf("unknown log format %q (expected text or json)", s.Format)
	}

	ctx := zerolog.New(w).With().Timestamp()
	if s.WithCaller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	zerolog.SetGlobalLevel(ParseLevel(s.Level))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
