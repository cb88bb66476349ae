package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects where and how service logs are written.
type Options struct {
	Level string
	// Format is "json" or "console". Empty picks console when APP_ENV=dev.
	Format string
	// File, when set, receives the logs instead of stdout and is rotated.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

var (
	outMu sync.RWMutex
	out   io.Writer = os.Stdout
)

// Configure applies o to the loggers created afterwards.
func Configure(o Options) error {
	if err := SetLevel(o.Level); err != nil {
		return err
	}
	var w io.Writer = os.Stdout
	if o.File != "" {
		w = &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
		}
	}
	format := strings.ToLower(o.Format)
	if format == "" && strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		format = "console"
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: o.File != ""}
	}
	outMu.Lock()
	out = w
	outMu.Unlock()
	return nil
}

// ZerologLogger implements Logger on top of a component scoped zerolog.Logger.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger returns a logger tagging every entry with component.
func NewZerologLogger(component string) *ZerologLogger {
	outMu.RLock()
	w := out
	outMu.RUnlock()
	return &ZerologLogger{log: zerolog.New(w).With().Timestamp().Str("component", component).Logger()}
}

func (l *ZerologLogger) Debugf(format string, args ...any) { l.log.Debug().Msgf(format, args...) }

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) { l.log.Info().Msgf(format, args...) }
func (l *ZerologLogger) Warnf(format string, args ...any) { l.log.Warn().Msgf(format, args...) }
func (l *ZerologLogger) Errorf(format string, args ...any) { l.log.Error().Msgf(format, args...) }
