// Package logger holds the process-wide zerolog logger.
//
// Logs always go to stderr: stdout carries CLI JSON and the MCP stdio stream.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/smn/internal/config"
)

var (
	singleton = zerolog.Nop()
	once      sync.Once
	initErr   error
	mu        sync.RWMutex
)

// New builds a logger writing to w. format is "json" or "console".
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Init initializes the singleton logger from cfg.
// Only the first call configures anything; later calls return the same
// logger and the same error.
func Init(cfg *config.Config) (zerolog.Logger, error) {
	once.Do(func() {
		l, err := New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			initErr = err
			return
		}
		Set(l)
	})

	return *L(), initErr
}

// Set replaces the singleton. Tests use it to capture output.
func Set(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	singleton = l
}

// L returns the singleton logger. Before Init it discards everything.
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := singleton
	return &l
}
