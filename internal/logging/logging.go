// Package logging installs the process-wide slog logger: stdout, Datadog
// agent and rotating file sinks fanned out behind a root level, with
// per-logger minimum levels for chatty subsystems.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ericfisherdev/prpilot/internal/config"
)

// LoggerKey is the attribute naming the subsystem a record comes from.
const LoggerKey = "logger"

// Named loggers used across the module.
const (
	GitHubRequester    = "github.requester"
	HTTPConnectionPool = "http.connectionpool"
	HTTPRetry          = "http.retry"
	HTTPRecorder       = "http.recorder"
	HTTPClient         = "http.client"
	Runtime            = "runtime"
	HTTPAccess         = "http.access"
)

// noisyLoggers never emit below WARN, whatever the root level.
var noisyLoggers = map[string]slog.Level{
	GitHubRequester:    slog.LevelWarn,
	HTTPConnectionPool: slog.LevelWarn,
	HTTPRetry:          slog.LevelWarn,
	HTTPRecorder:       slog.LevelWarn,
	HTTPClient:         slog.LevelWarn,
	Runtime:            slog.LevelWarn,
	HTTPAccess:         slog.LevelWarn,
}

// Named returns the default logger tagged with the given subsystem name.
// Call it after Setup so the tag reaches the configured handler.
func Named(name string) *slog.Logger {
	return slog.Default().With(LoggerKey, name)
}

// ParseLevel accepts debug, info, warn, warning and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("parsing log level %q: %w", s, err)
	}
	return lvl, nil
}

// Setup builds the handler described by cfg and installs it with
// slog.SetDefault. The returned closer releases the file and Datadog sinks.
// Setup is meant to be called once at startup.
func Setup(cfg *config.Config) (io.Closer, error) {
	handler, closer, err := NewHandler(cfg, os.Stdout)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(handler))
	return closer, nil
}

// NewHandler builds the root handler without installing it. stdout receives
// the stdout sink output.
func NewHandler(cfg *config.Config, stdout io.Writer) (slog.Handler, io.Closer, error) {
	root, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	var (
		sinks   []slog.Handler
		closers closers
	)

	if cfg.LogStdout {
		lvl, err := ParseLevel(cfg.LogStdoutLevel)
		if err != nil {
			return nil, nil, err
		}
		opts := &slog.HandlerOptions{Level: lvl}
		if isTerminal(stdout) {
			sinks = append(sinks, slog.NewTextHandler(stdout, opts))
		} else {
			sinks = append(sinks, slog.NewJSONHandler(stdout, opts))
		}
	}

	if cfg.LogDatadog {
		lvl, err := ParseLevel(cfg.LogDatadogLevel)
		if err != nil {
			return nil, nil, err
		}
		w, err := newDatadogWriter(cfg.LogDatadogURL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, w)
		sinks = append(sinks, newDatadogHandler(w, lvl))
	}

	if cfg.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		}
		closers = append(closers, lj)
		sinks = append(sinks, slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	h := &levelHandler{
		next:      &multiHandler{handlers: sinks},
		root:      root,
		overrides: noisyLoggers,
	}
	return h, closers, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for _, cl := range c {
		errs = append(errs, cl.Close())
	}
	return errors.Join(errs...)
}
