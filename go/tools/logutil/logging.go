// Copyright 2025 Supabase, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logutil builds the process logger from the --log-* flags.
package logutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/pflag"

	"github.com/duckling-db/duckling/go/tools/viperutil"
)

// Logger owns the process-wide slog logger. The level is dynamic: Refresh
// applies a level changed in the config file without rebuilding handlers.
type Logger struct {
	logLevel  viperutil.Value[string]
	logFormat viperutil.Value[string]
	logOutput viperutil.Value[string]

	level slog.LevelVar

	once   sync.Once
	mu     sync.Mutex
	logger *slog.Logger
	file   *os.File

	hooksMu     sync.Mutex
	setupHooks  []func(*slog.Logger)
	changeHooks []func(*slog.Logger)
}

// New declares the logging values in reg.
func New(reg *viperutil.Registry) *Logger {
	return &Logger{
		logLevel: viperutil.Configure(reg, "log-level", viperutil.Options[string]{
			Default:  "warn",
			FlagName: "log-level",
			EnvVars:  []string{"DUCKLING_LOG_LEVEL"},
			Dynamic:  true,
		}),
		logFormat: viperutil.Configure(reg, "log-format", viperutil.Options[string]{
			Default:  "text",
			FlagName: "log-format",
			EnvVars:  []string{"DUCKLING_LOG_FORMAT"},
		}),
		logOutput: viperutil.Configure(reg, "log-output", viperutil.Options[string]{
			Default:  "stderr",
			FlagName: "log-output",
			EnvVars:  []string{"DUCKLING_LOG_OUTPUT"},
		}),
	}
}

// RegisterFlags registers logging-related command line flags.
func (lg *Logger) RegisterFlags(fs *pflag.FlagSet) {
	fs.String("log-level", lg.logLevel.Default(), "Log level (debug, info, warn, error)")
	fs.String("log-format", lg.logFormat.Default(), "Log format (json, text)")
	fs.String("log-output", lg.logOutput.Default(), "Log output (stdout, stderr, or file path)")
	viperutil.BindFlags(fs, lg.logLevel, lg.logFormat, lg.logOutput)
}

// OnSetup registers f to run once the logger is built.
func (lg *Logger) OnSetup(f func(*slog.Logger)) {
	lg.hooksMu.Lock()
	defer lg.hooksMu.Unlock()
	lg.setupHooks = append(lg.setupHooks, f)
}

// OnChange registers f to run when Refresh changes the level.
func (lg *Logger) OnChange(f func(*slog.Logger)) {
	lg.hooksMu.Lock()
	defer lg.hooksMu.Unlock()
	lg.changeHooks = append(lg.changeHooks, f)
}

// ParseLevel parses debug, info, warn or error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// Setup builds the logger from the flags and installs it as slog's default.
// Only the first call has an effect.
func (lg *Logger) Setup() (*slog.Logger, error) {
	var err error
	lg.once.Do(func() {
		err = lg.setup()
	})
	if err != nil {
		return nil, err
	}
	return lg.Get(), nil
}

func (lg *Logger) setup() error {
	level, err := ParseLevel(lg.logLevel.Get())
	if err != nil {
		return err
	}
	lg.level.Set(level)

	var output io.Writer
	switch out := lg.logOutput.Get(); strings.ToLower(out) {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log output: %w", err)
		}
		lg.file = f
		output = f
	}

	opts := &slog.HandlerOptions{Level: &lg.level}
	var handler slog.Handler
	switch format := lg.logFormat.Get(); strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(output, opts)
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	lg.mu.Lock()
	lg.logger = logger
	lg.mu.Unlock()

	lg.fire(false, logger)
	logger.Debug("logging initialized",
		"level", level,
		"format", lg.logFormat.Get(),
		"output", lg.logOutput.Get(),
	)
	return nil
}

// Get returns the configured logger, or slog's default before Setup.
func (lg *Logger) Get() *slog.Logger {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if lg.logger == nil {
		return slog.Default()
	}
	return lg.logger
}

// Level returns the level currently in effect.
func (lg *Logger) Level() slog.Level {
	return lg.level.Level()
}

// Refresh re-reads the log level. An invalid level is logged and ignored.
func (lg *Logger) Refresh() {
	level, err := ParseLevel(lg.logLevel.Get())
	if err != nil {
		lg.Get().Warn("ignoring log level change", "err", err)
		return
	}
	if level == lg.level.Level() {
		return
	}
	lg.level.Set(level)
	logger := lg.Get()
	logger.Info("log level changed", "level", level)
	lg.fire(true, logger)
}

// Close closes the log file, if any.
func (lg *Logger) Close() error {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if lg.file == nil {
		return nil
	}
	err := lg.file.Close()
	lg.file = nil
	return err
}

func (lg *Logger) fire(change bool, l *slog.Logger) {
	lg.hooksMu.Lock()
	hooks := lg.setupHooks
	if change {
		hooks = lg.changeHooks
	}
	hooks = slices.Clone(hooks)
	lg.hooksMu.Unlock()

	for _, hook := range hooks {
		hook(l)
	}
}
