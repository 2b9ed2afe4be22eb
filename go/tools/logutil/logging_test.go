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

package logutil

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duckling-db/duckling/go/tools/viperutil"
)

func keepDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestSetupFromFlags(t *testing.T) {
	keepDefault(t)
	path := filepath.Join(t.TempDir(), "duckling.log")

	lg := New(viperutil.NewRegistry())
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	lg.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log-level=info", "--log-format=json", "--log-output=" + path}))

	var setup int
	lg.OnSetup(func(*slog.Logger) { setup++ })

	logger, err := lg.Setup()
	require.NoError(t, err)
	defer lg.Close()
	assert.Equal(t, 1, setup)
	assert.Same(t, logger, slog.Default())

	logger.Debug("hidden")
	logger.Info("planning query", "sql", "select 1")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "planning query", rec["msg"])
	assert.Equal(t, "select 1", rec["sql"])

	_, err = lg.Setup()
	require.NoError(t, err)
	assert.Equal(t, 1, setup, "setup runs once")
}

func TestRefreshLevel(t *testing.T) {
	keepDefault(t)
	lg := New(viperutil.NewRegistry())
	lg.logOutput.Set(filepath.Join(t.TempDir(), "duckling.log"))
	_, err := lg.Setup()
	require.NoError(t, err)
	defer lg.Close()
	assert.Equal(t, slog.LevelWarn, lg.Level())

	var changed []slog.Level
	lg.OnChange(func(*slog.Logger) { changed = append(changed, lg.Level()) })

	lg.logLevel.Set("DEBUG")
	lg.Refresh()
	assert.Equal(t, slog.LevelDebug, lg.Level())

	lg.logLevel.Set("debug")
	lg.Refresh()

	lg.logLevel.Set("loud")
	lg.Refresh()
	assert.Equal(t, slog.LevelDebug, lg.Level(), "invalid level is ignored")
	assert.Equal(t, []slog.Level{slog.LevelDebug}, changed)
}

func TestHookRegistersHook(t *testing.T) {
	keepDefault(t)
	lg := New(viperutil.NewRegistry())
	lg.logOutput.Set(filepath.Join(t.TempDir(), "duckling.log"))
	_, err := lg.Setup()
	require.NoError(t, err)
	defer lg.Close()

	var calls []string
	lg.OnChange(func(*slog.Logger) {
		calls = append(calls, "first")
		lg.OnChange(func(*slog.Logger) { calls = append(calls, "second") })
	})

	lg.logLevel.Set("info")
	lg.Refresh()
	assert.Equal(t, []string{"first"}, calls, "hooks added while firing wait for the next change")

	lg.logLevel.Set("error")
	lg.Refresh()
	assert.Equal(t, []string{"first", "first", "second"}, calls)
}

func TestSetupErrors(t *testing.T) {
	keepDefault(t)
	for name, set := range map[string]func(lg *Logger){
		"level":  func(lg *Logger) { lg.logLevel.Set("loud") },
		"format": func(lg *Logger) { lg.logFormat.Set("xml") },
		"output": func(lg *Logger) { lg.logOutput.Set(filepath.Join(t.TempDir(), "missing", "x.log")) },
	} {
		t.Run(name, func(t *testing.T) {
			lg := New(viperutil.NewRegistry())
			set(lg)
			_, err := lg.Setup()
			require.Error(t, err)
		})
	}
}
