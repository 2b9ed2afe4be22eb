// Copyright 2023 The Vitess Authors.
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
//
// Modifications Copyright 2025 Supabase, Inc.

package viperutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigHandlingValue(t *testing.T) {
	v := viper.New()
	v.SetDefault("default", ErrorOnConfigFileNotFound)
	v.SetConfigType("yaml")

	cfg := `
foo: 2
bar: "2" # not valid, defaults to "ignore" (0)
baz: warn
duration: 10h
`
	err := v.ReadConfig(strings.NewReader(cfg))
	require.NoError(t, err)

	get := getHandlingValue(v)
	assert.Equal(t, ErrorOnConfigFileNotFound, get("foo"), "failed to get int value")
	assert.Equal(t, IgnoreConfigFileNotFound, get("bar"), "failed to get int-like string value")
	assert.Equal(t, WarnOnConfigFileNotFound, get("baz"), "failed to get string value")
	assert.Equal(t, IgnoreConfigFileNotFound, get("notset"), "failed to get value on unset key")
	assert.Equal(t, IgnoreConfigFileNotFound, get("duration"), "failed to get value on duration key")
	assert.Equal(t, ErrorOnConfigFileNotFound, get("default"), "failed to get value on default key")
}

func TestLoadConfigNotFound(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		handling ConfigFileNotFoundHandling
		wantErr  bool
	}{
		{name: "ignore missing file", file: "notfound.yaml", handling: IgnoreConfigFileNotFound},
		{name: "ignore missing name", handling: IgnoreConfigFileNotFound},
		{name: "warn missing file", file: "notfound.yaml", handling: WarnOnConfigFileNotFound},
		{name: "warn missing name", handling: WarnOnConfigFileNotFound},
		{name: "error missing file", file: "notfound.yaml", handling: ErrorOnConfigFileNotFound, wantErr: true},
		{name: "error missing name", handling: ErrorOnConfigFileNotFound, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			vc := NewViperConfig(reg)
			vc.configPaths.Set([]string{t.TempDir()})
			vc.configFile.Set(tt.file)
			vc.configName.Set("notfound")
			vc.configFileNotFoundHandling.Set(tt.handling)

			stop, err := vc.LoadConfig(context.Background(), reg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			stop()
		})
	}
}

func TestLoadConfigSources(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "duckling.yaml")
	require.NoError(t, os.WriteFile(file, []byte("threads: 3\nmemory-limit: 5000GB\noutput: csv\n"), 0o644))

	reg := NewRegistry()
	vc := NewViperConfig(reg)
	threads := Configure(reg, "threads", Options[int]{Default: 1, FlagName: "threads"})
	memory := Configure(reg, "memory-limit", Options[ByteSize]{FlagName: "memory-limit", EnvVars: []string{"DUCKLING_TEST_MEMORY_LIMIT"}})
	output := Configure(reg, "output", Options[string]{Default: "table", FlagName: "output"})

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	vc.RegisterFlags(fs)
	fs.Int("threads", threads.Default(), "")
	var mem ByteSize
	fs.Var(&mem, "memory-limit", "")
	fs.String("output", output.Default(), "")
	BindFlags(fs, threads, memory, output)

	require.NoError(t, fs.Parse([]string{"--config-path", dir, "--output", "json"}))
	stop, err := vc.LoadConfig(context.Background(), reg)
	require.NoError(t, err)
	defer stop()

	assert.Equal(t, 3, threads.Get(), "config file beats the default")
	assert.Equal(t, ByteSize(5000*1000*1000*1000), memory.Get())
	assert.Equal(t, "json", output.Get(), "flags beat the config file")

	t.Setenv("DUCKLING_TEST_MEMORY_LIMIT", "1GiB")
	assert.Equal(t, ByteSize(1<<30), memory.Get(), "environment beats the config file")

	combined := reg.Combined()
	assert.Equal(t, file, combined.ConfigFileUsed())
	assert.Equal(t, "json", combined.GetString("output"))
}

func TestDynamicReload(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "duckling.yaml")
	require.NoError(t, os.WriteFile(file, []byte("output: table\n"), 0o644))

	reg := NewRegistry()
	vc := NewViperConfig(reg)
	static := Configure(reg, "threads", Options[int]{Default: 1})
	output := Configure(reg, "output", Options[string]{Default: "csv", Dynamic: true})
	reloaded := make(chan struct{}, 1)
	NotifyConfigReload(reg, reloaded)

	vc.configFile.Set(file)
	stop, err := vc.LoadConfig(context.Background(), reg)
	require.NoError(t, err)
	defer stop()
	assert.Equal(t, "table", output.Get())

	require.NoError(t, os.WriteFile(file, []byte("output: json\nthreads: 8\n"), 0o644))
	require.Eventually(t, func() bool { return output.Get() == "json" }, 5*time.Second, 10*time.Millisecond)
	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload notification")
	}
	assert.Equal(t, 1, static.Get(), "static values do not follow the file")

	combined := reg.Combined()
	assert.Equal(t, "json", combined.GetString("output"))
	assert.Equal(t, 1, combined.GetInt("threads"), "the reloaded file does not leak into static keys")

	assert.Panics(t, func() { NotifyConfigReload(reg, make(chan struct{})) })
}

func TestConfigureTwicePanics(t *testing.T) {
	reg := NewRegistry()
	Configure(reg, "threads", Options[int]{})
	assert.Panics(t, func() { Configure(reg, "threads", Options[int]{}) })
}

func TestByteSize(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.Set("5000GB"))
	assert.Equal(t, ByteSize(5_000_000_000_000), b)
	assert.Equal(t, "5.0 TB", b.String())

	require.NoError(t, b.Set("1GiB"))
	assert.Equal(t, "1073741824", b.String())

	require.Error(t, b.Set("lots"))

	reg := NewRegistry()
	v := Configure(reg, "limit", Options[ByteSize]{})
	for _, tt := range []struct {
		in   any
		want ByteSize
	}{
		{"", 0},
		{"2KB", 2000},
		{4096, 4096},
		{1.5e3, 1500},
	} {
		reg.static.Set("limit", tt.in)
		assert.Equal(t, tt.want, v.Get(), "%v", tt.in)
	}
}
