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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ViperConfig holds the flags that decide which config file is loaded.
type ViperConfig struct {
	configPaths                Value[[]string]
	configType                 Value[string]
	configName                 Value[string]
	configFile                 Value[string]
	configFileNotFoundHandling Value[ConfigFileNotFoundHandling]
}

// NewViperConfig declares the config-file values in reg. The search path
// defaults to the working directory and the user config directory.
func NewViperConfig(reg *Registry) *ViperConfig {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "duckling"))
	}

	return &ViperConfig{
		configPaths: Configure(reg, "config.paths", Options[[]string]{
			Default:  paths,
			EnvVars:  []string{"DUCKLING_CONFIG_PATH"},
			FlagName: "config-path",
		}),
		configType: Configure(reg, "config.type", Options[string]{
			EnvVars:  []string{"DUCKLING_CONFIG_TYPE"},
			FlagName: "config-type",
		}),
		configName: Configure(reg, "config.name", Options[string]{
			Default:  "duckling",
			EnvVars:  []string{"DUCKLING_CONFIG_NAME"},
			FlagName: "config-name",
		}),
		configFile: Configure(reg, "config.file", Options[string]{
			EnvVars:  []string{"DUCKLING_CONFIG_FILE"},
			FlagName: "config-file",
		}),
		configFileNotFoundHandling: Configure(reg, "config.notfound.handling", Options[ConfigFileNotFoundHandling]{
			Default:  IgnoreConfigFileNotFound,
			GetFunc:  getHandlingValue,
			FlagName: "config-file-not-found-handling",
		}),
	}
}

// RegisterFlags installs the flags that control config loading.
func (vc *ViperConfig) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringSlice("config-path", vc.configPaths.Default(), "Paths to search for config files in.")
	fs.String("config-type", vc.configType.Default(), "Config file type (omit to infer config type from file extension).")
	fs.String("config-name", vc.configName.Default(), "Name of the config file (without extension) to search for.")
	fs.String("config-file", vc.configFile.Default(), "Full path of the config file (with extension) to use. If set, --config-path, --config-type, and --config-name are ignored.")

	h := vc.configFileNotFoundHandling.Default()
	fs.Var(&h, "config-file-not-found-handling", fmt.Sprintf("Behavior when a config file is not found. (Options: %s)", strings.Join(handlingNames, ", ")))

	BindFlags(fs, vc.configPaths, vc.configType, vc.configName, vc.configFile, vc.configFileNotFoundHandling)
}

// LoadConfig finds and reads the config file, following viper's search
// rules: --config-file wins outright, otherwise --config-name is looked up
// in each --config-path.
//
// When a file is loaded, dynamic values start following it. The returned
// function stops the watcher.
func (vc *ViperConfig) LoadConfig(ctx context.Context, reg *Registry) (context.CancelFunc, error) {
	var err error
	switch file := vc.configFile.Get(); file {
	case "":
		name := vc.configName.Get()
		if name == "" {
			return func() {}, nil
		}
		reg.static.SetConfigName(name)
		for _, path := range vc.configPaths.Get() {
			reg.static.AddConfigPath(path)
		}
		if cfgType := vc.configType.Get(); cfgType != "" {
			reg.static.SetConfigType(cfgType)
		}
		err = reg.static.ReadInConfig()
	default:
		reg.static.SetConfigFile(file)
		err = reg.static.ReadInConfig()
	}

	if err != nil {
		if !isConfigFileNotFoundError(err) {
			return nil, err
		}
		switch vc.configFileNotFoundHandling.Get() {
		case IgnoreConfigFileNotFound:
			return func() {}, nil
		case WarnOnConfigFileNotFound:
			slog.Warn("config file not found", "err", err)
			return func() {}, nil
		default:
			slog.Error("config file not found", "err", err)
			return nil, err
		}
	}

	slog.Debug("config loaded", "file", reg.static.ConfigFileUsed())
	return reg.watch(ctx, reg.static.ConfigFileUsed())
}

func isConfigFileNotFoundError(err error) bool {
	if errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return true
	}
	return errors.Is(err, os.ErrNotExist)
}

// ConfigFileNotFoundHandling controls how LoadConfig treats a missing config
// file.
type ConfigFileNotFoundHandling int

const (
	// IgnoreConfigFileNotFound proceeds silently with defaults, environment
	// variables and flags.
	IgnoreConfigFileNotFound ConfigFileNotFoundHandling = iota
	// WarnOnConfigFileNotFound logs a warning and proceeds.
	WarnOnConfigFileNotFound
	// ErrorOnConfigFileNotFound makes LoadConfig return the error.
	ErrorOnConfigFileNotFound
)

var (
	handlingNames         []string
	handlingNamesToValues = map[string]ConfigFileNotFoundHandling{
		"ignore": IgnoreConfigFileNotFound,
		"warn":   WarnOnConfigFileNotFound,
		"error":  ErrorOnConfigFileNotFound,
	}
)

func init() {
	for name := range handlingNamesToValues {
		handlingNames = append(handlingNames, name)
	}
	sort.Strings(handlingNames)
}

func getHandlingValue(v *viper.Viper) func(key string) ConfigFileNotFoundHandling {
	return func(key string) (h ConfigFileNotFoundHandling) {
		if err := v.UnmarshalKey(key, &h, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(decodeHandlingValue))); err != nil {
			slog.Warn(fmt.Sprintf("failed to unmarshal %s: %s; defaulting to ignore", key, err.Error()))
			return IgnoreConfigFileNotFound
		}
		return h
	}
}

func decodeHandlingValue(from, to reflect.Type, data any) (any, error) {
	var h ConfigFileNotFoundHandling
	if to != reflect.TypeOf(h) {
		return data, nil
	}

	switch {
	case from == reflect.TypeOf(h):
		return data.(ConfigFileNotFoundHandling), nil
	case from.Kind() == reflect.Int:
		return ConfigFileNotFoundHandling(data.(int)), nil
	case from.Kind() == reflect.String:
		if err := h.Set(data.(string)); err != nil {
			return h, err
		}
		return h, nil
	}

	return data, fmt.Errorf("invalid value for ConfigFileNotFoundHandling: %v", data)
}

// Set implements pflag.Value.
func (h *ConfigFileNotFoundHandling) Set(arg string) error {
	if v, ok := handlingNamesToValues[strings.ToLower(arg)]; ok {
		*h = v
		return nil
	}
	return fmt.Errorf("unknown handling name %s", arg)
}

func (h *ConfigFileNotFoundHandling) String() string {
	for name, v := range handlingNamesToValues {
		if v == *h {
			return name
		}
	}
	return "<UNKNOWN>"
}

// Type implements pflag.Value.
func (h *ConfigFileNotFoundHandling) Type() string { return "ConfigFileNotFoundHandling" }
