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

// Package viperutil binds typed configuration values to command-line flags,
// environment variables and an optional config file.
//
// A value is declared once with Configure and read through Get. Static values
// are fixed after LoadConfig; dynamic values follow edits to the config file
// for the lifetime of the process.
//
//	reg := viperutil.NewRegistry()
//	threads := viperutil.Configure(reg, "threads", viperutil.Options[int]{
//	    FlagName: "threads",
//	    EnvVars:  []string{"DUCKLING_THREADS"},
//	})
package viperutil

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Value is a configuration value of type T.
type Value[T any] interface {
	Bindable

	// Default returns the value used when nothing else sets it.
	Default() T
	// Get returns the current value.
	Get() T
	// Set overrides the value in memory.
	Set(v T)
}

// Bindable is the type-independent part of a Value, used to bind flags.
type Bindable interface {
	Key() string
	Flag() string
	bindFlag(f *pflag.Flag) error
}

// Options configures a Value.
type Options[T any] struct {
	Default T
	// FlagName is the flag the value is bound to by BindFlags. Empty means
	// the value has no flag.
	FlagName string
	// EnvVars are checked in order; the first one set wins.
	EnvVars []string
	// Dynamic values are reloaded when the config file changes.
	Dynamic bool
	// GetFunc overrides how the value is read from viper.
	GetFunc func(v *viper.Viper) func(key string) T
}

type value[T any] struct {
	reg     *Registry
	key     string
	def     T
	flag    string
	dynamic bool
	get     func(key string) T
}

// Configure declares key in reg and returns its Value. Declaring the same key
// twice in one registry panics.
func Configure[T any](reg *Registry, key string, opts Options[T]) Value[T] {
	reg.declare(key, opts.Dynamic)

	v := &value[T]{
		reg:     reg,
		key:     key,
		def:     opts.Default,
		flag:    opts.FlagName,
		dynamic: opts.Dynamic,
	}

	getFunc := opts.GetFunc
	if getFunc == nil {
		getFunc = defaultGetFunc[T]
	}

	reg.with(v.dynamic, func(b *viper.Viper) {
		b.SetDefault(key, opts.Default)
		if len(opts.EnvVars) > 0 {
			if err := b.BindEnv(append([]string{key}, opts.EnvVars...)...); err != nil {
				panic(fmt.Sprintf("viperutil: binding env for %s: %v", key, err))
			}
		}
		v.get = getFunc(b)
	})
	return v
}

func (v *value[T]) Key() string  { return v.key }
func (v *value[T]) Flag() string { return v.flag }
func (v *value[T]) Default() T   { return v.def }

func (v *value[T]) Get() (out T) {
	v.reg.with(v.dynamic, func(*viper.Viper) {
		out = v.get(v.key)
	})
	return out
}

func (v *value[T]) Set(x T) {
	v.reg.with(v.dynamic, func(b *viper.Viper) {
		b.Set(v.key, x)
	})
}

func (v *value[T]) bindFlag(f *pflag.Flag) error {
	var err error
	v.reg.with(v.dynamic, func(b *viper.Viper) {
		err = b.BindPFlag(v.key, f)
	})
	return err
}

// BindFlags binds each value to its flag in fs. Values without a flag name,
// or whose flag is not defined in fs, are skipped.
func BindFlags(fs *pflag.FlagSet, values ...Bindable) {
	for _, v := range values {
		if v.Flag() == "" {
			continue
		}
		f := fs.Lookup(v.Flag())
		if f == nil {
			continue
		}
		if err := v.bindFlag(f); err != nil {
			panic(fmt.Sprintf("viperutil: binding flag %s: %v", v.Flag(), err))
		}
	}
}

func defaultGetFunc[T any](v *viper.Viper) func(key string) T {
	var zero T
	var get any
	switch any(zero).(type) {
	case bool:
		get = v.GetBool
	case int:
		get = v.GetInt
	case int64:
		get = v.GetInt64
	case float64:
		get = v.GetFloat64
	case string:
		get = v.GetString
	case []string:
		get = v.GetStringSlice
	case time.Duration:
		get = v.GetDuration
	default:
		return func(key string) (out T) {
			if err := v.UnmarshalKey(key, &out, viper.DecodeHook(DecodeHook())); err != nil {
				slog.Warn("failed to decode config value", "key", key, "err", err)
			}
			return out
		}
	}
	return get.(func(string) T)
}
