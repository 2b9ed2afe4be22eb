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
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Registry holds the values of one command. Each command builds its own, so
// tests and subcommands never share configuration.
//
// Static values live in a viper instance that is read once by LoadConfig.
// Dynamic values live in a second instance that is re-read whenever the
// loaded config file changes on disk.
type Registry struct {
	static *viper.Viper

	mu       sync.Mutex
	dynamic  *viper.Viper
	keys     map[string]bool // key -> dynamic
	notify   []chan<- struct{}
	watching bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		static:  viper.New(),
		dynamic: viper.New(),
		keys:    make(map[string]bool),
	}
}

func (reg *Registry) declare(key string, dynamic bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.keys[key]; ok {
		panic(fmt.Sprintf("viperutil: %s configured twice", key))
	}
	reg.keys[key] = dynamic
}

// with runs f against the viper instance owning static or dynamic values.
// Access to the dynamic instance is serialized with reloads.
func (reg *Registry) with(dynamic bool, f func(v *viper.Viper)) {
	if !dynamic {
		f(reg.static)
		return
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	f(reg.dynamic)
}

// Combined returns a snapshot of every static and dynamic setting. Both
// instances read the whole config file, so only keys declared dynamic are
// taken from the dynamic one.
func (reg *Registry) Combined() *viper.Viper {
	v := viper.New()
	_ = v.MergeConfigMap(reg.static.AllSettings())
	reg.with(true, func(d *viper.Viper) {
		for key, dynamic := range reg.keys {
			if dynamic {
				v.Set(key, d.Get(key))
			}
		}
	})
	v.SetConfigFile(reg.static.ConfigFileUsed())
	return v
}

// NotifyConfigReload subscribes ch to config reloads. Sends do not block, so
// a slow reader misses notifications rather than stalling the watcher.
//
// It panics when called after the registry started watching.
func NotifyConfigReload(reg *Registry, ch chan<- struct{}) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.watching {
		panic("viperutil: NotifyConfigReload called after the config is watched")
	}
	reg.notify = append(reg.notify, ch)
}

// watch loads file into the dynamic instance and re-reads it on every write
// until the returned function is called.
func (reg *Registry) watch(ctx context.Context, file string) (context.CancelFunc, error) {
	file = filepath.Clean(file)

	reg.mu.Lock()
	reg.dynamic.SetConfigFile(file)
	err := reg.dynamic.ReadInConfig()
	reg.watching = true
	reg.mu.Unlock()
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors replace files by renaming, so the directory is watched.
	if err := w.Add(filepath.Dir(file)); err != nil {
		_ = w.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != file || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reg.reload()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "file", file, "err", err)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func (reg *Registry) reload() {
	reg.mu.Lock()
	err := reg.dynamic.ReadInConfig()
	file := reg.dynamic.ConfigFileUsed()
	subscribers := reg.notify
	reg.mu.Unlock()

	if err != nil {
		slog.Warn("failed to reload config", "file", file, "err", err)
		return
	}
	slog.Info("config reloaded", "file", file)
	for _, ch := range subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
