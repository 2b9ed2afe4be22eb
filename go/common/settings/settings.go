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

// Package settings holds the session options changed through SET and read
// through current_setting(). Only threads changes how a query runs; the
// others are advisory, apart from memory_limit capping retained rows.
package settings

import (
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/pbnjay/memory"

	"github.com/duckling-db/duckling/go/common/dkerrors"
)

const (
	Threads           = "threads"
	MemoryLimit       = "memory_limit"
	EnableProgressBar = "enable_progress_bar"
	TempDirectory     = "temp_directory"

	// MaxThreads bounds the worker pool.
	MaxThreads = 1024
)

// Snapshot is an immutable copy of the settings taken when an execution
// starts.
type Snapshot struct {
	Threads           int
	MemoryLimit       uint64
	EnableProgressBar bool
	TempDirectory     string
}

// Defaults returns the settings of a fresh connection: one worker per CPU
// and 80% of system memory.
func Defaults() Snapshot {
	limit := memory.TotalMemory() / 10 * 8
	if limit == 0 {
		limit = 8 * humanize.GiByte
	}
	return Snapshot{
		Threads:           runtime.NumCPU(),
		MemoryLimit:       limit,
		EnableProgressBar: false,
		TempDirectory:     ".tmp",
	}
}

// Settings is the mutable, connection-scoped settings store.
type Settings struct {
	mu       sync.RWMutex
	current  Snapshot
	defaults Snapshot
}

// New returns a settings store starting from defaults.
func New(defaults Snapshot) *Settings {
	return &Settings{current: defaults, defaults: defaults}
}

// Snapshot returns the current values.
func (s *Settings) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Names returns the names of every known setting.
func Names() []string {
	names := []string{Threads, MemoryLimit, EnableProgressBar, TempDirectory}
	sort.Strings(names)
	return names
}

// Set parses value and assigns it to the named setting.
func (s *Settings) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current
	if err := apply(&next, strings.ToLower(name), value); err != nil {
		return err
	}
	s.current = next
	return nil
}

// Reset restores the named setting to its default.
func (s *Settings) Reset(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch strings.ToLower(name) {
	case Threads:
		s.current.Threads = s.defaults.Threads
	case MemoryLimit:
		s.current.MemoryLimit = s.defaults.MemoryLimit
	case EnableProgressBar:
		s.current.EnableProgressBar = s.defaults.EnableProgressBar
	case TempDirectory:
		s.current.TempDirectory = s.defaults.TempDirectory
	case "all":
		s.current = s.defaults
	default:
		return unknown(name)
	}
	return nil
}

// Get renders the named setting the way current_setting() returns it.
func (s *Settings) Get(name string) (string, error) {
	snap := s.Snapshot()
	switch strings.ToLower(name) {
	case Threads:
		return strconv.Itoa(snap.Threads), nil
	case MemoryLimit:
		return humanize.IBytes(snap.MemoryLimit), nil
	case EnableProgressBar:
		return strconv.FormatBool(snap.EnableProgressBar), nil
	case TempDirectory:
		return snap.TempDirectory, nil
	}
	return "", unknown(name)
}

func apply(snap *Snapshot, name, value string) error {
	switch name {
	case Threads:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 1 || n > MaxThreads {
			return dkerrors.DK2005(fmt.Sprintf("threads must be between 1 and %d, got %q", MaxThreads, value))
		}
		snap.Threads = n
	case MemoryLimit:
		n, err := ParseMemoryLimit(value)
		if err != nil {
			return err
		}
		snap.MemoryLimit = n
	case EnableProgressBar:
		b, ok := parseBool(value)
		if !ok {
			return dkerrors.DK2005(fmt.Sprintf("enable_progress_bar expects a boolean, got %q", value))
		}
		snap.EnableProgressBar = b
	case TempDirectory:
		snap.TempDirectory = value
	default:
		return unknown(name)
	}
	return nil
}

// ParseMemoryLimit parses a human readable size such as '5000GB' or '512MiB'.
func ParseMemoryLimit(value string) (uint64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(value))
	if err != nil || n == 0 {
		return 0, dkerrors.DK2005(fmt.Sprintf("could not parse memory limit %q", value))
	}
	return n, nil
}

func parseBool(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "on", "yes", "y":
		return true, true
	case "0", "f", "false", "off", "no", "n":
		return false, true
	}
	return false, false
}

func unknown(name string) error {
	return dkerrors.DK2005(fmt.Sprintf("unrecognized configuration parameter %q (known: %s)", name, strings.Join(Names(), ", ")))
}
