// Copyright 2019 The Vitess Authors.
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

// Package event runs groups of callbacks registered by independent
// components, such as the shutdown steps of the CLI.
package event

import (
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Hooks holds a list of parameter-less functions to call whenever the set is
// triggered with Fire().
type Hooks struct {
	funcs []func()
	mu    sync.Mutex
}

// Add appends the given function to the list to be triggered.
func (h *Hooks) Add(f func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.funcs = append(h.funcs, f)
}

// Fire calls every function in parallel and waits for all of them.
// Concurrent calls to Fire() are serialized.
func (h *Hooks) Fire() {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := pool.New()
	for _, f := range h.funcs {
		p.Go(f)
	}
	p.Wait()
}

// ErrorHooks holds a list of error-returning functions to call whenever the
// set is triggered with Fire().
type ErrorHooks struct {
	funcs []func() error
	mu    sync.Mutex
}

// Add appends the given function to the list to be triggered.
func (h *ErrorHooks) Add(f func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.funcs = append(h.funcs, f)
}

// Fire calls every function in parallel, waits for all of them and returns
// their errors joined. A failing hook does not stop the others, so cleanup
// steps always all run.
func (h *ErrorHooks) Fire() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := pool.New().WithErrors()
	for _, f := range h.funcs {
		p.Go(f)
	}
	return p.Wait()
}
