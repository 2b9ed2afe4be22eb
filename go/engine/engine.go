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

// Package engine contains the physical query execution primitives. A plan
// is a tree of primitives; row-producing work runs in pipelines whose
// morsels are spread over a pool of worker goroutines that poll the
// execution's cancellation token between every step.
package engine

import (
	"context"
	"log/slog"

	"github.com/duckling-db/duckling/go/common/cancel"
	"github.com/duckling-db/duckling/go/common/catalog"
	"github.com/duckling-db/duckling/go/common/settings"
	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// ChunkSize is the number of rows in a morsel.
const ChunkSize = catalog.BlockSize

// Primitive is the building block of an execution plan.
type Primitive interface {
	// Execute runs the primitive to completion. Row-producing primitives
	// return a result with Fields set; others return a command result.
	Execute(ctx context.Context, ec *ExecContext) (*sqltypes.Result, error)

	// Inputs returns the primitives this one consumes, for EXPLAIN.
	Inputs() []Primitive

	// String returns a one-line description of the primitive.
	String() string
}

// ExecContext carries the per-execution resources shared by all primitives
// of a plan. It is created when the execution starts and dropped when it
// returns.
type ExecContext struct {
	Token    *cancel.Token
	Threads  int
	Catalog  *catalog.Catalog
	Settings *settings.Settings
	Memory   *MemoryAccountant
	Progress *Progress
	Logger   *slog.Logger
}

// NewExecContext builds an ExecContext from the connection settings as they
// are when the execution starts.
func NewExecContext(token *cancel.Token, cat *catalog.Catalog, set *settings.Settings, logger *slog.Logger) *ExecContext {
	snap := set.Snapshot()
	return &ExecContext{
		Token:    token,
		Threads:  max(snap.Threads, 1),
		Catalog:  cat,
		Settings: set,
		Memory:   NewMemoryAccountant(snap.MemoryLimit),
		Progress: &Progress{},
		Logger:   logger,
	}
}

// Check is the checkpoint every primitive calls between units of work.
func (ec *ExecContext) Check(ctx context.Context) error {
	return ec.Token.Check(ctx)
}
