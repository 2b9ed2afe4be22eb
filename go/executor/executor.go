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

// Package executor runs statements and relations for a connection. Each run
// is an Execution that moves through Planning and Running to a terminal
// state, with its own cancellation token reachable through Interrupt while
// it is active.
package executor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/duckling-db/duckling/go/common/catalog"
	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/parser"
	"github.com/duckling-db/duckling/go/common/settings"
	"github.com/duckling-db/duckling/go/common/sqltypes"
	"github.com/duckling-db/duckling/go/engine"
	"github.com/duckling-db/duckling/go/planner"
	"github.com/duckling-db/duckling/go/relation"
)

const (
	progressDelay    = 2 * time.Second
	progressInterval = 100 * time.Millisecond
)

// Config holds the dependencies of an Executor.
type Config struct {
	Catalog  *catalog.Catalog
	Settings *settings.Settings
	Logger   *slog.Logger

	// Metrics is optional.
	Metrics *Metrics

	// ProgressWriter receives the progress bar when enable_progress_bar is
	// set. Nil disables rendering.
	ProgressWriter io.Writer
}

// Executor runs one execution at a time.
type Executor struct {
	catalog  *catalog.Catalog
	settings *settings.Settings
	planner  *planner.Planner
	metrics  *Metrics
	progress io.Writer
	logger   *slog.Logger

	// serial admits one execution at a time.
	serial sync.Mutex
	active atomic.Pointer[Execution]
}

// New creates an executor.
func New(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "executor")
	return &Executor{
		catalog:  cfg.Catalog,
		settings: cfg.Settings,
		planner:  planner.NewPlanner(cfg.Catalog, cfg.Settings, logger),
		metrics:  cfg.Metrics,
		progress: cfg.ProgressWriter,
		logger:   logger,
	}
}

// Active returns the execution in progress, or nil.
func (x *Executor) Active() *Execution {
	return x.active.Load()
}

// Interrupt sets the token of the active execution. With no active
// execution it does nothing and returns false; nothing carries over to the
// next execution.
func (x *Executor) Interrupt() bool {
	exec := x.active.Load()
	if exec == nil {
		return false
	}
	ok := exec.Interrupt()
	if ok {
		x.logger.Info("execution interrupted", "execution_id", exec.ID)
	}
	return ok
}

// ExecuteSQL runs every statement of sql in order and returns the result of
// the last one. The whole batch is parsed before anything runs; each
// statement is planned right before it executes, so it sees the tables and
// settings left by the statements before it.
func (x *Executor) ExecuteSQL(ctx context.Context, sql string) (*sqltypes.Result, error) {
	var stmts []parser.Statement
	return x.run(ctx, sql,
		func() (err error) {
			stmts, err = x.planner.Parse(sql)
			return err
		},
		func(ctx context.Context, exec *Execution, progress *engine.Progress) (*sqltypes.Result, error) {
			var res *sqltypes.Result
			for _, stmt := range stmts {
				ec := x.execContext(exec, progress)
				if err := ec.Check(ctx); err != nil {
					return nil, err
				}
				planned, err := x.planner.PlanStatement(stmt, nil)
				if err != nil {
					return nil, err
				}
				if res, err = engine.NewPlan(sql, planned.Primitive).Execute(ctx, ec); err != nil {
					return nil, err
				}
			}
			return res, nil
		})
}

// ExecuteRelation plans and runs a relation graph.
func (x *Executor) ExecuteRelation(ctx context.Context, n *relation.Node) (*sqltypes.Result, error) {
	var plan *engine.Plan
	return x.run(ctx, n.String(),
		func() error {
			planned, err := x.planner.PlanRelation(n)
			if err != nil {
				return err
			}
			plan = engine.NewPlan(n.String(), planned.Primitive)
			return nil
		},
		func(ctx context.Context, exec *Execution, progress *engine.Progress) (*sqltypes.Result, error) {
			return plan.Execute(ctx, x.execContext(exec, progress))
		})
}

// Explain returns the physical plan of a relation without running it.
func (x *Executor) Explain(n *relation.Node) (string, error) {
	planned, err := x.planner.PlanRelation(n)
	if err != nil {
		return "", err
	}
	return engine.Describe(planned.Primitive), nil
}

func (x *Executor) execContext(exec *Execution, progress *engine.Progress) *engine.ExecContext {
	ec := engine.NewExecContext(exec.token, x.catalog, x.settings, x.logger.With("execution_id", exec.ID))
	ec.Progress = progress
	return ec
}

// run drives one execution through its states.
func (x *Executor) run(
	ctx context.Context,
	query string,
	plan func() error,
	execute func(ctx context.Context, exec *Execution, progress *engine.Progress) (*sqltypes.Result, error),
) (*sqltypes.Result, error) {
	x.serial.Lock()
	defer x.serial.Unlock()

	exec := newExecution(query)
	x.active.Store(exec)
	defer x.active.Store(nil)
	stopWatch := exec.token.Watch(ctx)
	defer stopWatch()

	logger := x.logger.With("execution_id", exec.ID)
	logger.Debug("execution started", "query", query)
	x.metrics.started()

	exec.advance(Planning)
	if err := plan(); err != nil {
		return nil, x.finish(exec, logger, err)
	}

	exec.advance(Running)
	progress := &engine.Progress{}
	if x.progress != nil && x.settings.Snapshot().EnableProgressBar {
		stop := progress.Render(x.progress, progressDelay, progressInterval)
		defer stop()
	}
	res, err := execute(ctx, exec, progress)
	if err != nil {
		return nil, x.finish(exec, logger, err)
	}
	x.finish(exec, logger, nil)
	return res, nil
}

// finish records the terminal state and returns the error the caller sees.
// Interruptions always surface as dkerrors.ErrInterrupted.
func (x *Executor) finish(exec *Execution, logger *slog.Logger, err error) error {
	took := time.Since(exec.Started)
	latency := time.Duration(-1)
	state := Completed
	switch {
	case err == nil:
	case dkerrors.IsInterrupted(err):
		state = Interrupted
		if at := exec.token.InterruptedAt(); !at.IsZero() {
			latency = time.Since(at)
		}
		err = dkerrors.ErrInterrupted
	default:
		state = Failed
	}
	exec.advance(state)
	x.metrics.finished(state, took, latency)
	if err != nil {
		logger.Debug("execution finished", "state", state.String(), "duration", took, "error", err)
	} else {
		logger.Debug("execution finished", "state", state.String(), "duration", took)
	}
	return err
}
