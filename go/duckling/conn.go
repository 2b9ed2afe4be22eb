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

// Package duckling is the client API of the duckling SQL engine: connections,
// lazily evaluated relations, registered in-memory frames and interrupts.
//
//	conn, _ := duckling.Connect(duckling.Config{Threads: 4})
//	rel, _ := conn.SQL("select i from range(1000000) tbl(i)").Query("rel", "select * from rel limit 10")
//	rows, err := rel.Fetchall(ctx)
package duckling

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/duckling-db/duckling/go/common/catalog"
	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/settings"
	"github.com/duckling-db/duckling/go/common/sqltypes"
	"github.com/duckling-db/duckling/go/executor"
	"github.com/duckling-db/duckling/go/relation"
)

// Result is a materialized query result.
type Result = sqltypes.Result

// Config configures a connection. The zero Config uses one worker per CPU
// and 80% of system memory.
type Config struct {
	Threads           int
	MemoryLimit       string
	EnableProgressBar bool
	TempDirectory     string

	Logger *slog.Logger

	// Metrics, when set, records the outcome of every execution.
	Metrics *executor.Metrics

	// ProgressWriter receives the progress bar of long queries when
	// enable_progress_bar is on.
	ProgressWriter io.Writer
}

func (c Config) settings() (settings.Snapshot, error) {
	snap := settings.Defaults()
	if c.Threads > 0 {
		snap.Threads = min(c.Threads, settings.MaxThreads)
	}
	if c.MemoryLimit != "" {
		n, err := settings.ParseMemoryLimit(c.MemoryLimit)
		if err != nil {
			return snap, err
		}
		snap.MemoryLimit = n
	}
	snap.EnableProgressBar = c.EnableProgressBar
	if c.TempDirectory != "" {
		snap.TempDirectory = c.TempDirectory
	}
	return snap, nil
}

// Conn is a connection to its own in-memory database. It runs one execution
// at a time; concurrent calls wait for each other.
type Conn struct {
	catalog  *catalog.Catalog
	settings *settings.Settings
	exec     *executor.Executor
	logger   *slog.Logger
	closed   atomic.Bool
}

// Connect opens a connection to a new, empty database.
func Connect(cfg Config) (*Conn, error) {
	snap, err := cfg.settings()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cat := catalog.New()
	set := settings.New(snap)
	conn := &Conn{
		catalog:  cat,
		settings: set,
		logger:   logger.With("component", "conn"),
		exec: executor.New(executor.Config{
			Catalog:        cat,
			Settings:       set,
			Logger:         logger,
			Metrics:        cfg.Metrics,
			ProgressWriter: cfg.ProgressWriter,
		}),
	}
	conn.logger.Debug("connection opened", "threads", snap.Threads, "memory_limit", snap.MemoryLimit)
	return conn, nil
}

var (
	defaultOnce sync.Once
	defaultConn *Conn
)

// DefaultConnection returns the process-wide connection, opening it on
// first use.
func DefaultConnection() *Conn {
	defaultOnce.Do(func() {
		var err error
		// The zero Config has nothing to validate.
		if defaultConn, err = Connect(Config{ProgressWriter: os.Stderr}); err != nil {
			panic(err)
		}
	})
	return defaultConn
}

func (c *Conn) check() error {
	if c.closed.Load() {
		return dkerrors.DK2006()
	}
	return nil
}

// Execute runs one or more semicolon separated statements and returns the
// result of the last one.
func (c *Conn) Execute(ctx context.Context, sql string) (*Result, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.exec.ExecuteSQL(ctx, sql)
}

// SQL returns a relation defined by sql. Nothing is parsed or run until the
// relation is executed.
func (c *Conn) SQL(sql string) *Relation {
	return &Relation{conn: c, node: relation.FromSQL(sql)}
}

// Table returns a relation reading the named table or frame. The table must
// exist now; rows inserted later are seen by later executions.
func (c *Conn) Table(name string) (*Relation, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	t, err := c.catalog.Table(name)
	if err != nil {
		return nil, err
	}
	return &Relation{conn: c, node: relation.FromTable(t.Name())}, nil
}

// RegisterFrame makes f queryable under name, replacing any frame already
// registered with that name.
func (c *Conn) RegisterFrame(name string, f *Frame) error {
	if err := c.check(); err != nil {
		return err
	}
	cols, rows, err := f.rows()
	if err != nil {
		return err
	}
	return c.catalog.RegisterFrame(name, cols, rows)
}

// Unregister removes a registered frame.
func (c *Conn) Unregister(name string) error {
	if err := c.check(); err != nil {
		return err
	}
	return c.catalog.Unregister(name)
}

// Interrupt aborts the execution currently running on the connection, which
// then fails with "Query interrupted". It returns false if nothing was
// running.
func (c *Conn) Interrupt() bool {
	return c.exec.Interrupt()
}

// Settings returns the current session settings.
func (c *Conn) Settings() settings.Snapshot {
	return c.settings.Snapshot()
}

// Close interrupts any running execution and releases the connection.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.exec.Interrupt()
	c.logger.Debug("connection closed")
	return nil
}
