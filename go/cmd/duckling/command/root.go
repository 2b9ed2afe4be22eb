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

// Package command implements the duckling command line.
package command

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/duckling-db/duckling/go/duckling"
	"github.com/duckling-db/duckling/go/executor"
	"github.com/duckling-db/duckling/go/tools/event"
	"github.com/duckling-db/duckling/go/tools/logutil"
	"github.com/duckling-db/duckling/go/tools/viperutil"
)

// DucklingCommand holds the configuration and the open connection shared by
// all subcommands.
type DucklingCommand struct {
	reg           *viperutil.Registry
	threads       viperutil.Value[int]
	memoryLimit   viperutil.Value[viperutil.ByteSize]
	progressBar   viperutil.Value[bool]
	tempDirectory viperutil.Value[string]
	output        viperutil.Value[string]
	metricsAddr   viperutil.Value[string]
	vc            *viperutil.ViperConfig
	lg            *logutil.Logger

	// fs is where scripts and the shell history are read from.
	fs afero.Fs

	conn       *duckling.Conn
	metrics    *executor.Metrics
	metricsURL string
	onClose    event.ErrorHooks
	closeOnce  sync.Once
	closeErr   error
}

// GetRootCommand creates the root command with all subcommands.
func GetRootCommand() (*cobra.Command, *DucklingCommand) {
	reg := viperutil.NewRegistry()
	dc := &DucklingCommand{
		reg: reg,
		threads: viperutil.Configure(reg, "threads", viperutil.Options[int]{
			FlagName: "threads",
			EnvVars:  []string{"DUCKLING_THREADS"},
		}),
		memoryLimit: viperutil.Configure(reg, "memory-limit", viperutil.Options[viperutil.ByteSize]{
			FlagName: "memory-limit",
			EnvVars:  []string{"DUCKLING_MEMORY_LIMIT"},
		}),
		progressBar: viperutil.Configure(reg, "enable-progress-bar", viperutil.Options[bool]{
			FlagName: "enable-progress-bar",
			EnvVars:  []string{"DUCKLING_ENABLE_PROGRESS_BAR"},
		}),
		tempDirectory: viperutil.Configure(reg, "temp-directory", viperutil.Options[string]{
			FlagName: "temp-directory",
			EnvVars:  []string{"DUCKLING_TEMP_DIRECTORY"},
		}),
		output: viperutil.Configure(reg, "output", viperutil.Options[string]{
			Default:  formatTable,
			FlagName: "output",
			EnvVars:  []string{"DUCKLING_OUTPUT"},
			Dynamic:  true,
		}),
		metricsAddr: viperutil.Configure(reg, "metrics-addr", viperutil.Options[string]{
			FlagName: "metrics-addr",
			EnvVars:  []string{"DUCKLING_METRICS_ADDR"},
		}),
		vc: viperutil.NewViperConfig(reg),
		lg: logutil.New(reg),
		fs: afero.NewOsFs(),
	}

	root := &cobra.Command{
		Use:   "duckling",
		Short: "In-memory SQL engine with interruptible queries",
		Long: `duckling runs SQL against an in-memory database.

Queries run on a pool of workers and can be interrupted at any time with
Ctrl-C, which fails the running query with "Query interrupted" instead of
terminating the process.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: dc.open,
	}

	fs := root.PersistentFlags()
	fs.IntP("threads", "t", dc.threads.Default(), "Number of worker threads (0 means one per CPU)")
	var limit viperutil.ByteSize
	fs.Var(&limit, "memory-limit", "Memory limit, e.g. 4GB (default 80% of system memory)")
	fs.Bool("enable-progress-bar", dc.progressBar.Default(), "Print a progress bar for long-running queries")
	fs.String("temp-directory", dc.tempDirectory.Default(), "Directory for temporary files")
	fs.StringP("output", "o", dc.output.Default(), "Output format (table, csv, json, yaml)")
	fs.String("metrics-addr", dc.metricsAddr.Default(), "Serve Prometheus metrics on this address, e.g. localhost:9090")
	dc.vc.RegisterFlags(fs)
	dc.lg.RegisterFlags(fs)

	viperutil.BindFlags(fs,
		dc.threads,
		dc.memoryLimit,
		dc.progressBar,
		dc.tempDirectory,
		dc.output,
		dc.metricsAddr,
	)

	AddQueryCommand(root, dc)
	AddRunCommand(root, dc)
	AddShellCommand(root, dc)

	return root, dc
}

// open loads the configuration, sets up logging and connects.
func (dc *DucklingCommand) open(cmd *cobra.Command, args []string) error {
	reloaded := make(chan struct{}, 1)
	viperutil.NotifyConfigReload(dc.reg, reloaded)
	stopWatch, err := dc.vc.LoadConfig(cmd.Context(), dc.reg)
	if err != nil {
		return err
	}
	dc.onClose.Add(func() error {
		stopWatch()
		return nil
	})

	logger, err := dc.lg.Setup()
	if err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-reloaded:
				dc.lg.Refresh()
			case <-done:
				return
			}
		}
	}()
	dc.onClose.Add(func() error {
		close(done)
		return nil
	})

	dc.metrics = executor.NewMetrics()
	cfg := duckling.Config{
		Threads:           dc.threads.Get(),
		EnableProgressBar: dc.progressBar.Get(),
		TempDirectory:     dc.tempDirectory.Get(),
		Logger:            logger,
		Metrics:           dc.metrics,
		ProgressWriter:    cmd.ErrOrStderr(),
	}
	if limit := dc.memoryLimit.Get(); limit > 0 {
		cfg.MemoryLimit = strconv.FormatUint(uint64(limit), 10)
	}
	conn, err := duckling.Connect(cfg)
	if err != nil {
		return err
	}
	dc.conn = conn
	dc.onClose.Add(conn.Close)

	if addr := dc.metricsAddr.Get(); addr != "" {
		return dc.serveMetrics(cmd, addr)
	}
	return nil
}

// Close releases everything open set up. It is safe to call when the
// command never ran.
func (dc *DucklingCommand) Close() error {
	dc.closeOnce.Do(func() {
		err := dc.onClose.Fire()
		dc.closeErr = errors.Join(err, dc.lg.Close())
	})
	return dc.closeErr
}

// execute runs sql with Ctrl-C bound to the connection and prints the result.
func (dc *DucklingCommand) execute(ctx context.Context, w io.Writer, sql string) error {
	stop := duckling.InterruptOnSignal(dc.conn)
	defer stop()

	res, err := dc.conn.Execute(ctx, sql)
	if err != nil {
		return err
	}
	return writeResult(w, res, dc.output.Get())
}
