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

package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const (
	promptStart    = "D "
	promptContinue = "· "
)

const shellHelp = `.exit, .quit       Exit the shell
.help              Show this message
.mode [FORMAT]     Show or set the output format (table, csv, json, yaml)
.settings          Show the session settings

Statements end with a semicolon and may span lines. Ctrl-C interrupts the
running query, or clears the current input at the prompt.
`

// prompter reads lines with editing and history.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// AddShellCommand adds the shell subcommand to root.
func AddShellCommand(root *cobra.Command, dc *DucklingCommand) {
	root.AddCommand(&cobra.Command{
		Use:   "shell",
		Short: "Start an interactive SQL shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)
			line.SetMultiLineMode(true)

			history := historyFile()
			dc.readHistory(line, history)
			defer dc.writeHistory(line, history)

			fmt.Fprintln(cmd.OutOrStdout(), `Enter ".help" for usage hints.`)
			return dc.repl(cmd.Context(), line, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	})
}

func historyFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "duckling", "history")
}

func (dc *DucklingCommand) readHistory(line *liner.State, path string) {
	if path == "" {
		return
	}
	f, err := dc.fs.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.ReadHistory(f)
}

func (dc *DucklingCommand) writeHistory(line *liner.State, path string) {
	if path == "" {
		return
	}
	if err := dc.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	f, err := dc.fs.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}

// repl reads statements until EOF or .exit. Errors from statements are
// printed and the shell keeps going.
func (dc *DucklingCommand) repl(ctx context.Context, p prompter, out, errw io.Writer) error {
	var buf strings.Builder
	for {
		prompt := promptStart
		if buf.Len() > 0 {
			prompt = promptContinue
		}
		line, err := p.Prompt(prompt)
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			buf.Reset()
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		trimmed := strings.TrimSpace(line)
		if buf.Len() == 0 {
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, ".") {
				p.AppendHistory(trimmed)
				if exit := dc.dotCommand(trimmed, out, errw); exit {
					return nil
				}
				continue
			}
		}

		buf.WriteString(line)
		buf.WriteByte('\n')
		sql := strings.TrimSpace(buf.String())
		if !strings.HasSuffix(sql, ";") {
			continue
		}
		buf.Reset()
		p.AppendHistory(sql)

		if err := dc.execute(ctx, out, sql); err != nil {
			fmt.Fprintf(errw, "Error: %v\n", err)
		}
	}
}

func (dc *DucklingCommand) dotCommand(line string, out, errw io.Writer) (exit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".exit", ".quit":
		return true
	case ".help":
		fmt.Fprint(out, shellHelp)
	case ".mode":
		if len(fields) == 1 {
			fmt.Fprintln(out, dc.output.Get())
			return false
		}
		f, err := parseFormat(fields[1])
		if err != nil {
			fmt.Fprintf(errw, "Error: %v\n", err)
			return false
		}
		dc.output.Set(f)
	case ".settings":
		s := dc.conn.Settings()
		fmt.Fprintf(out, "threads = %d\nmemory_limit = %s\nenable_progress_bar = %t\ntemp_directory = %s\n",
			s.Threads, humanize.IBytes(s.MemoryLimit), s.EnableProgressBar, s.TempDirectory)
	default:
		fmt.Fprintf(errw, "Error: unknown command %s, enter .help for usage hints\n", fields[0])
	}
	return false
}
