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
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/duckling-db/duckling/go/common/parser"
)

// AddRunCommand adds the run subcommand to root.
func AddRunCommand(root *cobra.Command, dc *DucklingCommand) {
	root.AddCommand(&cobra.Command{
		Use:   "run <file.sql>",
		Short: "Run a SQL script",
		Long: `Run every statement of a SQL script in order, printing the result of each
statement that returns rows. The script stops at the first failing
statement.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dc.runScript(cmd, args[0])
		},
	})
}

func (dc *DucklingCommand) runScript(cmd *cobra.Command, path string) error {
	data, err := afero.ReadFile(dc.fs, path)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	stmts, err := parser.Split(string(data))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for i, sql := range stmts {
		if err := dc.execute(cmd.Context(), cmd.OutOrStdout(), sql); err != nil {
			return fmt.Errorf("%s: statement %d: %w", path, i+1, err)
		}
	}
	return nil
}
