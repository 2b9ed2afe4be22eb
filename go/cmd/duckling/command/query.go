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
	"github.com/spf13/cobra"
)

// AddQueryCommand adds the query subcommand to root.
func AddQueryCommand(root *cobra.Command, dc *DucklingCommand) {
	root.AddCommand(&cobra.Command{
		Use:   "query <sql>",
		Short: "Run SQL and print the result of the last statement",
		Long: `Run one or more semicolon separated statements and print the result of
the last one.

Examples:
  duckling query "select 42"

  # Configure the session, then query
  duckling query "SET threads TO 1; select count(*) from range(1000000) t(i)"

  # Press Ctrl-C to interrupt a long-running query
  duckling query "select count(*) from range(1000000000000::BIGINT) t(i)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dc.execute(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	})
}
