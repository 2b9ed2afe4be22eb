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

// duckling runs SQL against an in-memory database from the command line.
package main

import (
	"log/slog"
	"os"

	"github.com/duckling-db/duckling/go/cmd/duckling/command"
)

func main() {
	root, dc := command.GetRootCommand()
	err := root.Execute()
	if closeErr := dc.Close(); closeErr != nil {
		slog.Error("shutdown failed", "error", closeErr)
	}
	if err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
