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
	"io"
	"testing"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// script replays canned input lines.
type script struct {
	lines   []string
	prompts []string
	history []string
}

func (s *script) Prompt(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	if line == "^C" {
		return "", liner.ErrPromptAborted
	}
	return line, nil
}

func (s *script) AppendHistory(item string) {
	s.history = append(s.history, item)
}

func openHarness(t *testing.T) *harness {
	h := newHarness(t)
	h.root.SetContext(context.Background())
	require.NoError(t, h.root.PersistentFlags().Set("config-path", h.configDir))
	require.NoError(t, h.dc.open(h.root, nil))
	return h
}

func TestShell(t *testing.T) {
	h := openHarness(t)
	in := &script{lines: []string{
		"",
		"create table t (i integer);",
		"insert into t",
		"  values (1), (2);",
		".mode csv",
		"select i",
		"^C",
		"select i from t",
		"order by i desc;",
		"select nope;",
		".mode",
		".bogus",
		".exit",
		"select 'never';",
	}}

	require.NoError(t, h.dc.repl(context.Background(), in, &h.out, &h.err))
	assert.Equal(t, "i\n2\n1\ncsv\n", h.out.String())
	assert.Contains(t, h.err.String(), `Error: DK2002`)
	assert.Contains(t, h.err.String(), "unknown command .bogus")
	assert.Equal(t, []string{"select 'never';"}, in.lines, ".exit stops the shell")

	assert.Equal(t, []string{
		"create table t (i integer);",
		"insert into t\n  values (1), (2);",
		".mode csv",
		"select i from t\norder by i desc;",
		"select nope;",
		".mode",
		".bogus",
		".exit",
	}, in.history)
	assert.Equal(t, promptContinue, in.prompts[3], "continuation prompt inside a statement")
	assert.Equal(t, promptStart, in.prompts[7], "Ctrl-C clears the pending statement")
}

func TestShellEOF(t *testing.T) {
	h := openHarness(t)
	in := &script{lines: []string{".mode json", ".settings"}}
	require.NoError(t, h.dc.repl(context.Background(), in, &h.out, &h.err))
	assert.Contains(t, h.out.String(), "threads = ")
	assert.Equal(t, "json", h.dc.output.Get())

	in = &script{lines: []string{".mode xml"}}
	require.NoError(t, h.dc.repl(context.Background(), in, &h.out, &h.err))
	assert.Contains(t, h.err.String(), `unknown output format "xml"`)
	assert.Equal(t, "json", h.dc.output.Get())
}
