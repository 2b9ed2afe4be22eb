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
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/duckling-db/duckling/go/common/dkerrors"
)

type harness struct {
	root      *cobra.Command
	dc        *DucklingCommand
	configDir string
	out, err  bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	prev := slog.Default()
	root, dc := GetRootCommand()
	h := &harness{root: root, dc: dc, configDir: t.TempDir()}
	root.SetOut(&h.out)
	root.SetErr(&h.err)
	t.Cleanup(func() {
		assert.NoError(t, dc.Close())
		slog.SetDefault(prev)
	})
	return h
}

func (h *harness) run(args ...string) error {
	h.root.SetArgs(append([]string{"--config-path=" + h.configDir}, args...))
	return h.root.Execute()
}

func TestQueryOutputFormats(t *testing.T) {
	const sql = "select 1 as a, 'x' as b, 2.5 as c"
	want := document{
		Columns: []string{"a", "b", "c"},
		Types:   []string{"INTEGER", "VARCHAR", "DOUBLE"},
	}

	t.Run("csv", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.run("query", sql, "--output=csv"))
		assert.Equal(t, "a,b,c\n1,x,2.5\n", h.out.String())
	})

	t.Run("json", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.run("query", sql, "-o", "json"))
		var got document
		require.NoError(t, json.Unmarshal(h.out.Bytes(), &got))
		want := want
		want.Rows = [][]any{{float64(1), "x", 2.5}}
		assert.Equal(t, want, got)
	})

	t.Run("yaml", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.run("query", sql, "-o", "yaml"))
		var got document
		require.NoError(t, yaml.Unmarshal(h.out.Bytes(), &got))
		want := want
		want.Rows = [][]any{{1, "x", 2.5}}
		assert.Equal(t, want, got)
	})

	t.Run("table", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.run("query", sql))
		lines := strings.Split(strings.TrimSpace(h.out.String()), "\n")
		require.Len(t, lines, 6)
		assert.Regexp(t, `a\s.*b\s.*c`, lines[1])
		assert.Regexp(t, `1\s.*x\s.*2\.5`, lines[3])
		assert.Equal(t, "1 rows", lines[5])
	})
}

func TestQueryStatements(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("query", "create table t (i integer)", "-o", "csv"))
	assert.Empty(t, h.out.String(), "statements without rows print nothing")

	h = newHarness(t)
	require.NoError(t, h.run("query", "create table t (i integer); insert into t values (3), (1); select i from t order by i", "-o", "csv"))
	assert.Equal(t, "i\n1\n3\n", h.out.String())

	h = newHarness(t)
	err := h.run("query", "select nope")
	require.Error(t, err)
	assert.Equal(t, dkerrors.InvalidInput, dkerrors.CodeOf(err))

	h = newHarness(t)
	err = h.run("query", "select 1", "-o", "xml")
	require.ErrorContains(t, err, `unknown output format "xml"`)

	h = newHarness(t)
	require.Error(t, h.run("query"), "query takes exactly one argument")
}

func TestConfigSources(t *testing.T) {
	h := newHarness(t)
	config := "threads: 3\nmemory-limit: 1GiB\noutput: csv\n"
	require.NoError(t, os.WriteFile(filepath.Join(h.configDir, "duckling.yaml"), []byte(config), 0o644))
	require.NoError(t, h.run("query", "select current_setting('threads') as threads, current_setting('memory_limit') as mem"))
	assert.Equal(t, "threads,mem\n3,1.0 GiB\n", h.out.String())

	t.Setenv("DUCKLING_THREADS", "5")
	h2 := newHarness(t)
	h2.configDir = h.configDir
	require.NoError(t, h2.run("query", "select current_setting('threads') as threads"))
	assert.Equal(t, "threads\n5\n", h2.out.String(), "environment beats the config file")

	h3 := newHarness(t)
	h3.configDir = h.configDir
	require.NoError(t, h3.run("query", "select current_setting('threads') as threads", "--threads=2", "-o", "json"))
	var got document
	require.NoError(t, json.Unmarshal(h3.out.Bytes(), &got))
	assert.Equal(t, [][]any{{"2"}}, got.Rows, "flags beat everything")
}

func TestRunScript(t *testing.T) {
	h := newHarness(t)
	h.dc.fs = afero.NewMemMapFs()
	script := `
-- session setup
SET threads TO 1;
SET enable_progress_bar = true;
create table tbl (i integer);
insert into tbl values (5), (4), (3);
select i from tbl;
select count(*) as n from tbl where i > 3;
`
	require.NoError(t, afero.WriteFile(h.dc.fs, "/scripts/setup.sql", []byte(script), 0o644))
	require.NoError(t, h.run("run", "/scripts/setup.sql", "-o", "csv"))
	assert.Equal(t, "i\n5\n4\n3\nn\n2\n", h.out.String())

	h = newHarness(t)
	h.dc.fs = afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(h.dc.fs, "/bad.sql", []byte("select 1;\nselect nope;\nselect 2;"), 0o644))
	err := h.run("run", "/bad.sql", "-o", "csv")
	require.ErrorContains(t, err, "/bad.sql: statement 2")
	assert.Equal(t, "1\n1\n", h.out.String(), "the script stops at the failing statement")

	h = newHarness(t)
	h.dc.fs = afero.NewMemMapFs()
	require.ErrorContains(t, h.run("run", "/missing.sql"), "failed to read script")
}

func TestMetricsServer(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("--metrics-addr=127.0.0.1:0", "query", "select 1"))
	require.NotEmpty(t, h.dc.metricsURL)

	get := func(path string) string {
		resp, err := http.Get(h.dc.metricsURL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	assert.Contains(t, get("/metrics"), `duckling_executor_executions_total{outcome="completed"} 1`)
	assert.Contains(t, get("/debug/config?format=text"), "metrics-addr = 127.0.0.1:0")
}
