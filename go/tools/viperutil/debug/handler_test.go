// Copyright 2023 The Vitess Authors.
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
//
// Modifications Copyright 2025 Supabase, Inc.

package debug

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duckling-db/duckling/go/tools/viperutil"
)

func TestHandlerFunc(t *testing.T) {
	reg := viperutil.NewRegistry()
	threads := viperutil.Configure(reg, "threads", viperutil.Options[int]{Default: 4, FlagName: "threads"})
	viperutil.Configure(reg, "output", viperutil.Options[string]{Default: "table", Dynamic: true})

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("threads", threads.Default(), "")
	viperutil.BindFlags(fs, threads)
	require.NoError(t, fs.Parse([]string{"--threads=2"}))

	h := HandlerFunc(reg, fs)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/debug/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Flags  map[string]string `json:"command_line_flags"`
		Config map[string]any    `json:"config"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, map[string]string{"threads": "2"}, got.Flags)
	assert.EqualValues(t, 2, got.Config["threads"])
	assert.Equal(t, "table", got.Config["output"])

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/debug/config?format=text", nil))
	assert.Contains(t, rec.Body.String(), "output = table\n")

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/debug/config?format=xml", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
