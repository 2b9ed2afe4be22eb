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

// Package debug serves the effective configuration over HTTP.
package debug

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/duckling-db/duckling/go/tools/viperutil"
)

type configData struct {
	File  string            `json:"file" yaml:"file"`
	Flags map[string]string `json:"command_line_flags" yaml:"command_line_flags"`
	// Config holds every static and dynamic value by key.
	Config map[string]any `json:"config" yaml:"config"`
}

// HandlerFunc renders the combined registry and the flags changed in fs.
//
//   - GET /debug/config (JSON)
//   - GET /debug/config?format=yaml
//   - GET /debug/config?format=text
func HandlerFunc(reg *viperutil.Registry, fs *pflag.FlagSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := reg.Combined()
		data := configData{
			File:   v.ConfigFileUsed(),
			Flags:  make(map[string]string),
			Config: v.AllSettings(),
		}
		if fs != nil {
			fs.VisitAll(func(f *pflag.Flag) {
				if f.Changed {
					data.Flags[f.Name] = f.Value.String()
				}
			})
		}

		switch format := strings.ToLower(r.URL.Query().Get("format")); format {
		case "", "json":
			w.Header().Set("Content-Type", "application/json")
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(data); err != nil {
				http.Error(w, fmt.Sprintf("failed to encode JSON: %v", err), http.StatusInternalServerError)
			}
		case "yaml":
			w.Header().Set("Content-Type", "application/yaml")
			if err := yaml.NewEncoder(w).Encode(data); err != nil {
				http.Error(w, fmt.Sprintf("failed to encode YAML: %v", err), http.StatusInternalServerError)
			}
		case "text":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			keys := v.AllKeys()
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "%s = %v\n", k, v.Get(k))
			}
		default:
			http.Error(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
		}
	}
}
