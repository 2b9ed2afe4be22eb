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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/duckling-db/duckling/go/duckling"
)

const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var formats = []string{formatTable, formatCSV, formatJSON, formatYAML}

func parseFormat(s string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(s))
	for _, known := range formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (options: %s)", s, strings.Join(formats, ", "))
}

// document is the json and yaml form of a result.
type document struct {
	Columns []string `json:"columns" yaml:"columns"`
	Types   []string `json:"types" yaml:"types"`
	Rows    [][]any  `json:"rows" yaml:"rows"`
}

// writeResult prints res in the given format. Statements without output rows
// print nothing.
func writeResult(w io.Writer, res *duckling.Result, format string) error {
	f, err := parseFormat(format)
	if err != nil {
		return err
	}
	if !res.ProducesRows() {
		return nil
	}

	switch f {
	case formatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(res.ColumnNames()); err != nil {
			return err
		}
		for _, row := range res.Rows {
			record := make([]string, len(row))
			for i, v := range row {
				if !v.IsNull() {
					record[i] = v.String()
				}
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()

	case formatJSON, formatYAML:
		doc := document{
			Columns: res.ColumnNames(),
			Types:   make([]string, len(res.Fields)),
			Rows:    make([][]any, len(res.Rows)),
		}
		for i, fld := range res.Fields {
			doc.Types[i] = fld.Type.String()
		}
		for i, row := range res.Rows {
			doc.Rows[i] = row.Native()
		}
		if f == formatYAML {
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(doc); err != nil {
				return err
			}
			return enc.Close()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	rows := make([][]string, len(res.Rows))
	for i, row := range res.Rows {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = v.String()
		}
	}
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(res.ColumnNames()...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row != table.HeaderRow && res.Fields[col].Type.IsNumeric() {
				return cell.Align(lipgloss.Right)
			}
			return cell
		})
	_, err = fmt.Fprintf(w, "%s\n%d rows\n", t.Render(), len(res.Rows))
	return err
}
