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

package sqltypes

import "fmt"

// Field describes a result column.
type Field struct {
	Name string
	Type Type
}

// Row is a single result row.
type Row []Value

// Native converts the row to Go values, see Value.Native.
func (r Row) Native() []any {
	out := make([]any, len(r))
	for i, v := range r {
		out[i] = v.Native()
	}
	return out
}

// Result represents a materialized query result.
type Result struct {
	// Fields describes the columns in the result set. It is nil for
	// statements that produce no rows (INSERT, CREATE TABLE, SET, ...).
	Fields []Field

	// RowsAffected is the number of rows affected by INSERT.
	RowsAffected uint64

	// Rows contains the actual data rows.
	Rows []Row

	// CommandTag names the statement that produced the result.
	// Examples: "SELECT 42", "INSERT 0 5", "CREATE TABLE", "SET"
	CommandTag string

	cursor int
}

// NewResult builds a row-producing result.
func NewResult(fields []Field, rows []Row) *Result {
	if fields == nil {
		fields = []Field{}
	}
	return &Result{
		Fields:     fields,
		Rows:       rows,
		CommandTag: fmt.Sprintf("SELECT %d", len(rows)),
	}
}

// NewCommandResult builds the result of a statement without output rows.
func NewCommandResult(tag string, affected uint64) *Result {
	return &Result{CommandTag: tag, RowsAffected: affected}
}

// ProducesRows reports whether the statement had row-producing semantics.
// A SELECT returning zero rows still produces rows.
func (r *Result) ProducesRows() bool {
	return r != nil && r.Fields != nil
}

// ColumnNames returns the names of the result columns.
func (r *Result) ColumnNames() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// Fetchone returns the next row as Go values, or false when exhausted.
func (r *Result) Fetchone() ([]any, bool) {
	if r.cursor >= len(r.Rows) {
		return nil, false
	}
	row := r.Rows[r.cursor]
	r.cursor++
	return row.Native(), true
}

// Fetchall returns every remaining row as Go values. A statement without
// output rows returns an empty slice.
func (r *Result) Fetchall() [][]any {
	out := make([][]any, 0, len(r.Rows)-r.cursor)
	for ; r.cursor < len(r.Rows); r.cursor++ {
		out = append(out, r.Rows[r.cursor].Native())
	}
	return out
}

// Len returns the total number of rows in the result.
func (r *Result) Len() int {
	return len(r.Rows)
}
