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

package catalog

import (
	"fmt"
	"sync"

	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// BlockSize is the number of rows stored per block. Scans hand out one block
// per morsel, so it is also the engine's batch size.
const BlockSize = 2048

// Column is a table column definition.
type Column struct {
	Name string
	Type sqltypes.Type
}

type block struct {
	columns [][]sqltypes.Value
}

// Table is an in-memory, append-only table. Appends and snapshots may run
// concurrently; a snapshot never observes rows appended after it was taken.
type Table struct {
	name     string
	columns  []Column
	readOnly bool

	mu     sync.RWMutex
	blocks []*block
	rows   int
}

// NewTable returns an empty table. Read-only tables back registered frames.
func NewTable(name string, columns []Column, readOnly bool) *Table {
	return &Table{
		name:     name,
		columns:  append([]Column(nil), columns...),
		readOnly: readOnly,
	}
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Columns returns the table's column definitions.
func (t *Table) Columns() []Column {
	return t.columns
}

// ReadOnly reports whether the table is a registered frame.
func (t *Table) ReadOnly() bool {
	return t.readOnly
}

// RowCount returns the current number of rows.
func (t *Table) RowCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows
}

// Append casts rows to the table's column types and appends them. Either
// every row is appended or none is.
func (t *Table) Append(rows []sqltypes.Row) error {
	if t.readOnly {
		return dkerrors.DK1003(t.name)
	}
	return t.load(rows)
}

func (t *Table) load(rows []sqltypes.Row) error {
	casted := make([]sqltypes.Row, len(rows))
	for i, row := range rows {
		if len(row) != len(t.columns) {
			return dkerrors.DK2002(fmt.Sprintf("table %s has %d columns but %d values were supplied", t.name, len(t.columns), len(row)))
		}
		out := make(sqltypes.Row, len(row))
		for c, v := range row {
			cv, err := v.Cast(t.columns[c].Type)
			if err != nil {
				return err
			}
			out[c] = cv
		}
		casted[i] = out
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, row := range casted {
		b := t.tail()
		for c, v := range row {
			b.columns[c] = append(b.columns[c], v)
		}
		t.rows++
	}
	return nil
}

// tail returns a block with room for one more row. Callers hold t.mu.
func (t *Table) tail() *block {
	if n := len(t.blocks); n > 0 {
		last := t.blocks[n-1]
		if len(t.columns) == 0 || len(last.columns[0]) < BlockSize {
			return last
		}
	}
	b := &block{columns: make([][]sqltypes.Value, len(t.columns))}
	for c := range b.columns {
		b.columns[c] = make([]sqltypes.Value, 0, BlockSize)
	}
	t.blocks = append(t.blocks, b)
	return b
}

// Snapshot is a consistent, read-only view of a table's rows.
type Snapshot struct {
	blocks [][][]sqltypes.Value
	rows   int
}

// Snapshot captures the rows present now. Later appends write past the
// captured slice lengths, so the view stays stable without copying values.
func (t *Table) Snapshot() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := &Snapshot{blocks: make([][][]sqltypes.Value, len(t.blocks)), rows: t.rows}
	for i, b := range t.blocks {
		cols := make([][]sqltypes.Value, len(b.columns))
		for c, col := range b.columns {
			cols[c] = col[:len(col):len(col)]
		}
		s.blocks[i] = cols
	}
	return s
}

// Blocks returns the number of blocks in the snapshot.
func (s *Snapshot) Blocks() int {
	return len(s.blocks)
}

// Rows returns the number of rows in the snapshot.
func (s *Snapshot) Rows() int {
	return s.rows
}

// Block returns the columns of block i. The slices must not be modified.
func (s *Snapshot) Block(i int) [][]sqltypes.Value {
	return s.blocks[i]
}
