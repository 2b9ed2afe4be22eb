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

package engine

import (
	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// Chunk is a columnar batch of at most ChunkSize rows. Seq holds the source
// ordinal of every row and survives filtering, so sinks can restore source
// order no matter which worker produced the chunk.
type Chunk struct {
	Columns [][]sqltypes.Value
	Seq     []int64
	Len     int
}

// Row copies row i out of the chunk.
func (c *Chunk) Row(i int) sqltypes.Row {
	row := make(sqltypes.Row, len(c.Columns))
	for j, col := range c.Columns {
		row[j] = col[i]
	}
	return row
}

// chunkFromRows builds a chunk from rows[lo:hi], numbering them from lo.
func chunkFromRows(rows []sqltypes.Row, width, lo, hi int) *Chunk {
	c := &Chunk{
		Columns: make([][]sqltypes.Value, width),
		Seq:     make([]int64, hi-lo),
		Len:     hi - lo,
	}
	for j := range c.Columns {
		col := make([]sqltypes.Value, hi-lo)
		for i := lo; i < hi; i++ {
			col[i-lo] = rows[i][j]
		}
		c.Columns[j] = col
	}
	for i := range c.Seq {
		c.Seq[i] = int64(lo + i)
	}
	return c
}

// memSize approximates the bytes held by the chunk's values.
func (c *Chunk) memSize() int {
	n := 8 * c.Len
	for _, col := range c.Columns {
		for _, v := range col {
			n += v.Size()
		}
	}
	return n
}

func rowSize(r sqltypes.Row) int {
	n := 8
	for _, v := range r {
		n += v.Size()
	}
	return n
}

// filterChunk keeps the rows for which pred is true.
func filterChunk(c *Chunk, pred Expr) (*Chunk, error) {
	keep := make([]int, 0, c.Len)
	for i := range c.Len {
		v, err := pred.Eval(c, i)
		if err != nil {
			return nil, err
		}
		if !v.IsNull() && v.Bool() {
			keep = append(keep, i)
		}
	}
	if len(keep) == c.Len {
		return c, nil
	}
	out := &Chunk{
		Columns: make([][]sqltypes.Value, len(c.Columns)),
		Seq:     make([]int64, len(keep)),
		Len:     len(keep),
	}
	for j, col := range c.Columns {
		sel := make([]sqltypes.Value, len(keep))
		for k, i := range keep {
			sel[k] = col[i]
		}
		out.Columns[j] = sel
	}
	for k, i := range keep {
		out.Seq[k] = c.Seq[i]
	}
	return out, nil
}

// projectChunk evaluates exprs over every row. Bare column references reuse
// the input column.
func projectChunk(c *Chunk, exprs []Expr) (*Chunk, error) {
	out := &Chunk{Columns: make([][]sqltypes.Value, len(exprs)), Seq: c.Seq, Len: c.Len}
	for j, e := range exprs {
		if ref, ok := e.(*ColumnExpr); ok {
			out.Columns[j] = c.Columns[ref.Index]
			continue
		}
		col := make([]sqltypes.Value, c.Len)
		for i := range c.Len {
			v, err := e.Eval(c, i)
			if err != nil {
				return nil, err
			}
			col[i] = v
		}
		out.Columns[j] = col
	}
	return out, nil
}
