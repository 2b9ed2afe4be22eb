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
	"context"
	"fmt"
	"math"

	"github.com/duckling-db/duckling/go/common/catalog"
	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// Source produces the morsels a pipeline processes.
type Source interface {
	// Fields describes the columns of every chunk.
	Fields() []sqltypes.Field

	// Open prepares a scan for one execution.
	Open(ctx context.Context, ec *ExecContext) (Scan, error)

	// Inputs returns the primitives the source reads from.
	Inputs() []Primitive

	String() string
}

// Scan hands out morsels. Morsel is called concurrently with distinct m.
type Scan interface {
	Morsels() int64
	Morsel(m int64) (*Chunk, error)
}

// RangeSource is the range(start, stop, step) table function producing a
// single BIGINT column.
type RangeSource struct {
	Start, Stop, Step int64
	Column            string
}

// NewRangeSource validates the range arguments.
func NewRangeSource(column string, start, stop, step int64) (*RangeSource, error) {
	if step == 0 {
		return nil, dkerrors.DK2002("range step cannot be 0")
	}
	s := &RangeSource{Start: start, Stop: stop, Step: step, Column: column}
	if s.count() > math.MaxInt64 {
		return nil, dkerrors.DK3002(fmt.Sprintf("range(%d, %d, %d) has too many values", start, stop, step))
	}
	return s, nil
}

func (s *RangeSource) Fields() []sqltypes.Field {
	return []sqltypes.Field{{Name: s.Column, Type: sqltypes.BigInt}}
}

// count returns the number of values in the range. The span is computed in
// uint64, where the distance between any two int64 values fits.
func (s *RangeSource) count() uint64 {
	var span, step uint64
	switch {
	case s.Step > 0 && s.Stop > s.Start:
		span, step = uint64(s.Stop)-uint64(s.Start), uint64(s.Step)
	case s.Step < 0 && s.Stop < s.Start:
		span, step = uint64(s.Start)-uint64(s.Stop), -uint64(s.Step)
	default:
		return 0
	}
	return (span-1)/step + 1
}

func (s *RangeSource) Open(context.Context, *ExecContext) (Scan, error) {
	n := s.count()
	if n > math.MaxInt64 {
		return nil, dkerrors.DK3002(fmt.Sprintf("range(%d, %d, %d) has too many values", s.Start, s.Stop, s.Step))
	}
	return &rangeScan{src: s, count: int64(n)}, nil
}

func (s *RangeSource) Inputs() []Primitive { return nil }

func (s *RangeSource) String() string {
	return fmt.Sprintf("RANGE(%d, %d, %d)", s.Start, s.Stop, s.Step)
}

type rangeScan struct {
	src   *RangeSource
	count int64
}

func (s *rangeScan) Morsels() int64 {
	n := s.count / ChunkSize
	if s.count%ChunkSize != 0 {
		n++
	}
	return n
}

func (s *rangeScan) Morsel(m int64) (*Chunk, error) {
	lo := m * ChunkSize
	n := int(min(ChunkSize, s.count-lo))
	col := make([]sqltypes.Value, n)
	seq := make([]int64, n)
	for i := range n {
		ord := lo + int64(i)
		col[i] = sqltypes.NewBigInt(s.src.Start + ord*s.src.Step)
		seq[i] = ord
	}
	return &Chunk{Columns: [][]sqltypes.Value{col}, Seq: seq, Len: n}, nil
}

// TableSource scans a snapshot of a catalog table taken when the scan opens.
type TableSource struct {
	Table  *catalog.Table
	fields []sqltypes.Field
}

// NewTableSource returns a scan of t whose columns are named by fields.
func NewTableSource(t *catalog.Table, fields []sqltypes.Field) *TableSource {
	return &TableSource{Table: t, fields: fields}
}

func (s *TableSource) Fields() []sqltypes.Field { return s.fields }

func (s *TableSource) Open(context.Context, *ExecContext) (Scan, error) {
	return &tableScan{snap: s.Table.Snapshot()}, nil
}

func (s *TableSource) Inputs() []Primitive { return nil }

func (s *TableSource) String() string {
	return fmt.Sprintf("SCAN(%s)", s.Table.Name())
}

type tableScan struct {
	snap *catalog.Snapshot
}

func (s *tableScan) Morsels() int64 {
	return int64(s.snap.Blocks())
}

func (s *tableScan) Morsel(m int64) (*Chunk, error) {
	cols := s.snap.Block(int(m))
	n := 0
	if len(cols) > 0 {
		n = len(cols[0])
	}
	seq := make([]int64, n)
	for i := range seq {
		seq[i] = m*catalog.BlockSize + int64(i)
	}
	return &Chunk{Columns: cols, Seq: seq, Len: n}, nil
}

// ResultSource runs Input when the scan opens and scans its rows. It is how
// a relation's alias, a CTE, a subquery or a grouped input is read.
type ResultSource struct {
	Input  Primitive
	Name   string
	fields []sqltypes.Field
}

// NewResultSource returns a source over input's result, exposing its
// columns as fields.
func NewResultSource(name string, input Primitive, fields []sqltypes.Field) *ResultSource {
	return &ResultSource{Input: input, Name: name, fields: fields}
}

func (s *ResultSource) Fields() []sqltypes.Field { return s.fields }

func (s *ResultSource) Open(ctx context.Context, ec *ExecContext) (Scan, error) {
	if err := ec.Check(ctx); err != nil {
		return nil, err
	}
	res, err := s.Input.Execute(ctx, ec)
	if err != nil {
		return nil, err
	}
	if !res.ProducesRows() {
		return nil, dkerrors.DK2002(fmt.Sprintf("%s does not produce rows", s.Name))
	}
	return &resultScan{rows: res.Rows, width: len(s.fields)}, nil
}

func (s *ResultSource) Inputs() []Primitive { return []Primitive{s.Input} }

func (s *ResultSource) String() string {
	if s.Name == "" {
		return "MATERIALIZE"
	}
	return fmt.Sprintf("MATERIALIZE(%s)", s.Name)
}

type resultScan struct {
	rows  []sqltypes.Row
	width int
}

func (s *resultScan) Morsels() int64 {
	return int64((len(s.rows) + ChunkSize - 1) / ChunkSize)
}

func (s *resultScan) Morsel(m int64) (*Chunk, error) {
	lo := int(m) * ChunkSize
	hi := min(lo+ChunkSize, len(s.rows))
	return chunkFromRows(s.rows, s.width, lo, hi), nil
}

// SingleRowSource produces one row without columns, the input of a SELECT
// without FROM.
type SingleRowSource struct{}

func (SingleRowSource) Fields() []sqltypes.Field { return nil }

func (SingleRowSource) Open(context.Context, *ExecContext) (Scan, error) {
	return singleRowScan{}, nil
}

func (SingleRowSource) Inputs() []Primitive { return nil }

func (SingleRowSource) String() string { return "SINGLE_ROW" }

type singleRowScan struct{}

func (singleRowScan) Morsels() int64 { return 1 }

func (singleRowScan) Morsel(int64) (*Chunk, error) {
	return &Chunk{Seq: []int64{0}, Len: 1}, nil
}
