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

package duckling

import (
	"fmt"

	"github.com/duckling-db/duckling/go/common/catalog"
	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// Frame is a set of equally long, typed columns built in Go and registered
// on a connection to be queried by name.
type Frame struct {
	columns []catalog.Column
	values  [][]sqltypes.Value
	err     error
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{}
}

// Column adds a column. values must be a []int32, []int64, []int,
// []float64, []string, []bool or []any. Errors are reported when the frame
// is registered.
func (f *Frame) Column(name string, values any) *Frame {
	if f.err != nil {
		return f
	}
	col, typ, err := frameColumn(values)
	if err != nil {
		f.err = fmt.Errorf("column %s: %w", name, err)
		return f
	}
	if len(f.values) > 0 && len(col) != len(f.values[0]) {
		f.err = dkerrors.DK2002(fmt.Sprintf("column %s has %d values, expected %d", name, len(col), len(f.values[0])))
		return f
	}
	f.columns = append(f.columns, catalog.Column{Name: name, Type: typ})
	f.values = append(f.values, col)
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if len(f.values) == 0 {
		return 0
	}
	return len(f.values[0])
}

func (f *Frame) rows() ([]catalog.Column, []sqltypes.Row, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	if len(f.columns) == 0 {
		return nil, nil, dkerrors.DK2002("frame has no columns")
	}
	rows := make([]sqltypes.Row, f.Len())
	for i := range rows {
		row := make(sqltypes.Row, len(f.columns))
		for j := range f.columns {
			row[j] = f.values[j][i]
		}
		rows[i] = row
	}
	return f.columns, rows, nil
}

func frameColumn(values any) ([]sqltypes.Value, sqltypes.Type, error) {
	switch vs := values.(type) {
	case []int32:
		return convert(vs, sqltypes.Integer, sqltypes.NewInteger)
	case []int64:
		return convert(vs, sqltypes.BigInt, sqltypes.NewBigInt)
	case []int:
		return convert(vs, sqltypes.BigInt, func(v int) sqltypes.Value { return sqltypes.NewBigInt(int64(v)) })
	case []float64:
		return convert(vs, sqltypes.Double, sqltypes.NewDouble)
	case []string:
		return convert(vs, sqltypes.Varchar, sqltypes.NewVarchar)
	case []bool:
		return convert(vs, sqltypes.Boolean, sqltypes.NewBool)
	case []any:
		return anyColumn(vs)
	}
	return nil, sqltypes.Null, dkerrors.DK3001(fmt.Sprintf("%T", values), "a frame column")
}

func convert[T any](vs []T, typ sqltypes.Type, fn func(T) sqltypes.Value) ([]sqltypes.Value, sqltypes.Type, error) {
	out := make([]sqltypes.Value, len(vs))
	for i, v := range vs {
		out[i] = fn(v)
	}
	return out, typ, nil
}

// anyColumn types the column by its first non-NULL value and casts the rest.
func anyColumn(vs []any) ([]sqltypes.Value, sqltypes.Type, error) {
	out := make([]sqltypes.Value, len(vs))
	typ := sqltypes.Null
	for i, v := range vs {
		val, err := sqltypes.FromNative(v)
		if err != nil {
			return nil, sqltypes.Null, err
		}
		out[i] = val
		if typ == sqltypes.Null {
			typ = val.Type()
		}
	}
	if typ == sqltypes.Null {
		typ = sqltypes.Integer
	}
	for i, v := range out {
		var err error
		if out[i], err = v.Cast(typ); err != nil {
			return nil, sqltypes.Null, err
		}
	}
	return out, typ, nil
}
