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
	"strings"

	"github.com/duckling-db/duckling/go/common/catalog"
	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// Insert appends rows to a base table. Rows come either from constant
// VALUES lists or from the result of Input.
type Insert struct {
	Table string
	// Columns maps each supplied value to a table column. Nil means every
	// column in table order.
	Columns []int
	Values  [][]Expr
	Input   Primitive
}

func (p *Insert) Execute(ctx context.Context, ec *ExecContext) (*sqltypes.Result, error) {
	t, err := ec.Catalog.Table(p.Table)
	if err != nil {
		return nil, err
	}
	var supplied []sqltypes.Row
	if p.Input != nil {
		res, err := p.Input.Execute(ctx, ec)
		if err != nil {
			return nil, err
		}
		supplied = res.Rows
	} else {
		single := &Chunk{Len: 1}
		for _, exprs := range p.Values {
			row := make(sqltypes.Row, len(exprs))
			for i, e := range exprs {
				if row[i], err = e.Eval(single, 0); err != nil {
					return nil, err
				}
			}
			supplied = append(supplied, row)
		}
	}

	width := len(t.Columns())
	rows := make([]sqltypes.Row, len(supplied))
	for i, in := range supplied {
		if p.Columns == nil {
			rows[i] = in
			continue
		}
		if len(in) != len(p.Columns) {
			return nil, dkerrors.DK2002(fmt.Sprintf("Column name/value mismatch for insert on %s: expected %d columns but %d values were supplied", t.Name(), len(p.Columns), len(in)))
		}
		row := make(sqltypes.Row, width)
		for j, col := range p.Columns {
			row[col] = in[j]
		}
		rows[i] = row
	}
	// Nothing is appended once the execution has been interrupted.
	if err := ec.Check(ctx); err != nil {
		return nil, err
	}
	if err := t.Append(rows); err != nil {
		return nil, err
	}
	return sqltypes.NewCommandResult(fmt.Sprintf("INSERT 0 %d", len(rows)), uint64(len(rows))), nil
}

func (p *Insert) Inputs() []Primitive {
	if p.Input == nil {
		return nil
	}
	return []Primitive{p.Input}
}

func (p *Insert) String() string {
	if p.Input != nil {
		return fmt.Sprintf("INSERT(%s)", p.Table)
	}
	return fmt.Sprintf("INSERT(%s, values=%d)", p.Table, len(p.Values))
}

// CreateTable creates a base table, filling it from As when set.
type CreateTable struct {
	Table       string
	Columns     []catalog.Column
	IfNotExists bool
	As          Primitive
}

func (p *CreateTable) Execute(ctx context.Context, ec *ExecContext) (*sqltypes.Result, error) {
	if p.As == nil {
		if _, err := ec.Catalog.CreateTable(p.Table, p.Columns, p.IfNotExists); err != nil {
			return nil, err
		}
		return sqltypes.NewCommandResult("CREATE TABLE", 0), nil
	}
	if _, err := ec.Catalog.Table(p.Table); err == nil {
		if p.IfNotExists {
			return sqltypes.NewCommandResult("CREATE TABLE", 0), nil
		}
		return nil, dkerrors.DK1002(p.Table)
	}
	res, err := p.As.Execute(ctx, ec)
	if err != nil {
		return nil, err
	}
	cols := make([]catalog.Column, len(res.Fields))
	for i, f := range res.Fields {
		typ := f.Type
		if typ == sqltypes.Null {
			typ = sqltypes.Integer
		}
		cols[i] = catalog.Column{Name: f.Name, Type: typ}
	}
	if err := ec.Check(ctx); err != nil {
		return nil, err
	}
	t, err := ec.Catalog.CreateTable(p.Table, cols, false)
	if err != nil {
		return nil, err
	}
	if err := t.Append(res.Rows); err != nil {
		return nil, err
	}
	return sqltypes.NewCommandResult(fmt.Sprintf("CREATE TABLE %d", len(res.Rows)), uint64(len(res.Rows))), nil
}

func (p *CreateTable) Inputs() []Primitive {
	if p.As == nil {
		return nil
	}
	return []Primitive{p.As}
}

func (p *CreateTable) String() string {
	return fmt.Sprintf("CREATE_TABLE(%s)", p.Table)
}

// DropTable removes base tables.
type DropTable struct {
	Tables   []string
	IfExists bool
}

func (p *DropTable) Execute(ctx context.Context, ec *ExecContext) (*sqltypes.Result, error) {
	for _, name := range p.Tables {
		if err := ec.Catalog.DropTable(name, p.IfExists); err != nil {
			return nil, err
		}
	}
	return sqltypes.NewCommandResult("DROP TABLE", 0), nil
}

func (p *DropTable) Inputs() []Primitive { return nil }

func (p *DropTable) String() string {
	return fmt.Sprintf("DROP_TABLE(%s)", strings.Join(p.Tables, ", "))
}

// Set assigns or resets a connection setting.
type Set struct {
	Name  string
	Value string
	Reset bool
}

func (p *Set) Execute(_ context.Context, ec *ExecContext) (*sqltypes.Result, error) {
	if p.Reset {
		if err := ec.Settings.Reset(p.Name); err != nil {
			return nil, err
		}
		return sqltypes.NewCommandResult("RESET", 0), nil
	}
	if err := ec.Settings.Set(p.Name, p.Value); err != nil {
		return nil, err
	}
	return sqltypes.NewCommandResult("SET", 0), nil
}

func (p *Set) Inputs() []Primitive { return nil }

func (p *Set) String() string {
	if p.Reset {
		return fmt.Sprintf("RESET(%s)", p.Name)
	}
	return fmt.Sprintf("SET(%s=%s)", p.Name, p.Value)
}

// Show returns the current value of a setting.
type Show struct {
	Name string
}

func (p *Show) Execute(_ context.Context, ec *ExecContext) (*sqltypes.Result, error) {
	v, err := ec.Settings.Get(p.Name)
	if err != nil {
		return nil, err
	}
	return sqltypes.NewResult(
		[]sqltypes.Field{{Name: p.Name, Type: sqltypes.Varchar}},
		[]sqltypes.Row{{sqltypes.NewVarchar(v)}},
	), nil
}

func (p *Show) Inputs() []Primitive { return nil }

func (p *Show) String() string {
	return fmt.Sprintf("SHOW(%s)", p.Name)
}

// Explain returns the plan of Plan as rows without running it.
type Explain struct {
	Plan Primitive
}

func (p *Explain) Execute(context.Context, *ExecContext) (*sqltypes.Result, error) {
	lines := strings.Split(Describe(p.Plan), "\n")
	rows := make([]sqltypes.Row, len(lines))
	for i, l := range lines {
		rows[i] = sqltypes.Row{sqltypes.NewVarchar(l)}
	}
	return sqltypes.NewResult([]sqltypes.Field{{Name: "physical_plan", Type: sqltypes.Varchar}}, rows), nil
}

func (p *Explain) Inputs() []Primitive { return nil }

func (p *Explain) String() string {
	return "EXPLAIN"
}
