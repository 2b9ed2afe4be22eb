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

package planner

import (
	"fmt"
	"strings"

	"github.com/duckling-db/duckling/go/common/catalog"
	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/parser"
	"github.com/duckling-db/duckling/go/common/settings"
	"github.com/duckling-db/duckling/go/common/sqltypes"
	"github.com/duckling-db/duckling/go/engine"
)

// PlanStatement plans one parsed statement in scope.
func (p *Planner) PlanStatement(stmt parser.Statement, scope *Scope) (*Planned, error) {
	switch s := stmt.(type) {
	case *parser.SelectStatement:
		return p.planSelect(s, scope)
	case *parser.InsertStatement:
		return p.planInsert(s, scope)
	case *parser.CreateTableStatement:
		return p.planCreate(s, scope)
	case *parser.DropTableStatement:
		return &Planned{Primitive: &engine.DropTable{Tables: s.Tables, IfExists: s.IfExists}}, nil
	case *parser.SetStatement:
		return p.planSet(s)
	case *parser.ShowStatement:
		if _, err := p.settings.Get(s.Name); err != nil {
			return nil, err
		}
		return &Planned{
			Primitive: &engine.Show{Name: s.Name},
			Fields:    []sqltypes.Field{{Name: s.Name, Type: sqltypes.Varchar}},
		}, nil
	case *parser.ExplainStatement:
		inner, err := p.PlanStatement(s.Statement, scope)
		if err != nil {
			return nil, err
		}
		return &Planned{
			Primitive: &engine.Explain{Plan: inner.Primitive},
			Fields:    []sqltypes.Field{{Name: "physical_plan", Type: sqltypes.Varchar}},
		}, nil
	}
	return nil, dkerrors.DK5001(fmt.Sprintf("statement %s", stmt.StatementType()))
}

func (p *Planner) planInsert(s *parser.InsertStatement, scope *Scope) (*Planned, error) {
	t, err := p.catalog.Table(s.Table)
	if err != nil {
		return nil, err
	}
	if t.ReadOnly() {
		return nil, dkerrors.DK1003(t.Name())
	}
	width := len(t.Columns())
	var cols []int
	if len(s.Columns) > 0 {
		if cols, err = insertColumns(t, s.Columns); err != nil {
			return nil, err
		}
		width = len(cols)
	}
	ins := &engine.Insert{Table: t.Name(), Columns: cols}

	if s.Select != nil {
		planned, err := p.planSelect(s.Select, scope)
		if err != nil {
			return nil, err
		}
		if len(planned.Fields) != width {
			return nil, valueCountMismatch(t.Name(), width, len(planned.Fields))
		}
		ins.Input = planned.Primitive
		return &Planned{Primitive: ins}, nil
	}

	b := newBinder(nil, p.settings)
	b.clause = "VALUES"
	ins.Values = make([][]engine.Expr, len(s.Values))
	for i, row := range s.Values {
		if len(row) != width {
			return nil, valueCountMismatch(t.Name(), width, len(row))
		}
		if ins.Values[i], err = b.bindAll(row); err != nil {
			return nil, err
		}
	}
	return &Planned{Primitive: ins}, nil
}

func insertColumns(t *catalog.Table, names []string) ([]int, error) {
	tableCols := t.Columns()
	out := make([]int, len(names))
	seen := make(map[int]bool, len(names))
	for i, name := range names {
		idx := -1
		for j, c := range tableCols {
			if strings.EqualFold(c.Name, name) {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, dkerrors.DK2002(fmt.Sprintf("Table %q does not have a column with name %q", t.Name(), name))
		}
		if seen[idx] {
			return nil, dkerrors.DK2002(fmt.Sprintf("Duplicate column name %q in INSERT", name))
		}
		seen[idx] = true
		out[i] = idx
	}
	return out, nil
}

func valueCountMismatch(table string, want, got int) error {
	return dkerrors.DK2002(fmt.Sprintf("table %s has %d columns but %d values were supplied", table, want, got))
}

func (p *Planner) planCreate(s *parser.CreateTableStatement, scope *Scope) (*Planned, error) {
	create := &engine.CreateTable{Table: s.Table, IfNotExists: s.IfNotExists}
	if s.As != nil {
		planned, err := p.planSelect(s.As, scope)
		if err != nil {
			return nil, err
		}
		create.As = planned.Primitive
		return &Planned{Primitive: create}, nil
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		key := strings.ToLower(c.Name)
		if seen[key] {
			return nil, dkerrors.DK2002(fmt.Sprintf("Column with name %s already exists!", c.Name))
		}
		seen[key] = true
		create.Columns = append(create.Columns, catalog.Column{Name: c.Name, Type: c.Type})
	}
	if len(create.Columns) == 0 {
		return nil, dkerrors.DK2001("Table must have at least one column!")
	}
	return &Planned{Primitive: create}, nil
}

// planSet validates the setting name and value while planning so a bad SET
// in a batch fails before earlier statements of the batch take effect.
func (p *Planner) planSet(s *parser.SetStatement) (*Planned, error) {
	if s.Reset {
		if s.Name != "all" {
			if _, err := p.settings.Get(s.Name); err != nil {
				return nil, err
			}
		}
		return &Planned{Primitive: &engine.Set{Name: s.Name, Reset: true}}, nil
	}
	probe := settings.New(p.settings.Snapshot())
	if err := probe.Set(s.Name, s.Value); err != nil {
		return nil, err
	}
	return &Planned{Primitive: &engine.Set{Name: s.Name, Value: s.Value}}, nil
}
