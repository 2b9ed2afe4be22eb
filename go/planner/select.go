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

	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/parser"
	"github.com/duckling-db/duckling/go/common/sqltypes"
	"github.com/duckling-db/duckling/go/engine"
)

// target is one column of the select list. Star expansions carry the input
// column they select instead of an expression.
type target struct {
	expr parser.Expr
	col  int
	name string
}

// selectPlan holds the state of planning one SELECT.
type selectPlan struct {
	p     *Planner
	stmt  *parser.SelectStatement
	scope *Scope

	source  engine.Source
	input   *binder
	agg     *aggregation
	out     *binder
	targets []target

	// project holds the visible targets followed by hidden sort and
	// DISTINCT ON keys.
	project []engine.Expr
	fields  []sqltypes.Field
}

func (p *Planner) planSelect(stmt *parser.SelectStatement, scope *Scope) (*Planned, error) {
	scope, err := p.withCTEs(stmt.With, scope)
	if err != nil {
		return nil, err
	}
	s := &selectPlan{p: p, stmt: stmt, scope: scope}
	return s.plan()
}

func (p *Planner) withCTEs(ctes []*parser.CommonTableExpr, scope *Scope) (*Scope, error) {
	for _, cte := range ctes {
		planned, err := p.planSelect(cte.Query, scope)
		if err != nil {
			return nil, err
		}
		fields, err := renameFields(cte.Name, planned.Fields, cte.Columns)
		if err != nil {
			return nil, err
		}
		scope = scope.With(&Binding{Name: cte.Name, Plan: planned.Primitive, Fields: fields})
	}
	return scope, nil
}

func renameFields(table string, fields []sqltypes.Field, names []string) ([]sqltypes.Field, error) {
	if len(names) == 0 {
		return fields, nil
	}
	if len(names) > len(fields) {
		return nil, dkerrors.DK2002(fmt.Sprintf("table %q has %d columns available but %d columns specified", table, len(fields), len(names)))
	}
	out := make([]sqltypes.Field, len(fields))
	copy(out, fields)
	for i, n := range names {
		out[i].Name = n
	}
	return out, nil
}

func (s *selectPlan) plan() (*Planned, error) {
	cols, err := s.planFrom(s.stmt.From)
	if err != nil {
		return nil, err
	}
	s.input = newBinder(cols, s.p.settings)

	var filter engine.Expr
	if s.stmt.Where != nil {
		s.input.clause = "WHERE"
		if filter, err = s.input.bind(s.stmt.Where); err != nil {
			return nil, err
		}
		if t := filter.Type(); t != sqltypes.Boolean && t != sqltypes.Null {
			return nil, dkerrors.DK2002(fmt.Sprintf("WHERE clause must be a BOOLEAN expression, got %s", t))
		}
	}

	if s.targets, err = s.expandTargets(); err != nil {
		return nil, err
	}
	if s.aggregating() {
		s.agg = newAggregation(s.input)
		if err := s.planGroups(); err != nil {
			return nil, err
		}
		s.out = &binder{settings: s.p.settings, rewrite: s.agg.rewrite}
	} else {
		s.out = s.input
	}
	s.out.clause = "the select list"
	if err := s.bindTargets(); err != nil {
		return nil, err
	}

	sink, err := s.planSink()
	if err != nil {
		return nil, err
	}

	if s.agg == nil {
		return &Planned{
			Primitive: &engine.Pipeline{Source: s.source, Filter: filter, Project: s.project, Fields: s.fields, Sink: sink},
			Fields:    s.fields,
		}, nil
	}

	var having engine.Expr
	if s.stmt.Having != nil {
		s.out.clause = "HAVING"
		if having, err = s.out.bind(s.stmt.Having); err != nil {
			return nil, err
		}
	}
	// The first stage is built last: binding the select list, ORDER BY and
	// HAVING is what discovers the aggregates it computes.
	first := s.agg.pipeline(s.source, filter)
	return &Planned{
		Primitive: &engine.Pipeline{
			Source:  engine.NewResultSource("aggregate", first, first.Fields),
			Filter:  having,
			Project: s.project,
			Fields:  s.fields,
			Sink:    sink,
		},
		Fields: s.fields,
	}, nil
}

func (s *selectPlan) aggregating() bool {
	if len(s.stmt.GroupBy) > 0 || s.stmt.Having != nil {
		return true
	}
	for _, t := range s.targets {
		if t.expr != nil && hasAggregate(t.expr) {
			return true
		}
	}
	for _, o := range s.stmt.OrderBy {
		if hasAggregate(o.Expr) {
			return true
		}
	}
	return false
}

// planFrom sets the source of the select and returns the columns it makes
// visible.
func (s *selectPlan) planFrom(ref parser.TableRef) ([]column, error) {
	var fields []sqltypes.Field
	var alias *parser.Alias
	switch r := ref.(type) {
	case nil:
		s.source = engine.SingleRowSource{}
		return nil, nil
	case *parser.TableName:
		alias = r.Alias
		if b, ok := s.scope.Lookup(r.Name); ok {
			if b.Fields == nil {
				return nil, dkerrors.DK2002(fmt.Sprintf("relation %q does not produce rows", b.Name))
			}
			fields = b.Fields
			s.source = engine.NewResultSource(b.Name, b.Plan, b.Fields)
			break
		}
		t, err := s.p.catalog.Table(r.Name)
		if err != nil {
			return nil, err
		}
		for _, c := range t.Columns() {
			fields = append(fields, sqltypes.Field{Name: c.Name, Type: c.Type})
		}
		s.source = engine.NewTableSource(t, fields)
	case *parser.TableFunction:
		alias = r.Alias
		src, err := s.tableFunction(r)
		if err != nil {
			return nil, err
		}
		fields = src.Fields()
		s.source = src
	case *parser.Subquery:
		alias = r.Alias
		planned, err := s.p.planSelect(r.Select, s.scope)
		if err != nil {
			return nil, err
		}
		fields = planned.Fields
		s.source = engine.NewResultSource(r.AliasName(), planned.Primitive, planned.Fields)
	default:
		return nil, dkerrors.DK5001(fmt.Sprintf("FROM item %T", ref))
	}

	var names []string
	if alias != nil {
		names = alias.Columns
	}
	fields, err := renameFields(ref.AliasName(), fields, names)
	if err != nil {
		return nil, err
	}
	cols := make([]column, len(fields))
	for i, f := range fields {
		cols[i] = column{table: ref.AliasName(), name: f.Name, typ: f.Type}
	}
	return cols, nil
}

func (s *selectPlan) tableFunction(f *parser.TableFunction) (*engine.RangeSource, error) {
	if f.Name != "range" && f.Name != "generate_series" {
		return nil, dkerrors.DK2002(fmt.Sprintf("Table Function with name %s does not exist!", f.Name))
	}
	if len(f.Args) < 1 || len(f.Args) > 3 {
		return nil, dkerrors.DK2002(fmt.Sprintf("%s takes between 1 and 3 arguments, got %d", f.Name, len(f.Args)))
	}
	vals := make([]int64, len(f.Args))
	for i, a := range f.Args {
		v, err := constant(s.p.settings, a, f.Name+" argument")
		if err != nil {
			return nil, err
		}
		if v.IsNull() {
			return nil, dkerrors.DK2002(fmt.Sprintf("%s arguments cannot be NULL", f.Name))
		}
		if v, err = v.Cast(sqltypes.BigInt); err != nil {
			return nil, err
		}
		vals[i] = v.Int()
	}
	var start, stop, step int64 = 0, 0, 1
	switch len(vals) {
	case 1:
		stop = vals[0]
	case 2:
		start, stop = vals[0], vals[1]
	case 3:
		start, stop, step = vals[0], vals[1], vals[2]
	}
	// generate_series includes its stop value.
	if f.Name == "generate_series" {
		switch {
		case step > 0:
			stop++
		case step < 0:
			stop--
		}
	}
	return engine.NewRangeSource(f.Name, start, stop, step)
}

func (s *selectPlan) expandTargets() ([]target, error) {
	var out []target
	for _, t := range s.stmt.Targets {
		if star, ok := t.Expr.(*parser.Star); ok {
			idx, err := s.input.expand(star)
			if err != nil {
				return nil, err
			}
			for _, i := range idx {
				out = append(out, target{col: i, name: s.input.cols[i].name})
			}
			continue
		}
		name := t.Alias
		if name == "" {
			if ref, ok := t.Expr.(*parser.ColumnRef); ok {
				name = ref.Name
			} else {
				name = t.Expr.String()
			}
		}
		out = append(out, target{expr: t.Expr, col: -1, name: name})
	}
	return out, nil
}

func (s *selectPlan) planGroups() error {
	s.input.clause = "GROUP BY"
	for _, g := range s.stmt.GroupBy {
		name := g.String()
		if lit, ok := g.(*parser.Literal); ok && lit.Value.Type().IsInteger() {
			n := lit.Value.Int()
			if n < 1 || n > int64(len(s.targets)) {
				return dkerrors.DK2002(fmt.Sprintf("GROUP BY term out of range - should be between 1 and %d", len(s.targets)))
			}
			t := s.targets[n-1]
			if t.expr == nil {
				s.agg.addGroup(s.input.columnExpr(t.col), t.name)
				continue
			}
			g, name = t.expr, t.name
		} else if ref, ok := g.(*parser.ColumnRef); ok && ref.Table == "" {
			// Input columns win over select list aliases.
			if _, err := s.input.resolve(ref); err != nil {
				for _, t := range s.targets {
					if t.expr != nil && strings.EqualFold(t.name, ref.Name) {
						g = t.expr
						break
					}
				}
			} else {
				name = ref.Name
			}
		}
		if hasAggregate(g) {
			return dkerrors.DK2002("GROUP BY clause cannot contain aggregates!")
		}
		x, err := s.input.bind(g)
		if err != nil {
			return err
		}
		s.agg.addGroup(x, name)
	}
	return nil
}

func (s *selectPlan) bindTargets() error {
	s.project = make([]engine.Expr, len(s.targets))
	s.fields = make([]sqltypes.Field, len(s.targets))
	for i, t := range s.targets {
		var x engine.Expr
		var err error
		switch {
		case t.expr != nil:
			x, err = s.out.bind(t.expr)
		case s.agg != nil:
			x, err = s.agg.column(t.col)
		default:
			x = s.input.columnExpr(t.col)
		}
		if err != nil {
			return err
		}
		s.project[i] = x
		s.fields[i] = sqltypes.Field{Name: t.name, Type: x.Type()}
	}
	return nil
}

// output returns the project column holding e, appending a hidden column
// when allowed and no visible target matches.
func (s *selectPlan) output(e parser.Expr, clause string, hidden bool) (int, error) {
	visible := len(s.targets)
	if lit, ok := e.(*parser.Literal); ok && lit.Value.Type().IsInteger() {
		n := lit.Value.Int()
		if n < 1 || n > int64(visible) {
			return -1, dkerrors.DK2002(fmt.Sprintf("%s term out of range - should be between 1 and %d", clause, visible))
		}
		return int(n - 1), nil
	}
	if ref, ok := e.(*parser.ColumnRef); ok && ref.Table == "" {
		for i, t := range s.targets {
			if strings.EqualFold(t.name, ref.Name) {
				return i, nil
			}
		}
	}
	s.out.clause = clause
	x, err := s.out.bind(e)
	if err != nil {
		return -1, err
	}
	key := x.String()
	for i, p := range s.project {
		if p.String() == key {
			return i, nil
		}
	}
	if !hidden {
		return -1, dkerrors.DK2002(fmt.Sprintf("for SELECT DISTINCT, %s expressions must appear in select list", clause))
	}
	s.project = append(s.project, x)
	return len(s.project) - 1, nil
}

func (s *selectPlan) planSink() (engine.SinkSpec, error) {
	plainDistinct := s.stmt.Distinct && len(s.stmt.DistinctOn) == 0
	keys := make([]engine.SortKey, len(s.stmt.OrderBy))
	for i, o := range s.stmt.OrderBy {
		idx, err := s.output(o.Expr, "ORDER BY", !plainDistinct)
		if err != nil {
			return nil, err
		}
		nullsFirst := o.Desc
		if o.NullsFirst != nil {
			nullsFirst = *o.NullsFirst
		}
		keys[i] = engine.SortKey{Index: idx, Desc: o.Desc, NullsFirst: nullsFirst}
	}
	bounds, err := s.bounds()
	if err != nil {
		return nil, err
	}

	switch {
	case plainDistinct:
		on := make([]int, len(s.targets))
		for i := range on {
			on[i] = i
		}
		return &engine.DistinctSpec{On: on, Order: keys, Bounds: bounds}, nil
	case len(s.stmt.DistinctOn) > 0:
		on := make([]int, len(s.stmt.DistinctOn))
		for i, e := range s.stmt.DistinctOn {
			if on[i], err = s.output(e, "DISTINCT ON", true); err != nil {
				return nil, err
			}
		}
		return &engine.DistinctSpec{On: on, Order: keys, Bounds: bounds}, nil
	case len(keys) > 0:
		return &engine.SortSpec{Keys: keys, Bounds: bounds}, nil
	}
	return &engine.CollectSpec{Bounds: bounds}, nil
}

func (s *selectPlan) bounds() (engine.Bounds, error) {
	b := engine.NoBounds
	if s.stmt.Limit != nil {
		n, err := s.bound(s.stmt.Limit, "LIMIT")
		if err != nil {
			return b, err
		}
		b.Limit = n
	}
	if s.stmt.Offset != nil {
		n, err := s.bound(s.stmt.Offset, "OFFSET")
		if err != nil {
			return b, err
		}
		b.Offset = max(n, 0)
	}
	return b, nil
}

// bound evaluates a LIMIT or OFFSET. NULL means no bound and is returned as
// -1; integral floats such as 100000.0 are accepted.
func (s *selectPlan) bound(e parser.Expr, clause string) (int64, error) {
	v, err := constant(s.p.settings, e, clause)
	if err != nil {
		return -1, err
	}
	if v.IsNull() {
		return -1, nil
	}
	if v, err = v.Cast(sqltypes.BigInt); err != nil {
		return -1, err
	}
	if v.Int() < 0 {
		return -1, dkerrors.DK2002(fmt.Sprintf("%s cannot be negative", clause))
	}
	return v.Int(), nil
}
