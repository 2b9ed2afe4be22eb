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

	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/parser"
	"github.com/duckling-db/duckling/go/common/sqltypes"
	"github.com/duckling-db/duckling/go/engine"
)

// aggregation binds the expressions of a grouped SELECT. Grouping and
// aggregate arguments are evaluated by a first pipeline over the FROM
// clause whose hash aggregate emits one row per group: the group keys
// followed by one column per aggregate. Everything else is bound against
// those rows.
type aggregation struct {
	input *binder

	groups     []engine.Expr
	groupKeys  []string
	groupNames []string

	aggs     []engine.Aggregate
	aggKeys  []string
	aggNames []string
	args     []engine.Expr
}

func newAggregation(input *binder) *aggregation {
	return &aggregation{input: input}
}

func (a *aggregation) addGroup(x engine.Expr, name string) {
	key := x.String()
	for _, k := range a.groupKeys {
		if k == key {
			return
		}
	}
	a.groups = append(a.groups, x)
	a.groupKeys = append(a.groupKeys, key)
	a.groupNames = append(a.groupNames, name)
}

// grouped maps an expression over the input columns to the group column
// holding the same value.
func (a *aggregation) grouped(x engine.Expr) (engine.Expr, bool) {
	if engine.IsConstant(x) {
		return x, true
	}
	key := x.String()
	for i, k := range a.groupKeys {
		if k == key {
			return &engine.ColumnExpr{Index: i, Name: a.groupNames[i], Typ: x.Type()}, true
		}
	}
	return nil, false
}

// column binds the i-th input column, as selected by a star.
func (a *aggregation) column(i int) (engine.Expr, error) {
	if x, ok := a.grouped(a.input.columnExpr(i)); ok {
		return x, nil
	}
	return nil, notGrouped(a.input.cols[i].name)
}

func notGrouped(name string) error {
	return dkerrors.DK2002(fmt.Sprintf("column %q must appear in the GROUP BY clause or must be part of an aggregate function", name))
}

func (a *aggregation) rewrite(e parser.Expr) (engine.Expr, bool, error) {
	if f, ok := e.(*parser.FuncCall); ok && engine.IsAggregate(f.Name) {
		x, err := a.aggregate(f)
		return x, true, err
	}
	if hasAggregate(e) {
		return nil, false, nil
	}
	x, err := a.input.bind(e)
	if err != nil {
		return nil, true, err
	}
	if g, ok := a.grouped(x); ok {
		return g, true, nil
	}
	if ref, ok := e.(*parser.ColumnRef); ok {
		return nil, true, notGrouped(ref.String())
	}
	return nil, false, nil
}

func (a *aggregation) aggregate(f *parser.FuncCall) (engine.Expr, error) {
	var arg engine.Expr
	argType := sqltypes.Null
	switch {
	case f.Star:
		if f.Name != "count" {
			return nil, dkerrors.DK2002(fmt.Sprintf("%s(*) is not supported", f.Name))
		}
	case len(f.Args) != 1:
		return nil, dkerrors.DK2002(fmt.Sprintf("aggregate function %s takes exactly one argument", f.Name))
	default:
		if hasAggregate(f.Args[0]) {
			return nil, dkerrors.DK2002("aggregate function calls cannot be nested")
		}
		var err error
		if arg, err = a.input.bind(f.Args[0]); err != nil {
			return nil, err
		}
		argType = arg.Type()
	}
	typ, err := engine.AggregateType(f.Name, argType)
	if err != nil {
		return nil, err
	}

	key := f.Name + "(*)"
	if arg != nil {
		key = fmt.Sprintf("%s(%t, %s)", f.Name, f.Distinct, arg)
	}
	idx := -1
	for i, k := range a.aggKeys {
		if k == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		agg := engine.Aggregate{Name: f.Name, Arg: -1, Distinct: f.Distinct, Typ: typ}
		if arg != nil {
			a.args = append(a.args, arg)
			agg.Arg = len(a.groups) + len(a.args) - 1
		}
		idx = len(a.aggs)
		a.aggs = append(a.aggs, agg)
		a.aggKeys = append(a.aggKeys, key)
		a.aggNames = append(a.aggNames, f.String())
	}
	return &engine.ColumnExpr{Index: len(a.groups) + idx, Name: a.aggNames[idx], Typ: typ}, nil
}

// fields describes the rows of the first stage.
func (a *aggregation) fields() []sqltypes.Field {
	out := make([]sqltypes.Field, 0, len(a.groups)+len(a.aggs))
	for i, g := range a.groups {
		out = append(out, sqltypes.Field{Name: a.groupNames[i], Type: g.Type()})
	}
	for i, agg := range a.aggs {
		out = append(out, sqltypes.Field{Name: a.aggNames[i], Type: agg.Typ})
	}
	return out
}

// pipeline returns the first stage: FROM and WHERE feeding a hash aggregate.
func (a *aggregation) pipeline(src engine.Source, filter engine.Expr) *engine.Pipeline {
	project := make([]engine.Expr, 0, len(a.groups)+len(a.args))
	project = append(project, a.groups...)
	project = append(project, a.args...)
	return &engine.Pipeline{
		Source:  src,
		Filter:  filter,
		Project: project,
		Fields:  a.fields(),
		Sink:    &engine.AggregateSpec{Groups: len(a.groups), Aggs: a.aggs},
	}
}
