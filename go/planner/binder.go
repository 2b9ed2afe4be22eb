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
	"github.com/duckling-db/duckling/go/common/settings"
	"github.com/duckling-db/duckling/go/common/sqltypes"
	"github.com/duckling-db/duckling/go/engine"
)

// column is a name visible to expressions of one SELECT.
type column struct {
	table string
	name  string
	typ   sqltypes.Type
}

// binder turns parser expressions into engine expressions over the columns
// of a FROM clause.
type binder struct {
	cols     []column
	settings *settings.Settings

	// rewrite, when set, is consulted before the structural rules. It is how
	// the second stage of an aggregation maps grouped expressions and
	// aggregate calls to the columns produced by the first stage.
	rewrite func(parser.Expr) (engine.Expr, bool, error)

	// clause names the clause being bound, for error messages.
	clause string
}

func newBinder(cols []column, set *settings.Settings) *binder {
	return &binder{cols: cols, settings: set}
}

func (b *binder) resolve(ref *parser.ColumnRef) (int, error) {
	found := -1
	for i, c := range b.cols {
		if !strings.EqualFold(c.name, ref.Name) {
			continue
		}
		if ref.Table != "" && !strings.EqualFold(c.table, ref.Table) {
			continue
		}
		if found >= 0 {
			return -1, dkerrors.DK2002(fmt.Sprintf("Ambiguous reference to column name %q", ref.String()))
		}
		found = i
	}
	if found < 0 {
		if ref.Table != "" && !b.hasTable(ref.Table) {
			return -1, dkerrors.DK2002(fmt.Sprintf("Referenced table %q not found!", ref.Table))
		}
		return -1, dkerrors.DK2002(fmt.Sprintf("Referenced column %q not found in FROM clause!", ref.String()))
	}
	return found, nil
}

func (b *binder) hasTable(name string) bool {
	for _, c := range b.cols {
		if strings.EqualFold(c.table, name) {
			return true
		}
	}
	return false
}

func (b *binder) columnExpr(i int) *engine.ColumnExpr {
	return &engine.ColumnExpr{Index: i, Name: b.cols[i].name, Typ: b.cols[i].typ}
}

// expand returns the columns a star selects.
func (b *binder) expand(star *parser.Star) ([]int, error) {
	var out []int
	for i, c := range b.cols {
		if star.Table == "" || strings.EqualFold(c.table, star.Table) {
			out = append(out, i)
		}
	}
	if star.Table != "" && len(out) == 0 {
		return nil, dkerrors.DK2002(fmt.Sprintf("Referenced table %q not found!", star.Table))
	}
	return out, nil
}

func (b *binder) bindAll(exprs []parser.Expr) ([]engine.Expr, error) {
	out := make([]engine.Expr, len(exprs))
	for i, e := range exprs {
		var err error
		if out[i], err = b.bind(e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *binder) bind(e parser.Expr) (engine.Expr, error) {
	if b.rewrite != nil {
		out, ok, err := b.rewrite(e)
		if err != nil || ok {
			return out, err
		}
	}
	switch n := e.(type) {
	case *parser.ColumnRef:
		i, err := b.resolve(n)
		if err != nil {
			return nil, err
		}
		return b.columnExpr(i), nil
	case *parser.Star:
		return nil, dkerrors.DK2002("STAR expression is not supported here")
	case *parser.Literal:
		return &engine.ConstExpr{Value: n.Value}, nil
	case *parser.Cast:
		x, err := b.bind(n.Expr)
		if err != nil {
			return nil, err
		}
		return engine.NewCast(x, n.Type)
	case *parser.UnaryExpr:
		x, err := b.bind(n.Expr)
		if err != nil {
			return nil, err
		}
		return engine.NewUnary(n.Op, x)
	case *parser.BinaryExpr:
		l, err := b.bind(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := b.bind(n.Right)
		if err != nil {
			return nil, err
		}
		return engine.NewBinary(n.Op, l, r)
	case *parser.FuncCall:
		return b.bindFunc(n)
	case *parser.Case:
		return b.bindCase(n)
	case *parser.IsNull:
		x, err := b.bind(n.Expr)
		if err != nil {
			return nil, err
		}
		return engine.NewIsNull(x, n.Not)
	case *parser.InList:
		x, err := b.bind(n.Expr)
		if err != nil {
			return nil, err
		}
		list, err := b.bindAll(n.List)
		if err != nil {
			return nil, err
		}
		return engine.NewIn(x, list, n.Not)
	}
	return nil, dkerrors.DK5001(fmt.Sprintf("expression %T", e))
}

func (b *binder) bindFunc(f *parser.FuncCall) (engine.Expr, error) {
	if engine.IsAggregate(f.Name) {
		clause := b.clause
		if clause == "" {
			clause = "this clause"
		}
		return nil, dkerrors.DK2002(fmt.Sprintf("aggregate function calls cannot be used in %s", clause))
	}
	if f.Star || f.Distinct {
		return nil, dkerrors.DK2002(fmt.Sprintf("%s is not an aggregate function", f.Name))
	}
	args, err := b.bindAll(f.Args)
	if err != nil {
		return nil, err
	}
	if f.Name == "current_setting" {
		return b.currentSetting(args)
	}
	return engine.NewFunction(f.Name, args)
}

// currentSetting is folded while planning; settings changed by an earlier
// statement of the same batch are visible because batches are planned one
// statement at a time.
func (b *binder) currentSetting(args []engine.Expr) (engine.Expr, error) {
	if len(args) != 1 || !engine.IsConstant(args[0]) || args[0].Type() != sqltypes.Varchar {
		return nil, dkerrors.DK2002("current_setting requires a constant VARCHAR argument")
	}
	name := args[0].(*engine.ConstExpr).Value.Str()
	v, err := b.settings.Get(name)
	if err != nil {
		return nil, err
	}
	return &engine.ConstExpr{Value: sqltypes.NewVarchar(v)}, nil
}

func (b *binder) bindCase(c *parser.Case) (engine.Expr, error) {
	var operand, els engine.Expr
	var err error
	if c.Operand != nil {
		if operand, err = b.bind(c.Operand); err != nil {
			return nil, err
		}
	}
	whens := make([]engine.CaseWhen, len(c.Whens))
	for i, w := range c.Whens {
		if whens[i].Cond, err = b.bind(w.Cond); err != nil {
			return nil, err
		}
		if whens[i].Result, err = b.bind(w.Result); err != nil {
			return nil, err
		}
	}
	if c.Else != nil {
		if els, err = b.bind(c.Else); err != nil {
			return nil, err
		}
	}
	return engine.NewCase(operand, whens, els)
}

// constant binds an expression that must not depend on any row, such as a
// LIMIT or a table function argument.
func constant(set *settings.Settings, e parser.Expr, what string) (sqltypes.Value, error) {
	x, err := newBinder(nil, set).bind(e)
	if err != nil {
		return sqltypes.Value{}, err
	}
	k, ok := x.(*engine.ConstExpr)
	if !ok {
		return sqltypes.Value{}, dkerrors.DK2002(fmt.Sprintf("%s must be a constant", what))
	}
	return k.Value, nil
}

// hasAggregate reports whether e calls an aggregate function.
func hasAggregate(e parser.Expr) bool {
	found := false
	parser.Walk(e, func(n parser.Expr) bool {
		if f, ok := n.(*parser.FuncCall); ok && engine.IsAggregate(f.Name) {
			found = true
		}
		return !found
	})
	return found
}
