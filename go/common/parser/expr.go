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

package parser

import (
	"math"
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/duckling-db/duckling/go/common/sqltypes"
)

func convertOptionalExpr(node *pg_query.Node) (Expr, error) {
	if node == nil {
		return nil, nil
	}
	return convertExpr(node)
}

func convertExprs(nodes []*pg_query.Node) ([]Expr, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	out := make([]Expr, 0, len(nodes))
	for _, n := range nodes {
		e, err := convertExpr(n)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func convertExpr(node *pg_query.Node) (Expr, error) {
	switch n := node.GetNode().(type) {
	case *pg_query.Node_ColumnRef:
		return convertColumnRef(n.ColumnRef)
	case *pg_query.Node_AConst:
		return convertConst(n.AConst)
	case *pg_query.Node_TypeCast:
		arg, err := convertExpr(n.TypeCast.Arg)
		if err != nil {
			return nil, err
		}
		t, err := convertType(n.TypeCast.TypeName)
		if err != nil {
			return nil, err
		}
		return &Cast{Expr: arg, Type: t}, nil
	case *pg_query.Node_AExpr:
		return convertAExpr(n.AExpr)
	case *pg_query.Node_BoolExpr:
		return convertBoolExpr(n.BoolExpr)
	case *pg_query.Node_FuncCall:
		return convertFuncCall(n.FuncCall)
	case *pg_query.Node_CoalesceExpr:
		args, err := convertExprs(n.CoalesceExpr.Args)
		if err != nil {
			return nil, err
		}
		return &FuncCall{Name: "coalesce", Args: args}, nil
	case *pg_query.Node_MinMaxExpr:
		args, err := convertExprs(n.MinMaxExpr.Args)
		if err != nil {
			return nil, err
		}
		name := "least"
		if n.MinMaxExpr.Op == pg_query.MinMaxOp_IS_GREATEST {
			name = "greatest"
		}
		return &FuncCall{Name: name, Args: args}, nil
	case *pg_query.Node_NullTest:
		arg, err := convertExpr(n.NullTest.Arg)
		if err != nil {
			return nil, err
		}
		return &IsNull{Expr: arg, Not: n.NullTest.Nulltesttype == pg_query.NullTestType_IS_NOT_NULL}, nil
	case *pg_query.Node_CaseExpr:
		return convertCase(n.CaseExpr)
	case *pg_query.Node_SubLink:
		return nil, notImplemented("subqueries in expressions")
	case *pg_query.Node_ParamRef:
		return nil, notImplemented("prepared statement parameters")
	}
	return nil, notImplemented("expression %s", nodeName(node))
}

func convertColumnRef(c *pg_query.ColumnRef) (Expr, error) {
	var parts []string
	star := false
	for _, f := range c.Fields {
		switch {
		case f.GetAStar() != nil:
			star = true
		case f.GetString_() != nil:
			parts = append(parts, f.GetString_().Sval)
		}
	}
	if star {
		s := &Star{}
		if len(parts) > 0 {
			s.Table = parts[len(parts)-1]
		}
		return s, nil
	}
	switch len(parts) {
	case 1:
		return &ColumnRef{Name: parts[0]}, nil
	case 2:
		return &ColumnRef{Table: parts[0], Name: parts[1]}, nil
	case 0:
		return nil, notImplemented("empty column reference")
	}
	return nil, notImplemented("column reference %s", strings.Join(parts, "."))
}

func convertConst(c *pg_query.A_Const) (*Literal, error) {
	if c.Isnull {
		return &Literal{Value: sqltypes.NullValue()}, nil
	}
	switch v := c.Val.(type) {
	case *pg_query.A_Const_Ival:
		return &Literal{Value: sqltypes.NewInteger(v.Ival.GetIval())}, nil
	case *pg_query.A_Const_Fval:
		return &Literal{Value: numericLiteral(v.Fval.GetFval())}, nil
	case *pg_query.A_Const_Boolval:
		return &Literal{Value: sqltypes.NewBool(v.Boolval.GetBoolval())}, nil
	case *pg_query.A_Const_Sval:
		return &Literal{Value: sqltypes.NewVarchar(v.Sval.GetSval())}, nil
	}
	return nil, notImplemented("constant %T", c.Val)
}

// numericLiteral types a literal the grammar could not fit in an int4.
// Whole numbers become INTEGER or BIGINT, everything else DOUBLE.
func numericLiteral(text string) sqltypes.Value {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return sqltypes.NewInteger(int32(n))
		}
		return sqltypes.NewBigInt(n)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return sqltypes.NewVarchar(text)
	}
	return sqltypes.NewDouble(f)
}

func operatorName(nodes []*pg_query.Node) string {
	names := stringList(nodes)
	if len(names) == 0 {
		return ""
	}
	return names[len(names)-1]
}

func convertAExpr(a *pg_query.A_Expr) (Expr, error) {
	op := operatorName(a.Name)
	switch a.Kind {
	case pg_query.A_Expr_Kind_AEXPR_OP:
		right, err := convertExpr(a.Rexpr)
		if err != nil {
			return nil, err
		}
		if a.Lexpr == nil {
			if op == "+" {
				return right, nil
			}
			return &UnaryExpr{Op: op, Expr: right}, nil
		}
		left, err := convertExpr(a.Lexpr)
		if err != nil {
			return nil, err
		}
		if op == "!=" {
			op = "<>"
		}
		return &BinaryExpr{Op: op, Left: left, Right: right}, nil
	case pg_query.A_Expr_Kind_AEXPR_IN:
		left, err := convertExpr(a.Lexpr)
		if err != nil {
			return nil, err
		}
		list, err := convertExprs(a.Rexpr.GetList().GetItems())
		if err != nil {
			return nil, err
		}
		return &InList{Expr: left, List: list, Not: op == "<>"}, nil
	case pg_query.A_Expr_Kind_AEXPR_BETWEEN, pg_query.A_Expr_Kind_AEXPR_NOT_BETWEEN:
		left, err := convertExpr(a.Lexpr)
		if err != nil {
			return nil, err
		}
		bounds, err := convertExprs(a.Rexpr.GetList().GetItems())
		if err != nil {
			return nil, err
		}
		if len(bounds) != 2 {
			return nil, notImplemented("BETWEEN with %d bounds", len(bounds))
		}
		between := &BinaryExpr{
			Op:    "AND",
			Left:  &BinaryExpr{Op: ">=", Left: left, Right: bounds[0]},
			Right: &BinaryExpr{Op: "<=", Left: left, Right: bounds[1]},
		}
		if a.Kind == pg_query.A_Expr_Kind_AEXPR_NOT_BETWEEN {
			return &UnaryExpr{Op: "NOT", Expr: between}, nil
		}
		return between, nil
	}
	return nil, notImplemented("operator %s %s", strings.TrimPrefix(a.Kind.String(), "AEXPR_"), op)
}

func convertBoolExpr(b *pg_query.BoolExpr) (Expr, error) {
	args, err := convertExprs(b.Args)
	if err != nil {
		return nil, err
	}
	if b.Boolop == pg_query.BoolExprType_NOT_EXPR {
		return &UnaryExpr{Op: "NOT", Expr: args[0]}, nil
	}
	op := "AND"
	if b.Boolop == pg_query.BoolExprType_OR_EXPR {
		op = "OR"
	}
	out := args[0]
	for _, a := range args[1:] {
		out = &BinaryExpr{Op: op, Left: out, Right: a}
	}
	return out, nil
}

func convertFuncCall(fc *pg_query.FuncCall) (Expr, error) {
	switch {
	case fc.Over != nil:
		return nil, notImplemented("window functions")
	case fc.AggFilter != nil:
		return nil, notImplemented("FILTER clauses")
	case len(fc.AggOrder) > 0:
		return nil, notImplemented("ordered aggregates")
	}
	args, err := convertExprs(fc.Args)
	if err != nil {
		return nil, err
	}
	return &FuncCall{
		Name:     funcName(fc.Funcname),
		Args:     args,
		Star:     fc.AggStar,
		Distinct: fc.AggDistinct,
	}, nil
}

func convertCase(c *pg_query.CaseExpr) (Expr, error) {
	out := &Case{}
	var err error
	if out.Operand, err = convertOptionalExpr(c.Arg); err != nil {
		return nil, err
	}
	for _, node := range c.Args {
		w := node.GetCaseWhen()
		if w == nil {
			return nil, notImplemented("CASE branch %s", nodeName(node))
		}
		cond, err := convertExpr(w.Expr)
		if err != nil {
			return nil, err
		}
		res, err := convertExpr(w.Result)
		if err != nil {
			return nil, err
		}
		out.Whens = append(out.Whens, &When{Cond: cond, Result: res})
	}
	if out.Else, err = convertOptionalExpr(c.Defresult); err != nil {
		return nil, err
	}
	return out, nil
}
