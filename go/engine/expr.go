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
	"fmt"
	"math"
	"strings"

	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// Expr is a bound scalar expression evaluated row by row over a chunk.
type Expr interface {
	Eval(c *Chunk, row int) (sqltypes.Value, error)
	Type() sqltypes.Type
	String() string
}

// ColumnExpr reads an input column.
type ColumnExpr struct {
	Index int
	Name  string
	Typ   sqltypes.Type
}

func (e *ColumnExpr) Eval(c *Chunk, row int) (sqltypes.Value, error) {
	return c.Columns[e.Index][row], nil
}

func (e *ColumnExpr) Type() sqltypes.Type { return e.Typ }

func (e *ColumnExpr) String() string { return fmt.Sprintf("#%d", e.Index) }

// ConstExpr is a literal.
type ConstExpr struct {
	Value sqltypes.Value
}

func (e *ConstExpr) Eval(*Chunk, int) (sqltypes.Value, error) { return e.Value, nil }

func (e *ConstExpr) Type() sqltypes.Type { return e.Value.Type() }

func (e *ConstExpr) String() string { return e.Value.SQLLiteral() }

// CastExpr converts its input to To.
type CastExpr struct {
	Expr Expr
	To   sqltypes.Type
}

func (e *CastExpr) Eval(c *Chunk, row int) (sqltypes.Value, error) {
	v, err := e.Expr.Eval(c, row)
	if err != nil {
		return v, err
	}
	return v.Cast(e.To)
}

func (e *CastExpr) Type() sqltypes.Type { return e.To }

func (e *CastExpr) String() string { return fmt.Sprintf("CAST(%s AS %s)", e.Expr, e.To) }

// NewCast returns e converted to t, folding constants.
func NewCast(e Expr, t sqltypes.Type) (Expr, error) {
	if e.Type() == t {
		return e, nil
	}
	if k, ok := e.(*ConstExpr); ok {
		v, err := k.Value.Cast(t)
		if err != nil {
			return nil, err
		}
		return &ConstExpr{Value: v}, nil
	}
	return &CastExpr{Expr: e, To: t}, nil
}

func noOperator(op string, types ...sqltypes.Type) error {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return dkerrors.DK2002(fmt.Sprintf("No function matches the given name and argument types '%s(%s)'", op, strings.Join(names, ", ")))
}

func isNumericOrNull(t sqltypes.Type) bool {
	return t == sqltypes.Null || t.IsNumeric()
}

func isBoolOrNull(t sqltypes.Type) bool {
	return t == sqltypes.Null || t == sqltypes.Boolean
}

// NegExpr is unary minus.
type NegExpr struct {
	Expr Expr
}

func (e *NegExpr) Eval(c *Chunk, row int) (sqltypes.Value, error) {
	v, err := e.Expr.Eval(c, row)
	if err != nil || v.IsNull() {
		return v, err
	}
	switch v.Type() {
	case sqltypes.Integer:
		if v.Int() == math.MinInt32 {
			return v, dkerrors.DK3002(fmt.Sprintf("Overflow in negation of INTEGER (%d)!", v.Int()))
		}
		return sqltypes.NewInteger(int32(-v.Int())), nil
	case sqltypes.BigInt:
		if v.Int() == math.MinInt64 {
			return v, dkerrors.DK3002(fmt.Sprintf("Overflow in negation of BIGINT (%d)!", v.Int()))
		}
		return sqltypes.NewBigInt(-v.Int()), nil
	}
	return sqltypes.NewDouble(-v.Float()), nil
}

func (e *NegExpr) Type() sqltypes.Type { return e.Expr.Type() }

func (e *NegExpr) String() string { return "-" + e.Expr.String() }

// NotExpr is logical negation.
type NotExpr struct {
	Expr Expr
}

func (e *NotExpr) Eval(c *Chunk, row int) (sqltypes.Value, error) {
	v, err := e.Expr.Eval(c, row)
	if err != nil || v.IsNull() {
		return sqltypes.TypedNull(sqltypes.Boolean), err
	}
	return sqltypes.NewBool(!v.Bool()), nil
}

func (e *NotExpr) Type() sqltypes.Type { return sqltypes.Boolean }

func (e *NotExpr) String() string { return "(NOT " + e.Expr.String() + ")" }

// NewUnary binds a prefix operator.
func NewUnary(op string, e Expr) (Expr, error) {
	switch op {
	case "-":
		if !isNumericOrNull(e.Type()) {
			return nil, noOperator("-", e.Type())
		}
		return fold(&NegExpr{Expr: e})
	case "NOT":
		if !isBoolOrNull(e.Type()) {
			return nil, noOperator("NOT", e.Type())
		}
		return fold(&NotExpr{Expr: e})
	}
	return nil, dkerrors.DK5001("operator " + op)
}

// ArithExpr is + - * / % over numeric operands. Integer operands produce
// integer results; division truncates.
type ArithExpr struct {
	Op    string
	Left  Expr
	Right Expr
	Typ   sqltypes.Type
}

var arithNames = map[string]string{
	"+": "addition",
	"-": "subtraction",
	"*": "multiplication",
	"/": "division",
	"%": "modulo",
}

func (e *ArithExpr) Eval(c *Chunk, row int) (sqltypes.Value, error) {
	l, err := e.Left.Eval(c, row)
	if err != nil {
		return l, err
	}
	r, err := e.Right.Eval(c, row)
	if err != nil {
		return r, err
	}
	if l.IsNull() || r.IsNull() {
		return sqltypes.TypedNull(e.Typ), nil
	}
	return arith(e.Op, e.Typ, l, r)
}

func arith(op string, typ sqltypes.Type, l, r sqltypes.Value) (sqltypes.Value, error) {
	if typ == sqltypes.Double {
		a, b := l.Float(), r.Float()
		switch op {
		case "+":
			return sqltypes.NewDouble(a + b), nil
		case "-":
			return sqltypes.NewDouble(a - b), nil
		case "*":
			return sqltypes.NewDouble(a * b), nil
		case "/":
			if b == 0 {
				return sqltypes.Value{}, dkerrors.DK3003()
			}
			return sqltypes.NewDouble(a / b), nil
		case "%":
			if b == 0 {
				return sqltypes.Value{}, dkerrors.DK3003()
			}
			return sqltypes.NewDouble(math.Mod(a, b)), nil
		}
		return sqltypes.Value{}, dkerrors.DK5001("operator " + op)
	}

	a, b := l.Int(), r.Int()
	var n int64
	overflow := false
	switch op {
	case "+":
		n = a + b
		overflow = (a^n)&(b^n) < 0
	case "-":
		n = a - b
		overflow = (a^b)&(a^n) < 0
	case "*":
		n = a * b
		overflow = a != 0 && (n/a != b || (a == -1 && b == math.MinInt64))
	case "/":
		if b == 0 {
			return sqltypes.Value{}, dkerrors.DK3003()
		}
		if a == math.MinInt64 && b == -1 {
			overflow = true
		} else {
			n = a / b
		}
	case "%":
		if b == 0 {
			return sqltypes.Value{}, dkerrors.DK3003()
		}
		if b != -1 {
			n = a % b
		}
	default:
		return sqltypes.Value{}, dkerrors.DK5001("operator " + op)
	}
	if typ == sqltypes.Integer && (n < math.MinInt32 || n > math.MaxInt32) {
		overflow = true
	}
	if overflow {
		return sqltypes.Value{}, dkerrors.DK3002(fmt.Sprintf("Overflow in %s of %s (%d %s %d)!", arithNames[op], typ, a, op, b))
	}
	if typ == sqltypes.Integer {
		return sqltypes.NewInteger(int32(n)), nil
	}
	return sqltypes.NewBigInt(n), nil
}

func (e *ArithExpr) Type() sqltypes.Type { return e.Typ }

func (e *ArithExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

// ConcatExpr is the || operator.
type ConcatExpr struct {
	Left  Expr
	Right Expr
}

func (e *ConcatExpr) Eval(c *Chunk, row int) (sqltypes.Value, error) {
	l, err := e.Left.Eval(c, row)
	if err != nil {
		return l, err
	}
	r, err := e.Right.Eval(c, row)
	if err != nil {
		return r, err
	}
	if l.IsNull() || r.IsNull() {
		return sqltypes.TypedNull(sqltypes.Varchar), nil
	}
	return sqltypes.NewVarchar(l.String() + r.String()), nil
}

func (e *ConcatExpr) Type() sqltypes.Type { return sqltypes.Varchar }

func (e *ConcatExpr) String() string {
	return fmt.Sprintf("(%s || %s)", e.Left, e.Right)
}

// CompareExpr is a comparison operator.
type CompareExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

func (e *CompareExpr) Eval(c *Chunk, row int) (sqltypes.Value, error) {
	l, err := e.Left.Eval(c, row)
	if err != nil {
		return l, err
	}
	r, err := e.Right.Eval(c, row)
	if err != nil {
		return r, err
	}
	if l.IsNull() || r.IsNull() {
		return sqltypes.TypedNull(sqltypes.Boolean), nil
	}
	cmp, err := sqltypes.Compare(l, r)
	if err != nil {
		return sqltypes.Value{}, err
	}
	var b bool
	switch e.Op {
	case "=":
		b = cmp == 0
	case "<>":
		b = cmp != 0
	case "<":
		b = cmp < 0
	case "<=":
		b = cmp <= 0
	case ">":
		b = cmp > 0
	case ">=":
		b = cmp >= 0
	}
	return sqltypes.NewBool(b), nil
}

func (e *CompareExpr) Type() sqltypes.Type { return sqltypes.Boolean }

func (e *CompareExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

// LogicExpr is AND or OR with SQL three-valued logic.
type LogicExpr struct {
	Or    bool
	Left  Expr
	Right Expr
}

func (e *LogicExpr) Eval(c *Chunk, row int) (sqltypes.Value, error) {
	l, err := e.Left.Eval(c, row)
	if err != nil {
		return l, err
	}
	// FALSE decides AND, TRUE decides OR.
	if !l.IsNull() && l.Bool() == e.Or {
		return sqltypes.NewBool(e.Or), nil
	}
	r, err := e.Right.Eval(c, row)
	if err != nil {
		return r, err
	}
	if !r.IsNull() && r.Bool() == e.Or {
		return sqltypes.NewBool(e.Or), nil
	}
	if l.IsNull() || r.IsNull() {
		return sqltypes.TypedNull(sqltypes.Boolean), nil
	}
	return sqltypes.NewBool(!e.Or), nil
}

func (e *LogicExpr) Type() sqltypes.Type { return sqltypes.Boolean }

func (e *LogicExpr) String() string {
	op := "AND"
	if e.Or {
		op = "OR"
	}
	return fmt.Sprintf("(%s %s %s)", e.Left, op, e.Right)
}

func comparableTypes(a, b sqltypes.Type) bool {
	return a == sqltypes.Null || b == sqltypes.Null || a == b || (a.IsNumeric() && b.IsNumeric())
}

// coerce casts a VARCHAR literal compared against a typed expression to
// that expression's type, so that i = '5' works.
func coerce(l, r Expr) (Expr, Expr, error) {
	lt, rt := l.Type(), r.Type()
	if lt == rt {
		return l, r, nil
	}
	var err error
	if k, ok := r.(*ConstExpr); ok && rt == sqltypes.Varchar && lt != sqltypes.Null {
		r, err = NewCast(k, lt)
	} else if k, ok := l.(*ConstExpr); ok && lt == sqltypes.Varchar && rt != sqltypes.Null {
		l, err = NewCast(k, rt)
	}
	return l, r, err
}

// NewBinary binds an infix operator.
func NewBinary(op string, l, r Expr) (Expr, error) {
	switch op {
	case "+", "-", "*", "/", "%":
		l, r, err := coerce(l, r)
		if err != nil {
			return nil, err
		}
		if !isNumericOrNull(l.Type()) || !isNumericOrNull(r.Type()) {
			return nil, noOperator(op, l.Type(), r.Type())
		}
		typ := sqltypes.Promote(l.Type(), r.Type())
		if typ == sqltypes.Null {
			typ = sqltypes.Integer
		}
		return fold(&ArithExpr{Op: op, Left: l, Right: r, Typ: typ})
	case "||":
		return fold(&ConcatExpr{Left: l, Right: r})
	case "=", "<>", "<", "<=", ">", ">=":
		l, r, err := coerce(l, r)
		if err != nil {
			return nil, err
		}
		if !comparableTypes(l.Type(), r.Type()) {
			return nil, dkerrors.DK2002(fmt.Sprintf("Cannot compare values of type %s and type %s", l.Type(), r.Type()))
		}
		return fold(&CompareExpr{Op: op, Left: l, Right: r})
	case "AND", "OR":
		if !isBoolOrNull(l.Type()) || !isBoolOrNull(r.Type()) {
			return nil, noOperator(op, l.Type(), r.Type())
		}
		return fold(&LogicExpr{Or: op == "OR", Left: l, Right: r})
	}
	return nil, dkerrors.DK5001("operator " + op)
}

// IsNullExpr is IS [NOT] NULL.
type IsNullExpr struct {
	Expr Expr
	Not  bool
}

func (e *IsNullExpr) Eval(c *Chunk, row int) (sqltypes.Value, error) {
	v, err := e.Expr.Eval(c, row)
	if err != nil {
		return v, err
	}
	return sqltypes.NewBool(v.IsNull() != e.Not), nil
}

func (e *IsNullExpr) Type() sqltypes.Type { return sqltypes.Boolean }

func (e *IsNullExpr) String() string {
	if e.Not {
		return "(" + e.Expr.String() + " IS NOT NULL)"
	}
	return "(" + e.Expr.String() + " IS NULL)"
}

// NewIsNull binds IS [NOT] NULL.
func NewIsNull(e Expr, not bool) (Expr, error) {
	return fold(&IsNullExpr{Expr: e, Not: not})
}

// InExpr is [NOT] IN (list).
type InExpr struct {
	Expr Expr
	List []Expr
	Not  bool
}

func (e *InExpr) Eval(c *Chunk, row int) (sqltypes.Value, error) {
	v, err := e.Expr.Eval(c, row)
	if err != nil || v.IsNull() {
		return sqltypes.TypedNull(sqltypes.Boolean), err
	}
	sawNull := false
	for _, item := range e.List {
		w, err := item.Eval(c, row)
		if err != nil {
			return w, err
		}
		if w.IsNull() {
			sawNull = true
			continue
		}
		cmp, err := sqltypes.Compare(v, w)
		if err != nil {
			return sqltypes.Value{}, err
		}
		if cmp == 0 {
			return sqltypes.NewBool(!e.Not), nil
		}
	}
	if sawNull {
		return sqltypes.TypedNull(sqltypes.Boolean), nil
	}
	return sqltypes.NewBool(e.Not), nil
}

func (e *InExpr) Type() sqltypes.Type { return sqltypes.Boolean }

func (e *InExpr) String() string {
	items := make([]string, len(e.List))
	for i, item := range e.List {
		items[i] = item.String()
	}
	op := " IN "
	if e.Not {
		op = " NOT IN "
	}
	return "(" + e.Expr.String() + op + "(" + strings.Join(items, ", ") + "))"
}

// NewIn binds [NOT] IN (list).
func NewIn(e Expr, list []Expr, not bool) (Expr, error) {
	bound := make([]Expr, len(list))
	for i, item := range list {
		_, item, err := coerce(e, item)
		if err != nil {
			return nil, err
		}
		if !comparableTypes(e.Type(), item.Type()) {
			return nil, dkerrors.DK2002(fmt.Sprintf("Cannot compare values of type %s and type %s", e.Type(), item.Type()))
		}
		bound[i] = item
	}
	return fold(&InExpr{Expr: e, List: bound, Not: not})
}

// CaseWhen is one branch of a CaseExpr.
type CaseWhen struct {
	Cond   Expr
	Result Expr
}

// CaseExpr is a searched CASE. A simple CASE is bound as a searched one
// comparing the operand against each branch.
type CaseExpr struct {
	Whens []CaseWhen
	Else  Expr
	Typ   sqltypes.Type
}

func (e *CaseExpr) Eval(c *Chunk, row int) (sqltypes.Value, error) {
	for _, w := range e.Whens {
		cond, err := w.Cond.Eval(c, row)
		if err != nil {
			return cond, err
		}
		if !cond.IsNull() && cond.Bool() {
			v, err := w.Result.Eval(c, row)
			if err != nil {
				return v, err
			}
			return v.Cast(e.Typ)
		}
	}
	if e.Else == nil {
		return sqltypes.TypedNull(e.Typ), nil
	}
	v, err := e.Else.Eval(c, row)
	if err != nil {
		return v, err
	}
	return v.Cast(e.Typ)
}

func (e *CaseExpr) Type() sqltypes.Type { return e.Typ }

func (e *CaseExpr) String() string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, w := range e.Whens {
		fmt.Fprintf(&b, " WHEN %s THEN %s", w.Cond, w.Result)
	}
	if e.Else != nil {
		fmt.Fprintf(&b, " ELSE %s", e.Else)
	}
	b.WriteString(" END")
	return b.String()
}

// NewCase binds a CASE expression. operand may be nil.
func NewCase(operand Expr, whens []CaseWhen, els Expr) (Expr, error) {
	results := make([]sqltypes.Type, 0, len(whens)+1)
	bound := make([]CaseWhen, len(whens))
	for i, w := range whens {
		cond := w.Cond
		if operand != nil {
			var err error
			if cond, err = NewBinary("=", operand, w.Cond); err != nil {
				return nil, err
			}
		}
		if !isBoolOrNull(cond.Type()) {
			return nil, dkerrors.DK2002(fmt.Sprintf("CASE condition must be BOOLEAN, got %s", cond.Type()))
		}
		bound[i] = CaseWhen{Cond: cond, Result: w.Result}
		results = append(results, w.Result.Type())
	}
	if els != nil {
		results = append(results, els.Type())
	}
	typ, err := commonType("CASE", results)
	if err != nil {
		return nil, err
	}
	return fold(&CaseExpr{Whens: bound, Else: els, Typ: typ})
}

// commonType returns the type all of types can be cast to implicitly.
func commonType(name string, types []sqltypes.Type) (sqltypes.Type, error) {
	out := sqltypes.Null
	for _, t := range types {
		switch {
		case t == sqltypes.Null || t == out:
		case out == sqltypes.Null:
			out = t
		case out.IsNumeric() && t.IsNumeric():
			out = sqltypes.Promote(out, t)
		default:
			return sqltypes.Null, noOperator(name, types...)
		}
	}
	return out, nil
}

// IsConstant reports whether e references no input column.
func IsConstant(e Expr) bool {
	_, ok := e.(*ConstExpr)
	return ok
}

// fold evaluates e once when every operand is a constant.
func fold(e Expr) (Expr, error) {
	for _, child := range children(e) {
		if !IsConstant(child) {
			return e, nil
		}
	}
	v, err := e.Eval(&Chunk{Len: 1}, 0)
	if err != nil {
		return nil, err
	}
	return &ConstExpr{Value: v}, nil
}

func children(e Expr) []Expr {
	switch n := e.(type) {
	case *CastExpr:
		return []Expr{n.Expr}
	case *NegExpr:
		return []Expr{n.Expr}
	case *NotExpr:
		return []Expr{n.Expr}
	case *ArithExpr:
		return []Expr{n.Left, n.Right}
	case *ConcatExpr:
		return []Expr{n.Left, n.Right}
	case *CompareExpr:
		return []Expr{n.Left, n.Right}
	case *LogicExpr:
		return []Expr{n.Left, n.Right}
	case *IsNullExpr:
		return []Expr{n.Expr}
	case *InExpr:
		return append([]Expr{n.Expr}, n.List...)
	case *CaseExpr:
		out := make([]Expr, 0, 2*len(n.Whens)+1)
		for _, w := range n.Whens {
			out = append(out, w.Cond, w.Result)
		}
		if n.Else != nil {
			out = append(out, n.Else)
		}
		return out
	case *FuncExpr:
		return n.Args
	}
	return nil
}
