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
	"unicode/utf8"

	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/sqltypes"
)

type scalarFunc struct {
	minArgs int
	maxArgs int // -1 for variadic
	// strict functions return NULL when any argument is NULL.
	strict  bool
	returns func(args []sqltypes.Type) (sqltypes.Type, error)
	eval    func(typ sqltypes.Type, args []sqltypes.Value) (sqltypes.Value, error)
}

var scalarFuncs = map[string]*scalarFunc{
	"floor":    {minArgs: 1, maxArgs: 1, strict: true, returns: sameNumeric("floor"), eval: roundWith(math.Floor)},
	"ceil":     {minArgs: 1, maxArgs: 1, strict: true, returns: sameNumeric("ceil"), eval: roundWith(math.Ceil)},
	"ceiling":  {minArgs: 1, maxArgs: 1, strict: true, returns: sameNumeric("ceiling"), eval: roundWith(math.Ceil)},
	"abs":      {minArgs: 1, maxArgs: 1, strict: true, returns: sameNumeric("abs"), eval: evalAbs},
	"round":    {minArgs: 1, maxArgs: 2, strict: true, returns: sameNumeric("round"), eval: evalRound},
	"sqrt":     {minArgs: 1, maxArgs: 1, strict: true, returns: double("sqrt"), eval: evalSqrt},
	"power":    {minArgs: 2, maxArgs: 2, strict: true, returns: double("power"), eval: evalPower},
	"pow":      {minArgs: 2, maxArgs: 2, strict: true, returns: double("pow"), eval: evalPower},
	"mod":      {minArgs: 2, maxArgs: 2, strict: true, returns: promoted("mod"), eval: evalMod},
	"lower":    {minArgs: 1, maxArgs: 1, strict: true, returns: varchar("lower"), eval: stringWith(strings.ToLower)},
	"upper":    {minArgs: 1, maxArgs: 1, strict: true, returns: varchar("upper"), eval: stringWith(strings.ToUpper)},
	"length":   {minArgs: 1, maxArgs: 1, strict: true, returns: lengthType, eval: evalLength},
	"concat":   {minArgs: 1, maxArgs: -1, returns: concatType, eval: evalConcat},
	"coalesce": {minArgs: 1, maxArgs: -1, returns: common("coalesce"), eval: evalCoalesce},
	"greatest": {minArgs: 1, maxArgs: -1, returns: common("greatest"), eval: extremum(1)},
	"least":    {minArgs: 1, maxArgs: -1, returns: common("least"), eval: extremum(-1)},
}

// IsScalarFunction reports whether name is a known scalar function.
func IsScalarFunction(name string) bool {
	_, ok := scalarFuncs[name]
	return ok
}

// FuncExpr is a scalar function call.
type FuncExpr struct {
	Name string
	Args []Expr
	Typ  sqltypes.Type
	fn   *scalarFunc
}

// NewFunction binds a scalar function call.
func NewFunction(name string, args []Expr) (Expr, error) {
	fn, ok := scalarFuncs[name]
	if !ok {
		return nil, dkerrors.DK2002(fmt.Sprintf("Scalar Function with name %s does not exist!", name))
	}
	types := make([]sqltypes.Type, len(args))
	for i, a := range args {
		types[i] = a.Type()
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, noOperator(name, types...)
	}
	typ, err := fn.returns(types)
	if err != nil {
		return nil, err
	}
	return fold(&FuncExpr{Name: name, Args: args, Typ: typ, fn: fn})
}

func (e *FuncExpr) Eval(c *Chunk, row int) (sqltypes.Value, error) {
	var buf [4]sqltypes.Value
	vals := buf[:0]
	for _, a := range e.Args {
		v, err := a.Eval(c, row)
		if err != nil {
			return v, err
		}
		if e.fn.strict && v.IsNull() {
			return sqltypes.TypedNull(e.Typ), nil
		}
		vals = append(vals, v)
	}
	return e.fn.eval(e.Typ, vals)
}

func (e *FuncExpr) Type() sqltypes.Type { return e.Typ }

func (e *FuncExpr) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Name + "(" + strings.Join(args, ", ") + ")"
}

func sameNumeric(name string) func([]sqltypes.Type) (sqltypes.Type, error) {
	return func(args []sqltypes.Type) (sqltypes.Type, error) {
		for _, t := range args {
			if !isNumericOrNull(t) {
				return sqltypes.Null, noOperator(name, args...)
			}
		}
		if args[0] == sqltypes.Null {
			return sqltypes.Double, nil
		}
		return args[0], nil
	}
}

func double(name string) func([]sqltypes.Type) (sqltypes.Type, error) {
	return func(args []sqltypes.Type) (sqltypes.Type, error) {
		for _, t := range args {
			if !isNumericOrNull(t) {
				return sqltypes.Null, noOperator(name, args...)
			}
		}
		return sqltypes.Double, nil
	}
}

func promoted(name string) func([]sqltypes.Type) (sqltypes.Type, error) {
	return func(args []sqltypes.Type) (sqltypes.Type, error) {
		if !isNumericOrNull(args[0]) || !isNumericOrNull(args[1]) {
			return sqltypes.Null, noOperator(name, args...)
		}
		if t := sqltypes.Promote(args[0], args[1]); t != sqltypes.Null {
			return t, nil
		}
		return sqltypes.Integer, nil
	}
}

func varchar(name string) func([]sqltypes.Type) (sqltypes.Type, error) {
	return func(args []sqltypes.Type) (sqltypes.Type, error) {
		if args[0] != sqltypes.Varchar && args[0] != sqltypes.Null {
			return sqltypes.Null, noOperator(name, args...)
		}
		return sqltypes.Varchar, nil
	}
}

func common(name string) func([]sqltypes.Type) (sqltypes.Type, error) {
	return func(args []sqltypes.Type) (sqltypes.Type, error) {
		return commonType(name, args)
	}
}

func lengthType(args []sqltypes.Type) (sqltypes.Type, error) {
	if _, err := varchar("length")(args); err != nil {
		return sqltypes.Null, err
	}
	return sqltypes.BigInt, nil
}

func concatType([]sqltypes.Type) (sqltypes.Type, error) {
	return sqltypes.Varchar, nil
}

func roundWith(f func(float64) float64) func(sqltypes.Type, []sqltypes.Value) (sqltypes.Value, error) {
	return func(typ sqltypes.Type, args []sqltypes.Value) (sqltypes.Value, error) {
		if typ != sqltypes.Double {
			return args[0], nil
		}
		return sqltypes.NewDouble(f(args[0].Float())), nil
	}
}

func evalAbs(typ sqltypes.Type, args []sqltypes.Value) (sqltypes.Value, error) {
	v := args[0]
	switch typ {
	case sqltypes.Double:
		return sqltypes.NewDouble(math.Abs(v.Float())), nil
	case sqltypes.Integer, sqltypes.BigInt:
		if v.Int() >= 0 {
			return v, nil
		}
		return (&NegExpr{Expr: &ConstExpr{Value: v}}).Eval(nil, 0)
	}
	return v, nil
}

func evalRound(typ sqltypes.Type, args []sqltypes.Value) (sqltypes.Value, error) {
	if typ != sqltypes.Double {
		return args[0], nil
	}
	digits := 0.0
	if len(args) == 2 {
		digits = float64(args[1].Int())
	}
	scale := math.Pow(10, digits)
	return sqltypes.NewDouble(math.Round(args[0].Float()*scale) / scale), nil
}

func evalSqrt(_ sqltypes.Type, args []sqltypes.Value) (sqltypes.Value, error) {
	f := args[0].Float()
	if f < 0 {
		return sqltypes.Value{}, dkerrors.DK3002("cannot take square root of a negative number")
	}
	return sqltypes.NewDouble(math.Sqrt(f)), nil
}

func evalPower(_ sqltypes.Type, args []sqltypes.Value) (sqltypes.Value, error) {
	return sqltypes.NewDouble(math.Pow(args[0].Float(), args[1].Float())), nil
}

func evalMod(typ sqltypes.Type, args []sqltypes.Value) (sqltypes.Value, error) {
	return arith("%", typ, args[0], args[1])
}

func stringWith(f func(string) string) func(sqltypes.Type, []sqltypes.Value) (sqltypes.Value, error) {
	return func(_ sqltypes.Type, args []sqltypes.Value) (sqltypes.Value, error) {
		return sqltypes.NewVarchar(f(args[0].Str())), nil
	}
}

func evalLength(_ sqltypes.Type, args []sqltypes.Value) (sqltypes.Value, error) {
	return sqltypes.NewBigInt(int64(utf8.RuneCountInString(args[0].Str()))), nil
}

func evalConcat(_ sqltypes.Type, args []sqltypes.Value) (sqltypes.Value, error) {
	var b strings.Builder
	for _, v := range args {
		if !v.IsNull() {
			b.WriteString(v.String())
		}
	}
	return sqltypes.NewVarchar(b.String()), nil
}

func evalCoalesce(typ sqltypes.Type, args []sqltypes.Value) (sqltypes.Value, error) {
	for _, v := range args {
		if !v.IsNull() {
			return v.Cast(typ)
		}
	}
	return sqltypes.TypedNull(typ), nil
}

// extremum returns greatest (sign 1) or least (sign -1), ignoring NULLs.
func extremum(sign int) func(sqltypes.Type, []sqltypes.Value) (sqltypes.Value, error) {
	return func(typ sqltypes.Type, args []sqltypes.Value) (sqltypes.Value, error) {
		var best sqltypes.Value
		found := false
		for _, v := range args {
			if v.IsNull() {
				continue
			}
			if !found {
				best, found = v, true
				continue
			}
			cmp, err := sqltypes.Compare(v, best)
			if err != nil {
				return sqltypes.Value{}, err
			}
			if cmp*sign > 0 {
				best = v
			}
		}
		if !found {
			return sqltypes.TypedNull(typ), nil
		}
		return best.Cast(typ)
	}
}
