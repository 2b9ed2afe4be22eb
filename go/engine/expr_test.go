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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/sqltypes"
)

func constant(v sqltypes.Value) Expr {
	return &ConstExpr{Value: v}
}

func foldedValue(t *testing.T, e Expr) sqltypes.Value {
	t.Helper()
	k, ok := e.(*ConstExpr)
	require.True(t, ok, "expected %s to fold to a constant", e)
	return k.Value
}

func TestArithmetic(t *testing.T) {
	cases := []struct {
		op   string
		l, r sqltypes.Value
		want sqltypes.Value
	}{
		{"+", sqltypes.NewInteger(2), sqltypes.NewInteger(3), sqltypes.NewInteger(5)},
		{"/", sqltypes.NewInteger(7), sqltypes.NewInteger(2), sqltypes.NewInteger(3)},
		{"/", sqltypes.NewInteger(-7), sqltypes.NewInteger(2), sqltypes.NewInteger(-3)},
		{"%", sqltypes.NewBigInt(-7), sqltypes.NewInteger(3), sqltypes.NewBigInt(-1)},
		{"*", sqltypes.NewInteger(4), sqltypes.NewDouble(0.5), sqltypes.NewDouble(2)},
		{"-", sqltypes.NewInteger(1), sqltypes.NullValue(), sqltypes.TypedNull(sqltypes.Integer)},
		{"+", sqltypes.NewInteger(1), sqltypes.NewVarchar("2"), sqltypes.NewInteger(3)},
	}
	for _, tc := range cases {
		e, err := NewBinary(tc.op, constant(tc.l), constant(tc.r))
		require.NoError(t, err)
		assert.Equal(t, tc.want, foldedValue(t, e), "%s %s %s", tc.l, tc.op, tc.r)
	}
}

func TestArithmeticErrors(t *testing.T) {
	_, err := NewBinary("+", constant(sqltypes.NewInteger(math.MaxInt32)), constant(sqltypes.NewInteger(1)))
	require.Error(t, err)
	assert.Equal(t, dkerrors.OutOfRange, dkerrors.CodeOf(err))

	_, err = NewBinary("*", constant(sqltypes.NewBigInt(math.MaxInt64)), constant(sqltypes.NewBigInt(2)))
	require.Error(t, err)
	assert.Equal(t, dkerrors.OutOfRange, dkerrors.CodeOf(err))

	_, err = NewBinary("/", constant(sqltypes.NewInteger(1)), constant(sqltypes.NewInteger(0)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")

	_, err = NewBinary("+", constant(sqltypes.NewVarchar("a")), constant(sqltypes.NewVarchar("b")))
	require.Error(t, err)
	assert.Equal(t, dkerrors.InvalidInput, dkerrors.CodeOf(err))

	_, err = NewBinary("<", constant(sqltypes.NewBool(true)), &ColumnExpr{Typ: sqltypes.Double})
	require.Error(t, err)
}

func TestBigIntAdditionMatchesMath(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(math.MinInt64/2, math.MaxInt64/2).Draw(t, "a")
		b := rapid.Int64Range(math.MinInt64/2, math.MaxInt64/2).Draw(t, "b")
		v, err := arith("+", sqltypes.BigInt, sqltypes.NewBigInt(a), sqltypes.NewBigInt(b))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Int() != a+b {
			t.Fatalf("%d + %d = %d", a, b, v.Int())
		}
	})
}

func TestThreeValuedLogic(t *testing.T) {
	null := sqltypes.TypedNull(sqltypes.Boolean)
	tru, fls := sqltypes.NewBool(true), sqltypes.NewBool(false)
	cases := []struct {
		op   string
		l, r sqltypes.Value
		want sqltypes.Value
	}{
		{"AND", null, fls, fls},
		{"AND", null, tru, null},
		{"OR", null, tru, tru},
		{"OR", null, fls, null},
		{"AND", tru, tru, tru},
		{"OR", fls, fls, fls},
	}
	for _, tc := range cases {
		e, err := NewBinary(tc.op, constant(tc.l), constant(tc.r))
		require.NoError(t, err)
		assert.Equal(t, tc.want, foldedValue(t, e), "%s %s %s", tc.l, tc.op, tc.r)
	}
}

func TestComparisonAndIn(t *testing.T) {
	e, err := NewBinary("=", constant(sqltypes.NewInteger(5)), constant(sqltypes.NewDouble(5)))
	require.NoError(t, err)
	assert.Equal(t, sqltypes.NewBool(true), foldedValue(t, e))

	e, err = NewIn(constant(sqltypes.NewInteger(3)), []Expr{constant(sqltypes.NewInteger(1)), constant(sqltypes.NullValue())}, false)
	require.NoError(t, err)
	assert.True(t, foldedValue(t, e).IsNull())

	e, err = NewIn(constant(sqltypes.NewInteger(1)), []Expr{constant(sqltypes.NewInteger(1)), constant(sqltypes.NullValue())}, true)
	require.NoError(t, err)
	assert.Equal(t, sqltypes.NewBool(false), foldedValue(t, e))

	e, err = NewIsNull(constant(sqltypes.NullValue()), false)
	require.NoError(t, err)
	assert.Equal(t, sqltypes.NewBool(true), foldedValue(t, e))
}

func TestCase(t *testing.T) {
	col := &ColumnExpr{Index: 0, Typ: sqltypes.Integer}
	e, err := NewCase(col, []CaseWhen{
		{Cond: constant(sqltypes.NewInteger(1)), Result: constant(sqltypes.NewInteger(10))},
		{Cond: constant(sqltypes.NewInteger(2)), Result: constant(sqltypes.NewDouble(2.5))},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, sqltypes.Double, e.Type())

	c := &Chunk{Columns: [][]sqltypes.Value{{sqltypes.NewInteger(1), sqltypes.NewInteger(2), sqltypes.NewInteger(3)}}, Len: 3}
	got := make([]sqltypes.Value, 3)
	for i := range got {
		got[i], err = e.Eval(c, i)
		require.NoError(t, err)
	}
	assert.Equal(t, []sqltypes.Value{sqltypes.NewDouble(10), sqltypes.NewDouble(2.5), sqltypes.TypedNull(sqltypes.Double)}, got)
}

func TestFunctions(t *testing.T) {
	cases := []struct {
		name string
		args []sqltypes.Value
		want sqltypes.Value
	}{
		{"floor", []sqltypes.Value{sqltypes.NewDouble(2.7)}, sqltypes.NewDouble(2)},
		{"floor", []sqltypes.Value{sqltypes.NewInteger(3)}, sqltypes.NewInteger(3)},
		{"ceil", []sqltypes.Value{sqltypes.NewDouble(2.1)}, sqltypes.NewDouble(3)},
		{"abs", []sqltypes.Value{sqltypes.NewBigInt(-4)}, sqltypes.NewBigInt(4)},
		{"round", []sqltypes.Value{sqltypes.NewDouble(2.346), sqltypes.NewInteger(2)}, sqltypes.NewDouble(2.35)},
		{"sqrt", []sqltypes.Value{sqltypes.NewInteger(16)}, sqltypes.NewDouble(4)},
		{"power", []sqltypes.Value{sqltypes.NewInteger(2), sqltypes.NewInteger(10)}, sqltypes.NewDouble(1024)},
		{"lower", []sqltypes.Value{sqltypes.NewVarchar("DuCk")}, sqltypes.NewVarchar("duck")},
		{"upper", []sqltypes.Value{sqltypes.NewVarchar("duck")}, sqltypes.NewVarchar("DUCK")},
		{"length", []sqltypes.Value{sqltypes.NewVarchar("héllo")}, sqltypes.NewBigInt(5)},
		{"concat", []sqltypes.Value{sqltypes.NewVarchar("a"), sqltypes.NullValue(), sqltypes.NewInteger(1)}, sqltypes.NewVarchar("a1")},
		{"coalesce", []sqltypes.Value{sqltypes.NullValue(), sqltypes.NewInteger(2), sqltypes.NewBigInt(3)}, sqltypes.NewBigInt(2)},
		{"greatest", []sqltypes.Value{sqltypes.NewInteger(2), sqltypes.NullValue(), sqltypes.NewInteger(7)}, sqltypes.NewInteger(7)},
		{"least", []sqltypes.Value{sqltypes.NewInteger(2), sqltypes.NewInteger(7)}, sqltypes.NewInteger(2)},
		{"floor", []sqltypes.Value{sqltypes.NullValue()}, sqltypes.TypedNull(sqltypes.Double)},
	}
	for _, tc := range cases {
		args := make([]Expr, len(tc.args))
		for i, a := range tc.args {
			args[i] = constant(a)
		}
		e, err := NewFunction(tc.name, args)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, foldedValue(t, e), tc.name)
	}

	_, err := NewFunction("nope", nil)
	require.Error(t, err)
	_, err = NewFunction("lower", []Expr{constant(sqltypes.NewInteger(1))})
	require.Error(t, err)
	_, err = NewFunction("floor", nil)
	require.Error(t, err)
}

func TestCastFolding(t *testing.T) {
	e, err := NewCast(constant(sqltypes.NewInteger(1_000_000)), sqltypes.BigInt)
	require.NoError(t, err)
	assert.Equal(t, sqltypes.NewBigInt(1_000_000), foldedValue(t, e))

	col := &ColumnExpr{Typ: sqltypes.Double}
	e, err = NewCast(col, sqltypes.Integer)
	require.NoError(t, err)
	assert.IsType(t, &CastExpr{}, e)
}
