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

package sqltypes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duckling-db/duckling/go/common/dkerrors"
)

func TestValueIsNull(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected bool
	}{
		{name: "zero value is null", value: Value{}, expected: true},
		{name: "typed null", value: TypedNull(Integer), expected: true},
		{name: "empty string is not null", value: NewVarchar(""), expected: false},
		{name: "zero is not null", value: NewInteger(0), expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.value.IsNull())
		})
	}
}

func TestNative(t *testing.T) {
	assert.Equal(t, int32(5), NewInteger(5).Native())
	assert.Equal(t, int64(5), NewBigInt(5).Native())
	assert.Equal(t, 2.5, NewDouble(2.5).Native())
	assert.Equal(t, "x", NewVarchar("x").Native())
	assert.Equal(t, true, NewBool(true).Native())
	assert.Nil(t, TypedNull(Double).Native())
}

func TestFromNative(t *testing.T) {
	v, err := FromNative(5)
	require.NoError(t, err)
	assert.Equal(t, Integer, v.Type())

	v, err = FromNative(int64(1) << 40)
	require.NoError(t, err)
	assert.Equal(t, BigInt, v.Type())

	v, err = FromNative(nil)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = FromNative(struct{}{})
	require.Error(t, err)
	assert.Equal(t, dkerrors.Conversion, dkerrors.CodeOf(err))
}

func TestCast(t *testing.T) {
	tests := []struct {
		name     string
		in       Value
		to       Type
		expected Value
		wantErr  bool
	}{
		{name: "int to bigint", in: NewInteger(7), to: BigInt, expected: NewBigInt(7)},
		{name: "double rounds to int", in: NewDouble(2.5), to: Integer, expected: NewInteger(3)},
		{name: "string to double", in: NewVarchar(" 1.25 "), to: Double, expected: NewDouble(1.25)},
		{name: "string to bool", in: NewVarchar("true"), to: Boolean, expected: NewBool(true)},
		{name: "int to varchar", in: NewBigInt(42), to: Varchar, expected: NewVarchar("42")},
		{name: "bigint overflows integer", in: NewBigInt(math.MaxInt32 + 1), to: Integer, wantErr: true},
		{name: "bad string", in: NewVarchar("abc"), to: Integer, wantErr: true},
		{name: "null keeps target type", in: NullValue(), to: Double, expected: TypedNull(Double)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.in.Cast(tc.to)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, dkerrors.Conversion, dkerrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestCompare(t *testing.T) {
	c, err := Compare(NewInteger(1), NewDouble(1.5))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = Compare(NewVarchar("b"), NewVarchar("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	c, err = Compare(NewDouble(math.NaN()), NewDouble(1e300))
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	_, err = Compare(NewVarchar("1"), NewInteger(1))
	require.Error(t, err)

	c, err = CompareNullsLast(NullValue(), NewInteger(1))
	require.NoError(t, err)
	assert.Equal(t, 1, c)
}

func TestAppendKey(t *testing.T) {
	key := func(vs ...Value) string {
		var buf []byte
		for _, v := range vs {
			buf = v.AppendKey(buf)
		}
		return string(buf)
	}
	assert.Equal(t, key(NewDouble(0)), key(NewDouble(math.Copysign(0, -1))))
	assert.NotEqual(t, key(NewVarchar("ab"), NewVarchar("c")), key(NewVarchar("a"), NewVarchar("bc")))
	assert.NotEqual(t, key(NullValue()), key(NewInteger(0)))
}

func TestResultFetch(t *testing.T) {
	res := NewResult([]Field{{Name: "i", Type: Integer}}, []Row{{NewInteger(5)}, {NewInteger(4)}, {NewInteger(3)}})
	assert.True(t, res.ProducesRows())
	assert.Equal(t, "SELECT 3", res.CommandTag)
	assert.Equal(t, []string{"i"}, res.ColumnNames())

	first, ok := res.Fetchone()
	require.True(t, ok)
	assert.Equal(t, []any{int32(5)}, first)
	assert.Equal(t, [][]any{{int32(4)}, {int32(3)}}, res.Fetchall())

	_, ok = res.Fetchone()
	assert.False(t, ok)

	cmd := NewCommandResult("INSERT 0 1", 1)
	assert.False(t, cmd.ProducesRows())
	assert.Empty(t, cmd.Fetchall())

	empty := NewResult(nil, nil)
	assert.True(t, empty.ProducesRows())
}

func TestTypeFromName(t *testing.T) {
	for name, expected := range map[string]Type{
		"int4": Integer, "INTEGER": Integer, "int8": BigInt, "float8": Double,
		"varchar": Varchar, "text": Varchar, "bool": Boolean,
	} {
		got, ok := TypeFromName(name)
		require.True(t, ok, name)
		assert.Equal(t, expected, got, name)
	}
	_, ok := TypeFromName("geometry")
	assert.False(t, ok)
	assert.Equal(t, Double, Promote(Integer, Double))
	assert.Equal(t, BigInt, Promote(Null, BigInt))
}
