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
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/duckling-db/duckling/go/common/dkerrors"
)

// Value is a single, immutable SQL value. The zero Value is NULL.
//
// Integers and booleans are stored in n, doubles as their IEEE bits in n,
// and strings in s.
type Value struct {
	typ  Type
	null bool
	n    int64
	s    string
}

// NullValue returns an untyped NULL.
func NullValue() Value {
	return Value{typ: Null, null: true}
}

// TypedNull returns a NULL of the given type.
func TypedNull(t Type) Value {
	return Value{typ: t, null: true}
}

// NewBool returns a BOOLEAN value.
func NewBool(b bool) Value {
	var n int64
	if b {
		n = 1
	}
	return Value{typ: Boolean, n: n}
}

// NewInteger returns an INTEGER value.
func NewInteger(i int32) Value {
	return Value{typ: Integer, n: int64(i)}
}

// NewBigInt returns a BIGINT value.
func NewBigInt(i int64) Value {
	return Value{typ: BigInt, n: i}
}

// NewDouble returns a DOUBLE value.
func NewDouble(f float64) Value {
	return Value{typ: Double, n: int64(math.Float64bits(f))}
}

// NewVarchar returns a VARCHAR value.
func NewVarchar(s string) Value {
	return Value{typ: Varchar, s: s}
}

// Type returns the value's type.
func (v Value) Type() Type {
	return v.typ
}

// IsNull returns true if the value is NULL.
func (v Value) IsNull() bool {
	return v.null || v.typ == Null
}

// Bool returns the value of a BOOLEAN.
func (v Value) Bool() bool {
	return v.n != 0
}

// Int returns the value of an integer type, truncating doubles.
func (v Value) Int() int64 {
	if v.typ == Double {
		return int64(v.Float())
	}
	return v.n
}

// Float returns the value of a numeric type as float64.
func (v Value) Float() float64 {
	if v.typ == Double {
		return math.Float64frombits(uint64(v.n))
	}
	return float64(v.n)
}

// Str returns the value of a VARCHAR.
func (v Value) Str() string {
	return v.s
}

// String renders the value the way the shell prints it.
func (v Value) String() string {
	if v.IsNull() {
		return "NULL"
	}
	switch v.typ {
	case Boolean:
		return strconv.FormatBool(v.Bool())
	case Integer, BigInt:
		return strconv.FormatInt(v.n, 10)
	case Double:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case Varchar:
		return v.s
	}
	return "?"
}

// SQLLiteral renders the value as a SQL literal.
func (v Value) SQLLiteral() string {
	switch {
	case v.IsNull():
		return "NULL"
	case v.typ == Varchar:
		return "'" + strings.ReplaceAll(v.s, "'", "''") + "'"
	}
	return v.String()
}

// Native converts the value to the Go type used by Result.Fetchall.
func (v Value) Native() any {
	if v.IsNull() {
		return nil
	}
	switch v.typ {
	case Boolean:
		return v.Bool()
	case Integer:
		return int32(v.n)
	case BigInt:
		return v.n
	case Double:
		return v.Float()
	case Varchar:
		return v.s
	}
	return nil
}

// FromNative converts a Go value into a Value.
func FromNative(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return t, nil
	case bool:
		return NewBool(t), nil
	case int8:
		return NewInteger(int32(t)), nil
	case int16:
		return NewInteger(int32(t)), nil
	case int32:
		return NewInteger(t), nil
	case int:
		if t >= math.MinInt32 && t <= math.MaxInt32 {
			return NewInteger(int32(t)), nil
		}
		return NewBigInt(int64(t)), nil
	case int64:
		return NewBigInt(t), nil
	case uint8:
		return NewInteger(int32(t)), nil
	case uint16:
		return NewInteger(int32(t)), nil
	case uint32:
		return NewBigInt(int64(t)), nil
	case float32:
		return NewDouble(float64(t)), nil
	case float64:
		return NewDouble(t), nil
	case string:
		return NewVarchar(t), nil
	case []byte:
		return NewVarchar(string(t)), nil
	}
	return Value{}, dkerrors.DK3001(fmt.Sprintf("Go value of type %T", x), "a SQL value")
}

// Cast converts v to type t using SQL cast rules.
func (v Value) Cast(t Type) (Value, error) {
	if v.IsNull() {
		return TypedNull(t), nil
	}
	if v.typ == t {
		return v, nil
	}
	switch t {
	case Null:
		return NullValue(), nil
	case Varchar:
		return NewVarchar(v.String()), nil
	case Boolean:
		switch v.typ {
		case Integer, BigInt:
			return NewBool(v.n != 0), nil
		case Varchar:
			switch strings.ToLower(strings.TrimSpace(v.s)) {
			case "t", "true", "y", "yes", "on", "1":
				return NewBool(true), nil
			case "f", "false", "n", "no", "off", "0":
				return NewBool(false), nil
			}
		}
	case Integer, BigInt:
		var n int64
		switch v.typ {
		case Boolean, Integer, BigInt:
			n = v.n
		case Double:
			f := math.Round(v.Float())
			if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return Value{}, dkerrors.DK3001(v.String(), t.String())
			}
			n = int64(f)
		case Varchar:
			parsed, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
			if err != nil {
				return Value{}, dkerrors.DK3001(v.SQLLiteral(), t.String())
			}
			n = parsed
		}
		if t == Integer {
			if n < math.MinInt32 || n > math.MaxInt32 {
				return Value{}, dkerrors.DK3001(v.String(), t.String())
			}
			return NewInteger(int32(n)), nil
		}
		return NewBigInt(n), nil
	case Double:
		switch v.typ {
		case Boolean, Integer, BigInt:
			return NewDouble(float64(v.n)), nil
		case Varchar:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
			if err != nil {
				return Value{}, dkerrors.DK3001(v.SQLLiteral(), t.String())
			}
			return NewDouble(f), nil
		}
	}
	return Value{}, dkerrors.DK3001(v.typ.String(), t.String())
}

// Size approximates the memory held by v.
func (v Value) Size() int {
	return 32 + len(v.s)
}

// AppendKey appends an encoding of v to buf such that two values of the same
// type encode equally iff they are equal. Used for DISTINCT and GROUP BY keys.
func (v Value) AppendKey(buf []byte) []byte {
	if v.IsNull() {
		return append(buf, 0)
	}
	buf = append(buf, byte(v.typ)+1)
	switch v.typ {
	case Varchar:
		buf = binary.AppendUvarint(buf, uint64(len(v.s)))
		return append(buf, v.s...)
	case Double:
		f := v.Float()
		if f == 0 {
			// -0 and +0 group together.
			f = 0
		}
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(f))
	}
	return binary.BigEndian.AppendUint64(buf, uint64(v.n))
}

// Compare orders two non-NULL values. Numeric types compare across types;
// any other mix of types is an error.
func Compare(a, b Value) (int, error) {
	switch {
	case a.typ.IsNumeric() && b.typ.IsNumeric():
		if a.typ.IsInteger() && b.typ.IsInteger() {
			return cmpInt(a.n, b.n), nil
		}
		return cmpFloat(a.Float(), b.Float()), nil
	case a.typ == Varchar && b.typ == Varchar:
		return strings.Compare(a.s, b.s), nil
	case a.typ == Boolean && b.typ == Boolean:
		return cmpInt(a.n, b.n), nil
	}
	return 0, dkerrors.DK2002(fmt.Sprintf("Cannot compare values of type %s and type %s", a.typ, b.typ))
}

// CompareNullsLast orders values treating NULL as larger than everything.
func CompareNullsLast(a, b Value) (int, error) {
	switch an, bn := a.IsNull(), b.IsNull(); {
	case an && bn:
		return 0, nil
	case an:
		return 1, nil
	case bn:
		return -1, nil
	}
	return Compare(a, b)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// cmpFloat sorts NaN after every other number, like Postgres.
func cmpFloat(a, b float64) int {
	switch an, bn := math.IsNaN(a), math.IsNaN(b); {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
