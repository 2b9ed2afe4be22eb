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

// Package sqltypes provides the value, row and result types shared by the
// planner, the engine and the client API.
package sqltypes

import "strings"

// Type is the logical type of a column or value.
type Type uint8

const (
	// Null is the type of the NULL literal before it is coerced.
	Null Type = iota
	Boolean
	Integer
	BigInt
	Double
	Varchar
)

var typeNames = [...]string{
	Null:    "NULL",
	Boolean: "BOOLEAN",
	Integer: "INTEGER",
	BigInt:  "BIGINT",
	Double:  "DOUBLE",
	Varchar: "VARCHAR",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "UNKNOWN"
}

// IsNumeric reports whether t is INTEGER, BIGINT or DOUBLE.
func (t Type) IsNumeric() bool {
	return t == Integer || t == BigInt || t == Double
}

// IsInteger reports whether t is INTEGER or BIGINT.
func (t Type) IsInteger() bool {
	return t == Integer || t == BigInt
}

// TypeFromName maps a SQL type name, as spelled by users or by the Postgres
// grammar (int4, float8, ...), to a Type.
func TypeFromName(name string) (Type, bool) {
	switch strings.ToLower(name) {
	case "bool", "boolean", "logical":
		return Boolean, true
	case "int", "int2", "int4", "integer", "smallint", "tinyint", "signed", "short":
		return Integer, true
	case "int8", "bigint", "long", "hugeint":
		return BigInt, true
	case "float", "float4", "float8", "real", "double", "numeric", "decimal":
		return Double, true
	case "varchar", "text", "string", "char", "bpchar":
		return Varchar, true
	}
	return Null, false
}

// Promote returns the common numeric type of a and b. NULL promotes to the
// other side.
func Promote(a, b Type) Type {
	switch {
	case a == Null:
		return b
	case b == Null:
		return a
	case a == Double || b == Double:
		return Double
	case a == BigInt || b == BigInt:
		return BigInt
	case a == Integer && b == Integer:
		return Integer
	}
	return a
}
