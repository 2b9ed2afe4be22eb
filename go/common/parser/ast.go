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
	"fmt"
	"strings"

	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// Statement is a parsed SQL statement.
type Statement interface {
	StatementType() string
}

// Expr is a parsed scalar expression. String renders it back as SQL and is
// used to name result columns that have no alias.
type Expr interface {
	fmt.Stringer
	exprNode()
}

// SelectStatement represents a SELECT, including its WITH clause.
type SelectStatement struct {
	With       []*CommonTableExpr
	Distinct   bool
	DistinctOn []Expr
	Targets    []*Target
	From       TableRef // nil when there is no FROM clause
	Where      Expr
	GroupBy    []Expr
	Having     Expr
	OrderBy    []*OrderItem
	Limit      Expr // nil means no limit
	Offset     Expr
}

func (*SelectStatement) StatementType() string { return "SELECT" }

// CommonTableExpr is a single WITH binding.
type CommonTableExpr struct {
	Name    string
	Columns []string
	Query   *SelectStatement
}

// Target is an entry of the select list.
type Target struct {
	Expr  Expr
	Alias string
}

// OrderItem is an ORDER BY entry. NullsFirst is nil when the query does not
// say, in which case NULLs sort last ascending and first descending.
type OrderItem struct {
	Expr       Expr
	Desc       bool
	NullsFirst *bool
}

// TableRef is an entry of the FROM clause.
type TableRef interface {
	tableRef()
	// AliasName returns the name the reference is visible under.
	AliasName() string
}

// Alias renames a FROM entry and optionally its columns.
type Alias struct {
	Name    string
	Columns []string
}

// TableName references a table, frame, relation alias or CTE.
type TableName struct {
	Name  string
	Alias *Alias
}

func (*TableName) tableRef() {}

func (t *TableName) AliasName() string {
	if t.Alias != nil {
		return t.Alias.Name
	}
	return t.Name
}

// TableFunction is a function in FROM position, such as range(10).
type TableFunction struct {
	Name  string
	Args  []Expr
	Alias *Alias
}

func (*TableFunction) tableRef() {}

func (t *TableFunction) AliasName() string {
	if t.Alias != nil {
		return t.Alias.Name
	}
	return t.Name
}

// Subquery is a parenthesized SELECT in FROM position.
type Subquery struct {
	Select *SelectStatement
	Alias  *Alias
}

func (*Subquery) tableRef() {}

func (s *Subquery) AliasName() string {
	if s.Alias != nil {
		return s.Alias.Name
	}
	return ""
}

// InsertStatement is INSERT INTO ... VALUES or INSERT INTO ... SELECT.
type InsertStatement struct {
	Table   string
	Columns []string
	Values  [][]Expr
	Select  *SelectStatement
}

func (*InsertStatement) StatementType() string { return "INSERT" }

// ColumnDef defines a column of CREATE TABLE.
type ColumnDef struct {
	Name string
	Type sqltypes.Type
}

// CreateTableStatement is CREATE TABLE, or CREATE TABLE ... AS SELECT when
// As is set.
type CreateTableStatement struct {
	Table       string
	Columns     []ColumnDef
	As          *SelectStatement
	IfNotExists bool
}

func (*CreateTableStatement) StatementType() string { return "CREATE TABLE" }

// DropTableStatement is DROP TABLE.
type DropTableStatement struct {
	Tables   []string
	IfExists bool
}

func (*DropTableStatement) StatementType() string { return "DROP TABLE" }

// SetStatement is SET name = value, or RESET name when Reset is true.
type SetStatement struct {
	Name  string
	Value string
	Reset bool
}

func (s *SetStatement) StatementType() string {
	if s.Reset {
		return "RESET"
	}
	return "SET"
}

// ShowStatement is SHOW name.
type ShowStatement struct {
	Name string
}

func (*ShowStatement) StatementType() string { return "SHOW" }

// ExplainStatement is EXPLAIN <select>.
type ExplainStatement struct {
	Statement Statement
}

func (*ExplainStatement) StatementType() string { return "EXPLAIN" }

// ColumnRef references a column, optionally qualified by a table alias.
type ColumnRef struct {
	Table string
	Name  string
}

func (*ColumnRef) exprNode() {}

func (c *ColumnRef) String() string {
	if c.Table != "" {
		return c.Table + "." + c.Name
	}
	return c.Name
}

// Star is * or alias.* in a select list.
type Star struct {
	Table string
}

func (*Star) exprNode() {}

func (s *Star) String() string {
	if s.Table != "" {
		return s.Table + ".*"
	}
	return "*"
}

// Literal is a constant.
type Literal struct {
	Value sqltypes.Value
}

func (*Literal) exprNode() {}

func (l *Literal) String() string {
	return l.Value.SQLLiteral()
}

// Cast is CAST(expr AS type) or expr::type.
type Cast struct {
	Expr Expr
	Type sqltypes.Type
}

func (*Cast) exprNode() {}

func (c *Cast) String() string {
	return fmt.Sprintf("CAST(%s AS %s)", c.Expr, c.Type)
}

// UnaryExpr is -x or NOT x.
type UnaryExpr struct {
	Op   string
	Expr Expr
}

func (*UnaryExpr) exprNode() {}

func (u *UnaryExpr) String() string {
	if u.Op == "NOT" {
		return "(NOT " + u.Expr.String() + ")"
	}
	return u.Op + u.Expr.String()
}

// BinaryExpr is an infix operator, including AND and OR.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// FuncCall is a scalar or aggregate function call.
type FuncCall struct {
	Name     string
	Args     []Expr
	Star     bool
	Distinct bool
}

func (*FuncCall) exprNode() {}

func (f *FuncCall) String() string {
	if f.Star {
		return f.Name + "(*)"
	}
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	prefix := ""
	if f.Distinct {
		prefix = "DISTINCT "
	}
	return f.Name + "(" + prefix + strings.Join(args, ", ") + ")"
}

// Case is CASE [operand] WHEN ... THEN ... [ELSE ...] END.
type Case struct {
	Operand Expr
	Whens   []*When
	Else    Expr
}

// When is one branch of a CASE expression.
type When struct {
	Cond   Expr
	Result Expr
}

func (*Case) exprNode() {}

func (c *Case) String() string {
	var b strings.Builder
	b.WriteString("CASE")
	if c.Operand != nil {
		b.WriteString(" " + c.Operand.String())
	}
	for _, w := range c.Whens {
		fmt.Fprintf(&b, " WHEN %s THEN %s", w.Cond, w.Result)
	}
	if c.Else != nil {
		b.WriteString(" ELSE " + c.Else.String())
	}
	b.WriteString(" END")
	return b.String()
}

// IsNull is x IS NULL or x IS NOT NULL.
type IsNull struct {
	Expr Expr
	Not  bool
}

func (*IsNull) exprNode() {}

func (n *IsNull) String() string {
	if n.Not {
		return "(" + n.Expr.String() + " IS NOT NULL)"
	}
	return "(" + n.Expr.String() + " IS NULL)"
}

// InList is x [NOT] IN (a, b, ...).
type InList struct {
	Expr Expr
	List []Expr
	Not  bool
}

func (*InList) exprNode() {}

func (in *InList) String() string {
	items := make([]string, len(in.List))
	for i, e := range in.List {
		items[i] = e.String()
	}
	op := " IN "
	if in.Not {
		op = " NOT IN "
	}
	return "(" + in.Expr.String() + op + "(" + strings.Join(items, ", ") + "))"
}

// Walk calls fn for e and every expression below it, stopping descent into
// a node when fn returns false.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Cast:
		Walk(n.Expr, fn)
	case *UnaryExpr:
		Walk(n.Expr, fn)
	case *BinaryExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *FuncCall:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *Case:
		Walk(n.Operand, fn)
		for _, w := range n.Whens {
			Walk(w.Cond, fn)
			Walk(w.Result, fn)
		}
		Walk(n.Else, fn)
	case *IsNull:
		Walk(n.Expr, fn)
	case *InList:
		Walk(n.Expr, fn)
		for _, a := range n.List {
			Walk(a, fn)
		}
	}
}
