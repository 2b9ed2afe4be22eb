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

// Package parser turns SQL text into duckling statements. The Postgres
// grammar (through pg_query) does the parsing; this package translates the
// supported subset of its parse tree and rejects the rest as not implemented.
package parser

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// Parse parses one or more semicolon separated statements.
func Parse(sql string) ([]Statement, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, dkerrors.DK2001(err.Error())
	}
	if len(tree.Stmts) == 0 {
		return nil, dkerrors.DK2001("empty query")
	}
	stmts := make([]Statement, 0, len(tree.Stmts))
	for _, raw := range tree.Stmts {
		stmt, err := convertStatement(raw.Stmt)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// Split returns the text of each statement in sql, in order. The whole
// script must parse.
func Split(sql string) ([]string, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, dkerrors.DK2001(err.Error())
	}
	out := make([]string, 0, len(tree.Stmts))
	for _, raw := range tree.Stmts {
		start := int(raw.StmtLocation)
		end := len(sql)
		if raw.StmtLen > 0 {
			end = start + int(raw.StmtLen)
		}
		out = append(out, strings.TrimSpace(sql[start:end]))
	}
	return out, nil
}

// ParseOne parses exactly one statement.
func ParseOne(sql string) (Statement, error) {
	stmts, err := Parse(sql)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, dkerrors.DK2001(fmt.Sprintf("expected a single statement, got %d", len(stmts)))
	}
	return stmts[0], nil
}

func notImplemented(format string, args ...any) error {
	return dkerrors.DK5001(fmt.Sprintf(format, args...))
}

func nodeName(node *pg_query.Node) string {
	if node == nil || node.Node == nil {
		return "empty node"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", node.Node), "*pg_query.Node_")
}

func convertStatement(node *pg_query.Node) (Statement, error) {
	switch n := node.GetNode().(type) {
	case *pg_query.Node_SelectStmt:
		return convertSelect(n.SelectStmt)
	case *pg_query.Node_InsertStmt:
		return convertInsert(n.InsertStmt)
	case *pg_query.Node_CreateStmt:
		return convertCreate(n.CreateStmt)
	case *pg_query.Node_CreateTableAsStmt:
		return convertCreateAs(n.CreateTableAsStmt)
	case *pg_query.Node_DropStmt:
		return convertDrop(n.DropStmt)
	case *pg_query.Node_VariableSetStmt:
		return convertSet(n.VariableSetStmt)
	case *pg_query.Node_VariableShowStmt:
		return &ShowStatement{Name: n.VariableShowStmt.Name}, nil
	case *pg_query.Node_ExplainStmt:
		inner, err := convertStatement(n.ExplainStmt.Query)
		if err != nil {
			return nil, err
		}
		return &ExplainStatement{Statement: inner}, nil
	}
	return nil, notImplemented("statement %s", nodeName(node))
}

func convertSelect(s *pg_query.SelectStmt) (*SelectStatement, error) {
	if s.Op != pg_query.SetOperation_SETOP_NONE {
		return nil, notImplemented("set operations")
	}
	switch {
	case len(s.ValuesLists) > 0:
		return nil, notImplemented("VALUES outside of INSERT")
	case s.IntoClause != nil:
		return nil, notImplemented("SELECT INTO")
	case len(s.WindowClause) > 0:
		return nil, notImplemented("window functions")
	}

	out := &SelectStatement{}
	if w := s.WithClause; w != nil {
		if w.Recursive {
			return nil, notImplemented("WITH RECURSIVE")
		}
		for _, node := range w.Ctes {
			cte := node.GetCommonTableExpr()
			if cte == nil {
				return nil, notImplemented("WITH entry %s", nodeName(node))
			}
			sel := cte.Ctequery.GetSelectStmt()
			if sel == nil {
				return nil, notImplemented("data-modifying statements in WITH")
			}
			q, err := convertSelect(sel)
			if err != nil {
				return nil, err
			}
			out.With = append(out.With, &CommonTableExpr{
				Name:    cte.Ctename,
				Columns: stringList(cte.Aliascolnames),
				Query:   q,
			})
		}
	}

	if len(s.DistinctClause) == 1 && s.DistinctClause[0].GetNode() == nil {
		out.Distinct = true
	} else if len(s.DistinctClause) > 0 {
		on, err := convertExprs(s.DistinctClause)
		if err != nil {
			return nil, err
		}
		out.DistinctOn = on
	}

	for _, node := range s.TargetList {
		rt := node.GetResTarget()
		if rt == nil {
			return nil, notImplemented("select target %s", nodeName(node))
		}
		e, err := convertExpr(rt.Val)
		if err != nil {
			return nil, err
		}
		out.Targets = append(out.Targets, &Target{Expr: e, Alias: rt.Name})
	}

	switch len(s.FromClause) {
	case 0:
	case 1:
		ref, err := convertTableRef(s.FromClause[0])
		if err != nil {
			return nil, err
		}
		out.From = ref
	default:
		return nil, notImplemented("joins")
	}

	var err error
	if out.Where, err = convertOptionalExpr(s.WhereClause); err != nil {
		return nil, err
	}
	if out.GroupBy, err = convertExprs(s.GroupClause); err != nil {
		return nil, err
	}
	if out.Having, err = convertOptionalExpr(s.HavingClause); err != nil {
		return nil, err
	}
	for _, node := range s.SortClause {
		sb := node.GetSortBy()
		if sb == nil {
			return nil, notImplemented("ORDER BY entry %s", nodeName(node))
		}
		e, err := convertExpr(sb.Node)
		if err != nil {
			return nil, err
		}
		item := &OrderItem{Expr: e, Desc: sb.SortbyDir == pg_query.SortByDir_SORTBY_DESC}
		switch sb.SortbyNulls {
		case pg_query.SortByNulls_SORTBY_NULLS_FIRST:
			item.NullsFirst = ptr(true)
		case pg_query.SortByNulls_SORTBY_NULLS_LAST:
			item.NullsFirst = ptr(false)
		}
		out.OrderBy = append(out.OrderBy, item)
	}
	if c := s.LimitCount; c != nil && !c.GetAConst().GetIsnull() {
		if out.Limit, err = convertExpr(c); err != nil {
			return nil, err
		}
	}
	if out.Offset, err = convertOptionalExpr(s.LimitOffset); err != nil {
		return nil, err
	}
	return out, nil
}

func ptr[T any](v T) *T {
	return &v
}

func convertAlias(a *pg_query.Alias) *Alias {
	if a == nil {
		return nil
	}
	return &Alias{Name: a.Aliasname, Columns: stringList(a.Colnames)}
}

func convertTableRef(node *pg_query.Node) (TableRef, error) {
	switch n := node.GetNode().(type) {
	case *pg_query.Node_RangeVar:
		rv := n.RangeVar
		if rv.Schemaname != "" && rv.Schemaname != "main" {
			return nil, dkerrors.DK1001(rv.Schemaname + "." + rv.Relname)
		}
		return &TableName{Name: rv.Relname, Alias: convertAlias(rv.Alias)}, nil
	case *pg_query.Node_RangeFunction:
		rf := n.RangeFunction
		if len(rf.Functions) != 1 || rf.Lateral || rf.Ordinality {
			return nil, notImplemented("ROWS FROM, LATERAL and WITH ORDINALITY")
		}
		items := rf.Functions[0].GetList().GetItems()
		if len(items) == 0 || items[0].GetFuncCall() == nil {
			return nil, notImplemented("table function %s", nodeName(rf.Functions[0]))
		}
		fc := items[0].GetFuncCall()
		args, err := convertExprs(fc.Args)
		if err != nil {
			return nil, err
		}
		return &TableFunction{
			Name:  funcName(fc.Funcname),
			Args:  args,
			Alias: convertAlias(rf.Alias),
		}, nil
	case *pg_query.Node_RangeSubselect:
		sel := n.RangeSubselect.Subquery.GetSelectStmt()
		if sel == nil || n.RangeSubselect.Lateral {
			return nil, notImplemented("subquery %s", nodeName(n.RangeSubselect.Subquery))
		}
		q, err := convertSelect(sel)
		if err != nil {
			return nil, err
		}
		return &Subquery{Select: q, Alias: convertAlias(n.RangeSubselect.Alias)}, nil
	case *pg_query.Node_JoinExpr:
		return nil, notImplemented("joins")
	}
	return nil, notImplemented("FROM entry %s", nodeName(node))
}

func convertInsert(s *pg_query.InsertStmt) (*InsertStatement, error) {
	switch {
	case s.OnConflictClause != nil:
		return nil, notImplemented("ON CONFLICT")
	case len(s.ReturningList) > 0:
		return nil, notImplemented("RETURNING")
	case s.WithClause != nil:
		return nil, notImplemented("WITH in INSERT")
	}
	out := &InsertStatement{Table: s.Relation.GetRelname()}
	for _, node := range s.Cols {
		out.Columns = append(out.Columns, node.GetResTarget().GetName())
	}
	sel := s.SelectStmt.GetSelectStmt()
	if sel == nil {
		return nil, notImplemented("INSERT DEFAULT VALUES")
	}
	if len(sel.ValuesLists) == 0 {
		q, err := convertSelect(sel)
		if err != nil {
			return nil, err
		}
		out.Select = q
		return out, nil
	}
	for _, node := range sel.ValuesLists {
		row, err := convertExprs(node.GetList().GetItems())
		if err != nil {
			return nil, err
		}
		out.Values = append(out.Values, row)
	}
	return out, nil
}

func convertCreate(s *pg_query.CreateStmt) (*CreateTableStatement, error) {
	out := &CreateTableStatement{Table: s.Relation.GetRelname(), IfNotExists: s.IfNotExists}
	for _, node := range s.TableElts {
		def := node.GetColumnDef()
		if def == nil {
			// Table constraints are accepted and ignored.
			continue
		}
		t, err := convertType(def.TypeName)
		if err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, ColumnDef{Name: def.Colname, Type: t})
	}
	return out, nil
}

func convertCreateAs(s *pg_query.CreateTableAsStmt) (*CreateTableStatement, error) {
	if s.Objtype != pg_query.ObjectType_OBJECT_TABLE {
		return nil, notImplemented("CREATE %s AS", strings.TrimPrefix(s.Objtype.String(), "OBJECT_"))
	}
	sel := s.Query.GetSelectStmt()
	if sel == nil {
		return nil, notImplemented("CREATE TABLE AS %s", nodeName(s.Query))
	}
	q, err := convertSelect(sel)
	if err != nil {
		return nil, err
	}
	return &CreateTableStatement{
		Table:       s.Into.GetRel().GetRelname(),
		As:          q,
		IfNotExists: s.IfNotExists,
	}, nil
}

func convertDrop(s *pg_query.DropStmt) (*DropTableStatement, error) {
	if s.RemoveType != pg_query.ObjectType_OBJECT_TABLE {
		return nil, notImplemented("DROP %s", strings.TrimPrefix(s.RemoveType.String(), "OBJECT_"))
	}
	out := &DropTableStatement{IfExists: s.MissingOk}
	for _, obj := range s.Objects {
		names := stringList(obj.GetList().GetItems())
		if len(names) == 0 {
			return nil, notImplemented("DROP TABLE target %s", nodeName(obj))
		}
		out.Tables = append(out.Tables, names[len(names)-1])
	}
	return out, nil
}

func convertSet(s *pg_query.VariableSetStmt) (*SetStatement, error) {
	switch s.Kind {
	case pg_query.VariableSetKind_VAR_SET_VALUE:
		values := make([]string, 0, len(s.Args))
		for _, arg := range s.Args {
			c := arg.GetAConst()
			if c == nil {
				return nil, dkerrors.DK2005(fmt.Sprintf("SET %s expects a constant value", s.Name))
			}
			lit, err := convertConst(c)
			if err != nil {
				return nil, err
			}
			values = append(values, lit.Value.String())
		}
		return &SetStatement{Name: s.Name, Value: strings.Join(values, ", ")}, nil
	case pg_query.VariableSetKind_VAR_SET_DEFAULT, pg_query.VariableSetKind_VAR_RESET:
		return &SetStatement{Name: s.Name, Reset: true}, nil
	case pg_query.VariableSetKind_VAR_RESET_ALL:
		return &SetStatement{Name: "all", Reset: true}, nil
	}
	return nil, notImplemented("SET form %s", s.Kind)
}

func convertType(tn *pg_query.TypeName) (sqltypes.Type, error) {
	names := stringList(tn.GetNames())
	if len(names) == 0 {
		return sqltypes.Null, dkerrors.DK2002("missing type name")
	}
	if len(tn.ArrayBounds) > 0 {
		return sqltypes.Null, notImplemented("array types")
	}
	name := names[len(names)-1]
	t, ok := sqltypes.TypeFromName(name)
	if !ok {
		return sqltypes.Null, dkerrors.DK2002(fmt.Sprintf("Type with name %s does not exist!", name))
	}
	return t, nil
}

func stringList(nodes []*pg_query.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if s := n.GetString_(); s != nil {
			out = append(out, s.Sval)
		}
	}
	return out
}

func funcName(nodes []*pg_query.Node) string {
	names := stringList(nodes)
	if len(names) == 0 {
		return ""
	}
	return strings.ToLower(names[len(names)-1])
}
