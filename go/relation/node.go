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

// Package relation describes lazily evaluated queries. A Node never runs
// anything: it records where rows come from and is planned and executed
// anew every time a terminal operation is called on it.
package relation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/duckling-db/duckling/go/common/dkerrors"
)

// Kind distinguishes the three kinds of relation nodes.
type Kind int

const (
	// SQL is a root relation defined by query text.
	SQL Kind = iota
	// Table is a root relation reading a base table.
	Table
	// Query evaluates SQL in a scope where Alias names the parent's rows.
	Query
)

func (k Kind) String() string {
	switch k {
	case SQL:
		return "SQL"
	case Table:
		return "TABLE"
	case Query:
		return "QUERY"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var aliasPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Node is an immutable node of a relation graph. A node may be the parent
// of any number of children; building a child never changes the parent.
type Node struct {
	kind   Kind
	sql    string
	table  string
	alias  string
	parent *Node
}

// FromSQL returns a root node for sql. The text is not parsed until the
// node is planned.
func FromSQL(sql string) *Node {
	return &Node{kind: SQL, sql: sql}
}

// FromTable returns a root node reading table.
func FromTable(table string) *Node {
	return &Node{kind: Table, table: table}
}

// ValidAlias reports whether alias can name a relation.
func ValidAlias(alias string) bool {
	return aliasPattern.MatchString(alias)
}

// Query returns a child node evaluating sql with alias bound to n's rows.
func (n *Node) Query(alias, sql string) (*Node, error) {
	if !ValidAlias(alias) {
		return nil, dkerrors.DK2003(alias)
	}
	return &Node{kind: Query, sql: sql, alias: alias, parent: n}, nil
}

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// SQL returns the query text of SQL and Query nodes.
func (n *Node) SQL() string { return n.sql }

// Table returns the table name of Table nodes.
func (n *Node) Table() string { return n.table }

// Alias returns the name a Query node binds its parent to.
func (n *Node) Alias() string { return n.alias }

// Parent returns the parent of a Query node, or nil.
func (n *Node) Parent() *Node { return n.parent }

// Depth returns the number of nodes from n to its root, inclusive.
func (n *Node) Depth() int {
	d := 0
	for cur := n; cur != nil; cur = cur.parent {
		d++
	}
	return d
}

// Chain returns the nodes from the root down to n.
func (n *Node) Chain() []*Node {
	chain := make([]*Node, n.Depth())
	i := len(chain) - 1
	for cur := n; cur != nil; cur = cur.parent {
		chain[i] = cur
		i--
	}
	return chain
}

// String describes the chain, root first.
func (n *Node) String() string {
	parts := make([]string, 0, n.Depth())
	for _, cur := range n.Chain() {
		switch cur.kind {
		case SQL:
			parts = append(parts, fmt.Sprintf("sql(%q)", cur.sql))
		case Table:
			parts = append(parts, fmt.Sprintf("table(%s)", cur.table))
		case Query:
			parts = append(parts, fmt.Sprintf("query(%s, %q)", cur.alias, cur.sql))
		}
	}
	return strings.Join(parts, " -> ")
}
