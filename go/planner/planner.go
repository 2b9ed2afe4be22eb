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

// Package planner turns SQL text and relation graphs into engine plans.
// It parses with the Postgres grammar, binds names against the relation
// aliases in scope and the catalog, and picks the pipeline sinks that
// implement each clause.
package planner

import (
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/duckling-db/duckling/go/common/catalog"
	"github.com/duckling-db/duckling/go/common/parser"
	"github.com/duckling-db/duckling/go/common/settings"
	"github.com/duckling-db/duckling/go/common/sqltypes"
	"github.com/duckling-db/duckling/go/engine"
	"github.com/duckling-db/duckling/go/relation"
)

// DefaultCacheSize is the number of parsed SQL texts the planner keeps.
const DefaultCacheSize = 256

// Planner is responsible for creating query execution plans.
type Planner struct {
	catalog  *catalog.Catalog
	settings *settings.Settings

	// cache maps SQL text to its parsed statements. Statements are never
	// modified after parsing, so entries are shared between plans.
	cache *lru.Cache[string, []parser.Statement]

	logger *slog.Logger
}

// NewPlanner creates a new query planner over the given catalog and session
// settings.
func NewPlanner(cat *catalog.Catalog, set *settings.Settings, logger *slog.Logger) *Planner {
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, []parser.Statement](DefaultCacheSize)
	return &Planner{
		catalog:  cat,
		settings: set,
		cache:    cache,
		logger:   logger,
	}
}

// Binding names the rows of a sub-plan inside a scope.
type Binding struct {
	Name   string
	Plan   engine.Primitive
	Fields []sqltypes.Field
}

// Scope is a chain of bindings. Inner bindings shadow outer ones. The nil
// Scope is empty.
type Scope struct {
	parent   *Scope
	bindings map[string]*Binding
}

// With returns a child scope in which b is visible.
func (s *Scope) With(b *Binding) *Scope {
	return &Scope{parent: s, bindings: map[string]*Binding{strings.ToLower(b.Name): b}}
}

// Lookup finds the innermost binding called name.
func (s *Scope) Lookup(name string) (*Binding, bool) {
	key := strings.ToLower(name)
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.bindings[key]; ok {
			return b, true
		}
	}
	return nil, false
}

// Planned is a planned statement or relation.
type Planned struct {
	Primitive engine.Primitive

	// Fields describes the output rows. It is nil for statements that do
	// not produce rows.
	Fields []sqltypes.Field
}

// ProducesRows reports whether executing the plan yields a row set.
func (p *Planned) ProducesRows() bool {
	return p.Fields != nil
}

// Parse returns the statements of sql, using the parse cache.
func (p *Planner) Parse(sql string) ([]parser.Statement, error) {
	if stmts, ok := p.cache.Get(sql); ok {
		return stmts, nil
	}
	stmts, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	p.cache.Add(sql, stmts)
	return stmts, nil
}

// PlanSQL plans every statement of sql in scope. Several statements run in
// order as a Sequence that yields the result of the last one.
func (p *Planner) PlanSQL(sql string, scope *Scope) (*Planned, error) {
	p.logger.Debug("planning query", "query", sql)
	stmts, err := p.Parse(sql)
	if err != nil {
		return nil, err
	}
	planned := make([]*Planned, len(stmts))
	for i, stmt := range stmts {
		if planned[i], err = p.PlanStatement(stmt, scope); err != nil {
			return nil, err
		}
	}
	out := planned[0]
	if len(planned) > 1 {
		prims := make([]engine.Primitive, len(planned))
		for i, pl := range planned {
			prims[i] = pl.Primitive
		}
		out = &Planned{Primitive: engine.NewSequence(prims), Fields: planned[len(planned)-1].Fields}
	}
	p.logger.Debug("plan created", "query", sql, "plan", out.Primitive.String())
	return out, nil
}

// PlanRelation plans a relation graph from its root down. A Query node
// plans its SQL in a scope where the alias names the parent's plan. When
// that SQL produces no rows (an INSERT, say), the statement runs first and
// the node yields the parent's rows.
func (p *Planner) PlanRelation(n *relation.Node) (*Planned, error) {
	switch n.Kind() {
	case relation.SQL:
		return p.PlanSQL(n.SQL(), nil)
	case relation.Table:
		return p.planTable(n.Table())
	}
	parent, err := p.PlanRelation(n.Parent())
	if err != nil {
		return nil, err
	}
	var scope *Scope
	if parent.ProducesRows() {
		scope = scope.With(&Binding{Name: n.Alias(), Plan: parent.Primitive, Fields: parent.Fields})
	}
	planned, err := p.PlanSQL(n.SQL(), scope)
	if err != nil {
		return nil, err
	}
	if planned.ProducesRows() {
		return planned, nil
	}
	return &Planned{
		Primitive: engine.NewSequence([]engine.Primitive{planned.Primitive, parent.Primitive}),
		Fields:    parent.Fields,
	}, nil
}

// planTable scans a table in insertion order.
func (p *Planner) planTable(name string) (*Planned, error) {
	t, err := p.catalog.Table(name)
	if err != nil {
		return nil, err
	}
	cols := t.Columns()
	fields := make([]sqltypes.Field, len(cols))
	project := make([]engine.Expr, len(cols))
	for i, c := range cols {
		fields[i] = sqltypes.Field{Name: c.Name, Type: c.Type}
		project[i] = &engine.ColumnExpr{Index: i, Name: c.Name, Typ: c.Type}
	}
	return &Planned{
		Primitive: &engine.Pipeline{
			Source:  engine.NewTableSource(t, fields),
			Project: project,
			Fields:  fields,
			Sink:    &engine.CollectSpec{Bounds: engine.NoBounds},
		},
		Fields: fields,
	}, nil
}
