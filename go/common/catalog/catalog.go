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

// Package catalog keeps the tables and registered frames of a connection.
// Names are case-insensitive.
package catalog

import (
	"sort"
	"strings"
	"sync"

	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// Catalog maps names to tables.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{tables: make(map[string]*Table)}
}

func key(name string) string {
	return strings.ToLower(name)
}

// CreateTable adds an empty base table.
func (c *Catalog) CreateTable(name string, columns []Column, ifNotExists bool) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.tables[key(name)]; ok {
		if ifNotExists && !existing.readOnly {
			return existing, nil
		}
		return nil, dkerrors.DK1002(name)
	}
	t := NewTable(name, columns, false)
	c.tables[key(name)] = t
	return t, nil
}

// DropTable removes a base table.
func (c *Catalog) DropTable(name string, ifExists bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[key(name)]
	switch {
	case !ok && ifExists:
		return nil
	case !ok:
		return dkerrors.DK1001(name)
	case t.readOnly:
		return dkerrors.DK1003(name)
	}
	delete(c.tables, key(name))
	return nil
}

// RegisterFrame makes a read-only table of the given rows queryable under
// name, replacing any frame previously registered with that name.
func (c *Catalog) RegisterFrame(name string, columns []Column, rows []sqltypes.Row) error {
	t := NewTable(name, columns, true)
	if err := t.load(rows); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.tables[key(name)]; ok && !existing.readOnly {
		return dkerrors.DK1002(name)
	}
	c.tables[key(name)] = t
	return nil
}

// Unregister removes a registered frame.
func (c *Catalog) Unregister(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[key(name)]
	if !ok || !t.readOnly {
		return dkerrors.DK1001(name)
	}
	delete(c.tables, key(name))
	return nil
}

// Table looks up a table or frame.
func (c *Catalog) Table(name string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[key(name)]
	if !ok {
		return nil, dkerrors.DK1001(name)
	}
	return t, nil
}

// Names returns every table and frame name, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for _, t := range c.tables {
		names = append(names, t.name)
	}
	sort.Strings(names)
	return names
}
