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

package duckling

import (
	"context"
	"fmt"

	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/sqltypes"
	"github.com/duckling-db/duckling/go/relation"
)

// Relation is an immutable, lazily evaluated query. Every terminal call
// plans and runs the whole chain again.
type Relation struct {
	conn *Conn
	node *relation.Node
}

// Query returns a relation that evaluates sql with alias naming the rows
// of r. r itself is unchanged and can still be used on its own.
func (r *Relation) Query(alias, sql string) (*Relation, error) {
	child, err := r.node.Query(alias, sql)
	if err != nil {
		return nil, err
	}
	return &Relation{conn: r.conn, node: child}, nil
}

// Execute runs the relation and returns its rows. If the last query of the
// chain produces no rows, its statement still runs and the rows of its
// parent are returned.
func (r *Relation) Execute(ctx context.Context) (*Result, error) {
	if err := r.conn.check(); err != nil {
		return nil, err
	}
	return r.conn.exec.ExecuteRelation(ctx, r.node)
}

// Fetchall runs the relation and returns its rows as Go values.
func (r *Relation) Fetchall(ctx context.Context) ([][]any, error) {
	res, err := r.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return res.Fetchall(), nil
}

// Insert appends one row to the table r reads. Only relations returned by
// Conn.Table accept inserts.
func (r *Relation) Insert(ctx context.Context, values ...any) error {
	if err := r.conn.check(); err != nil {
		return err
	}
	if r.node.Kind() != relation.Table {
		return dkerrors.DK2004()
	}
	if ctx.Err() != nil {
		return dkerrors.ErrInterrupted
	}
	t, err := r.conn.catalog.Table(r.node.Table())
	if err != nil {
		return err
	}
	if len(values) != len(t.Columns()) {
		return dkerrors.DK2002(fmt.Sprintf("table %s has %d columns but %d values were supplied", t.Name(), len(t.Columns()), len(values)))
	}
	row := make(sqltypes.Row, len(values))
	for i, v := range values {
		if row[i], err = sqltypes.FromNative(v); err != nil {
			return err
		}
	}
	return t.Append([]sqltypes.Row{row})
}

// Explain returns the physical plan the relation would run.
func (r *Relation) Explain(ctx context.Context) (string, error) {
	if err := r.conn.check(); err != nil {
		return "", err
	}
	if ctx.Err() != nil {
		return "", dkerrors.ErrInterrupted
	}
	return r.conn.exec.Explain(r.node)
}

// String describes the chain of queries r was built from.
func (r *Relation) String() string {
	return r.node.String()
}
