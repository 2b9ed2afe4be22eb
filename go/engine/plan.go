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
	"context"
	"fmt"

	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// Plan represents a query execution plan.
// It contains the root primitive and metadata about the query.
type Plan struct {
	// Original is the SQL text the plan was built from.
	Original string

	// Primitive is the root execution primitive.
	Primitive Primitive
}

// NewPlan creates a new query plan.
func NewPlan(original string, primitive Primitive) *Plan {
	return &Plan{
		Original:  original,
		Primitive: primitive,
	}
}

// Execute runs the plan to completion. Partial output of a plan that fails
// or is interrupted is discarded.
func (p *Plan) Execute(ctx context.Context, ec *ExecContext) (*sqltypes.Result, error) {
	if err := ec.Check(ctx); err != nil {
		return nil, err
	}
	res, err := p.Primitive.Execute(ctx, ec)
	if err != nil {
		return nil, err
	}
	if err := ec.Check(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// Explain renders the primitive tree.
func (p *Plan) Explain() string {
	return Describe(p.Primitive)
}

// String returns a string representation of the plan for debugging.
func (p *Plan) String() string {
	return fmt.Sprintf("Plan{original=%q, primitive=%s}", p.Original, p.Primitive.String())
}
