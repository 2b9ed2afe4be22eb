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
	"strings"

	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// Sequence executes multiple primitives in order and returns the result of
// the last one. If any primitive fails, execution stops and returns the
// error.
type Sequence struct {
	Primitives []Primitive
}

// NewSequence creates a new Sequence primitive.
func NewSequence(primitives []Primitive) *Sequence {
	return &Sequence{Primitives: primitives}
}

// Execute runs each primitive in order with a checkpoint before each one.
func (s *Sequence) Execute(ctx context.Context, ec *ExecContext) (*sqltypes.Result, error) {
	var res *sqltypes.Result
	for _, p := range s.Primitives {
		if err := ec.Check(ctx); err != nil {
			return nil, err
		}
		var err error
		if res, err = p.Execute(ctx, ec); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Inputs returns the sequenced primitives.
func (s *Sequence) Inputs() []Primitive {
	return s.Primitives
}

// String returns a string representation of the sequence for debugging.
func (s *Sequence) String() string {
	return fmt.Sprintf("SEQUENCE(%d)", len(s.Primitives))
}

// Ensure Sequence implements Primitive interface.
var _ Primitive = (*Sequence)(nil)

// Describe renders the primitive tree, one primitive per line.
func Describe(p Primitive) string {
	var b strings.Builder
	describeTree(&b, p, 0)
	return strings.TrimSuffix(b.String(), "\n")
}

func describeTree(b *strings.Builder, p Primitive, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(p.String())
	b.WriteByte('\n')
	for _, in := range p.Inputs() {
		describeTree(b, in, depth+1)
	}
}
