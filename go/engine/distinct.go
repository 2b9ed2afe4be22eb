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
	"slices"

	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// DistinctSpec keeps one row per distinct value of the On columns: the
// first by Order, then by source order. This implements both DISTINCT and
// DISTINCT ON. Surviving rows are emitted in Order.
type DistinctSpec struct {
	On     []int
	Order  []SortKey
	Bounds Bounds
}

func (s *DistinctSpec) String() string {
	return describe("DISTINCT", s.Bounds, fmt.Sprintf("on=%v", s.On), keysString(s.Order))
}

func (s *DistinctSpec) newSink(ec *ExecContext, workers int) Sink {
	parts := make([]map[string]*seqRow, workers)
	for i := range parts {
		parts[i] = make(map[string]*seqRow)
	}
	return &distinctSink{spec: s, ec: ec, parts: parts}
}

type distinctSink struct {
	spec  *DistinctSpec
	ec    *ExecContext
	parts []map[string]*seqRow
}

// beats reports whether row i of c is preferred over r.
func (s *distinctSink) beats(c *Chunk, i int, r *seqRow) bool {
	for _, k := range s.spec.Order {
		if cmp := compareKey(k, c.Columns[k.Index][i], r.row[k.Index]); cmp != 0 {
			return cmp < 0
		}
	}
	return c.Seq[i] < r.seq
}

func (s *distinctSink) Consume(_ context.Context, worker int, _ int64, c *Chunk) (bool, error) {
	seen := s.parts[worker]
	var key []byte
	for i := range c.Len {
		key = key[:0]
		for _, j := range s.spec.On {
			key = c.Columns[j][i].AppendKey(key)
		}
		existing, ok := seen[string(key)]
		switch {
		case !ok:
			r := &seqRow{row: c.Row(i), seq: c.Seq[i]}
			if err := s.ec.Memory.Reserve(rowSize(r.row) + len(key)); err != nil {
				return false, err
			}
			seen[string(key)] = r
		case s.beats(c, i, existing):
			*existing = seqRow{row: c.Row(i), seq: c.Seq[i]}
		}
	}
	return false, nil
}

func (s *distinctSink) Finalize(ctx context.Context) ([]sqltypes.Row, error) {
	merged, err := mergeParts(ctx, s.ec, s.parts, func(dst, src *seqRow) error {
		if compareRows(s.spec.Order, *src, *dst) < 0 {
			*dst = *src
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	rows := make([]seqRow, 0, len(merged))
	for _, r := range merged {
		rows = append(rows, *r)
	}
	if err := s.ec.Check(ctx); err != nil {
		return nil, err
	}
	slices.SortFunc(rows, func(a, b seqRow) int { return compareRows(s.spec.Order, a, b) })
	return s.spec.Bounds.apply(stripSeq(rows)), nil
}
