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
	"cmp"
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// SinkSpec describes the sink of a pipeline and creates one per execution.
type SinkSpec interface {
	newSink(ec *ExecContext, workers int) Sink
	String() string
}

// Sink accumulates the chunks a pipeline's workers produce.
type Sink interface {
	// Consume adds the chunk produced from morsel m by the given worker.
	// Returning true tells the pipeline no further morsels are needed.
	Consume(ctx context.Context, worker int, m int64, c *Chunk) (bool, error)

	// Finalize returns the sink's rows once every worker has returned.
	Finalize(ctx context.Context) ([]sqltypes.Row, error)
}

// Bounds is a LIMIT / OFFSET pair. A negative Limit means no limit.
type Bounds struct {
	Limit  int64
	Offset int64
}

// NoBounds keeps every row.
var NoBounds = Bounds{Limit: -1}

// need returns the number of leading rows required, or -1 for all. The sum
// saturates at math.MaxInt64.
func (b Bounds) need() int64 {
	if b.Limit < 0 {
		return -1
	}
	if b.Limit > math.MaxInt64-b.Offset {
		return math.MaxInt64
	}
	return b.Limit + b.Offset
}

func (b Bounds) apply(rows []sqltypes.Row) []sqltypes.Row {
	if b.Offset >= int64(len(rows)) {
		return rows[:0]
	}
	rows = rows[b.Offset:]
	if b.Limit >= 0 && b.Limit < int64(len(rows)) {
		rows = rows[:b.Limit]
	}
	return rows
}

func (b Bounds) String() string {
	switch {
	case b.Limit < 0 && b.Offset == 0:
		return ""
	case b.Limit < 0:
		return fmt.Sprintf("offset=%d", b.Offset)
	case b.Offset == 0:
		return fmt.Sprintf("limit=%d", b.Limit)
	}
	return fmt.Sprintf("limit=%d offset=%d", b.Limit, b.Offset)
}

// describe renders name(parts..., bounds), skipping empty parts.
func describe(name string, b Bounds, parts ...string) string {
	parts = append(parts, b.String())
	parts = slices.DeleteFunc(parts, func(p string) bool { return p == "" })
	if len(parts) == 0 {
		return name
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// CollectSpec keeps rows in source order.
type CollectSpec struct {
	Bounds Bounds
}

func (s *CollectSpec) String() string {
	return describe("COLLECT", s.Bounds)
}

func (s *CollectSpec) newSink(ec *ExecContext, _ int) Sink {
	return &collectSink{ec: ec, bounds: s.Bounds, need: s.Bounds.need(), chunks: make(map[int64]*Chunk)}
}

type collectSink struct {
	ec     *ExecContext
	bounds Bounds
	need   int64

	mu     sync.Mutex
	chunks map[int64]*Chunk
	// next is the first morsel not yet received; prefix counts the rows of
	// morsels [0, next).
	next   int64
	prefix int64
}

func (s *collectSink) Consume(_ context.Context, _ int, m int64, c *Chunk) (bool, error) {
	if err := s.ec.Memory.Reserve(c.memSize()); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[m] = c
	if s.need < 0 {
		return false, nil
	}
	for {
		ch, ok := s.chunks[s.next]
		if !ok {
			break
		}
		s.prefix += int64(ch.Len)
		s.next++
	}
	return s.prefix >= s.need, nil
}

func (s *collectSink) Finalize(ctx context.Context) ([]sqltypes.Row, error) {
	var rows []sqltypes.Row
	need := s.need
	for _, m := range slices.Sorted(maps.Keys(s.chunks)) {
		if err := s.ec.Check(ctx); err != nil {
			return nil, err
		}
		c := s.chunks[m]
		for i := range c.Len {
			if need >= 0 && int64(len(rows)) >= need {
				return s.bounds.apply(rows), nil
			}
			rows = append(rows, c.Row(i))
		}
	}
	return s.bounds.apply(rows), nil
}

// SortKey orders rows by one column.
type SortKey struct {
	Index      int
	Desc       bool
	NullsFirst bool
}

func (k SortKey) String() string {
	s := fmt.Sprintf("#%d", k.Index)
	if k.Desc {
		s += " DESC"
	}
	if k.NullsFirst {
		return s + " NULLS FIRST"
	}
	return s + " NULLS LAST"
}

func keysString(keys []SortKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

// seqRow is a row with its source ordinal, the final tie breaker of every
// ordering so results do not depend on thread count.
type seqRow struct {
	row sqltypes.Row
	seq int64
}

// compareKey orders two values of the column k sorts by.
func compareKey(k SortKey, av, bv sqltypes.Value) int {
	an, bn := av.IsNull(), bv.IsNull()
	switch {
	case an && bn:
		return 0
	case an && k.NullsFirst, bn && !k.NullsFirst:
		return -1
	case an, bn:
		return 1
	}
	// Columns have a single type, so values always compare.
	c, _ := sqltypes.Compare(av, bv)
	if k.Desc {
		return -c
	}
	return c
}

func compareRows(keys []SortKey, a, b seqRow) int {
	for _, k := range keys {
		if c := compareKey(k, a.row[k.Index], b.row[k.Index]); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.seq, b.seq)
}

func chunkRows(c *Chunk) []seqRow {
	rows := make([]seqRow, c.Len)
	for i := range c.Len {
		rows[i] = seqRow{row: c.Row(i), seq: c.Seq[i]}
	}
	return rows
}

func stripSeq(rows []seqRow) []sqltypes.Row {
	out := make([]sqltypes.Row, len(rows))
	for i, r := range rows {
		out[i] = r.row
	}
	return out
}
