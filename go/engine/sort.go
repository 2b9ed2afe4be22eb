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
	"slices"

	"github.com/emirpasic/gods/trees/binaryheap"

	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// SortSpec orders rows by Keys. With a limit it keeps only the best
// offset+limit rows per worker.
type SortSpec struct {
	Keys   []SortKey
	Bounds Bounds
}

func (s *SortSpec) String() string {
	if s.Bounds.Limit >= 0 {
		return describe("TOP_N", s.Bounds, keysString(s.Keys))
	}
	return describe("ORDER_BY", s.Bounds, keysString(s.Keys))
}

func (s *SortSpec) newSink(ec *ExecContext, workers int) Sink {
	if s.Bounds.Limit >= 0 {
		heaps := make([]*binaryheap.Heap, workers)
		for i := range heaps {
			// The worst retained row sits on top.
			heaps[i] = binaryheap.NewWith(func(a, b any) int {
				return -compareRows(s.Keys, a.(seqRow), b.(seqRow))
			})
		}
		return &topNSink{spec: s, ec: ec, k: s.Bounds.need(), heaps: heaps}
	}
	return &sortSink{spec: s, ec: ec, runs: make([][][]seqRow, workers)}
}

type topNSink struct {
	spec  *SortSpec
	ec    *ExecContext
	k     int64
	heaps []*binaryheap.Heap
}

func (s *topNSink) Consume(_ context.Context, worker int, _ int64, c *Chunk) (bool, error) {
	if s.k == 0 {
		return true, nil
	}
	h := s.heaps[worker]
	for i := range c.Len {
		if s.k < 0 || int64(h.Size()) < s.k {
			r := seqRow{row: c.Row(i), seq: c.Seq[i]}
			if err := s.ec.Memory.Reserve(rowSize(r.row)); err != nil {
				return false, err
			}
			h.Push(r)
			continue
		}
		top, _ := h.Peek()
		worst := top.(seqRow)
		if !s.beats(c, i, worst) {
			continue
		}
		h.Pop()
		s.ec.Memory.Release(rowSize(worst.row))
		r := seqRow{row: c.Row(i), seq: c.Seq[i]}
		if err := s.ec.Memory.Reserve(rowSize(r.row)); err != nil {
			return false, err
		}
		h.Push(r)
	}
	return false, nil
}

// beats reports whether row i of c sorts before r.
func (s *topNSink) beats(c *Chunk, i int, r seqRow) bool {
	for _, k := range s.spec.Keys {
		if cmp := compareKey(k, c.Columns[k.Index][i], r.row[k.Index]); cmp != 0 {
			return cmp < 0
		}
	}
	return c.Seq[i] < r.seq
}

func (s *topNSink) Finalize(ctx context.Context) ([]sqltypes.Row, error) {
	var rows []seqRow
	for _, h := range s.heaps {
		if err := s.ec.Check(ctx); err != nil {
			return nil, err
		}
		for _, v := range h.Values() {
			rows = append(rows, v.(seqRow))
		}
	}
	slices.SortFunc(rows, func(a, b seqRow) int { return compareRows(s.spec.Keys, a, b) })
	return s.spec.Bounds.apply(stripSeq(rows)), nil
}

// sortSink sorts every morsel into a run and k-way merges the runs.
type sortSink struct {
	spec *SortSpec
	ec   *ExecContext
	runs [][][]seqRow
}

func (s *sortSink) Consume(_ context.Context, worker int, _ int64, c *Chunk) (bool, error) {
	if c.Len == 0 {
		return false, nil
	}
	if err := s.ec.Memory.Reserve(c.memSize()); err != nil {
		return false, err
	}
	run := chunkRows(c)
	slices.SortFunc(run, func(a, b seqRow) int { return compareRows(s.spec.Keys, a, b) })
	s.runs[worker] = append(s.runs[worker], run)
	return false, nil
}

type cursor struct {
	run []seqRow
	pos int
}

func (s *sortSink) Finalize(ctx context.Context) ([]sqltypes.Row, error) {
	h := binaryheap.NewWith(func(a, b any) int {
		ca, cb := a.(*cursor), b.(*cursor)
		return compareRows(s.spec.Keys, ca.run[ca.pos], cb.run[cb.pos])
	})
	total := 0
	for _, runs := range s.runs {
		for _, run := range runs {
			h.Push(&cursor{run: run})
			total += len(run)
		}
	}
	rows := make([]sqltypes.Row, 0, total)
	for !h.Empty() {
		if len(rows)%ChunkSize == 0 {
			if err := s.ec.Check(ctx); err != nil {
				return nil, err
			}
		}
		top, _ := h.Pop()
		c := top.(*cursor)
		rows = append(rows, c.run[c.pos].row)
		if c.pos++; c.pos < len(c.run) {
			h.Push(c)
		}
	}
	return s.spec.Bounds.apply(rows), nil
}
