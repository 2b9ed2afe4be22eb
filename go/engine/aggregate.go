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
	"slices"
	"sort"
	"strings"

	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// Aggregate is one aggregate function of a hash aggregation. Arg indexes
// the input column holding the function argument, or is -1 for count(*).
type Aggregate struct {
	Name     string
	Arg      int
	Distinct bool
	Typ      sqltypes.Type
}

func (a Aggregate) String() string {
	arg := "*"
	if a.Arg >= 0 {
		arg = fmt.Sprintf("#%d", a.Arg)
	}
	if a.Distinct {
		arg = "DISTINCT " + arg
	}
	return a.Name + "(" + arg + ")"
}

// IsAggregate reports whether name is an aggregate function.
func IsAggregate(name string) bool {
	switch name {
	case "count", "sum", "min", "max", "avg", "mean":
		return true
	}
	return false
}

// AggregateType returns the result type of an aggregate over arg.
func AggregateType(name string, arg sqltypes.Type) (sqltypes.Type, error) {
	switch name {
	case "count":
		return sqltypes.BigInt, nil
	case "sum":
		switch {
		case arg == sqltypes.Double:
			return sqltypes.Double, nil
		case arg.IsInteger() || arg == sqltypes.Null:
			return sqltypes.BigInt, nil
		}
	case "avg", "mean":
		if isNumericOrNull(arg) {
			return sqltypes.Double, nil
		}
	case "min", "max":
		return arg, nil
	}
	return sqltypes.Null, noOperator(name, arg)
}

type aggState interface {
	update(v sqltypes.Value) error
	merge(other aggState) error
	result() (sqltypes.Value, error)
}

func newAggState(a Aggregate) aggState {
	if a.Distinct {
		return &distinctAggState{agg: a, seen: make(map[string]sqltypes.Value)}
	}
	switch a.Name {
	case "count":
		return &countState{star: a.Arg < 0}
	case "sum":
		return &sumState{typ: a.Typ}
	case "min":
		return &extremeState{sign: -1, typ: a.Typ}
	case "max":
		return &extremeState{sign: 1, typ: a.Typ}
	}
	return &avgState{}
}

type countState struct {
	star bool
	n    int64
}

func (s *countState) update(v sqltypes.Value) error {
	if s.star || !v.IsNull() {
		s.n++
	}
	return nil
}

func (s *countState) merge(other aggState) error {
	s.n += other.(*countState).n
	return nil
}

func (s *countState) result() (sqltypes.Value, error) {
	return sqltypes.NewBigInt(s.n), nil
}

type sumState struct {
	typ  sqltypes.Type
	seen bool
	i    int64
	f    float64
}

func (s *sumState) update(v sqltypes.Value) error {
	if v.IsNull() {
		return nil
	}
	s.seen = true
	if s.typ == sqltypes.Double {
		s.f += v.Float()
		return nil
	}
	return s.add(v.Int())
}

func (s *sumState) add(n int64) error {
	sum := s.i + n
	if (s.i^sum)&(n^sum) < 0 {
		return dkerrors.DK3002(fmt.Sprintf("Overflow in sum of BIGINT (%d + %d)!", s.i, n))
	}
	s.i = sum
	return nil
}

func (s *sumState) merge(other aggState) error {
	o := other.(*sumState)
	if !o.seen {
		return nil
	}
	s.seen = true
	s.f += o.f
	return s.add(o.i)
}

func (s *sumState) result() (sqltypes.Value, error) {
	switch {
	case !s.seen:
		return sqltypes.TypedNull(s.typ), nil
	case s.typ == sqltypes.Double:
		return sqltypes.NewDouble(s.f), nil
	}
	return sqltypes.NewBigInt(s.i), nil
}

type avgState struct {
	sum float64
	n   int64
}

func (s *avgState) update(v sqltypes.Value) error {
	if !v.IsNull() {
		s.sum += v.Float()
		s.n++
	}
	return nil
}

func (s *avgState) merge(other aggState) error {
	o := other.(*avgState)
	s.sum += o.sum
	s.n += o.n
	return nil
}

func (s *avgState) result() (sqltypes.Value, error) {
	if s.n == 0 {
		return sqltypes.TypedNull(sqltypes.Double), nil
	}
	return sqltypes.NewDouble(s.sum / float64(s.n)), nil
}

type extremeState struct {
	sign int
	typ  sqltypes.Type
	best sqltypes.Value
	seen bool
}

func (s *extremeState) update(v sqltypes.Value) error {
	if v.IsNull() {
		return nil
	}
	if !s.seen {
		s.best, s.seen = v, true
		return nil
	}
	cmp, err := sqltypes.Compare(v, s.best)
	if err != nil {
		return err
	}
	if cmp*s.sign > 0 {
		s.best = v
	}
	return nil
}

func (s *extremeState) merge(other aggState) error {
	o := other.(*extremeState)
	if !o.seen {
		return nil
	}
	return s.update(o.best)
}

func (s *extremeState) result() (sqltypes.Value, error) {
	if !s.seen {
		return sqltypes.TypedNull(s.typ), nil
	}
	return s.best, nil
}

// distinctAggState collects distinct inputs and feeds them to the plain
// aggregate, in key order, when the result is requested.
type distinctAggState struct {
	agg  Aggregate
	seen map[string]sqltypes.Value
}

func (s *distinctAggState) update(v sqltypes.Value) error {
	if v.IsNull() {
		return nil
	}
	k := string(v.AppendKey(nil))
	if _, ok := s.seen[k]; !ok {
		s.seen[k] = v
	}
	return nil
}

func (s *distinctAggState) merge(other aggState) error {
	for k, v := range other.(*distinctAggState).seen {
		s.seen[k] = v
	}
	return nil
}

func (s *distinctAggState) result() (sqltypes.Value, error) {
	plain := s.agg
	plain.Distinct = false
	inner := newAggState(plain)
	keys := make([]string, 0, len(s.seen))
	for k := range s.seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := inner.update(s.seen[k]); err != nil {
			return sqltypes.Value{}, err
		}
	}
	return inner.result()
}

// AggregateSpec is a hash aggregation sink. The first Groups input columns
// form the grouping key.
type AggregateSpec struct {
	Groups int
	Aggs   []Aggregate
}

func (s *AggregateSpec) String() string {
	aggs := make([]string, len(s.Aggs))
	for i, a := range s.Aggs {
		aggs[i] = a.String()
	}
	return fmt.Sprintf("HASH_AGGREGATE(groups=%d, aggregates=[%s])", s.Groups, strings.Join(aggs, ", "))
}

func (s *AggregateSpec) newSink(ec *ExecContext, workers int) Sink {
	parts := make([]map[string]*group, workers)
	for i := range parts {
		parts[i] = make(map[string]*group)
	}
	return &aggregateSink{spec: s, ec: ec, parts: parts}
}

type group struct {
	keys   sqltypes.Row
	states []aggState
	seq    int64
}

type aggregateSink struct {
	spec  *AggregateSpec
	ec    *ExecContext
	parts []map[string]*group
}

func (s *aggregateSink) newGroup(keys sqltypes.Row, seq int64) *group {
	g := &group{keys: keys, states: make([]aggState, len(s.spec.Aggs)), seq: seq}
	for i, a := range s.spec.Aggs {
		g.states[i] = newAggState(a)
	}
	return g
}

func (s *aggregateSink) Consume(_ context.Context, worker int, _ int64, c *Chunk) (bool, error) {
	groups := s.parts[worker]
	var key []byte
	for i := range c.Len {
		key = key[:0]
		for j := range s.spec.Groups {
			key = c.Columns[j][i].AppendKey(key)
		}
		g, ok := groups[string(key)]
		if !ok {
			keys := make(sqltypes.Row, s.spec.Groups)
			for j := range keys {
				keys[j] = c.Columns[j][i]
			}
			if err := s.ec.Memory.Reserve(rowSize(keys) + 64*len(s.spec.Aggs)); err != nil {
				return false, err
			}
			g = s.newGroup(keys, c.Seq[i])
			groups[string(key)] = g
		}
		g.seq = min(g.seq, c.Seq[i])
		for k, a := range s.spec.Aggs {
			var v sqltypes.Value
			if a.Arg >= 0 {
				v = c.Columns[a.Arg][i]
			}
			if err := g.states[k].update(v); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

func (s *aggregateSink) Finalize(ctx context.Context) ([]sqltypes.Row, error) {
	merged, err := mergeParts(ctx, s.ec, s.parts, func(dst, src *group) error {
		dst.seq = min(dst.seq, src.seq)
		for i := range dst.states {
			if err := dst.states[i].merge(src.states[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(merged) == 0 && s.spec.Groups == 0 {
		merged[""] = s.newGroup(nil, 0)
	}
	groups := make([]*group, 0, len(merged))
	for _, g := range merged {
		groups = append(groups, g)
	}
	slices.SortFunc(groups, func(a, b *group) int { return cmp.Compare(a.seq, b.seq) })
	rows := make([]sqltypes.Row, len(groups))
	for i, g := range groups {
		if i%ChunkSize == 0 {
			if err := s.ec.Check(ctx); err != nil {
				return nil, err
			}
		}
		row := make(sqltypes.Row, 0, len(g.keys)+len(g.states))
		row = append(row, g.keys...)
		for _, st := range g.states {
			v, err := st.result()
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		rows[i] = row
	}
	return rows, nil
}

// mergeParts folds per-worker maps into the first one, calling combine for
// keys present in both. It checkpoints every ChunkSize entries.
func mergeParts[V any](ctx context.Context, ec *ExecContext, parts []map[string]V, combine func(dst, src V) error) (map[string]V, error) {
	dst := parts[0]
	n := 0
	for _, part := range parts[1:] {
		for k, v := range part {
			n++
			if n%ChunkSize == 0 {
				if err := ec.Check(ctx); err != nil {
					return nil, err
				}
			}
			existing, ok := dst[k]
			if !ok {
				dst[k] = v
				continue
			}
			if err := combine(existing, v); err != nil {
				return nil, err
			}
		}
	}
	return dst, nil
}
