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
	"sync/atomic"

	"github.com/duckling-db/duckling/go/common/sqltypes"
)

// Pipeline streams a source through an optional filter and a projection
// into a sink. Workers pull morsels from a shared cursor; every morsel is
// bracketed by checkpoints. Sink rows wider than Fields are cut down to
// them, which drops sort keys that are not part of the select list.
type Pipeline struct {
	Source  Source
	Filter  Expr
	Project []Expr
	Fields  []sqltypes.Field
	Sink    SinkSpec
}

// Execute runs the pipeline.
func (p *Pipeline) Execute(ctx context.Context, ec *ExecContext) (*sqltypes.Result, error) {
	if err := ec.Check(ctx); err != nil {
		return nil, err
	}
	scan, err := p.Source.Open(ctx, ec)
	if err != nil {
		return nil, err
	}
	morsels := scan.Morsels()
	ec.Progress.AddTotal(morsels)

	workers := int(min(int64(ec.Threads), max(morsels, 1)))
	sink := p.Sink.newSink(ec, workers)
	var next atomic.Int64
	var stopped atomic.Bool
	err = runWorkers(ctx, workers, func(ctx context.Context, worker int) error {
		for !stopped.Load() {
			m := next.Add(1) - 1
			if m >= morsels {
				return nil
			}
			if err := ec.Check(ctx); err != nil {
				return err
			}
			stop, err := p.process(ctx, ec, scan, sink, worker, m)
			if err != nil {
				return err
			}
			ec.Progress.Advance(1)
			if stop {
				stopped.Store(true)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ec.Check(ctx); err != nil {
		return nil, err
	}
	rows, err := sink.Finalize(ctx)
	if err != nil {
		return nil, err
	}
	if err := ec.Check(ctx); err != nil {
		return nil, err
	}
	visible := len(p.Fields)
	for i, row := range rows {
		if len(row) > visible {
			rows[i] = row[:visible:visible]
		}
	}
	return sqltypes.NewResult(p.Fields, rows), nil
}

func (p *Pipeline) process(ctx context.Context, ec *ExecContext, scan Scan, sink Sink, worker int, m int64) (bool, error) {
	chunk, err := scan.Morsel(m)
	if err != nil {
		return false, err
	}
	if p.Filter != nil {
		if chunk, err = filterChunk(chunk, p.Filter); err != nil {
			return false, err
		}
		if err := ec.Check(ctx); err != nil {
			return false, err
		}
	}
	if chunk, err = projectChunk(chunk, p.Project); err != nil {
		return false, err
	}
	if err := ec.Check(ctx); err != nil {
		return false, err
	}
	return sink.Consume(ctx, worker, m, chunk)
}

// Inputs returns the primitives the source reads.
func (p *Pipeline) Inputs() []Primitive {
	return p.Source.Inputs()
}

func (p *Pipeline) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PIPELINE %s <- %s", p.Sink, p.Source)
	if p.Filter != nil {
		fmt.Fprintf(&b, " filter=%s", p.Filter)
	}
	exprs := make([]string, len(p.Project))
	for i, e := range p.Project {
		exprs[i] = e.String()
	}
	fmt.Fprintf(&b, " project=[%s]", strings.Join(exprs, ", "))
	return b.String()
}

var _ Primitive = (*Pipeline)(nil)
