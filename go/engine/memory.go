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
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/duckling-db/duckling/go/common/dkerrors"
)

// MemoryAccountant tracks the approximate bytes retained by the sinks of
// one execution against memory_limit.
type MemoryAccountant struct {
	limit uint64
	used  atomic.Uint64
}

// NewMemoryAccountant returns an accountant enforcing limit. A zero limit
// disables enforcement.
func NewMemoryAccountant(limit uint64) *MemoryAccountant {
	return &MemoryAccountant{limit: limit}
}

// Reserve accounts for n more bytes, failing once the limit is exceeded.
func (m *MemoryAccountant) Reserve(n int) error {
	size := uint64(n)
	used := m.used.Add(size)
	if m.limit == 0 || used <= m.limit {
		return nil
	}
	m.used.Add(^(size - 1))
	return dkerrors.DK4001(humanize.IBytes(size), humanize.IBytes(used-size), humanize.IBytes(m.limit))
}

// Release returns n bytes.
func (m *MemoryAccountant) Release(n int) {
	m.used.Add(^(uint64(n) - 1))
}
