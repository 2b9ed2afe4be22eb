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

	"github.com/sourcegraph/conc/pool"
)

// runWorkers runs fn on n workers and returns the first error. The first
// failure cancels the context handed to the other workers, whose next
// checkpoint then stops them. With a single worker fn runs on the calling
// goroutine.
func runWorkers(ctx context.Context, n int, fn func(ctx context.Context, worker int) error) error {
	if n <= 1 {
		return fn(ctx, 0)
	}
	p := pool.New().
		WithMaxGoroutines(n).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for w := range n {
		p.Go(func(ctx context.Context) error {
			return fn(ctx, w)
		})
	}
	return p.Wait()
}
