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
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Progress counts processed morsels. Workers only touch the atomic
// counters; drawing happens on the goroutine started by Render.
type Progress struct {
	total atomic.Int64
	done  atomic.Int64
}

// AddTotal announces n more morsels.
func (p *Progress) AddTotal(n int64) {
	p.total.Add(n)
}

// Advance marks n morsels as processed.
func (p *Progress) Advance(n int64) {
	p.done.Add(n)
}

// Counts returns processed and announced morsels.
func (p *Progress) Counts() (done, total int64) {
	return p.done.Load(), p.total.Load()
}

// Render draws a progress bar on w once the execution has run for delay,
// refreshing every interval. The returned stop function clears the bar and
// waits for the renderer to exit.
func (p *Progress) Render(w io.Writer, delay, interval time.Duration) (stop func()) {
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-time.After(delay):
		case <-quit:
			return
		}
		done, total := p.Counts()
		bar := progressbar.NewOptions64(max(total, 1),
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("query"),
			progressbar.OptionThrottle(interval),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetPredictTime(true),
		)
		_ = bar.Set64(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				done, total := p.Counts()
				bar.ChangeMax64(max(total, 1))
				_ = bar.Set64(min(done, max(total, 1)))
			case <-quit:
				_ = bar.Clear()
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			wg.Wait()
		})
	}
}
