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

// Package cancel provides the per-execution cancellation token polled by the
// engine's checkpoints, and a bridge from OS signals to token holders.
package cancel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/duckling-db/duckling/go/common/dkerrors"
)

// Token is a one-shot interrupt flag owned by a single execution. It is set
// from any goroutine and polled by the workers running the execution.
type Token struct {
	interrupted atomic.Bool
	at          atomic.Int64
	once        sync.Once
	done        chan struct{}
}

// NewToken returns an unset token.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Interrupt sets the token. It returns true if this call set it.
func (t *Token) Interrupt() bool {
	set := false
	t.once.Do(func() {
		t.at.Store(time.Now().UnixNano())
		t.interrupted.Store(true)
		close(t.done)
		set = true
	})
	return set
}

// Interrupted reports whether the token has been set. It is cheap enough to
// call once per row batch.
func (t *Token) Interrupted() bool {
	return t.interrupted.Load()
}

// Done returns a channel closed when the token is set.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// InterruptedAt returns the time the token was set, or the zero time.
func (t *Token) InterruptedAt() time.Time {
	if !t.Interrupted() {
		return time.Time{}
	}
	return time.Unix(0, t.at.Load())
}

// Check is a checkpoint: it returns ErrInterrupted if the token is set or
// ctx is done.
func (t *Token) Check(ctx context.Context) error {
	if t.interrupted.Load() {
		return dkerrors.ErrInterrupted
	}
	if ctx.Err() != nil {
		return dkerrors.ErrInterrupted
	}
	return nil
}

// Watch sets the token when ctx is done. The returned stop function releases
// the watcher and must be called once the execution finishes.
func (t *Token) Watch(ctx context.Context) (stop func()) {
	if ctx.Done() == nil {
		return func() {}
	}
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			t.Interrupt()
		case <-t.done:
		case <-quit:
		}
	}()
	return func() {
		close(quit)
		wg.Wait()
	}
}
