// Copyright 2019 The Vitess Authors.
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
//
// Modifications Copyright 2025 Supabase, Inc.

package event

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHooks(t *testing.T) {
	var count atomic.Int32
	var hooks Hooks
	hooks.Add(func() { count.Add(1) })
	hooks.Add(func() { count.Add(1) })

	hooks.Fire()
	assert.Equal(t, int32(2), count.Load())

	hooks.Fire()
	assert.Equal(t, int32(4), count.Load())
}

func TestErrorHooksAllSuccess(t *testing.T) {
	var count atomic.Int32
	var hooks ErrorHooks
	for range 3 {
		hooks.Add(func() error { count.Add(1); return nil })
	}

	require.NoError(t, hooks.Fire())
	assert.Equal(t, int32(3), count.Load())
}

func TestErrorHooksJoinsErrors(t *testing.T) {
	closeConn := errors.New("close connection")
	stopServer := errors.New("stop metrics server")
	var ran atomic.Int32
	var hooks ErrorHooks

	hooks.Add(func() error { ran.Add(1); return closeConn })
	hooks.Add(func() error { ran.Add(1); return nil })
	hooks.Add(func() error { ran.Add(1); return stopServer })

	err := hooks.Fire()
	require.Error(t, err)
	assert.ErrorIs(t, err, closeConn)
	assert.ErrorIs(t, err, stopServer)
	assert.Equal(t, int32(3), ran.Load(), "a failing hook does not skip the rest")
}

func TestErrorHooksEmpty(t *testing.T) {
	var hooks ErrorHooks
	require.NoError(t, hooks.Fire())
}

func TestErrorHooksRunInParallel(t *testing.T) {
	var started atomic.Int32
	done := make(chan struct{})
	var hooks ErrorHooks

	for range 3 {
		hooks.Add(func() error {
			started.Add(1)
			<-done
			return nil
		})
	}

	errCh := make(chan error)
	go func() {
		errCh <- hooks.Fire()
	}()

	require.Eventually(t, func() bool {
		return started.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond, "all hooks should start in parallel")
	close(done)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Fire to complete")
	}
}
