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

// Package utils holds helpers shared by tests.
package utils

import (
	"context"
	"testing"
	"time"
)

// WithShortDeadline returns a context that expires after two seconds and is
// cancelled when the test ends.
func WithShortDeadline(t *testing.T) context.Context {
	t.Helper()
	return WithTimeout(t, 2*time.Second)
}

// WithTimeout returns a context that expires after timeout and is cancelled
// when the test ends.
func WithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// Within fails the test unless f returns before timeout. It returns f's
// elapsed time.
func Within(t *testing.T, timeout time.Duration, f func()) time.Duration {
	t.Helper()
	start := time.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()
	select {
	case <-done:
		return time.Since(start)
	case <-time.After(timeout):
		t.Fatalf("did not finish within %v", timeout)
		return 0
	}
}
