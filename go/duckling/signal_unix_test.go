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

//go:build unix

package duckling

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterruptOnSignal(t *testing.T) {
	conn, err := Connect(Config{Threads: 4})
	require.NoError(t, err)
	defer conn.Close()
	stop := InterruptOnSignal(conn, syscall.SIGUSR1)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		_, err := conn.Execute(context.Background(), endlessDistinctOn)
		errc <- err
	}()
	waitRunning(t, conn)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case err := <-errc:
		require.Error(t, err)
		assert.Equal(t, "Query interrupted", err.Error())
	case <-time.After(10 * time.Second):
		t.Fatal("signal did not interrupt the query")
	}
}
