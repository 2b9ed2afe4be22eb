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

package executor

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/duckling-db/duckling/go/common/catalog"
	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/settings"
	"github.com/duckling-db/duckling/go/relation"
	"github.com/duckling-db/duckling/go/test/utils"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// endless scans far more rows than any test waits for.
const endless = "select count(*) from range(1000000000000::BIGINT) t(i)"

func newExecutor(threads int, metrics *Metrics) *Executor {
	return New(Config{
		Catalog:  catalog.New(),
		Settings: settings.New(settings.Snapshot{Threads: threads}),
		Logger:   slog.New(slog.DiscardHandler),
		Metrics:  metrics,
	})
}

func waitRunning(t *testing.T, x *Executor) *Execution {
	t.Helper()
	var exec *Execution
	require.Eventually(t, func() bool {
		exec = x.Active()
		return exec != nil && exec.State() == Running
	}, 5*time.Second, time.Millisecond)
	return exec
}

func TestExecuteSQLBatch(t *testing.T) {
	x := newExecutor(4, nil)
	res, err := x.ExecuteSQL(context.Background(),
		"create table t (i integer); insert into t values (1), (2); SET threads TO 2; select count(*), current_setting('threads') from t")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(2), "2"}}, res.Fetchall())
	assert.Nil(t, x.Active())
}

func TestExecutionStates(t *testing.T) {
	exec := newExecution("select 1")
	_, err := uuid.Parse(exec.ID)
	require.NoError(t, err)
	assert.Equal(t, Idle, exec.State())
	assert.Panics(t, func() { exec.advance(Completed) })

	exec.advance(Planning)
	exec.advance(Running)
	exec.advance(Completed)
	assert.True(t, exec.State().Terminal())
	assert.False(t, exec.Interrupt(), "finished executions cannot be interrupted")
	assert.Panics(t, func() { exec.advance(Running) })
}

func TestFailedExecution(t *testing.T) {
	x := newExecutor(1, nil)
	_, err := x.ExecuteSQL(context.Background(), "select nope")
	require.Error(t, err)
	assert.True(t, dkerrors.IsFailed(err))
	assert.Nil(t, x.Active())

	_, err = x.ExecuteSQL(context.Background(), "select 1 +")
	require.Error(t, err)
	assert.Equal(t, dkerrors.InvalidInput, dkerrors.CodeOf(err))
}

func TestInterruptWithoutActiveExecution(t *testing.T) {
	x := newExecutor(1, nil)
	assert.False(t, x.Interrupt())

	// Nothing carries over to the next execution.
	res, err := x.ExecuteSQL(context.Background(), "select 5")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int32(5)}}, res.Fetchall())
}

func TestInterruptLatency(t *testing.T) {
	for _, threads := range []int{1, 16} {
		t.Run(fmt.Sprintf("threads=%d", threads), func(t *testing.T) {
			metrics := NewMetrics()
			x := newExecutor(threads, metrics)
			errc := make(chan error, 1)
			go func() {
				_, err := x.ExecuteSQL(context.Background(), endless)
				errc <- err
			}()
			exec := waitRunning(t, x)
			start := time.Now()
			require.True(t, x.Interrupt())
			assert.False(t, x.Interrupt(), "the token is already set")

			select {
			case err := <-errc:
				require.Error(t, err)
				assert.Equal(t, dkerrors.InterruptedMessage, err.Error())
				assert.Less(t, time.Since(start), 2*time.Second)
			case <-time.After(10 * time.Second):
				t.Fatal("execution did not observe the interrupt")
			}
			assert.Equal(t, Interrupted, exec.State())
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.queries.WithLabelValues("interrupted")))
			assert.Equal(t, 1, testutil.CollectAndCount(metrics.interruptLatency))

			// The connection stays usable and the next execution is unaffected.
			res, err := x.ExecuteSQL(context.Background(), "select count(*) from range(10000) t(i)")
			require.NoError(t, err)
			assert.Equal(t, [][]any{{int64(10000)}}, res.Fetchall())
		})
	}
}

func TestContextDeadlineInterrupts(t *testing.T) {
	x := newExecutor(4, nil)
	ctx := utils.WithTimeout(t, 50*time.Millisecond)
	var err error
	utils.Within(t, 10*time.Second, func() {
		_, err = x.ExecuteSQL(ctx, endless)
	})
	require.Error(t, err)
	assert.True(t, dkerrors.IsInterrupted(err))
}

func TestExecuteRelation(t *testing.T) {
	x := newExecutor(4, nil)
	rel, err := relation.FromSQL("select i from range(100) t(i)").Query("r", "select i from r where i % 10 = 0 order by i desc limit 3")
	require.NoError(t, err)

	res, err := x.ExecuteRelation(context.Background(), rel)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(90)}, {int64(80)}, {int64(70)}}, res.Fetchall())

	plan, err := x.Explain(rel)
	require.NoError(t, err)
	assert.Contains(t, plan, "MATERIALIZE(r)")
	assert.Contains(t, plan, "RANGE(0, 100, 1)")
}

func TestMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, second := NewMetrics(), NewMetrics()
	require.NoError(t, first.Register(reg))
	require.NoError(t, second.Register(reg))

	x := newExecutor(1, second)
	_, err := x.ExecuteSQL(context.Background(), "select 1")
	require.NoError(t, err)
	_, err = x.ExecuteSQL(context.Background(), "select nope")
	require.Error(t, err)

	// Both connections report into the collectors registered first.
	assert.Equal(t, 1.0, testutil.ToFloat64(first.queries.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.queries.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(first.active))
}
