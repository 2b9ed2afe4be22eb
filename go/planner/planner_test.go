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

package planner

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/duckling-db/duckling/go/common/cancel"
	"github.com/duckling-db/duckling/go/common/catalog"
	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/settings"
	"github.com/duckling-db/duckling/go/common/sqltypes"
	"github.com/duckling-db/duckling/go/engine"
	"github.com/duckling-db/duckling/go/relation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	cat *catalog.Catalog
	set *settings.Settings
	p   *Planner
}

func newHarness(threads int) *harness {
	cat := catalog.New()
	set := settings.New(settings.Snapshot{Threads: threads})
	return &harness{cat: cat, set: set, p: NewPlanner(cat, set, slog.New(slog.DiscardHandler))}
}

func (h *harness) exec(t *testing.T, planned *Planned) *sqltypes.Result {
	t.Helper()
	ec := engine.NewExecContext(cancel.NewToken(), h.cat, h.set, slog.New(slog.DiscardHandler))
	res, err := planned.Primitive.Execute(context.Background(), ec)
	require.NoError(t, err)
	return res
}

// run plans and executes each statement of sql in turn.
func (h *harness) run(t *testing.T, sql string) *sqltypes.Result {
	t.Helper()
	stmts, err := h.p.Parse(sql)
	require.NoError(t, err)
	var res *sqltypes.Result
	for _, stmt := range stmts {
		planned, err := h.p.PlanStatement(stmt, nil)
		require.NoError(t, err)
		res = h.exec(t, planned)
	}
	return res
}

func (h *harness) planErr(t *testing.T, sql string) error {
	t.Helper()
	_, err := h.p.PlanSQL(sql, nil)
	require.Error(t, err, sql)
	return err
}

func TestRelationChain(t *testing.T) {
	h := newHarness(4)
	amount := 1000000
	rel := relation.FromSQL("select i from range(1000000::BIGINT) tbl(i)")
	for _, limit := range []string{"100000.0", "10000.0", "1000.0"} {
		var err error
		rel, err = rel.Query("rel", "select * from rel limit "+limit)
		require.NoError(t, err)
		amount /= 10
		planned, err := h.p.PlanRelation(rel)
		require.NoError(t, err)
		res := h.exec(t, planned)
		require.Len(t, res.Rows, amount)
		assert.Equal(t, []any{int64(0)}, res.Rows[0].Native())
		assert.Equal(t, []any{int64(amount - 1)}, res.Rows[amount-1].Native())
	}
}

func TestTableRelation(t *testing.T) {
	h := newHarness(2)
	h.run(t, "create table tbl (i integer); insert into tbl values (5), (4), (3)")

	x, err := relation.FromTable("tbl").Query("x", "select * from x")
	require.NoError(t, err)
	planned, err := h.p.PlanRelation(x)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int32(5)}, {int32(4)}, {int32(3)}}, h.exec(t, planned).Fetchall())

	five, err := relation.FromTable("tbl").Query("x", "select 5")
	require.NoError(t, err)
	planned, err = h.p.PlanRelation(five)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int32(5)}}, h.exec(t, planned).Fetchall())
}

func TestNonRowQueryPassesParentThrough(t *testing.T) {
	h := newHarness(4)
	h.run(t, "create table tbl (i integer)")

	root := relation.FromSQL("select i from range(10000) tbl(i)")
	rel, err := root.Query("x", "insert into tbl VALUES(5)")
	require.NoError(t, err)
	planned, err := h.p.PlanRelation(rel)
	require.NoError(t, err)
	assert.Len(t, planned.Fields, 1)

	assert.Len(t, h.exec(t, planned).Rows, 10000)
	assert.Equal(t, 1, mustTable(t, h.cat, "tbl").RowCount())

	// Each execution runs the insert again.
	h.exec(t, planned)
	assert.Equal(t, 2, mustTable(t, h.cat, "tbl").RowCount())
}

func mustTable(t *testing.T, cat *catalog.Catalog, name string) *catalog.Table {
	t.Helper()
	tbl, err := cat.Table(name)
	require.NoError(t, err)
	return tbl
}

func TestSelectQueries(t *testing.T) {
	tcs := []struct {
		name string
		sql  string
		want [][]any
	}{
		{
			name: "constant",
			sql:  "select 5",
			want: [][]any{{int32(5)}},
		},
		{
			name: "group by alias",
			sql:  "select i % 3 as k, count(*), sum(i) from range(10) t(i) group by k order by k",
			want: [][]any{{int64(0), int64(4), int64(18)}, {int64(1), int64(3), int64(12)}, {int64(2), int64(3), int64(15)}},
		},
		{
			name: "having",
			sql:  "select i % 3, count(*) from range(10) t(i) group by 1 having count(*) > 3",
			want: [][]any{{int64(0), int64(4)}},
		},
		{
			name: "aggregate over empty input",
			sql:  "select count(*), sum(i) from range(0) t(i)",
			want: [][]any{{int64(0), nil}},
		},
		{
			name: "distinct on with hidden key",
			sql:  "select distinct on (i % 3) i from range(10) t(i) order by i % 3, i desc",
			want: [][]any{{int64(9)}, {int64(7)}, {int64(8)}},
		},
		{
			name: "order by hidden expression",
			sql:  "select i from range(5) t(i) order by -i",
			want: [][]any{{int64(4)}, {int64(3)}, {int64(2)}, {int64(1)}, {int64(0)}},
		},
		{
			name: "order by ordinal with offset",
			sql:  "select i, i * 10 from range(5) t(i) order by 2 desc limit 2 offset 1",
			want: [][]any{{int64(3), int64(30)}, {int64(2), int64(20)}},
		},
		{
			name: "common table expression",
			sql:  "with x as (select i from range(3) t(i)) select i * 2 from x",
			want: [][]any{{int64(0)}, {int64(2)}, {int64(4)}},
		},
		{
			name: "subquery",
			sql:  "select s.i from (select i from range(10) t(i) where i > 6) s where s.i <> 8",
			want: [][]any{{int64(7)}, {int64(9)}},
		},
		{
			name: "generate_series includes stop",
			sql:  "select * from generate_series(1, 3)",
			want: [][]any{{int64(1)}, {int64(2)}, {int64(3)}},
		},
		{
			name: "plain distinct",
			sql:  "select distinct i % 2 from range(6) t(i)",
			want: [][]any{{int64(0)}, {int64(1)}},
		},
		{
			name: "limit null",
			sql:  "select i from range(3) t(i) limit null",
			want: [][]any{{int64(0)}, {int64(1)}, {int64(2)}},
		},
		{
			name: "ordered limit at the bigint maximum",
			sql:  "select i from range(4) t(i) order by i limit 9223372036854775807 offset 1",
			want: [][]any{{int64(1)}, {int64(2)}, {int64(3)}},
		},
		{
			name: "range spanning every bigint",
			sql:  "select count(*) from range(-9223372036854775808, 9223372036854775807, 4611686018427387904) t(i)",
			want: [][]any{{int64(4)}},
		},
		{
			name: "min max avg of grouped expression",
			sql:  "select min(i), max(i), avg(i) from range(5) t(i) where i in (1, 2, 3)",
			want: [][]any{{int64(1), int64(3), float64(2)}},
		},
	}
	for _, threads := range []int{1, 8} {
		h := newHarness(threads)
		for _, tc := range tcs {
			t.Run(tc.name, func(t *testing.T) {
				assert.Equal(t, tc.want, h.run(t, tc.sql).Fetchall())
			})
		}
	}
}

func TestFieldNames(t *testing.T) {
	h := newHarness(1)
	planned, err := h.p.PlanSQL("select i, i + 1, count(*) as n from range(3) t(i) group by i", nil)
	require.NoError(t, err)
	require.Len(t, planned.Fields, 3)
	assert.Equal(t, "i", planned.Fields[0].Name)
	assert.Equal(t, "(i + 1)", planned.Fields[1].Name)
	assert.Equal(t, "n", planned.Fields[2].Name)
	assert.Equal(t, sqltypes.BigInt, planned.Fields[2].Type)
}

func TestStatements(t *testing.T) {
	h := newHarness(2)
	h.run(t, "create table t (a integer, b varchar)")
	res := h.run(t, "insert into t (b, a) values ('x', 1), ('y', 2)")
	assert.Equal(t, uint64(2), res.RowsAffected)
	res = h.run(t, "create table u as select a * 10 as a from t")
	assert.Equal(t, "CREATE TABLE 2", res.CommandTag)
	h.run(t, "insert into u select a from t where b = 'y'")
	assert.Equal(t, [][]any{{int32(10)}, {int32(20)}, {int32(2)}}, h.run(t, "select * from u").Fetchall())

	h.run(t, "drop table u")
	err := h.planErr(t, "select * from u")
	assert.Equal(t, dkerrors.Catalog, dkerrors.CodeOf(err))
}

func TestSettings(t *testing.T) {
	h := newHarness(2)
	h.run(t, "SET threads TO 3")
	assert.Equal(t, [][]any{{"3"}}, h.run(t, "select current_setting('threads')").Fetchall())
	assert.Equal(t, [][]any{{"3"}}, h.run(t, "show threads").Fetchall())
	h.run(t, "RESET threads")
	assert.Equal(t, 2, h.set.Snapshot().Threads)

	err := h.planErr(t, "SET threads TO 'many'")
	assert.Equal(t, dkerrors.InvalidInput, dkerrors.CodeOf(err))
	h.planErr(t, "SET no_such_setting = 1")
}

func TestExplain(t *testing.T) {
	h := newHarness(1)
	res := h.run(t, "explain select i from range(100) t(i) order by i desc limit 3")
	require.NotEmpty(t, res.Rows)
	assert.Equal(t, []string{"physical_plan"}, res.ColumnNames())
	first := res.Rows[0][0].Str()
	assert.True(t, strings.HasPrefix(first, "PIPELINE TOP_N("), first)
	assert.Contains(t, first, "RANGE(0, 100, 1)")
}

func TestBindErrors(t *testing.T) {
	h := newHarness(1)
	h.run(t, "create table t (a integer)")
	tcs := []struct {
		sql  string
		code dkerrors.Code
		msg  string
	}{
		{"select nope from t", dkerrors.InvalidInput, `Referenced column "nope" not found`},
		{"select * from missing", dkerrors.Catalog, "Table with name missing does not exist"},
		{"select a from t where count(*) > 1", dkerrors.InvalidInput, "WHERE"},
		{"select a, count(*) from t", dkerrors.InvalidInput, "GROUP BY"},
		{"select distinct a from t order by a + 1", dkerrors.InvalidInput, "must appear in select list"},
		{"select a from t limit -1", dkerrors.InvalidInput, "cannot be negative"},
		{"select a from t order by 3", dkerrors.InvalidInput, "out of range"},
		{"select * from unnest(1)", dkerrors.InvalidInput, "Table Function with name unnest"},
		{"select a from t limit a", dkerrors.InvalidInput, `Referenced column "a" not found`},
		{"select sum(count(*)) from t", dkerrors.InvalidInput, "nested"},
		{"select x.a from t", dkerrors.InvalidInput, `Referenced table "x"`},
		{"insert into t values (1, 2)", dkerrors.InvalidInput, "1 columns but 2 values"},
		{"insert into t (z) values (1)", dkerrors.InvalidInput, `column with name "z"`},
		{"select * from t, t", dkerrors.NotImplemented, ""},
	}
	for _, tc := range tcs {
		t.Run(tc.sql, func(t *testing.T) {
			err := h.planErr(t, tc.sql)
			assert.Equal(t, tc.code, dkerrors.CodeOf(err), err.Error())
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestScopeShadowsCatalog(t *testing.T) {
	h := newHarness(1)
	h.run(t, "create table rel (a varchar); insert into rel values ('table')")
	rel, err := relation.FromSQL("select 'alias' as a").Query("rel", "select a from rel")
	require.NoError(t, err)
	planned, err := h.p.PlanRelation(rel)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"alias"}}, h.exec(t, planned).Fetchall())
}

func TestParseCache(t *testing.T) {
	h := newHarness(1)
	a, err := h.p.Parse("select 1")
	require.NoError(t, err)
	b, err := h.p.Parse("select 1")
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Same(t, a[0], b[0])
}
