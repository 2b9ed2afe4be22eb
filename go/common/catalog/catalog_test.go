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

package catalog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duckling-db/duckling/go/common/dkerrors"
	"github.com/duckling-db/duckling/go/common/sqltypes"
)

func intRows(vals ...int32) []sqltypes.Row {
	rows := make([]sqltypes.Row, len(vals))
	for i, v := range vals {
		rows[i] = sqltypes.Row{sqltypes.NewInteger(v)}
	}
	return rows
}

func TestCreateDropTable(t *testing.T) {
	c := New()
	_, err := c.CreateTable("tbl", []Column{{Name: "i", Type: sqltypes.Integer}}, false)
	require.NoError(t, err)

	_, err = c.CreateTable("TBL", nil, false)
	require.Error(t, err)
	assert.Equal(t, dkerrors.Catalog, dkerrors.CodeOf(err))

	same, err := c.CreateTable("tbl", nil, true)
	require.NoError(t, err)
	assert.Len(t, same.Columns(), 1)

	tbl, err := c.Table("Tbl")
	require.NoError(t, err)
	assert.Equal(t, "tbl", tbl.Name())
	assert.Equal(t, []string{"tbl"}, c.Names())

	require.NoError(t, c.DropTable("tbl", false))
	require.NoError(t, c.DropTable("tbl", true))
	err = c.DropTable("tbl", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Table with name tbl does not exist!")
}

func TestAppendCastsAndOrders(t *testing.T) {
	c := New()
	tbl, err := c.CreateTable("tbl", []Column{{Name: "i", Type: sqltypes.Integer}}, false)
	require.NoError(t, err)

	require.NoError(t, tbl.Append([]sqltypes.Row{{sqltypes.NewBigInt(5)}}))
	require.NoError(t, tbl.Append(intRows(4, 3)))
	assert.Equal(t, 3, tbl.RowCount())

	snap := tbl.Snapshot()
	require.Equal(t, 1, snap.Blocks())
	col := snap.Block(0)[0]
	assert.Equal(t, []sqltypes.Value{sqltypes.NewInteger(5), sqltypes.NewInteger(4), sqltypes.NewInteger(3)}, col)

	err = tbl.Append([]sqltypes.Row{{sqltypes.NewVarchar("x")}})
	require.Error(t, err)
	err = tbl.Append([]sqltypes.Row{{sqltypes.NewInteger(1), sqltypes.NewInteger(2)}})
	require.Error(t, err)
	assert.Equal(t, 3, tbl.RowCount(), "failed appends must not leave partial rows")
}

func TestSnapshotIsStable(t *testing.T) {
	tbl := NewTable("t", []Column{{Name: "i", Type: sqltypes.Integer}}, false)
	vals := make([]int32, BlockSize+10)
	for i := range vals {
		vals[i] = int32(i)
	}
	require.NoError(t, tbl.Append(intRows(vals...)))

	snap := tbl.Snapshot()
	require.NoError(t, tbl.Append(intRows(1, 2, 3)))

	assert.Equal(t, BlockSize+10, snap.Rows())
	assert.Equal(t, 2, snap.Blocks())
	assert.Len(t, snap.Block(1)[0], 10)
	assert.Equal(t, BlockSize+13, tbl.RowCount())
}

func TestConcurrentAppendAndSnapshot(t *testing.T) {
	tbl := NewTable("t", []Column{{Name: "i", Type: sqltypes.Integer}}, false)
	var wg sync.WaitGroup
	wg.Go(func() {
		for i := range 500 {
			_ = tbl.Append(intRows(int32(i)))
		}
	})
	wg.Go(func() {
		for range 200 {
			snap := tbl.Snapshot()
			total := 0
			for b := range snap.Blocks() {
				total += len(snap.Block(b)[0])
			}
			if total != snap.Rows() {
				t.Errorf("snapshot rows %d != block rows %d", snap.Rows(), total)
				return
			}
		}
	})
	wg.Wait()
	assert.Equal(t, 500, tbl.RowCount())
}

func TestRegisterFrame(t *testing.T) {
	c := New()
	cols := []Column{{Name: "col0", Type: sqltypes.Double}}
	require.NoError(t, c.RegisterFrame("df", cols, []sqltypes.Row{{sqltypes.NewDouble(1.5)}}))

	df, err := c.Table("df")
	require.NoError(t, err)
	assert.True(t, df.ReadOnly())
	require.Error(t, df.Append([]sqltypes.Row{{sqltypes.NewDouble(2)}}))
	require.Error(t, c.DropTable("df", false))

	// Re-registering replaces the frame.
	require.NoError(t, c.RegisterFrame("df", cols, nil))
	df, err = c.Table("df")
	require.NoError(t, err)
	assert.Equal(t, 0, df.RowCount())

	require.NoError(t, c.Unregister("df"))
	require.Error(t, c.Unregister("df"))

	_, err = c.CreateTable("base", cols, false)
	require.NoError(t, err)
	require.Error(t, c.RegisterFrame("base", cols, nil))
}
