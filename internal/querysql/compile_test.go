package querysql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/dialect"
	"github.com/roach88/chronorm/internal/operation"
	"github.com/roach88/chronorm/internal/testutil"
)

func TestCompile_Golden(t *testing.T) {
	s := newSchema(t)

	sum, err := attribute.Plus(s.quantity, s.itemID)
	require.NoError(t, err)
	pair, err := attribute.TupleWith(s.itemOrd, s.sku)
	require.NoError(t, err)
	tupleOp, err := pair.In([][]any{{1, "a"}, {2, "b"}})
	require.NoError(t, err)

	tests := []struct {
		name string
		root *attribute.Portal
		op   operation.Operation
		opts Options
	}{
		{
			name: "select_all",
			root: s.order,
		},
		{
			name: "eq_and_in",
			root: s.order,
			op:   operation.NewAnd(s.status.Eq("open"), s.orderID.In([]int32{1, 2, 3})),
		},
		{
			name: "none",
			root: s.order,
			op:   s.orderID.In(nil),
		},
		{
			name: "mapped_compare",
			root: s.order,
			op:   s.mapped(t, s.quantity).GreaterThan(5),
		},
		{
			name: "mapped_is_null",
			root: s.order,
			op:   s.mappedString(t, s.sku).IsNull(),
		},
		{
			name: "or_with_mapped",
			root: s.order,
			op:   operation.NewOr(s.status.Eq("closed"), s.mappedString(t, s.sku).Eq("A-1")),
		},
		{
			name: "shared_alias",
			root: s.order,
			op:   operation.NewAnd(s.mapped(t, s.quantity).GreaterThan(5), s.mappedString(t, s.sku).Eq("a")),
		},
		{
			name: "tuple_inline",
			root: s.item,
			op:   tupleOp,
		},
		{
			name: "calculated",
			root: s.item,
			op:   sum.(*attribute.Attribute[int32]).GreaterThanEquals(10),
		},
		{
			name: "asof_current_by_default",
			root: s.position,
			op:   s.positionID.Eq(7),
		},
		{
			name: "asof_explicit",
			root: s.position,
			op:   operation.NewAnd(s.positionID.Eq(7), s.businessDate.Eq(ts("2024-03-01 00:00:00"))),
		},
		{
			name: "asof_all_versions",
			root: s.position,
			op:   s.positionID.Eq(7),
			opts: Options{AllVersions: true},
		},
		{
			name: "mapped_dated_target",
			root: s.account,
			op:   attribute.Mapped(s.balance, s.positions(t), nil).GreaterThan(100),
		},
		{
			name: "mapped_dated_target_asof",
			root: s.account,
			op: operation.NewAnd(
				attribute.Mapped(s.balance, s.positions(t), nil).GreaterThan(100),
				s.accountDate.Eq(ts("2024-03-01 00:00:00")),
			),
		},
		{
			name: "mapped_dated_target_all_versions",
			root: s.account,
			op:   attribute.Mapped(s.balance, s.positions(t), nil).GreaterThan(100),
			opts: Options{AllVersions: true},
		},
		{
			name: "postgres_placeholders",
			root: s.order,
			op:   operation.NewAnd(s.status.NotEq("void"), s.orderID.LessThan(100)),
			opts: Options{Dialect: dialect.Postgres{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Compile(tt.root, tt.op, tt.opts)
			require.NoError(t, err)
			assert.Empty(t, st.TempTables)
			assertGolden(t, tt.name, st)
		})
	}
}

func TestCompile_PlaceholdersMatchArgs(t *testing.T) {
	s := newSchema(t)
	op := operation.NewOr(
		operation.NewAnd(s.status.Eq("open"), s.mapped(t, s.quantity).In([]int32{1, 2})),
		s.orderID.NotIn([]int32{7, 8, 9}),
	)

	st, err := Compile(s.order, op, Options{})
	require.NoError(t, err)
	assert.Equal(t, strings.Count(st.SQL, "?"), len(st.Args))
}

func TestCompile_DatedJoinTarget(t *testing.T) {
	s := newSchema(t)
	rich := attribute.Mapped(s.balance, s.positions(t), nil).GreaterThan(100)

	t.Run("join arguments precede where arguments", func(t *testing.T) {
		st, err := Compile(s.account, rich, Options{Dialect: dialect.Postgres{}})
		require.NoError(t, err)
		assert.Contains(t, st.SQL, "ON t0.id = t1.account_id AND t1.thru_z = $1 WHERE (t1.balance > $2 AND t0.thru_z = $3)")
		require.Len(t, st.Args, 3)
		assert.Equal(t, float64(100), st.Args[1])
	})

	t.Run("range on the root follows into the join", func(t *testing.T) {
		op := operation.NewAnd(rich, s.accountDate.Range(ts("2024-01-01 00:00:00"), ts("2024-02-01 00:00:00")))
		st, err := Compile(s.account, op, Options{})
		require.NoError(t, err)
		assert.Contains(t, st.SQL, "ON t0.id = t1.account_id AND t1.from_z < ? AND t1.thru_z > ? WHERE")
		assert.Equal(t, strings.Count(st.SQL, "?"), len(st.Args))
	})

	t.Run("edge point on the root leaves the join open", func(t *testing.T) {
		op := operation.NewAnd(rich, s.accountDate.EqualsEdgePoint())
		st, err := Compile(s.account, op, Options{})
		require.NoError(t, err)
		assert.Contains(t, st.SQL, "ON t0.id = t1.account_id WHERE")
	})

	t.Run("explicit target predicate replaces the pin", func(t *testing.T) {
		op := operation.NewMapped(s.positions(t), s.businessDate.Eq(ts("2024-02-15 00:00:00")))
		st, err := Compile(s.account, op, Options{})
		require.NoError(t, err)
		assert.Contains(t, st.SQL, "ON t0.id = t1.account_id WHERE")
		assert.Contains(t, st.SQL, "t1.from_z <= ? AND t1.thru_z > ?")
		assert.Equal(t, strings.Count(st.SQL, "?"), len(st.Args))
	})
}

func TestCompile_CurrentVersionUnlessEveryBranchPinsAsOf(t *testing.T) {
	s := newSchema(t)
	feb, mar := ts("2024-02-01 00:00:00"), ts("2024-03-01 00:00:00")

	st, err := Compile(s.position, operation.NewOr(s.businessDate.Eq(mar), s.positionID.Eq(7)), Options{})
	require.NoError(t, err)
	assert.Contains(t, st.SQL, "t0.thru_z = ?", "the id branch alone must still read the current version")

	st, err = Compile(s.position, operation.NewOr(s.businessDate.Eq(feb), s.businessDate.Eq(mar)), Options{})
	require.NoError(t, err)
	assert.NotContains(t, st.SQL, "t0.thru_z = ?")
}

func TestCompile_LargeInSplitsIntoChunks(t *testing.T) {
	s := newSchema(t)
	ids := make([]int32, 250)
	for i := range ids {
		ids[i] = int32(i)
	}

	st, err := Compile(s.order, s.orderID.In(ids), Options{})
	require.NoError(t, err)
	assert.Len(t, st.Args, 250)
	assert.Equal(t, 250, strings.Count(st.SQL, "?"))
	assert.Equal(t, 3, strings.Count(st.SQL, "t0.id IN ("), "sqlite binds at most 100 values per list")
	assert.Contains(t, st.SQL, ") OR t0.id IN (")
}

func TestCompile_LargeTupleSetUsesTempTable(t *testing.T) {
	s := newSchema(t)
	pair, err := attribute.TupleWith(s.itemOrd, s.sku)
	require.NoError(t, err)
	rows := make([][]any, 101)
	for i := range rows {
		rows[i] = []any{i, "sku"}
	}
	rows[0][1] = "other"
	op, err := pair.In(rows)
	require.NoError(t, err)
	require.IsType(t, operation.MultiIn{}, op)

	names := testutil.NewSequenceNames("tmp")
	st, err := Compile(s.item, op, Options{TempTableName: names.Generate})
	require.NoError(t, err)

	assert.Equal(t, "SELECT t0.id, t0.order_id, t0.quantity, t0.sku FROM items t0 "+
		"WHERE EXISTS (SELECT 1 FROM tmp_1 x WHERE x.c0 = t0.order_id AND x.c1 = t0.sku) ORDER BY t0.id", st.SQL)
	assert.Empty(t, st.Args)
	require.Len(t, st.TempTables, 1)

	tt := st.TempTables[0]
	assert.Equal(t, "tmp_1", tt.Name)
	assert.Equal(t, "CREATE TEMP TABLE tmp_1 (c0 integer, c1 varchar(12))", tt.Create)
	assert.Equal(t, "INSERT INTO tmp_1 (c0, c1) VALUES (?, ?)", tt.Insert)
	assert.Equal(t, "DROP TABLE IF EXISTS tmp_1", tt.Drop)
	require.Len(t, tt.Rows, 101)
	assert.Equal(t, []any{int64(0), "other"}, tt.Rows[0])
	assert.Equal(t, []any{int64(100), "sku"}, tt.Rows[100])
}

func TestCompile_MappedAllChecksPresence(t *testing.T) {
	s := newSchema(t)
	join, err := s.orderID.JoinEq(s.itemOrd)
	require.NoError(t, err)

	st, err := Compile(s.order, join, Options{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT DISTINCT t0.id, t0.status FROM orders t0 LEFT JOIN items t1 ON t0.id = t1.order_id "+
		"WHERE t1.order_id IS NOT NULL ORDER BY t0.id", st.SQL)
}

func TestCompile_Errors(t *testing.T) {
	s := newSchema(t)

	_, err := Compile(nil, nil, Options{})
	assert.Error(t, err)

	_, err = Compile(s.order, s.sku.Eq("x"), Options{})
	assert.ErrorContains(t, err, "operation on Item cannot filter Order")
}

func TestDefaultTempTableName(t *testing.T) {
	a, b := DefaultTempTableName(), DefaultTempTableName()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "tmp_"))
	assert.Len(t, a, len("tmp_")+32)
}
