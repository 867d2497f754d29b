package attribute

import (
	"testing"

	"github.com/roach88/chronorm/internal/operation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTupleWith_Validation(t *testing.T) {
	s := newOrderSchema(t)
	m := s.itemsMapper(t)

	_, err := TupleWith(s.sku)
	assert.True(t, IsUnsupported(err), "a single attribute is not a tuple")

	_, err = TupleWith(Mapped(s.sku, m, nil), s.status)
	assert.True(t, IsTupleAcrossRelationships(err))

	_, err = TupleWith(s.sku, s.status)
	assert.True(t, IsTupleAcrossRelationships(err), "members of different portals")

	pair, err := TupleWith(s.itemOrd, s.sku)
	require.NoError(t, err)
	triple, err := pair.TupleWith(s.quantity)
	require.NoError(t, err)
	assert.Len(t, triple.Attributes(), 3)
	assert.Equal(t, "(Item.orderId, Item.sku, Item.quantity)", triple.String())
	assert.Len(t, pair.Attributes(), 2, "extending leaves the original tuple alone")
}

func TestTuple_In(t *testing.T) {
	s := newOrderSchema(t)
	pair, err := TupleWith(s.itemOrd, s.sku)
	require.NoError(t, err)
	triple, err := TupleWith(s.itemOrd, s.sku, s.quantity)
	require.NoError(t, err)

	tests := []struct {
		name  string
		tuple *TupleAttribute
		rows  [][]any
		want  string
	}{
		{
			name:  "no rows",
			tuple: pair,
			want:  "none(Item)",
		},
		{
			name:  "single row",
			tuple: pair,
			rows:  [][]any{{1, "a"}},
			want:  "(Item.orderId = 1 & Item.sku = a)",
		},
		{
			name:  "constant position factored out",
			tuple: pair,
			rows:  [][]any{{1, "a"}, {1, "b"}},
			want:  "(Item.orderId = 1 & Item.sku in [a b])",
		},
		{
			name:  "two varying positions",
			tuple: pair,
			rows:  [][]any{{1, "a"}, {2, "b"}},
			want:  "(Item.orderId, Item.sku) in [[1 a] [2 b]]",
		},
		{
			name:  "constant beside multi in",
			tuple: triple,
			rows:  [][]any{{1, "a", 5}, {1, "b", 6}},
			want:  "(Item.orderId = 1 & (Item.sku, Item.quantity) in [[a 5] [b 6]])",
		},
		{
			name:  "null rows dropped",
			tuple: pair,
			rows:  [][]any{{1, nil}, {2, "b"}},
			want:  "(Item.orderId = 2 & Item.sku = b)",
		},
		{
			name:  "only null rows",
			tuple: pair,
			rows:  [][]any{{nil, "a"}},
			want:  "none(Item)",
		},
		{
			name:  "duplicates across value types",
			tuple: pair,
			rows:  [][]any{{int32(1), "a"}, {1, "a"}},
			want:  "(Item.orderId = 1 & Item.sku = a)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := tt.tuple.In(tt.rows)
			require.NoError(t, err)
			assert.Equal(t, tt.want, operation.Describe(op))
		})
	}
}

func TestTuple_InRejectsRaggedRows(t *testing.T) {
	s := newOrderSchema(t)
	pair, err := TupleWith(s.itemOrd, s.sku)
	require.NoError(t, err)

	_, err = pair.In([][]any{{1, "a"}, {2}})
	assert.Error(t, err)
}

func TestTuple_SourceAttributeFactoredFirst(t *testing.T) {
	id := ForRow("Trade", "id", IntDomain{}, Options{})
	acct := ForRow("Trade", "acct", StringDomain{MaxLength: 8}, Options{Source: true})
	_, err := NewPortal("Trade", "trades", PortalOptions{PrimaryKey: []string{"id"}}, id, acct)
	require.NoError(t, err)

	tuple, err := TupleWith(id, acct)
	require.NoError(t, err)

	op, err := tuple.In([][]any{{1, "A"}, {2, "A"}})
	require.NoError(t, err)
	assert.Equal(t, "(Trade.acct = A & Trade.id in [1 2])", operation.Describe(op))

	op, err = tuple.In([][]any{{1, "A"}, {2, "B"}})
	require.NoError(t, err)
	assert.IsType(t, operation.MultiIn{}, op, "a varying source attribute stays in the multi in")
}

func TestTuple_MappedMembersWrapTheRelationship(t *testing.T) {
	s := newOrderSchema(t)
	m := s.itemsMapper(t)

	tuple, err := TupleWith(Mapped(s.itemOrd, m, nil), Mapped(s.sku, m, nil))
	require.NoError(t, err)

	op, err := tuple.In([][]any{{1, "a"}, {2, "b"}})
	require.NoError(t, err)
	mapped, ok := op.(operation.Mapped)
	require.True(t, ok)
	assert.True(t, mapped.Mapper.Equal(m))
	assert.Equal(t, "(Item.orderId, Item.sku) in [[1 a] [2 b]]", operation.Describe(mapped.Operation))

	op, err = tuple.In(nil)
	require.NoError(t, err)
	assert.Equal(t, operation.None{On: "Order"}, op, "empty input selects no orders")
}
