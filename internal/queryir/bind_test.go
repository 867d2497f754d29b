package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronorm/internal/operation"
)

func TestBind(t *testing.T) {
	order := portal(t, "Order")
	tests := []struct {
		name string
		src  string
		want []int32
	}{
		{"all", "all", []int32{1, 2, 3}},
		{"eq", "eq: {status: open}", []int32{1}},
		{"eq null", "eq: {status: null}", []int32{3}},
		{"not eq", "not_eq: {status: open}", []int32{2}},
		{"gte", "gte: {id: 2}", []int32{2, 3}},
		{"lt", "lt: {id: 2}", []int32{1}},
		{"in", "in: {id: [1, 3, 9]}", []int32{1, 3}},
		{"in empty", "in: {id: []}", nil},
		{"not in", "not_in: {status: [open]}", []int32{2}},
		{"is null", "is_null: status", []int32{3}},
		{"is not null", "is_not_null: status", []int32{1, 2}},
		{"mapped gt", "gt: {items.quantity: 5}", []int32{1}},
		{"mapped is null", "is_null: items.quantity", []int32{2}},
		{"or", "or:\n  - eq: {id: 3}\n  - eq: {status: closed}\n", []int32{2, 3}},
		{"and", "and:\n  - is_not_null: status\n  - lte: {items.quantity: 3}\n", []int32{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := Decode([]byte(tt.src))
			require.NoError(t, err)
			op, err := Bind(order, pred)
			require.NoError(t, err)
			assert.Equal(t, tt.want, matching(t, op))
		})
	}
}

func TestBindColumnOperations(t *testing.T) {
	order := portal(t, "Order")
	status, _ := order.Attribute("status")

	op, err := Bind(order, Compare{Path: "status", Op: OpEq, Value: "open"})
	require.NoError(t, err)
	assert.Equal(t, operation.Equals{Attribute: status, Value: "open"}, op)

	op, err = Bind(order, nil)
	require.NoError(t, err)
	assert.Equal(t, operation.All{On: "Order"}, op)
}

func TestBindAsOf(t *testing.T) {
	pos := portal(t, "Position")
	ao, _ := pos.AsOfAttribute("businessDate")

	tests := []struct {
		name string
		pred AsOf
		want operation.Operation
	}{
		{"at", AsOf{Attribute: "businessDate", At: "2024-01-01 00:00:00"}, ao.Eq(ts("2024-01-01 00:00:00"))},
		{"range", AsOf{Attribute: "businessDate", From: "2024-01-01 00:00:00", To: "2024-02-01 00:00:00"},
			operation.AsOfRange{Attribute: ao, Start: ts("2024-01-01 00:00:00"), End: ts("2024-02-01 00:00:00")}},
		{"infinity", AsOf{Attribute: "businessDate", Infinity: true}, ao.EqualsInfinity()},
		{"edge", AsOf{Attribute: "businessDate", Edge: true}, ao.EqualsEdgePoint()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Bind(pos, tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBindErrors(t *testing.T) {
	order := portal(t, "Order")
	tests := []struct {
		name string
		pred Predicate
		want string
	}{
		{"invalid", Or{}, "invalid where clause: where: or needs at least one predicate"},
		{"unknown attribute", Compare{Path: "total", Op: OpEq, Value: 1}, `no attribute "total"`},
		{"unknown relationship", Null{Path: "lines.quantity"}, `no relationship "lines"`},
		{"uncomparable", Compare{Path: "id", Op: OpGt, Value: "many"}, "cannot compare with many"},
		{"unknown as-of", AsOf{Attribute: "processingDate", Edge: true}, `no as-of attribute "processingDate"`},
		{"nested", And{Predicates: []Predicate{All{}, In{Path: "nope", Values: []any{1}}}}, `no attribute "nope"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bind(order, tt.pred)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
