package attribute

import (
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/roach88/chronorm/internal/operation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingQuery aliases the root portal t0 and every pushed mapper by its
// relationship names.
type recordingQuery struct {
	stack []operation.Mapper
}

func (q *recordingQuery) DatabaseAlias(portal string) string {
	if len(q.stack) == 0 {
		return "t0"
	}
	var m operation.Mapper
	for _, pushed := range q.stack {
		m = m.Chain(pushed)
	}
	return "t_" + strings.ReplaceAll(m.Name(), ".", "_")
}

func (q *recordingQuery) PushMapper(m operation.Mapper) { q.stack = append(q.stack, m) }
func (q *recordingQuery) PopMapper()                    { q.stack = q.stack[:len(q.stack)-1] }

// assertOp compares operations by shape and rendering. Mappers carrying
// navigator funcs never compare equal under reflect.DeepEqual.
func assertOp(t *testing.T, want, got operation.Operation) {
	t.Helper()
	assert.IsType(t, want, got)
	assert.Equal(t, operation.Describe(want), operation.Describe(got))
}

func mustDecimal(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	require.NoError(t, err)
	return d
}

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

// orderSchema is a two-portal fixture: Order has many Item rows joined on
// orderId.
type orderSchema struct {
	order, item *Portal

	orderID  *Attribute[int32]
	status   *Attribute[string]
	discount *Attribute[float64]

	itemID   *Attribute[int32]
	itemOrd  *Attribute[int32]
	quantity *Attribute[int32]
	price    *Attribute[*apd.Decimal]
	sku      *Attribute[string]
}

func newOrderSchema(t *testing.T) *orderSchema {
	t.Helper()
	s := &orderSchema{
		orderID:  ForRow("Order", "id", IntDomain{}, Options{}),
		status:   ForRow("Order", "status", StringDomain{MaxLength: 20}, Options{Nullable: true}),
		discount: ForRow("Order", "discount", DoubleDomain{}, Options{Nullable: true}),
		itemID:   ForRow("Item", "id", IntDomain{}, Options{}),
		itemOrd:  ForRow("Item", "orderId", IntDomain{}, Options{Column: "order_id"}),
		quantity: ForRow("Item", "quantity", IntDomain{}, Options{Nullable: true}),
		price:    ForRow("Item", "price", DecimalDomain{Precision: 10, Scale: 2}, Options{Nullable: true}),
		sku:      ForRow("Item", "sku", StringDomain{MaxLength: 12}, Options{Nullable: true}),
	}
	var err error
	s.order, err = NewPortal("Order", "orders", PortalOptions{PrimaryKey: []string{"id"}},
		s.orderID, s.status, s.discount)
	require.NoError(t, err)
	s.item, err = NewPortal("Item", "items", PortalOptions{PrimaryKey: []string{"id"}},
		s.itemID, s.itemOrd, s.quantity, s.price, s.sku)
	require.NoError(t, err)

	join, err := s.orderID.JoinEq(s.itemOrd)
	require.NoError(t, err)
	require.NoError(t, s.order.AddRelationship("items", s.item, RowNavigator("items"), join))
	return s
}

func (s *orderSchema) itemsMapper(t *testing.T) operation.Mapper {
	t.Helper()
	rel, ok := s.order.Relationship("items")
	require.True(t, ok)
	return rel.Mapper
}
