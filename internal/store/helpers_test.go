package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/testutil"
)

// createTestStore opens a SQLite store in a temp dir with predictable temp
// table names.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), path, Options{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		TempTableName: testutil.NewSequenceNames("tmp").Generate,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type schema struct {
	order, item, position *attribute.Portal

	orderID *attribute.Attribute[int32]
	status  *attribute.Attribute[string]

	itemID   *attribute.Attribute[int32]
	itemOrd  *attribute.Attribute[int32]
	quantity *attribute.Attribute[int32]
	sku      *attribute.Attribute[string]

	positionID   *attribute.Attribute[int32]
	balance      *attribute.Attribute[float64]
	businessDate *attribute.AsOfAttribute
}

func newSchema(t *testing.T) *schema {
	t.Helper()
	s := &schema{
		orderID:    attribute.ForRow("Order", "id", attribute.IntDomain{}, attribute.Options{}),
		status:     attribute.ForRow("Order", "status", attribute.StringDomain{MaxLength: 20}, attribute.Options{Nullable: true}),
		itemID:     attribute.ForRow("Item", "id", attribute.IntDomain{}, attribute.Options{}),
		itemOrd:    attribute.ForRow("Item", "orderId", attribute.IntDomain{}, attribute.Options{Column: "order_id"}),
		quantity:   attribute.ForRow("Item", "quantity", attribute.IntDomain{}, attribute.Options{Nullable: true}),
		sku:        attribute.ForRow("Item", "sku", attribute.StringDomain{MaxLength: 12}, attribute.Options{Nullable: true}),
		positionID: attribute.ForRow("Position", "id", attribute.IntDomain{}, attribute.Options{}),
		balance:    attribute.ForRow("Position", "balance", attribute.DoubleDomain{}, attribute.Options{Nullable: true}),
	}
	var err error
	s.order, err = attribute.NewPortal("Order", "orders", attribute.PortalOptions{PrimaryKey: []string{"id"}},
		s.orderID, s.status)
	require.NoError(t, err)
	s.item, err = attribute.NewPortal("Item", "items", attribute.PortalOptions{PrimaryKey: []string{"id"}},
		s.itemID, s.itemOrd, s.quantity, s.sku)
	require.NoError(t, err)
	join, err := s.orderID.JoinEq(s.itemOrd)
	require.NoError(t, err)
	require.NoError(t, s.order.AddRelationship("items", s.item, attribute.RowNavigator("items"), join))

	from := attribute.ForRow("Position", "businessFrom", attribute.TimestampDomain{}, attribute.Options{Column: "from_z"})
	to := attribute.ForRow("Position", "businessTo", attribute.TimestampDomain{}, attribute.Options{Column: "thru_z"})
	s.businessDate = attribute.NewAsOf("Position", "businessDate", from, to, attribute.AsOfOptions{})
	s.position, err = attribute.NewPortal("Position", "positions", attribute.PortalOptions{
		PrimaryKey: []string{"id", "businessFrom"},
		AsOf:       []*attribute.AsOfAttribute{s.businessDate},
	}, s.positionID, s.balance)
	require.NoError(t, err)
	return s
}

func (s *schema) mapped(t *testing.T, a *attribute.Attribute[int32]) *attribute.Attribute[int32] {
	t.Helper()
	rel, ok := s.order.Relationship("items")
	require.True(t, ok)
	return attribute.Mapped(a, rel.Mapper, nil)
}

func (s *schema) mappedString(t *testing.T, a *attribute.Attribute[string]) *attribute.Attribute[string] {
	t.Helper()
	rel, ok := s.order.Relationship("items")
	require.True(t, ok)
	return attribute.Mapped(a, rel.Mapper, nil)
}

// seedOrders creates and fills orders and items:
//
//	order 1 open:   item 10 (qty 3, "a"), item 11 (qty 8, "b")
//	order 2 closed: item 12 (qty 9, no sku)
//	order 3 open:   no items
func seedOrders(t *testing.T, st *Store, s *schema) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.CreateTable(ctx, s.order))
	require.NoError(t, st.CreateTable(ctx, s.item))
	require.NoError(t, st.Insert(ctx, s.order, []any{
		attribute.Row{"id": int32(1), "status": "open"},
		attribute.Row{"id": int32(2), "status": "closed"},
		attribute.Row{"id": int32(3), "status": "open"},
	}))
	require.NoError(t, st.Insert(ctx, s.item, []any{
		attribute.Row{"id": int32(10), "orderId": int32(1), "quantity": int32(3), "sku": "a"},
		attribute.Row{"id": int32(11), "orderId": int32(1), "quantity": int32(8), "sku": "b"},
		attribute.Row{"id": int32(12), "orderId": int32(2), "quantity": int32(9)},
	}))
}

func ids(t *testing.T, a *attribute.Attribute[int32], owners []any) []int32 {
	t.Helper()
	out := make([]int32, 0, len(owners))
	for _, o := range owners {
		v, ok := a.ValueOf(o)
		require.True(t, ok)
		out = append(out, v)
	}
	return out
}

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}
