package querysql

import (
	"fmt"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/operation"
)

type schema struct {
	order, item, position, account *attribute.Portal

	orderID *attribute.Attribute[int32]
	status  *attribute.Attribute[string]

	itemID   *attribute.Attribute[int32]
	itemOrd  *attribute.Attribute[int32]
	quantity *attribute.Attribute[int32]
	sku      *attribute.Attribute[string]

	positionID   *attribute.Attribute[int32]
	positionAcct *attribute.Attribute[int32]
	balance      *attribute.Attribute[float64]
	businessDate *attribute.AsOfAttribute

	accountID   *attribute.Attribute[int32]
	accountDate *attribute.AsOfAttribute
}

func newSchema(t *testing.T) *schema {
	t.Helper()
	s := &schema{
		orderID:      attribute.ForRow("Order", "id", attribute.IntDomain{}, attribute.Options{}),
		status:       attribute.ForRow("Order", "status", attribute.StringDomain{MaxLength: 20}, attribute.Options{Nullable: true}),
		itemID:       attribute.ForRow("Item", "id", attribute.IntDomain{}, attribute.Options{}),
		itemOrd:      attribute.ForRow("Item", "orderId", attribute.IntDomain{}, attribute.Options{Column: "order_id"}),
		quantity:     attribute.ForRow("Item", "quantity", attribute.IntDomain{}, attribute.Options{Nullable: true}),
		sku:          attribute.ForRow("Item", "sku", attribute.StringDomain{MaxLength: 12}, attribute.Options{Nullable: true}),
		positionID:   attribute.ForRow("Position", "id", attribute.IntDomain{}, attribute.Options{}),
		positionAcct: attribute.ForRow("Position", "accountId", attribute.IntDomain{}, attribute.Options{Column: "account_id", Nullable: true}),
		balance:      attribute.ForRow("Position", "balance", attribute.DoubleDomain{}, attribute.Options{Nullable: true}),
		accountID:    attribute.ForRow("Account", "id", attribute.IntDomain{}, attribute.Options{}),
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
	}, s.positionID, s.positionAcct, s.balance)
	require.NoError(t, err)

	accountFrom := attribute.ForRow("Account", "businessFrom", attribute.TimestampDomain{}, attribute.Options{Column: "from_z"})
	accountTo := attribute.ForRow("Account", "businessTo", attribute.TimestampDomain{}, attribute.Options{Column: "thru_z"})
	s.accountDate = attribute.NewAsOf("Account", "businessDate", accountFrom, accountTo, attribute.AsOfOptions{})
	s.account, err = attribute.NewPortal("Account", "accounts", attribute.PortalOptions{
		PrimaryKey: []string{"id", "businessFrom"},
		AsOf:       []*attribute.AsOfAttribute{s.accountDate},
	}, s.accountID)
	require.NoError(t, err)
	held, err := s.accountID.JoinEq(s.positionAcct)
	require.NoError(t, err)
	require.NoError(t, s.account.AddRelationship("positions", s.position, attribute.RowNavigator("positions"), held))
	return s
}

// positions returns the account's dated positions relationship.
func (s *schema) positions(t *testing.T) operation.Mapper {
	t.Helper()
	rel, ok := s.account.Relationship("positions")
	require.True(t, ok)
	return rel.Mapper
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

// assertGolden compares the statement and its arguments with
// testdata/golden/<name>.golden.
func assertGolden(t *testing.T, name string, st *Statement) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(fmt.Sprintf("%s\n-- args: %v\n", st.SQL, st.Args)))
}

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}
