package attribute

import (
	"strings"
	"testing"
	"time"

	"github.com/roach88/chronorm/internal/dialect"
	"github.com/roach88/chronorm/internal/operation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttribute_StringAndHash(t *testing.T) {
	a := ForRow("Order", "id", IntDomain{}, Options{})
	b := ForRow("Order", "id", LongDomain{}, Options{})
	c := ForRow("Order", "status", StringDomain{}, Options{})

	assert.Equal(t, "Order.id", a.String())
	assert.Equal(t, a.Hash(), b.Hash(), "hash depends on names only")
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestAttribute_ColumnDefaultsToName(t *testing.T) {
	a := ForRow("Item", "orderId", IntDomain{}, Options{Column: "order_id"})
	b := ForRow("Item", "sku", StringDomain{}, Options{})

	col, err := a.ColumnName()
	require.NoError(t, err)
	assert.Equal(t, "order_id", col)

	col, err = b.ColumnName()
	require.NoError(t, err)
	assert.Equal(t, "sku", col)
}

func TestAttribute_Degeneracies(t *testing.T) {
	s := newOrderSchema(t)
	mapped := Mapped(s.quantity, s.itemsMapper(t), nil)

	tests := []struct {
		name string
		attr AnyAttribute
		op   func(AnyAttribute) operation.Operation
		want func(AnyAttribute) operation.Operation
	}{
		{
			name: "eq null is null",
			attr: s.status,
			op:   func(a AnyAttribute) operation.Operation { return a.EqAny(nil) },
			want: func(a AnyAttribute) operation.Operation { return operation.IsNull{Attribute: a} },
		},
		{
			name: "not eq null is not null",
			attr: s.status,
			op:   func(a AnyAttribute) operation.Operation { return a.NotEqAny(nil) },
			want: func(a AnyAttribute) operation.Operation { return operation.IsNotNull{Attribute: a} },
		},
		{
			name: "in empty is none",
			attr: s.orderID,
			op:   func(a AnyAttribute) operation.Operation { return a.InAny(nil) },
			want: func(AnyAttribute) operation.Operation { return operation.None{On: "Order"} },
		},
		{
			name: "in single is eq",
			attr: s.orderID,
			op:   func(a AnyAttribute) operation.Operation { return a.InAny([]any{7, 7}) },
			want: func(a AnyAttribute) operation.Operation { return operation.Equals{Attribute: a, Value: int32(7)} },
		},
		{
			name: "not in empty is all",
			attr: s.orderID,
			op:   func(a AnyAttribute) operation.Operation { return a.NotInAny(nil) },
			want: func(AnyAttribute) operation.Operation { return operation.All{On: "Order"} },
		},
		{
			name: "not in single is not eq",
			attr: s.status,
			op:   func(a AnyAttribute) operation.Operation { return a.NotInAny([]any{"open"}) },
			want: func(a AnyAttribute) operation.Operation {
				return operation.NotEquals{Attribute: a, Value: "open"}
			},
		},
		{
			name: "mapped in empty is none on root",
			attr: mapped,
			op:   func(a AnyAttribute) operation.Operation { return a.InAny(nil) },
			want: func(AnyAttribute) operation.Operation { return operation.None{On: "Order"} },
		},
		{
			name: "mapped not in empty is all on root",
			attr: mapped,
			op:   func(a AnyAttribute) operation.Operation { return a.NotInAny(nil) },
			want: func(AnyAttribute) operation.Operation { return operation.All{On: "Order"} },
		},
		{
			name: "mapped eq null is mapped is null",
			attr: mapped,
			op:   func(a AnyAttribute) operation.Operation { return a.EqAny(nil) },
			want: func(AnyAttribute) operation.Operation {
				return operation.Mapped{Mapper: s.itemsMapper(t), Operation: operation.IsNull{Attribute: s.quantity}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertOp(t, tt.want(tt.attr), tt.op(tt.attr))
		})
	}
}

func TestAttribute_EqOutOfRangeMatchesNothing(t *testing.T) {
	a := ForRow("Order", "id", IntDomain{}, Options{})

	assert.Equal(t, operation.None{On: "Order"}, a.EqAny(int64(1)<<40))
	assert.Equal(t, operation.Equals{Attribute: a, Value: int32(12)}, a.EqAny(int64(12)))
}

func TestAttribute_CompareWithNullMatchesNothing(t *testing.T) {
	a := ForRow("Item", "placed", TimestampDomain{}, Options{Nullable: true})

	assert.Equal(t, operation.None{On: "Item"}, a.GreaterThan(time.Time{}))
	assert.Equal(t, operation.Compare{Attribute: a, Op: operation.LessThan, Value: ts("2024-01-01 00:00:00")},
		a.LessThan(ts("2024-01-01 00:00:00")))
}

func TestAttribute_ZInWithMax(t *testing.T) {
	a := ForRow("Order", "id", IntDomain{}, Options{})

	assert.Equal(t, operation.None{On: "Order"}, a.ZInWithMax(2, []int32{1, 2, 3}))
	assert.Equal(t, operation.InSet{Attribute: a, Values: []any{int32(1), int32(2)}}, a.ZInWithMax(2, []int32{1, 2, 2}))
}

func TestAttribute_InExtract(t *testing.T) {
	a := ForRow("Order", "id", IntDomain{}, Options{})
	type ref struct{ id *int32 }
	one, two := int32(1), int32(2)
	refs := []ref{{&one}, {nil}, {&two}, {&one}}

	op := InExtract(a, refs, func(r ref) (int32, bool) {
		if r.id == nil {
			return 0, false
		}
		return *r.id, true
	})
	assert.Equal(t, operation.InSet{Attribute: a, Values: []any{int32(1), int32(2)}}, op)

	none := NotInExtract(a, []ref{{nil}}, func(r ref) (int32, bool) { return 0, false })
	assert.Equal(t, operation.All{On: "Order"}, none)
}

func TestAttribute_ValueAccess(t *testing.T) {
	s := newOrderSchema(t)
	row := Row{"id": 3, "status": nil}

	v, ok := s.orderID.ValueOf(row)
	require.True(t, ok)
	assert.Equal(t, int32(3), v)
	assert.True(t, s.status.IsAttributeNull(row))
	assert.Equal(t, "null", s.status.ValueOfAsString(row))
	assert.Equal(t, NullHash, s.status.ValueHash(row))

	require.NoError(t, s.status.SetValue(row, "open"))
	assert.Equal(t, "open", s.status.ValueOfAsString(row))

	require.NoError(t, s.status.SetNull(row))
	assert.True(t, s.status.IsAttributeNull(row))

	require.NoError(t, s.orderID.SetAny(row, "42"))
	assert.Equal(t, int32(42), row["id"])

	err := s.orderID.SetAny(row, "forty-two")
	assert.True(t, IsParseError(err))
}

func TestAttribute_ValueEquals(t *testing.T) {
	s := newOrderSchema(t)
	a := Row{"id": 1, "status": "open"}
	b := Row{"id": 1, "status": nil}
	c := Row{"id": 2, "status": nil}

	assert.True(t, s.orderID.ValueEquals(a, b))
	assert.False(t, s.orderID.ValueEquals(a, c))
	assert.True(t, s.status.ValueEquals(b, c), "two nulls are equal")
	assert.False(t, s.status.ValueEquals(a, b))
	assert.True(t, s.status.ValueEquals(a, a))
}

func TestAttribute_FieldAccessor(t *testing.T) {
	type order struct {
		id     int32
		note   string
		noteOK bool
	}
	note := New("Order", "note", StringDomain{}, FieldAccessor(
		func(o *order) (string, bool) { return o.note, o.noteOK },
		func(o *order, v string) { o.note, o.noteOK = v, true },
		func(o *order) { o.note, o.noteOK = "", false },
	), Options{Nullable: true})

	o := &order{id: 1}
	assert.True(t, note.IsAttributeNull(o))
	require.NoError(t, note.SetValue(o, "rush"))
	assert.Equal(t, "rush", o.note)
	require.NoError(t, note.SetNull(o))
	assert.False(t, o.noteOK)

	assert.Error(t, note.SetValue(Row{}, "x"), "wrong owner type")
}

func TestAttribute_CountUniqueInstances(t *testing.T) {
	s := newOrderSchema(t)

	tests := []struct {
		name   string
		owners []any
		want   int
	}{
		{"empty", nil, 0},
		{"all same", []any{Row{"status": "a"}, Row{"status": "a"}}, 1},
		{"distinct", []any{Row{"status": "a"}, Row{"status": "b"}, Row{"status": "a"}, Row{"status": "c"}}, 3},
		{"first null", []any{Row{}, Row{"status": "a"}, Row{"status": "b"}}, 1},
		{"later nulls skipped", []any{Row{"status": "a"}, Row{}, Row{"status": "b"}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.status.CountUniqueInstances(tt.owners))
		})
	}
}

func TestAttribute_OrderBy(t *testing.T) {
	s := newOrderSchema(t)
	owners := []any{
		Row{"id": 1, "status": "b"},
		Row{"id": 2},
		Row{"id": 3, "status": "a"},
	}

	asc := s.status.AscendingOrderBy()
	assert.Same(t, asc, s.status.AscendingOrderBy(), "memoized")
	asc.Sort(owners)
	assert.Equal(t, []any{2, 3, 1}, ids(owners))

	s.status.DescendingOrderBy().Sort(owners)
	assert.Equal(t, []any{1, 3, 2}, ids(owners))
}

func ids(owners []any) []any {
	out := make([]any, len(owners))
	for i, o := range owners {
		out[i] = o.(Row)["id"]
	}
	return out
}

func TestAttribute_FilterEq(t *testing.T) {
	s := newOrderSchema(t)
	m := s.itemsMapper(t)
	sku := Mapped(s.sku, m, nil)
	status := ForRow("Item", "status", StringDomain{}, Options{})
	mappedStatus := Mapped(status, m, nil)

	t.Run("same portal", func(t *testing.T) {
		assert.Equal(t, operation.SelfEquals{Left: s.itemID, Right: s.quantity}, s.itemID.FilterEq(s.quantity))
	})

	t.Run("same mapper is factored", func(t *testing.T) {
		got := sku.FilterEq(mappedStatus)
		assertOp(t, operation.Mapped{
			Mapper:    m,
			Operation: operation.SelfEquals{Left: s.sku, Right: status},
		}, got)
	})

	t.Run("deprecated alias", func(t *testing.T) {
		assertOp(t, sku.FilterEq(mappedStatus), sku.EqAttr(mappedStatus))
	})
}

func TestAttribute_NotEqAttr(t *testing.T) {
	s := newOrderSchema(t)

	op, err := s.itemID.NotEqAttr(s.quantity)
	require.NoError(t, err)
	assert.Equal(t, operation.SelfNotEquals{Left: s.itemID, Right: s.quantity}, op)

	_, err = s.orderID.NotEqAttr(s.itemID)
	assert.True(t, IsUnsupported(err))
}

func TestAttribute_JoinEq(t *testing.T) {
	s := newOrderSchema(t)

	op, err := s.orderID.JoinEq(s.itemOrd)
	require.NoError(t, err)
	mapped, ok := op.(operation.Mapped)
	require.True(t, ok)
	assert.True(t, mapped.Mapper.Anonymous())
	assert.Equal(t, operation.All{On: "Item"}, mapped.Operation)
	assert.Equal(t, "Order", mapped.Mapper.FromPortal())
	assert.Equal(t, "Item", mapped.Mapper.ResultPortal())

	_, err = Mapped(s.quantity, s.itemsMapper(t), nil).JoinEq(s.itemOrd)
	assert.True(t, IsUnsupported(err))
}

func TestMapped_NestedFoldsIntoChain(t *testing.T) {
	orderID := ForRow("Order", "id", IntDomain{}, Options{})
	itemID := ForRow("Item", "id", IntDomain{}, Options{})
	itemOrd := ForRow("Item", "orderId", IntDomain{}, Options{Column: "order_id"})
	itemProd := ForRow("Item", "productId", IntDomain{}, Options{Column: "product_id"})
	productID := ForRow("Product", "id", IntDomain{}, Options{})
	productName := ForRow("Product", "name", StringDomain{MaxLength: 20}, Options{Nullable: true})

	order, err := NewPortal("Order", "orders", PortalOptions{PrimaryKey: []string{"id"}}, orderID)
	require.NoError(t, err)
	item, err := NewPortal("Item", "items", PortalOptions{PrimaryKey: []string{"id"}}, itemID, itemOrd, itemProd)
	require.NoError(t, err)
	product, err := NewPortal("Product", "products", PortalOptions{PrimaryKey: []string{"id"}}, productID, productName)
	require.NoError(t, err)

	toItems, err := orderID.JoinEq(itemOrd)
	require.NoError(t, err)
	require.NoError(t, order.AddRelationship("items", item, RowNavigator("items"), toItems))
	toProduct, err := itemProd.JoinEq(productID)
	require.NoError(t, err)
	require.NoError(t, item.AddRelationship("product", product, RowNavigator("product"), toProduct))

	items, ok := order.Relationship("items")
	require.True(t, ok)
	prod, ok := item.Relationship("product")
	require.True(t, ok)

	nested := Mapped(Mapped(productName, prod.Mapper, nil), items.Mapper, nil)
	chained := Mapped(productName, items.Mapper.Chain(prod.Mapper), nil)

	assert.True(t, MappedEquals(nested, chained))
	assert.Same(t, productName, nested.Unwrapped())
	assert.Same(t, productName, chained.Unwrapped())
	assert.Equal(t, "Order", nested.BusClassName())
	assert.Equal(t, "items.product.name", nested.AttributeName())

	widget := Row{"id": int32(1), "items": []Row{
		{"id": int32(10), "productId": int32(5), "product": Row{"id": int32(5), "name": "widget"}},
	}}
	for name, a := range map[string]*Attribute[string]{"nested": nested, "chained": chained} {
		v, ok := a.ValueOf(widget)
		require.True(t, ok, name)
		assert.Equal(t, "widget", v, name)
	}

	noItems := Row{"id": int32(2)}
	noProduct := Row{"id": int32(3), "items": []Row{{"id": int32(11)}}}
	for _, owner := range []Row{noItems, noProduct} {
		_, ok := nested.ValueOf(owner)
		assert.False(t, ok)
		_, ok = chained.ValueOf(owner)
		assert.False(t, ok)
	}
}

func TestAttribute_JoinEqAny(t *testing.T) {
	s := newOrderSchema(t)

	op, err := s.orderID.JoinEqAny(s.itemOrd)
	require.NoError(t, err)
	assert.Equal(t, "Item", op.(operation.Mapped).Mapper.ResultPortal())

	_, err = s.orderID.JoinEqAny(s.sku)
	assert.True(t, IsJoinIncompatible(err))
}

func TestAttribute_CompareAny(t *testing.T) {
	s := newOrderSchema(t)

	op, err := s.quantity.CompareAny(operation.GreaterThan, 5)
	require.NoError(t, err)
	assert.Equal(t, operation.Compare{Attribute: s.quantity, Op: operation.GreaterThan, Value: int32(5)}, op)

	_, err = s.quantity.CompareAny(operation.LessThan, "many")
	assert.ErrorContains(t, err, "Item.quantity: cannot compare with many")
	_, err = s.quantity.CompareAny(operation.LessThan, nil)
	assert.ErrorContains(t, err, "cannot compare < null")
}

func TestAttribute_JoinEqChecksSourceAttributes(t *testing.T) {
	region := ForRow("Account", "region", StringDomain{}, Options{Source: true})
	accountID := ForRow("Account", "id", IntDomain{}, Options{})
	_, err := NewPortal("Account", "accounts", PortalOptions{}, accountID, region)
	require.NoError(t, err)

	tradeRegion := ForRow("Trade", "region", StringDomain{}, Options{Source: true})
	tradeAccount := ForRow("Trade", "accountId", IntDomain{}, Options{})
	_, err = NewPortal("Trade", "trades", PortalOptions{}, tradeAccount, tradeRegion)
	require.NoError(t, err)

	op, err := accountID.JoinEq(tradeAccount)
	require.NoError(t, err)
	joins := op.(operation.Mapped).Mapper.Joins()
	require.Len(t, joins, 1)
	assert.Equal(t, []operation.Attribute{accountID, region}, joins[0].Left)
	assert.Equal(t, []operation.Attribute{tradeAccount, tradeRegion}, joins[0].Right)

	noSourceID := ForRow("Book", "accountId", IntDomain{}, Options{})
	_, err = NewPortal("Book", "books", PortalOptions{}, noSourceID)
	require.NoError(t, err)
	_, err = accountID.JoinEq(noSourceID)
	assert.True(t, IsJoinIncompatible(err))
}

func TestAttribute_AppendColumnDefinition(t *testing.T) {
	s := newOrderSchema(t)
	calc, err := Plus(s.quantity, s.itemID)
	require.NoError(t, err)
	dt := dialect.SQLite{}

	var sb strings.Builder
	require.NoError(t, s.price.AppendColumnDefinition(&sb, dt))
	assert.Equal(t, "price decimal(10,2)", sb.String())

	sb.Reset()
	require.NoError(t, s.itemOrd.AppendColumnDefinition(&sb, dt))
	assert.Equal(t, "order_id integer not null", sb.String())

	err = calc.(AnyAttribute).AppendColumnDefinition(&sb, dt)
	assert.True(t, IsUnsupported(err))
}

func TestAttribute_VerifyColumn(t *testing.T) {
	s := newOrderSchema(t)

	require.NoError(t, s.sku.VerifyColumn(dialect.ColumnInfo{
		Name: "sku", Type: dialect.VarChar, TypeName: "varchar(12)", Size: 12, Nullable: true,
	}))

	err := s.sku.VerifyColumn(dialect.ColumnInfo{
		Name: "sku", Type: dialect.Integer, TypeName: "integer", Nullable: false,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column sku of Item")
	assert.Contains(t, err.Error(), "nullable is false")
	assert.Contains(t, err.Error(), "cannot hold string")
}
