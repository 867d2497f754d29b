package attribute

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/roach88/chronorm/internal/operation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericType_Combine(t *testing.T) {
	tests := []struct {
		a, b NumericType
		want NumericType
	}{
		{NumericInt, NumericInt, NumericInt},
		{NumericInt, NumericLong, NumericLong},
		{NumericLong, NumericFloat, NumericFloat},
		{NumericInt, NumericDouble, NumericDouble},
		{NumericFloat, NumericDouble, NumericDouble},
		{NumericDouble, NumericBigDecimal, NumericBigDecimal},
		{NumericBigDecimal, NumericInt, NumericBigDecimal},
	}
	for _, tt := range tests {
		t.Run(tt.a.String()+"+"+tt.b.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Combine(tt.b))
			assert.Equal(t, tt.want, tt.b.Combine(tt.a))
		})
	}
}

func TestNumericType_ByteAndShortComputeAsInt(t *testing.T) {
	b := ForRow("T", "b", ByteDomain{}, Options{})
	s := ForRow("T", "s", ShortDomain{}, Options{})

	sum, err := Plus(b, s)
	require.NoError(t, err)
	assert.Equal(t, NumericInt, sum.NumericType())

	v, ok := sum.Extract(Row{"b": int8(100), "s": int16(1000)})
	require.True(t, ok)
	assert.Equal(t, int32(1100), v)
}

func TestArithmetic_Values(t *testing.T) {
	s := newOrderSchema(t)
	item := Row{"id": int32(4), "quantity": int32(10), "price": mustDecimal(t, "20.00")}

	sum, err := Plus(s.quantity, s.itemID)
	require.NoError(t, err)
	v, ok := sum.Extract(item)
	require.True(t, ok)
	assert.Equal(t, int32(14), v)

	diff, err := MinusConst(s.quantity, 25)
	require.NoError(t, err)
	v, ok = diff.Extract(item)
	require.True(t, ok)
	assert.Equal(t, int32(-15), v)

	abs, err := AbsoluteValue(diff)
	require.NoError(t, err)
	v, ok = abs.Extract(item)
	require.True(t, ok)
	assert.Equal(t, int32(15), v)

	mixed, err := TimesConst(s.quantity, 0.5)
	require.NoError(t, err)
	assert.Equal(t, NumericDouble, mixed.NumericType())
	v, ok = mixed.Extract(item)
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	mod, err := Mod(s.quantity, s.itemID)
	require.NoError(t, err)
	v, ok = mod.Extract(item)
	require.True(t, ok)
	assert.Equal(t, int32(2), v)
}

func TestArithmetic_NullOperandIsNull(t *testing.T) {
	s := newOrderSchema(t)

	sum, err := Plus(s.quantity, s.itemID)
	require.NoError(t, err)
	_, ok := sum.Extract(Row{"id": int32(1)})
	assert.False(t, ok)
}

func TestArithmetic_IntegerDivisionByZeroIsNull(t *testing.T) {
	s := newOrderSchema(t)

	q, err := DividedBy(s.itemID, s.quantity)
	require.NoError(t, err)
	_, ok := q.Extract(Row{"id": int32(8), "quantity": int32(0)})
	assert.False(t, ok)

	v, ok := q.Extract(Row{"id": int32(8), "quantity": int32(3)})
	require.True(t, ok)
	assert.Equal(t, int32(2), v)
}

func TestArithmetic_DecimalDivisionRoundsHalfUpToLeftScale(t *testing.T) {
	s := newOrderSchema(t)

	q, err := DividedBy(s.price, s.quantity)
	require.NoError(t, err)
	require.Equal(t, NumericBigDecimal, q.NumericType())

	tests := []struct {
		price, quantity string
		want            string
	}{
		{"10.00", "3", "3.33"},
		{"20.00", "3", "6.67"},
		{"0.05", "2", "0.03"},
	}
	for _, tt := range tests {
		t.Run(tt.price+"/"+tt.quantity, func(t *testing.T) {
			qty, err := IntDomain{}.Parse(tt.quantity, "")
			require.NoError(t, err)
			v, ok := q.Extract(Row{"price": mustDecimal(t, tt.price), "quantity": qty})
			require.True(t, ok)
			assert.Equal(t, tt.want, v.(*apd.Decimal).Text('f'))
		})
	}

	_, ok := q.Extract(Row{"price": mustDecimal(t, "1.00"), "quantity": int32(0)})
	assert.False(t, ok, "division by zero is null")
}

func TestArithmetic_DecimalResultScale(t *testing.T) {
	s := newOrderSchema(t)

	product, err := Times(s.price, s.price)
	require.NoError(t, err)
	assert.Equal(t, 4, product.decimalScale())

	sum, err := PlusConst(s.price, "0.125")
	require.NoError(t, err)
	assert.Equal(t, 3, sum.decimalScale())
}

func TestArithmetic_ModRequiresIntegers(t *testing.T) {
	s := newOrderSchema(t)

	_, err := Mod(s.price, s.quantity)
	assert.True(t, IsUnsupported(err))

	_, err = Plus(s.quantity, s.sku)
	assert.True(t, IsUnsupported(err), "strings are not numeric")
}

func TestArithmetic_SQLExpression(t *testing.T) {
	s := newOrderSchema(t)

	sum, err := Plus(s.quantity, s.itemID)
	require.NoError(t, err)
	expr, err := sum.FullyQualifiedLeftHandExpression(&recordingQuery{})
	require.NoError(t, err)
	assert.Equal(t, "(t0.quantity + t0.id)", expr)

	scaled, err := TimesConst(sum, 2)
	require.NoError(t, err)
	expr, err = scaled.FullyQualifiedLeftHandExpression(&recordingQuery{})
	require.NoError(t, err)
	assert.Equal(t, "((t0.quantity + t0.id) * 2)", expr)
}

func TestArithmetic_MappedOperandsShareRelationship(t *testing.T) {
	s := newOrderSchema(t)
	m := s.itemsMapper(t)

	sum, err := Plus(Mapped(s.quantity, m, nil), Mapped(s.itemID, m, nil))
	require.NoError(t, err)
	assert.True(t, sum.Mapper().Equal(m))

	q := &recordingQuery{}
	expr, err := sum.FullyQualifiedLeftHandExpression(q)
	require.NoError(t, err)
	assert.Equal(t, "(t_items.quantity + t_items.id)", expr)
	assert.Empty(t, q.stack, "mapper stack is balanced")

	order := Row{"id": int32(1), "items": []any{Row{"id": int32(2), "quantity": int32(5)}}}
	v, ok := sum.Extract(order)
	require.True(t, ok)
	assert.Equal(t, int32(7), v)

	_, ok = sum.Extract(Row{"id": int32(1)})
	assert.False(t, ok, "no related item reads as null")
}

func TestCalculated_IsReadOnly(t *testing.T) {
	s := newOrderSchema(t)
	sum, err := Plus(s.quantity, s.itemID)
	require.NoError(t, err)
	attr := sum.(*Attribute[int32])

	assert.True(t, IsUnsupported(attr.SetValue(Row{}, 1)))
	assert.True(t, IsUnsupported(attr.SetNull(Row{})))
	_, err = attr.ColumnName()
	assert.True(t, IsUnsupported(err))
	_, err = attr.SQLParameterOf(Row{})
	assert.True(t, IsUnsupported(err))
	assert.True(t, IsUnsupported(attr.EncodeColumnar(nil, nil)))
	assert.True(t, IsUnsupported(attr.ParseNumberAndSet("1", Row{}, 1, "")))
}

func TestStringCalculations(t *testing.T) {
	s := newOrderSchema(t)
	item := Row{"sku": "abcDEF", "price": mustDecimal(t, "12.50")}

	upper := ToUpperCase(s.sku)
	v, ok := upper.ValueOf(item)
	require.True(t, ok)
	assert.Equal(t, "ABCDEF", v)

	lower := ToLowerCase(s.sku)
	v, _ = lower.ValueOf(item)
	assert.Equal(t, "abcdef", v)

	sub := Substring(s.sku, 1, 3)
	v, _ = sub.ValueOf(item)
	assert.Equal(t, "bc", v)
	expr, err := sub.FullyQualifiedLeftHandExpression(&recordingQuery{})
	require.NoError(t, err)
	assert.Equal(t, "substr(t0.sku, 2, 2)", expr)

	tail := Substring(s.sku, 4, -1)
	v, _ = tail.ValueOf(item)
	assert.Equal(t, "EF", v)

	text, err := ConvertToString(s.price)
	require.NoError(t, err)
	v, _ = text.ValueOf(item)
	assert.Equal(t, "12.50", v)
	expr, err = text.FullyQualifiedLeftHandExpression(&recordingQuery{})
	require.NoError(t, err)
	assert.Equal(t, "cast(t0.price as varchar)", expr)

	eq := upper.Eq("ABCDEF")
	assert.Equal(t, "upper(Item.sku) = ABCDEF", operation.Describe(eq))
}

func TestStringCalculations_Mapped(t *testing.T) {
	s := newOrderSchema(t)
	m := s.itemsMapper(t)
	upper := ToUpperCase(Mapped(s.sku, m, nil))

	assert.Equal(t, KindMapped, upper.Kind())
	order := Row{"items": []any{Row{"sku": "ab"}}}
	v, ok := upper.ValueOf(order)
	require.True(t, ok)
	assert.Equal(t, "AB", v)

	q := &recordingQuery{}
	expr, err := upper.FullyQualifiedLeftHandExpression(q)
	require.NoError(t, err)
	assert.Equal(t, "upper(t_items.sku)", expr)
}
