package attribute

import (
	"fmt"
	"math/bits"

	"github.com/roach88/chronorm/internal/operation"
)

// NumericType ranks the numeric families for arithmetic promotion.
//
// Each type carries a bit mask of the types it may be promoted to: itself and
// every more general type. Combining two operands intersects their masks and
// picks the least general type left, so Int with Double gives Double and
// Float with BigDecimal gives BigDecimal. Byte and Short compute as Int.
type NumericType uint8

const (
	NumericInt NumericType = 1 << iota
	NumericLong
	NumericFloat
	NumericDouble
	NumericBigDecimal
)

func (t NumericType) String() string {
	switch t {
	case NumericInt:
		return "int"
	case NumericLong:
		return "long"
	case NumericFloat:
		return "float"
	case NumericDouble:
		return "double"
	case NumericBigDecimal:
		return "bigdecimal"
	default:
		return fmt.Sprintf("NumericType(%d)", uint8(t))
	}
}

// promotions is the mask of types t may be promoted to.
func (t NumericType) promotions() NumericType {
	// every bit at or above t
	return ^(t - 1) & (NumericBigDecimal<<1 - 1)
}

// Combine returns the result type of arithmetic over t and o.
func (t NumericType) Combine(o NumericType) NumericType {
	both := t.promotions() & o.promotions()
	if both == 0 {
		return 0
	}
	return NumericType(1 << bits.TrailingZeros8(uint8(both)))
}

func numericTypeOf(f Family) NumericType {
	switch f {
	case FamilyByte, FamilyShort, FamilyInt:
		return NumericInt
	case FamilyLong:
		return NumericLong
	case FamilyFloat:
		return NumericFloat
	case FamilyDouble:
		return NumericDouble
	case FamilyBigDecimal:
		return NumericBigDecimal
	default:
		return 0
	}
}

// Numeric is an attribute usable in arithmetic: any attribute of a numeric
// family, calculated attributes included.
type Numeric interface {
	operation.Attribute

	// NumericType returns 0 for attributes of non-numeric families.
	NumericType() NumericType

	Mapper() operation.Mapper
	formatValue(v any) string
	decimalScale() int
	unmapped(prefix operation.Mapper) Numeric
	remapped(m operation.Mapper) Numeric
}

// NumericType returns the arithmetic rank of the attribute's family.
func (a *Attribute[V]) NumericType() NumericType {
	return numericTypeOf(a.domain.Family())
}

func (a *Attribute[V]) formatValue(x any) string {
	return a.domain.Format(a.unbox(x))
}

// decimalScale is the declared scale of BigDecimal attributes, or of the
// decimal expression a calculated attribute yields.
func (a *Attribute[V]) decimalScale() int {
	switch d := any(a.domain).(type) {
	case DecimalDomain:
		return d.Scale
	default:
		return 0
	}
}

// unmapped strips prefix from the front of a's mapper.
func (a *Attribute[V]) unmapped(prefix operation.Mapper) Numeric {
	if a.kind != KindMapped {
		return a
	}
	rest, ok := a.mapper.Remainder(prefix)
	if !ok {
		return a
	}
	return Mapped(a.wrapped, rest, nil)
}

func (a *Attribute[V]) remapped(m operation.Mapper) Numeric {
	return Mapped(a, m, nil)
}

func requireNumeric(op string, operands ...Numeric) error {
	for _, n := range operands {
		if n.NumericType() == 0 {
			return NewUnsupportedError(n.String(), op+" on a non-numeric attribute")
		}
	}
	return nil
}

// Plus returns the calculated attribute a + b.
func Plus(a, b Numeric) (Numeric, error) { return combine(opPlus, a, b) }

// Minus returns the calculated attribute a - b.
func Minus(a, b Numeric) (Numeric, error) { return combine(opMinus, a, b) }

// Times returns the calculated attribute a * b.
func Times(a, b Numeric) (Numeric, error) { return combine(opTimes, a, b) }

// DividedBy returns the calculated attribute a / b. Integer division by zero
// yields null.
func DividedBy(a, b Numeric) (Numeric, error) { return combine(opDivide, a, b) }

// Mod returns the calculated attribute a % b over integral operands.
func Mod(a, b Numeric) (Numeric, error) {
	if err := requireNumeric("Mod", a, b); err != nil {
		return nil, err
	}
	if t := a.NumericType().Combine(b.NumericType()); t != NumericInt && t != NumericLong {
		return nil, NewUnsupportedError(a.String(), "Mod over "+t.String())
	}
	return combine(opMod, a, b)
}

// PlusConst adds a constant.
func PlusConst(a Numeric, v any) (Numeric, error) { return withConstant(opPlus, a, v) }

// MinusConst subtracts a constant.
func MinusConst(a Numeric, v any) (Numeric, error) { return withConstant(opMinus, a, v) }

// TimesConst multiplies by a constant.
func TimesConst(a Numeric, v any) (Numeric, error) { return withConstant(opTimes, a, v) }

// DividedByConst divides by a constant.
func DividedByConst(a Numeric, v any) (Numeric, error) { return withConstant(opDivide, a, v) }

func withConstant(op arithOp, a Numeric, v any) (Numeric, error) {
	c, err := NewConstant(v)
	if err != nil {
		return nil, err
	}
	return combine(op, a, c)
}

// combine dispatches on the operands' relationship paths. Operands sharing
// a leading path compute over the remainders and are mapped back through the
// shared path, so the calculation reads one related row.
func combine(op arithOp, a, b Numeric) (Numeric, error) {
	if err := requireNumeric(op.name(), a, b); err != nil {
		return nil, err
	}
	am, bm := a.Mapper(), b.Mapper()
	if isConstant(a) {
		am = bm
	}
	if isConstant(b) {
		bm = am
	}
	common := am.CommonPrefix(bm)
	if common.IsEmpty() {
		return newBinary(op, a, b)
	}
	inner, err := newBinary(op, a.unmapped(common), b.unmapped(common))
	if err != nil {
		return nil, err
	}
	return inner.remapped(common), nil
}

// AbsoluteValue returns the calculated attribute |a|.
func AbsoluteValue(a Numeric) (Numeric, error) {
	if err := requireNumeric("AbsoluteValue", a); err != nil {
		return nil, err
	}
	m := a.Mapper()
	inner := a.unmapped(m)
	var out Numeric
	switch a.NumericType() {
	case NumericInt:
		out = newCalculated[int32](IntDomain{}, &absCalc[int32]{operand: inner, domain: IntDomain{}, arith: integralArith[int32]{}})
	case NumericLong:
		out = newCalculated[int64](LongDomain{}, &absCalc[int64]{operand: inner, domain: LongDomain{}, arith: integralArith[int64]{}})
	case NumericFloat:
		out = newCalculated[float32](FloatDomain{}, &absCalc[float32]{operand: inner, domain: FloatDomain{}, arith: floatingArith[float32]{}})
	case NumericDouble:
		out = newCalculated[float64](DoubleDomain{}, &absCalc[float64]{operand: inner, domain: DoubleDomain{}, arith: floatingArith[float64]{}})
	default:
		d := DecimalDomain{Scale: a.decimalScale()}
		out = newCalculated[decimal](d, &absCalc[decimal]{operand: inner, domain: d, arith: decimalArith{scale: d.Scale}})
	}
	if m.IsEmpty() {
		return out, nil
	}
	return out.remapped(m), nil
}
