package attribute

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/roach88/chronorm/internal/dialect"
	"github.com/roach88/chronorm/internal/operation"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Calculator derives the value of a calculated attribute.
type Calculator[V any] interface {
	// Calculate returns the value for owner; ok is false for null.
	Calculate(owner any) (v V, ok bool)
	SQLExpression(q operation.SQLQuery) (string, error)
	String() string

	// Portal is the bus class whose owners the calculation reads.
	Portal() string
}

func newCalculated[V any](domain Domain[V], calc Calculator[V]) *Attribute[V] {
	return &Attribute[V]{
		name:     calc.String(),
		busClass: calc.Portal(),
		nullable: true,
		domain:   domain,
		kind:     KindCalculated,
		calc:     calc,
	}
}

type decimal = *apd.Decimal

type arithOp byte

const (
	opPlus   arithOp = '+'
	opMinus  arithOp = '-'
	opTimes  arithOp = '*'
	opDivide arithOp = '/'
	opMod    arithOp = '%'
)

func (op arithOp) name() string {
	switch op {
	case opPlus:
		return "Plus"
	case opMinus:
		return "Minus"
	case opTimes:
		return "Times"
	case opDivide:
		return "DividedBy"
	default:
		return "Mod"
	}
}

// arithmetic implements the operators for one value type. ok is false when
// the result is null.
type arithmetic[V any] interface {
	apply(op arithOp, l, r V) (V, bool)
	abs(v V) V
}

// integralArith wraps on overflow; division or modulo by zero is null.
type integralArith[V int32 | int64] struct{}

func (integralArith[V]) apply(op arithOp, l, r V) (V, bool) {
	switch op {
	case opPlus:
		return l + r, true
	case opMinus:
		return l - r, true
	case opTimes:
		return l * r, true
	case opDivide:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	default:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	}
}

func (integralArith[V]) abs(v V) V {
	if v < 0 {
		return -v
	}
	return v
}

// floatingArith follows IEEE 754: division by zero is infinite.
type floatingArith[V float32 | float64] struct{}

func (floatingArith[V]) apply(op arithOp, l, r V) (V, bool) {
	switch op {
	case opPlus:
		return l + r, true
	case opMinus:
		return l - r, true
	case opTimes:
		return l * r, true
	case opDivide:
		return l / r, true
	default:
		return V(math.Mod(float64(l), float64(r))), true
	}
}

func (floatingArith[V]) abs(v V) V { return V(math.Abs(float64(v))) }

// decimalArith computes with 38 digits; quotients are rounded half-up to
// scale.
type decimalArith struct {
	scale int
}

func decimalContext() *apd.Context {
	ctx := apd.BaseContext.WithPrecision(38)
	ctx.Rounding = apd.RoundHalfUp
	return ctx
}

func (d decimalArith) apply(op arithOp, l, r decimal) (decimal, bool) {
	ctx := decimalContext()
	out := new(apd.Decimal)
	var err error
	switch op {
	case opPlus:
		_, err = ctx.Add(out, l, r)
	case opMinus:
		_, err = ctx.Sub(out, l, r)
	case opTimes:
		_, err = ctx.Mul(out, l, r)
	case opDivide:
		if r.IsZero() {
			return nil, false
		}
		if _, err = ctx.Quo(out, l, r); err == nil {
			_, err = ctx.Quantize(out, out, -int32(d.scale))
		}
	default:
		if r.IsZero() {
			return nil, false
		}
		_, err = ctx.Rem(out, l, r)
	}
	if err != nil {
		return nil, false
	}
	return out, true
}

func (decimalArith) abs(v decimal) decimal {
	return new(apd.Decimal).Abs(v)
}

// resultScale is the declared scale of a decimal result.
func (op arithOp) resultScale(left, right int) int {
	switch op {
	case opTimes:
		return left + right
	case opDivide:
		return left
	default:
		return max(left, right)
	}
}

// convertOperand reads a numeric operand as V.
func convertOperand[V any](domain Domain[V], n Numeric, owner any) (V, bool) {
	var zero V
	raw, ok := n.Extract(owner)
	if !ok {
		return zero, false
	}
	if v, ok := raw.(V); ok {
		return v, true
	}
	return domain.Convert(raw)
}

func operandPortal(left, right Numeric) string {
	if p := left.BusClassName(); p != "" {
		return p
	}
	return right.BusClassName()
}

type binaryCalc[V any] struct {
	op          arithOp
	left, right Numeric
	domain      Domain[V]
	arith       arithmetic[V]
}

func (c *binaryCalc[V]) Calculate(owner any) (V, bool) {
	var zero V
	l, ok := convertOperand(c.domain, c.left, owner)
	if !ok {
		return zero, false
	}
	r, ok := convertOperand(c.domain, c.right, owner)
	if !ok {
		return zero, false
	}
	return c.arith.apply(c.op, l, r)
}

func (c *binaryCalc[V]) SQLExpression(q operation.SQLQuery) (string, error) {
	l, err := c.left.FullyQualifiedLeftHandExpression(q)
	if err != nil {
		return "", err
	}
	r, err := c.right.FullyQualifiedLeftHandExpression(q)
	if err != nil {
		return "", err
	}
	return "(" + l + " " + string(c.op) + " " + r + ")", nil
}

func (c *binaryCalc[V]) String() string {
	return "(" + c.left.String() + " " + string(c.op) + " " + c.right.String() + ")"
}

func (c *binaryCalc[V]) Portal() string { return operandPortal(c.left, c.right) }

func newBinary(op arithOp, a, b Numeric) (Numeric, error) {
	t := a.NumericType().Combine(b.NumericType())
	switch t {
	case NumericInt:
		return newCalculated[int32](IntDomain{}, &binaryCalc[int32]{op: op, left: a, right: b, domain: IntDomain{}, arith: integralArith[int32]{}}), nil
	case NumericLong:
		return newCalculated[int64](LongDomain{}, &binaryCalc[int64]{op: op, left: a, right: b, domain: LongDomain{}, arith: integralArith[int64]{}}), nil
	case NumericFloat:
		return newCalculated[float32](FloatDomain{}, &binaryCalc[float32]{op: op, left: a, right: b, domain: FloatDomain{}, arith: floatingArith[float32]{}}), nil
	case NumericDouble:
		return newCalculated[float64](DoubleDomain{}, &binaryCalc[float64]{op: op, left: a, right: b, domain: DoubleDomain{}, arith: floatingArith[float64]{}}), nil
	case NumericBigDecimal:
		d := DecimalDomain{Scale: op.resultScale(a.decimalScale(), b.decimalScale())}
		calc := &binaryCalc[decimal]{op: op, left: a, right: b, domain: d, arith: decimalArith{scale: a.decimalScale()}}
		return newCalculated[decimal](d, calc), nil
	default:
		return nil, NewUnsupportedError(a.String(), op.name()+" with "+b.String())
	}
}

type absCalc[V any] struct {
	operand Numeric
	domain  Domain[V]
	arith   arithmetic[V]
}

func (c *absCalc[V]) Calculate(owner any) (V, bool) {
	v, ok := convertOperand(c.domain, c.operand, owner)
	if !ok {
		return v, false
	}
	return c.arith.abs(v), true
}

func (c *absCalc[V]) SQLExpression(q operation.SQLQuery) (string, error) {
	e, err := c.operand.FullyQualifiedLeftHandExpression(q)
	if err != nil {
		return "", err
	}
	return "abs(" + e + ")", nil
}

func (c *absCalc[V]) String() string { return "abs(" + c.operand.String() + ")" }
func (c *absCalc[V]) Portal() string { return c.operand.BusClassName() }

// constantCalc is a literal operand.
type constantCalc[V any] struct {
	value  V
	domain Domain[V]
}

func (c *constantCalc[V]) Calculate(any) (V, bool) { return c.value, true }
func (c *constantCalc[V]) String() string          { return c.domain.Format(c.value) }
func (c *constantCalc[V]) Portal() string          { return "" }
func (c *constantCalc[V]) isConstant()             {}

func (c *constantCalc[V]) SQLExpression(operation.SQLQuery) (string, error) {
	return c.domain.Format(c.value), nil
}

type constantCalculator interface{ isConstant() }

func (a *Attribute[V]) constant() bool {
	_, ok := any(a.calc).(constantCalculator)
	return ok
}

func isConstant(n Numeric) bool {
	c, ok := n.(interface{ constant() bool })
	return ok && c.constant()
}

// NewConstant returns a numeric literal usable as an arithmetic operand.
// Integers become Int when they fit and Long otherwise; strings parse as
// decimals.
func NewConstant(v any) (Numeric, error) {
	switch x := v.(type) {
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return constantOf[int32](IntDomain{}, int32(x)), nil
		}
		return constantOf[int64](LongDomain{}, int64(x)), nil
	case int32:
		return constantOf[int32](IntDomain{}, x), nil
	case int64:
		return constantOf[int64](LongDomain{}, x), nil
	case float32:
		return constantOf[float32](FloatDomain{}, x), nil
	case float64:
		return constantOf[float64](DoubleDomain{}, x), nil
	case *apd.Decimal:
		return constantOf[decimal](DecimalDomain{Scale: decimalScaleOf(x)}, x), nil
	case string:
		d, _, err := apd.NewFromString(x)
		if err != nil {
			return nil, fmt.Errorf("constant %q is not a number", x)
		}
		return constantOf[decimal](DecimalDomain{Scale: decimalScaleOf(d)}, d), nil
	default:
		return nil, fmt.Errorf("constant of type %T is not numeric", v)
	}
}

func constantOf[V any](domain Domain[V], v V) *Attribute[V] {
	return newCalculated(domain, &constantCalc[V]{value: v, domain: domain})
}

func decimalScaleOf(d decimal) int {
	if d.Exponent < 0 {
		return int(-d.Exponent)
	}
	return 0
}

// stringCalc maps one string to another in memory and in SQL.
type stringCalc struct {
	operand *Attribute[string]
	label   string
	apply   func(string) string
	sql     func(q operation.SQLQuery, expr string) string
}

func (c *stringCalc) Calculate(owner any) (string, bool) {
	v, ok := c.operand.ValueOf(owner)
	if !ok {
		return "", false
	}
	return c.apply(v), true
}

func (c *stringCalc) SQLExpression(q operation.SQLQuery) (string, error) {
	e, err := c.operand.FullyQualifiedLeftHandExpression(q)
	if err != nil {
		return "", err
	}
	return c.sql(q, e), nil
}

func (c *stringCalc) String() string { return c.label + "(" + c.operand.String() + ")" }
func (c *stringCalc) Portal() string { return c.operand.busClass }

// onUnmapped builds a calculated attribute over the unmapped target of a and
// maps the result back through a's relationship path.
func onUnmapped(a *Attribute[string], build func(*Attribute[string]) *Attribute[string]) *Attribute[string] {
	if a.kind != KindMapped {
		return build(a)
	}
	return Mapped(build(a.wrapped), a.mapper, a.selector)
}

// ToLowerCase returns the calculated attribute lower(a).
func ToLowerCase(a *Attribute[string]) *Attribute[string] {
	return onUnmapped(a, func(t *Attribute[string]) *Attribute[string] {
		return newCalculated[string](StringDomain{}, &stringCalc{
			operand: t,
			label:   "lower",
			apply:   func(s string) string { return cases.Lower(language.Und).String(s) },
			sql:     func(_ operation.SQLQuery, e string) string { return "lower(" + e + ")" },
		})
	})
}

// ToUpperCase returns the calculated attribute upper(a).
func ToUpperCase(a *Attribute[string]) *Attribute[string] {
	return onUnmapped(a, func(t *Attribute[string]) *Attribute[string] {
		return newCalculated[string](StringDomain{}, &stringCalc{
			operand: t,
			label:   "upper",
			apply:   func(s string) string { return cases.Upper(language.Und).String(s) },
			sql:     func(_ operation.SQLQuery, e string) string { return "upper(" + e + ")" },
		})
	})
}

// Substring returns the characters of a from start up to end, both 0-based.
// A negative end runs to the end of the string.
func Substring(a *Attribute[string], start, end int) *Attribute[string] {
	start = max(start, 0)
	return onUnmapped(a, func(t *Attribute[string]) *Attribute[string] {
		return newCalculated[string](StringDomain{}, &stringCalc{
			operand: t,
			label:   "substring[" + strconv.Itoa(start) + ":" + strconv.Itoa(end) + "]",
			apply: func(s string) string {
				runes := []rune(s)
				hi := end
				if hi < 0 || hi > len(runes) {
					hi = len(runes)
				}
				if start >= hi {
					return ""
				}
				return string(runes[start:hi])
			},
			sql: func(_ operation.SQLQuery, e string) string {
				if end < 0 {
					return fmt.Sprintf("substr(%s, %d)", e, start+1)
				}
				return fmt.Sprintf("substr(%s, %d, %d)", e, start+1, max(end-start, 0))
			},
		})
	})
}

// convertCalc renders a numeric attribute as text.
type convertCalc struct {
	operand Numeric
}

func (c *convertCalc) Calculate(owner any) (string, bool) {
	v, ok := c.operand.Extract(owner)
	if !ok {
		return "", false
	}
	return c.operand.formatValue(v), true
}

// dialectQuery is implemented by queries that know their target database.
type dialectQuery interface {
	DatabaseType() dialect.DatabaseType
}

func (c *convertCalc) SQLExpression(q operation.SQLQuery) (string, error) {
	e, err := c.operand.FullyQualifiedLeftHandExpression(q)
	if err != nil {
		return "", err
	}
	target := "varchar"
	if dq, ok := q.(dialectQuery); ok {
		switch strings.ToLower(dq.DatabaseType().Name()) {
		case "mysql":
			target = "char"
		case "sqlite":
			target = "text"
		}
	}
	return "cast(" + e + " as " + target + ")", nil
}

func (c *convertCalc) String() string { return "string(" + c.operand.String() + ")" }
func (c *convertCalc) Portal() string { return c.operand.BusClassName() }

// ConvertToString returns the calculated attribute rendering n as text.
func ConvertToString(n Numeric) (*Attribute[string], error) {
	if err := requireNumeric("ConvertToString", n); err != nil {
		return nil, err
	}
	m := n.Mapper()
	out := newCalculated[string](StringDomain{}, &convertCalc{operand: n.unmapped(m)})
	return Mapped(out, m, nil), nil
}
