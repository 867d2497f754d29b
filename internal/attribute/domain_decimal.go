package attribute

import (
	"database/sql"
	"fmt"
	"math/big"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/roach88/chronorm/internal/columnar"
	"github.com/roach88/chronorm/internal/dialect"
)

// DecimalDomain is the domain of the BigDecimal family. Values are finite
// *apd.Decimal; nil is null. Precision and Scale are the declared column
// precision and scale.
type DecimalDomain struct {
	Precision int
	Scale     int
}

func (DecimalDomain) Family() Family { return FamilyBigDecimal }

func (DecimalDomain) IsNull(v *apd.Decimal) bool { return v == nil }

// Equal compares numerically, so 1.0 equals 1.00.
func (DecimalDomain) Equal(a, b *apd.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

func (DecimalDomain) Compare(a, b *apd.Decimal) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Cmp(b)
}

func (DecimalDomain) Hash(v *apd.Decimal) uint64 {
	if v == nil {
		return NullHash
	}
	if v.IsZero() {
		return hashString("0")
	}
	var reduced apd.Decimal
	reduced.Reduce(v)
	return hashString(reduced.Text('f'))
}

// context returns the arithmetic context for the declared precision.
func (d DecimalDomain) context() *apd.Context {
	precision := uint32(d.Precision)
	if precision == 0 {
		precision = 38
	}
	ctx := apd.BaseContext.WithPrecision(precision)
	ctx.Rounding = apd.RoundHalfUp
	return ctx
}

// normalize rounds v to the declared scale and rejects values with more
// integer digits than the precision allows.
func (d DecimalDomain) normalize(v *apd.Decimal) (*apd.Decimal, error) {
	if v.Form != apd.Finite {
		return nil, fmt.Errorf("'%s' is not a finite number", v.String())
	}
	if d.Precision == 0 {
		return v, nil
	}
	out := new(apd.Decimal)
	if _, err := d.context().Quantize(out, v, -int32(d.Scale)); err != nil {
		return nil, fmt.Errorf("'%s' does not fit decimal(%d,%d): %w", v.Text('f'), d.Precision, d.Scale, err)
	}
	if out.NumDigits() > int64(d.Precision) {
		return nil, fmt.Errorf("'%s' does not fit decimal(%d,%d)", v.Text('f'), d.Precision, d.Scale)
	}
	return out, nil
}

func (d DecimalDomain) Convert(v any) (*apd.Decimal, bool) {
	var out *apd.Decimal
	switch x := v.(type) {
	case *apd.Decimal:
		out = x
	case int:
		out = apd.New(int64(x), 0)
	case int8:
		out = apd.New(int64(x), 0)
	case int16:
		out = apd.New(int64(x), 0)
	case int32:
		out = apd.New(int64(x), 0)
	case int64:
		out = apd.New(x, 0)
	case float32:
		f, err := new(apd.Decimal).SetFloat64(float64(x))
		if err != nil {
			return nil, false
		}
		out = f
	case float64:
		f, err := new(apd.Decimal).SetFloat64(x)
		if err != nil {
			return nil, false
		}
		out = f
	case string:
		parsed, err := d.Parse(x, "")
		return parsed, err == nil
	default:
		return nil, false
	}
	if out == nil {
		return nil, false
	}
	normalized, err := d.normalize(out)
	return normalized, err == nil
}

func (DecimalDomain) Format(v *apd.Decimal) string {
	if v == nil {
		return "null"
	}
	return v.Text('f')
}

func (d DecimalDomain) Parse(text, _ string) (*apd.Decimal, error) {
	v, _, err := apd.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("'%s' is not a decimal number", text)
	}
	return d.normalize(v)
}

func (DecimalDomain) Param(v *apd.Decimal) any { return v.Text('f') }
func (DecimalDomain) NullParam() any           { return sql.NullString{} }

func (d DecimalDomain) NewScanner() Scanner[*apd.Decimal] { return &decimalScanner{domain: d} }

// Encode writes each non-null value as scale:i32 sign:1 coefficient:lp, the
// coefficient being the big-endian magnitude.
func (DecimalDomain) Encode(w *columnar.Writer, values []*apd.Decimal, nulls columnar.Bits) {
	for i, v := range values {
		if nulls.Get(i) {
			continue
		}
		w.PutInt32(-v.Exponent)
		if v.Negative {
			w.PutByte(1)
		} else {
			w.PutByte(0)
		}
		w.PutLengthPrefixed(v.Coeff.MathBigInt().Bytes())
	}
}

func (DecimalDomain) Decode(r *columnar.Reader, n int, nulls columnar.Bits) []*apd.Decimal {
	values := make([]*apd.Decimal, n)
	for i := range values {
		if nulls.Get(i) {
			continue
		}
		scale := r.Int32()
		negative := r.Byte() == 1
		magnitude := r.LengthPrefixed()
		if r.Err() != nil {
			return values
		}
		v := new(apd.Decimal)
		v.Coeff.SetMathBigInt(new(big.Int).SetBytes(magnitude))
		v.Exponent = -scale
		v.Negative = negative
		values[i] = v
	}
	return values
}

func (d DecimalDomain) SQLType(dt dialect.DatabaseType) string {
	return dt.SQLTypeForBigDecimal(d.Precision, d.Scale)
}

func (d DecimalDomain) Accepts(info dialect.ColumnInfo) bool {
	if info.Type != dialect.Decimal && info.Type != dialect.Numeric {
		return false
	}
	return info.Precision == d.Precision && info.Scale == d.Scale
}

type decimalScanner struct {
	domain DecimalDomain
	v      *apd.Decimal
}

func (s *decimalScanner) Scan(src any) error {
	s.v = nil
	if src == nil {
		return nil
	}
	if b, ok := src.([]byte); ok {
		src = string(b)
	}
	v, ok := s.domain.Convert(src)
	if !ok {
		return scanTypeError(FamilyBigDecimal, src)
	}
	s.v = v
	return nil
}

func (s *decimalScanner) Value() (*apd.Decimal, bool) { return s.v, s.v != nil }
