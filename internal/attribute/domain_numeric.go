package attribute

import (
	"cmp"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/chronorm/internal/columnar"
	"github.com/roach88/chronorm/internal/dialect"
)

type integer interface {
	int8 | int16 | int32 | int64
}

type floating interface {
	float32 | float64
}

// IntegerDomain is the domain of the Byte, Short, Int, and Long families.
type IntegerDomain[V integer] struct{}

type (
	ByteDomain  = IntegerDomain[int8]
	ShortDomain = IntegerDomain[int16]
	IntDomain   = IntegerDomain[int32]
	LongDomain  = IntegerDomain[int64]
)

func (IntegerDomain[V]) width() int {
	switch any(V(0)).(type) {
	case int8:
		return 1
	case int16:
		return 2
	case int32:
		return 4
	default:
		return 8
	}
}

func (d IntegerDomain[V]) Family() Family {
	switch d.width() {
	case 1:
		return FamilyByte
	case 2:
		return FamilyShort
	case 4:
		return FamilyInt
	default:
		return FamilyLong
	}
}

func (d IntegerDomain[V]) bounds() (lo, hi int64) {
	bits := uint(d.width() * 8)
	if bits == 64 {
		return math.MinInt64, math.MaxInt64
	}
	return -1 << (bits - 1), 1<<(bits-1) - 1
}

func (IntegerDomain[V]) IsNull(V) bool      { return false }
func (IntegerDomain[V]) Equal(a, b V) bool  { return a == b }
func (IntegerDomain[V]) Compare(a, b V) int { return cmp.Compare(a, b) }
func (IntegerDomain[V]) Hash(v V) uint64    { return hashInt(int64(v)) }

func (d IntegerDomain[V]) fromInt64(i int64) (V, bool) {
	lo, hi := d.bounds()
	if i < lo || i > hi {
		return 0, false
	}
	return V(i), true
}

func (d IntegerDomain[V]) fromFloat64(f float64) (V, bool) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return d.fromInt64(int64(f))
}

func (d IntegerDomain[V]) Convert(v any) (V, bool) {
	switch x := v.(type) {
	case V:
		return x, true
	case int:
		return d.fromInt64(int64(x))
	case int8:
		return d.fromInt64(int64(x))
	case int16:
		return d.fromInt64(int64(x))
	case int32:
		return d.fromInt64(int64(x))
	case int64:
		return d.fromInt64(x)
	case uint:
		return d.fromUint64(uint64(x))
	case uint8:
		return d.fromInt64(int64(x))
	case uint16:
		return d.fromInt64(int64(x))
	case uint32:
		return d.fromInt64(int64(x))
	case uint64:
		return d.fromUint64(x)
	case float32:
		return d.fromFloat64(float64(x))
	case float64:
		return d.fromFloat64(x)
	case string:
		parsed, err := d.Parse(x, "")
		return parsed, err == nil
	default:
		return 0, false
	}
}

func (d IntegerDomain[V]) fromUint64(u uint64) (V, bool) {
	if u > math.MaxInt64 {
		return 0, false
	}
	return d.fromInt64(int64(u))
}

func (IntegerDomain[V]) Format(v V) string { return strconv.FormatInt(int64(v), 10) }

func (d IntegerDomain[V]) Parse(text, _ string) (V, error) {
	text = strings.TrimSpace(text)
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil {
			return 0, fmt.Errorf("'%s' is not a number", text)
		}
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("'%s' is not an integer", text)
		}
		v, ok := d.fromFloat64(f)
		if !ok {
			return 0, fmt.Errorf("'%s' is out of range for %s", text, d.Family())
		}
		return v, nil
	}
	v, ok := d.fromInt64(i)
	if !ok {
		return 0, fmt.Errorf("'%s' is out of range for %s", text, d.Family())
	}
	return v, nil
}

func (IntegerDomain[V]) Param(v V) any { return int64(v) }

func (d IntegerDomain[V]) NullParam() any {
	switch d.width() {
	case 1, 2:
		return sql.NullInt16{}
	case 4:
		return sql.NullInt32{}
	default:
		return sql.NullInt64{}
	}
}

func (d IntegerDomain[V]) NewScanner() Scanner[V] { return &integerScanner[V]{domain: d} }

func (d IntegerDomain[V]) Encode(w *columnar.Writer, values []V, nulls columnar.Bits) {
	packed := make([]uint64, 0, len(values))
	for i, v := range values {
		if !nulls.Get(i) {
			packed = append(packed, uint64(v))
		}
	}
	w.PutPlanes(packed, d.width())
}

func (d IntegerDomain[V]) Decode(r *columnar.Reader, n int, nulls columnar.Bits) []V {
	planes := r.Planes(nonNull(nulls, n), d.width())
	values := make([]V, n)
	j := 0
	for i := range values {
		if nulls.Get(i) || j >= len(planes) {
			continue
		}
		values[i] = V(planes[j])
		j++
	}
	return values
}

func (d IntegerDomain[V]) SQLType(dt dialect.DatabaseType) string {
	switch d.Family() {
	case FamilyByte:
		return dt.SQLTypeForByte()
	case FamilyShort:
		return dt.SQLTypeForShort()
	case FamilyInt:
		return dt.SQLTypeForInt()
	default:
		return dt.SQLTypeForLong()
	}
}

func (d IntegerDomain[V]) Accepts(info dialect.ColumnInfo) bool {
	switch d.Family() {
	case FamilyByte:
		return info.Type == dialect.TinyInt || info.Type == dialect.SmallInt
	case FamilyShort:
		return info.Type == dialect.Integer || info.Type == dialect.SmallInt
	case FamilyInt:
		return info.Type == dialect.Integer
	default:
		return info.Type == dialect.BigInt || info.Type == dialect.Numeric
	}
}

type integerScanner[V integer] struct {
	domain IntegerDomain[V]
	v      V
	ok     bool
}

func (s *integerScanner[V]) Scan(src any) error {
	s.ok = false
	if src == nil {
		return nil
	}
	switch x := src.(type) {
	case []byte:
		src = string(x)
	case bool:
		if x {
			src = int64(1)
		} else {
			src = int64(0)
		}
	}
	v, ok := s.domain.Convert(src)
	if !ok {
		return scanTypeError(s.domain.Family(), src)
	}
	s.v, s.ok = v, true
	return nil
}

func (s *integerScanner[V]) Value() (V, bool) { return s.v, s.ok }

// FloatingDomain is the domain of the Float and Double families.
type FloatingDomain[V floating] struct{}

type (
	FloatDomain  = FloatingDomain[float32]
	DoubleDomain = FloatingDomain[float64]
)

func (FloatingDomain[V]) bits() int {
	if _, ok := any(V(0)).(float32); ok {
		return 32
	}
	return 64
}

func (d FloatingDomain[V]) Family() Family {
	if d.bits() == 32 {
		return FamilyFloat
	}
	return FamilyDouble
}

func (FloatingDomain[V]) IsNull(V) bool { return false }

// Equal treats NaN as equal to itself, matching Hash.
func (FloatingDomain[V]) Equal(a, b V) bool {
	return a == b || (math.IsNaN(float64(a)) && math.IsNaN(float64(b)))
}

func (FloatingDomain[V]) Compare(a, b V) int { return cmp.Compare(a, b) }

func (d FloatingDomain[V]) Hash(v V) uint64 {
	if v == 0 {
		v = 0 // fold -0 into +0
	}
	if d.bits() == 32 {
		return hashInt(int64(math.Float32bits(float32(v))))
	}
	return hashInt(int64(math.Float64bits(float64(v))))
}

func (d FloatingDomain[V]) Convert(v any) (V, bool) {
	switch x := v.(type) {
	case V:
		return x, true
	case float32:
		return V(x), true
	case float64:
		return V(x), true
	case int:
		return V(x), true
	case int8:
		return V(x), true
	case int16:
		return V(x), true
	case int32:
		return V(x), true
	case int64:
		return V(x), true
	case uint8:
		return V(x), true
	case uint16:
		return V(x), true
	case uint32:
		return V(x), true
	case uint64:
		return V(x), true
	case string:
		parsed, err := d.Parse(x, "")
		return parsed, err == nil
	default:
		return 0, false
	}
}

func (d FloatingDomain[V]) Format(v V) string {
	return strconv.FormatFloat(float64(v), 'g', -1, d.bits())
}

func (d FloatingDomain[V]) Parse(text, _ string) (V, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), d.bits())
	if err != nil {
		return 0, fmt.Errorf("'%s' is not a number", text)
	}
	return V(f), nil
}

func (FloatingDomain[V]) Param(v V) any  { return float64(v) }
func (FloatingDomain[V]) NullParam() any { return sql.NullFloat64{} }

func (d FloatingDomain[V]) NewScanner() Scanner[V] { return &floatingScanner[V]{domain: d} }

func (d FloatingDomain[V]) Encode(w *columnar.Writer, values []V, nulls columnar.Bits) {
	packed := make([]uint64, 0, len(values))
	for i, v := range values {
		if nulls.Get(i) {
			continue
		}
		if d.bits() == 32 {
			packed = append(packed, uint64(math.Float32bits(float32(v))))
		} else {
			packed = append(packed, math.Float64bits(float64(v)))
		}
	}
	w.PutPlanes(packed, d.bits()/8)
}

func (d FloatingDomain[V]) Decode(r *columnar.Reader, n int, nulls columnar.Bits) []V {
	planes := r.Planes(nonNull(nulls, n), d.bits()/8)
	values := make([]V, n)
	j := 0
	for i := range values {
		if nulls.Get(i) || j >= len(planes) {
			continue
		}
		if d.bits() == 32 {
			values[i] = V(math.Float32frombits(uint32(planes[j])))
		} else {
			values[i] = V(math.Float64frombits(planes[j]))
		}
		j++
	}
	return values
}

func (d FloatingDomain[V]) SQLType(dt dialect.DatabaseType) string {
	if d.bits() == 32 {
		return dt.SQLTypeForFloat()
	}
	return dt.SQLTypeForDouble()
}

func (d FloatingDomain[V]) Accepts(info dialect.ColumnInfo) bool {
	switch info.Type {
	case dialect.Decimal, dialect.Numeric, dialect.Double:
		return true
	case dialect.Float:
		return d.bits() == 32 || info.Size == 8
	case dialect.Real:
		return d.bits() == 32
	default:
		return false
	}
}

type floatingScanner[V floating] struct {
	domain FloatingDomain[V]
	v      V
	ok     bool
}

func (s *floatingScanner[V]) Scan(src any) error {
	s.ok = false
	if src == nil {
		return nil
	}
	if b, ok := src.([]byte); ok {
		src = string(b)
	}
	v, ok := s.domain.Convert(src)
	if !ok {
		return scanTypeError(s.domain.Family(), src)
	}
	s.v, s.ok = v, true
	return nil
}

func (s *floatingScanner[V]) Value() (V, bool) { return s.v, s.ok }
