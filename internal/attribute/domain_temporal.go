package attribute

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/chronorm/internal/columnar"
	"github.com/roach88/chronorm/internal/dialect"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05.000"
	nanosLayout     = "2006-01-02 15:04:05.000000000"
)

// timestampLayouts are tried in order when no layout is given.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	dateLayout,
}

func parseTime(text, layout string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if layout != "" {
		t, err := time.ParseInLocation(layout, text, time.UTC)
		return t.UTC(), err == nil
	}
	for _, l := range timestampLayouts {
		if t, err := time.ParseInLocation(l, text, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func hashTime(t time.Time) uint64 {
	return hashInt(t.Unix()) ^ hashInt(int64(t.Nanosecond())+1)
}

// DateDomain is the domain of the Date family: a UTC midnight. The zero time
// is null.
type DateDomain struct{}

func (DateDomain) Family() Family             { return FamilyDate }
func (DateDomain) IsNull(v time.Time) bool    { return v.IsZero() }
func (DateDomain) Equal(a, b time.Time) bool  { return a.Equal(b) }
func (DateDomain) Compare(a, b time.Time) int { return a.Compare(b) }
func (DateDomain) Hash(v time.Time) uint64    { return hashTime(v) }
func (DateDomain) Format(v time.Time) string  { return v.Format(dateLayout) }
func (DateDomain) Param(v time.Time) any      { return v }
func (DateDomain) NullParam() any             { return sql.NullTime{} }

func (d DateDomain) NewScanner() Scanner[time.Time] {
	return &textScanner[time.Time]{convert: d.Convert, family: FamilyDate}
}

func truncateToDate(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func (d DateDomain) Convert(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return truncateToDate(x), true
	case []byte:
		t, err := d.Parse(string(x), "")
		return t, err == nil
	case string:
		t, err := d.Parse(x, "")
		return t, err == nil
	default:
		return time.Time{}, false
	}
}

func (DateDomain) Parse(text, layout string) (time.Time, error) {
	t, ok := parseTime(text, layout)
	if !ok {
		return time.Time{}, fmt.Errorf("'%s' is not a date", text)
	}
	return truncateToDate(t), nil
}

// Encode writes the Unix milliseconds of each non-null row as eight planes.
func (DateDomain) Encode(w *columnar.Writer, values []time.Time, nulls columnar.Bits) {
	packed := make([]uint64, 0, len(values))
	for i, v := range values {
		if !nulls.Get(i) {
			packed = append(packed, uint64(v.UnixMilli()))
		}
	}
	w.PutPlanes(packed, 8)
}

func (DateDomain) Decode(r *columnar.Reader, n int, nulls columnar.Bits) []time.Time {
	planes := r.Planes(nonNull(nulls, n), 8)
	values := make([]time.Time, n)
	j := 0
	for i := range values {
		if nulls.Get(i) || j >= len(planes) {
			continue
		}
		values[i] = time.UnixMilli(int64(planes[j])).UTC()
		j++
	}
	return values
}

func (DateDomain) SQLType(dt dialect.DatabaseType) string { return dt.SQLTypeForDate() }

func (DateDomain) Accepts(info dialect.ColumnInfo) bool { return info.Type == dialect.Date }

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
	Nanos  int
}

// NewTimeOfDay returns the time of day at h:m:s plus nanos.
func NewTimeOfDay(h, m, s, nanos int) TimeOfDay {
	return TimeOfDay{Hour: h, Minute: m, Second: s, Nanos: nanos}
}

func (t TimeOfDay) nanosOfDay() int64 {
	return ((int64(t.Hour)*60+int64(t.Minute))*60+int64(t.Second))*int64(time.Second) + int64(t.Nanos)
}

// String renders hh:mm:ss.fff, widening to nanoseconds when needed.
func (t TimeOfDay) String() string {
	if t.Nanos%int(time.Millisecond) == 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%03d", t.Hour, t.Minute, t.Second, t.Nanos/int(time.Millisecond))
	}
	return fmt.Sprintf("%02d:%02d:%02d.%09d", t.Hour, t.Minute, t.Second, t.Nanos)
}

// TimeDomain is the domain of the Time family.
type TimeDomain struct{}

func (TimeDomain) Family() Family            { return FamilyTime }
func (TimeDomain) IsNull(TimeOfDay) bool     { return false }
func (TimeDomain) Equal(a, b TimeOfDay) bool { return a == b }
func (TimeDomain) Hash(v TimeOfDay) uint64   { return hashInt(v.nanosOfDay()) }
func (TimeDomain) Format(v TimeOfDay) string { return v.String() }
func (TimeDomain) Param(v TimeOfDay) any     { return v.String() }
func (TimeDomain) NullParam() any            { return sql.NullString{} }

func (TimeDomain) Compare(a, b TimeOfDay) int {
	x, y := a.nanosOfDay(), b.nanosOfDay()
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func (d TimeDomain) NewScanner() Scanner[TimeOfDay] {
	return &textScanner[TimeOfDay]{convert: d.Convert, family: FamilyTime}
}

func (d TimeDomain) Convert(v any) (TimeOfDay, bool) {
	switch x := v.(type) {
	case TimeOfDay:
		return x, true
	case time.Time:
		return TimeOfDay{Hour: x.Hour(), Minute: x.Minute(), Second: x.Second(), Nanos: x.Nanosecond()}, true
	case []byte:
		t, err := d.Parse(string(x), "")
		return t, err == nil
	case string:
		t, err := d.Parse(x, "")
		return t, err == nil
	default:
		return TimeOfDay{}, false
	}
}

// Parse accepts hh:mm, hh:mm:ss, and hh:mm:ss.fraction with up to nine
// fractional digits. A trailing date part is rejected.
func (TimeDomain) Parse(text, _ string) (TimeOfDay, error) {
	text = strings.TrimSpace(text)
	bad := func(reason string) (TimeOfDay, error) {
		return TimeOfDay{}, fmt.Errorf("'%s' is not a time: %s", text, reason)
	}
	clock, fraction, hasFraction := strings.Cut(text, ".")
	parts := strings.Split(clock, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return bad("want hh:mm[:ss[.fff]]")
	}
	fields := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || len(p) == 0 || len(p) > 2 || n < 0 {
			return bad("malformed field")
		}
		fields[i] = n
	}
	if fields[0] > 23 {
		return bad("hour out of range")
	}
	if fields[1] > 59 {
		return bad("minute out of range")
	}
	if fields[2] > 59 {
		return bad("second out of range")
	}
	nanos := 0
	if hasFraction {
		if len(parts) != 3 || fraction == "" || len(fraction) > 9 {
			return bad("malformed fraction")
		}
		n, err := strconv.Atoi(fraction)
		if err != nil || n < 0 {
			return bad("malformed fraction")
		}
		for i := len(fraction); i < 9; i++ {
			n *= 10
		}
		nanos = n
	}
	return TimeOfDay{Hour: fields[0], Minute: fields[1], Second: fields[2], Nanos: nanos}, nil
}

// Encode writes hour, minute, and second bytes then the nanoseconds as an
// int32 for each non-null row.
func (TimeDomain) Encode(w *columnar.Writer, values []TimeOfDay, nulls columnar.Bits) {
	for i, v := range values {
		if nulls.Get(i) {
			continue
		}
		w.PutByte(byte(v.Hour))
		w.PutByte(byte(v.Minute))
		w.PutByte(byte(v.Second))
		w.PutInt32(int32(v.Nanos))
	}
}

func (TimeDomain) Decode(r *columnar.Reader, n int, nulls columnar.Bits) []TimeOfDay {
	values := make([]TimeOfDay, n)
	for i := range values {
		if nulls.Get(i) {
			continue
		}
		values[i] = TimeOfDay{
			Hour:   int(r.Byte()),
			Minute: int(r.Byte()),
			Second: int(r.Byte()),
			Nanos:  int(r.Int32()),
		}
	}
	return values
}

func (TimeDomain) SQLType(dt dialect.DatabaseType) string { return dt.SQLTypeForTime() }

func (TimeDomain) Accepts(info dialect.ColumnInfo) bool { return info.Type == dialect.Time }

// TimestampDomain is the domain of the Timestamp family. Values are UTC; the
// zero time is null.
type TimestampDomain struct{}

func (TimestampDomain) Family() Family             { return FamilyTimestamp }
func (TimestampDomain) IsNull(v time.Time) bool    { return v.IsZero() }
func (TimestampDomain) Equal(a, b time.Time) bool  { return a.Equal(b) }
func (TimestampDomain) Compare(a, b time.Time) int { return a.Compare(b) }
func (TimestampDomain) Hash(v time.Time) uint64    { return hashTime(v) }
func (TimestampDomain) Param(v time.Time) any      { return v.UTC() }
func (TimestampDomain) NullParam() any             { return sql.NullTime{} }

func (d TimestampDomain) NewScanner() Scanner[time.Time] {
	return &textScanner[time.Time]{convert: d.Convert, family: FamilyTimestamp}
}

func (TimestampDomain) Format(v time.Time) string {
	if v.Nanosecond()%int(time.Millisecond) != 0 {
		return v.UTC().Format(nanosLayout)
	}
	return v.UTC().Format(timestampLayout)
}

func (d TimestampDomain) Convert(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), true
	case []byte:
		t, err := d.Parse(string(x), "")
		return t, err == nil
	case string:
		t, err := d.Parse(x, "")
		return t, err == nil
	default:
		return time.Time{}, false
	}
}

func (TimestampDomain) Parse(text, layout string) (time.Time, error) {
	t, ok := parseTime(text, layout)
	if !ok {
		return time.Time{}, fmt.Errorf("'%s' is not a timestamp", text)
	}
	return t, nil
}

// Timestamp column marker bits.
const (
	markerNanos  byte = 1
	markerCommon byte = 2
)

type millisAndNanos struct {
	millis int64
	nanos  int32
}

func splitTimestamp(t time.Time) millisAndNanos {
	return millisAndNanos{millis: t.UnixMilli(), nanos: int32(t.Nanosecond() % int(time.Millisecond))}
}

func (m millisAndNanos) time() time.Time {
	return time.UnixMilli(m.millis).Add(time.Duration(m.nanos)).UTC()
}

// Encode writes a marker byte, then the common value and its bitmap when one
// value accounts for more than a sixteenth of the non-null rows, then the
// remaining rows' millis as eight planes, then their sub-millisecond nanos
// as four planes when any row has them.
//
//	marker:1 [common millis:i64 [nanos:i32] bitmap] millis planes [nanos planes]
func (TimestampDomain) Encode(w *columnar.Writer, values []time.Time, nulls columnar.Bits) {
	present := make([]millisAndNanos, 0, len(values))
	counts := make(map[millisAndNanos]int)
	var marker byte
	for i, v := range values {
		if nulls.Get(i) {
			continue
		}
		m := splitTimestamp(v)
		present = append(present, m)
		counts[m]++
		if m.nanos != 0 {
			marker |= markerNanos
		}
	}

	var common millisAndNanos
	best := 0
	for _, m := range present {
		if c := counts[m]; c > best {
			common, best = m, c
		}
	}
	if best > 1 && best > len(present)>>4 {
		marker |= markerCommon
	}

	w.PutByte(marker)
	rest := present
	if marker&markerCommon != 0 {
		w.PutInt64(common.millis)
		if marker&markerNanos != 0 {
			w.PutInt32(common.nanos)
		}
		bits := columnar.NewBits(len(present))
		rest = make([]millisAndNanos, 0, len(present)-best)
		for i, m := range present {
			if m == common {
				bits.Set(i)
			} else {
				rest = append(rest, m)
			}
		}
		w.PutBytes(bits)
	}

	millis := make([]uint64, len(rest))
	for i, m := range rest {
		millis[i] = uint64(m.millis)
	}
	w.PutPlanes(millis, 8)
	if marker&markerNanos != 0 {
		nanos := make([]uint64, len(rest))
		for i, m := range rest {
			nanos[i] = uint64(m.nanos)
		}
		w.PutPlanes(nanos, 4)
	}
}

func (TimestampDomain) Decode(r *columnar.Reader, n int, nulls columnar.Bits) []time.Time {
	values := make([]time.Time, n)
	count := nonNull(nulls, n)
	marker := r.Byte()

	var common millisAndNanos
	var isCommon columnar.Bits
	restCount := count
	if marker&markerCommon != 0 {
		common.millis = r.Int64()
		if marker&markerNanos != 0 {
			common.nanos = r.Int32()
		}
		isCommon = columnar.Bits(r.Bytes((count + 7) / 8))
		restCount = count - isCommon.Count(count)
	}
	if r.Err() != nil {
		return values
	}

	millis := r.Planes(restCount, 8)
	var nanos []uint64
	if marker&markerNanos != 0 {
		nanos = r.Planes(restCount, 4)
	}
	if r.Err() != nil {
		return values
	}

	j, k := 0, 0
	for i := range values {
		if nulls.Get(i) {
			continue
		}
		if isCommon.Get(j) {
			values[i] = common.time()
		} else {
			m := millisAndNanos{millis: int64(millis[k])}
			if nanos != nil {
				m.nanos = int32(nanos[k])
			}
			values[i] = m.time()
			k++
		}
		j++
	}
	return values
}

func (TimestampDomain) SQLType(dt dialect.DatabaseType) string { return dt.SQLTypeForTimestamp() }

func (TimestampDomain) Accepts(info dialect.ColumnInfo) bool {
	return info.Type == dialect.Timestamp
}
