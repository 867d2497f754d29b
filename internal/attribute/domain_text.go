package attribute

import (
	"bytes"
	"cmp"
	"database/sql"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/roach88/chronorm/internal/columnar"
	"github.com/roach88/chronorm/internal/dialect"
	"golang.org/x/text/unicode/norm"
)

// defaultStringLength is the column width used when no max length is declared.
const defaultStringLength = 255

// StringDomain is the domain of the String family. Parsed text is normalized
// to NFC. MaxLength, when positive, bounds the length in characters.
type StringDomain struct {
	MaxLength int
}

func (StringDomain) Family() Family          { return FamilyString }
func (StringDomain) IsNull(string) bool      { return false }
func (StringDomain) Equal(a, b string) bool  { return a == b }
func (StringDomain) Compare(a, b string) int { return strings.Compare(a, b) }
func (StringDomain) Hash(v string) uint64    { return hashString(v) }
func (StringDomain) Format(v string) string  { return v }
func (StringDomain) Param(v string) any      { return v }
func (StringDomain) NullParam() any          { return sql.NullString{} }

func (d StringDomain) NewScanner() Scanner[string] {
	return &textScanner[string]{convert: d.Convert, family: FamilyString}
}

func (d StringDomain) Convert(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case fmt.Stringer:
		return x.String(), true
	default:
		return "", false
	}
}

func (d StringDomain) Parse(text, _ string) (string, error) {
	s := norm.NFC.String(text)
	if d.MaxLength > 0 && utf8.RuneCountInString(s) > d.MaxLength {
		return "", fmt.Errorf("string '%s' is longer than the maximum length %d", s, d.MaxLength)
	}
	return s, nil
}

func (StringDomain) Encode(w *columnar.Writer, values []string, nulls columnar.Bits) {
	encodeLengthPrefixed(w, values, nulls, func(s string) []byte { return []byte(s) })
}

func (StringDomain) Decode(r *columnar.Reader, n int, nulls columnar.Bits) []string {
	return decodeLengthPrefixed(r, n, nulls, func(b []byte) string { return string(b) })
}

func (d StringDomain) SQLType(dt dialect.DatabaseType) string {
	if d.MaxLength <= 0 {
		return dt.SQLTypeForString(defaultStringLength)
	}
	return dt.SQLTypeForString(d.MaxLength)
}

func (d StringDomain) Accepts(info dialect.ColumnInfo) bool {
	return acceptsText(info, d.MaxLength)
}

func acceptsText(info dialect.ColumnInfo, maxLength int) bool {
	switch info.Type {
	case dialect.Char, dialect.VarChar, dialect.NChar, dialect.NVarChar,
		dialect.LongVarChar, dialect.LongNVarChar, dialect.Clob:
	default:
		return false
	}
	if maxLength > 0 && info.Size > 0 {
		return info.Size == maxLength
	}
	return true
}

// EnumDomain is the domain of the Enum family: a string restricted to
// Values. Enums order by declaration.
type EnumDomain struct {
	Values []string
}

func (EnumDomain) Family() Family         { return FamilyEnum }
func (EnumDomain) IsNull(string) bool     { return false }
func (EnumDomain) Equal(a, b string) bool { return a == b }
func (EnumDomain) Hash(v string) uint64   { return hashString(v) }
func (EnumDomain) Format(v string) string { return v }
func (EnumDomain) Param(v string) any     { return v }
func (EnumDomain) NullParam() any         { return sql.NullString{} }

func (d EnumDomain) NewScanner() Scanner[string] {
	return &textScanner[string]{convert: d.Convert, family: FamilyEnum}
}

func (d EnumDomain) ordinal(v string) int { return slices.Index(d.Values, v) }

func (d EnumDomain) Compare(a, b string) int { return cmp.Compare(d.ordinal(a), d.ordinal(b)) }

func (d EnumDomain) Convert(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	case fmt.Stringer:
		s = x.String()
	default:
		return "", false
	}
	return s, d.ordinal(s) >= 0
}

func (d EnumDomain) Parse(text, _ string) (string, error) {
	text = strings.TrimSpace(text)
	if d.ordinal(text) < 0 {
		return "", fmt.Errorf("unknown enum value '%s' (want one of %s)", text, strings.Join(d.Values, ", "))
	}
	return text, nil
}

func (EnumDomain) Encode(w *columnar.Writer, values []string, nulls columnar.Bits) {
	encodeLengthPrefixed(w, values, nulls, func(s string) []byte { return []byte(s) })
}

func (EnumDomain) Decode(r *columnar.Reader, n int, nulls columnar.Bits) []string {
	return decodeLengthPrefixed(r, n, nulls, func(b []byte) string { return string(b) })
}

func (d EnumDomain) maxLength() int {
	longest := 1
	for _, v := range d.Values {
		longest = max(longest, utf8.RuneCountInString(v))
	}
	return longest
}

func (d EnumDomain) SQLType(dt dialect.DatabaseType) string {
	return dt.SQLTypeForString(d.maxLength())
}

func (d EnumDomain) Accepts(info dialect.ColumnInfo) bool {
	return acceptsText(info, 0) && (info.Size == 0 || info.Size >= d.maxLength())
}

// CharDomain is the domain of the Char family: a single character from the
// Basic Multilingual Plane.
type CharDomain struct{}

func (CharDomain) Family() Family        { return FamilyChar }
func (CharDomain) IsNull(rune) bool      { return false }
func (CharDomain) Equal(a, b rune) bool  { return a == b }
func (CharDomain) Compare(a, b rune) int { return cmp.Compare(a, b) }
func (CharDomain) Hash(v rune) uint64    { return hashInt(int64(v)) }
func (CharDomain) Format(v rune) string  { return string(v) }
func (CharDomain) Param(v rune) any      { return string(v) }
func (CharDomain) NullParam() any        { return sql.NullString{} }

func (d CharDomain) NewScanner() Scanner[rune] {
	return &textScanner[rune]{convert: d.Convert, family: FamilyChar}
}

func (d CharDomain) Convert(v any) (rune, bool) {
	switch x := v.(type) {
	case rune:
		return x, x <= 0xFFFF
	case int64:
		return rune(x), x >= 0 && x <= 0xFFFF
	case int:
		return rune(x), x >= 0 && x <= 0xFFFF
	case []byte:
		r, err := d.Parse(string(x), "")
		return r, err == nil
	case string:
		r, err := d.Parse(x, "")
		return r, err == nil
	default:
		return 0, false
	}
}

func (CharDomain) Parse(text, _ string) (rune, error) {
	if utf8.RuneCountInString(text) != 1 {
		return 0, fmt.Errorf("char value too long or too short '%s'", text)
	}
	r, _ := utf8.DecodeRuneInString(text)
	if r > 0xFFFF {
		return 0, fmt.Errorf("char value '%s' is outside the basic multilingual plane", text)
	}
	return r, nil
}

// Encode writes two bytes per non-null row, high byte first.
func (CharDomain) Encode(w *columnar.Writer, values []rune, nulls columnar.Bits) {
	for i, v := range values {
		if nulls.Get(i) {
			continue
		}
		w.PutByte(byte(v >> 8))
		w.PutByte(byte(v))
	}
}

func (CharDomain) Decode(r *columnar.Reader, n int, nulls columnar.Bits) []rune {
	values := make([]rune, n)
	for i := range values {
		if nulls.Get(i) {
			continue
		}
		hi := r.Byte()
		lo := r.Byte()
		values[i] = rune(hi)<<8 | rune(lo)
	}
	return values
}

func (CharDomain) SQLType(dt dialect.DatabaseType) string { return dt.SQLTypeForChar() }

func (CharDomain) Accepts(info dialect.ColumnInfo) bool {
	return info.Size == 1 && (info.Type == dialect.Char || info.Type == dialect.VarChar)
}

// ByteArrayDomain is the domain of the ByteArray family. A nil slice is null;
// text form is hexadecimal.
type ByteArrayDomain struct {
	MaxLength int
}

func (ByteArrayDomain) Family() Family          { return FamilyByteArray }
func (ByteArrayDomain) IsNull(v []byte) bool    { return v == nil }
func (ByteArrayDomain) Compare(a, b []byte) int { return bytes.Compare(a, b) }
func (ByteArrayDomain) Param(v []byte) any      { return v }
func (ByteArrayDomain) NullParam() any          { return sql.Null[[]byte]{} }

func (ByteArrayDomain) Equal(a, b []byte) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return bytes.Equal(a, b)
}

// Hash is content based.
func (ByteArrayDomain) Hash(v []byte) uint64 {
	if v == nil {
		return NullHash
	}
	return xxhash.Sum64(v)
}

func (ByteArrayDomain) Format(v []byte) string {
	return strings.ToUpper(hex.EncodeToString(v))
}

func (d ByteArrayDomain) Convert(v any) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case string:
		b, err := d.Parse(x, "")
		return b, err == nil
	default:
		return nil, false
	}
}

// Parse decodes hex pairs, e.g. "0A1F".
func (ByteArrayDomain) Parse(text, _ string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if len(text)%2 != 0 {
		return nil, fmt.Errorf("could not parse '%s' because it has to have an even number of hex digits", text)
	}
	b, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("could not parse '%s' because it is not hexadecimal", text)
	}
	return b, nil
}

func (d ByteArrayDomain) NewScanner() Scanner[[]byte] { return &bytesScanner{} }

func (ByteArrayDomain) Encode(w *columnar.Writer, values [][]byte, nulls columnar.Bits) {
	encodeLengthPrefixed(w, values, nulls, func(b []byte) []byte { return b })
}

func (ByteArrayDomain) Decode(r *columnar.Reader, n int, nulls columnar.Bits) [][]byte {
	return decodeLengthPrefixed(r, n, nulls, func(b []byte) []byte { return b })
}

func (d ByteArrayDomain) SQLType(dt dialect.DatabaseType) string {
	if d.MaxLength <= 0 {
		return dt.SQLTypeForByteArray(defaultStringLength)
	}
	return dt.SQLTypeForByteArray(d.MaxLength)
}

func (ByteArrayDomain) Accepts(info dialect.ColumnInfo) bool {
	switch info.Type {
	case dialect.VarBinary, dialect.LongVarBinary, dialect.Blob:
		return true
	default:
		return false
	}
}

type bytesScanner struct {
	v  []byte
	ok bool
}

func (s *bytesScanner) Scan(src any) error {
	s.v, s.ok = nil, false
	switch x := src.(type) {
	case nil:
		return nil
	case []byte:
		s.v = bytes.Clone(x)
		if s.v == nil {
			s.v = []byte{}
		}
	case string:
		s.v = []byte(x)
	default:
		return scanTypeError(FamilyByteArray, src)
	}
	s.ok = true
	return nil
}

func (s *bytesScanner) Value() ([]byte, bool) { return s.v, s.ok }

// BooleanDomain is the domain of the Boolean family. false orders before true.
type BooleanDomain struct{}

func (BooleanDomain) Family() Family       { return FamilyBoolean }
func (BooleanDomain) IsNull(bool) bool     { return false }
func (BooleanDomain) Equal(a, b bool) bool { return a == b }
func (BooleanDomain) Param(v bool) any     { return v }
func (BooleanDomain) NullParam() any       { return sql.NullBool{} }
func (BooleanDomain) Format(v bool) string { return strconv.FormatBool(v) }

func (BooleanDomain) Compare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

func (BooleanDomain) Hash(v bool) uint64 {
	if v {
		return hashInt(1231)
	}
	return hashInt(1237)
}

func (d BooleanDomain) Convert(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case int64:
		return x != 0, x == 0 || x == 1
	case int:
		return x != 0, x == 0 || x == 1
	case []byte:
		b, err := d.Parse(string(x), "")
		return b, err == nil
	case string:
		b, err := d.Parse(x, "")
		return b, err == nil
	default:
		return false, false
	}
}

func (BooleanDomain) Parse(text, _ string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("'%s' is not a boolean", text)
	}
}

func (d BooleanDomain) NewScanner() Scanner[bool] {
	return &textScanner[bool]{convert: d.Convert, family: FamilyBoolean}
}

// Encode writes a value bit set covering every row; null rows are clear.
func (BooleanDomain) Encode(w *columnar.Writer, values []bool, nulls columnar.Bits) {
	bits := columnar.NewBits(len(values))
	for i, v := range values {
		if v && !nulls.Get(i) {
			bits.Set(i)
		}
	}
	w.PutBytes(bits)
}

func (BooleanDomain) Decode(r *columnar.Reader, n int, nulls columnar.Bits) []bool {
	values := make([]bool, n)
	if n == 0 {
		return values
	}
	bits := columnar.Bits(r.Bytes((n + 7) / 8))
	for i := range values {
		values[i] = !nulls.Get(i) && bits != nil && bits.Get(i)
	}
	return values
}

func (BooleanDomain) SQLType(dt dialect.DatabaseType) string { return dt.SQLTypeForBoolean() }

func (BooleanDomain) Accepts(info dialect.ColumnInfo) bool {
	return info.Type == dialect.Bit || info.Type == dialect.Boolean
}

// textScanner adapts a Convert function to Scanner.
type textScanner[V any] struct {
	convert func(any) (V, bool)
	family  Family
	v       V
	ok      bool
}

func (s *textScanner[V]) Scan(src any) error {
	var zero V
	s.v, s.ok = zero, false
	if src == nil {
		return nil
	}
	v, ok := s.convert(src)
	if !ok {
		return scanTypeError(s.family, src)
	}
	s.v, s.ok = v, true
	return nil
}

func (s *textScanner[V]) Value() (V, bool) { return s.v, s.ok }

func encodeLengthPrefixed[V any](w *columnar.Writer, values []V, nulls columnar.Bits, raw func(V) []byte) {
	for i, v := range values {
		if !nulls.Get(i) {
			w.PutLengthPrefixed(raw(v))
		}
	}
}

func decodeLengthPrefixed[V any](r *columnar.Reader, n int, nulls columnar.Bits, from func([]byte) V) []V {
	values := make([]V, n)
	for i := range values {
		if nulls.Get(i) {
			continue
		}
		b := r.LengthPrefixed()
		if r.Err() != nil {
			return values
		}
		values[i] = from(b)
	}
	return values
}
