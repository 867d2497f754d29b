package attribute

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/roach88/chronorm/internal/columnar"
	"github.com/roach88/chronorm/internal/dialect"
)

// Family identifies the primitive type of an attribute.
type Family int

const (
	FamilyBoolean Family = iota + 1
	FamilyByte
	FamilyShort
	FamilyInt
	FamilyLong
	FamilyFloat
	FamilyDouble
	FamilyBigDecimal
	FamilyChar
	FamilyString
	FamilyByteArray
	FamilyDate
	FamilyTime
	FamilyTimestamp
	FamilyEnum
)

var familyNames = map[Family]string{
	FamilyBoolean:    "boolean",
	FamilyByte:       "byte",
	FamilyShort:      "short",
	FamilyInt:        "int",
	FamilyLong:       "long",
	FamilyFloat:      "float",
	FamilyDouble:     "double",
	FamilyBigDecimal: "bigdecimal",
	FamilyChar:       "char",
	FamilyString:     "string",
	FamilyByteArray:  "bytearray",
	FamilyDate:       "date",
	FamilyTime:       "time",
	FamilyTimestamp:  "timestamp",
	FamilyEnum:       "enum",
}

func (f Family) String() string {
	if n, ok := familyNames[f]; ok {
		return n
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// ParseFamily returns the family named s (case-insensitive).
func ParseFamily(s string) (Family, error) {
	s = strings.ToLower(s)
	for f, n := range familyNames {
		if n == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown attribute type %q", s)
}

// NullHash is the hash of a null value in every family.
const NullHash uint64 = 0x9e3779b97f4a7c15

// Domain supplies the value semantics of one primitive family: equality,
// ordering, hashing, text conversion, SQL binding, columnar encoding, and
// column type rules. A Domain is stateless apart from its declared
// parameters (string length, decimal precision) and safe for concurrent use.
type Domain[V any] interface {
	Family() Family

	// IsNull reports whether v is the family's in-band null: a nil slice or
	// pointer, or the zero time. Families without an in-band null return false.
	IsNull(v V) bool

	Equal(a, b V) bool
	Compare(a, b V) int
	Hash(v V) uint64

	// Convert adapts a loosely typed value (from YAML, flat files, or another
	// family) to V. ok is false when v cannot be represented.
	Convert(v any) (V, bool)

	Format(v V) string

	// Parse converts text to a value. layout applies to temporal families
	// and is ignored elsewhere; "" selects the default layouts.
	Parse(text, layout string) (V, error)

	// Param returns the driver value bound for v; NullParam the typed null.
	Param(v V) any
	NullParam() any
	NewScanner() Scanner[V]

	// Encode writes the values of the non-null rows; values has one entry
	// per row and null rows hold the zero value.
	Encode(w *columnar.Writer, values []V, nulls columnar.Bits)
	Decode(r *columnar.Reader, n int, nulls columnar.Bits) []V

	SQLType(dt dialect.DatabaseType) string

	// Accepts reports whether a catalog column can hold the family.
	Accepts(info dialect.ColumnInfo) bool
}

// Scanner reads one result-set column. A driver NULL leaves Value's ok false.
type Scanner[V any] interface {
	sql.Scanner
	Value() (V, bool)
}

func hashString(s string) uint64 { return xxhash.Sum64String(s) }

func hashInt(v int64) uint64 {
	// splitmix64 finalizer
	x := uint64(v)
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

func scanTypeError(family Family, src any) error {
	return fmt.Errorf("cannot scan %T into %s attribute", src, family)
}

// nonNull counts the rows of n not flagged in nulls.
func nonNull(nulls columnar.Bits, n int) int {
	return n - nulls.Count(n)
}
