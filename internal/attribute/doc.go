// Package attribute implements typed business-object attributes.
//
// An Attribute[V] names one property of a portal (a business class stored
// in one table). It builds predicates (operation.Operation), reads and
// writes the value on in-memory owners, binds and scans SQL values, encodes
// columns for snapshots, and parses flat-file tokens.
//
// ARCHITECTURE:
//
//	Domain[V]    value semantics per family: compare, hash, parse, SQL, codec
//	Accessor[V]  where the value lives on an owner (Row key or struct field)
//	Attribute[V] column, mapped, or calculated; shares one type, differs by Kind
//	AnyAttribute type-erased view for portals, stores, and tuples
//
// FAMILIES:
//
//	Boolean Byte Short Int Long Float Double BigDecimal
//	Char String ByteArray Date Time Timestamp Enum
//
// Each family has a Domain. BigDecimal values are *apd.Decimal.
//
// NULL:
//
// Null is "ok == false" from ValueOf, never a sentinel value. Predicates
// normalize null arguments:
//
//	Eq(null)    → IsNull
//	NotEq(null) → IsNotNull
//	In(∅)       → None
//	NotIn(∅)    → All
//
// AS-OF:
//
// AsOfAttribute pairs a from and to timestamp into a validity range. Eq
// selects the version valid at a time; Range selects overlapping versions;
// EqualsEdgePoint selects every version. The infinite-null variant stores
// the to-date of current rows as NULL.
//
// ARITHMETIC:
//
// Numeric attributes combine into calculated attributes. The result type is
// the most general of the two operand types:
//
//	Int < Long < Float < Double < BigDecimal
package attribute
