package operation

import (
	"fmt"
	"strings"
	"time"
)

// Attribute is the view of an attribute that operations depend on.
//
// Plain, mapped, and calculated attributes all implement it. Values crossing
// this interface are the attribute's boxed value type (int32 for an Int
// attribute, string for a String attribute, and so on); null is reported
// through the ok result of Extract and never appears as a value.
type Attribute interface {
	AttributeName() string
	BusClassName() string
	String() string

	// Extract returns the attribute's value on owner. ok is false for null.
	Extract(owner any) (v any, ok bool)
	CompareValues(a, b any) int
	EqualValues(a, b any) bool

	// FullyQualifiedLeftHandExpression renders the column (or calculated
	// expression) qualified with the alias q assigns to the owning portal.
	FullyQualifiedLeftHandExpression(q SQLQuery) (string, error)

	// SQLParameter converts a value to the driver value bound for it.
	SQLParameter(v any) (any, error)
}

// AsOfAttribute is the view of a bitemporal attribute that operations depend on.
type AsOfAttribute interface {
	AttributeName() string
	BusClassName() string
	String() string

	WhereClauseForValue(q SQLQuery, asOf time.Time) (string, []any, error)
	WhereClauseForRange(q SQLQuery, start, end time.Time) (string, []any, error)
	DataMatches(owner any, asOf time.Time) bool
	RangeMatches(owner any, start, end time.Time) bool
}

// SQLQuery is the query-construction context attributes render against.
//
// PushMapper/PopMapper follow stack discipline: every push is matched by a
// pop, including on error paths.
type SQLQuery interface {
	DatabaseAlias(portal string) string
	PushMapper(m Mapper)
	PopMapper()
}

// Operation is a predicate node.
//
// This is a sealed interface - only types in this package implement it.
type Operation interface {
	operationNode()

	// Portal returns the bus class name of the objects the operation filters.
	Portal() string
}

// All matches every row of a portal.
type All struct {
	On string
}

func (All) operationNode()    {}
func (a All) Portal() string { return a.On }

// None matches no rows.
type None struct {
	On string
}

func (None) operationNode()    {}
func (n None) Portal() string { return n.On }

// IsNull matches rows whose attribute is null.
type IsNull struct {
	Attribute Attribute
}

func (IsNull) operationNode()    {}
func (o IsNull) Portal() string { return o.Attribute.BusClassName() }

// IsNotNull matches rows whose attribute is not null.
type IsNotNull struct {
	Attribute Attribute
}

func (IsNotNull) operationNode()    {}
func (o IsNotNull) Portal() string { return o.Attribute.BusClassName() }

// Equals matches rows whose attribute equals Value.
type Equals struct {
	Attribute Attribute
	Value     any
}

func (Equals) operationNode()    {}
func (o Equals) Portal() string { return o.Attribute.BusClassName() }

// NotEquals matches rows whose attribute is not null and differs from Value.
type NotEquals struct {
	Attribute Attribute
	Value     any
}

func (NotEquals) operationNode()    {}
func (o NotEquals) Portal() string { return o.Attribute.BusClassName() }

// CompareOp is an ordering comparison.
type CompareOp int

const (
	GreaterThan CompareOp = iota
	GreaterThanEquals
	LessThan
	LessThanEquals
)

// String returns the SQL operator.
func (c CompareOp) String() string {
	switch c {
	case GreaterThan:
		return ">"
	case GreaterThanEquals:
		return ">="
	case LessThan:
		return "<"
	case LessThanEquals:
		return "<="
	default:
		return fmt.Sprintf("CompareOp(%d)", int(c))
	}
}

// holds reports whether cmp (the result of comparing a row value to the
// operand) satisfies the operator.
func (c CompareOp) holds(cmp int) bool {
	switch c {
	case GreaterThan:
		return cmp > 0
	case GreaterThanEquals:
		return cmp >= 0
	case LessThan:
		return cmp < 0
	case LessThanEquals:
		return cmp <= 0
	default:
		return false
	}
}

// Compare matches rows whose attribute compares to Value per Op.
type Compare struct {
	Attribute Attribute
	Op        CompareOp
	Value     any
}

func (Compare) operationNode()    {}
func (o Compare) Portal() string { return o.Attribute.BusClassName() }

// InSet matches rows whose attribute is one of Values (two or more).
type InSet struct {
	Attribute Attribute
	Values    []any
}

func (InSet) operationNode()    {}
func (o InSet) Portal() string { return o.Attribute.BusClassName() }

// NotInSet matches rows whose attribute is not null and not one of Values.
type NotInSet struct {
	Attribute Attribute
	Values    []any
}

func (NotInSet) operationNode()    {}
func (o NotInSet) Portal() string { return o.Attribute.BusClassName() }

// And is a conjunction. Use NewAnd to build normalized conjunctions.
type And struct {
	Operations []Operation
}

func (And) operationNode() {}
func (o And) Portal() string {
	if len(o.Operations) == 0 {
		return ""
	}
	return o.Operations[0].Portal()
}

// Or is a disjunction. Use NewOr to build normalized disjunctions.
type Or struct {
	Operations []Operation
}

func (Or) operationNode() {}
func (o Or) Portal() string {
	if len(o.Operations) == 0 {
		return ""
	}
	return o.Operations[0].Portal()
}

// SelfEquals compares two attributes reachable from the same root portal.
// It is the filter form of attribute equality: it never defines a join.
type SelfEquals struct {
	Left  Attribute
	Right Attribute
}

func (SelfEquals) operationNode()    {}
func (o SelfEquals) Portal() string { return o.Left.BusClassName() }

// SelfNotEquals matches rows where both attributes are non-null and differ.
// Both attributes belong to the same portal.
type SelfNotEquals struct {
	Left  Attribute
	Right Attribute
}

func (SelfNotEquals) operationNode()    {}
func (o SelfNotEquals) Portal() string { return o.Left.BusClassName() }

// Mapped scopes Operation under the relationship path described by Mapper.
type Mapped struct {
	Mapper    Mapper
	Operation Operation
}

func (Mapped) operationNode()    {}
func (o Mapped) Portal() string { return o.Mapper.FromPortal() }

// AsOfEquals selects the row version valid at Value. A zero Value asks for
// the open (current) version.
type AsOfEquals struct {
	Attribute AsOfAttribute
	Value     time.Time
}

func (AsOfEquals) operationNode()    {}
func (o AsOfEquals) Portal() string { return o.Attribute.BusClassName() }

// AsOfRange selects row versions overlapping [Start, End).
type AsOfRange struct {
	Attribute AsOfAttribute
	Start     time.Time
	End       time.Time
}

func (AsOfRange) operationNode()    {}
func (o AsOfRange) Portal() string { return o.Attribute.BusClassName() }

// AsOfEdgePoint lifts the as-of restriction so every row version matches.
type AsOfEdgePoint struct {
	Attribute AsOfAttribute
}

func (AsOfEdgePoint) operationNode()    {}
func (o AsOfEdgePoint) Portal() string { return o.Attribute.BusClassName() }

// MultiIn matches rows whose attribute tuple equals one of Rows.
// Every row has one value per attribute, in attribute order.
type MultiIn struct {
	Attributes []Attribute
	Rows       [][]any
}

func (MultiIn) operationNode() {}
func (o MultiIn) Portal() string {
	if len(o.Attributes) == 0 {
		return ""
	}
	return o.Attributes[0].BusClassName()
}

// Describe renders a human-readable form of op, used in CLI output and logs.
func Describe(op Operation) string {
	switch o := op.(type) {
	case All:
		return "all(" + o.On + ")"
	case None:
		return "none(" + o.On + ")"
	case IsNull:
		return o.Attribute.String() + " is null"
	case IsNotNull:
		return o.Attribute.String() + " is not null"
	case Equals:
		return fmt.Sprintf("%s = %v", o.Attribute, o.Value)
	case NotEquals:
		return fmt.Sprintf("%s != %v", o.Attribute, o.Value)
	case Compare:
		return fmt.Sprintf("%s %s %v", o.Attribute, o.Op, o.Value)
	case InSet:
		return fmt.Sprintf("%s in %v", o.Attribute, o.Values)
	case NotInSet:
		return fmt.Sprintf("%s not in %v", o.Attribute, o.Values)
	case And:
		return joinDescribed(o.Operations, " & ")
	case Or:
		return joinDescribed(o.Operations, " | ")
	case SelfEquals:
		return fmt.Sprintf("%s = %s", o.Left, o.Right)
	case SelfNotEquals:
		return fmt.Sprintf("%s != %s", o.Left, o.Right)
	case Mapped:
		return fmt.Sprintf("%s -> {%s}", o.Mapper, Describe(o.Operation))
	case AsOfEquals:
		if o.Value.IsZero() {
			return o.Attribute.String() + " = open"
		}
		return fmt.Sprintf("%s = %s", o.Attribute, o.Value.Format(time.RFC3339Nano))
	case AsOfRange:
		return fmt.Sprintf("%s in [%s, %s)", o.Attribute,
			o.Start.Format(time.RFC3339Nano), o.End.Format(time.RFC3339Nano))
	case AsOfEdgePoint:
		return o.Attribute.String() + " = edge point"
	case MultiIn:
		names := make([]string, len(o.Attributes))
		for i, a := range o.Attributes {
			names[i] = a.String()
		}
		return fmt.Sprintf("(%s) in %v", strings.Join(names, ", "), o.Rows)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%T", op)
	}
}

func joinDescribed(ops []Operation, sep string) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = Describe(op)
	}
	return "(" + strings.Join(parts, sep) + ")"
}
