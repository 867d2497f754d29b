package queryir

// Predicate is a where-clause node.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern enables exhaustive type switches in Bind and
// Validate.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// CompareOp names a comparison of an attribute with one value.
type CompareOp string

const (
	OpEq    CompareOp = "eq"
	OpNotEq CompareOp = "not_eq"
	OpGt    CompareOp = "gt"
	OpGte   CompareOp = "gte"
	OpLt    CompareOp = "lt"
	OpLte   CompareOp = "lte"
)

var compareOps = []CompareOp{OpEq, OpNotEq, OpGt, OpGte, OpLt, OpLte}

// All matches every row.
type All struct{}

func (All) predicateNode() {}

// Compare matches rows whose attribute at Path compares with Value.
// A nil Value under eq and not_eq means is-null and is-not-null.
type Compare struct {
	Path  string
	Op    CompareOp
	Value any
}

func (Compare) predicateNode() {}

// In matches rows whose attribute at Path is one of Values, or none of
// them when Negate is set.
type In struct {
	Path   string
	Values []any
	Negate bool
}

func (In) predicateNode() {}

// Null matches rows whose attribute at Path is null, or not null when
// Negate is set.
type Null struct {
	Path   string
	Negate bool
}

func (Null) predicateNode() {}

// And matches rows every predicate matches.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or matches rows any predicate matches.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// AsOf selects row versions on an as-of axis of the portal. Exactly one
// form applies: At (a point in time), From and To (a range), Infinity
// (current versions), or Edge (every version).
type AsOf struct {
	Attribute string
	At        string
	From      string
	To        string
	Infinity  bool
	Edge      bool
}

func (AsOf) predicateNode() {}
