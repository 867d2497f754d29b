package operation

// NewEquals returns Equals, or IsNull when v is nil.
func NewEquals(attr Attribute, v any) Operation {
	if v == nil {
		return IsNull{Attribute: attr}
	}
	return Equals{Attribute: attr, Value: v}
}

// NewNotEquals returns NotEquals, or IsNotNull when v is nil.
func NewNotEquals(attr Attribute, v any) Operation {
	if v == nil {
		return IsNotNull{Attribute: attr}
	}
	return NotEquals{Attribute: attr, Value: v}
}

// NewIn builds an in-set predicate over values that the caller has already
// de-duplicated and stripped of nulls.
//
//	0 values → None
//	1 value  → Equals
func NewIn(attr Attribute, values []any) Operation {
	switch len(values) {
	case 0:
		return None{On: attr.BusClassName()}
	case 1:
		return Equals{Attribute: attr, Value: values[0]}
	default:
		return InSet{Attribute: attr, Values: values}
	}
}

// NewNotIn is the complement of NewIn.
//
//	0 values → All
//	1 value  → NotEquals
func NewNotIn(attr Attribute, values []any) Operation {
	switch len(values) {
	case 0:
		return All{On: attr.BusClassName()}
	case 1:
		return NotEquals{Attribute: attr, Value: values[0]}
	default:
		return NotInSet{Attribute: attr, Values: values}
	}
}

// NewAnd builds a normalized conjunction: nested Ands are flattened, All
// terms are dropped, and any None term collapses the result to None.
// An empty conjunction is All over portal.
func NewAnd(ops ...Operation) Operation {
	var flat []Operation
	portal := ""
	for _, op := range ops {
		if op == nil {
			continue
		}
		if portal == "" {
			portal = op.Portal()
		}
		switch o := op.(type) {
		case None:
			return o
		case All:
			continue
		case And:
			flat = append(flat, o.Operations...)
		default:
			flat = append(flat, op)
		}
	}
	switch len(flat) {
	case 0:
		return All{On: portal}
	case 1:
		return flat[0]
	default:
		return And{Operations: flat}
	}
}

// NewOr builds a normalized disjunction: nested Ors are flattened, None terms
// are dropped, and any All term collapses the result to All.
// An empty disjunction is None over portal.
func NewOr(ops ...Operation) Operation {
	var flat []Operation
	portal := ""
	for _, op := range ops {
		if op == nil {
			continue
		}
		if portal == "" {
			portal = op.Portal()
		}
		switch o := op.(type) {
		case All:
			return o
		case None:
			continue
		case Or:
			flat = append(flat, o.Operations...)
		default:
			flat = append(flat, op)
		}
	}
	switch len(flat) {
	case 0:
		return None{On: portal}
	case 1:
		return flat[0]
	default:
		return Or{Operations: flat}
	}
}

// NewMapped wraps op with m. An empty mapper returns op unchanged and a
// nested Mapped is folded into a single chained mapper.
func NewMapped(m Mapper, op Operation) Operation {
	if m.IsEmpty() {
		return op
	}
	if inner, ok := op.(Mapped); ok {
		return Mapped{Mapper: m.Chain(inner.Mapper), Operation: inner.Operation}
	}
	return Mapped{Mapper: m, Operation: op}
}
