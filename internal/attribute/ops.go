package attribute

import (
	"fmt"

	"github.com/roach88/chronorm/internal/operation"
)

// lift builds an operation against the attribute a mapped attribute reaches
// and scopes it under the mapper. Trivial results stay trivial on the root
// portal.
func (a *Attribute[V]) lift(build func(*Attribute[V]) operation.Operation) operation.Operation {
	if a.kind != KindMapped {
		return build(a)
	}
	switch inner := build(a.wrapped).(type) {
	case operation.None:
		return operation.None{On: a.busClass}
	case operation.All:
		return operation.All{On: a.busClass}
	default:
		return operation.NewMapped(a.mapper, inner)
	}
}

func (a *Attribute[V]) none() operation.Operation { return operation.None{On: a.busClass} }

// IsNull matches owners whose value is null.
func (a *Attribute[V]) IsNull() operation.Operation {
	return a.lift(func(b *Attribute[V]) operation.Operation { return operation.IsNull{Attribute: b} })
}

// IsNotNull matches owners whose value is not null.
func (a *Attribute[V]) IsNotNull() operation.Operation {
	return a.lift(func(b *Attribute[V]) operation.Operation { return operation.IsNotNull{Attribute: b} })
}

// Eq matches owners whose value equals v. A null v matches null values.
func (a *Attribute[V]) Eq(v V) operation.Operation {
	if a.domain.IsNull(v) {
		return a.IsNull()
	}
	return a.lift(func(b *Attribute[V]) operation.Operation {
		return operation.Equals{Attribute: b, Value: v}
	})
}

// NotEq matches owners whose value is not null and differs from v. A null v
// matches every non-null value.
func (a *Attribute[V]) NotEq(v V) operation.Operation {
	if a.domain.IsNull(v) {
		return a.IsNotNull()
	}
	return a.lift(func(b *Attribute[V]) operation.Operation {
		return operation.NotEquals{Attribute: b, Value: v}
	})
}

// EqAny is Eq over a loosely typed value. A value the attribute's type
// cannot represent matches nothing.
func (a *Attribute[V]) EqAny(x any) operation.Operation {
	if x == nil {
		return a.IsNull()
	}
	v, ok := a.domain.Convert(x)
	if !ok {
		return a.none()
	}
	return a.Eq(v)
}

// NotEqAny is NotEq over a loosely typed value.
func (a *Attribute[V]) NotEqAny(x any) operation.Operation {
	if x == nil {
		return a.IsNotNull()
	}
	v, ok := a.domain.Convert(x)
	if !ok {
		return a.IsNotNull()
	}
	return a.NotEq(v)
}

func (a *Attribute[V]) compare(op operation.CompareOp, v V) operation.Operation {
	if a.domain.IsNull(v) {
		return a.none()
	}
	return a.lift(func(b *Attribute[V]) operation.Operation {
		return operation.Compare{Attribute: b, Op: op, Value: v}
	})
}

func (a *Attribute[V]) GreaterThan(v V) operation.Operation {
	return a.compare(operation.GreaterThan, v)
}

func (a *Attribute[V]) GreaterThanEquals(v V) operation.Operation {
	return a.compare(operation.GreaterThanEquals, v)
}

func (a *Attribute[V]) LessThan(v V) operation.Operation {
	return a.compare(operation.LessThan, v)
}

func (a *Attribute[V]) LessThanEquals(v V) operation.Operation {
	return a.compare(operation.LessThanEquals, v)
}

// CompareAny is an ordering comparison against a loosely typed value. A
// value the attribute's type cannot represent is an error.
func (a *Attribute[V]) CompareAny(op operation.CompareOp, x any) (operation.Operation, error) {
	if x == nil {
		return nil, fmt.Errorf("%s: cannot compare %s null", a, op)
	}
	v, ok := a.domain.Convert(x)
	if !ok {
		return nil, fmt.Errorf("%s: cannot compare with %v (%T)", a, x, x)
	}
	return a.compare(op, v), nil
}

func box[V any](values []V) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// In matches owners whose value is one of values. Nulls and duplicates are
// dropped; an empty set matches nothing and a single value becomes Eq.
func (a *Attribute[V]) In(values []V) operation.Operation {
	set := box(distinct(a.domain, values))
	return a.lift(func(b *Attribute[V]) operation.Operation { return operation.NewIn(b, set) })
}

// NotIn matches owners whose value is not null and not one of values. An
// empty set matches everything and a single value becomes NotEq.
func (a *Attribute[V]) NotIn(values []V) operation.Operation {
	set := box(distinct(a.domain, values))
	return a.lift(func(b *Attribute[V]) operation.Operation { return operation.NewNotIn(b, set) })
}

func (a *Attribute[V]) convertAll(values []any) []V {
	out := make([]V, 0, len(values))
	for _, x := range values {
		if x == nil {
			continue
		}
		if v, ok := a.domain.Convert(x); ok {
			out = append(out, v)
		}
	}
	return out
}

// InAny is In over loosely typed values; values the attribute's type cannot
// represent are dropped.
func (a *Attribute[V]) InAny(values []any) operation.Operation {
	return a.In(a.convertAll(values))
}

// NotInAny is NotIn over loosely typed values.
func (a *Attribute[V]) NotInAny(values []any) operation.Operation {
	return a.NotIn(a.convertAll(values))
}

// ZInWithMax is In, except a set with more than max distinct values matches
// nothing.
func (a *Attribute[V]) ZInWithMax(max int, values []V) operation.Operation {
	set := distinct(a.domain, values)
	if len(set) > max {
		return a.none()
	}
	return a.In(set)
}

func extractAll[O, V any](objects []O, extract func(O) (V, bool)) []V {
	values := make([]V, 0, len(objects))
	for _, o := range objects {
		if v, ok := extract(o); ok {
			values = append(values, v)
		}
	}
	return values
}

// InExtract projects objects through extract and matches owners whose value
// is one of the results. Objects extracting null are skipped.
func InExtract[O, V any](a *Attribute[V], objects []O, extract func(O) (V, bool)) operation.Operation {
	return a.In(extractAll(objects, extract))
}

// NotInExtract is the complement of InExtract.
func NotInExtract[O, V any](a *Attribute[V], objects []O, extract func(O) (V, bool)) operation.Operation {
	return a.NotIn(extractAll(objects, extract))
}

// JoinEq relates the portals of a and other where the two attribute values
// are equal. The result is a mapped All over other's portal whose anonymous
// mapper carries the join; operation.RelationshipMapper combines several into
// a named relationship.
//
// When both portals have a source attribute of the same family the source
// attributes are joined too. Only column attributes can be joined.
func (a *Attribute[V]) JoinEq(other *Attribute[V]) (operation.Operation, error) {
	if a.kind != KindColumn {
		return nil, NewUnsupportedError(a.String(), "JoinEq")
	}
	if other.kind != KindColumn {
		return nil, NewUnsupportedError(other.String(), "JoinEq")
	}
	join := operation.Join{
		Name:  other.busClass,
		From:  a.busClass,
		To:    other.busClass,
		Left:  []operation.Attribute{a},
		Right: []operation.Attribute{other},
	}
	if a.portal != nil && other.portal != nil {
		ls, rs := a.portal.SourceAttribute(), other.portal.SourceAttribute()
		switch {
		case ls == nil && rs == nil:
		case ls == nil || rs == nil:
			return nil, NewJoinError(a.String(), other.String(), "only one side has a source attribute")
		case ls.Family() != rs.Family():
			return nil, NewJoinError(a.String(), other.String(),
				"source attributes "+ls.String()+" and "+rs.String()+" have different types")
		default:
			if ls != AnyAttribute(a) {
				join.Left = append(join.Left, ls)
				join.Right = append(join.Right, rs)
			}
		}
		if !asOfCompatible(a.portal.AsOfAttributes(), other.portal.AsOfAttributes()) {
			return nil, NewJoinError(a.String(), other.String(), "as-of attributes are not compatible")
		}
	}
	if other.portal != nil {
		for _, ao := range other.portal.AsOfAttributes() {
			join.ToAsOf = append(join.ToAsOf, ao)
		}
	}
	return operation.Mapped{
		Mapper:    operation.NewMapper(join).AsAnonymous(),
		Operation: operation.All{On: other.busClass},
	}, nil
}

// JoinEqAny is JoinEq for an attribute of unknown value type. The two
// attributes must share a value type.
func (a *Attribute[V]) JoinEqAny(other AnyAttribute) (operation.Operation, error) {
	o, ok := other.(*Attribute[V])
	if !ok {
		return nil, NewJoinError(a.String(), other.String(), "value types differ")
	}
	return a.JoinEq(o)
}

// asOfCompatible reports whether two portals' as-of attributes can be
// joined: either side may have none; otherwise at least one name must match.
func asOfCompatible(left, right []*AsOfAttribute) bool {
	if len(left) == 0 || len(right) == 0 {
		return true
	}
	for _, l := range left {
		for _, r := range right {
			if l.CompatibleWith(r) {
				return true
			}
		}
	}
	return false
}

// FilterEq matches owners where a and other hold equal values. It filters
// without defining a join. When both sides are mapped, the longest shared
// relationship path is factored out so the comparison happens on one
// related row.
func (a *Attribute[V]) FilterEq(other *Attribute[V]) operation.Operation {
	if a.kind != KindMapped || other.kind != KindMapped {
		return operation.SelfEquals{Left: a, Right: other}
	}
	if a.mapper.Equal(other.mapper) {
		return operation.NewMapped(a.mapper, a.wrapped.FilterEq(other.wrapped))
	}
	if rest, ok := other.mapper.Remainder(a.mapper); ok {
		right := Mapped(other.wrapped, rest, nil)
		return operation.NewMapped(a.mapper, operation.SelfEquals{Left: a.wrapped, Right: right})
	}
	if rest, ok := a.mapper.Remainder(other.mapper); ok {
		left := Mapped(a.wrapped, rest, nil)
		return operation.NewMapped(other.mapper, operation.SelfEquals{Left: left, Right: other.wrapped})
	}
	return operation.SelfEquals{Left: a, Right: other}
}

// EqAttr is FilterEq.
//
// Deprecated: use FilterEq for filters and JoinEq for relationships.
func (a *Attribute[V]) EqAttr(other *Attribute[V]) operation.Operation {
	return a.FilterEq(other)
}

// NotEqAttr matches owners where a and other are both non-null and differ.
// Both attributes must belong to the same portal.
func (a *Attribute[V]) NotEqAttr(other *Attribute[V]) (operation.Operation, error) {
	if a.kind == KindMapped || other.kind == KindMapped || a.busClass != other.busClass {
		return nil, NewUnsupportedError(a.String(), "NotEqAttr across portals")
	}
	return operation.SelfNotEquals{Left: a, Right: other}, nil
}
