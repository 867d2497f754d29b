package operation

import (
	"fmt"
	"time"
)

// Matches evaluates op against an in-memory owner of the operation's portal.
//
// Null semantics follow SQL: a null attribute value satisfies only IsNull.
// Mapped operations follow the mapper's navigators and match when any
// related owner matches. Related owners of a dated portal are limited to the
// version selected by the operation's root-level as-of predicate on the same
// axis, or to the current version when there is none.
func Matches(op Operation, owner any) (bool, error) {
	return matches(op, owner, asOfPins(op))
}

func matches(op Operation, owner any, pins map[string]Operation) (bool, error) {
	switch o := op.(type) {
	case All:
		return true, nil
	case None:
		return false, nil
	case IsNull:
		_, ok := o.Attribute.Extract(owner)
		return !ok, nil
	case IsNotNull:
		_, ok := o.Attribute.Extract(owner)
		return ok, nil
	case Equals:
		v, ok := o.Attribute.Extract(owner)
		return ok && o.Attribute.EqualValues(v, o.Value), nil
	case NotEquals:
		v, ok := o.Attribute.Extract(owner)
		return ok && !o.Attribute.EqualValues(v, o.Value), nil
	case Compare:
		v, ok := o.Attribute.Extract(owner)
		return ok && o.Op.holds(o.Attribute.CompareValues(v, o.Value)), nil
	case InSet:
		v, ok := o.Attribute.Extract(owner)
		return ok && containsValue(o.Attribute, o.Values, v), nil
	case NotInSet:
		v, ok := o.Attribute.Extract(owner)
		return ok && !containsValue(o.Attribute, o.Values, v), nil
	case And:
		for _, inner := range o.Operations {
			m, err := matches(inner, owner, pins)
			if err != nil || !m {
				return false, err
			}
		}
		return true, nil
	case Or:
		for _, inner := range o.Operations {
			m, err := matches(inner, owner, pins)
			if err != nil {
				return false, err
			}
			if m {
				return true, nil
			}
		}
		return false, nil
	case SelfEquals:
		l, lok := o.Left.Extract(owner)
		r, rok := o.Right.Extract(owner)
		return lok && rok && o.Left.EqualValues(l, r), nil
	case SelfNotEquals:
		l, lok := o.Left.Extract(owner)
		r, rok := o.Right.Extract(owner)
		return lok && rok && !o.Left.EqualValues(l, r), nil
	case Mapped:
		last := o.Mapper.Len() - 1
		related, err := o.Mapper.navigate(owner, func(hop int, r any) bool {
			var own Operation
			if hop == last {
				own = o.Operation
			}
			return versionSelected(o.Mapper.joins[hop], r, pins, own)
		})
		if err != nil {
			return false, err
		}
		for _, r := range related {
			m, err := matches(o.Operation, r, pins)
			if err != nil {
				return false, err
			}
			if m {
				return true, nil
			}
		}
		return false, nil
	case AsOfEquals:
		return o.Attribute.DataMatches(owner, o.Value), nil
	case AsOfRange:
		return o.Attribute.RangeMatches(owner, o.Start, o.End), nil
	case AsOfEdgePoint:
		return true, nil
	case MultiIn:
		values := make([]any, len(o.Attributes))
		for i, a := range o.Attributes {
			v, ok := a.Extract(owner)
			if !ok {
				return false, nil
			}
			values[i] = v
		}
		for _, row := range o.Rows {
			if rowMatches(o.Attributes, row, values) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported operation type: %T", op)
	}
}

// asOfPins returns the as-of predicates at the root level of op's
// conjunction, keyed by axis name.
func asOfPins(op Operation) map[string]Operation {
	pins := make(map[string]Operation)
	var walk func(Operation)
	walk = func(op Operation) {
		switch o := op.(type) {
		case And:
			for _, inner := range o.Operations {
				walk(inner)
			}
		case AsOfEquals:
			pins[o.Attribute.AttributeName()] = o
		case AsOfRange:
			pins[o.Attribute.AttributeName()] = o
		case AsOfEdgePoint:
			pins[o.Attribute.AttributeName()] = o
		}
	}
	walk(op)
	return pins
}

// versionSelected reports whether r, reached over j, is a version the pins
// select on every axis of j's target. Axes that own constrains itself are
// left to own.
func versionSelected(j Join, r any, pins map[string]Operation, own Operation) bool {
	for _, a := range j.ToAsOf {
		if own != nil && constrainsAsOf(own, a.AttributeName()) {
			continue
		}
		switch p := pins[a.AttributeName()].(type) {
		case AsOfEquals:
			if !a.DataMatches(r, p.Value) {
				return false
			}
		case AsOfRange:
			if !a.RangeMatches(r, p.Start, p.End) {
				return false
			}
		case AsOfEdgePoint:
		default:
			if !a.DataMatches(r, time.Time{}) {
				return false
			}
		}
	}
	return true
}

// constrainsAsOf reports whether op carries a predicate on the axis named
// name outside any nested relationship.
func constrainsAsOf(op Operation, name string) bool {
	switch o := op.(type) {
	case AsOfEquals:
		return o.Attribute.AttributeName() == name
	case AsOfRange:
		return o.Attribute.AttributeName() == name
	case AsOfEdgePoint:
		return o.Attribute.AttributeName() == name
	case And:
		for _, inner := range o.Operations {
			if constrainsAsOf(inner, name) {
				return true
			}
		}
	case Or:
		for _, inner := range o.Operations {
			if constrainsAsOf(inner, name) {
				return true
			}
		}
	}
	return false
}

// Filter returns the owners op matches, preserving order.
func Filter[O any](op Operation, owners []O) ([]O, error) {
	var out []O
	for _, o := range owners {
		m, err := Matches(op, o)
		if err != nil {
			return nil, err
		}
		if m {
			out = append(out, o)
		}
	}
	return out, nil
}

func containsValue(attr Attribute, set []any, v any) bool {
	for _, s := range set {
		if attr.EqualValues(s, v) {
			return true
		}
	}
	return false
}

func rowMatches(attrs []Attribute, row, values []any) bool {
	for i, a := range attrs {
		if !a.EqualValues(row[i], values[i]) {
			return false
		}
	}
	return true
}
