package attribute

import (
	"fmt"
)

// Accessor reads and writes one attribute value on an owner. ok is false when
// the owner holds null.
type Accessor[V any] interface {
	Get(owner any) (v V, ok bool)
	Set(owner any, v V) error
	SetNull(owner any) error
}

// Row is the schema-driven owner type: attribute name to value. A missing key
// or a nil value is null.
type Row map[string]any

func asRow(owner any) (Row, bool) {
	switch r := owner.(type) {
	case Row:
		return r, r != nil
	case map[string]any:
		return Row(r), r != nil
	default:
		return nil, false
	}
}

type rowAccessor[V any] struct {
	key     string
	convert func(any) (V, bool)
}

// RowAccessor reads key from Row owners, converting stored values through
// domain so rows decoded from YAML or JSON work unchanged.
func RowAccessor[V any](key string, domain Domain[V]) Accessor[V] {
	return rowAccessor[V]{key: key, convert: domain.Convert}
}

func (a rowAccessor[V]) Get(owner any) (V, bool) {
	var zero V
	row, ok := asRow(owner)
	if !ok {
		return zero, false
	}
	raw, ok := row[a.key]
	if !ok || raw == nil {
		return zero, false
	}
	if v, ok := raw.(V); ok {
		return v, true
	}
	return a.convert(raw)
}

func (a rowAccessor[V]) Set(owner any, v V) error {
	row, ok := asRow(owner)
	if !ok {
		return fmt.Errorf("set %s: owner is %T, not a row", a.key, owner)
	}
	row[a.key] = v
	return nil
}

func (a rowAccessor[V]) SetNull(owner any) error {
	row, ok := asRow(owner)
	if !ok {
		return fmt.Errorf("set %s: owner is %T, not a row", a.key, owner)
	}
	row[a.key] = nil
	return nil
}

type fieldAccessor[O, V any] struct {
	get     func(O) (V, bool)
	set     func(O, V)
	setNull func(O)
}

// FieldAccessor adapts typed getter and setter funcs over owners of type O,
// usually a struct pointer. set and setNull may be nil for read-only fields.
func FieldAccessor[O, V any](get func(O) (V, bool), set func(O, V), setNull func(O)) Accessor[V] {
	return fieldAccessor[O, V]{get: get, set: set, setNull: setNull}
}

func (a fieldAccessor[O, V]) Get(owner any) (V, bool) {
	var zero V
	o, ok := owner.(O)
	if !ok {
		return zero, false
	}
	return a.get(o)
}

func (a fieldAccessor[O, V]) Set(owner any, v V) error {
	o, ok := owner.(O)
	if !ok {
		return fmt.Errorf("owner is %T, want %T", owner, o)
	}
	if a.set == nil {
		return fmt.Errorf("field of %T is read-only", o)
	}
	a.set(o, v)
	return nil
}

func (a fieldAccessor[O, V]) SetNull(owner any) error {
	o, ok := owner.(O)
	if !ok {
		return fmt.Errorf("owner is %T, want %T", owner, o)
	}
	if a.setNull == nil {
		return fmt.Errorf("field of %T is not nullable", o)
	}
	a.setNull(o)
	return nil
}

// RowNavigator returns a relationship navigator reading related rows stored
// under name: a Row, a []Row, or a []any of rows.
func RowNavigator(name string) func(owner any) []any {
	return func(owner any) []any {
		row, ok := asRow(owner)
		if !ok {
			return nil
		}
		switch related := row[name].(type) {
		case Row:
			return []any{related}
		case map[string]any:
			return []any{Row(related)}
		case []Row:
			out := make([]any, len(related))
			for i, r := range related {
				out[i] = r
			}
			return out
		case []map[string]any:
			out := make([]any, len(related))
			for i, r := range related {
				out[i] = Row(r)
			}
			return out
		case []any:
			return related
		default:
			return nil
		}
	}
}
