package attribute

import (
	"github.com/roach88/chronorm/internal/operation"
)

// Selector resolves the related owner a mapped attribute reads from. It
// returns nil when there is no related owner.
type Selector func(owner any) any

// MapperSelector selects the first owner m navigates to from owner.
func MapperSelector(m operation.Mapper) Selector {
	return func(owner any) any {
		related, err := m.Navigate(owner)
		if err != nil || len(related) == 0 {
			return nil
		}
		return related[0]
	}
}

// ChainSelectors applies outer and then inner.
func ChainSelectors(outer, inner Selector) Selector {
	return func(owner any) any {
		mid := outer(owner)
		if mid == nil {
			return nil
		}
		return inner(mid)
	}
}

// Mapped returns an attribute of m's root portal reading wrapped through the
// relationship path m. sel resolves the related owner in memory; nil selects
// through m's navigators.
//
// Mapping a mapped attribute folds into one attribute whose mapper is m
// followed by the inner mapper. An empty m returns wrapped unchanged.
func Mapped[V any](wrapped *Attribute[V], m operation.Mapper, sel Selector) *Attribute[V] {
	if m.IsEmpty() {
		return wrapped
	}
	if sel == nil {
		sel = MapperSelector(m)
	}
	base, mapper := wrapped, m
	if wrapped.kind == KindMapped {
		base = wrapped.wrapped
		mapper = m.Chain(wrapped.mapper)
		sel = ChainSelectors(sel, wrapped.selector)
	}
	return &Attribute[V]{
		name:     mapper.Name() + "." + base.name,
		busClass: mapper.FromPortal(),
		column:   base.column,
		nullable: true,
		domain:   base.domain,
		kind:     KindMapped,
		wrapped:  base,
		mapper:   mapper,
		selector: sel,
	}
}

// MappedEquals reports whether two mapped attributes reach the same
// attribute through equal paths. Other attributes compare by identity.
func MappedEquals[V any](a, b *Attribute[V]) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.kind != KindMapped || b.kind != KindMapped {
		return false
	}
	return a.wrapped == b.wrapped && a.mapper.Equal(b.mapper)
}

// mappedBy re-roots a at m for attributes erased to AnyAttribute.
func (a *Attribute[V]) mappedBy(m operation.Mapper) AnyAttribute {
	return Mapped(a, m, nil)
}
