package attribute

import (
	"reflect"
	"sort"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/roach88/chronorm/internal/operation"
)

// Kind distinguishes the attribute variants sharing the Attribute type.
type Kind int

const (
	// KindColumn reads a value stored on the owner and bound to one column.
	KindColumn Kind = iota
	// KindMapped reaches a related owner through a relationship mapper.
	KindMapped
	// KindCalculated derives a read-only value from other attributes.
	KindCalculated
)

// Options configures a column attribute.
type Options struct {
	// Column is the physical column name; it defaults to the attribute name.
	Column string

	Nullable bool

	// Source marks the attribute that partitions rows by data source.
	Source bool
}

// Attribute is a named, typed property of a business object.
//
// The value semantics come from the Domain; reading and writing the value on
// an owner goes through the Accessor. Mapped and calculated attributes share
// the type and differ by Kind. Attributes are immutable after construction
// and safe for concurrent use.
type Attribute[V any] struct {
	name     string
	busClass string
	column   string
	nullable bool
	source   bool
	domain   Domain[V]
	access   Accessor[V]
	kind     Kind

	// mapped
	wrapped  *Attribute[V]
	mapper   operation.Mapper
	selector Selector

	// calculated
	calc Calculator[V]

	portal *Portal

	asc  atomic.Pointer[OrderBy]
	desc atomic.Pointer[OrderBy]
}

// New returns a column attribute of busClass.
func New[V any](busClass, name string, domain Domain[V], access Accessor[V], opts Options) *Attribute[V] {
	column := opts.Column
	if column == "" {
		column = name
	}
	return &Attribute[V]{
		name:     name,
		busClass: busClass,
		column:   column,
		nullable: opts.Nullable,
		source:   opts.Source,
		domain:   domain,
		access:   access,
		kind:     KindColumn,
	}
}

// ForRow returns a column attribute whose owners are Rows keyed by name.
func ForRow[V any](busClass, name string, domain Domain[V], opts Options) *Attribute[V] {
	return New(busClass, name, domain, RowAccessor(name, domain), opts)
}

func (a *Attribute[V]) AttributeName() string { return a.name }
func (a *Attribute[V]) BusClassName() string  { return a.busClass }
func (a *Attribute[V]) Domain() Domain[V]     { return a.domain }
func (a *Attribute[V]) Family() Family        { return a.domain.Family() }
func (a *Attribute[V]) Kind() Kind            { return a.kind }
func (a *Attribute[V]) IsNullable() bool      { return a.nullable }

// IsSourceAttribute reports whether the attribute partitions rows by source.
func (a *Attribute[V]) IsSourceAttribute() bool { return a.kind == KindColumn && a.source }

// Portal returns the portal the attribute was registered with, or nil.
func (a *Attribute[V]) Portal() *Portal { return a.portal }

// Mapper returns the relationship path of a mapped attribute; empty otherwise.
func (a *Attribute[V]) Mapper() operation.Mapper { return a.mapper }

// Unwrapped returns the attribute a mapped attribute reaches; other
// attributes return themselves.
func (a *Attribute[V]) Unwrapped() *Attribute[V] {
	if a.kind == KindMapped {
		return a.wrapped
	}
	return a
}

// String renders busClass.name; calculated attributes render their
// expression.
func (a *Attribute[V]) String() string {
	if a.kind == KindCalculated {
		return a.name
	}
	return a.busClass + "." + a.name
}

// Hash combines the bus class and attribute name.
func (a *Attribute[V]) Hash() uint64 {
	return xxhash.Sum64String(a.busClass) ^ xxhash.Sum64String(a.name)
}

// ValueOf returns the value on owner; ok is false for null. Mapped
// attributes resolve their selector first; a nil parent reads as null.
func (a *Attribute[V]) ValueOf(owner any) (V, bool) {
	var zero V
	switch a.kind {
	case KindMapped:
		parent := a.selector(owner)
		if parent == nil {
			return zero, false
		}
		return a.wrapped.ValueOf(parent)
	case KindCalculated:
		return a.calc.Calculate(owner)
	default:
		if owner == nil {
			return zero, false
		}
		v, ok := a.access.Get(owner)
		if !ok || a.domain.IsNull(v) {
			return zero, false
		}
		return v, true
	}
}

// IsAttributeNull reports whether the value on owner is null.
func (a *Attribute[V]) IsAttributeNull(owner any) bool {
	_, ok := a.ValueOf(owner)
	return !ok
}

// Extract is the boxed form of ValueOf.
func (a *Attribute[V]) Extract(owner any) (any, bool) {
	v, ok := a.ValueOf(owner)
	if !ok {
		return nil, false
	}
	return v, true
}

// SetValue writes v on owner. A null v (nil slice, zero time) sets null.
func (a *Attribute[V]) SetValue(owner any, v V) error {
	if a.domain.IsNull(v) {
		return a.SetNull(owner)
	}
	switch a.kind {
	case KindCalculated:
		return NewUnsupportedError(a.String(), "SetValue")
	case KindMapped:
		if parent := a.selector(owner); parent != nil {
			return a.wrapped.SetValue(parent, v)
		}
		return nil
	default:
		return a.access.Set(owner, v)
	}
}

// SetAny converts v through the domain and writes it; nil sets null.
func (a *Attribute[V]) SetAny(owner any, v any) error {
	if v == nil {
		return a.SetNull(owner)
	}
	typed, ok := a.domain.Convert(v)
	if !ok {
		return NewParseError(a.String(), 0, "cannot convert %v (%T) to %s", v, v, a.domain.Family())
	}
	return a.SetValue(owner, typed)
}

// SetNull writes null on owner.
func (a *Attribute[V]) SetNull(owner any) error {
	switch a.kind {
	case KindCalculated:
		return NewUnsupportedError(a.String(), "SetNull")
	case KindMapped:
		if parent := a.selector(owner); parent != nil {
			return a.wrapped.SetNull(parent)
		}
		return nil
	default:
		return a.access.SetNull(owner)
	}
}

// CompareValues compares two boxed values of the attribute's type.
func (a *Attribute[V]) CompareValues(x, y any) int {
	return a.domain.Compare(a.unbox(x), a.unbox(y))
}

// EqualValues compares two boxed values of the attribute's type.
func (a *Attribute[V]) EqualValues(x, y any) bool {
	return a.domain.Equal(a.unbox(x), a.unbox(y))
}

func (a *Attribute[V]) unbox(x any) V {
	if v, ok := x.(V); ok {
		return v
	}
	v, _ := a.domain.Convert(x)
	return v
}

// SQLParameter converts a boxed value to its driver value.
func (a *Attribute[V]) SQLParameter(x any) (any, error) {
	if x == nil {
		return a.domain.NullParam(), nil
	}
	v, ok := x.(V)
	if !ok {
		if v, ok = a.domain.Convert(x); !ok {
			return nil, NewParseError(a.String(), 0, "cannot bind %v (%T) as %s", x, x, a.domain.Family())
		}
	}
	return a.domain.Param(v), nil
}

// ValueEquals reports whether both owners hold equal values. Two nulls are
// equal; null never equals a value.
func (a *Attribute[V]) ValueEquals(first, second any) bool {
	if sameOwner(first, second) {
		return true
	}
	v1, ok1 := a.ValueOf(first)
	v2, ok2 := a.ValueOf(second)
	if !ok1 || !ok2 {
		return ok1 == ok2
	}
	return a.domain.Equal(v1, v2)
}

// ValueEqualsExtracted compares the value on first with the value other
// reads from second.
func (a *Attribute[V]) ValueEqualsExtracted(first any, second any, other operation.Attribute) bool {
	v1, ok1 := a.ValueOf(first)
	raw, ok2 := other.Extract(second)
	if !ok1 || !ok2 {
		return ok1 == ok2
	}
	v2, ok := raw.(V)
	if !ok {
		if v2, ok = a.domain.Convert(raw); !ok {
			return false
		}
	}
	return a.domain.Equal(v1, v2)
}

// ValueHash hashes the value on owner; null hashes to NullHash.
func (a *Attribute[V]) ValueHash(owner any) uint64 {
	v, ok := a.ValueOf(owner)
	if !ok {
		return NullHash
	}
	return a.domain.Hash(v)
}

// ValueOfAsString formats the value on owner, "null" for null.
func (a *Attribute[V]) ValueOfAsString(owner any) string {
	v, ok := a.ValueOf(owner)
	if !ok {
		return "null"
	}
	return a.domain.Format(v)
}

// CountUniqueInstances returns the number of distinct values across owners.
// A null first owner counts as a single instance; later nulls are skipped.
func (a *Attribute[V]) CountUniqueInstances(owners []any) int {
	if len(owners) == 0 {
		return 0
	}
	first, ok := a.ValueOf(owners[0])
	if !ok {
		return 1
	}
	var set *valueSet[V]
	for _, o := range owners[1:] {
		v, ok := a.ValueOf(o)
		if !ok {
			continue
		}
		if set != nil {
			set.add(v)
		} else if !a.domain.Equal(first, v) {
			set = newValueSet(a.domain)
			set.add(first)
			set.add(v)
		}
	}
	if set != nil {
		return set.size
	}
	return 1
}

// valueSet is a hash set keyed by the domain's hash and equality.
type valueSet[V any] struct {
	domain  Domain[V]
	buckets map[uint64][]V
	size    int
}

func newValueSet[V any](domain Domain[V]) *valueSet[V] {
	return &valueSet[V]{domain: domain, buckets: make(map[uint64][]V)}
}

// add inserts v and reports whether it was absent.
func (s *valueSet[V]) add(v V) bool {
	h := s.domain.Hash(v)
	for _, existing := range s.buckets[h] {
		if s.domain.Equal(existing, v) {
			return false
		}
	}
	s.buckets[h] = append(s.buckets[h], v)
	s.size++
	return true
}

// distinct returns the non-null values of values in first-occurrence order.
func distinct[V any](domain Domain[V], values []V) []V {
	set := newValueSet(domain)
	out := make([]V, 0, len(values))
	for _, v := range values {
		if domain.IsNull(v) {
			continue
		}
		if set.add(v) {
			out = append(out, v)
		}
	}
	return out
}

// OrderBy orders owners by one attribute. Nulls sort first ascending and
// last descending.
type OrderBy struct {
	Attribute  operation.Attribute
	Descending bool
	compare    func(x, y any) int
}

// Compare orders two owners.
func (o *OrderBy) Compare(x, y any) int {
	c := o.compare(x, y)
	if o.Descending {
		return -c
	}
	return c
}

// Sort sorts owners in place, keeping equal owners in their original order.
func (o *OrderBy) Sort(owners []any) {
	sort.SliceStable(owners, func(i, j int) bool { return o.Compare(owners[i], owners[j]) < 0 })
}

func (a *Attribute[V]) compareOwners(x, y any) int {
	v1, ok1 := a.ValueOf(x)
	v2, ok2 := a.ValueOf(y)
	switch {
	case !ok1 && !ok2:
		return 0
	case !ok1:
		return -1
	case !ok2:
		return 1
	}
	return a.domain.Compare(v1, v2)
}

// AscendingOrderBy returns the ascending comparator, built once.
func (a *Attribute[V]) AscendingOrderBy() *OrderBy {
	return a.orderBy(&a.asc, false)
}

// DescendingOrderBy returns the descending comparator, built once.
func (a *Attribute[V]) DescendingOrderBy() *OrderBy {
	return a.orderBy(&a.desc, true)
}

func (a *Attribute[V]) orderBy(slot *atomic.Pointer[OrderBy], descending bool) *OrderBy {
	if o := slot.Load(); o != nil {
		return o
	}
	o := &OrderBy{Attribute: a, Descending: descending, compare: a.compareOwners}
	if slot.CompareAndSwap(nil, o) {
		return o
	}
	return slot.Load()
}

// sameOwner reports whether a and b are the same pointer or map.
func sameOwner(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map:
		return va.UnsafePointer() == vb.UnsafePointer()
	default:
		return false
	}
}
