package attribute

import (
	"time"

	"github.com/roach88/chronorm/internal/operation"
)

// DefaultInfinity is the to-date of rows that are still current.
var DefaultInfinity = time.Date(9999, 12, 1, 23, 59, 0, 0, time.UTC)

// Clock supplies the current time for as-of predicates.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// AsOfOptions configures an as-of attribute.
type AsOfOptions struct {
	// Infinity is the to-date of current rows; DefaultInfinity when zero.
	Infinity time.Time

	// ToIsInclusive makes a row valid at its to-date: from < t <= to.
	// Otherwise rows are valid on [from, to).
	ToIsInclusive bool

	// FutureExpiringRowsExist marks tables where a current row may carry a
	// to-date in the future. Queries at or after now select by infinity.
	FutureExpiringRowsExist bool

	// Default is the as-of value of owners that carry none.
	Default time.Time

	// ProcessingDate marks the transaction-time axis.
	ProcessingDate bool

	// InfiniteNull stores infinity as NULL in the to column.
	InfiniteNull bool

	// Clock defaults to SystemClock.
	Clock Clock

	// Value reads the as-of date an owner was materialized at; optional.
	Value Accessor[time.Time]
}

// AsOfAttribute is a bitemporal axis: a [from, to) validity range stored in
// two timestamp columns. Predicates select the row version valid at a point
// in time, versions overlapping a range, or every version.
type AsOfAttribute struct {
	name     string
	busClass string
	from     *Attribute[time.Time]
	to       *Attribute[time.Time]
	opts     AsOfOptions
	portal   *Portal
}

var _ operation.AsOfAttribute = (*AsOfAttribute)(nil)

// NewAsOf returns an as-of attribute over the from and to timestamp
// attributes of busClass.
func NewAsOf(busClass, name string, from, to *Attribute[time.Time], opts AsOfOptions) *AsOfAttribute {
	if opts.Infinity.IsZero() {
		opts.Infinity = DefaultInfinity
	}
	opts.Infinity = opts.Infinity.UTC()
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	return &AsOfAttribute{name: name, busClass: busClass, from: from, to: to, opts: opts}
}

func (a *AsOfAttribute) AttributeName() string         { return a.name }
func (a *AsOfAttribute) BusClassName() string          { return a.busClass }
func (a *AsOfAttribute) String() string                { return a.busClass + "." + a.name }
func (a *AsOfAttribute) From() *Attribute[time.Time]   { return a.from }
func (a *AsOfAttribute) To() *Attribute[time.Time]     { return a.to }
func (a *AsOfAttribute) Infinity() time.Time           { return a.opts.Infinity }
func (a *AsOfAttribute) DefaultDate() time.Time        { return a.opts.Default }
func (a *AsOfAttribute) IsProcessingDate() bool        { return a.opts.ProcessingDate }
func (a *AsOfAttribute) IsInfiniteNull() bool          { return a.opts.InfiniteNull }
func (a *AsOfAttribute) ToIsInclusive() bool           { return a.opts.ToIsInclusive }
func (a *AsOfAttribute) FutureExpiringRowsExist() bool { return a.opts.FutureExpiringRowsExist }

// Portal returns the portal the attribute was registered with, or nil before
// NewPortal adopts it.
func (a *AsOfAttribute) Portal() *Portal { return a.portal }

// CompatibleWith reports whether other is the same axis on another portal.
func (a *AsOfAttribute) CompatibleWith(other *AsOfAttribute) bool {
	return other != nil && a.name == other.name
}

func (a *AsOfAttribute) isInfinity(t time.Time) bool { return t.Equal(a.opts.Infinity) }

// Eq selects the row version valid at t. A zero t selects nothing, except
// in the infinite-null variant where it selects the current version. With
// future-expiring rows, a t at or after now selects the current version.
func (a *AsOfAttribute) Eq(t time.Time) operation.Operation {
	if t.IsZero() {
		if a.opts.InfiniteNull {
			return operation.AsOfEquals{Attribute: a}
		}
		return operation.None{On: a.busClass}
	}
	t = t.UTC()
	if a.opts.FutureExpiringRowsExist && !t.Before(a.opts.Clock.Now()) {
		t = a.opts.Infinity
	}
	return operation.AsOfEquals{Attribute: a, Value: t}
}

// EqualsInfinity selects the current version.
func (a *AsOfAttribute) EqualsInfinity() operation.Operation {
	return operation.AsOfEquals{Attribute: a, Value: a.opts.Infinity}
}

// EqualsEdgePoint selects every version.
func (a *AsOfAttribute) EqualsEdgePoint() operation.Operation {
	return operation.AsOfEdgePoint{Attribute: a}
}

// Range selects versions overlapping [start, end).
func (a *AsOfAttribute) Range(start, end time.Time) operation.Operation {
	return operation.AsOfRange{Attribute: a, Start: start.UTC(), End: end.UTC()}
}

func (a *AsOfAttribute) distinctDates(values []time.Time) []time.Time {
	return distinct[time.Time](TimestampDomain{}, values)
}

// InExtract projects objects through extract and selects the version valid at
// the single date they share. Zero or several distinct dates are an error.
func (a *AsOfAttribute) InExtract(objects []any, extract func(any) (time.Time, bool)) (operation.Operation, error) {
	dates := a.distinctDates(extractAll(objects, extract))
	if len(dates) != 1 {
		return nil, &Error{
			Code:      ErrCodeAsOfValue,
			Attribute: a.String(),
			Message:   "as-of attribute requires exactly one distinct date",
		}
	}
	return a.Eq(dates[0]), nil
}

// ZInWithMax selects the version valid at the single distinct date in
// values; several dates select nothing.
func (a *AsOfAttribute) ZInWithMax(max int, values []time.Time) operation.Operation {
	dates := a.distinctDates(values)
	if len(dates) != 1 || max < 1 {
		return operation.None{On: a.busClass}
	}
	return a.Eq(dates[0])
}

// bind renders t as a timestamp driver value regardless of the to column's
// null mapping.
func bind(t time.Time) any { return TimestampDomain{}.Param(t) }

func (a *AsOfAttribute) columns(q operation.SQLQuery) (from, to string, err error) {
	if from, err = a.from.FullyQualifiedLeftHandExpression(q); err != nil {
		return "", "", err
	}
	if to, err = a.to.FullyQualifiedLeftHandExpression(q); err != nil {
		return "", "", err
	}
	return from, to, nil
}

// WhereClauseForValue renders the predicate selecting the version valid at
// asOf. A zero asOf means the current version.
func (a *AsOfAttribute) WhereClauseForValue(q operation.SQLQuery, asOf time.Time) (string, []any, error) {
	from, to, err := a.columns(q)
	if err != nil {
		return "", nil, err
	}
	inf := a.opts.Infinity
	if a.opts.InfiniteNull {
		switch {
		case asOf.IsZero() || a.isInfinity(asOf):
			return "(" + to + " = ? OR " + to + " IS NULL)", []any{bind(inf)}, nil
		case a.opts.ToIsInclusive:
			return from + " < ? AND (" + to + " >= ? OR " + to + " IS NULL)", []any{bind(asOf), bind(asOf)}, nil
		default:
			return from + " <= ? AND (" + to + " > ? OR " + to + " IS NULL)", []any{bind(asOf), bind(asOf)}, nil
		}
	}
	switch {
	case asOf.IsZero() || a.isInfinity(asOf):
		return to + " = ?", []any{bind(inf)}, nil
	case a.opts.ToIsInclusive:
		return from + " < ? AND " + to + " >= ?", []any{bind(asOf), bind(asOf)}, nil
	default:
		return from + " <= ? AND " + to + " > ?", []any{bind(asOf), bind(asOf)}, nil
	}
}

// WhereClauseForRange renders the predicate selecting versions overlapping
// [start, end). The lower bound on from is dropped when end is infinity.
func (a *AsOfAttribute) WhereClauseForRange(q operation.SQLQuery, start, end time.Time) (string, []any, error) {
	from, to, err := a.columns(q)
	if err != nil {
		return "", nil, err
	}
	toTerm := to + " > ?"
	if a.opts.InfiniteNull {
		toTerm = "(" + to + " > ? OR " + to + " IS NULL)"
	}
	if a.isInfinity(end) {
		return toTerm, []any{bind(start)}, nil
	}
	return from + " < ? AND " + toTerm, []any{bind(end), bind(start)}, nil
}

// validity returns the [from, to) range of owner; a null to reads as
// infinity.
func (a *AsOfAttribute) validity(owner any) (from, to time.Time, ok bool) {
	from, ok = a.from.ValueOf(owner)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	to, toOK := a.to.ValueOf(owner)
	if !toOK {
		to = a.opts.Infinity
	}
	return from, to, true
}

// AsOfDateMatchesRange reports whether asOf falls in [from, to), or in
// (from, to] when the to-date is inclusive.
func (a *AsOfAttribute) AsOfDateMatchesRange(asOf, from, to time.Time) bool {
	if a.opts.ToIsInclusive {
		return asOf.After(from) && !asOf.After(to)
	}
	return !asOf.Before(from) && asOf.Before(to)
}

// DataMatches reports whether owner is the version valid at asOf; a zero
// asOf matches the current version.
func (a *AsOfAttribute) DataMatches(owner any, asOf time.Time) bool {
	from, to, ok := a.validity(owner)
	if !ok {
		return false
	}
	if asOf.IsZero() || a.isInfinity(asOf) {
		return a.isInfinity(to)
	}
	return a.AsOfDateMatchesRange(asOf, from, to)
}

// RangeMatches reports whether owner's validity overlaps [start, end).
func (a *AsOfAttribute) RangeMatches(owner any, start, end time.Time) bool {
	return a.HasRangeOverlap(owner, start, end)
}

// HasRangeOverlap reports whether owner's validity overlaps [start, end).
func (a *AsOfAttribute) HasRangeOverlap(owner any, start, end time.Time) bool {
	from, to, ok := a.validity(owner)
	if !ok {
		return false
	}
	return !(!end.After(from) || !start.Before(to))
}

// ValueOf returns the as-of date owner was materialized at, falling back to
// the default date. In the infinite-null variant a null reads as infinity.
func (a *AsOfAttribute) ValueOf(owner any) (time.Time, bool) {
	if a.opts.Value != nil {
		if v, ok := a.opts.Value.Get(owner); ok && !v.IsZero() {
			return v, true
		}
	}
	if !a.opts.Default.IsZero() {
		return a.opts.Default, true
	}
	if a.opts.InfiniteNull {
		return a.opts.Infinity, true
	}
	return time.Time{}, false
}

// ValueEquals compares the as-of dates of two owners.
func (a *AsOfAttribute) ValueEquals(first, second any) bool {
	v1, ok1 := a.ValueOf(first)
	v2, ok2 := a.ValueOf(second)
	if !ok1 || !ok2 {
		return ok1 == ok2
	}
	return v1.Equal(v2)
}

// ValueHash hashes the as-of date of owner.
func (a *AsOfAttribute) ValueHash(owner any) uint64 {
	v, ok := a.ValueOf(owner)
	if !ok {
		return NullHash
	}
	return TimestampDomain{}.Hash(v)
}

// SetValue is not supported: the as-of date is derived from the query.
func (a *AsOfAttribute) SetValue(any, time.Time) error {
	return NewUnsupportedError(a.String(), "SetValue")
}

// ColumnName is not supported: the axis spans two columns.
func (a *AsOfAttribute) ColumnName() (string, error) {
	return "", NewUnsupportedError(a.String(), "ColumnName")
}

// AscendingOrderBy is not supported; order by the from or to attribute.
func (a *AsOfAttribute) AscendingOrderBy() (*OrderBy, error) {
	return nil, NewUnsupportedError(a.String(), "AscendingOrderBy")
}

// IsMilestoningValid reports whether owner has a non-empty validity range on
// every axis.
func IsMilestoningValid(owner any, asOfs ...*AsOfAttribute) bool {
	for _, a := range asOfs {
		from, to, ok := a.validity(owner)
		if !ok || !from.Before(to) {
			return false
		}
	}
	return true
}

// IsMilestoningOverlap reports whether the validity ranges of x and y
// overlap on every axis.
func IsMilestoningOverlap(x, y any, asOfs ...*AsOfAttribute) bool {
	for _, a := range asOfs {
		xf, xt, ok := a.validity(x)
		if !ok {
			return false
		}
		yf, yt, ok := a.validity(y)
		if !ok {
			return false
		}
		if !xf.Before(yt) || !yf.Before(xt) {
			return false
		}
	}
	return true
}

// infiniteNullDomain is a timestamp domain binding infinity as NULL.
type infiniteNullDomain struct {
	TimestampDomain
	infinity time.Time
}

func (d infiniteNullDomain) Param(v time.Time) any {
	if v.Equal(d.infinity) {
		return d.NullParam()
	}
	return d.TimestampDomain.Param(v)
}

type infiniteNullAccessor struct {
	inner    Accessor[time.Time]
	infinity time.Time
}

func (a infiniteNullAccessor) Get(owner any) (time.Time, bool) {
	v, ok := a.inner.Get(owner)
	if !ok || v.IsZero() {
		return a.infinity, true
	}
	return v, true
}

func (a infiniteNullAccessor) Set(owner any, v time.Time) error {
	if v.Equal(a.infinity) {
		return a.inner.SetNull(owner)
	}
	return a.inner.Set(owner, v)
}

func (a infiniteNullAccessor) SetNull(owner any) error { return a.inner.SetNull(owner) }

// InfiniteNullTo wraps a nullable to-date column so null reads as infinity
// and infinity is stored as null.
func InfiniteNullTo(to *Attribute[time.Time], infinity time.Time) *Attribute[time.Time] {
	if infinity.IsZero() {
		infinity = DefaultInfinity
	}
	return &Attribute[time.Time]{
		name:     to.name,
		busClass: to.busClass,
		column:   to.column,
		nullable: true,
		domain:   infiniteNullDomain{infinity: infinity.UTC()},
		access:   infiniteNullAccessor{inner: to.access, infinity: infinity.UTC()},
		kind:     KindColumn,
	}
}
