package attribute

import (
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/chronorm/internal/columnar"
	"github.com/roach88/chronorm/internal/dialect"
	"github.com/roach88/chronorm/internal/operation"
)

// AnyAttribute is the type-erased view of an attribute used where attributes
// of mixed value types are handled together: portals, stores, flat files,
// tuples, and the SQL compiler.
type AnyAttribute interface {
	operation.Attribute

	Family() Family
	Kind() Kind
	IsNullable() bool
	IsSourceAttribute() bool
	Mapper() operation.Mapper
	Hash() uint64

	ColumnName() (string, error)

	IsNull() operation.Operation
	IsNotNull() operation.Operation
	EqAny(v any) operation.Operation
	NotEqAny(v any) operation.Operation
	InAny(values []any) operation.Operation
	NotInAny(values []any) operation.Operation
	CompareAny(op operation.CompareOp, v any) (operation.Operation, error)

	IsAttributeNull(owner any) bool
	SetAny(owner, v any) error
	SetNull(owner any) error
	ValueEquals(first, second any) bool
	ValueHash(owner any) uint64
	ValueOfAsString(owner any) string
	CountUniqueInstances(owners []any) int
	AscendingOrderBy() *OrderBy
	DescendingOrderBy() *OrderBy
	JoinEqAny(other AnyAttribute) (operation.Operation, error)

	AppendColumnDefinition(sb *strings.Builder, dt dialect.DatabaseType) error
	ColumnType(dt dialect.DatabaseType) string
	VerifyColumn(info dialect.ColumnInfo) error
	SQLParameterOf(owner any) (any, error)
	NewScanTarget() sql.Scanner
	ReadResultSet(target sql.Scanner, owner any) error
	EncodeColumnar(w *columnar.Writer, owners []any) error
	DecodeColumnar(r *columnar.Reader, owners []any) error
	WriteValueToStream(w io.Writer, owner any) error
	ReadValueFromStream(r io.Reader, owner any) error

	ParseStringAndSet(value string, owner any, line int, layout string) error
	ParseWordAndSet(word string, owner any, line int, layout string) error
	ParseNumberAndSet(number string, owner any, line int, layout string) error

	mappedBy(m operation.Mapper) AnyAttribute
	base() AnyAttribute
	setPortal(p *Portal)
}

var _ AnyAttribute = (*Attribute[int32])(nil)

func (a *Attribute[V]) base() AnyAttribute   { return a.Unwrapped() }
func (a *Attribute[V]) setPortal(p *Portal) { a.portal = p }

func (a *Attribute[V]) requireColumn(op string) error {
	if a.kind != KindColumn {
		return NewUnsupportedError(a.String(), op)
	}
	return nil
}

// ColumnName returns the physical column. Mapped and calculated attributes
// have none.
func (a *Attribute[V]) ColumnName() (string, error) {
	if err := a.requireColumn("ColumnName"); err != nil {
		return "", err
	}
	return a.column, nil
}

// FullyQualifiedLeftHandExpression renders alias.column for column
// attributes. Mapped attributes render their target under the mapper's
// alias; calculated attributes render their expression.
func (a *Attribute[V]) FullyQualifiedLeftHandExpression(q operation.SQLQuery) (string, error) {
	switch a.kind {
	case KindMapped:
		q.PushMapper(a.mapper)
		defer q.PopMapper()
		return a.wrapped.FullyQualifiedLeftHandExpression(q)
	case KindCalculated:
		return a.calc.SQLExpression(q)
	default:
		return q.DatabaseAlias(a.busClass) + "." + a.column, nil
	}
}

// ColumnType is the dialect's type name for the attribute's family.
func (a *Attribute[V]) ColumnType(dt dialect.DatabaseType) string { return a.domain.SQLType(dt) }

// AppendColumnDefinition writes "column type" for CREATE TABLE, adding
// " not null" for non-nullable attributes.
func (a *Attribute[V]) AppendColumnDefinition(sb *strings.Builder, dt dialect.DatabaseType) error {
	if err := a.requireColumn("AppendColumnDefinition"); err != nil {
		return err
	}
	sb.WriteString(a.column)
	sb.WriteByte(' ')
	sb.WriteString(a.domain.SQLType(dt))
	if !a.nullable {
		sb.WriteString(" not null")
	}
	return nil
}

// VerifyColumn checks a catalog column against the attribute's nullability
// and type.
func (a *Attribute[V]) VerifyColumn(info dialect.ColumnInfo) error {
	if err := a.requireColumn("VerifyColumn"); err != nil {
		return err
	}
	var problems []string
	if info.Nullable != a.nullable {
		problems = append(problems, fmt.Sprintf("nullable is %t, attribute declares %t", info.Nullable, a.nullable))
	}
	if !a.domain.Accepts(info) {
		problems = append(problems, fmt.Sprintf("type %s (%s) cannot hold %s", info.TypeName, info.Type, a.domain.Family()))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("column %s of %s: %s", a.column, a.busClass, strings.Join(problems, "; "))
}

// SQLParameterOf returns the driver value for the value on owner, or the
// family's typed null.
func (a *Attribute[V]) SQLParameterOf(owner any) (any, error) {
	if a.kind == KindCalculated {
		return nil, NewUnsupportedError(a.String(), "SQLParameterOf")
	}
	v, ok := a.ValueOf(owner)
	if !ok {
		return a.domain.NullParam(), nil
	}
	return a.domain.Param(v), nil
}

// NewScanTarget returns a destination for one result-set column.
func (a *Attribute[V]) NewScanTarget() sql.Scanner {
	return a.domain.NewScanner()
}

// ReadResultSet copies a scanned column onto owner. A driver NULL sets null.
func (a *Attribute[V]) ReadResultSet(target sql.Scanner, owner any) error {
	if err := a.requireColumn("ReadResultSet"); err != nil {
		return err
	}
	s, ok := target.(Scanner[V])
	if !ok {
		return fmt.Errorf("%s: scan target %T was not created by this attribute", a, target)
	}
	v, ok := s.Value()
	if !ok {
		return a.SetNull(owner)
	}
	return a.SetValue(owner, v)
}

// EncodeColumnar writes the null section and values of owners.
func (a *Attribute[V]) EncodeColumnar(w *columnar.Writer, owners []any) error {
	if err := a.requireColumn("EncodeColumnar"); err != nil {
		return err
	}
	n := len(owners)
	values := make([]V, n)
	nulls := columnar.NewBits(n)
	for i, o := range owners {
		v, ok := a.ValueOf(o)
		if !ok {
			nulls.Set(i)
			continue
		}
		values[i] = v
	}
	w.EncodeNulls(nulls, n)
	a.domain.Encode(w, values, nulls)
	return w.Err()
}

// DecodeColumnar reads a column written by EncodeColumnar and sets the values
// on owners, which must have the encoded row count.
func (a *Attribute[V]) DecodeColumnar(r *columnar.Reader, owners []any) error {
	if err := a.requireColumn("DecodeColumnar"); err != nil {
		return err
	}
	n := len(owners)
	nulls := r.DecodeNulls(n)
	values := a.domain.Decode(r, n, nulls)
	if err := r.Err(); err != nil {
		return fmt.Errorf("decode %s: %w", a, err)
	}
	for i, o := range owners {
		var err error
		if nulls.Get(i) {
			err = a.SetNull(o)
		} else {
			err = a.SetValue(o, values[i])
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteValueToStream writes the value on owner as a one-row column.
func (a *Attribute[V]) WriteValueToStream(w io.Writer, owner any) error {
	if a.kind == KindCalculated {
		return NewUnsupportedError(a.String(), "WriteValueToStream")
	}
	cw := columnar.NewWriter(w)
	v, ok := a.ValueOf(owner)
	nulls := columnar.NewBits(1)
	if !ok {
		nulls.Set(0)
	}
	cw.EncodeNulls(nulls, 1)
	a.domain.Encode(cw, []V{v}, nulls)
	return cw.Err()
}

// ReadValueFromStream reads a value written by WriteValueToStream and sets
// it on owner.
func (a *Attribute[V]) ReadValueFromStream(r io.Reader, owner any) error {
	if a.kind == KindCalculated {
		return NewUnsupportedError(a.String(), "ReadValueFromStream")
	}
	cr := columnar.NewReader(r)
	nulls := cr.DecodeNulls(1)
	values := a.domain.Decode(cr, 1, nulls)
	if err := cr.Err(); err != nil {
		return fmt.Errorf("read %s: %w", a, err)
	}
	if nulls.Get(0) {
		return a.SetNull(owner)
	}
	return a.SetValue(owner, values[0])
}

// Families accepting each flat-file token kind.
var (
	quotedFamilies = map[Family]bool{
		FamilyString: true, FamilyEnum: true, FamilyChar: true, FamilyByteArray: true,
		FamilyDate: true, FamilyTime: true, FamilyTimestamp: true,
	}
	numberFamilies = map[Family]bool{
		FamilyByte: true, FamilyShort: true, FamilyInt: true, FamilyLong: true,
		FamilyFloat: true, FamilyDouble: true, FamilyBigDecimal: true,
	}
	wordFamilies = map[Family]bool{
		FamilyBoolean: true, FamilyEnum: true, FamilyByteArray: true,
	}
)

func (a *Attribute[V]) parseAndSet(text string, owner any, line int, layout string) error {
	if a.kind == KindCalculated {
		return NewUnsupportedError(a.String(), "parse")
	}
	v, err := a.domain.Parse(text, layout)
	if err != nil {
		return NewParseError(a.String(), line, "%s", err.Error())
	}
	if err := a.SetValue(owner, v); err != nil {
		return NewParseError(a.String(), line, "%s", err.Error())
	}
	return nil
}

// ParseStringAndSet parses a quoted flat-file value and sets it on owner.
func (a *Attribute[V]) ParseStringAndSet(value string, owner any, line int, layout string) error {
	if !quotedFamilies[a.domain.Family()] {
		return NewParseError(a.String(), line, "expected a %s but got the string %q", a.domain.Family(), value)
	}
	return a.parseAndSet(value, owner, line, layout)
}

// ParseWordAndSet parses an unquoted word. The word null sets null.
func (a *Attribute[V]) ParseWordAndSet(word string, owner any, line int, layout string) error {
	if word == "null" {
		if err := a.SetNull(owner); err != nil {
			return NewParseError(a.String(), line, "%s", err.Error())
		}
		return nil
	}
	if !wordFamilies[a.domain.Family()] {
		return NewParseError(a.String(), line, "expected a %s but got the word %q", a.domain.Family(), word)
	}
	return a.parseAndSet(word, owner, line, layout)
}

// ParseNumberAndSet parses a numeric literal.
func (a *Attribute[V]) ParseNumberAndSet(number string, owner any, line int, layout string) error {
	if !numberFamilies[a.domain.Family()] {
		return NewParseError(a.String(), line, "expected a %s but got the number %s", a.domain.Family(), number)
	}
	return a.parseAndSet(number, owner, line, layout)
}
