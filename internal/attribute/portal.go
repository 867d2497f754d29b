package attribute

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/chronorm/internal/dialect"
	"github.com/roach88/chronorm/internal/operation"
)

// PortalOptions configures a portal.
type PortalOptions struct {
	// PrimaryKey names the key attributes in key order.
	PrimaryKey []string

	// AsOf lists the portal's as-of attributes. Their from and to attributes
	// join the portal's columns when not passed explicitly.
	AsOf []*AsOfAttribute

	// NewOwner creates an empty owner for loading rows; Row{} by default.
	NewOwner func() any
}

// Relationship is a named hop from one portal to another.
type Relationship struct {
	Name   string
	Target *Portal
	Mapper operation.Mapper
}

// Portal is the metadata of one business class: its table, column
// attributes, primary key, as-of axes, and relationships.
type Portal struct {
	busClass   string
	table      string
	attrs      []AnyAttribute
	byName     map[string]AnyAttribute
	primaryKey []AnyAttribute
	source     AnyAttribute
	asOfs      []*AsOfAttribute
	rels       map[string]Relationship
	relNames   []string
	newOwner   func() any
}

// NewPortal registers column attributes of busClass stored in table.
func NewPortal(busClass, table string, opts PortalOptions, attrs ...AnyAttribute) (*Portal, error) {
	p := &Portal{
		busClass: busClass,
		table:    table,
		byName:   make(map[string]AnyAttribute),
		rels:     make(map[string]Relationship),
		newOwner: opts.NewOwner,
	}
	if p.newOwner == nil {
		p.newOwner = func() any { return Row{} }
	}
	for _, a := range attrs {
		if err := p.add(a); err != nil {
			return nil, err
		}
	}
	for _, ao := range opts.AsOf {
		if ao.busClass != busClass {
			return nil, fmt.Errorf("portal %s: as-of attribute %s belongs to %s", busClass, ao.name, ao.busClass)
		}
		for _, a := range []*Attribute[time.Time]{ao.from, ao.to} {
			if _, ok := p.byName[a.name]; ok {
				continue
			}
			if err := p.add(a); err != nil {
				return nil, err
			}
		}
		ao.portal = p
		p.asOfs = append(p.asOfs, ao)
	}
	for _, name := range opts.PrimaryKey {
		a, ok := p.byName[name]
		if !ok {
			return nil, fmt.Errorf("portal %s: primary key attribute %q is not defined", busClass, name)
		}
		p.primaryKey = append(p.primaryKey, a)
	}
	return p, nil
}

func (p *Portal) add(a AnyAttribute) error {
	if a.Kind() != KindColumn {
		return fmt.Errorf("portal %s: %s is not a column attribute", p.busClass, a)
	}
	if a.BusClassName() != p.busClass {
		return fmt.Errorf("portal %s: attribute %s belongs to another portal", p.busClass, a)
	}
	name := a.AttributeName()
	if _, dup := p.byName[name]; dup {
		return fmt.Errorf("portal %s: attribute %q is defined twice", p.busClass, name)
	}
	if a.IsSourceAttribute() {
		if p.source != nil {
			return fmt.Errorf("portal %s: both %s and %s are source attributes", p.busClass, p.source, a)
		}
		p.source = a
	}
	a.setPortal(p)
	p.byName[name] = a
	p.attrs = append(p.attrs, a)
	return nil
}

func (p *Portal) BusClassName() string { return p.busClass }
func (p *Portal) TableName() string    { return p.table }
func (p *Portal) NewOwner() any        { return p.newOwner() }

// Attributes returns the column attributes in declaration order.
func (p *Portal) Attributes() []AnyAttribute {
	out := make([]AnyAttribute, len(p.attrs))
	copy(out, p.attrs)
	return out
}

// Attribute looks up a column attribute by name.
func (p *Portal) Attribute(name string) (AnyAttribute, bool) {
	a, ok := p.byName[name]
	return a, ok
}

// PrimaryKey returns the key attributes in key order.
func (p *Portal) PrimaryKey() []AnyAttribute {
	out := make([]AnyAttribute, len(p.primaryKey))
	copy(out, p.primaryKey)
	return out
}

// SourceAttribute returns the source attribute, or nil.
func (p *Portal) SourceAttribute() AnyAttribute { return p.source }

// AsOfAttributes returns the as-of axes.
func (p *Portal) AsOfAttributes() []*AsOfAttribute {
	out := make([]*AsOfAttribute, len(p.asOfs))
	copy(out, p.asOfs)
	return out
}

// AsOfAttribute looks up an as-of axis by name.
func (p *Portal) AsOfAttribute(name string) (*AsOfAttribute, bool) {
	for _, a := range p.asOfs {
		if a.name == name {
			return a, true
		}
	}
	return nil, false
}

// AddRelationship defines a named hop to target from join predicates built
// with JoinEq. navigate resolves related owners in memory and may be nil.
func (p *Portal) AddRelationship(name string, target *Portal, navigate func(owner any) []any, joins ...operation.Operation) error {
	if _, dup := p.rels[name]; dup {
		return fmt.Errorf("portal %s: relationship %q is defined twice", p.busClass, name)
	}
	if _, clash := p.byName[name]; clash {
		return fmt.Errorf("portal %s: relationship %q collides with an attribute", p.busClass, name)
	}
	m, err := operation.RelationshipMapper(name, navigate, joins...)
	if err != nil {
		return err
	}
	if m.FromPortal() != p.busClass || m.ResultPortal() != target.busClass {
		return fmt.Errorf("portal %s: relationship %q joins %s to %s, expected %s to %s",
			p.busClass, name, m.FromPortal(), m.ResultPortal(), p.busClass, target.busClass)
	}
	p.rels[name] = Relationship{Name: name, Target: target, Mapper: m}
	p.relNames = append(p.relNames, name)
	return nil
}

// Relationship looks up a relationship by name.
func (p *Portal) Relationship(name string) (Relationship, bool) {
	r, ok := p.rels[name]
	return r, ok
}

// Relationships returns the relationships in definition order.
func (p *Portal) Relationships() []Relationship {
	out := make([]Relationship, len(p.relNames))
	for i, n := range p.relNames {
		out[i] = p.rels[n]
	}
	return out
}

// Resolve finds the attribute at a dotted path such as "items.quantity",
// following relationships for every segment but the last. Paths through
// relationships return mapped attributes.
func (p *Portal) Resolve(path string) (AnyAttribute, error) {
	parts := strings.Split(path, ".")
	current := p
	var m operation.Mapper
	for _, rel := range parts[:len(parts)-1] {
		r, ok := current.rels[rel]
		if !ok {
			return nil, fmt.Errorf("portal %s: no relationship %q in path %q", current.busClass, rel, path)
		}
		m = m.Chain(r.Mapper)
		current = r.Target
	}
	last := parts[len(parts)-1]
	a, ok := current.byName[last]
	if !ok {
		return nil, fmt.Errorf("portal %s: no attribute %q in path %q", current.busClass, last, path)
	}
	if m.IsEmpty() {
		return a, nil
	}
	return a.mappedBy(m), nil
}

// DefaultOrder sorts by the primary key.
func (p *Portal) DefaultOrder() []*OrderBy {
	out := make([]*OrderBy, len(p.primaryKey))
	for i, a := range p.primaryKey {
		out[i] = a.AscendingOrderBy()
	}
	return out
}

// CreateTableStatement renders the DDL for the portal's table.
func (p *Portal) CreateTableStatement(dt dialect.DatabaseType) (string, error) {
	var sb strings.Builder
	sb.WriteString("create table ")
	sb.WriteString(p.table)
	sb.WriteString(" (\n")
	for i, a := range p.attrs {
		if i > 0 {
			sb.WriteString(",\n")
		}
		sb.WriteString("    ")
		if err := a.AppendColumnDefinition(&sb, dt); err != nil {
			return "", err
		}
	}
	if len(p.primaryKey) > 0 {
		cols := make([]string, len(p.primaryKey))
		for i, a := range p.primaryKey {
			c, err := a.ColumnName()
			if err != nil {
				return "", err
			}
			cols[i] = c
		}
		sb.WriteString(",\n    primary key (")
		sb.WriteString(strings.Join(cols, ", "))
		sb.WriteString(")")
	}
	sb.WriteString("\n)")
	return sb.String(), nil
}

// Columns returns the column names in declaration order.
func (p *Portal) Columns() []string {
	out := make([]string, len(p.attrs))
	for i, a := range p.attrs {
		c, _ := a.ColumnName()
		out[i] = c
	}
	return out
}
