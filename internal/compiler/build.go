package compiler

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/ir"
	"github.com/roach88/chronorm/internal/operation"
)

// Options configures Build.
type Options struct {
	// Logger receives a debug record per built portal; discarded when nil.
	Logger *slog.Logger

	// Clock is passed to every as-of attribute; SystemClock when nil.
	Clock attribute.Clock
}

// Schema is a set of built portals, keyed by name.
type Schema struct {
	specs   map[string]ir.PortalSpec
	portals map[string]*attribute.Portal
	order   []string
}

// Portal returns the portal named name.
func (s *Schema) Portal(name string) (*attribute.Portal, bool) {
	p, ok := s.portals[name]
	return p, ok
}

// Portals returns the portals in declaration order.
func (s *Schema) Portals() []*attribute.Portal {
	out := make([]*attribute.Portal, len(s.order))
	for i, n := range s.order {
		out[i] = s.portals[n]
	}
	return out
}

// Spec returns the declaration the portal named name was built from.
func (s *Schema) Spec(name string) (ir.PortalSpec, bool) {
	spec, ok := s.specs[name]
	return spec, ok
}

// Fingerprint returns the fingerprint of the portal named name.
func (s *Schema) Fingerprint(name string) (string, error) {
	spec, ok := s.specs[name]
	if !ok {
		return "", fmt.Errorf("unknown portal %q", name)
	}
	return ir.Fingerprint(spec)
}

// Build validates specs and turns them into portals of Row owners.
// Relationships are wired once every portal exists, so they may point at
// portals declared later or at their own portal.
func Build(specs []ir.PortalSpec, opts Options) (*Schema, error) {
	if errs := ValidateSchema(specs); len(errs) > 0 {
		return nil, &SchemaError{Errors: errs}
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Schema{
		specs:   make(map[string]ir.PortalSpec, len(specs)),
		portals: make(map[string]*attribute.Portal, len(specs)),
	}
	for _, spec := range specs {
		p, err := buildPortal(spec, opts.Clock)
		if err != nil {
			return nil, err
		}
		s.specs[spec.Name] = spec
		s.portals[spec.Name] = p
		s.order = append(s.order, spec.Name)
	}

	for _, spec := range specs {
		p := s.portals[spec.Name]
		for _, r := range spec.Relationships {
			if err := addRelationship(p, s.portals[r.Target], r); err != nil {
				return nil, err
			}
		}
		log.Debug("portal built",
			"portal", spec.Name,
			"table", spec.Table,
			"attributes", len(spec.Attributes),
			"as_of", len(spec.AsOf),
			"relationships", len(spec.Relationships))
	}
	return s, nil
}

// SchemaError carries every validation error of a rejected schema.
type SchemaError struct {
	Errors []ValidationError
}

func (e *SchemaError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, v := range e.Errors {
		msgs[i] = v.Error()
	}
	return "invalid schema: " + strings.Join(msgs, "; ")
}

func buildPortal(spec ir.PortalSpec, clock attribute.Clock) (*attribute.Portal, error) {
	attrs := make([]attribute.AnyAttribute, 0, len(spec.Attributes))
	index := make(map[string]int, len(spec.Attributes))
	for _, a := range spec.Attributes {
		built, err := NewAttribute(spec.Name, a)
		if err != nil {
			return nil, err
		}
		index[a.Name] = len(attrs)
		attrs = append(attrs, built)
	}

	var asOfs []*attribute.AsOfAttribute
	for _, ao := range spec.AsOf {
		from, ok := attrs[index[ao.From]].(*attribute.Attribute[time.Time])
		if !ok {
			return nil, fmt.Errorf("portal %s: as-of %s: %s is not a timestamp", spec.Name, ao.Name, ao.From)
		}
		to, ok := attrs[index[ao.To]].(*attribute.Attribute[time.Time])
		if !ok {
			return nil, fmt.Errorf("portal %s: as-of %s: %s is not a timestamp", spec.Name, ao.Name, ao.To)
		}

		opts := attribute.AsOfOptions{
			ToIsInclusive:           ao.ToIsInclusive,
			FutureExpiringRowsExist: ao.FutureExpiringRowsExist,
			ProcessingDate:          ao.ProcessingDate,
			InfiniteNull:            ao.InfiniteNull,
			Clock:                   clock,
		}
		var err error
		if opts.Infinity, err = parseTimestamp(ao.Infinity); err != nil {
			return nil, fmt.Errorf("portal %s: as-of %s: infinity: %w", spec.Name, ao.Name, err)
		}
		if opts.Default, err = parseTimestamp(ao.Default); err != nil {
			return nil, fmt.Errorf("portal %s: as-of %s: default: %w", spec.Name, ao.Name, err)
		}
		if ao.InfiniteNull {
			to = attribute.InfiniteNullTo(to, opts.Infinity)
			attrs[index[ao.To]] = to
		}
		asOfs = append(asOfs, attribute.NewAsOf(spec.Name, ao.Name, from, to, opts))
	}

	return attribute.NewPortal(spec.Name, spec.Table, attribute.PortalOptions{
		PrimaryKey: spec.PrimaryKey,
		AsOf:       asOfs,
	}, attrs...)
}

func parseTimestamp(text string) (time.Time, error) {
	if text == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(ir.TimestampLayout, text, time.UTC)
}

func addRelationship(p, target *attribute.Portal, r ir.RelationshipSpec) error {
	joins := make([]operation.Operation, 0, len(r.Joins))
	for _, j := range r.Joins {
		from, ok := p.Attribute(j.From)
		if !ok {
			return fmt.Errorf("portal %s: relationship %s: unknown attribute %q", p.BusClassName(), r.Name, j.From)
		}
		to, ok := target.Attribute(j.To)
		if !ok {
			return fmt.Errorf("portal %s: relationship %s: unknown attribute %s.%s", p.BusClassName(), r.Name, target.BusClassName(), j.To)
		}
		op, err := from.JoinEqAny(to)
		if err != nil {
			return fmt.Errorf("portal %s: relationship %s: %w", p.BusClassName(), r.Name, err)
		}
		joins = append(joins, op)
	}
	return p.AddRelationship(r.Name, target, attribute.RowNavigator(r.Name), joins...)
}

// NewAttribute builds a Row attribute of busClass from its declaration.
func NewAttribute(busClass string, a ir.AttributeSpec) (attribute.AnyAttribute, error) {
	family, err := attribute.ParseFamily(a.Type)
	if err != nil {
		return nil, fmt.Errorf("portal %s: attribute %s: %w", busClass, a.Name, err)
	}
	opts := attribute.Options{Column: a.Column, Nullable: a.Nullable, Source: a.Source}

	switch family {
	case attribute.FamilyBoolean:
		return attribute.ForRow(busClass, a.Name, attribute.BooleanDomain{}, opts), nil
	case attribute.FamilyByte:
		return attribute.ForRow(busClass, a.Name, attribute.ByteDomain{}, opts), nil
	case attribute.FamilyShort:
		return attribute.ForRow(busClass, a.Name, attribute.ShortDomain{}, opts), nil
	case attribute.FamilyInt:
		return attribute.ForRow(busClass, a.Name, attribute.IntDomain{}, opts), nil
	case attribute.FamilyLong:
		return attribute.ForRow(busClass, a.Name, attribute.LongDomain{}, opts), nil
	case attribute.FamilyFloat:
		return attribute.ForRow(busClass, a.Name, attribute.FloatDomain{}, opts), nil
	case attribute.FamilyDouble:
		return attribute.ForRow(busClass, a.Name, attribute.DoubleDomain{}, opts), nil
	case attribute.FamilyBigDecimal:
		d := attribute.DecimalDomain{Precision: a.Precision, Scale: a.Scale}
		return attribute.ForRow(busClass, a.Name, d, opts), nil
	case attribute.FamilyChar:
		return attribute.ForRow(busClass, a.Name, attribute.CharDomain{}, opts), nil
	case attribute.FamilyString:
		return attribute.ForRow(busClass, a.Name, attribute.StringDomain{MaxLength: a.MaxLength}, opts), nil
	case attribute.FamilyByteArray:
		return attribute.ForRow(busClass, a.Name, attribute.ByteArrayDomain{MaxLength: a.MaxLength}, opts), nil
	case attribute.FamilyDate:
		return attribute.ForRow(busClass, a.Name, attribute.DateDomain{}, opts), nil
	case attribute.FamilyTime:
		return attribute.ForRow(busClass, a.Name, attribute.TimeDomain{}, opts), nil
	case attribute.FamilyTimestamp:
		return attribute.ForRow(busClass, a.Name, attribute.TimestampDomain{}, opts), nil
	case attribute.FamilyEnum:
		return attribute.ForRow(busClass, a.Name, attribute.EnumDomain{Values: a.Values}, opts), nil
	default:
		return nil, fmt.Errorf("portal %s: attribute %s: unsupported type %s", busClass, a.Name, family)
	}
}
