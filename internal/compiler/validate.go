package compiler

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// PortalSpec errors (E101-E109)
	ErrTableEmpty        = "E101" // table is required
	ErrNoAttributes      = "E102" // at least one attribute required
	ErrUnknownType       = "E103" // type is not an attribute family
	ErrDuplicateName     = "E104" // duplicate attribute name or column
	ErrUnknownPrimaryKey = "E105" // primary key names no attribute
	ErrInvalidAsOf       = "E106" // as-of from/to missing or not timestamps
	ErrInvalidTimestamp  = "E107" // infinity/default not in TimestampLayout
	ErrEnumNoValues      = "E108" // enum declares no values
	ErrInvalidPrecision  = "E109" // bad decimal precision or scale

	// Relationship errors (E110-E119)
	ErrUnknownTarget      = "E110" // relationship target is not a portal
	ErrUnknownJoin        = "E111" // join names no attribute
	ErrJoinTypeMismatch   = "E112" // joined attributes differ in type
	ErrMultipleSources    = "E113" // more than one source attribute
	ErrDuplicatePortal    = "E114" // two portals share a name
	ErrRelationshipClash  = "E115" // relationship name is an attribute name
	ErrNullablePrimaryKey = "E116" // primary key attribute is nullable
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks one portal on its own. Relationship targets are not
// resolved; use ValidateSchema for that.
// Returns all errors found (does not fail-fast).
func Validate(spec *ir.PortalSpec) []ValidationError {
	var errs []ValidationError
	prefix := spec.Name

	if strings.TrimSpace(spec.Table) == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".table",
			Message: "table is required and must be non-empty",
			Code:    ErrTableEmpty,
		})
	}
	if len(spec.Attributes) == 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".attributes",
			Message: "at least one attribute is required",
			Code:    ErrNoAttributes,
		})
	}

	names := make(map[string]bool)
	columns := make(map[string]string)
	sources := 0
	for _, a := range spec.Attributes {
		field := fmt.Sprintf("%s.attributes.%s", prefix, a.Name)
		errs = append(errs, validateAttribute(field, a)...)

		if names[a.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate attribute name %q", a.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[a.Name] = true

		col := strings.ToLower(a.ColumnName())
		if other, dup := columns[col]; dup && other != a.Name {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("column %q is also mapped by %s", a.ColumnName(), other),
				Code:    ErrDuplicateName,
			})
		}
		columns[col] = a.Name

		if a.Source {
			sources++
		}
	}
	if sources > 1 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".attributes",
			Message: fmt.Sprintf("%d source attributes declared, at most one allowed", sources),
			Code:    ErrMultipleSources,
		})
	}

	for _, key := range spec.PrimaryKey {
		a, ok := spec.Attribute(key)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   prefix + ".primary_key",
				Message: fmt.Sprintf("primary key %q is not an attribute", key),
				Code:    ErrUnknownPrimaryKey,
			})
			continue
		}
		if a.Nullable {
			errs = append(errs, ValidationError{
				Field:   prefix + ".primary_key",
				Message: fmt.Sprintf("primary key %q must not be nullable", key),
				Code:    ErrNullablePrimaryKey,
			})
		}
	}

	for _, ao := range spec.AsOf {
		errs = append(errs, validateAsOf(spec, ao)...)
	}

	for _, r := range spec.Relationships {
		if names[r.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.relationships.%s", prefix, r.Name),
				Message: "relationship name collides with an attribute",
				Code:    ErrRelationshipClash,
			})
		}
		for i, j := range r.Joins {
			if _, ok := spec.Attribute(j.From); !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.relationships.%s.joins[%d].from", prefix, r.Name, i),
					Message: fmt.Sprintf("%q is not an attribute of %s", j.From, spec.Name),
					Code:    ErrUnknownJoin,
				})
			}
		}
	}

	return errs
}

func validateAttribute(field string, a ir.AttributeSpec) []ValidationError {
	var errs []ValidationError
	family, err := attribute.ParseFamily(a.Type)
	if err != nil {
		return []ValidationError{{
			Field:   field + ".type",
			Message: err.Error(),
			Code:    ErrUnknownType,
		}}
	}
	switch family {
	case attribute.FamilyEnum:
		if len(a.Values) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".values",
				Message: "enum attributes must declare their values",
				Code:    ErrEnumNoValues,
			})
		}
	case attribute.FamilyBigDecimal:
		if a.Precision < 0 || a.Scale < 0 || (a.Precision > 0 && a.Scale > a.Precision) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid precision %d and scale %d", a.Precision, a.Scale),
				Code:    ErrInvalidPrecision,
			})
		}
	}
	return errs
}

func validateAsOf(spec *ir.PortalSpec, ao ir.AsOfSpec) []ValidationError {
	var errs []ValidationError
	field := fmt.Sprintf("%s.as_of.%s", spec.Name, ao.Name)

	for _, ref := range []struct{ role, name string }{{"from", ao.From}, {"to", ao.To}} {
		a, ok := spec.Attribute(ref.name)
		switch {
		case !ok:
			errs = append(errs, ValidationError{
				Field:   field + "." + ref.role,
				Message: fmt.Sprintf("%q is not an attribute", ref.name),
				Code:    ErrInvalidAsOf,
			})
		case !strings.EqualFold(a.Type, attribute.FamilyTimestamp.String()):
			errs = append(errs, ValidationError{
				Field:   field + "." + ref.role,
				Message: fmt.Sprintf("%q has type %s, want timestamp", ref.name, a.Type),
				Code:    ErrInvalidAsOf,
			})
		}
	}
	if ao.From != "" && ao.From == ao.To {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "from and to must be different attributes",
			Code:    ErrInvalidAsOf,
		})
	}

	for _, ts := range []struct{ role, text string }{{"infinity", ao.Infinity}, {"default", ao.Default}} {
		if ts.text == "" {
			continue
		}
		if _, err := time.Parse(ir.TimestampLayout, ts.text); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + "." + ts.role,
				Message: fmt.Sprintf("%q is not a %q timestamp", ts.text, ir.TimestampLayout),
				Code:    ErrInvalidTimestamp,
			})
		}
	}
	return errs
}

// ValidateSchema validates every portal and the relationships between
// them. Returns all errors found (does not fail-fast).
func ValidateSchema(specs []ir.PortalSpec) []ValidationError {
	var errs []ValidationError
	byName := make(map[string]*ir.PortalSpec, len(specs))
	for i := range specs {
		s := &specs[i]
		if _, dup := byName[s.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   s.Name,
				Message: fmt.Sprintf("portal %q is declared twice", s.Name),
				Code:    ErrDuplicatePortal,
			})
			continue
		}
		byName[s.Name] = s
		errs = append(errs, Validate(s)...)
	}

	for i := range specs {
		s := &specs[i]
		for _, r := range s.Relationships {
			field := fmt.Sprintf("%s.relationships.%s", s.Name, r.Name)
			target, ok := byName[r.Target]
			if !ok {
				errs = append(errs, ValidationError{
					Field:   field + ".target",
					Message: fmt.Sprintf("unknown portal %q", r.Target),
					Code:    ErrUnknownTarget,
				})
				continue
			}
			for k, j := range r.Joins {
				from, fromOK := s.Attribute(j.From)
				to, ok := target.Attribute(j.To)
				if !ok {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("%s.joins[%d].to", field, k),
						Message: fmt.Sprintf("%q is not an attribute of %s", j.To, target.Name),
						Code:    ErrUnknownJoin,
					})
					continue
				}
				if fromOK && !strings.EqualFold(from.Type, to.Type) {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("%s.joins[%d]", field, k),
						Message: fmt.Sprintf("%s is %s but %s.%s is %s", j.From, from.Type, target.Name, j.To, to.Type),
						Code:    ErrJoinTypeMismatch,
					})
				}
			}
		}
	}
	return errs
}
