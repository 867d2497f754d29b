package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/chronorm/internal/ir"
)

// CompileFiles compiles the portals declared across the CUE files at paths.
// The files are unified as one value, so a portal may be split across
// files.
func CompileFiles(paths ...string) ([]ir.PortalSpec, error) {
	ctx := cuecontext.New()
	var v cue.Value
	for i, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		f := ctx.CompileBytes(src, cue.Filename(path))
		if err := f.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if i == 0 {
			v = f
		} else {
			v = v.Unify(f)
		}
	}
	if len(paths) == 0 {
		return nil, nil
	}
	return CompileSchema(v)
}

// CompileString compiles the portals declared in src. filename is used in
// error positions.
func CompileString(filename, src string) ([]ir.PortalSpec, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	return CompileSchema(v)
}

// CompileSchema compiles every portal under v's "portal" field, in
// declaration order.
func CompileSchema(v cue.Value) ([]ir.PortalSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	portals := v.LookupPath(cue.ParsePath("portal"))
	if !portals.Exists() {
		return nil, nil
	}
	iter, err := portals.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var specs []ir.PortalSpec
	for iter.Next() {
		spec, err := CompilePortal(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

// CompilePortal parses a CUE value into a PortalSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the portal struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`portal: Order: { ... }`)
//	spec, err := CompilePortal(v.LookupPath(cue.ParsePath("portal.Order")))
func CompilePortal(v cue.Value) (*ir.PortalSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.PortalSpec{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].Unquoted()
	}

	var err error
	if spec.Table, err = requiredString(v, "table"); err != nil {
		return nil, err
	}
	if spec.PrimaryKey, err = stringList(v, "primary_key"); err != nil {
		return nil, err
	}
	if spec.Attributes, err = parseAttributes(v); err != nil {
		return nil, err
	}
	if spec.AsOf, err = parseAsOf(v); err != nil {
		return nil, err
	}
	if spec.Relationships, err = parseRelationships(v); err != nil {
		return nil, err
	}
	return spec, nil
}

// parseAttributes reads the attributes struct. Each field is a type name or
// a struct with a type field.
func parseAttributes(v cue.Value) ([]ir.AttributeSpec, error) {
	attrsVal := v.LookupPath(cue.ParsePath("attributes"))
	if !attrsVal.Exists() {
		return nil, &CompileError{
			Field:   "attributes",
			Message: "attributes are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := attrsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var attrs []ir.AttributeSpec
	for iter.Next() {
		a := ir.AttributeSpec{Name: iter.Selector().Unquoted()}
		av := iter.Value()

		if typ, err := av.String(); err == nil {
			a.Type = typ
			attrs = append(attrs, a)
			continue
		}

		if a.Type, err = requiredString(av, "type"); err != nil {
			return nil, err
		}
		if a.Column, err = optionalString(av, "column"); err != nil {
			return nil, err
		}
		if a.Nullable, err = optionalBool(av, "nullable"); err != nil {
			return nil, err
		}
		if a.Source, err = optionalBool(av, "source"); err != nil {
			return nil, err
		}
		if a.MaxLength, err = optionalInt(av, "max_length"); err != nil {
			return nil, err
		}
		if a.Precision, err = optionalInt(av, "precision"); err != nil {
			return nil, err
		}
		if a.Scale, err = optionalInt(av, "scale"); err != nil {
			return nil, err
		}
		if a.Values, err = stringList(av, "values"); err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func parseAsOf(v cue.Value) ([]ir.AsOfSpec, error) {
	asOfVal := v.LookupPath(cue.ParsePath("as_of"))
	if !asOfVal.Exists() {
		return nil, nil
	}
	iter, err := asOfVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []ir.AsOfSpec
	for iter.Next() {
		av := iter.Value()
		a := ir.AsOfSpec{Name: iter.Selector().Unquoted()}
		if a.From, err = requiredString(av, "from"); err != nil {
			return nil, err
		}
		if a.To, err = requiredString(av, "to"); err != nil {
			return nil, err
		}
		flags := []struct {
			name string
			dst  *bool
		}{
			{"to_is_inclusive", &a.ToIsInclusive},
			{"infinite_null", &a.InfiniteNull},
			{"future_expiring_rows_exist", &a.FutureExpiringRowsExist},
			{"processing_date", &a.ProcessingDate},
		}
		for _, f := range flags {
			if *f.dst, err = optionalBool(av, f.name); err != nil {
				return nil, err
			}
		}
		if a.Infinity, err = optionalString(av, "infinity"); err != nil {
			return nil, err
		}
		if a.Default, err = optionalString(av, "default"); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func parseRelationships(v cue.Value) ([]ir.RelationshipSpec, error) {
	relsVal := v.LookupPath(cue.ParsePath("relationships"))
	if !relsVal.Exists() {
		return nil, nil
	}
	iter, err := relsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []ir.RelationshipSpec
	for iter.Next() {
		rv := iter.Value()
		r := ir.RelationshipSpec{Name: iter.Selector().Unquoted()}
		if r.Target, err = requiredString(rv, "target"); err != nil {
			return nil, err
		}

		joinsVal := rv.LookupPath(cue.ParsePath("joins"))
		if !joinsVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("relationships.%s.joins", r.Name),
				Message: "at least one join is required",
				Pos:     rv.Pos(),
			}
		}
		list, err := joinsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for list.Next() {
			jv := list.Value()
			var j ir.JoinSpec
			if j.From, err = requiredString(jv, "from"); err != nil {
				return nil, err
			}
			if j.To, err = requiredString(jv, "to"); err != nil {
				return nil, err
			}
			r.Joins = append(r.Joins, j)
		}
		out = append(out, r)
	}
	return out, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalInt(v cue.Value, field string) (int, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	if k := fv.IncompleteKind(); k == cue.FloatKind {
		return 0, &CompileError{
			Field:   field,
			Message: "must be an integer",
			Pos:     fv.Pos(),
		}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
