package attribute

import (
	"fmt"
	"strings"

	"github.com/roach88/chronorm/internal/operation"
)

// TupleAttribute is an ordered group of two or more attributes of one portal,
// compared together against rows of values.
type TupleAttribute struct {
	attrs  []AnyAttribute
	bases  []AnyAttribute
	mapper operation.Mapper
	root   string
}

// TupleWith groups attrs into a tuple. Every member must be reached through
// the same relationship path.
func TupleWith(attrs ...AnyAttribute) (*TupleAttribute, error) {
	if len(attrs) < 2 {
		return nil, NewUnsupportedError(tupleName(attrs), "a tuple of fewer than two attributes")
	}
	first := attrs[0]
	t := &TupleAttribute{mapper: first.Mapper(), root: first.BusClassName()}
	for _, a := range attrs {
		if !a.Mapper().Equal(t.mapper) || a.BusClassName() != t.root {
			return nil, errTupleAcrossRelationships(a.String())
		}
		t.attrs = append(t.attrs, a)
		t.bases = append(t.bases, a.base())
	}
	return t, nil
}

// TupleWith extends the tuple with more attributes.
func (t *TupleAttribute) TupleWith(more ...AnyAttribute) (*TupleAttribute, error) {
	all := make([]AnyAttribute, 0, len(t.attrs)+len(more))
	all = append(all, t.attrs...)
	all = append(all, more...)
	return TupleWith(all...)
}

func tupleName(attrs []AnyAttribute) string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.String()
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// Attributes returns the tuple members.
func (t *TupleAttribute) Attributes() []AnyAttribute {
	out := make([]AnyAttribute, len(t.attrs))
	copy(out, t.attrs)
	return out
}

func (t *TupleAttribute) String() string { return tupleName(t.attrs) }

// In matches owners whose member values equal one of rows, each row holding
// one value per member in member order.
//
// Positions whose value is the same in every row are factored out as
// equality predicates, a source attribute first. A single varying position
// becomes a plain in-set; two or more become a MultiIn. Rows holding a null
// can never match and are dropped.
func (t *TupleAttribute) In(rows [][]any) (operation.Operation, error) {
	for i, r := range rows {
		if len(r) != len(t.attrs) {
			return nil, fmt.Errorf("tuple %s: row %d has %d values, want %d", t, i, len(r), len(t.attrs))
		}
	}
	positions := make([]int, len(t.bases))
	for i := range positions {
		positions[i] = i
	}
	op := t.in(positions, dedupeRows(t.bases, withoutNulls(rows)))
	switch op.(type) {
	case operation.None:
		return operation.None{On: t.root}, nil
	case operation.All:
		return operation.All{On: t.root}, nil
	}
	return operation.NewMapped(t.mapper, op), nil
}

func (t *TupleAttribute) in(positions []int, rows [][]any) operation.Operation {
	if len(rows) == 0 {
		return operation.None{On: t.bases[positions[0]].BusClassName()}
	}
	if src := t.sourcePosition(positions); src >= 0 && t.constantAt(src, rows) {
		rest := make([]int, 0, len(positions)-1)
		for _, p := range positions {
			if p != src {
				rest = append(rest, p)
			}
		}
		eq := t.bases[src].EqAny(rows[0][src])
		if len(rest) == 1 {
			return operation.NewAnd(eq, t.bases[rest[0]].InAny(column(rows, rest[0])))
		}
		return operation.NewAnd(eq, t.in(rest, rows))
	}
	return t.multiInWithConstantCheck(positions, rows)
}

func (t *TupleAttribute) sourcePosition(positions []int) int {
	for _, p := range positions {
		if t.bases[p].IsSourceAttribute() {
			return p
		}
	}
	return -1
}

func (t *TupleAttribute) constantAt(p int, rows [][]any) bool {
	first := rows[0][p]
	for _, r := range rows[1:] {
		if !t.bases[p].EqualValues(first, r[p]) {
			return false
		}
	}
	return true
}

// multiInWithConstantCheck factors the positions holding one value across
// all rows out of the MultiIn.
func (t *TupleAttribute) multiInWithConstantCheck(positions []int, rows [][]any) operation.Operation {
	var constants, varying []int
	for _, p := range positions {
		if t.constantAt(p, rows) {
			constants = append(constants, p)
		} else {
			varying = append(varying, p)
		}
	}
	ops := make([]operation.Operation, 0, len(constants)+1)
	for _, p := range constants {
		ops = append(ops, t.bases[p].EqAny(rows[0][p]))
	}
	switch len(varying) {
	case 0:
	case 1:
		ops = append(ops, t.bases[varying[0]].InAny(column(rows, varying[0])))
	default:
		ops = append(ops, t.multiIn(varying, rows))
	}
	return operation.NewAnd(ops...)
}

// multiIn projects full-width rows onto positions.
func (t *TupleAttribute) multiIn(positions []int, rows [][]any) operation.Operation {
	members := make([]AnyAttribute, len(positions))
	attrs := make([]operation.Attribute, len(positions))
	for i, p := range positions {
		members[i] = t.bases[p]
		attrs[i] = t.bases[p]
	}
	return operation.MultiIn{Attributes: attrs, Rows: dedupeRows(members, project(rows, positions))}
}

func column(rows [][]any, p int) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r[p]
	}
	return out
}

func project(rows [][]any, positions []int) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		row := make([]any, len(positions))
		for j, p := range positions {
			row[j] = r[p]
		}
		out[i] = row
	}
	return out
}

func withoutNulls(rows [][]any) [][]any {
	out := make([][]any, 0, len(rows))
next:
	for _, r := range rows {
		for _, v := range r {
			if v == nil {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

// dedupeRows drops repeated rows, keeping first occurrences. attrs[i]
// compares position i.
func dedupeRows(attrs []AnyAttribute, rows [][]any) [][]any {
	buckets := make(map[string][]int, len(rows))
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		key := fmt.Sprint(r...)
		dup := false
		for _, i := range buckets[key] {
			if rowsEqual(attrs, out[i], r) {
				dup = true
				break
			}
		}
		if !dup {
			buckets[key] = append(buckets[key], len(out))
			out = append(out, r)
		}
	}
	return out
}

func rowsEqual(attrs []AnyAttribute, a, b []any) bool {
	for i := range a {
		if !attrs[i].EqualValues(a[i], b[i]) {
			return false
		}
	}
	return true
}
