package operation

import (
	"errors"
	"fmt"
	"strings"
)

// Join is one relationship hop from portal From to portal To.
//
// Rows of From are related to rows of To where every Left[i] equals
// Right[i]. Left attributes belong to From, Right attributes to To.
// Navigate, when set, resolves the related owners of a From owner for
// in-memory evaluation. ToAsOf lists the as-of attributes of To; related
// rows are filtered to the version those axes select.
type Join struct {
	Name     string
	From     string
	To       string
	Left     []Attribute
	Right    []Attribute
	ToAsOf   []AsOfAttribute
	Navigate func(owner any) []any
}

func (j Join) equal(o Join) bool {
	if j.Name != o.Name || j.From != o.From || j.To != o.To {
		return false
	}
	if len(j.Left) != len(o.Left) || len(j.Right) != len(o.Right) {
		return false
	}
	for i := range j.Left {
		if j.Left[i] != o.Left[i] {
			return false
		}
	}
	for i := range j.Right {
		if j.Right[i] != o.Right[i] {
			return false
		}
	}
	return true
}

// key identifies the hop for alias assignment.
func (j Join) key() string {
	var b strings.Builder
	b.WriteString(j.From)
	b.WriteString(">")
	b.WriteString(j.To)
	for i := range j.Left {
		b.WriteString("|")
		b.WriteString(j.Left[i].String())
		b.WriteString("=")
		b.WriteString(j.Right[i].String())
	}
	return b.String()
}

// Mapper is an immutable relationship path from a root portal to a related
// portal. The zero value is the empty path.
type Mapper struct {
	joins     []Join
	anonymous bool
}

// NewMapper builds a path from consecutive hops.
func NewMapper(joins ...Join) Mapper {
	cp := make([]Join, len(joins))
	copy(cp, joins)
	return Mapper{joins: cp}
}

// Joins returns a copy of the hops, root first.
func (m Mapper) Joins() []Join {
	cp := make([]Join, len(m.joins))
	copy(cp, m.joins)
	return cp
}

// Len returns the number of hops.
func (m Mapper) Len() int { return len(m.joins) }

// IsEmpty reports whether m has no hops.
func (m Mapper) IsEmpty() bool { return len(m.joins) == 0 }

// Anonymous reports whether m was built ad hoc by a join predicate rather
// than declared as a named relationship.
func (m Mapper) Anonymous() bool { return m.anonymous }

// AsAnonymous returns a copy of m flagged anonymous.
func (m Mapper) AsAnonymous() Mapper {
	return Mapper{joins: m.joins, anonymous: true}
}

// FromPortal returns the root portal, or "" for the empty path.
func (m Mapper) FromPortal() string {
	if len(m.joins) == 0 {
		return ""
	}
	return m.joins[0].From
}

// ResultPortal returns the portal the path ends at, or "" for the empty path.
func (m Mapper) ResultPortal() string {
	if len(m.joins) == 0 {
		return ""
	}
	return m.joins[len(m.joins)-1].To
}

// Chain returns the path that follows m and then inner.
func (m Mapper) Chain(inner Mapper) Mapper {
	joins := make([]Join, 0, len(m.joins)+len(inner.joins))
	joins = append(joins, m.joins...)
	joins = append(joins, inner.joins...)
	return Mapper{joins: joins, anonymous: m.anonymous && inner.anonymous}
}

// Equal reports whether both paths consist of the same hops.
func (m Mapper) Equal(o Mapper) bool {
	if len(m.joins) != len(o.joins) {
		return false
	}
	for i := range m.joins {
		if !m.joins[i].equal(o.joins[i]) {
			return false
		}
	}
	return true
}

// CommonPrefix returns the longest leading path shared by m and o.
func (m Mapper) CommonPrefix(o Mapper) Mapper {
	n := 0
	for n < len(m.joins) && n < len(o.joins) && m.joins[n].equal(o.joins[n]) {
		n++
	}
	return Mapper{joins: m.joins[:n:n]}
}

// Remainder returns the path left after removing prefix from the front of m.
// The boolean is false when prefix is not a prefix of m.
func (m Mapper) Remainder(prefix Mapper) (Mapper, bool) {
	if len(prefix.joins) > len(m.joins) {
		return Mapper{}, false
	}
	for i := range prefix.joins {
		if !m.joins[i].equal(prefix.joins[i]) {
			return Mapper{}, false
		}
	}
	return Mapper{joins: m.joins[len(prefix.joins):], anonymous: m.anonymous}, true
}

// Name returns the dotted relationship names, e.g. "order.items".
func (m Mapper) Name() string {
	names := make([]string, len(m.joins))
	for i, j := range m.joins {
		names[i] = j.Name
	}
	return strings.Join(names, ".")
}

func (m Mapper) String() string {
	if len(m.joins) == 0 {
		return "<root>"
	}
	return m.FromPortal() + "." + m.Name()
}

// Key identifies the path for alias assignment. Equal paths share a key.
func (m Mapper) Key() string {
	keys := make([]string, len(m.joins))
	for i, j := range m.joins {
		keys[i] = j.key()
	}
	return strings.Join(keys, "/")
}

// ErrNoNavigator is returned when a hop cannot be followed in memory.
var ErrNoNavigator = errors.New("relationship has no in-memory navigator")

// Navigate follows every hop from owner and returns the related owners.
func (m Mapper) Navigate(owner any) ([]any, error) {
	return m.navigate(owner, nil)
}

// navigate follows every hop from owner. When keep is set, a related owner
// reached over hop i survives only if keep(i, related) holds.
func (m Mapper) navigate(owner any, keep func(hop int, related any) bool) ([]any, error) {
	current := []any{owner}
	for i, j := range m.joins {
		if j.Navigate == nil {
			return nil, fmt.Errorf("%s.%s: %w", j.From, j.Name, ErrNoNavigator)
		}
		var next []any
		for _, o := range current {
			if o == nil {
				continue
			}
			for _, r := range j.Navigate(o) {
				if keep == nil || keep(i, r) {
					next = append(next, r)
				}
			}
		}
		current = next
	}
	return current, nil
}

// RelationshipMapper combines equi-join predicates produced by JoinEq into a
// single named hop. Every op must be a Mapped over All whose mapper has
// exactly one hop, and all hops must connect the same two portals.
func RelationshipMapper(name string, navigate func(owner any) []any, ops ...Operation) (Mapper, error) {
	if len(ops) == 0 {
		return Mapper{}, fmt.Errorf("relationship %q: at least one join predicate is required", name)
	}
	var combined Join
	for i, op := range ops {
		mapped, ok := op.(Mapped)
		if !ok {
			return Mapper{}, fmt.Errorf("relationship %q: predicate %d is %T, not a join", name, i, op)
		}
		if _, ok := mapped.Operation.(All); !ok || mapped.Mapper.Len() != 1 {
			return Mapper{}, fmt.Errorf("relationship %q: predicate %d is not a single-hop join", name, i)
		}
		j := mapped.Mapper.joins[0]
		if i == 0 {
			combined.From = j.From
			combined.To = j.To
			combined.ToAsOf = j.ToAsOf
		} else if j.From != combined.From || j.To != combined.To {
			return Mapper{}, fmt.Errorf("relationship %q: predicate %d joins %s to %s, expected %s to %s",
				name, i, j.From, j.To, combined.From, combined.To)
		}
		combined.Left = append(combined.Left, j.Left...)
		combined.Right = append(combined.Right, j.Right...)
	}
	combined.Name = name
	combined.Navigate = navigate
	return NewMapper(combined), nil
}
