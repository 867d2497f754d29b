// Package querysql compiles operations into parameterized SELECT statements.
//
// Every statement binds values through ? placeholders (rebound to the
// dialect's syntax at the end) and orders by the root portal's primary key,
// so result order is stable across runs.
package querysql

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/dialect"
	"github.com/roach88/chronorm/internal/operation"
)

// RootAlias is the alias of the root portal's table.
const RootAlias = "t0"

// Options configures compilation.
type Options struct {
	// Dialect defaults to SQLite.
	Dialect dialect.DatabaseType

	// Portals resolves join targets not reachable through the root's
	// relationships.
	Portals []*attribute.Portal

	// TempTableName names temp tables for large tuple sets. Defaults to a
	// random uuid-based name.
	TempTableName func() string

	// AllVersions leaves as-of attributes the operation does not constrain
	// unfiltered. By default they select the current version.
	AllVersions bool
}

// DefaultTempTableName returns "tmp_" followed by 32 hex digits.
func DefaultTempTableName() string {
	return "tmp_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// query is the operation.SQLQuery the attributes render against. It hands
// out one alias per relationship path and records the joins those paths
// need.
type query struct {
	dt      dialect.DatabaseType
	root    *attribute.Portal
	portals map[string]*attribute.Portal
	newName func() string

	// allVersions leaves dated join targets unfiltered.
	allVersions bool

	stack   []operation.Mapper
	aliases map[string]string
	paths   []operation.Mapper
	args    []any
	temps   []TempTable
}

var _ operation.SQLQuery = (*query)(nil)

func newQuery(root *attribute.Portal, opts Options) *query {
	q := &query{
		dt:          opts.Dialect,
		root:        root,
		portals:     make(map[string]*attribute.Portal),
		newName:     opts.TempTableName,
		allVersions: opts.AllVersions,
		aliases:     make(map[string]string),
	}
	if q.dt == nil {
		q.dt = dialect.SQLite{}
	}
	if q.newName == nil {
		q.newName = DefaultTempTableName
	}
	q.collect(root)
	for _, p := range opts.Portals {
		q.collect(p)
	}
	return q
}

// collect registers p and every portal reachable through its relationships.
func (q *query) collect(p *attribute.Portal) {
	if _, seen := q.portals[p.BusClassName()]; seen {
		return
	}
	q.portals[p.BusClassName()] = p
	for _, r := range p.Relationships() {
		q.collect(r.Target)
	}
}

// DatabaseType returns the target dialect.
func (q *query) DatabaseType() dialect.DatabaseType { return q.dt }

func (q *query) current() operation.Mapper {
	if len(q.stack) == 0 {
		return operation.Mapper{}
	}
	return q.stack[len(q.stack)-1]
}

// DatabaseAlias returns the alias of the portal at the current relationship
// path.
func (q *query) DatabaseAlias(string) string {
	return q.aliasFor(q.current())
}

// PushMapper descends into m relative to the current path.
func (q *query) PushMapper(m operation.Mapper) {
	q.stack = append(q.stack, q.current().Chain(m))
}

// PopMapper returns to the enclosing path.
func (q *query) PopMapper() {
	q.stack = q.stack[:len(q.stack)-1]
}

// aliasFor assigns aliases to m and each of its prefixes, in the order
// paths are first seen.
func (q *query) aliasFor(m operation.Mapper) string {
	if m.IsEmpty() {
		return RootAlias
	}
	joins := m.Joins()
	alias := RootAlias
	for i := range joins {
		prefix := operation.NewMapper(joins[:i+1]...)
		key := prefix.Key()
		a, ok := q.aliases[key]
		if !ok {
			a = "t" + strconv.Itoa(len(q.paths)+1)
			q.aliases[key] = a
			q.paths = append(q.paths, prefix)
		}
		alias = a
	}
	return alias
}

// bind converts v to the driver value bound for attr and records it.
func (q *query) bind(attr operation.Attribute, v any) error {
	p, err := attr.SQLParameter(v)
	if err != nil {
		return err
	}
	q.args = append(q.args, q.dt.BindValue(p))
	return nil
}

// fixedAlias renders column attributes against one alias.
type fixedAlias string

func (a fixedAlias) DatabaseAlias(string) string   { return string(a) }
func (fixedAlias) PushMapper(operation.Mapper)     {}
func (fixedAlias) PopMapper()                      {}
