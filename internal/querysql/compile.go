package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/dialect"
	"github.com/roach88/chronorm/internal/operation"
)

// Statement is a compiled SELECT with its bound arguments.
//
// TempTables must be created and filled before SQL runs and dropped after.
type Statement struct {
	SQL        string
	Args       []any
	TempTables []TempTable
}

// TempTable holds the rows of one large tuple set.
type TempTable struct {
	Name   string
	Create string
	Insert string
	Drop   string
	Rows   [][]any
}

// Compile renders op as a SELECT over root's table.
//
// The statement selects the root's columns in portal order. Relationship
// paths become LEFT JOINs, one alias per path; the result is DISTINCT when
// any join is present. Rows are ordered by the primary key, or by every
// column when the portal has none.
func Compile(root *attribute.Portal, op operation.Operation, opts Options) (*Statement, error) {
	if root == nil {
		return nil, fmt.Errorf("cannot compile against a nil portal")
	}
	if op == nil {
		op = operation.All{On: root.BusClassName()}
	}
	if p := op.Portal(); p != "" && p != root.BusClassName() {
		return nil, fmt.Errorf("operation on %s cannot filter %s", p, root.BusClassName())
	}
	if !opts.AllVersions {
		op = withCurrentVersions(root, op)
	}

	q := newQuery(root, opts)

	cols := make([]string, 0, len(root.Attributes()))
	for _, a := range root.Attributes() {
		c, err := a.FullyQualifiedLeftHandExpression(q)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}

	where, err := q.render(op)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", operation.Describe(op), err)
	}

	whereArgs := q.args
	q.args = nil

	order, err := q.orderBy()
	if err != nil {
		return nil, err
	}

	joins, err := q.joinClauses(op)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(joins) > 0 {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(root.TableName())
	sb.WriteString(" ")
	sb.WriteString(RootAlias)
	for _, j := range joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(order)

	return &Statement{
		SQL:        q.dt.Rebind(sb.String()),
		Args:       append(q.args, whereArgs...),
		TempTables: q.temps,
	}, nil
}

// withCurrentVersions adds a current-version predicate for every as-of
// attribute of root that op leaves unconstrained.
func withCurrentVersions(root *attribute.Portal, op operation.Operation) operation.Operation {
	terms := []operation.Operation{op}
	for _, a := range root.AsOfAttributes() {
		if !mentionsAsOf(op, a.AttributeName()) {
			terms = append(terms, a.EqualsInfinity())
		}
	}
	return operation.NewAnd(terms...)
}

// mentionsAsOf reports whether op constrains the root-level as-of attribute
// named name on every row it can match. A disjunction constrains it only
// when each branch does.
func mentionsAsOf(op operation.Operation, name string) bool {
	switch o := op.(type) {
	case operation.AsOfEquals:
		return o.Attribute.AttributeName() == name
	case operation.AsOfRange:
		return o.Attribute.AttributeName() == name
	case operation.AsOfEdgePoint:
		return o.Attribute.AttributeName() == name
	case operation.And:
		for _, inner := range o.Operations {
			if mentionsAsOf(inner, name) {
				return true
			}
		}
	case operation.Or:
		if len(o.Operations) == 0 {
			return false
		}
		for _, inner := range o.Operations {
			if !mentionsAsOf(inner, name) {
				return false
			}
		}
		return true
	}
	return false
}

// render returns the WHERE fragment for op; "" means no restriction.
func (q *query) render(op operation.Operation) (string, error) {
	switch o := op.(type) {
	case operation.All:
		return "", nil
	case operation.None:
		return "1 = 0", nil
	case operation.IsNull:
		return q.unary(o.Attribute, " IS NULL")
	case operation.IsNotNull:
		return q.unary(o.Attribute, " IS NOT NULL")
	case operation.Equals:
		return q.compare(o.Attribute, "=", o.Value)
	case operation.NotEquals:
		return q.compare(o.Attribute, "<>", o.Value)
	case operation.Compare:
		return q.compare(o.Attribute, o.Op.String(), o.Value)
	case operation.InSet:
		return q.in(o.Attribute, o.Values, false)
	case operation.NotInSet:
		return q.in(o.Attribute, o.Values, true)
	case operation.And:
		return q.junction(o.Operations, " AND ")
	case operation.Or:
		return q.junction(o.Operations, " OR ")
	case operation.SelfEquals:
		return q.self(o.Left, o.Right, "=")
	case operation.SelfNotEquals:
		return q.self(o.Left, o.Right, "<>")
	case operation.Mapped:
		return q.mapped(o)
	case operation.AsOfEquals:
		sql, args, err := o.Attribute.WhereClauseForValue(q, o.Value)
		if err != nil {
			return "", err
		}
		q.bindRaw(args)
		return sql, nil
	case operation.AsOfRange:
		sql, args, err := o.Attribute.WhereClauseForRange(q, o.Start, o.End)
		if err != nil {
			return "", err
		}
		q.bindRaw(args)
		return sql, nil
	case operation.AsOfEdgePoint:
		return "", nil
	case operation.MultiIn:
		return q.multiIn(o)
	default:
		return "", fmt.Errorf("unsupported operation %T", op)
	}
}

func (q *query) bindRaw(args []any) {
	for _, a := range args {
		q.args = append(q.args, q.dt.BindValue(a))
	}
}

func (q *query) unary(attr operation.Attribute, suffix string) (string, error) {
	e, err := attr.FullyQualifiedLeftHandExpression(q)
	if err != nil {
		return "", err
	}
	return e + suffix, nil
}

func (q *query) compare(attr operation.Attribute, op string, v any) (string, error) {
	e, err := attr.FullyQualifiedLeftHandExpression(q)
	if err != nil {
		return "", err
	}
	if err := q.bind(attr, v); err != nil {
		return "", err
	}
	return e + " " + op + " ?", nil
}

// in splits sets larger than the dialect's limit into several IN lists.
func (q *query) in(attr operation.Attribute, values []any, negate bool) (string, error) {
	e, err := attr.FullyQualifiedLeftHandExpression(q)
	if err != nil {
		return "", err
	}
	kw, sep := " IN (", " OR "
	if negate {
		kw, sep = " NOT IN (", " AND "
	}
	limit := q.dt.MaxInClauseRows()
	var parts []string
	for start := 0; start < len(values); start += limit {
		chunk := values[start:min(start+limit, len(values))]
		for _, v := range chunk {
			if err := q.bind(attr, v); err != nil {
				return "", err
			}
		}
		parts = append(parts, e+kw+placeholders(len(chunk))+")")
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (q *query) junction(ops []operation.Operation, sep string) (string, error) {
	parts := make([]string, 0, len(ops))
	bound := len(q.args)
	for _, op := range ops {
		s, err := q.render(op)
		if err != nil {
			return "", err
		}
		if s == "" {
			if sep == " OR " {
				// an unrestricted disjunct makes the whole disjunction true
				q.args = q.args[:bound]
				return "", nil
			}
			continue
		}
		parts = append(parts, s)
	}
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	default:
		return "(" + strings.Join(parts, sep) + ")", nil
	}
}

func (q *query) self(left, right operation.Attribute, op string) (string, error) {
	l, err := left.FullyQualifiedLeftHandExpression(q)
	if err != nil {
		return "", err
	}
	r, err := right.FullyQualifiedLeftHandExpression(q)
	if err != nil {
		return "", err
	}
	return l + " " + op + " " + r, nil
}

// mapped renders the inner operation against the related portal's alias.
// Unless the inner predicate already rejects the NULL row a LEFT JOIN
// produces for owners without related rows, a presence check on the join
// column is added.
func (q *query) mapped(o operation.Mapped) (string, error) {
	q.PushMapper(o.Mapper)
	defer q.PopMapper()

	inner, err := q.render(o.Operation)
	if err != nil {
		return "", err
	}
	if inner != "" && rejectsNull(o.Operation) {
		return inner, nil
	}
	guard, err := q.presence()
	if err != nil {
		return "", err
	}
	if inner == "" {
		return guard, nil
	}
	return "(" + guard + " AND " + inner + ")", nil
}

// presence tests that the current path joined a row.
func (q *query) presence() (string, error) {
	path := q.current()
	joins := path.Joins()
	last := joins[len(joins)-1]
	if len(last.Right) == 0 {
		return "", fmt.Errorf("relationship %s has no join columns", path)
	}
	e, err := last.Right[0].FullyQualifiedLeftHandExpression(fixedAlias(q.aliasFor(path)))
	if err != nil {
		return "", err
	}
	return e + " IS NOT NULL", nil
}

// rejectsNull reports whether op is false on a row whose columns are all
// NULL.
func rejectsNull(op operation.Operation) bool {
	switch o := op.(type) {
	case operation.Equals, operation.NotEquals, operation.Compare,
		operation.InSet, operation.NotInSet,
		operation.SelfEquals, operation.SelfNotEquals,
		operation.MultiIn, operation.Mapped, operation.None:
		return true
	case operation.And:
		for _, inner := range o.Operations {
			if rejectsNull(inner) {
				return true
			}
		}
		return false
	case operation.Or:
		for _, inner := range o.Operations {
			if !rejectsNull(inner) {
				return false
			}
		}
		return len(o.Operations) > 0
	default:
		return false
	}
}

// multiIn renders small tuple sets inline as a disjunction of conjunctions
// and larger ones as an EXISTS against a temp table.
func (q *query) multiIn(o operation.MultiIn) (string, error) {
	exprs := make([]string, len(o.Attributes))
	for i, a := range o.Attributes {
		e, err := a.FullyQualifiedLeftHandExpression(q)
		if err != nil {
			return "", err
		}
		exprs[i] = e
	}
	if len(o.Rows) <= q.dt.MaxInClauseRows() {
		rows := make([]string, len(o.Rows))
		for i, r := range o.Rows {
			terms := make([]string, len(exprs))
			for j, e := range exprs {
				if err := q.bind(o.Attributes[j], r[j]); err != nil {
					return "", err
				}
				terms[j] = e + " = ?"
			}
			rows[i] = "(" + strings.Join(terms, " AND ") + ")"
		}
		if len(rows) == 1 {
			return rows[0], nil
		}
		return "(" + strings.Join(rows, " OR ") + ")", nil
	}
	tt, err := q.tempTable(o)
	if err != nil {
		return "", err
	}
	terms := make([]string, len(exprs))
	for j, e := range exprs {
		terms[j] = "x.c" + strconv.Itoa(j) + " = " + e
	}
	return "EXISTS (SELECT 1 FROM " + tt.Name + " x WHERE " + strings.Join(terms, " AND ") + ")", nil
}

func (q *query) tempTable(o operation.MultiIn) (TempTable, error) {
	name := q.newName()
	cols := make([]dialect.TempColumn, len(o.Attributes))
	names := make([]string, len(o.Attributes))
	for i, a := range o.Attributes {
		names[i] = "c" + strconv.Itoa(i)
		cols[i] = dialect.TempColumn{Name: names[i], Type: columnType(a, q.dt)}
	}
	rows := make([][]any, len(o.Rows))
	for i, r := range o.Rows {
		bound := make([]any, len(r))
		for j, v := range r {
			p, err := o.Attributes[j].SQLParameter(v)
			if err != nil {
				return TempTable{}, err
			}
			bound[j] = q.dt.BindValue(p)
		}
		rows[i] = bound
	}
	tt := TempTable{
		Name:   name,
		Create: q.dt.CreateTempTable(name, cols),
		Insert: q.dt.Rebind("INSERT INTO " + name + " (" + strings.Join(names, ", ") + ") VALUES (" + placeholders(len(names)) + ")"),
		Drop:   q.dt.DropTempTable(name),
		Rows:   rows,
	}
	q.temps = append(q.temps, tt)
	return tt, nil
}

func columnType(a operation.Attribute, dt dialect.DatabaseType) string {
	if typed, ok := a.(interface {
		ColumnType(dialect.DatabaseType) string
	}); ok {
		return typed.ColumnType(dt)
	}
	return dt.SQLTypeForString(255)
}

func (q *query) orderBy() (string, error) {
	var attrs []operation.Attribute
	for _, o := range q.root.DefaultOrder() {
		attrs = append(attrs, o.Attribute)
	}
	if len(attrs) == 0 {
		for _, a := range q.root.Attributes() {
			attrs = append(attrs, a)
		}
	}
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		e, err := a.FullyQualifiedLeftHandExpression(q)
		if err != nil {
			return "", err
		}
		parts[i] = e
	}
	return strings.Join(parts, ", "), nil
}

// joinClauses renders a LEFT JOIN per aliased path in alias order. Every
// prefix of a path was aliased before the path itself. Arguments bound for
// the ON clauses are recorded in q.args.
func (q *query) joinClauses(op operation.Operation) ([]string, error) {
	pins := q.rootPins(op)
	constrained := make(map[string]bool)
	constrainedAsOf(op, operation.Mapper{}, constrained)

	out := make([]string, 0, len(q.paths))
	for _, path := range q.paths {
		joins := path.Joins()
		hop := joins[len(joins)-1]
		parent := RootAlias
		if len(joins) > 1 {
			parent = q.aliases[operation.NewMapper(joins[:len(joins)-1]...).Key()]
		}
		alias := q.aliases[path.Key()]
		target, ok := q.portals[hop.To]
		if !ok {
			return nil, fmt.Errorf("join %s: no portal registered for %s", path, hop.To)
		}
		terms := make([]string, 0, len(hop.Left)+len(target.AsOfAttributes()))
		for i := range hop.Left {
			l, err := hop.Left[i].FullyQualifiedLeftHandExpression(fixedAlias(parent))
			if err != nil {
				return nil, err
			}
			r, err := hop.Right[i].FullyQualifiedLeftHandExpression(fixedAlias(alias))
			if err != nil {
				return nil, err
			}
			terms = append(terms, l+" = "+r)
		}
		if !q.allVersions {
			for _, ta := range target.AsOfAttributes() {
				if constrained[asOfKey(path, ta)] {
					continue
				}
				term, err := q.joinAsOf(ta, alias, pins)
				if err != nil {
					return nil, fmt.Errorf("join %s: %w", path, err)
				}
				if term != "" {
					terms = append(terms, term)
				}
			}
		}
		out = append(out, "LEFT JOIN "+target.TableName()+" "+alias+" ON "+strings.Join(terms, " AND "))
	}
	return out, nil
}

// joinAsOf renders the version filter of a dated join target at alias. The
// target follows the root's compatible as-of predicate and otherwise selects
// its current version.
func (q *query) joinAsOf(ta *attribute.AsOfAttribute, alias string, pins map[*attribute.AsOfAttribute]operation.Operation) (string, error) {
	var pin operation.Operation
	for _, ra := range q.root.AsOfAttributes() {
		if ra.CompatibleWith(ta) {
			pin = pins[ra]
			break
		}
	}
	var (
		sql  string
		args []any
		err  error
	)
	switch p := pin.(type) {
	case operation.AsOfEquals:
		sql, args, err = ta.WhereClauseForValue(fixedAlias(alias), p.Value)
	case operation.AsOfRange:
		sql, args, err = ta.WhereClauseForRange(fixedAlias(alias), p.Start, p.End)
	case operation.AsOfEdgePoint:
		return "", nil
	default:
		sql, args, err = ta.WhereClauseForValue(fixedAlias(alias), ta.Infinity())
	}
	if err != nil {
		return "", err
	}
	q.bindRaw(args)
	return sql, nil
}

// rootPins returns the as-of predicates that hold for every row op matches,
// keyed by the root attribute they constrain.
func (q *query) rootPins(op operation.Operation) map[*attribute.AsOfAttribute]operation.Operation {
	pins := make(map[*attribute.AsOfAttribute]operation.Operation)
	var walk func(operation.Operation)
	walk = func(op operation.Operation) {
		var attr operation.AsOfAttribute
		switch o := op.(type) {
		case operation.And:
			for _, inner := range o.Operations {
				walk(inner)
			}
			return
		case operation.AsOfEquals:
			attr = o.Attribute
		case operation.AsOfRange:
			attr = o.Attribute
		case operation.AsOfEdgePoint:
			attr = o.Attribute
		default:
			return
		}
		if a, ok := attr.(*attribute.AsOfAttribute); ok && a.Portal() == q.root {
			pins[a] = op
		}
	}
	walk(op)
	return pins
}

// constrainedAsOf records every as-of attribute op constrains, keyed by the
// relationship path it is evaluated at.
func constrainedAsOf(op operation.Operation, path operation.Mapper, out map[string]bool) {
	switch o := op.(type) {
	case operation.AsOfEquals:
		out[asOfKey(path, o.Attribute)] = true
	case operation.AsOfRange:
		out[asOfKey(path, o.Attribute)] = true
	case operation.AsOfEdgePoint:
		out[asOfKey(path, o.Attribute)] = true
	case operation.And:
		for _, inner := range o.Operations {
			constrainedAsOf(inner, path, out)
		}
	case operation.Or:
		for _, inner := range o.Operations {
			constrainedAsOf(inner, path, out)
		}
	case operation.Mapped:
		constrainedAsOf(o.Operation, path.Chain(o.Mapper), out)
	}
}

func asOfKey(path operation.Mapper, a interface{ AttributeName() string }) string {
	return path.Key() + "#" + a.AttributeName()
}
