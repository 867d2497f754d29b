package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/operation"
)

var orderedOps = map[CompareOp]operation.CompareOp{
	OpGt:  operation.GreaterThan,
	OpGte: operation.GreaterThanEquals,
	OpLt:  operation.LessThan,
	OpLte: operation.LessThanEquals,
}

// Bind resolves p against portal into an operation. A nil predicate matches
// every row.
func Bind(p *attribute.Portal, pred Predicate) (operation.Operation, error) {
	if pred == nil {
		return operation.All{On: p.BusClassName()}, nil
	}
	if res := Validate(pred); !res.Valid {
		return nil, fmt.Errorf("invalid where clause: %s", strings.Join(res.Problems, "; "))
	}
	return bind(p, pred)
}

func bind(p *attribute.Portal, pred Predicate) (operation.Operation, error) {
	switch q := pred.(type) {
	case All:
		return operation.All{On: p.BusClassName()}, nil

	case Compare:
		a, err := p.Resolve(q.Path)
		if err != nil {
			return nil, err
		}
		switch q.Op {
		case OpEq:
			return a.EqAny(q.Value), nil
		case OpNotEq:
			return a.NotEqAny(q.Value), nil
		default:
			return a.CompareAny(orderedOps[q.Op], q.Value)
		}

	case In:
		a, err := p.Resolve(q.Path)
		if err != nil {
			return nil, err
		}
		if q.Negate {
			return a.NotInAny(q.Values), nil
		}
		return a.InAny(q.Values), nil

	case Null:
		a, err := p.Resolve(q.Path)
		if err != nil {
			return nil, err
		}
		if q.Negate {
			return a.IsNotNull(), nil
		}
		return a.IsNull(), nil

	case And:
		ops, err := bindAll(p, q.Predicates)
		if err != nil {
			return nil, err
		}
		return operation.NewAnd(ops...), nil

	case Or:
		ops, err := bindAll(p, q.Predicates)
		if err != nil {
			return nil, err
		}
		return operation.NewOr(ops...), nil

	case AsOf:
		return bindAsOf(p, q)

	default:
		return nil, fmt.Errorf("unknown predicate type %T", pred)
	}
}

func bindAll(p *attribute.Portal, preds []Predicate) ([]operation.Operation, error) {
	ops := make([]operation.Operation, len(preds))
	for i, pred := range preds {
		op, err := bind(p, pred)
		if err != nil {
			return nil, err
		}
		ops[i] = op
	}
	return ops, nil
}

func bindAsOf(p *attribute.Portal, q AsOf) (operation.Operation, error) {
	ao, ok := p.AsOfAttribute(q.Attribute)
	if !ok {
		return nil, fmt.Errorf("portal %s: no as-of attribute %q", p.BusClassName(), q.Attribute)
	}
	switch {
	case q.Edge:
		return ao.EqualsEdgePoint(), nil
	case q.Infinity:
		return ao.EqualsInfinity(), nil
	case q.At != "":
		at, err := parseTimestamp(q.At)
		if err != nil {
			return nil, err
		}
		return ao.Eq(at), nil
	default:
		start, err := parseTimestamp(q.From)
		if err != nil {
			return nil, err
		}
		end, err := parseTimestamp(q.To)
		if err != nil {
			return nil, err
		}
		return ao.Range(start, end), nil
	}
}
