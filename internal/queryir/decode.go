package queryir

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Where holds a predicate decoded from YAML. The zero value matches every
// row.
type Where struct {
	Predicate Predicate
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (w *Where) UnmarshalYAML(n *yaml.Node) error {
	p, err := decodeNode(n)
	if err != nil {
		return err
	}
	w.Predicate = p
	return nil
}

// Decode parses a predicate from YAML text. Empty text matches every row.
func Decode(data []byte) (Predicate, error) {
	var n yaml.Node
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("parse where clause: %w", err)
	}
	if n.Kind == 0 {
		return All{}, nil
	}
	return decodeNode(&n)
}

func nodeError(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
}

func decodeNode(n *yaml.Node) (Predicate, error) {
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return All{}, nil
		}
		n = n.Content[0]
	}
	if n.Kind == yaml.ScalarNode && n.Value == "all" {
		return All{}, nil
	}
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return nil, nodeError(n, "a predicate is a map with exactly one key")
	}
	key, val := n.Content[0].Value, n.Content[1]

	switch key {
	case "all":
		var all bool
		if err := val.Decode(&all); err != nil || !all {
			return nil, nodeError(val, "all takes the value true")
		}
		return All{}, nil

	case "and", "or":
		if val.Kind != yaml.SequenceNode {
			return nil, nodeError(val, "%s takes a list of predicates", key)
		}
		preds := make([]Predicate, 0, len(val.Content))
		for _, c := range val.Content {
			p, err := decodeNode(c)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		if key == "and" {
			return And{Predicates: preds}, nil
		}
		return Or{Predicates: preds}, nil

	case "in", "not_in":
		path, v, err := singleEntry(key, val)
		if err != nil {
			return nil, err
		}
		if v.Kind != yaml.SequenceNode {
			return nil, nodeError(v, "%s takes a list of values", key)
		}
		var values []any
		if err := v.Decode(&values); err != nil {
			return nil, nodeError(v, "%v", err)
		}
		return In{Path: path, Values: values, Negate: key == "not_in"}, nil

	case "is_null", "is_not_null":
		if val.Kind != yaml.ScalarNode || val.Value == "" {
			return nil, nodeError(val, "%s takes an attribute path", key)
		}
		return Null{Path: val.Value, Negate: key == "is_not_null"}, nil

	case "as_of":
		return decodeAsOf(val)
	}

	if op := CompareOp(key); slices.Contains(compareOps, op) {
		path, v, err := singleEntry(key, val)
		if err != nil {
			return nil, err
		}
		if v.Kind != yaml.ScalarNode {
			return nil, nodeError(v, "%s takes a single value", key)
		}
		var value any
		if err := v.Decode(&value); err != nil {
			return nil, nodeError(v, "%v", err)
		}
		return Compare{Path: path, Op: op, Value: value}, nil
	}
	return nil, nodeError(n, "unknown predicate %q", key)
}

// singleEntry reads a one-entry map of attribute path to value.
func singleEntry(key string, n *yaml.Node) (string, *yaml.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, nodeError(n, "%s takes a map of one attribute path to its operand", key)
	}
	return n.Content[0].Value, n.Content[1], nil
}

func decodeAsOf(n *yaml.Node) (Predicate, error) {
	if n.Kind != yaml.MappingNode {
		return nil, nodeError(n, "as_of takes a map")
	}
	var a AsOf
	for i := 0; i < len(n.Content); i += 2 {
		k, v := n.Content[i].Value, n.Content[i+1]
		var err error
		switch k {
		case "attribute":
			err = v.Decode(&a.Attribute)
		case "at":
			err = v.Decode(&a.At)
		case "from":
			err = v.Decode(&a.From)
		case "to":
			err = v.Decode(&a.To)
		case "infinity":
			err = v.Decode(&a.Infinity)
		case "edge":
			err = v.Decode(&a.Edge)
		default:
			return nil, nodeError(n.Content[i], "unknown as_of field %q", k)
		}
		if err != nil {
			return nil, nodeError(v, "as_of %s: %v", k, err)
		}
	}
	return a, nil
}
