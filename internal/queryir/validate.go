package queryir

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/chronorm/internal/attribute"
)

// ValidationResult lists the structural problems of a predicate.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	Problems []string
}

// Validate checks a predicate's shape without a portal: paths are present,
// operators known, as-of forms unambiguous, and timestamps parseable.
//
// Validate is a pure function with no side effects.
func Validate(p Predicate) ValidationResult {
	v := &validator{}
	v.validate(p, "where")
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) add(at, format string, args ...any) {
	v.problems = append(v.problems, at+": "+fmt.Sprintf(format, args...))
}

func (v *validator) validate(p Predicate, at string) {
	switch pred := p.(type) {
	case nil:
		v.add(at, "nil predicate")
	case All:
	case Compare:
		v.validatePath(pred.Path, at)
		if !slices.Contains(compareOps, pred.Op) {
			v.add(at, "unknown operator %q", pred.Op)
		}
		if pred.Value == nil && pred.Op != OpEq && pred.Op != OpNotEq {
			v.add(at, "%s needs a value", pred.Op)
		}
	case In:
		v.validatePath(pred.Path, at)
		for i, val := range pred.Values {
			if val == nil {
				v.add(fmt.Sprintf("%s[%d]", at, i), "null in a value list")
			}
		}
	case Null:
		v.validatePath(pred.Path, at)
	case And:
		v.validateList("and", pred.Predicates, at)
	case Or:
		v.validateList("or", pred.Predicates, at)
	case AsOf:
		v.validateAsOf(pred, at)
	default:
		v.add(at, "unknown predicate type %T", p)
	}
}

func (v *validator) validateList(name string, preds []Predicate, at string) {
	if len(preds) == 0 {
		v.add(at, "%s needs at least one predicate", name)
	}
	for i, p := range preds {
		v.validate(p, fmt.Sprintf("%s.%s[%d]", at, name, i))
	}
}

func (v *validator) validatePath(path, at string) {
	if path == "" {
		v.add(at, "attribute path is required")
		return
	}
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			v.add(at, "malformed attribute path %q", path)
			return
		}
	}
}

func (v *validator) validateAsOf(a AsOf, at string) {
	if a.Attribute == "" {
		v.add(at, "as_of attribute is required")
	}
	forms := 0
	if a.At != "" {
		forms++
	}
	if a.From != "" || a.To != "" {
		forms++
		if a.From == "" || a.To == "" {
			v.add(at, "as_of range needs both from and to")
		}
	}
	if a.Infinity {
		forms++
	}
	if a.Edge {
		forms++
	}
	if forms != 1 {
		v.add(at, "as_of needs exactly one of at, from/to, infinity, edge")
	}
	for _, ts := range []struct{ name, text string }{{"at", a.At}, {"from", a.From}, {"to", a.To}} {
		if ts.text == "" {
			continue
		}
		if _, err := parseTimestamp(ts.text); err != nil {
			v.add(at, "as_of %s: %v", ts.name, err)
		}
	}
}

func parseTimestamp(text string) (time.Time, error) {
	return attribute.TimestampDomain{}.Parse(text, "")
}
