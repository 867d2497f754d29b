package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when a query misses an expectation.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Query    string // Query name
	Type     string // keys, count or error
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	SQL      string // Compiled statement, when there is one
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s %s\n", e.Query, e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.SQL != "" {
		fmt.Fprintf(&buf, "  SQL: %s\n", e.SQL)
	}
	return buf.String()
}

// EvaluateExpect checks one query result against its expectations and
// returns every failure.
func EvaluateExpect(qr QueryResult, expect Expect) []error {
	fail := func(typ, expected, actual string) error {
		return &AssertionError{Query: qr.Name, Type: typ, Expected: expected, Actual: actual, SQL: qr.SQL}
	}

	if expect.Error != "" {
		if qr.Err == "" {
			return []error{fail("error", fmt.Sprintf("error containing %q", expect.Error), "no error")}
		}
		if !strings.Contains(qr.Err, expect.Error) {
			return []error{fail("error", fmt.Sprintf("error containing %q", expect.Error), qr.Err)}
		}
		return nil
	}
	if qr.Err != "" {
		return []error{fail("error", "no error", qr.Err)}
	}

	var errs []error
	if expect.Count != nil && len(qr.Keys) != *expect.Count {
		errs = append(errs, fail("count", fmt.Sprintf("%d rows", *expect.Count), fmt.Sprintf("%d rows", len(qr.Keys))))
	}
	if expect.Keys != nil && !slices.Equal(expect.Keys, qr.Keys) {
		errs = append(errs, fail("keys", formatKeys(expect.Keys), formatKeys(qr.Keys)))
	}
	return errs
}

func formatKeys(keys []string) string {
	if len(keys) == 0 {
		return "no rows"
	}
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = "(" + k + ")"
	}
	return strings.Join(quoted, " ")
}
