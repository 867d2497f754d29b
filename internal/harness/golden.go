package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares the compiled statements
// against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the statements don't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares a result's statements against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Transcript(result))
}

// Transcript renders each query's statement, arguments and returned keys.
func Transcript(result *Result) []byte {
	var buf strings.Builder
	for _, q := range result.Queries {
		fmt.Fprintf(&buf, "-- query: %s\n", q.Name)
		if q.Err != "" {
			fmt.Fprintf(&buf, "-- error: %s\n", q.Err)
			continue
		}
		fmt.Fprintf(&buf, "%s\n", q.SQL)
		fmt.Fprintf(&buf, "-- args: [%s]\n", strings.Join(q.Args, " "))
		fmt.Fprintf(&buf, "-- keys: [%s]\n", strings.Join(q.Keys, "; "))
	}
	return []byte(buf.String())
}
