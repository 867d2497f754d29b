package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronorm/internal/queryir"
)

func where(t *testing.T, src string) queryir.Where {
	t.Helper()
	p, err := queryir.Decode([]byte(src))
	require.NoError(t, err)
	return queryir.Where{Predicate: p}
}

func TestRunWithGolden(t *testing.T) {
	s := &Scenario{
		Name:        "orders_sql",
		Description: "Statements compiled for column, relationship and as-of queries",
		Schema:      []string{"testdata/scenarios/schema.cue"},
		Fixtures:    []string{"testdata/scenarios/fixtures.txt"},
		Queries: []Query{
			{Name: "open", Portal: "Order", Where: where(t, "eq: {status: open}"), Expect: Expect{Keys: []string{"1"}}},
			{Name: "big_items", Portal: "Order", Where: where(t, "gt: {items.quantity: 5}"), Expect: Expect{Keys: []string{"1"}}},
			{Name: "current", Portal: "Position", Expect: Expect{Keys: []string{
				"7, 2024-03-01 00:00:00.000",
				"8, 2024-02-01 00:00:00.000",
			}}},
		},
	}

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestTranscript_Error(t *testing.T) {
	result := NewResult()
	result.Queries = append(result.Queries,
		QueryResult{Name: "bad", Err: "boom"},
		QueryResult{Name: "none", SQL: "SELECT 1", Args: []string{}, Keys: []string{}},
	)
	assert.Equal(t, "-- query: bad\n-- error: boom\n"+
		"-- query: none\nSELECT 1\n-- args: []\n-- keys: []\n", string(Transcript(result)))
}
