package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a scenario over the shared schema and fixtures into
// dir, with expectKeys as the expected keys of its only query.
func writeScenario(t *testing.T, dir, name, expectKeys string) string {
	t.Helper()
	schema, err := filepath.Abs(filepath.Join(schemaDir, "orders.cue"))
	require.NoError(t, err)
	fixtureFile, err := filepath.Abs(fixtures)
	require.NoError(t, err)

	src := fmt.Sprintf(`name: %s
description: "open orders"
schema: [%q]
fixtures: [%q]
queries:
  - name: open
    portal: Order
    where:
      eq: {status: open}
    expect:
      keys: %s
`, name, schema, fixtureFile, expectKeys)
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestRunTests(t *testing.T) {
	out, err := execute(t, "test", "testdata/scenarios")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ orders\n")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestRunTestsJSON(t *testing.T) {
	out, err := execute(t, "test", "testdata/scenarios", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Total)
}

func TestRunTestsFailure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong", `["2"]`)

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "Assertion failed: open keys")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestRunTestsLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestRunTestsFilter(t *testing.T) {
	out, err := execute(t, "test", "testdata/scenarios", "--filter", "positions*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestRunTestsMissingDirectory(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunTestsGolden(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "golden_orders", `["1"]`)
	goldenPath := filepath.Join(dir, "golden", "golden_orders.golden")

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ golden_orders (golden updated)")

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Equal(t, "-- query: open\n"+
		"SELECT t0.id, t0.status FROM orders t0 WHERE t0.status = ? ORDER BY t0.id\n"+
		"-- args: [open]\n"+
		"-- keys: [1]\n", string(data))

	_, err = execute(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("-- query: open\nSELECT 1\n"), 0644))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "golden file mismatch")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "orders.golden"), goldenFilePath(filepath.Join("scenarios", "orders.yaml")))
}
