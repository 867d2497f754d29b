package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/compiler"
	"github.com/roach88/chronorm/internal/flatfile"
	"github.com/roach88/chronorm/internal/queryir"
	"github.com/roach88/chronorm/internal/store"
	"github.com/roach88/chronorm/internal/testutil"
)

// defaultNow is the clock reading of scenarios that set no now.
var defaultNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Options configures a run.
type Options struct {
	// Logger defaults to a handler that discards everything.
	Logger *slog.Logger
}

// Harness is the scenario execution engine.
// It runs scenarios with a fixed clock and predictable temp table names.
type Harness struct {
	store  *store.Store
	schema *compiler.Schema
	clock  *testutil.FixedClock
	logger *slog.Logger
}

// Run executes a scenario with default options.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario, Options{})
}

// RunContext executes a scenario and returns the result.
//
// Each scenario runs in a fresh database for isolation.
// Execution flow:
// 1. Compile and build the schema
// 2. Create one table per portal
// 3. Load the fixtures
// 4. Run every query and check its expectations
//
// Errors are returned for broken setup; query failures land in the result.
func RunContext(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	now := defaultNow
	if scenario.Now != "" {
		t, err := parseNow(scenario.Now)
		if err != nil {
			return nil, fmt.Errorf("now: %w", err)
		}
		now = t
	}
	clock := testutil.NewFixedClock(now)

	specs, err := compiler.CompileFiles(scenario.Schema...)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	schema, err := compiler.Build(specs, compiler.Options{Logger: logger, Clock: clock})
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}

	dir, err := os.MkdirTemp("", "chronorm-harness-")
	if err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(ctx, filepath.Join(dir, "scenario.db"), store.Options{
		Logger:        logger,
		TempTableName: testutil.NewSequenceNames("tmp").Generate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	h := &Harness{store: st, schema: schema, clock: clock, logger: logger}

	result := NewResult()
	if err := h.setup(ctx, scenario.Fixtures, result); err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}

	for _, q := range scenario.Queries {
		qr := h.runQuery(ctx, q)
		result.Queries = append(result.Queries, qr)
		for _, e := range EvaluateExpect(qr, q.Expect) {
			result.AddError(e.Error())
		}
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"queries", len(result.Queries),
		"pass", result.Pass,
	)
	return result, nil
}

// setup creates every portal's table and inserts the fixture rows.
func (h *Harness) setup(ctx context.Context, fixtures []string, result *Result) error {
	for _, p := range h.schema.Portals() {
		if err := h.store.CreateTable(ctx, p); err != nil {
			return err
		}
		fp, err := h.schema.Fingerprint(p.BusClassName())
		if err != nil {
			return err
		}
		if err := h.store.RecordPortal(ctx, p, fp); err != nil {
			return err
		}
	}

	for _, path := range fixtures {
		tables, err := flatfile.ReadFile(path, h.schema, flatfile.Options{})
		if err != nil {
			return err
		}
		for _, t := range tables {
			if err := h.store.Insert(ctx, t.Portal, t.Rows); err != nil {
				return err
			}
			result.Loaded[t.Portal.BusClassName()] += len(t.Rows)
			h.logger.Debug("fixture loaded",
				"portal", t.Portal.BusClassName(),
				"rows", len(t.Rows),
				"file", path,
			)
		}
	}
	return nil
}

func (h *Harness) runQuery(ctx context.Context, q Query) QueryResult {
	qr := QueryResult{Name: q.Name, Keys: []string{}}

	p, ok := h.schema.Portal(q.Portal)
	if !ok {
		qr.Err = fmt.Sprintf("unknown portal %q", q.Portal)
		return qr
	}
	op, err := queryir.Bind(p, q.Where.Predicate)
	if err != nil {
		qr.Err = err.Error()
		return qr
	}

	opts := store.FindOptions{AllVersions: q.AllVersions, Portals: h.schema.Portals()}
	stmt, err := h.store.Compile(p, op, opts)
	if err != nil {
		qr.Err = err.Error()
		return qr
	}
	qr.SQL = stmt.SQL
	qr.Args = make([]string, len(stmt.Args))
	for i, a := range stmt.Args {
		qr.Args[i] = fmt.Sprint(a)
	}

	owners, err := h.store.Find(ctx, p, op, opts)
	if err != nil {
		qr.Err = err.Error()
		return qr
	}
	for _, o := range owners {
		qr.Keys = append(qr.Keys, primaryKey(p, o))
	}
	h.logger.Debug("query ran", "query", q.Name, "portal", q.Portal, "rows", len(owners))
	return qr
}

// primaryKey renders owner's primary key values joined by ", ".
func primaryKey(p *attribute.Portal, owner any) string {
	pk := p.PrimaryKey()
	parts := make([]string, len(pk))
	for i, a := range pk {
		if a.IsAttributeNull(owner) {
			parts[i] = "null"
			continue
		}
		parts[i] = a.ValueOfAsString(owner)
	}
	return strings.Join(parts, ", ")
}

func parseNow(text string) (time.Time, error) {
	return attribute.TimestampDomain{}.Parse(text, "")
}
