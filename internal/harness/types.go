package harness

// QueryResult records what one query compiled to and returned.
type QueryResult struct {
	Name string   `json:"name"`
	SQL  string   `json:"sql,omitempty"`
	Args []string `json:"args,omitempty"`
	Keys []string `json:"keys"`

	// Err is the bind, compile, or find error, if any.
	Err string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every query met its expectations.
	Pass bool `json:"pass"`

	// Queries holds one entry per scenario query, in order.
	Queries []QueryResult `json:"queries"`

	// Errors contains expectation failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Loaded counts the fixture rows inserted per portal.
	Loaded map[string]int `json:"loaded,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Queries: []QueryResult{},
		Errors:  []string{},
		Loaded:  make(map[string]int),
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Query returns the result of the named query.
func (r *Result) Query(name string) (QueryResult, bool) {
	for _, q := range r.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return QueryResult{}, false
}
