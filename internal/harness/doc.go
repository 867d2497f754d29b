// Package harness runs query scenarios against a throwaway SQLite store.
//
// A scenario compiles a CUE schema, loads flat-file fixtures, and runs a
// list of queries, checking the primary keys each one returns.
//
// # Scenario Format
//
//	name: open_orders
//	description: "Orders filter on their own columns and their items"
//	schema:
//	  - schema.cue
//	fixtures:
//	  - orders.txt
//	now: "2024-06-01 00:00:00"
//	queries:
//	  - name: open
//	    portal: Order
//	    where:
//	      eq: {status: open}
//	    expect:
//	      keys: ["1"]
//	  - name: big_items
//	    portal: Order
//	    where:
//	      gt: {items.quantity: 5}
//	    expect:
//	      count: 1
//
// Paths are relative to the scenario file. A key is the row's primary key
// values in their string form, joined by ", ". The where clause uses the
// predicate format of package queryir; an omitted clause matches every row.
//
// # Expectations
//
//   - keys: the primary keys returned, in order
//   - count: the number of rows returned
//   - error: a substring of the error binding or running the query
//
// # Deterministic Testing
//
// Every run opens a fresh database, names temp tables from a fixed sequence,
// and gives as-of attributes a fixed clock reading the scenario's now (or
// 2024-01-01 when absent), so the compiled SQL can be compared against golden
// files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/orders.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
