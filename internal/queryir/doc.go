// Package queryir is the portable where-clause IR used by scenario files
// and the query command.
//
// A predicate is written in YAML as a single-key map:
//
//	and:
//	  - eq: {status: open}
//	  - gt: {items.quantity: 5}
//	  - in: {id: [1, 2, 3]}
//	  - is_null: sku
//	  - or:
//	      - lte: {total: 10}
//	      - not_in: {status: [closed]}
//	  - as_of: {attribute: businessDate, at: "2024-01-01 00:00:00"}
//
// Attribute paths may cross relationships ("items.quantity"). Decode
// builds the tree, Validate checks its shape, and Bind resolves it against
// a portal into an operation.
package queryir
