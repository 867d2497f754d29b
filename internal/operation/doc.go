// Package operation defines the predicate AST produced by attributes.
//
// Every comparison method on every attribute returns an Operation. The query
// layer (internal/querysql) compiles Operations to parameterized SQL, and
// Matches evaluates them against in-memory owners.
//
// ARCHITECTURE:
//
//	[attribute.Eq / In / JoinEq ...] → [Operation AST] → [querysql.Compiler]
//	                                                    → [Matches (in-memory)]
//
// SEALED INTERFACE:
//
// Operation is sealed with a marker method. Only types in this package
// implement it, so backends can switch exhaustively:
//
//	switch op := op.(type) {
//	case All, None:
//	case Equals:
//	case Mapped:
//	    // push op.Mapper, compile op.Operation, pop
//	}
//
// DEGENERATE SETS:
//
// Constructors normalize degenerate inputs so equal predicates have equal
// shapes regardless of how they were built:
//
//	NewIn(a, ∅)      → None
//	NewIn(a, {v})    → Equals{a, v}
//	NewNotIn(a, ∅)   → All
//	NewNotIn(a, {v}) → NotEquals{a, v}
//	NewEquals(a, nil) → IsNull{a}
//
// MAPPERS:
//
// A Mapper is an immutable, ordered sequence of Join hops describing how to
// reach a related portal from the root portal. Mapped wraps an inner
// Operation with the Mapper that scopes it. Chained relationships are
// represented by concatenating hops, never by nesting Mapper values.
package operation
