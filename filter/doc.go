// Package filter implements row predicates for the extraction engine.
//
// Built-in predicates are ColumnFilter values created from a closed set of
// conditions (equality, substring, regular expression, numeric comparison,
// range, set membership and emptiness). Combined joins filters with AND
// semantics, and Func or any custom Filter implementation serves as the open
// extension point for user-defined predicates.
//
// Filters are immutable after construction and safe for concurrent use:
// regular expressions and value sets are compiled once by New and then shared
// by every worker.
//
// A cell that cannot be interpreted, such as a non-numeric value under a
// numeric condition or a missing column in a short row, never fails a scan.
// Check reports it as Malformed, which the engine counts and treats as a
// non-match.
package filter
