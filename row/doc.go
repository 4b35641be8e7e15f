// Package row provides zero-copy views over delimited (CSV/TSV) rows.
//
// A Row references bytes owned by someone else, usually a read-only memory
// mapping, and records where each field starts and ends. Parsing a row never
// copies field data; callers that need to keep a value beyond the lifetime of
// the backing buffer must copy it themselves.
//
// Quoting follows the common CSV convention: a field that starts with a double
// quote runs to the matching closing quote and may contain the delimiter.
// Field returns the bytes between the quotes; doubled quotes inside a quoted
// field are left as they appear in the input. Rows end at '\n' and a trailing
// '\r' is dropped. Quoted fields spanning several lines are not supported.
package row
