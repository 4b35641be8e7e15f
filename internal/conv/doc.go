// Package conv provides checked integer conversions for lengths and offsets
// read from index files.
package conv
