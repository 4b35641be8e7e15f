// Package mmap provides read-only memory-mapped file access for zero-copy scans.
//
// # Overview
//
// The filtering engine maps a source file once per run and hands sub-slices
// of the mapping to every worker. Rows are parsed in place; nothing is copied
// until a matching row is written out.
//
// # Usage
//
//	m, err := mmap.Open("variants.tsv")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// # Read-only access
//
// Mappings are created with PROT_READ. Writing through a slice returned by
// Bytes or Slice faults the process, so the shared mapping cannot be mutated
// by any worker.
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with madvise(2) access hints
//   - Other platforms: the file is read into memory once; Advise is a no-op
//
// # Thread Safety
//
// A Mapping is safe for concurrent read access. Close is idempotent, but
// callers must ensure no goroutine touches Bytes after Close returns.
package mmap
