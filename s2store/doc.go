// Package s2store implements a read-optimized, append-once file format for
// disjoint sorted ranges of fixed-level S2 cell ids, answering "which range,
// if any, covers this cell id" in O(log n) without loading the whole file.
//
// # Layout
//
// A store is a blockfile container:
//
//	+----------------------+  block 0, type header
//	| header block         |  file format descriptor, fixed-width fields
//	+----------------------+  blocks 1..offset-1, type padding
//	| padding blocks       |  zero length, align suffix table block ids
//	+----------------------+  blocks offset..offset+maxPrefix, type suffix table
//	| suffix table blocks  |  one per prefix value, in ascending prefix order
//	+----------------------+
//
// Every cell id in a store shares one S2 level and decomposes into a prefix
// (high bits, selects a suffix table block) and a suffix (low bits, position
// within that table). The alignment above makes a table's block id exactly
// prefix + suffixTableBlockIdOffset, so point lookups resolve their block
// with no search.
//
// A suffix table block's payload is a sorted array of fixed-width entries,
// each packing (start suffix, range length). Its prefix value travels in the
// block's extra bytes, separate from the payload, so the reader can verify a
// table's identity and count its entries from directory metadata alone.
// Prefixes with no ranges are written as zero-length table blocks and are
// synthesized in memory at query time without touching the file.
//
// # Mutability and concurrency
//
// Files are written once and read-only thereafter; revision means writing a
// new file. Readers and writers carry no internal locks. Independent Reader
// instances over the same file are safe to run concurrently, optionally
// memory mapped.
package s2store
