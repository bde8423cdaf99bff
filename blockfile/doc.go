// Package blockfile implements a generic append-once container of typed,
// length-delimited blocks.
//
// A container is a single file laid out as:
//
//	+----------------------+  fixed header (magic, version, block count, directory size)
//	| file header          |
//	+----------------------+  one record per block, in block-id order
//	| block directory      |
//	+----------------------+  raw payloads, concatenated in block-id order
//	| block payloads       |
//	+----------------------+
//
// Block ids are assignment order: the i'th block added by a Writer is block i.
// The directory is read once at open, after which any block payload can be
// located in O(1) without touching other blocks.
//
// Each directory record carries a small extraBytes field alongside the payload
// offset. Formats layered on this package use it to keep per-block shared
// metadata separate from the payload so the two can be parsed independently.
//
// All scalar fields are big-endian. Magic and version are supplied by the
// layered format; this package only checks that the values on disk match the
// values the caller expects.
package blockfile
