package s2store

import (
	"errors"
	"fmt"
)

const (
	// Header block layout, block 0, extra bytes empty.
	//
	// .     | level | prefix bits | suffix bits | entry bits | table block id offset | allowed list |
	// bytes |   1   |      1      |      1      |     1      |           4           |       1      |

	headerLevelByte       = 0
	headerPrefixBitsByte  = 1
	headerSuffixBitsByte  = 2
	headerEntryBitsByte   = 3
	headerOffsetFirstByte = 4
	headerOffsetEnd       = headerOffsetFirstByte + 4
	headerAllowedByte     = headerOffsetEnd

	// HeaderBlockBytes is the fixed byte width of the header block payload.
	HeaderBlockBytes = headerAllowedByte + 1
)

var (
	ErrHeaderTruncated = errors.New("s2store: header block shorter than its fixed layout")
	ErrHeaderBadFlag   = errors.New("s2store: header allowed-list flag is not 0 or 1")
	ErrNotHeaderBlock  = errors.New("s2store: block 0 is not a header block")
	ErrNotASuffixTable = errors.New("s2store: block is not a suffix table block")
)

// HeaderVisitor is the traversal contract for the header block: Begin, then
// VisitFileFormat, then End, in that order.
type HeaderVisitor interface {
	Begin() error
	VisitFileFormat(format FileFormat) error
	End() error
}

// HeaderBlock is the decoded block 0 of a store.
type HeaderBlock struct {
	format FileFormat
}

func NewHeaderBlock(format FileFormat) *HeaderBlock {
	return &HeaderBlock{format: format}
}

func (h *HeaderBlock) FileFormat() FileFormat {
	return h.format
}

// MarshalBinary encodes the descriptor fields in the fixed header layout.
func (h *HeaderBlock) MarshalBinary() ([]byte, error) {
	f := h.format
	b := make([]byte, HeaderBlockBytes)
	b[headerLevelByte] = f.level
	b[headerPrefixBitsByte] = f.prefixBitCount
	b[headerSuffixBitsByte] = f.suffixBitCount
	b[headerEntryBitsByte] = f.entryBitCount
	writeU32BE(b[headerOffsetFirstByte:headerOffsetEnd], f.tableBlockIDOffset)
	if f.allowedList {
		b[headerAllowedByte] = 1
	}
	return b, nil
}

// UnmarshalBinary decodes and revalidates the descriptor from a header block
// payload.
func (h *HeaderBlock) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderBlockBytes {
		return fmt.Errorf("%w: %d bytes", ErrHeaderTruncated, len(b))
	}
	flag := b[headerAllowedByte]
	if flag > 1 {
		return fmt.Errorf("%w: %d", ErrHeaderBadFlag, flag)
	}
	format, err := NewFileFormat(
		b[headerLevelByte],
		b[headerPrefixBitsByte],
		b[headerSuffixBitsByte],
		b[headerEntryBitsByte],
		readU32BE(b[headerOffsetFirstByte:headerOffsetEnd]),
		flag == 1,
	)
	if err != nil {
		return err
	}
	h.format = format
	return nil
}

// Visit performs the minimal single pass over the header block. Once Begin
// succeeds, End runs exactly once regardless of visit errors.
func (h *HeaderBlock) Visit(v HeaderVisitor) (err error) {
	if err = v.Begin(); err != nil {
		return err
	}
	defer func() {
		eerr := v.End()
		if err == nil {
			err = eerr
		}
	}()
	return v.VisitFileFormat(h.format)
}
