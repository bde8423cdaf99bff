package s2store

import (
	"errors"
	"fmt"
)

const (
	// Magic identifies a SatS2 range store container.
	Magic = uint32(0x53415453) // "SATS"
	// Version is the current container version.
	Version = uint32(1)

	BlockTypeHeader      = uint32(1)
	BlockTypePadding     = uint32(2)
	BlockTypeSuffixTable = uint32(3)

	faceBitCount = 3
)

var (
	ErrBadLevel       = errors.New("s2store: s2 level out of range")
	ErrBitWidth       = errors.New("s2store: bit width invalid for level")
	ErrBadEntryWidth  = errors.New("s2store: suffix entry bit count invalid")
	ErrBadBlockOffset = errors.New("s2store: suffix table block id offset must be >= 1")
	ErrValueTooWide   = errors.New("s2store: value exceeds its allotted bit width")
	ErrWrongLevel     = errors.New("s2store: cell id level does not match the file level")
)

// FileFormat is the immutable descriptor for one store: the s2 level, the
// prefix/suffix split of a cell id, the fixed entry width of suffix tables,
// the block id alignment of suffix tables, and the list polarity.
//
// At level L a cell id carries 3+2L significant bits (face plus position);
// prefixBitCount+suffixBitCount must equal exactly that.
type FileFormat struct {
	level              uint8
	prefixBitCount     uint8
	suffixBitCount     uint8
	entryBitCount      uint8
	tableBlockIDOffset uint32
	allowedList        bool
}

// NewFileFormat validates the bit budget and returns the descriptor.
func NewFileFormat(level, prefixBitCount, suffixBitCount, entryBitCount uint8, tableBlockIDOffset uint32, allowedList bool) (FileFormat, error) {
	if level > MaxS2Level {
		return FileFormat{}, fmt.Errorf("%w: level=%d", ErrBadLevel, level)
	}
	cellIDBits := faceBitCount + 2*uint(level)
	if uint(prefixBitCount)+uint(suffixBitCount) != cellIDBits {
		return FileFormat{}, fmt.Errorf(
			"%w: prefix=%d + suffix=%d, level %d needs %d",
			ErrBitWidth, prefixBitCount, suffixBitCount, level, cellIDBits)
	}
	if prefixBitCount < faceBitCount || prefixBitCount > 32 {
		return FileFormat{}, fmt.Errorf("%w: prefix=%d", ErrBitWidth, prefixBitCount)
	}
	if suffixBitCount < 1 || suffixBitCount > 32 {
		return FileFormat{}, fmt.Errorf("%w: suffix=%d", ErrBitWidth, suffixBitCount)
	}
	if entryBitCount == 0 || entryBitCount > 64 || entryBitCount%8 != 0 {
		return FileFormat{}, fmt.Errorf("%w: entry=%d", ErrBadEntryWidth, entryBitCount)
	}
	if entryBitCount <= suffixBitCount {
		return FileFormat{}, fmt.Errorf(
			"%w: entry=%d leaves no length bits after suffix=%d",
			ErrBadEntryWidth, entryBitCount, suffixBitCount)
	}
	if tableBlockIDOffset < 1 {
		return FileFormat{}, ErrBadBlockOffset
	}
	return FileFormat{
		level:              level,
		prefixBitCount:     prefixBitCount,
		suffixBitCount:     suffixBitCount,
		entryBitCount:      entryBitCount,
		tableBlockIDOffset: tableBlockIDOffset,
		allowedList:        allowedList,
	}, nil
}

func (f FileFormat) Level() uint8               { return f.level }
func (f FileFormat) PrefixBitCount() uint8      { return f.prefixBitCount }
func (f FileFormat) SuffixBitCount() uint8      { return f.suffixBitCount }
func (f FileFormat) EntryBitCount() uint8       { return f.entryBitCount }
func (f FileFormat) TableBlockIDOffset() uint32 { return f.tableBlockIDOffset }
func (f FileFormat) IsAllowedList() bool        { return f.allowedList }

// MaxPrefixValue is the largest prefix value; the file carries exactly
// MaxPrefixValue+1 suffix table blocks.
func (f FileFormat) MaxPrefixValue() uint32 {
	return uint32(1)<<f.prefixBitCount - 1
}

// MaxSuffixValue is the largest suffix value representable in a table entry.
func (f FileFormat) MaxSuffixValue() uint32 {
	return uint32(1)<<f.suffixBitCount - 1
}

// EntryByteCount is the stored width of one suffix table entry.
func (f FileFormat) EntryByteCount() int {
	return int(f.entryBitCount) / 8
}

// rangeLengthBitCount is the entry bit budget left for the range length once
// the start suffix is packed in.
func (f FileFormat) rangeLengthBitCount() uint8 {
	return f.entryBitCount - f.suffixBitCount
}

// MaxRangeLength is the hard ceiling on the length a single table entry can
// encode; longer ranges are split by the writer.
func (f FileFormat) MaxRangeLength() uint64 {
	return uint64(1)<<f.rangeLengthBitCount() - 1
}

// trailingBitPos is the bit position of the cell id trailing-one marker for
// the file's level.
func (f FileFormat) trailingBitPos() uint {
	return 2 * uint(MaxS2Level-f.level)
}

// CellID packs prefixValue into the high bits and suffixValue below it,
// producing a well formed cell id at the file's level.
func (f FileFormat) CellID(prefixValue, suffixValue uint32) (CellID, error) {
	if prefixValue > f.MaxPrefixValue() {
		return 0, fmt.Errorf("%w: prefix value %d, max %d", ErrValueTooWide, prefixValue, f.MaxPrefixValue())
	}
	if suffixValue > f.MaxSuffixValue() {
		return 0, fmt.Errorf("%w: suffix value %d, max %d", ErrValueTooWide, suffixValue, f.MaxSuffixValue())
	}
	v := uint64(prefixValue)<<f.suffixBitCount | uint64(suffixValue)
	return f.cellIDFromRangeValue(v), nil
}

// PrefixValue extracts the table-selecting high bits of cellID.
func (f FileFormat) PrefixValue(cellID CellID) uint32 {
	return uint32(uint64(cellID) >> (64 - uint(f.prefixBitCount)))
}

// SuffixValue extracts the within-table low bits of cellID.
func (f FileFormat) SuffixValue(cellID CellID) uint32 {
	return uint32(uint64(cellID)>>(f.trailingBitPos()+1)) & f.MaxSuffixValue()
}

// CheckLevel fails with ErrWrongLevel unless cellID is a well formed cell id
// at the file's level.
func (f FileFormat) CheckLevel(cellID CellID) error {
	level, ok := cellID.Level()
	if !ok || level != f.level {
		return fmt.Errorf("%w: id=%#016x, file level %d", ErrWrongLevel, uint64(cellID), f.level)
	}
	return nil
}

// rangeValue is the prefix||suffix integer for cellID: the position of the
// cell in the linear order of all cells at the file's level.
func (f FileFormat) rangeValue(cellID CellID) uint64 {
	return uint64(cellID) >> (f.trailingBitPos() + 1)
}

// cellIDFromRangeValue is the inverse of rangeValue. v one past the last cell
// of the top prefix wraps; callers treat such ids as exclusive bounds only.
func (f FileFormat) cellIDFromRangeValue(v uint64) CellID {
	tb := f.trailingBitPos()
	return CellID(v<<(tb+1) | uint64(1)<<tb)
}

// RangeLength is the suffix-unit distance from startCellID to endCellID. It
// decides both entry splitting and the encoded entry length.
func (f FileFormat) RangeLength(startCellID, endCellID CellID) uint64 {
	return f.rangeValue(endCellID) - f.rangeValue(startCellID)
}
