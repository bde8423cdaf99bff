package s2store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/satgeo/go-s2store/blockfile"
)

const (
	// Suffix table shared data layout (block extra bytes)
	//
	// .     | table prefix |
	// bytes |      4       |

	sharedPrefixFirstByte = 0
	sharedPrefixEnd       = sharedPrefixFirstByte + 4

	// SharedDataBytes is the byte width of a populated table's shared data.
	SharedDataBytes = sharedPrefixEnd
)

var (
	ErrSharedDataTruncated = errors.New("s2store: suffix table shared data shorter than its fixed layout")
	ErrTablePayloadSize    = errors.New("s2store: suffix table payload is not a whole number of entries")
	ErrPrefixMismatch      = errors.New("s2store: suffix table prefix does not match its block position")
	ErrInvalidRange        = errors.New("s2store: range start must precede range end")
	ErrRangeCrossesTable   = errors.New("s2store: range crosses the table's prefix boundary")
	ErrRangeTooLong        = errors.New("s2store: range length exceeds the entry encoding")
	ErrRangesOutOfOrder    = errors.New("s2store: ranges supplied out of order")
	ErrRangesOverlap       = errors.New("s2store: ranges overlap")
)

// Entry is one decoded suffix table record: a range of Length cells starting
// at StartSuffix, all under the table's prefix.
type Entry struct {
	StartSuffix uint32
	Length      uint64
}

// SuffixTable is a read-only view over the sorted entry array for one prefix.
//
// The payload is retained by reference and decoded per access, so a table
// over a memory mapped block reads straight from the mapping.
type SuffixTable struct {
	format  FileFormat
	prefix  uint32
	payload []byte
	count   int
}

// NewSuffixTable parses a table from a block's shared data and payload.
func NewSuffixTable(format FileFormat, sharedData, payload []byte) (*SuffixTable, error) {
	if len(sharedData) < SharedDataBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrSharedDataTruncated, len(sharedData))
	}
	entryBytes := format.EntryByteCount()
	if len(payload)%entryBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes, entry width %d", ErrTablePayloadSize, len(payload), entryBytes)
	}
	return &SuffixTable{
		format:  format,
		prefix:  readU32BE(sharedData[sharedPrefixFirstByte:sharedPrefixEnd]),
		payload: payload,
		count:   len(payload) / entryBytes,
	}, nil
}

// EmptySuffixTable synthesizes a zero-entry table for prefix without touching
// the file.
func EmptySuffixTable(format FileFormat, prefix uint32) *SuffixTable {
	return &SuffixTable{format: format, prefix: prefix}
}

func (t *SuffixTable) Prefix() uint32 {
	return t.prefix
}

func (t *SuffixTable) EntryCount() int {
	return t.count
}

// Entry decodes record i. i must be in [0, EntryCount).
func (t *SuffixTable) Entry(i int) Entry {
	w := t.format.EntryByteCount()
	v := readUintBE(t.payload[i*w : (i+1)*w])
	return Entry{
		StartSuffix: uint32(v >> t.format.rangeLengthBitCount()),
		Length:      v & t.format.MaxRangeLength(),
	}
}

// EntryRange recombines e with the table's prefix into a cell id range.
func (t *SuffixTable) EntryRange(e Entry) Range {
	start := uint64(t.prefix)<<t.format.suffixBitCount | uint64(e.StartSuffix)
	return Range{
		Start: t.format.cellIDFromRangeValue(start),
		End:   t.format.cellIDFromRangeValue(start + e.Length),
	}
}

// FindEntryByCellID binary searches for the entry whose [start, end) interval
// contains cellID. ok=false indicates no entry covers it.
func (t *SuffixTable) FindEntryByCellID(cellID CellID) (Entry, bool) {
	if t.format.PrefixValue(cellID) != t.prefix {
		return Entry{}, false
	}
	qs := uint64(t.format.SuffixValue(cellID))

	// First entry strictly above the query suffix; the candidate is the one
	// before it.
	i := sort.Search(t.count, func(i int) bool {
		return uint64(t.Entry(i).StartSuffix) > qs
	})
	if i == 0 {
		return Entry{}, false
	}
	e := t.Entry(i - 1)
	if qs >= uint64(e.StartSuffix)+e.Length {
		return Entry{}, false
	}
	return e, true
}

// SuffixTableExtraInfo is the per-prefix metadata the reader precomputes for
// every prefix at open time, derived from the block directory alone: the
// entry count falls out of the payload byte length and the fixed entry width,
// with no payload parse.
type SuffixTableExtraInfo struct {
	Prefix     uint32
	BlockID    int
	EntryCount uint32
}

// NewSuffixTableExtraInfo derives the metadata for prefix from its directory
// record.
func NewSuffixTableExtraInfo(format FileFormat, prefix uint32, info blockfile.BlockInfo) (SuffixTableExtraInfo, error) {
	if info.Type != BlockTypeSuffixTable {
		return SuffixTableExtraInfo{}, fmt.Errorf(
			"%w: block %d has type %d", ErrNotASuffixTable, info.ID, info.Type)
	}
	entryBytes := uint64(format.EntryByteCount())
	if info.DataLen%entryBytes != 0 {
		return SuffixTableExtraInfo{}, fmt.Errorf(
			"%w: block %d has %d bytes, entry width %d", ErrTablePayloadSize, info.ID, info.DataLen, entryBytes)
	}
	return SuffixTableExtraInfo{
		Prefix:     prefix,
		BlockID:    info.ID,
		EntryCount: uint32(info.DataLen / entryBytes),
	}, nil
}

func (i SuffixTableExtraInfo) IsEmpty() bool {
	return i.EntryCount == 0
}

// TableWriter accumulates the sorted entries for one prefix. Ranges must be
// supplied in ascending, non-overlapping order and must already fit the
// table: single prefix, length within the entry encoding.
type TableWriter struct {
	format  FileFormat
	prefix  uint32
	payload []byte
	count   int

	lastStart uint64
	lastEnd   uint64
}

func NewTableWriter(format FileFormat, prefix uint32) *TableWriter {
	return &TableWriter{format: format, prefix: prefix}
}

// AddRange appends one entry for r.
func (w *TableWriter) AddRange(r Range) error {
	f := w.format
	if err := f.CheckLevel(r.Start); err != nil {
		return err
	}
	if r.Start >= r.End {
		return fmt.Errorf("%w: [%#x, %#x)", ErrInvalidRange, uint64(r.Start), uint64(r.End))
	}
	if f.PrefixValue(r.Start) != w.prefix {
		return fmt.Errorf("%w: start prefix %d, table prefix %d",
			ErrRangeCrossesTable, f.PrefixValue(r.Start), w.prefix)
	}
	lastCell := f.rangeValue(r.End) - 1
	if uint32(lastCell>>f.suffixBitCount) != w.prefix {
		return fmt.Errorf("%w: end prefix %d, table prefix %d",
			ErrRangeCrossesTable, uint32(lastCell>>f.suffixBitCount), w.prefix)
	}

	length := f.RangeLength(r.Start, r.End)
	if length > f.MaxRangeLength() {
		return fmt.Errorf("%w: length %d, max %d", ErrRangeTooLong, length, f.MaxRangeLength())
	}

	startSuffix := uint64(f.SuffixValue(r.Start))
	if w.count > 0 {
		if startSuffix < w.lastStart {
			return fmt.Errorf("%w: start suffix %d after %d", ErrRangesOutOfOrder, startSuffix, w.lastStart)
		}
		if startSuffix < w.lastEnd {
			return fmt.Errorf("%w: start suffix %d inside previous entry", ErrRangesOverlap, startSuffix)
		}
	}
	w.lastStart = startSuffix
	w.lastEnd = startSuffix + length

	entry := make([]byte, f.EntryByteCount())
	writeUintBE(entry, startSuffix<<f.rangeLengthBitCount()|length)
	w.payload = append(w.payload, entry...)
	w.count++
	return nil
}

func (w *TableWriter) EntryCount() int {
	return w.count
}

// SharedData returns the table's shared data for block emission. A zero-entry
// table has none; its block is written with empty extra bytes and payload.
func (w *TableWriter) SharedData() []byte {
	if w.count == 0 {
		return nil
	}
	b := make([]byte, SharedDataBytes)
	writeU32BE(b[sharedPrefixFirstByte:sharedPrefixEnd], w.prefix)
	return b
}

func (w *TableWriter) Payload() []byte {
	return w.payload
}
