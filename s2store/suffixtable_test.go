package s2store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/satgeo/go-s2store/blockfile"
)

func TestTableWriterRoundTripAndSearch(t *testing.T) {
	f := mustFormat(t, 12, 11, 16, 32, 1, false)
	const prefix = uint32(0b100_11111111)

	w := NewTableWriter(f, prefix)
	ranges := []Range{
		{Start: mustCellID(t, f, prefix, 1000), End: mustCellID(t, f, prefix, 2000)},
		{Start: mustCellID(t, f, prefix, 2000), End: mustCellID(t, f, prefix, 3000)},
		{Start: mustCellID(t, f, prefix, 40000), End: mustCellID(t, f, prefix, 40001)},
	}
	for _, r := range ranges {
		require.NoError(t, w.AddRange(r))
	}
	require.Equal(t, 3, w.EntryCount())

	table, err := NewSuffixTable(f, w.SharedData(), w.Payload())
	require.NoError(t, err)
	require.Equal(t, prefix, table.Prefix())
	require.Equal(t, 3, table.EntryCount())

	require.Equal(t, Entry{StartSuffix: 1000, Length: 1000}, table.Entry(0))
	require.Equal(t, Entry{StartSuffix: 40000, Length: 1}, table.Entry(2))
	require.Equal(t, ranges[1], table.EntryRange(table.Entry(1)))

	tests := []struct {
		name   string
		suffix uint32
		want   Range
		hit    bool
	}{
		{name: "inside first", suffix: 1500, want: ranges[0], hit: true},
		{name: "first cell of first", suffix: 1000, want: ranges[0], hit: true},
		{name: "adjacent ranges pick the second", suffix: 2000, want: ranges[1], hit: true},
		{name: "last cell of second", suffix: 2999, want: ranges[1], hit: true},
		{name: "single cell entry", suffix: 40000, want: ranges[2], hit: true},
		{name: "before all entries", suffix: 999, hit: false},
		{name: "between entries", suffix: 3000, hit: false},
		{name: "after all entries", suffix: 50000, hit: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := table.FindEntryByCellID(mustCellID(t, f, prefix, tt.suffix))
			require.Equal(t, tt.hit, ok)
			if ok {
				require.Equal(t, tt.want, table.EntryRange(e))
			}
		})
	}

	// A cell id under another prefix is never covered by this table.
	_, ok := table.FindEntryByCellID(mustCellID(t, f, prefix+1, 1500))
	require.False(t, ok)
}

func TestTableWriterRejectsBadRanges(t *testing.T) {
	f := mustFormat(t, 12, 11, 16, 32, 1, false)
	const prefix = uint32(100)

	w := NewTableWriter(f, prefix)
	require.NoError(t, w.AddRange(Range{
		Start: mustCellID(t, f, prefix, 1000),
		End:   mustCellID(t, f, prefix, 2000),
	}))

	// Overlapping the previous entry.
	err := w.AddRange(Range{
		Start: mustCellID(t, f, prefix, 1999),
		End:   mustCellID(t, f, prefix, 2500),
	})
	require.ErrorIs(t, err, ErrRangesOverlap)

	// Out of order.
	err = w.AddRange(Range{
		Start: mustCellID(t, f, prefix, 500),
		End:   mustCellID(t, f, prefix, 600),
	})
	require.ErrorIs(t, err, ErrRangesOutOfOrder)

	// Start at or after end.
	err = w.AddRange(Range{
		Start: mustCellID(t, f, prefix, 5000),
		End:   mustCellID(t, f, prefix, 5000),
	})
	require.ErrorIs(t, err, ErrInvalidRange)

	// Wrong prefix for this table.
	err = w.AddRange(Range{
		Start: mustCellID(t, f, prefix+1, 0),
		End:   mustCellID(t, f, prefix+1, 10),
	})
	require.ErrorIs(t, err, ErrRangeCrossesTable)

	// Crossing out of the prefix.
	err = w.AddRange(Range{
		Start: mustCellID(t, f, prefix, 60000),
		End:   mustCellID(t, f, prefix+1, 10),
	})
	require.ErrorIs(t, err, ErrRangeCrossesTable)
}

func TestTableWriterRejectsOverlongRange(t *testing.T) {
	// 8-bit entries over a 4-bit suffix leave 4 length bits: max length 15.
	f := mustFormat(t, 3, 5, 4, 8, 1, false)

	w := NewTableWriter(f, 4)
	err := w.AddRange(Range{
		Start: mustCellID(t, f, 4, 0),
		End:   mustCellID(t, f, 5, 0),
	})
	require.ErrorIs(t, err, ErrRangeTooLong)

	require.NoError(t, w.AddRange(Range{
		Start: mustCellID(t, f, 4, 0),
		End:   mustCellID(t, f, 4, 15),
	}))
}

func TestEmptySuffixTable(t *testing.T) {
	f := mustFormat(t, 12, 11, 16, 32, 1, false)

	table := EmptySuffixTable(f, 42)
	require.Equal(t, uint32(42), table.Prefix())
	require.Equal(t, 0, table.EntryCount())

	_, ok := table.FindEntryByCellID(mustCellID(t, f, 42, 0))
	require.False(t, ok)
}

func TestNewSuffixTableValidation(t *testing.T) {
	f := mustFormat(t, 12, 11, 16, 32, 1, false)

	_, err := NewSuffixTable(f, []byte{1, 2}, nil)
	require.ErrorIs(t, err, ErrSharedDataTruncated)

	shared := make([]byte, SharedDataBytes)
	_, err = NewSuffixTable(f, shared, make([]byte, 7))
	require.ErrorIs(t, err, ErrTablePayloadSize)
}

func TestSuffixTableExtraInfo(t *testing.T) {
	f := mustFormat(t, 12, 11, 16, 32, 1, false)

	info, err := NewSuffixTableExtraInfo(f, 9, blockfile.BlockInfo{
		ID: 10, Type: BlockTypeSuffixTable, DataLen: 12,
	})
	require.NoError(t, err)
	require.Equal(t, uint32(9), info.Prefix)
	require.Equal(t, 10, info.BlockID)
	require.Equal(t, uint32(3), info.EntryCount)
	require.False(t, info.IsEmpty())

	info, err = NewSuffixTableExtraInfo(f, 9, blockfile.BlockInfo{
		ID: 10, Type: BlockTypeSuffixTable, DataLen: 0,
	})
	require.NoError(t, err)
	require.True(t, info.IsEmpty())

	_, err = NewSuffixTableExtraInfo(f, 9, blockfile.BlockInfo{
		ID: 10, Type: BlockTypePadding, DataLen: 0,
	})
	require.ErrorIs(t, err, ErrNotASuffixTable)

	_, err = NewSuffixTableExtraInfo(f, 9, blockfile.BlockInfo{
		ID: 10, Type: BlockTypeSuffixTable, DataLen: 13,
	})
	require.ErrorIs(t, err, ErrTablePayloadSize)
}
