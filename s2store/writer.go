package s2store

import (
	"errors"
	"fmt"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/satgeo/go-s2store/blockfile"
)

var (
	ErrWriterClosed         = errors.New("s2store: writer operation after close")
	ErrRangesAlreadyGrouped = errors.New("s2store: ranges were already supplied to this writer")
	ErrRangesLeft           = errors.New("s2store: unexpected ranges left after the last prefix")
)

// Writer transforms a sorted, non-overlapping sequence of cell id ranges into
// the on-disk layout. Single pass, single owner: supply ranges once, then
// Close to emit header, padding and suffix table blocks.
type Writer struct {
	format FileFormat
	header *HeaderBlock
	bw     *blockfile.Writer

	// occupied prefixes only; the emission loop reuses one shared zero-entry
	// block writer for everything absent here, so memory is proportional to
	// occupied prefixes rather than 2^prefixBitCount.
	tables  map[uint32]*TableWriter
	empty   *TableWriter
	grouped bool
	closed  bool

	path string
	log  logger.Logger
}

// NewWriter opens the container at path for writing a store with the given
// format. Nothing reaches the final path until Close.
func NewWriter(path string, format FileFormat, opts ...WriterOption) (*Writer, error) {
	options := writerOptions{}
	for _, o := range opts {
		o(&options)
	}
	bw, err := blockfile.Create(path, Magic, Version)
	if err != nil {
		return nil, err
	}
	return &Writer{
		format: format,
		header: NewHeaderBlock(format),
		bw:     bw,
		tables: map[uint32]*TableWriter{},
		empty:  &TableWriter{},
		path:   path,
		log:    options.log,
	}, nil
}

func (w *Writer) debugf(format string, args ...any) {
	if w.log != nil {
		w.log.Debugf(format, args...)
	}
}

// AddRanges is AddSortedRanges over an in-memory slice.
func (w *Writer) AddRanges(ranges []Range) error {
	return w.AddSortedRanges(&sliceSource{ranges: ranges})
}

// AddSortedRanges consumes src and builds one suffix table per occupied
// prefix, visiting every prefix value in ascending order.
//
// Ranges crossing a prefix boundary are split at the boundary, with the tail
// requeued so every processed range sits under a single prefix. Within a
// prefix, ranges longer than the entry encoding allows are split into a chain
// of maximal-length entries plus a remainder. Out-of-order or overlapping
// input fails with ErrRangesOutOfOrder or ErrRangesOverlap.
func (w *Writer) AddSortedRanges(src RangeSource) error {
	if w.closed {
		return ErrWriterClosed
	}
	if w.grouped {
		return ErrRangesAlreadyGrouped
	}
	w.grouped = true

	f := w.format
	cursor := newPushbackCursor(src)
	maxRangeLength := f.MaxRangeLength()

	for prefix := uint32(0); ; prefix++ {
		var tw *TableWriter
		for {
			r, ok := cursor.next()
			if !ok {
				break
			}
			if err := f.CheckLevel(r.Start); err != nil {
				return err
			}
			if err := f.CheckLevel(r.End); err != nil {
				return err
			}
			if r.Start >= r.End {
				return fmt.Errorf("%w: [%#x, %#x)", ErrInvalidRange, uint64(r.Start), uint64(r.End))
			}

			startPrefix := f.PrefixValue(r.Start)
			if startPrefix > prefix {
				cursor.pushback(r)
				break
			}
			if startPrefix < prefix {
				return fmt.Errorf("%w: prefix %d seen after %d", ErrRangesOutOfOrder, startPrefix, prefix)
			}

			// The range's last cell decides whether it leaves this prefix. If
			// it does, keep the head and requeue the tail; later passes split
			// the tail again until every piece sits under one prefix.
			lastCell := f.rangeValue(r.End) - 1
			if uint32(lastCell>>f.suffixBitCount) != prefix {
				boundary := f.cellIDFromRangeValue(uint64(prefix+1) << f.suffixBitCount)
				cursor.pushback(Range{Start: boundary, End: r.End})
				r.End = boundary
			}

			if tw == nil {
				tw = NewTableWriter(f, prefix)
			}
			for f.RangeLength(r.Start, r.End) > maxRangeLength {
				mid := f.cellIDFromRangeValue(f.rangeValue(r.Start) + maxRangeLength)
				if err := tw.AddRange(Range{Start: r.Start, End: mid}); err != nil {
					return err
				}
				r.Start = mid
			}
			if err := tw.AddRange(r); err != nil {
				return err
			}
		}

		if tw != nil && tw.EntryCount() > 0 {
			w.tables[prefix] = tw
		}
		if prefix == f.MaxPrefixValue() {
			break
		}
	}

	if cursor.hasNext() {
		return ErrRangesLeft
	}
	w.debugf("s2store: grouped ranges into %d occupied prefixes", len(w.tables))
	return nil
}

// Close emits the header block, the padding blocks aligning suffix table
// block ids, and every suffix table in prefix order, then finalizes the
// container. The underlying container is always closed, even when an earlier
// emission step fails.
func (w *Writer) Close() (err error) {
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true

	defer func() {
		cerr := w.bw.Close()
		if err == nil {
			err = cerr
		}
	}()

	headerBytes, err := w.header.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err = w.bw.AddBlock(BlockTypeHeader, nil, headerBytes); err != nil {
		return err
	}
	for i := uint32(1); i < w.format.tableBlockIDOffset; i++ {
		if _, err = w.bw.AddBlock(BlockTypePadding, nil, nil); err != nil {
			return err
		}
	}
	for prefix := uint32(0); ; prefix++ {
		tw, ok := w.tables[prefix]
		if !ok {
			tw = w.empty
		}
		if _, err = w.bw.AddBlock(BlockTypeSuffixTable, tw.SharedData(), tw.Payload()); err != nil {
			return err
		}
		if prefix == w.format.MaxPrefixValue() {
			break
		}
	}
	w.debugf("s2store: wrote %s: %d suffix tables occupied", w.path, len(w.tables))
	return nil
}
