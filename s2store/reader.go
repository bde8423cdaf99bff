package s2store

import (
	"errors"
	"fmt"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/satgeo/go-s2store/blockfile"
)

var (
	ErrReaderClosed  = errors.New("s2store: reader operation after close")
	ErrMissingTables = errors.New("s2store: directory holds fewer suffix table blocks than the format requires")
)

// FileVisitor receives a single ordered pass over a store: Begin, the file
// format, every prefix's extra info in ascending order, then every prefix's
// suffix table in ascending order, then End. Once Begin succeeds, End runs
// exactly once even when a later visit fails.
type FileVisitor interface {
	HeaderVisitor
	VisitSuffixTableExtraInfo(info SuffixTableExtraInfo) error
	VisitSuffixTable(table *SuffixTable) error
}

// Reader answers point queries against one store file.
//
// Open materializes the block directory and per-prefix extra info only;
// suffix table payloads are resolved lazily per query. All state is read-only
// after Open.
type Reader struct {
	bf     *blockfile.Reader
	format FileFormat

	// extra info for every prefix value, in prefix order, derived from block
	// directory metadata without deserializing any table payload.
	infos []SuffixTableExtraInfo

	log    logger.Logger
	closed bool
}

// Open opens a store produced by Writer and validates its header.
func Open(path string, opts ...ReaderOption) (*Reader, error) {
	options := readerOptions{}
	for _, o := range opts {
		o(&options)
	}
	var bfOpts []blockfile.ReaderOption
	if options.useMmap {
		bfOpts = append(bfOpts, blockfile.WithMmap())
	}
	bf, err := blockfile.Open(path, Magic, Version, bfOpts...)
	if err != nil {
		return nil, err
	}

	r := &Reader{bf: bf, log: options.log}
	if err = r.init(); err != nil {
		_ = bf.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) init() error {
	info, err := r.bf.BlockInfo(0)
	if err != nil {
		return fmt.Errorf("%w: empty block directory", ErrNotHeaderBlock)
	}
	if info.Type != BlockTypeHeader {
		return fmt.Errorf("%w: block 0 has type %d", ErrNotHeaderBlock, info.Type)
	}
	b, err := r.bf.Block(0)
	if err != nil {
		return err
	}
	var header HeaderBlock
	if err = header.UnmarshalBinary(b.Data); err != nil {
		return err
	}
	r.format = header.FileFormat()

	maxPrefix := r.format.MaxPrefixValue()
	r.infos = make([]SuffixTableExtraInfo, 0, uint64(maxPrefix)+1)
	for prefix := uint32(0); ; prefix++ {
		blockID := int(uint64(prefix) + uint64(r.format.tableBlockIDOffset))
		blockInfo, err := r.bf.BlockInfo(blockID)
		if err != nil {
			if errors.Is(err, blockfile.ErrBlockOutOfRange) {
				return fmt.Errorf("%w: prefix %d has no block", ErrMissingTables, prefix)
			}
			return err
		}
		extra, err := NewSuffixTableExtraInfo(r.format, prefix, blockInfo)
		if err != nil {
			return err
		}
		r.infos = append(r.infos, extra)
		if prefix == maxPrefix {
			break
		}
	}
	return nil
}

// suffixTable resolves the table for prefix, synthesizing a zero-entry table
// without touching the file when the extra info already proves it empty.
func (r *Reader) suffixTable(prefix uint32) (*SuffixTable, error) {
	info := r.infos[prefix]
	if info.IsEmpty() {
		return EmptySuffixTable(r.format, prefix), nil
	}
	b, err := r.bf.Block(info.BlockID)
	if err != nil {
		return nil, err
	}
	t, err := NewSuffixTable(r.format, b.Info.ExtraBytes, b.Data)
	if err != nil {
		return nil, err
	}
	if t.Prefix() != prefix {
		return nil, fmt.Errorf("%w: embedded prefix %d, block position implies %d",
			ErrPrefixMismatch, t.Prefix(), prefix)
	}
	return t, nil
}

// FindEntryByCellID returns the stored range covering cellID.
//
// ok=false with a nil error indicates no range covers it. A range split at a
// prefix boundary during writing is returned as the stored sub-range covering
// the query's own prefix, not the pre-split input.
func (r *Reader) FindEntryByCellID(cellID CellID) (Range, bool, error) {
	if r.closed {
		return Range{}, false, ErrReaderClosed
	}
	if err := r.format.CheckLevel(cellID); err != nil {
		return Range{}, false, err
	}
	t, err := r.suffixTable(r.format.PrefixValue(cellID))
	if err != nil {
		return Range{}, false, err
	}
	e, ok := t.FindEntryByCellID(cellID)
	if !ok {
		return Range{}, false, nil
	}
	return t.EntryRange(e), true, nil
}

// FileFormat returns the store's descriptor.
func (r *Reader) FileFormat() (FileFormat, error) {
	if r.closed {
		return FileFormat{}, ErrReaderClosed
	}
	return r.format, nil
}

func (r *Reader) IsAllowedList() (bool, error) {
	if r.closed {
		return false, ErrReaderClosed
	}
	return r.format.allowedList, nil
}

func (r *Reader) S2Level() (uint8, error) {
	if r.closed {
		return 0, ErrReaderClosed
	}
	return r.format.level, nil
}

// SuffixTableExtraInfo returns the precomputed metadata for prefix.
func (r *Reader) SuffixTableExtraInfo(prefix uint32) (SuffixTableExtraInfo, error) {
	if r.closed {
		return SuffixTableExtraInfo{}, ErrReaderClosed
	}
	if prefix > r.format.MaxPrefixValue() {
		return SuffixTableExtraInfo{}, fmt.Errorf(
			"%w: prefix value %d, max %d", ErrValueTooWide, prefix, r.format.MaxPrefixValue())
	}
	return r.infos[prefix], nil
}

// Visit walks the whole store in block order.
func (r *Reader) Visit(v FileVisitor) (err error) {
	if r.closed {
		return ErrReaderClosed
	}
	if err = v.Begin(); err != nil {
		return err
	}
	defer func() {
		eerr := v.End()
		if err == nil {
			err = eerr
		}
	}()

	if err = v.VisitFileFormat(r.format); err != nil {
		return err
	}
	for i := range r.infos {
		if err = v.VisitSuffixTableExtraInfo(r.infos[i]); err != nil {
			return err
		}
	}
	for i := range r.infos {
		var t *SuffixTable
		if t, err = r.suffixTable(uint32(i)); err != nil {
			return fmt.Errorf("s2store: visiting suffix table %d: %w", i, err)
		}
		if err = v.VisitSuffixTable(t); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying container. It is safe to call more than
// once; queries after Close fail with ErrReaderClosed.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.log != nil {
		r.log.Debugf("s2store: closing reader, level %d, %d prefixes", r.format.level, len(r.infos))
	}
	return r.bf.Close()
}
