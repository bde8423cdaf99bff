package blockfile

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

type readerOptions struct {
	useMmap bool
}

type ReaderOption func(*readerOptions)

// WithMmap maps the whole container read-only and serves block payloads as
// sub-slices of the mapping rather than copying them out of the file.
func WithMmap() ReaderOption {
	return func(o *readerOptions) {
		o.useMmap = true
	}
}

// Reader provides random access to the blocks of one container file.
//
// All state is established at Open and read-only afterwards, so independent
// Reader instances over the same file are safe to use from separate
// goroutines. A single instance provides no internal synchronization.
type Reader struct {
	f      *os.File
	mapped []byte
	size   int64
	infos  []BlockInfo
	closed bool
}

// Open opens the container at path and materializes its block directory.
//
// magic and version are the values the layered format expects at the head of
// the file; a mismatch fails with ErrBadMagic or ErrBadVersion.
func Open(path string, magic, version uint32, opts ...ReaderOption) (*Reader, error) {
	options := readerOptions{}
	for _, o := range opts {
		o(&options)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := &Reader{f: f}
	if err = r.init(magic, version, options); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) init(magic, version uint32, options readerOptions) error {
	fi, err := r.f.Stat()
	if err != nil {
		return err
	}
	r.size = fi.Size()
	if r.size < HeaderBytes {
		return fmt.Errorf("%w: size=%d", ErrTruncated, r.size)
	}

	if options.useMmap {
		m, err := unix.Mmap(int(r.f.Fd()), 0, int(r.size), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			return fmt.Errorf("blockfile: mmap failed: %w", err)
		}
		r.mapped = m
	}

	header := make([]byte, HeaderBytes)
	if _, err = r.f.ReadAt(header, 0); err != nil {
		return err
	}

	if got := readU32BE(header[headerMagicFirstByte:headerMagicEnd]); got != magic {
		return fmt.Errorf("%w: want=%08x, got=%08x", ErrBadMagic, magic, got)
	}
	if got := readU32BE(header[headerVersionFirstByte:headerVersionEnd]); got != version {
		return fmt.Errorf("%w: want=%d, got=%d", ErrBadVersion, version, got)
	}

	blockCount := readU32BE(header[headerCountFirstByte:headerCountEnd])
	dirSize := readU64BE(header[headerDirSizeFirstByte:headerDirSizeEnd])
	// Subtraction form so an absurd dirSize cannot wrap the comparison; size
	// is at least HeaderBytes here.
	if dirSize > uint64(r.size)-HeaderBytes {
		return fmt.Errorf("%w: directory size %d exceeds file", ErrTruncated, dirSize)
	}

	dir := make([]byte, dirSize)
	if _, err = r.f.ReadAt(dir, HeaderBytes); err != nil {
		return err
	}

	r.infos = make([]BlockInfo, 0, blockCount)
	for i := 0; i < int(blockCount); i++ {
		if len(dir) < DirRecordFixedBytes {
			return fmt.Errorf("%w: directory record %d", ErrTruncated, i)
		}
		info := BlockInfo{
			ID:         i,
			Type:       readU32BE(dir[dirTypeFirstByte:dirTypeEnd]),
			DataOffset: int64(readU64BE(dir[dirOffsetFirstByte:dirOffsetEnd])),
			DataLen:    readU64BE(dir[dirDataLenFirstByte:dirDataLenEnd]),
		}
		extraLen := readU32BE(dir[dirExtraLenFirstByte:dirExtraLenEnd])
		dir = dir[DirRecordFixedBytes:]
		if uint64(len(dir)) < uint64(extraLen) {
			return fmt.Errorf("%w: directory record %d extra bytes", ErrTruncated, i)
		}
		info.ExtraBytes = dir[:extraLen:extraLen]
		dir = dir[extraLen:]

		if info.DataOffset < 0 || info.DataOffset > r.size ||
			info.DataLen > uint64(r.size-info.DataOffset) {
			return fmt.Errorf("%w: block %d payload out of bounds", ErrTruncated, i)
		}
		r.infos = append(r.infos, info)
	}
	return nil
}

// BlockCount returns the number of blocks in the directory.
func (r *Reader) BlockCount() (int, error) {
	if r.closed {
		return 0, ErrReaderClosed
	}
	return len(r.infos), nil
}

// BlockInfo returns the directory record for block id.
func (r *Reader) BlockInfo(id int) (BlockInfo, error) {
	if r.closed {
		return BlockInfo{}, ErrReaderClosed
	}
	if id < 0 || id >= len(r.infos) {
		return BlockInfo{}, fmt.Errorf("%w: id=%d, blocks=%d", ErrBlockOutOfRange, id, len(r.infos))
	}
	return r.infos[id], nil
}

// Block resolves the payload for block id.
//
// Memory mapped readers return a view into the mapping; otherwise the payload
// is read into a fresh buffer.
func (r *Reader) Block(id int) (Block, error) {
	info, err := r.BlockInfo(id)
	if err != nil {
		return Block{}, err
	}

	if r.mapped != nil {
		data := r.mapped[info.DataOffset : uint64(info.DataOffset)+info.DataLen]
		return Block{Info: info, Data: data}, nil
	}

	data := make([]byte, info.DataLen)
	if _, err = r.f.ReadAt(data, info.DataOffset); err != nil {
		if err == io.EOF {
			err = fmt.Errorf("%w: block %d payload", ErrTruncated, id)
		}
		return Block{}, err
	}
	return Block{Info: info, Data: data}, nil
}

// Close releases the mapping (if any) and the underlying file. It is safe to
// call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if r.mapped != nil {
		if err := unix.Munmap(r.mapped); err != nil {
			errs = append(errs, err)
		}
		r.mapped = nil
	}
	if err := r.f.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
