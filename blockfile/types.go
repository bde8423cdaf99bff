package blockfile

import "errors"

const (
	// File header layout
	//
	// .     | magic | version | block count | directory size |
	// bytes |   4   |    4    |      4      |        8       |

	headerMagicFirstByte   = 0
	headerMagicEnd         = headerMagicFirstByte + 4
	headerVersionFirstByte = headerMagicEnd
	headerVersionEnd       = headerVersionFirstByte + 4
	headerCountFirstByte   = headerVersionEnd
	headerCountEnd         = headerCountFirstByte + 4
	headerDirSizeFirstByte = headerCountEnd
	headerDirSizeEnd       = headerDirSizeFirstByte + 8

	// HeaderBytes is the fixed byte width of the file header.
	HeaderBytes = headerDirSizeEnd

	// Directory record layout (fixed part, followed by extraLen extra bytes)
	//
	// .     | type | extra len | data offset | data len |
	// bytes |  4   |     4     |      8      |     8    |

	dirTypeFirstByte     = 0
	dirTypeEnd           = dirTypeFirstByte + 4
	dirExtraLenFirstByte = dirTypeEnd
	dirExtraLenEnd       = dirExtraLenFirstByte + 4
	dirOffsetFirstByte   = dirExtraLenEnd
	dirOffsetEnd         = dirOffsetFirstByte + 8
	dirDataLenFirstByte  = dirOffsetEnd
	dirDataLenEnd        = dirDataLenFirstByte + 8

	// DirRecordFixedBytes is the byte width of a directory record excluding
	// its trailing extra bytes.
	DirRecordFixedBytes = dirDataLenEnd
)

var (
	ErrBadMagic        = errors.New("blockfile: magic mismatch")
	ErrBadVersion      = errors.New("blockfile: version mismatch")
	ErrTruncated       = errors.New("blockfile: file shorter than its declared layout")
	ErrBlockOutOfRange = errors.New("blockfile: block id exceeds directory size")
	ErrWriterClosed    = errors.New("blockfile: writer operation after close")
	ErrReaderClosed    = errors.New("blockfile: reader operation after close")
)

// BlockInfo is one directory record: everything known about a block without
// reading its payload.
type BlockInfo struct {
	ID         int
	Type       uint32
	ExtraBytes []byte
	DataOffset int64
	DataLen    uint64
}

// Block pairs a directory record with its resolved payload bytes.
//
// When the container is memory mapped, Data aliases the mapping and must not
// be retained past Reader.Close or written through.
type Block struct {
	Info BlockInfo
	Data []byte
}
