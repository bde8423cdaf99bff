package blockfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Writer assembles a container file block by block.
//
// Payloads are streamed to a temporary file beside the destination while the
// directory accumulates in memory; Close writes header and directory to the
// final path, copies the payload stream after them, and removes the temporary
// file. A writer is single-use: any operation after Close fails with
// ErrWriterClosed. On error the temporary file may be left behind.
type Writer struct {
	path    string
	magic   uint32
	version uint32

	tmp     *os.File
	infos   []BlockInfo
	payload uint64
	closed  bool
}

// Create starts a new container at path.
func Create(path string, magic, version uint32) (*Writer, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".blocks-*")
	if err != nil {
		return nil, err
	}
	return &Writer{
		path:    path,
		magic:   magic,
		version: version,
		tmp:     tmp,
	}, nil
}

// AddBlock appends one block and returns its id. extraBytes and data may both
// be empty; both are retained by reference until Close.
func (w *Writer) AddBlock(blockType uint32, extraBytes, data []byte) (int, error) {
	if w.closed {
		return 0, ErrWriterClosed
	}

	if _, err := w.tmp.Write(data); err != nil {
		return 0, err
	}

	id := len(w.infos)
	w.infos = append(w.infos, BlockInfo{
		ID:         id,
		Type:       blockType,
		ExtraBytes: extraBytes,
		DataLen:    uint64(len(data)),
	})
	w.payload += uint64(len(data))
	return id, nil
}

// Close finalizes the directory and writes the container to its destination
// path. The temporary payload file is always closed, and removed on success.
func (w *Writer) Close() (err error) {
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true

	defer func() {
		cerr := w.tmp.Close()
		if err == nil && cerr != nil {
			err = cerr
		}
		if err == nil {
			err = os.Remove(w.tmp.Name())
		}
	}()

	dirSize := uint64(0)
	for i := range w.infos {
		dirSize += DirRecordFixedBytes + uint64(len(w.infos[i].ExtraBytes))
	}

	// Payload offsets are only known once the directory size is fixed.
	offset := HeaderBytes + dirSize
	buf := make([]byte, HeaderBytes+dirSize)
	writeU32BE(buf[headerMagicFirstByte:headerMagicEnd], w.magic)
	writeU32BE(buf[headerVersionFirstByte:headerVersionEnd], w.version)
	writeU32BE(buf[headerCountFirstByte:headerCountEnd], uint32(len(w.infos)))
	writeU64BE(buf[headerDirSizeFirstByte:headerDirSizeEnd], dirSize)

	rec := buf[HeaderBytes:]
	for i := range w.infos {
		info := &w.infos[i]
		info.DataOffset = int64(offset)
		writeU32BE(rec[dirTypeFirstByte:dirTypeEnd], info.Type)
		writeU32BE(rec[dirExtraLenFirstByte:dirExtraLenEnd], uint32(len(info.ExtraBytes)))
		writeU64BE(rec[dirOffsetFirstByte:dirOffsetEnd], offset)
		writeU64BE(rec[dirDataLenFirstByte:dirDataLenEnd], info.DataLen)
		copy(rec[DirRecordFixedBytes:], info.ExtraBytes)
		rec = rec[DirRecordFixedBytes+uint64(len(info.ExtraBytes)):]
		offset += info.DataLen
	}

	out, err := os.Create(w.path)
	if err != nil {
		return err
	}
	defer func() {
		cerr := out.Close()
		if err == nil && cerr != nil {
			err = cerr
		}
	}()

	if _, err = out.Write(buf); err != nil {
		return err
	}
	if _, err = w.tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}
	n, err := io.Copy(out, w.tmp)
	if err != nil {
		return err
	}
	if uint64(n) != w.payload {
		return fmt.Errorf("%w: copied %d of %d payload bytes", ErrTruncated, n, w.payload)
	}
	return out.Sync()
}
