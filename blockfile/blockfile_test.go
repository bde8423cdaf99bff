package blockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testMagic   = uint32(0x54455354)
	testVersion = uint32(7)
)

func writeTestContainer(t *testing.T, blocks []Block) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "container.bin")

	w, err := Create(path, testMagic, testVersion)
	require.NoError(t, err)
	for i, b := range blocks {
		id, err := w.AddBlock(b.Info.Type, b.Info.ExtraBytes, b.Data)
		require.NoError(t, err)
		require.Equal(t, i, id)
	}
	require.NoError(t, w.Close())
	return path
}

func TestRoundTrip(t *testing.T) {
	blocks := []Block{
		{Info: BlockInfo{Type: 1}, Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{Info: BlockInfo{Type: 2}},
		{Info: BlockInfo{Type: 3, ExtraBytes: []byte{0x01, 0x02}}, Data: []byte("suffix table payload")},
		{Info: BlockInfo{Type: 3, ExtraBytes: []byte{0xFF}}, Data: make([]byte, 4096)},
	}
	path := writeTestContainer(t, blocks)

	r, err := Open(path, testMagic, testVersion)
	require.NoError(t, err)
	defer r.Close()

	count, err := r.BlockCount()
	require.NoError(t, err)
	require.Equal(t, len(blocks), count)
	for i, want := range blocks {
		info, err := r.BlockInfo(i)
		require.NoError(t, err)
		require.Equal(t, i, info.ID)
		require.Equal(t, want.Info.Type, info.Type)
		require.Equal(t, uint64(len(want.Data)), info.DataLen)
		if len(want.Info.ExtraBytes) == 0 {
			require.Empty(t, info.ExtraBytes)
		} else {
			require.Equal(t, want.Info.ExtraBytes, info.ExtraBytes)
		}

		b, err := r.Block(i)
		require.NoError(t, err)
		if len(want.Data) == 0 {
			require.Empty(t, b.Data)
		} else {
			require.Equal(t, want.Data, b.Data)
		}
	}

	_, err = r.BlockInfo(len(blocks))
	require.ErrorIs(t, err, ErrBlockOutOfRange)
	_, err = r.Block(-1)
	require.ErrorIs(t, err, ErrBlockOutOfRange)
}

func TestMmapMatchesReadAt(t *testing.T) {
	blocks := []Block{
		{Info: BlockInfo{Type: 9, ExtraBytes: []byte{0xAA}}, Data: []byte("zero copy view")},
		{Info: BlockInfo{Type: 9}, Data: make([]byte, 1<<16)},
	}
	for i := range blocks[1].Data {
		blocks[1].Data[i] = byte(i)
	}
	path := writeTestContainer(t, blocks)

	plain, err := Open(path, testMagic, testVersion)
	require.NoError(t, err)
	defer plain.Close()

	mapped, err := Open(path, testMagic, testVersion, WithMmap())
	require.NoError(t, err)
	defer mapped.Close()

	for i := range blocks {
		a, err := plain.Block(i)
		require.NoError(t, err)
		b, err := mapped.Block(i)
		require.NoError(t, err)
		require.Equal(t, a.Data, b.Data)
	}
}

func TestWriterSingleUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "container.bin")
	w, err := Create(path, testMagic, testVersion)
	require.NoError(t, err)

	_, err = w.AddBlock(1, nil, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.AddBlock(1, nil, []byte("y"))
	require.ErrorIs(t, err, ErrWriterClosed)
	require.ErrorIs(t, w.Close(), ErrWriterClosed)
}

func TestOpenRejectsWrongMagicAndVersion(t *testing.T) {
	path := writeTestContainer(t, []Block{{Info: BlockInfo{Type: 1}, Data: []byte("d")}})

	_, err := Open(path, testMagic+1, testVersion)
	require.ErrorIs(t, err, ErrBadMagic)

	_, err = Open(path, testMagic, testVersion+1)
	require.ErrorIs(t, err, ErrBadVersion)
}

func TestOpenRejectsTruncated(t *testing.T) {
	path := writeTestContainer(t, []Block{{Info: BlockInfo{Type: 1}, Data: []byte("payload")}})

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	for _, cut := range []int{HeaderBytes - 1, HeaderBytes + 3, len(raw) - 2} {
		short := filepath.Join(t.TempDir(), "short.bin")
		require.NoError(t, os.WriteFile(short, raw[:cut], 0o644))
		_, err = Open(short, testMagic, testVersion)
		require.ErrorIs(t, err, ErrTruncated)
	}
}

// Corrupt length fields near the top of the uint64 range must fail like any
// other truncation, not wrap the bounds arithmetic and slip past validation.
func TestOpenRejectsOverflowingLengths(t *testing.T) {
	path := writeTestContainer(t, []Block{{Info: BlockInfo{Type: 1}, Data: []byte("payload")}})

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	patch := func(t *testing.T, off int, v uint64) string {
		t.Helper()
		corrupt := append([]byte{}, raw...)
		writeU64BE(corrupt[off:off+8], v)
		p := filepath.Join(t.TempDir(), "corrupt.bin")
		require.NoError(t, os.WriteFile(p, corrupt, 0o644))
		return p
	}

	t.Run("dir size wraps header sum", func(t *testing.T) {
		p := patch(t, headerDirSizeFirstByte, ^uint64(0)-HeaderBytes+1)
		_, err := Open(p, testMagic, testVersion)
		require.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("data len wraps payload bound", func(t *testing.T) {
		p := patch(t, HeaderBytes+dirDataLenFirstByte, ^uint64(0))
		_, err := Open(p, testMagic, testVersion)
		require.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("data offset past file end", func(t *testing.T) {
		p := patch(t, HeaderBytes+dirOffsetFirstByte, uint64(len(raw))+1)
		_, err := Open(p, testMagic, testVersion)
		require.ErrorIs(t, err, ErrTruncated)
	})
}

func TestReaderCloseIdempotent(t *testing.T) {
	path := writeTestContainer(t, []Block{{Info: BlockInfo{Type: 1}, Data: []byte("d")}})

	r, err := Open(path, testMagic, testVersion)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.BlockInfo(0)
	require.ErrorIs(t, err, ErrReaderClosed)
	_, err = r.BlockCount()
	require.ErrorIs(t, err, ErrReaderClosed)
}
