package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	buf := make([]byte, 28)
	w := NewWriter(buf)
	w.U8(0xAB)
	w.U16(0x1234)
	w.U32(0xDEADBEEF)
	w.U64(0x0123456789ABCDEF)
	w.I64(-1)
	w.Bytes([]byte{1, 2, 3})
	w.Zero(2)

	r := NewReader(buf)
	u8, err := r.U8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), u8)

	u16, err := r.U16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16)

	u32, err := r.U32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), u32)

	u64, err := r.U64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0123456789ABCDEF), u64)

	i64, err := r.I64()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), i64)

	b, err := r.Bytes(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)

	require.NoError(t, r.Skip(2))
	assert.Equal(t, 0, r.Remaining())
}

func TestReaderTruncated(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_, err := r.U32()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReaderNewReaderAt(t *testing.T) {
	buf := []byte{0, 0, 0, 0, 0xFF}
	r := NewReaderAt(buf, 4)
	v, err := r.U8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xFF), v)
}

func TestWriterPanicsOnOverflow(t *testing.T) {
	buf := make([]byte, 1)
	w := NewWriter(buf)
	assert.Panics(t, func() { w.U32(1) })
}
