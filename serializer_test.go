package elf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSerializeIsByteLengthConsistent exercises P2 (chunk contiguity):
// the sum of every chunk's byte length equals the serialized length,
// and every chunk's declared offset tiles the file with no gaps.
func TestSerializeIsByteLengthConsistent(t *testing.T) {
	buf, _ := buildELF(t, []sectionSpec{
		{name: ".text", typ: SHTProgBits, data: []byte{0xC3, 0xC3}, align: 4},
	}, nil)

	f, err := Parse(buf)
	require.NoError(t, err)

	out, err := Serialize(f)
	require.NoError(t, err)
	assert.Equal(t, f.ByteLength(), len(out))
	assert.Equal(t, buf, out)

	var sum int
	var running uint64
	for i := 0; i < f.ChunkCount(); i++ {
		assert.Equal(t, running, f.ChunkOffset(i))
		n := f.Chunk(i).ByteLength()
		sum += n
		running += uint64(n)
	}
	assert.Equal(t, f.ByteLength(), sum)
}
