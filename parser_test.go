package elf

import (
	"testing"

	"github.com/laenix/elftools/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseEmptySectionHeaderTable is scenario S1: a bare 64-byte
// header with section_header_table_file_offset = 64 and zero entries.
func TestParseEmptySectionHeaderTable(t *testing.T) {
	buf := make([]byte, 64)
	w := codec.NewWriter(buf)
	hdr := Header{
		Ident: Ident{
			Magic:    [4]byte{magic0, magic1, magic2, magic3},
			Class:    Class64,
			Encoding: LittleEndian,
			Version:  1,
		},
		SectionHeaderOffset: 64,
		EHSize:              HeaderSize,
		SHEntSize:           SectionHeaderEntrySize,
		SHNum:               0,
	}
	hdr.marshal(w)

	f, err := Parse(buf)
	require.NoError(t, err)
	require.Equal(t, 2, f.ChunkCount())
	_, ok := f.Chunk(0).(*HeaderChunk)
	assert.True(t, ok)
	sht, ok := f.Chunk(1).(*SectionHeaderTableChunk)
	require.True(t, ok)
	assert.Empty(t, sht.Entries)

	out, err := Serialize(f)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestParseRejectsBadMagic(t *testing.T) {
	buf := make([]byte, 64)
	w := codec.NewWriter(buf)
	hdr := Header{Ident: Ident{Magic: [4]byte{1, 2, 3, 4}, Class: Class64, Encoding: LittleEndian}}
	hdr.marshal(w)

	_, err := Parse(buf)
	require.Error(t, err)
	var elfErr *Error
	require.ErrorAs(t, err, &elfErr)
	assert.Equal(t, Corrupted, elfErr.Kind)
}

func TestParseRejectsUnsupportedClass(t *testing.T) {
	buf := make([]byte, 64)
	w := codec.NewWriter(buf)
	hdr := Header{Ident: Ident{
		Magic:    [4]byte{magic0, magic1, magic2, magic3},
		Class:    Class32,
		Encoding: LittleEndian,
	}}
	hdr.marshal(w)

	_, err := Parse(buf)
	require.Error(t, err)
	var elfErr *Error
	require.ErrorAs(t, err, &elfErr)
	assert.Equal(t, Unsupported, elfErr.Kind)
}

func TestParseRejectsTruncatedHeader(t *testing.T) {
	_, err := Parse(make([]byte, 10))
	require.Error(t, err)
	var elfErr *Error
	require.ErrorAs(t, err, &elfErr)
	assert.Equal(t, Truncated, elfErr.Kind)
}

func TestParseRoundTripWithSections(t *testing.T) {
	buf, idx := buildELF(t, []sectionSpec{
		{name: ".text", typ: SHTProgBits, flags: SHFAlloc | SHFExecInstr, data: []byte{0xC3, 0xC3, 0xC3, 0xC3}, align: 4},
		{name: ".data", typ: SHTProgBits, flags: SHFAlloc | SHFWrite, data: []byte{1, 2, 3, 4, 5, 6, 7, 8}, align: 8},
	}, nil)

	f, err := Parse(buf)
	require.NoError(t, err)

	textIdx := idx[".text"]
	chunk, ok := f.SectionChunk(textIdx)
	require.True(t, ok)
	raw, ok := chunk.(*RawSection)
	require.True(t, ok)
	assert.Equal(t, []byte{0xC3, 0xC3, 0xC3, 0xC3}, raw.Data)

	out, err := Serialize(f)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestParseDetectsOverlap(t *testing.T) {
	buf, _ := buildELF(t, []sectionSpec{
		{name: ".text", typ: SHTProgBits, data: []byte{1, 2, 3, 4}},
	}, nil)

	hdr, err := unmarshalHeader(codec.NewReader(buf))
	require.NoError(t, err)
	stride := int(hdr.SHEntSize)
	shOff := int(hdr.SectionHeaderOffset)

	firstEntry, err := unmarshalSectionHeaderEntry(codec.NewReaderAt(buf, shOff), stride)
	require.NoError(t, err)
	secondEntry, err := unmarshalSectionHeaderEntry(codec.NewReaderAt(buf, shOff+stride), stride)
	require.NoError(t, err)

	// Make the second section's declared range overlap the first's.
	secondEntry.FileOffset = firstEntry.FileOffset
	w := codec.NewWriter(buf)
	w.Offset = shOff + stride
	secondEntry.marshal(w, stride)

	_, err = Parse(buf)
	require.Error(t, err)
	var elfErr *Error
	require.ErrorAs(t, err, &elfErr)
	assert.Equal(t, Corrupted, elfErr.Kind)
}
