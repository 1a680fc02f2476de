package elf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAndPatchRawBytesAtOffset(t *testing.T) {
	buf, idx := buildELF(t, []sectionSpec{
		{name: ".data", typ: SHTProgBits, data: []byte{1, 2, 3, 4, 5, 6}},
	}, nil)
	f, err := Parse(buf)
	require.NoError(t, err)

	sht := f.SectionHeaderTable()
	base := sht.Entries[idx[".data"]].FileOffset

	got, err := GetRawBytesAtOffset(f, base+1, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3, 4}, got)

	require.NoError(t, PatchRawBytesAtOffset(f, base+1, []byte{0xAA, 0xBB}))
	got, err = GetRawBytesAtOffset(f, base, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0xAA, 0xBB, 4, 5, 6}, got)
}

func TestGetRawBytesAtOffsetRejectsOutOfRange(t *testing.T) {
	buf, idx := buildELF(t, []sectionSpec{
		{name: ".data", typ: SHTProgBits, data: []byte{1, 2}},
	}, nil)
	f, err := Parse(buf)
	require.NoError(t, err)

	sht := f.SectionHeaderTable()
	base := sht.Entries[idx[".data"]].FileOffset

	_, err = GetRawBytesAtOffset(f, base, 10)
	require.Error(t, err)
	var elfErr *Error
	require.ErrorAs(t, err, &elfErr)
	assert.Equal(t, BadOffset, elfErr.Kind)
}

func TestPatchRawBytesAtOffsetRejectsNonRawChunk(t *testing.T) {
	buf, idx := buildELF(t, []sectionSpec{
		{name: ".strtab", typ: SHTStrTab, data: []byte{0, 'a', 0}},
	}, nil)
	f, err := Parse(buf)
	require.NoError(t, err)

	sht := f.SectionHeaderTable()
	base := sht.Entries[idx[".strtab"]].FileOffset

	err = PatchRawBytesAtOffset(f, base, []byte{1})
	require.Error(t, err)
	var elfErr *Error
	require.ErrorAs(t, err, &elfErr)
	assert.Equal(t, WrongChunkKind, elfErr.Kind)
}

func TestPatchRawBytesAtAddressResolvesViaProgramHeader(t *testing.T) {
	pht := []ProgramHeaderEntry{
		{Type: PTLoad, FileOffset: 0, VirtualAddress: 0x1000, FileSize: 256, MemorySize: 256},
	}
	buf, idx := buildELF(t, []sectionSpec{
		{name: ".data", typ: SHTProgBits, data: []byte{0, 0, 0, 0}},
	}, pht)
	f, err := Parse(buf)
	require.NoError(t, err)

	sht := f.SectionHeaderTable()
	base := sht.Entries[idx[".data"]].FileOffset

	require.NoError(t, PatchRawBytesAtAddress(f, 0x1000+base, []byte{0x7F}))
	got, err := GetRawBytesAtOffset(f, base, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7F}, got)
}

func TestPatchRawBytesAtAddressRejectsUncoveredAddress(t *testing.T) {
	pht := []ProgramHeaderEntry{
		{Type: PTLoad, FileOffset: 0, VirtualAddress: 0x1000, FileSize: 16, MemorySize: 16},
	}
	buf, _ := buildELF(t, []sectionSpec{
		{name: ".data", typ: SHTProgBits, data: []byte{0}},
	}, pht)
	f, err := Parse(buf)
	require.NoError(t, err)

	err = PatchRawBytesAtAddress(f, 0xdead0000, []byte{1})
	require.Error(t, err)
	var elfErr *Error
	require.ErrorAs(t, err, &elfErr)
	assert.Equal(t, BadOffset, elfErr.Kind)
}

func TestPatchValueInRelocationTableUpdatesAllMatches(t *testing.T) {
	entries := []RelaEntry{
		{Offset: 0x2000, Info: 1, Addend: 5},
		{Offset: 0x2008, Info: 1, Addend: 5},
		{Offset: 0x2000, Info: 2, Addend: 9},
		{Offset: 0x2000, Info: 3, Addend: 5},
	}
	buf, _ := buildELF(t, []sectionSpec{
		{name: ".rela.text", typ: SHTRela, data: marshalRelaEntries(entries), entsize: RelaEntrySize},
	}, nil)
	f, err := Parse(buf)
	require.NoError(t, err)

	n, err := PatchValueInRelocationTable(f, 0x2000, 5, 99)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	idx := f.sectionChunkIndex(0)
	rela := f.Chunk(idx).(*RelocationAddendTable)
	assert.EqualValues(t, 99, rela.Entries[0].Addend)
	assert.EqualValues(t, 5, rela.Entries[1].Addend)
	assert.EqualValues(t, 9, rela.Entries[2].Addend)
	assert.EqualValues(t, 99, rela.Entries[3].Addend)
}

func TestPatchValueInRelocationTableNoMatch(t *testing.T) {
	entries := []RelaEntry{{Offset: 0x10, Info: 1, Addend: 1}}
	buf, _ := buildELF(t, []sectionSpec{
		{name: ".rela.text", typ: SHTRela, data: marshalRelaEntries(entries), entsize: RelaEntrySize},
	}, nil)
	f, err := Parse(buf)
	require.NoError(t, err)

	_, err = PatchValueInRelocationTable(f, 0x99, 1, 2)
	require.Error(t, err)
	var elfErr *Error
	require.ErrorAs(t, err, &elfErr)
	assert.Equal(t, WrongChunkKind, elfErr.Kind)
}
