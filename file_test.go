package elf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionByNameAndByType(t *testing.T) {
	buf, idx := buildELF(t, []sectionSpec{
		{name: ".text", typ: SHTProgBits, data: []byte{1, 2, 3, 4}},
		{name: ".rodata", typ: SHTProgBits, data: []byte{5, 6}},
	}, nil)

	f, err := Parse(buf)
	require.NoError(t, err)

	got, ok := f.SectionByName(".rodata")
	require.True(t, ok)
	assert.Equal(t, idx[".rodata"], got)

	_, ok = f.SectionByName(".nonexistent")
	assert.False(t, ok)

	progbits := f.SectionsByType(SHTProgBits)
	assert.ElementsMatch(t, []int{idx[".text"], idx[".rodata"]}, progbits)
}

func TestStringTableForAndSymbolTableFor(t *testing.T) {
	symData := marshalSymEntries([]SymbolEntry{
		{NameOffset: 0, Info: SymbolInfo(BindLocal, TypeFunc), Section: 1, Value: 0x1000},
	})
	buf, idx := buildELF(t, []sectionSpec{
		{name: ".strtab", typ: SHTStrTab, data: []byte{0, '.', 'f', 'o', 'o', 0}},
		{name: ".symtab", typ: SHTSymTab, data: symData, entsize: SymbolEntrySize, link: 0},
	}, nil)
	// Fix up .symtab's sh_link to point at .strtab's section index after
	// buildELF has assigned it.
	f, err := Parse(buf)
	require.NoError(t, err)

	sht := f.SectionHeaderTable()
	sht.Entries[idx[".symtab"]].Link = uint32(idx[".strtab"])

	st, ok := f.StringTableFor(idx[".symtab"])
	require.True(t, ok)
	assert.Equal(t, ".foo", st.String(1))

	symtab, ok := f.SymbolTableFor(idx[".symtab"])
	require.True(t, ok)
	require.Len(t, symtab.Entries, 1)
	assert.Equal(t, uint64(0x1000), symtab.Entries[0].Value)
}

func TestSectionDisplayNameSanitizes(t *testing.T) {
	buf, idx := buildELF(t, []sectionSpec{
		{name: ".text", typ: SHTProgBits, data: []byte{1}},
	}, nil)
	f, err := Parse(buf)
	require.NoError(t, err)

	assert.Equal(t, ".text", f.SectionDisplayName(idx[".text"]))
}

func TestChunkAtFileOffset(t *testing.T) {
	buf, _ := buildELF(t, []sectionSpec{
		{name: ".text", typ: SHTProgBits, data: []byte{1, 2, 3, 4}},
	}, nil)
	f, err := Parse(buf)
	require.NoError(t, err)

	idx, base, ok := f.ChunkAtFileOffset(0)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, uint64(0), base)

	_, _, ok = f.ChunkAtFileOffset(uint64(f.ByteLength()))
	assert.False(t, ok)
}
