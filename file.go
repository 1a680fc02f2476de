package elf

import "os"

// File is the in-memory, mutable representation of an ELF64-LE file:
// an ordered, contiguous chunk sequence plus direct handles to the
// distinguished singleton chunks (§3.1 ElfFile). It is constructed by
// [Parse] or [Load] and is owned by a single logical writer (§5); it
// is not safe for concurrent use.
type File struct {
	chunks []Chunk

	headerIdx int // always 0
	phtIdx    int // -1 if no program header table
	shtIdx    int // -1 if not yet located (never, after a successful Parse)
	dynIdx    int // -1 if no dynamic table

	// section maps section-header index -> chunk index holding that
	// section's bytes, or -1 for SHT_NOBITS sections (no chunk).
	section []int
}

// newFile builds a File around an already-assembled chunk sequence
// and the bookkeeping Parse produces. Exported constructors (Parse,
// Load) are the only way to obtain one from outside the package, and
// the instrumentation engine is the only thing permitted to mutate
// the fields afterward.
func newFile(chunks []Chunk, phtIdx, dynIdx int, section []int) *File {
	return &File{
		chunks:    chunks,
		headerIdx: 0,
		phtIdx:    phtIdx,
		shtIdx:    -1, // fixed up by caller before returning
		dynIdx:    dynIdx,
		section:   section,
	}
}

// ByteLength is the sum of every chunk's ByteLength — the exact
// serialized file size (§4.4).
func (f *File) ByteLength() int {
	total := 0
	for _, c := range f.chunks {
		total += c.ByteLength()
	}
	return total
}

// ChunkCount returns the number of chunks in the file.
func (f *File) ChunkCount() int { return len(f.chunks) }

// Chunk returns the chunk at index i.
func (f *File) Chunk(i int) Chunk { return f.chunks[i] }

// ChunkOffset returns the file offset at which chunk i begins.
func (f *File) ChunkOffset(i int) uint64 {
	var off uint64
	for j := 0; j < i; j++ {
		off += uint64(f.chunks[j].ByteLength())
	}
	return off
}

// ChunkAtFileOffset returns the index of the chunk containing offset
// and that chunk's base file offset (§4.4). ok is false if offset is
// at or past end of file.
func (f *File) ChunkAtFileOffset(offset uint64) (index int, base uint64, ok bool) {
	var running uint64
	for i, c := range f.chunks {
		n := uint64(c.ByteLength())
		if offset >= running && offset < running+n {
			return i, running, true
		}
		running += n
	}
	return 0, 0, false
}

// FileOffsetOfVirtualAddress scans program headers for the first
// segment whose [VirtualAddress, VirtualAddress+FileSize) contains
// addr, and returns the corresponding file offset (§4.4).
func (f *File) FileOffsetOfVirtualAddress(addr uint64) (uint64, bool) {
	pht := f.ProgramHeaderTable()
	if pht == nil {
		return 0, false
	}
	for _, p := range pht.Entries {
		if addr >= p.VirtualAddress && addr < p.VirtualAddress+p.FileSize {
			return p.FileOffset + (addr - p.VirtualAddress), true
		}
	}
	return 0, false
}

// Header returns the file's Header chunk.
func (f *File) Header() *HeaderChunk { return f.chunks[f.headerIdx].(*HeaderChunk) }

// ProgramHeaderTable returns the file's program header table chunk,
// or nil if the file has none.
func (f *File) ProgramHeaderTable() *ProgramHeaderTableChunk {
	if f.phtIdx < 0 {
		return nil
	}
	return f.chunks[f.phtIdx].(*ProgramHeaderTableChunk)
}

// SectionHeaderTable returns the file's section header table chunk.
func (f *File) SectionHeaderTable() *SectionHeaderTableChunk {
	return f.chunks[f.shtIdx].(*SectionHeaderTableChunk)
}

// DynamicTable returns the file's dynamic table chunk, or nil if it
// has none.
func (f *File) DynamicTable() *DynamicTableChunk {
	if f.dynIdx < 0 {
		return nil
	}
	return f.chunks[f.dynIdx].(*DynamicTableChunk)
}

// SectionCount returns the number of section header entries.
func (f *File) SectionCount() int { return len(f.section) }

// SectionChunk returns the chunk holding section sectionIdx's bytes.
// ok is false for an SHT_NOBITS section, which occupies no chunk.
func (f *File) SectionChunk(sectionIdx int) (Chunk, bool) {
	if sectionIdx < 0 || sectionIdx >= len(f.section) {
		return nil, false
	}
	ci := f.section[sectionIdx]
	if ci < 0 {
		return nil, false
	}
	return f.chunks[ci], true
}

// sectionChunkIndex returns the chunk-list index holding section
// sectionIdx's bytes, or -1.
func (f *File) sectionChunkIndex(sectionIdx int) int {
	if sectionIdx < 0 || sectionIdx >= len(f.section) {
		return -1
	}
	return f.section[sectionIdx]
}

// SectionName returns the name of section sectionIdx, resolved
// through the section-header string table named by the ELF header's
// SHStrNdx.
func (f *File) SectionName(sectionIdx int) string {
	sht := f.SectionHeaderTable()
	if sectionIdx < 0 || sectionIdx >= len(sht.Entries) {
		return ""
	}
	shstrndx := int(f.Header().Header.SHStrNdx)
	strtab, ok := f.sectionAsStringTable(shstrndx)
	if !ok {
		return ""
	}
	return strtab.String(sht.Entries[sectionIdx].NameOffset)
}

// SectionDisplayName is SectionName with non-graphic runes stripped,
// safe to interpolate into logs or terminal output even when the name
// comes from an untrusted or corrupted string table.
func (f *File) SectionDisplayName(sectionIdx int) string {
	return sanitizeName(f.SectionName(sectionIdx))
}

func (f *File) sectionAsStringTable(sectionIdx int) (*StringTable, bool) {
	c, ok := f.SectionChunk(sectionIdx)
	if !ok {
		return nil, false
	}
	st, ok := c.(*StringTable)
	return st, ok
}

// SectionByName returns the index of the first section named name.
func (f *File) SectionByName(name string) (int, bool) {
	sht := f.SectionHeaderTable()
	for i := range sht.Entries {
		if f.SectionName(i) == name {
			return i, true
		}
	}
	return 0, false
}

// SectionsByType returns the indices of every section with the given
// type, in table order.
func (f *File) SectionsByType(t SectionType) []int {
	sht := f.SectionHeaderTable()
	var out []int
	for i, s := range sht.Entries {
		if s.Type == t {
			out = append(out, i)
		}
	}
	return out
}

// StringTableFor returns the string table linked from section
// sectionIdx's sh_link field (§1 supplement: round out the "parse"
// half of the pipeline; grounded on pattyshack-bad's BindStringTable).
func (f *File) StringTableFor(sectionIdx int) (*StringTable, bool) {
	sht := f.SectionHeaderTable()
	if sectionIdx < 0 || sectionIdx >= len(sht.Entries) {
		return nil, false
	}
	return f.sectionAsStringTable(int(sht.Entries[sectionIdx].Link))
}

// SymbolTableFor returns the symbol table linked from section
// sectionIdx's sh_link field.
func (f *File) SymbolTableFor(sectionIdx int) (*SymbolTableChunk, bool) {
	sht := f.SectionHeaderTable()
	if sectionIdx < 0 || sectionIdx >= len(sht.Entries) {
		return nil, false
	}
	c, ok := f.SectionChunk(int(sht.Entries[sectionIdx].Link))
	if !ok {
		return nil, false
	}
	st, ok := c.(*SymbolTableChunk)
	return st, ok
}

// Load reads path and parses it as an ELF64-LE file.
func Load(path string) (*File, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, newErr("load", Truncated, err)
	}
	return Parse(buf)
}

// Store serializes f and writes it to path.
func Store(f *File, path string) error {
	buf, err := Serialize(f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return newErr("store", Truncated, err)
	}
	return nil
}
