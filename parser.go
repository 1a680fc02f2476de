package elf

import (
	"bytes"
	"sort"

	"github.com/laenix/elftools/internal/codec"
)

type producedChunk struct {
	offset     uint64
	length     uint64
	chunk      Chunk
	sectionIdx int // -1 for non-section chunks (header, PHT, SHT)
}

// Parse decodes a complete ELF64-LE byte buffer into a [File] (§4.3).
func Parse(buf []byte) (*File, error) {
	const op = "parse"

	r := codec.NewReader(buf)
	hdr, err := unmarshalHeader(r)
	if err != nil {
		return nil, newErr(op, Truncated, err)
	}
	if !bytes.Equal(hdr.Ident.Magic[:], []byte{magic0, magic1, magic2, magic3}) {
		return nil, wrapf(op, Corrupted, "bad magic %x", hdr.Ident.Magic)
	}
	if hdr.Ident.Class != Class64 || hdr.Ident.Encoding != LittleEndian {
		return nil, wrapf(op, Unsupported, "class=%d encoding=%d", hdr.Ident.Class, hdr.Ident.Encoding)
	}

	produced := []producedChunk{{offset: 0, length: HeaderSize, chunk: &HeaderChunk{Header: hdr}, sectionIdx: -1}}

	// Program header table (step 2).
	if hdr.ProgramHeaderOffset != 0 {
		stride := int(hdr.PHEntSize)
		if stride <= 0 {
			stride = ProgramHeaderEntrySize
		}
		pr := codec.NewReaderAt(buf, int(hdr.ProgramHeaderOffset))
		entries := make([]ProgramHeaderEntry, 0, hdr.PHNum)
		for i := 0; i < int(hdr.PHNum); i++ {
			e, err := unmarshalProgramHeaderEntry(pr, stride)
			if err != nil {
				return nil, wrapf(op, Truncated, "program header %d: %w", i, err)
			}
			entries = append(entries, e)
		}
		pht := &ProgramHeaderTableChunk{Entries: entries, EntrySize: stride}
		produced = append(produced, producedChunk{
			offset: hdr.ProgramHeaderOffset, length: uint64(pht.ByteLength()), chunk: pht, sectionIdx: -1,
		})
	}

	// Section header table (step 3).
	shStride := int(hdr.SHEntSize)
	if shStride <= 0 {
		shStride = SectionHeaderEntrySize
	}
	sr := codec.NewReaderAt(buf, int(hdr.SectionHeaderOffset))
	shEntries := make([]SectionHeaderEntry, 0, hdr.SHNum)
	for i := 0; i < int(hdr.SHNum); i++ {
		e, err := unmarshalSectionHeaderEntry(sr, shStride)
		if err != nil {
			return nil, wrapf(op, Truncated, "section header %d: %w", i, err)
		}
		shEntries = append(shEntries, e)
	}
	sht := &SectionHeaderTableChunk{Entries: shEntries, EntrySize: shStride}
	produced = append(produced, producedChunk{
		offset: hdr.SectionHeaderOffset, length: uint64(sht.ByteLength()), chunk: sht, sectionIdx: -1,
	})

	section := make([]int, len(shEntries))
	for i := range section {
		section[i] = -1
	}
	consumed := make([]bool, len(shEntries))

	sectionBytes := func(i int) ([]byte, error) {
		s := shEntries[i]
		end := s.FileOffset + s.Size
		if end > uint64(len(buf)) {
			return nil, wrapf(op, Corrupted, "section %d range [%d,%d) exceeds file (%d)", i, s.FileOffset, end, len(buf))
		}
		return buf[s.FileOffset:end], nil
	}

	// Dynamic table (step 4).
	dynSectionIdx := -1
	var dyn *DynamicTableChunk
	for i, s := range shEntries {
		if s.Type == SHTDynamic {
			data, err := sectionBytes(i)
			if err != nil {
				return nil, err
			}
			stride := int(s.EntSize)
			if stride <= 0 {
				stride = DynamicEntrySize
			}
			dyn = parseDynamicTable(data, stride)
			dynSectionIdx = i
			consumed[i] = true
			produced = append(produced, producedChunk{offset: s.FileOffset, length: s.Size, chunk: dyn, sectionIdx: i})
			break
		}
	}

	// Relocation tables named by the dynamic table (step 5).
	if dyn != nil {
		if v, ok := dyn.First(DTRela); ok {
			if err := consumeDynRelocation(op, shEntries, consumed, &produced, buf, v, dyn, DTRelaEnt, RelaEntrySize, dynRelaSzTags); err != nil {
				return nil, err
			}
		}
		if v, ok := dyn.First(DTRel); ok {
			if err := consumeDynRelocation(op, shEntries, consumed, &produced, buf, v, dyn, DTRelEnt, RelEntrySize, dynRelSzTags); err != nil {
				return nil, err
			}
		}
		if v, ok := dyn.First(DTJmpRel); ok {
			pltrel, hasPltRel := dyn.First(DTPltRel)
			if hasPltRel {
				entSize := RelEntrySize
				entTag := DTRelEnt
				if DynamicTag(pltrel) == DTRela {
					entSize = RelaEntrySize
					entTag = DTRelaEnt
				}
				if err := consumeDynRelocation(op, shEntries, consumed, &produced, buf, v, dyn, entTag, entSize, dynJmpRelSzTags); err != nil {
					return nil, err
				}
			}
		}
	}

	// Remaining sections (step 6).
	for i, s := range shEntries {
		if consumed[i] || s.Type == SHTNoBits {
			continue
		}
		data, err := sectionBytes(i)
		if err != nil {
			return nil, err
		}
		var chunk Chunk
		switch s.Type {
		case SHTStrTab:
			chunk = &StringTable{Data: append([]byte(nil), data...)}
		case SHTSymTab, SHTDynSym:
			stride := int(s.EntSize)
			if stride <= 0 {
				stride = SymbolEntrySize
			}
			chunk = parseSymbolTable(data, stride)
		case SHTNote:
			chunk = &Notes{Raw: append([]byte(nil), data...), Entries: parseNotes(data)}
		case SHTGNUVerdef:
			chunk = &Verdef{Data: append([]byte(nil), data...)}
		case SHTGNUVerneed:
			chunk = &Verneed{Data: append([]byte(nil), data...)}
		case SHTRel:
			stride := int(s.EntSize)
			if stride <= 0 {
				stride = RelEntrySize
			}
			chunk = parseRelTable(data, stride)
		case SHTRela:
			stride := int(s.EntSize)
			if stride <= 0 {
				stride = RelaEntrySize
			}
			chunk = parseRelaTable(data, stride)
		default:
			chunk = &RawSection{Data: append([]byte(nil), data...)}
		}
		produced = append(produced, producedChunk{offset: s.FileOffset, length: s.Size, chunk: chunk, sectionIdx: i})
	}

	// Sort by offset and fill gaps with Dummy chunks (step 7), checking
	// for overlap (step 8).
	sort.SliceStable(produced, func(i, j int) bool { return produced[i].offset < produced[j].offset })

	var chunks []Chunk
	var running uint64
	phtChunkIdx, shtChunkIdx := -1, -1
	for _, pc := range produced {
		if pc.offset < running {
			return nil, wrapf(op, Corrupted, "chunk at %d overlaps previous end %d", pc.offset, running)
		}
		if pc.offset > running {
			gap := newDummy(int(pc.offset - running))
			if pc.offset <= uint64(len(buf)) {
				copy(gap.Data, buf[running:pc.offset])
			}
			chunks = append(chunks, gap)
			running = pc.offset
		}
		chunks = append(chunks, pc.chunk)
		if pc.sectionIdx >= 0 {
			section[pc.sectionIdx] = len(chunks) - 1
		}
		running += uint64(pc.chunk.ByteLength())
	}
	if int(running) < len(buf) {
		chunks = append(chunks, &DummyChunk{Data: append([]byte(nil), buf[running:]...)})
	}

	// Recover PHT/SHT/header chunk indices from the sorted, gap-filled list.
	headerIdx := -1
	for i, c := range chunks {
		switch c.(type) {
		case *HeaderChunk:
			if headerIdx == -1 {
				headerIdx = i
			}
		case *ProgramHeaderTableChunk:
			if hdr.ProgramHeaderOffset != 0 {
				phtChunkIdx = i
			}
		case *SectionHeaderTableChunk:
			shtChunkIdx = i
		}
	}
	if headerIdx != 0 {
		return nil, wrapf(op, Corrupted, "header chunk not at index 0")
	}
	if hdr.ProgramHeaderOffset != 0 && (phtChunkIdx != 1) {
		return nil, wrapf(op, UnsupportedLayout, "program header table is not immediately after the ELF header")
	}

	dynChunkIdx := -1
	if dynSectionIdx >= 0 {
		dynChunkIdx = section[dynSectionIdx]
	}

	f := newFile(chunks, phtChunkIdx, dynChunkIdx, section)
	f.shtIdx = shtChunkIdx
	return f, nil
}

var dynRelaSzTags = []DynamicTag{DTRelaSz}
var dynRelSzTags = []DynamicTag{DTRelSz}
var dynJmpRelSzTags = []DynamicTag{DTPltRelSz}

// consumeDynRelocation locates the section whose virtual address
// equals v, parses it as a relocation table using the effective
// per-entry size (entTag, falling back to defaultEntSize) and total
// size (the first of sizeTags present, falling back to the section's
// declared size), and marks it consumed (§4.3 step 5).
func consumeDynRelocation(
	op string,
	sh []SectionHeaderEntry,
	consumed []bool,
	produced *[]producedChunk,
	buf []byte,
	v uint64,
	dyn *DynamicTableChunk,
	entTag DynamicTag,
	defaultEntSize int,
	sizeTags []DynamicTag,
) error {
	idx := -1
	for i, s := range sh {
		if s.Address == v {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if consumed[idx] {
		return nil
	}
	s := sh[idx]
	entSize := defaultEntSize
	if v, ok := dyn.First(entTag); ok && v > 0 {
		entSize = int(v)
	}
	totalSize := s.Size
	for _, t := range sizeTags {
		if v, ok := dyn.First(t); ok {
			totalSize = v
			break
		}
	}
	end := s.FileOffset + totalSize
	if end > uint64(len(buf)) {
		return wrapf(op, Corrupted, "relocation section %d range exceeds file", idx)
	}
	data := buf[s.FileOffset:end]
	var chunk Chunk
	if entTag == DTRelaEnt {
		chunk = parseRelaTable(data, entSize)
	} else {
		chunk = parseRelTable(data, entSize)
	}
	consumed[idx] = true
	*produced = append(*produced, producedChunk{offset: s.FileOffset, length: uint64(len(data)), chunk: chunk, sectionIdx: idx})
	return nil
}

func parseDynamicTable(data []byte, stride int) *DynamicTableChunk {
	count := len(data) / stride
	r := codec.NewReader(data)
	entries := make([]DynamicEntry, 0, count)
	for i := 0; i < count; i++ {
		e, err := unmarshalDynamicEntry(r, stride)
		if err != nil {
			break
		}
		entries = append(entries, e)
	}
	return &DynamicTableChunk{Entries: entries, EntrySize: stride, TrailingPad: len(data) - count*stride}
}

func parseSymbolTable(data []byte, stride int) *SymbolTableChunk {
	count := len(data) / stride
	r := codec.NewReader(data)
	entries := make([]SymbolEntry, 0, count)
	for i := 0; i < count; i++ {
		e, err := unmarshalSymbolEntry(r, stride)
		if err != nil {
			break
		}
		entries = append(entries, e)
	}
	return &SymbolTableChunk{Entries: entries, EntrySize: stride, TrailingPad: len(data) - count*stride}
}

func parseRelTable(data []byte, stride int) *RelocationTable {
	count := len(data) / stride
	r := codec.NewReader(data)
	entries := make([]RelEntry, 0, count)
	for i := 0; i < count; i++ {
		e, err := unmarshalRelEntry(r, stride)
		if err != nil {
			break
		}
		entries = append(entries, e)
	}
	return &RelocationTable{Entries: entries, EntrySize: stride, TrailingPad: len(data) - count*stride}
}

func parseRelaTable(data []byte, stride int) *RelocationAddendTable {
	count := len(data) / stride
	r := codec.NewReader(data)
	entries := make([]RelaEntry, 0, count)
	for i := 0; i < count; i++ {
		e, err := unmarshalRelaEntry(r, stride)
		if err != nil {
			break
		}
		entries = append(entries, e)
	}
	return &RelocationAddendTable{Entries: entries, EntrySize: stride, TrailingPad: len(data) - count*stride}
}
