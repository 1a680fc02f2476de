package elf

import "github.com/sirupsen/logrus"

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// AllocateProgBitsSection composes the instrumentation primitives to
// add a new PROGBITS section backed by a new LOAD segment (§4.7): it
// grows the program header table, the section-name string table, and
// the section header table by one slot, places the section's content
// at the next address aligned to alignment, and wires it up as a
// loadable segment. It returns the new section's index.
func AllocateProgBitsSection(f *File, name string, address, size, alignment uint64, writable, executable bool, contents []byte) (int, error) {
	const op = "allocate_prog_bits_section"
	log := Logger().WithFields(logrus.Fields{"op": op, "name": name, "address": address, "size": size})
	log.Debug("allocating section")

	pht := f.ProgramHeaderTable()
	if pht == nil {
		return 0, wrapf(op, UnsupportedLayout, "file has no program header table")
	}
	if err := AllocateFileMemory(f, f.ChunkOffset(f.phtIdx)+uint64(pht.ByteLength()), pht.EntrySize); err != nil {
		return 0, err
	}

	strNdx := int(f.Header().Header.SHStrNdx)
	strChunkIdx := f.sectionChunkIndex(strNdx)
	if strChunkIdx < 0 {
		return 0, wrapf(op, UnsupportedLayout, "section header string table is missing")
	}
	strTab, ok := f.chunks[strChunkIdx].(*StringTable)
	if !ok {
		return 0, wrapf(op, WrongChunkKind, "section header string table index does not name a string table")
	}
	if err := AllocateFileMemory(f, f.ChunkOffset(strChunkIdx)+uint64(strTab.ByteLength()), len(name)+1); err != nil {
		return 0, err
	}

	sht := f.SectionHeaderTable()
	if err := AllocateFileMemory(f, f.ChunkOffset(f.shtIdx)+uint64(sht.ByteLength()), sht.EntrySize); err != nil {
		return 0, err
	}

	total := uint64(f.ByteLength())
	newSectionOffset := alignUp(total, alignment)
	if err := AllocateFileMemory(f, total, int((newSectionOffset-total)+size)); err != nil {
		return 0, err
	}

	nameOffsets, err := ExtendStringTable(f, strNdx, []string{name})
	if err != nil {
		return 0, err
	}
	nameOffset := nameOffsets[0]

	flags := SHFAlloc
	pflags := SegmentFlag(PFReadable)
	if writable {
		flags |= SHFWrite
		pflags |= PFWritable
	}
	if executable {
		flags |= SHFExecInstr
		pflags |= PFExecutable
	}

	sectionIdx, err := CreateSection(f, SectionHeaderEntry{
		NameOffset: nameOffset,
		Type:       SHTProgBits,
		Flags:      flags,
		Address:    address,
		FileOffset: newSectionOffset,
		Size:       size,
		Alignment:  alignment,
	})
	if err != nil {
		return 0, err
	}

	if err := ExtendProgramHeaderTable(f, ProgramHeaderEntry{
		Type:            PTLoad,
		Flags:           pflags,
		FileOffset:      newSectionOffset,
		VirtualAddress:  address,
		PhysicalAddress: address,
		FileSize:        size,
		MemorySize:      size,
		Alignment:       alignment,
	}); err != nil {
		return 0, err
	}

	chunk, ok := f.SectionChunk(sectionIdx)
	if !ok {
		return 0, wrapf(op, Corrupted, "newly created section %d has no chunk", sectionIdx)
	}
	rawSection := chunk.(*RawSection)
	n := copy(rawSection.Data, contents)
	for i := n; i < len(rawSection.Data); i++ {
		rawSection.Data[i] = 0
	}

	log.WithField("section_index", sectionIdx).Debug("section allocated")
	return sectionIdx, nil
}
