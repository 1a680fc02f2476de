package elf

// NewSymbol is one caller-supplied symbol for ExtendSymbolTable: the
// fields the operation does not fix by convention (§4.6.3).
type NewSymbol struct {
	NameOffset uint32
	Value      uint64
}

// ExtendStringTable appends each of newStrings, NUL-terminated, to the
// string table at sectionIdx, shrinking its trailing Dummy by the
// total inserted length (§4.6.2). It returns the offset at which each
// string was placed, in order.
func ExtendStringTable(f *File, sectionIdx int, newStrings []string) ([]uint32, error) {
	const op = "extend_string_table"
	cleanupDummyChunks(f)

	ci := f.sectionChunkIndex(sectionIdx)
	if ci < 0 {
		return nil, wrapf(op, WrongChunkKind, "section %d has no chunk", sectionIdx)
	}
	st, ok := f.chunks[ci].(*StringTable)
	if !ok {
		return nil, wrapf(op, WrongChunkKind, "section %d is not a string table", sectionIdx)
	}
	if ci+1 >= len(f.chunks) {
		return nil, wrapf(op, InsufficientSlack, "string table has no trailing dummy")
	}
	dummy, ok := f.chunks[ci+1].(*DummyChunk)
	if !ok {
		return nil, wrapf(op, InsufficientSlack, "string table is not followed by a dummy")
	}

	total := 0
	for _, s := range newStrings {
		total += len(s) + 1
	}
	if dummy.ByteLength() < total {
		return nil, wrapf(op, InsufficientSlack, "need %d bytes, dummy has %d", total, dummy.ByteLength())
	}

	// A table conventionally ends with the empty-string terminator
	// pair (a lone NUL preceded by the previous entry's NUL); preserve
	// it across the insertion rather than appending in the middle of it.
	trailingPair := len(st.Data) >= 2 && st.Data[len(st.Data)-1] == 0 && st.Data[len(st.Data)-2] == 0
	if trailingPair {
		st.Data = st.Data[:len(st.Data)-1]
	}
	offsets := make([]uint32, len(newStrings))
	for i, s := range newStrings {
		offsets[i] = uint32(len(st.Data))
		st.Data = append(st.Data, []byte(s)...)
		st.Data = append(st.Data, 0)
	}
	if trailingPair {
		st.Data = append(st.Data, 0)
	}

	dummy.Data = dummy.Data[:len(dummy.Data)-total]

	sht := f.SectionHeaderTable()
	sht.Entries[sectionIdx].Size += uint64(total)
	return offsets, nil
}

// ExtendSymbolTable inserts newSymbols into the symbol table at
// sectionIdx, immediately before the last Local-bound entry, each
// bound Local with type Func and section targetSectionIdx (§4.6.3).
func ExtendSymbolTable(f *File, sectionIdx, targetSectionIdx int, newSymbols []NewSymbol) error {
	const op = "extend_symbol_table"
	cleanupDummyChunks(f)

	ci := f.sectionChunkIndex(sectionIdx)
	if ci < 0 {
		return wrapf(op, WrongChunkKind, "section %d has no chunk", sectionIdx)
	}
	symtab, ok := f.chunks[ci].(*SymbolTableChunk)
	if !ok {
		return wrapf(op, WrongChunkKind, "section %d is not a symbol table", sectionIdx)
	}
	if ci+1 >= len(f.chunks) {
		return wrapf(op, InsufficientSlack, "symbol table has no trailing dummy")
	}
	dummy, ok := f.chunks[ci+1].(*DummyChunk)
	if !ok {
		return wrapf(op, InsufficientSlack, "symbol table is not followed by a dummy")
	}

	need := len(newSymbols) * symtab.EntrySize
	if dummy.ByteLength() < need {
		return wrapf(op, InsufficientSlack, "need %d bytes, dummy has %d", need, dummy.ByteLength())
	}

	insertAt := 0
	for i, e := range symtab.Entries {
		if SymbolBindOf(e.Info) == BindLocal {
			insertAt = i
		}
	}
	fresh := make([]SymbolEntry, len(newSymbols))
	for i, ns := range newSymbols {
		fresh[i] = SymbolEntry{
			NameOffset: ns.NameOffset,
			Info:       SymbolInfo(BindLocal, TypeFunc),
			Visibility: VisibilityDefault,
			Section:    uint16(targetSectionIdx),
			Value:      ns.Value,
		}
	}
	entries := make([]SymbolEntry, 0, len(symtab.Entries)+len(fresh))
	entries = append(entries, symtab.Entries[:insertAt]...)
	entries = append(entries, fresh...)
	entries = append(entries, symtab.Entries[insertAt:]...)
	symtab.Entries = entries

	dummy.Data = dummy.Data[:len(dummy.Data)-need]

	sht := f.SectionHeaderTable()
	sht.Entries[sectionIdx].Size += uint64(need)
	sht.Entries[sectionIdx].Info += uint32(len(newSymbols))
	return nil
}

// ExtendRawSection appends data to the RawSection at sectionIdx,
// shrinking its trailing Dummy by len(data) (§4.6.4).
func ExtendRawSection(f *File, sectionIdx int, data []byte) error {
	const op = "extend_raw_section"
	cleanupDummyChunks(f)

	ci := f.sectionChunkIndex(sectionIdx)
	if ci < 0 {
		return wrapf(op, WrongChunkKind, "section %d has no chunk", sectionIdx)
	}
	raw, ok := f.chunks[ci].(*RawSection)
	if !ok {
		return wrapf(op, WrongChunkKind, "section %d is not a raw section", sectionIdx)
	}
	if ci+1 >= len(f.chunks) {
		return wrapf(op, InsufficientSlack, "raw section has no trailing dummy")
	}
	dummy, ok := f.chunks[ci+1].(*DummyChunk)
	if !ok {
		return wrapf(op, InsufficientSlack, "raw section is not followed by a dummy")
	}
	if dummy.ByteLength() < len(data) {
		return wrapf(op, InsufficientSlack, "need %d bytes, dummy has %d", len(data), dummy.ByteLength())
	}

	raw.Data = append(raw.Data, data...)
	dummy.Data = dummy.Data[:len(dummy.Data)-len(data)]

	sht := f.SectionHeaderTable()
	sht.Entries[sectionIdx].Size += uint64(len(data))
	return nil
}

// CreateSection materializes newHeader as a new RawSection at its
// declared file offset, which must land inside an existing Dummy with
// enough room, and inserts newHeader into the section header list in
// file-offset order (§4.6.5). It returns the new section's index.
func CreateSection(f *File, newHeader SectionHeaderEntry) (int, error) {
	const op = "create_section"
	cleanupDummyChunks(f)

	sht := f.SectionHeaderTable()
	if f.shtIdx+1 >= len(f.chunks) {
		return 0, wrapf(op, InsufficientSlack, "section header table has no trailing dummy")
	}
	shtDummy, ok := f.chunks[f.shtIdx+1].(*DummyChunk)
	if !ok || shtDummy.ByteLength() < sht.EntrySize {
		return 0, wrapf(op, InsufficientSlack, "section header table's trailing dummy is too small")
	}

	dataIdx, base, ok := f.ChunkAtFileOffset(newHeader.FileOffset)
	if !ok {
		return 0, wrapf(op, BadOffset, "file offset %d is out of range", newHeader.FileOffset)
	}
	dataDummy, ok := f.chunks[dataIdx].(*DummyChunk)
	if !ok {
		return 0, wrapf(op, BadOffset, "file offset %d is not inside a dummy chunk", newHeader.FileOffset)
	}
	// When the placement dummy is also the section header table's
	// trailing dummy, the table's growth takes its first entry stride.
	reserved := 0
	if dataIdx == f.shtIdx+1 {
		reserved = sht.EntrySize
	}
	gap := newHeader.FileOffset - base
	if gap < uint64(reserved) {
		return 0, wrapf(op, BadOffset, "file offset %d overlaps the room for the new section header", newHeader.FileOffset)
	}
	need := gap + newHeader.Size
	if uint64(dataDummy.ByteLength()) < need {
		return 0, wrapf(op, InsufficientSlack, "dummy at %d has %d bytes, need %d", base, dataDummy.ByteLength(), need)
	}

	snap := f.snapshot()

	prefixLen := int(gap) - reserved
	suffixLen := dataDummy.ByteLength() - int(need)
	newSection := &RawSection{Data: make([]byte, newHeader.Size)}
	repl := make([]Chunk, 0, 3)
	if prefixLen > 0 {
		repl = append(repl, newDummy(prefixLen))
	}
	repl = append(repl, newSection)
	if suffixLen > 0 {
		repl = append(repl, newDummy(suffixLen))
	}
	f.spliceChunks(dataIdx, 1, repl...)

	newIdx := 0
	for newIdx < len(sht.Entries) && sht.Entries[newIdx].FileOffset < newHeader.FileOffset {
		newIdx++
	}
	entries := make([]SectionHeaderEntry, 0, len(sht.Entries)+1)
	entries = append(entries, sht.Entries[:newIdx]...)
	entries = append(entries, newHeader)
	entries = append(entries, sht.Entries[newIdx:]...)
	sht.Entries = entries

	header := f.Header()
	if newIdx <= int(header.Header.SHStrNdx) {
		header.Header.SHStrNdx++
	}
	header.Header.SHNum++

	snap.section = append(snap.section, nil)
	copy(snap.section[newIdx+1:], snap.section[newIdx:])
	snap.section[newIdx] = newSection

	if reserved == 0 {
		shtDummy.Data = shtDummy.Data[:len(shtDummy.Data)-sht.EntrySize]
	}

	f.restoreIndices(snap)
	return newIdx, nil
}

// ExtendProgramHeaderTable inserts newEntry into the program header
// table at the position keeping same-typed entries contiguous and, in
// that group, ordered by ascending virtual address (§4.6.6).
func ExtendProgramHeaderTable(f *File, newEntry ProgramHeaderEntry) error {
	const op = "extend_program_header_table"
	cleanupDummyChunks(f)
	if err := checkLayout(f, op); err != nil {
		return err
	}

	pht := f.ProgramHeaderTable()
	if f.phtIdx+1 >= len(f.chunks) {
		return wrapf(op, InsufficientSlack, "program header table has no trailing dummy")
	}
	dummy, ok := f.chunks[f.phtIdx+1].(*DummyChunk)
	if !ok || dummy.ByteLength() < pht.EntrySize {
		return wrapf(op, InsufficientSlack, "program header table's trailing dummy is too small")
	}

	insertAt := len(pht.Entries)
	groupStart, groupEnd := -1, -1
	for i, e := range pht.Entries {
		if e.Type == newEntry.Type {
			if groupStart == -1 {
				groupStart = i
			}
			groupEnd = i + 1
		}
	}
	if groupStart != -1 {
		insertAt = groupEnd
		for i := groupStart; i < groupEnd; i++ {
			if pht.Entries[i].VirtualAddress > newEntry.VirtualAddress {
				insertAt = i
				break
			}
		}
	}

	entries := make([]ProgramHeaderEntry, 0, len(pht.Entries)+1)
	entries = append(entries, pht.Entries[:insertAt]...)
	entries = append(entries, newEntry)
	entries = append(entries, pht.Entries[insertAt:]...)
	pht.Entries = entries

	f.Header().Header.PHNum++
	dummy.Data = dummy.Data[:len(dummy.Data)-pht.EntrySize]
	return nil
}
