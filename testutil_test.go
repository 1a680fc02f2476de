package elf

import "github.com/laenix/elftools/internal/codec"

// sectionSpec describes one section for buildELF to lay out and
// encode; it is the test-only analog of SectionHeaderEntry plus the
// bytes that belong to it.
type sectionSpec struct {
	name    string
	typ     SectionType
	flags   SectionFlag
	addr    uint64
	data    []byte
	entsize uint64
	link    uint32
	info    uint32
	align   uint64
}

func marshalU64(order []uint64) []byte {
	buf := make([]byte, len(order)*8)
	w := codec.NewWriter(buf)
	for _, v := range order {
		w.U64(v)
	}
	return buf
}

func marshalDynEntries(entries []DynamicEntry) []byte {
	buf := make([]byte, len(entries)*DynamicEntrySize)
	w := codec.NewWriter(buf)
	for _, e := range entries {
		e.marshal(w, DynamicEntrySize)
	}
	return buf
}

func marshalSymEntries(entries []SymbolEntry) []byte {
	buf := make([]byte, len(entries)*SymbolEntrySize)
	w := codec.NewWriter(buf)
	for _, e := range entries {
		e.marshal(w, SymbolEntrySize)
	}
	return buf
}

func marshalRelaEntries(entries []RelaEntry) []byte {
	buf := make([]byte, len(entries)*RelaEntrySize)
	w := codec.NewWriter(buf)
	for _, e := range entries {
		e.marshal(w, RelaEntrySize)
	}
	return buf
}

func alignUpInt(v, a int) int {
	if a <= 1 {
		return v
	}
	return (v + a - 1) &^ (a - 1)
}

// buildELF assembles a minimal, well-formed ELF64-LE byte buffer: a
// header, an optional program header table immediately after it, each
// section's bytes packed 8-byte aligned, a synthesized ".shstrtab"
// holding every section's name, and a trailing section header table.
// It returns the encoded bytes plus the index each input section ended
// up at (".shstrtab" is appended after the caller's sections).
func buildELF(t interface{ Helper() }, sections []sectionSpec, phtEntries []ProgramHeaderEntry) ([]byte, map[string]int) {
	t.Helper()

	names := make([]byte, 1) // offset 0 is the empty string
	nameOffsets := make([]uint32, len(sections)+1)
	for i, s := range sections {
		nameOffsets[i] = uint32(len(names))
		names = append(names, []byte(s.name)...)
		names = append(names, 0)
	}
	shstrtabOffsetInNames := uint32(len(names))
	names = append(names, []byte(".shstrtab")...)
	names = append(names, 0)

	allSections := append([]sectionSpec(nil), sections...)
	allSections = append(allSections, sectionSpec{name: ".shstrtab", typ: SHTStrTab, data: names})
	nameOffsets[len(sections)] = shstrtabOffsetInNames

	const headerSize = HeaderSize
	phtSize := 0
	if phtEntries != nil {
		phtSize = len(phtEntries) * ProgramHeaderEntrySize
	}

	cursor := headerSize + phtSize
	fileOffsets := make([]uint64, len(allSections))
	for i, s := range allSections {
		if s.typ == SHTNoBits {
			fileOffsets[i] = uint64(cursor)
			continue
		}
		cursor = alignUpInt(cursor, 8)
		fileOffsets[i] = uint64(cursor)
		cursor += len(s.data)
	}
	shOffset := alignUpInt(cursor, 8)

	total := shOffset + len(allSections)*SectionHeaderEntrySize
	buf := make([]byte, total)
	w := codec.NewWriter(buf)

	hdr := Header{
		Ident: Ident{
			Magic:    [4]byte{magic0, magic1, magic2, magic3},
			Class:    Class64,
			Encoding: LittleEndian,
			Version:  1,
		},
		Type:                ObjectTypeExec,
		Machine:             MachineX86_64,
		ObjectVersion:       1,
		SectionHeaderOffset: uint64(shOffset),
		EHSize:              headerSize,
		SHEntSize:           SectionHeaderEntrySize,
		SHNum:                uint16(len(allSections)),
		SHStrNdx:            uint16(len(allSections) - 1),
	}
	if phtEntries != nil {
		hdr.ProgramHeaderOffset = headerSize
		hdr.PHEntSize = ProgramHeaderEntrySize
		hdr.PHNum = uint16(len(phtEntries))
	}
	hdr.marshal(w)

	if phtEntries != nil {
		for _, p := range phtEntries {
			p.marshal(w, ProgramHeaderEntrySize)
		}
	}

	for i, s := range allSections {
		if s.typ == SHTNoBits {
			continue
		}
		w.Offset = int(fileOffsets[i])
		w.Bytes(s.data)
	}

	w.Offset = shOffset
	idx := make(map[string]int, len(allSections))
	for i, s := range allSections {
		idx[s.name] = i
		entry := SectionHeaderEntry{
			NameOffset: nameOffsets[i],
			Type:       s.typ,
			Flags:      s.flags,
			Address:    s.addr,
			FileOffset: fileOffsets[i],
			Size:       uint64(len(s.data)),
			Link:       s.link,
			Info:       s.info,
			Alignment:  s.align,
			EntSize:    s.entsize,
		}
		entry.marshal(w, SectionHeaderEntrySize)
	}

	return buf, idx
}
