package elf

// GetRawBytesAtOffset reads n bytes starting at offset, which must
// fall inside a RawSection chunk (§4.6.7).
func GetRawBytesAtOffset(f *File, offset uint64, n int) ([]byte, error) {
	const op = "get_raw_bytes_at_offset"
	idx, base, ok := f.ChunkAtFileOffset(offset)
	if !ok {
		return nil, wrapf(op, BadOffset, "offset %d is out of range", offset)
	}
	raw, ok := f.chunks[idx].(*RawSection)
	if !ok {
		return nil, wrapf(op, WrongChunkKind, "offset %d is not inside a raw section", offset)
	}
	start := int(offset - base)
	if start+n > len(raw.Data) {
		return nil, wrapf(op, BadOffset, "range [%d,%d) exceeds the raw section", offset, offset+uint64(n))
	}
	out := make([]byte, n)
	copy(out, raw.Data[start:start+n])
	return out, nil
}

// PatchRawBytesAtOffset replaces len(data) bytes starting at offset in
// place inside a RawSection chunk (§4.6.7).
func PatchRawBytesAtOffset(f *File, offset uint64, data []byte) error {
	const op = "patch_raw_bytes_at_offset"
	idx, base, ok := f.ChunkAtFileOffset(offset)
	if !ok {
		return wrapf(op, BadOffset, "offset %d is out of range", offset)
	}
	raw, ok := f.chunks[idx].(*RawSection)
	if !ok {
		return wrapf(op, WrongChunkKind, "offset %d is not inside a raw section", offset)
	}
	start := int(offset - base)
	if start+len(data) > len(raw.Data) {
		return wrapf(op, BadOffset, "range [%d,%d) exceeds the raw section", offset, offset+uint64(len(data)))
	}
	copy(raw.Data[start:], data)
	return nil
}

// PatchRawBytesAtAddress resolves virtualAddress to a file offset via
// the program header table, then delegates to PatchRawBytesAtOffset
// (§4.6.7).
func PatchRawBytesAtAddress(f *File, virtualAddress uint64, data []byte) error {
	const op = "patch_raw_bytes_at_address"
	offset, ok := f.FileOffsetOfVirtualAddress(virtualAddress)
	if !ok {
		return wrapf(op, BadOffset, "virtual address %#x is not covered by any segment", virtualAddress)
	}
	return PatchRawBytesAtOffset(f, offset, data)
}

// PatchValueInRelocationTable updates every relocation-with-addend
// entry, across every RelocationAddendTable chunk, whose (offset,
// addend) matches (offset, oldAddend), setting its addend to
// newAddend. The source matches on relocation-with-addend tables only
// and does not specify whether to stop at the first match; this
// updates all of them (§9 open question) and returns how many entries
// changed.
func PatchValueInRelocationTable(f *File, offset uint64, oldAddend, newAddend int64) (int, error) {
	const op = "patch_value_in_relocation_table"
	matched := 0
	for _, c := range f.chunks {
		rela, ok := c.(*RelocationAddendTable)
		if !ok {
			continue
		}
		for i := range rela.Entries {
			if rela.Entries[i].Offset == offset && rela.Entries[i].Addend == oldAddend {
				rela.Entries[i].Addend = newAddend
				matched++
			}
		}
	}
	if matched == 0 {
		return 0, wrapf(op, WrongChunkKind, "no relocation-with-addend entry at offset %#x with addend %d", offset, oldAddend)
	}
	return matched, nil
}
