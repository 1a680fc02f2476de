package elf

import "sort"

const sectionHeaderTableAlignment = 16

// checkLayout enforces the instrumentation engine's shared precondition
// (§4.6): the program header table exists, sits at chunk index 1, and
// its declared file offset equals the header size.
func checkLayout(f *File, op string) error {
	if f.phtIdx < 0 {
		return wrapf(op, UnsupportedLayout, "file has no program header table")
	}
	if f.phtIdx != 1 {
		return wrapf(op, UnsupportedLayout, "program header table is not chunk index 1")
	}
	if f.Header().Header.ProgramHeaderOffset != HeaderSize {
		return wrapf(op, UnsupportedLayout, "program header table file offset does not equal the header size")
	}
	return nil
}

// chunkSnapshot records the distinguished chunks' pointer identities
// before a mutation so indices into f.chunks — which a splice
// invalidates — can be recovered afterward by locating those same
// pointers in the new slice (§9: "stable indices" via pointer
// identity rather than re-derivation from scratch).
type chunkSnapshot struct {
	header  Chunk
	pht     Chunk
	sht     Chunk
	dyn     Chunk
	section []Chunk
}

func (f *File) snapshot() chunkSnapshot {
	s := chunkSnapshot{
		header: f.chunks[f.headerIdx],
		sht:    f.chunks[f.shtIdx],
	}
	if f.phtIdx >= 0 {
		s.pht = f.chunks[f.phtIdx]
	}
	if f.dynIdx >= 0 {
		s.dyn = f.chunks[f.dynIdx]
	}
	s.section = make([]Chunk, len(f.section))
	for i, ci := range f.section {
		if ci >= 0 {
			s.section[i] = f.chunks[ci]
		}
	}
	return s
}

func (f *File) restoreIndices(s chunkSnapshot) {
	pos := make(map[Chunk]int, len(f.chunks))
	for i, c := range f.chunks {
		pos[c] = i
	}
	f.headerIdx = pos[s.header]
	f.shtIdx = pos[s.sht]
	if s.pht != nil {
		f.phtIdx = pos[s.pht]
	} else {
		f.phtIdx = -1
	}
	if s.dyn != nil {
		f.dynIdx = pos[s.dyn]
	} else {
		f.dynIdx = -1
	}
	if len(f.section) != len(s.section) {
		f.section = make([]int, len(s.section))
	}
	for i, c := range s.section {
		if c == nil {
			f.section[i] = -1
			continue
		}
		f.section[i] = pos[c]
	}
}

// spliceChunks removes removeCount chunks starting at at and inserts
// repl in their place.
func (f *File) spliceChunks(at, removeCount int, repl ...Chunk) {
	tail := append([]Chunk(nil), f.chunks[at+removeCount:]...)
	f.chunks = append(f.chunks[:at:at], repl...)
	f.chunks = append(f.chunks, tail...)
}

// insertAt implements §4.6.1 phase 1: it inserts size zero-filled
// bytes at offset, which must land on a chunk boundary, inside a
// Dummy chunk, or at end of file. It returns the index of the new
// Dummy{size} chunk.
func (f *File) insertAt(offset uint64, size int) (int, error) {
	const op = "allocate_file_memory"
	var cum uint64
	for i, c := range f.chunks {
		n := uint64(c.ByteLength())
		if offset == cum {
			f.spliceChunks(i, 0, newDummy(size))
			return i, nil
		}
		if offset > cum && offset < cum+n {
			d, ok := c.(*DummyChunk)
			if !ok {
				return 0, wrapf(op, BadOffset, "offset %d falls inside a non-dummy chunk", offset)
			}
			left := int(offset - cum)
			right := d.ByteLength() - left
			repl := make([]Chunk, 0, 3)
			if left > 0 {
				repl = append(repl, newDummy(left))
			}
			newIdx := i + len(repl)
			repl = append(repl, newDummy(size))
			if right > 0 {
				repl = append(repl, newDummy(right))
			}
			f.spliceChunks(i, 1, repl...)
			return newIdx, nil
		}
		cum += n
	}
	if offset == cum {
		f.chunks = append(f.chunks, newDummy(size))
		return len(f.chunks) - 1, nil
	}
	return 0, wrapf(op, BadOffset, "offset %d is past end of file (%d)", offset, cum)
}

// sectionAlignment reports the realignment-relevant alignment
// constant for c: the fixed constant for the section header table
// chunk, or a section's declared alignment (treating 0 as 1). ok is
// false for chunks the realignment walk should skip over.
func sectionAlignment(shtChunk Chunk, chunkToSection map[Chunk]int, sht *SectionHeaderTableChunk, c Chunk) (align uint64, sectionIdx int, ok bool) {
	if c == shtChunk {
		return sectionHeaderTableAlignment, -1, true
	}
	if idx, found := chunkToSection[c]; found {
		a := sht.Entries[idx].Alignment
		if a == 0 {
			a = 1
		}
		return a, idx, true
	}
	return 0, 0, false
}

// AllocateFileMemory inserts size zero-filled bytes at offset,
// realigning displaced sections, updating program headers, section
// headers, and the dynamic table so every invariant of §3.2 still
// holds (§4.6.1). offset must be at least the end of the program
// header table.
func AllocateFileMemory(f *File, offset uint64, size int) error {
	const op = "allocate_file_memory"
	cleanupDummyChunks(f)
	if err := checkLayout(f, op); err != nil {
		return err
	}
	if size <= 0 {
		return wrapf(op, BadOffset, "size must be positive, got %d", size)
	}
	Logger().WithFields(map[string]any{"op": op, "offset": offset, "size": size}).Debug("allocating file memory")

	snap := f.snapshot()
	pht := snap.pht.(*ProgramHeaderTableChunk)
	sht := snap.sht.(*SectionHeaderTableChunk)
	header := snap.header.(*HeaderChunk)

	minOffset := uint64(HeaderSize) + uint64(pht.ByteLength())
	if offset < minOffset {
		return wrapf(op, BadOffset, "offset %d precedes the end of the program header table (%d)", offset, minOffset)
	}

	type affected struct {
		idx        int
		origOffset uint64
	}
	var moved []affected
	for i, s := range sht.Entries {
		if s.Type != SHTNoBits && s.FileOffset >= offset {
			moved = append(moved, affected{i, s.FileOffset})
		}
	}
	sort.Slice(moved, func(a, b int) bool { return moved[a].origOffset < moved[b].origOffset })

	chunkToSection := make(map[Chunk]int, len(snap.section))
	for i, c := range snap.section {
		if c != nil {
			chunkToSection[c] = i
		}
	}

	origShtOffset := header.Header.SectionHeaderOffset
	origPHT := make([]ProgramHeaderEntry, len(pht.Entries))
	copy(origPHT, pht.Entries)

	// Phase 1: insert.
	insertIdx, err := f.insertAt(offset, size)
	if err != nil {
		return err
	}

	// Phase 3: walk forward realigning (phase 2's section snapshot was
	// already taken above, before the insertion moved anything).
	remaining := int64(size)
	i := insertIdx + 1
	for remaining > 0 && i < len(f.chunks) {
		if _, ok := f.chunks[i].(*DummyChunk); ok && i+1 < len(f.chunks) {
			if d2, ok2 := f.chunks[i+1].(*DummyChunk); ok2 {
				d1 := f.chunks[i].(*DummyChunk)
				d1.Data = append(d1.Data, d2.Data...)
				f.spliceChunks(i+1, 1)
				continue
			}
		}

		cur := f.chunks[i]
		base := f.ChunkOffset(i)

		if dummy, ok := cur.(*DummyChunk); ok {
			if i+1 >= len(f.chunks) {
				break
			}
			next := f.chunks[i+1]
			A, _, relevant := sectionAlignment(snap.sht, chunkToSection, sht, next)
			if !relevant {
				i++
				continue
			}
			dlen := uint64(dummy.ByteLength())
			currentOffset := base + dlen
			errAlign := currentOffset % A
			if errAlign < dlen {
				dummy.Data = dummy.Data[:len(dummy.Data)-int(errAlign)]
				for remaining > 0 && A < uint64(len(dummy.Data)) {
					dummy.Data = dummy.Data[:len(dummy.Data)-int(A)]
					remaining -= int64(A)
				}
			} else {
				grow := A - errAlign
				dummy.Data = append(dummy.Data, make([]byte, grow)...)
				remaining += int64(grow)
			}
			if dummy.ByteLength() == 0 {
				f.spliceChunks(i, 1)
				continue
			}
			i++
			continue
		}

		A, _, relevant := sectionAlignment(snap.sht, chunkToSection, sht, cur)
		if relevant {
			errAlign := base % A
			if errAlign != 0 {
				grow := A - errAlign
				f.spliceChunks(i, 0, newDummy(int(grow)))
				remaining += int64(grow)
				i++
				continue
			}
		}
		i++
	}

	// Recover actual new positions to compute per-section deltas: more
	// robust than accumulating local shift corrections, since every
	// local correction during the walk above is relative to slack
	// already shifted into place by earlier insertions.
	pos := make(map[Chunk]int, len(f.chunks))
	for idx, c := range f.chunks {
		pos[c] = idx
	}
	sectionDelta := make(map[int]int64, len(moved))
	for _, m := range moved {
		newOffset := f.ChunkOffset(pos[snap.section[m.idx]])
		sectionDelta[m.idx] = int64(newOffset) - int64(m.origOffset)
	}
	newShtOffset := f.ChunkOffset(pos[snap.sht])
	shtDelta := int64(newShtOffset) - int64(origShtOffset)

	// Phase 4: update segments via the three sentinels plus every
	// section, by original position.
	type item struct {
		offset uint64
		delta  int64
	}
	items := []item{
		{0, 0},
		{header.Header.ProgramHeaderOffset, 0},
		{origShtOffset, shtDelta},
	}
	for i, s := range sht.Entries {
		if s.Type == SHTNoBits {
			continue
		}
		items = append(items, item{s.FileOffset, sectionDelta[i]})
	}
	sort.Slice(items, func(a, b int) bool { return items[a].offset < items[b].offset })

	for idx := range pht.Entries {
		p := &pht.Entries[idx]
		lo, hi := p.FileOffset, p.FileOffset+p.FileSize
		firstIdx, lastIdx := -1, -1
		for ii, it := range items {
			if it.offset >= lo && it.offset < hi {
				if firstIdx == -1 {
					firstIdx = ii
				}
				lastIdx = ii
			}
		}
		if firstIdx == -1 {
			continue
		}
		if d1 := items[firstIdx].delta; d1 != 0 {
			p.FileOffset = uint64(int64(p.FileOffset) + d1)
			if p.Type != PTLoad {
				p.VirtualAddress = uint64(int64(p.VirtualAddress) + d1)
				p.PhysicalAddress = uint64(int64(p.PhysicalAddress) + d1)
			}
		}
		if lastIdx != firstIdx {
			if d2 := items[lastIdx].delta; d2 != 0 {
				p.FileSize = uint64(int64(p.FileSize) + d2)
				p.MemorySize = uint64(int64(p.MemorySize) + d2)
			}
		}
	}

	// Phase 5: update section headers, touching virtual_address only
	// for sections inside a non-LOAD segment (per the source's later,
	// more principled refactor — see DESIGN.md).
	for i := range sht.Entries {
		d, ok := sectionDelta[i]
		if !ok || d == 0 {
			continue
		}
		s := &sht.Entries[i]
		origOffset := s.FileOffset
		s.FileOffset = uint64(int64(s.FileOffset) + d)
		for _, p := range origPHT {
			if p.Type != PTLoad && origOffset >= p.FileOffset && origOffset < p.FileOffset+p.FileSize {
				s.Address = uint64(int64(s.Address) + d)
				break
			}
		}
	}

	// Phase 6: patch self-referential dynamic table entries.
	if shtDelta != 0 {
		header.Header.SectionHeaderOffset = uint64(int64(header.Header.SectionHeaderOffset) + shtDelta)
	}
	if snap.dyn != nil {
		dyn := snap.dyn.(*DynamicTableChunk)
		origOffsetOf := make(map[int]uint64, len(moved))
		for _, m := range moved {
			origOffsetOf[m.idx] = m.origOffset
		}
		type remapRange struct{ origOffset, newOffset, size uint64 }
		ranges := make([]remapRange, 0, len(sht.Entries))
		for i, s := range sht.Entries {
			if s.Type == SHTNoBits {
				continue
			}
			orig, wasMoved := origOffsetOf[i]
			if !wasMoved {
				orig = s.FileOffset
			}
			ranges = append(ranges, remapRange{origOffset: orig, newOffset: s.FileOffset, size: s.Size})
		}
		remap := func(v uint64) uint64 {
			for _, r := range ranges {
				if v >= r.origOffset && v < r.origOffset+r.size {
					return v + (r.newOffset - r.origOffset)
				}
			}
			return v
		}
		for i := range dyn.Entries {
			if remappedDynamicTags[dyn.Entries[i].Tag] {
				dyn.Entries[i].Value = remap(dyn.Entries[i].Value)
			}
		}
	}

	f.restoreIndices(snap)
	cleanupDummyChunks(f)
	return nil
}

// cleanupDummyChunks coalesces consecutive Dummy chunks and drops
// zero-length ones (§4.6.8). AllocateFileMemory and the Extend*/
// CreateSection operations call this on entry; the byte-patching
// operations (GetRawBytesAtOffset, PatchRawBytesAt*,
// PatchValueInRelocationTable) do not.
func cleanupDummyChunks(f *File) {
	if f.headerIdx < 0 {
		return
	}
	snap := f.snapshot()
	out := make([]Chunk, 0, len(f.chunks))
	for _, c := range f.chunks {
		if d, ok := c.(*DummyChunk); ok {
			if d.ByteLength() == 0 {
				continue
			}
			if len(out) > 0 {
				if prev, ok2 := out[len(out)-1].(*DummyChunk); ok2 {
					prev.Data = append(prev.Data, d.Data...)
					continue
				}
			}
			out = append(out, d)
			continue
		}
		out = append(out, c)
	}
	f.chunks = out
	f.restoreIndices(snap)
}
