package elf

import "github.com/laenix/elftools/internal/codec"

// ProgramHeaderTableChunk is the ordered list of segment descriptors
// plus the per-entry on-disk stride (§3.1). When present it is the
// chunk immediately after the header (§3.2 I2).
type ProgramHeaderTableChunk struct {
	Entries   []ProgramHeaderEntry
	EntrySize int // on-disk stride; >= ProgramHeaderEntrySize (§3.2 I8)
}

func (c *ProgramHeaderTableChunk) ByteLength() int { return len(c.Entries) * c.EntrySize }

func (c *ProgramHeaderTableChunk) WriteInto(w *codec.Writer) {
	for _, e := range c.Entries {
		e.marshal(w, c.EntrySize)
	}
}

// SectionHeaderTableChunk is the ordered list of section descriptors
// plus the per-entry on-disk stride. It appears exactly once (§3.2 I2).
type SectionHeaderTableChunk struct {
	Entries   []SectionHeaderEntry
	EntrySize int
}

func (c *SectionHeaderTableChunk) ByteLength() int { return len(c.Entries) * c.EntrySize }

func (c *SectionHeaderTableChunk) WriteInto(w *codec.Writer) {
	for _, e := range c.Entries {
		e.marshal(w, c.EntrySize)
	}
}

// DynamicTableChunk is the ordered list of (tag, value) pairs that
// make up .dynamic, plus per-entry stride and trailing padding count.
type DynamicTableChunk struct {
	Entries      []DynamicEntry
	EntrySize    int
	TrailingPad  int // zero bytes after the last entry, preserved verbatim on write
}

func (c *DynamicTableChunk) ByteLength() int {
	return len(c.Entries)*c.EntrySize + c.TrailingPad
}

func (c *DynamicTableChunk) WriteInto(w *codec.Writer) {
	for _, e := range c.Entries {
		e.marshal(w, c.EntrySize)
	}
	w.Zero(c.TrailingPad)
}

// Get returns every value recorded for tag, in table order.
func (c *DynamicTableChunk) Get(tag DynamicTag) []uint64 {
	var vs []uint64
	for _, e := range c.Entries {
		if e.Tag == tag {
			vs = append(vs, e.Value)
		}
	}
	return vs
}

// First returns the first value recorded for tag, if any.
func (c *DynamicTableChunk) First(tag DynamicTag) (uint64, bool) {
	for _, e := range c.Entries {
		if e.Tag == tag {
			return e.Value, true
		}
	}
	return 0, false
}

// SymbolTableChunk is the ordered list of symbol entries plus
// per-entry stride and trailing padding.
type SymbolTableChunk struct {
	Entries     []SymbolEntry
	EntrySize   int
	TrailingPad int
}

func (c *SymbolTableChunk) ByteLength() int {
	return len(c.Entries)*c.EntrySize + c.TrailingPad
}

func (c *SymbolTableChunk) WriteInto(w *codec.Writer) {
	for _, e := range c.Entries {
		e.marshal(w, c.EntrySize)
	}
	w.Zero(c.TrailingPad)
}

// LocalCount returns the number of entries with bind Local, which by
// ELF convention (§4.6.3) must all precede any Global/Weak entry and
// equals the section header's Info field.
func (c *SymbolTableChunk) LocalCount() int {
	n := 0
	for _, e := range c.Entries {
		if SymbolBindOf(e.Info) == BindLocal {
			n++
		}
	}
	return n
}

// RelocationTable is the ordered list of relocation-without-addend
// entries plus stride and trailing padding.
type RelocationTable struct {
	Entries     []RelEntry
	EntrySize   int
	TrailingPad int
}

func (c *RelocationTable) ByteLength() int {
	return len(c.Entries)*c.EntrySize + c.TrailingPad
}

func (c *RelocationTable) WriteInto(w *codec.Writer) {
	for _, e := range c.Entries {
		e.marshal(w, c.EntrySize)
	}
	w.Zero(c.TrailingPad)
}

// RelocationAddendTable is the ordered list of relocation-with-addend
// entries plus stride and trailing padding.
type RelocationAddendTable struct {
	Entries     []RelaEntry
	EntrySize   int
	TrailingPad int
}

func (c *RelocationAddendTable) ByteLength() int {
	return len(c.Entries)*c.EntrySize + c.TrailingPad
}

func (c *RelocationAddendTable) WriteInto(w *codec.Writer) {
	for _, e := range c.Entries {
		e.marshal(w, c.EntrySize)
	}
	w.Zero(c.TrailingPad)
}
