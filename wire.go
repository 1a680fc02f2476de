package elf

import "github.com/laenix/elftools/internal/codec"

// Wire-format sizes (§6.1). These are the canonical field widths;
// on-disk entries may be padded to a larger per-entry stride (§3.2 I8).
const (
	HeaderSize             = 64
	ProgramHeaderEntrySize = 56
	SectionHeaderEntrySize = 64
	DynamicEntrySize       = 16
	SymbolEntrySize        = 24
	RelEntrySize           = 16
	RelaEntrySize          = 24

	magic0, magic1, magic2, magic3 = 0x7f, 'E', 'L', 'F'
)

// Ident is the 16-byte e_ident block embedded in Header.
type Ident struct {
	Magic      [4]byte
	Class      Class
	Encoding   Encoding
	Version    uint8
	OSABI      OSABI
	ABIVersion uint8
	pad        [7]byte
}

// Header is the fixed 64-byte ELF identification and file-level
// metadata block (§6.1).
type Header struct {
	Ident               Ident
	Type                ObjectType
	Machine             Machine
	ObjectVersion       uint32
	Entry               uint64
	ProgramHeaderOffset uint64
	SectionHeaderOffset uint64
	Flags               uint32
	EHSize              uint16
	PHEntSize           uint16
	PHNum               uint16
	SHEntSize           uint16
	SHNum               uint16
	SHStrNdx            uint16
}

func unmarshalHeader(r *codec.Reader) (Header, error) {
	var h Header
	magic, err := r.Bytes(4)
	if err != nil {
		return h, err
	}
	copy(h.Ident.Magic[:], magic)
	b, err := r.U8()
	if err != nil {
		return h, err
	}
	h.Ident.Class = Class(b)
	if b, err = r.U8(); err != nil {
		return h, err
	}
	h.Ident.Encoding = Encoding(b)
	if b, err = r.U8(); err != nil {
		return h, err
	}
	h.Ident.Version = b
	if b, err = r.U8(); err != nil {
		return h, err
	}
	h.Ident.OSABI = OSABI(b)
	if b, err = r.U8(); err != nil {
		return h, err
	}
	h.Ident.ABIVersion = b
	if err := r.Skip(7); err != nil {
		return h, err
	}
	u16 := func(dst *uint16) error {
		v, err := r.U16()
		*dst = v
		return err
	}
	u32 := func(dst *uint32) error {
		v, err := r.U32()
		*dst = v
		return err
	}
	u64 := func(dst *uint64) error {
		v, err := r.U64()
		*dst = v
		return err
	}
	var typ, mach uint16
	if err := u16(&typ); err != nil {
		return h, err
	}
	h.Type = ObjectType(typ)
	if err := u16(&mach); err != nil {
		return h, err
	}
	h.Machine = Machine(mach)
	if err := u32(&h.ObjectVersion); err != nil {
		return h, err
	}
	if err := u64(&h.Entry); err != nil {
		return h, err
	}
	if err := u64(&h.ProgramHeaderOffset); err != nil {
		return h, err
	}
	if err := u64(&h.SectionHeaderOffset); err != nil {
		return h, err
	}
	if err := u32(&h.Flags); err != nil {
		return h, err
	}
	if err := u16(&h.EHSize); err != nil {
		return h, err
	}
	if err := u16(&h.PHEntSize); err != nil {
		return h, err
	}
	if err := u16(&h.PHNum); err != nil {
		return h, err
	}
	if err := u16(&h.SHEntSize); err != nil {
		return h, err
	}
	if err := u16(&h.SHNum); err != nil {
		return h, err
	}
	if err := u16(&h.SHStrNdx); err != nil {
		return h, err
	}
	return h, nil
}

func (h Header) marshal(w *codec.Writer) {
	w.Bytes(h.Ident.Magic[:])
	w.U8(uint8(h.Ident.Class))
	w.U8(uint8(h.Ident.Encoding))
	w.U8(h.Ident.Version)
	w.U8(uint8(h.Ident.OSABI))
	w.U8(h.Ident.ABIVersion)
	w.Zero(7)
	w.U16(uint16(h.Type))
	w.U16(uint16(h.Machine))
	w.U32(h.ObjectVersion)
	w.U64(h.Entry)
	w.U64(h.ProgramHeaderOffset)
	w.U64(h.SectionHeaderOffset)
	w.U32(h.Flags)
	w.U16(h.EHSize)
	w.U16(h.PHEntSize)
	w.U16(h.PHNum)
	w.U16(h.SHEntSize)
	w.U16(h.SHNum)
	w.U16(h.SHStrNdx)
}

// ProgramHeaderEntry describes one segment (§6.1, 56 canonical bytes).
type ProgramHeaderEntry struct {
	Type            SegmentType
	Flags           SegmentFlag
	FileOffset      uint64
	VirtualAddress  uint64
	PhysicalAddress uint64
	FileSize        uint64
	MemorySize      uint64
	Alignment       uint64
}

func unmarshalProgramHeaderEntry(r *codec.Reader, stride int) (ProgramHeaderEntry, error) {
	var p ProgramHeaderEntry
	start := r.Offset
	typ, err := r.U32()
	if err != nil {
		return p, err
	}
	p.Type = SegmentType(typ)
	flags, err := r.U32()
	if err != nil {
		return p, err
	}
	p.Flags = SegmentFlag(flags)
	for _, dst := range []*uint64{&p.FileOffset, &p.VirtualAddress, &p.PhysicalAddress, &p.FileSize, &p.MemorySize, &p.Alignment} {
		v, err := r.U64()
		if err != nil {
			return p, err
		}
		*dst = v
	}
	if err := r.Skip(stride - (r.Offset - start)); err != nil {
		return p, err
	}
	return p, nil
}

func (p ProgramHeaderEntry) marshal(w *codec.Writer, stride int) {
	start := w.Offset
	w.U32(uint32(p.Type))
	w.U32(uint32(p.Flags))
	w.U64(p.FileOffset)
	w.U64(p.VirtualAddress)
	w.U64(p.PhysicalAddress)
	w.U64(p.FileSize)
	w.U64(p.MemorySize)
	w.U64(p.Alignment)
	w.Zero(stride - (w.Offset - start))
}

// SectionHeaderEntry describes one section (§6.1, 64 canonical bytes).
type SectionHeaderEntry struct {
	NameOffset uint32
	Type       SectionType
	Flags      SectionFlag
	Address    uint64
	FileOffset uint64
	Size       uint64
	Link       uint32
	Info       uint32
	Alignment  uint64
	EntSize    uint64
}

func unmarshalSectionHeaderEntry(r *codec.Reader, stride int) (SectionHeaderEntry, error) {
	var s SectionHeaderEntry
	start := r.Offset
	v32, err := r.U32()
	if err != nil {
		return s, err
	}
	s.NameOffset = v32
	if v32, err = r.U32(); err != nil {
		return s, err
	}
	s.Type = SectionType(v32)
	v64, err := r.U64()
	if err != nil {
		return s, err
	}
	s.Flags = SectionFlag(v64)
	for _, dst := range []*uint64{&s.Address, &s.FileOffset, &s.Size} {
		v, err := r.U64()
		if err != nil {
			return s, err
		}
		*dst = v
	}
	if v32, err = r.U32(); err != nil {
		return s, err
	}
	s.Link = v32
	if v32, err = r.U32(); err != nil {
		return s, err
	}
	s.Info = v32
	for _, dst := range []*uint64{&s.Alignment, &s.EntSize} {
		v, err := r.U64()
		if err != nil {
			return s, err
		}
		*dst = v
	}
	if err := r.Skip(stride - (r.Offset - start)); err != nil {
		return s, err
	}
	return s, nil
}

func (s SectionHeaderEntry) marshal(w *codec.Writer, stride int) {
	start := w.Offset
	w.U32(s.NameOffset)
	w.U32(uint32(s.Type))
	w.U64(uint64(s.Flags))
	w.U64(s.Address)
	w.U64(s.FileOffset)
	w.U64(s.Size)
	w.U32(s.Link)
	w.U32(s.Info)
	w.U64(s.Alignment)
	w.U64(s.EntSize)
	w.Zero(stride - (w.Offset - start))
}

// DynamicEntry is one (tag, value) pair of the dynamic table
// (§6.1, 16 canonical bytes).
type DynamicEntry struct {
	Tag   DynamicTag
	Value uint64
}

func unmarshalDynamicEntry(r *codec.Reader, stride int) (DynamicEntry, error) {
	var d DynamicEntry
	start := r.Offset
	tag, err := r.I64()
	if err != nil {
		return d, err
	}
	d.Tag = DynamicTag(tag)
	if d.Value, err = r.U64(); err != nil {
		return d, err
	}
	if err := r.Skip(stride - (r.Offset - start)); err != nil {
		return d, err
	}
	return d, nil
}

func (d DynamicEntry) marshal(w *codec.Writer, stride int) {
	start := w.Offset
	w.I64(int64(d.Tag))
	w.U64(d.Value)
	w.Zero(stride - (w.Offset - start))
}

// SymbolEntry is one symbol table entry (§6.1, 24 canonical bytes).
type SymbolEntry struct {
	NameOffset uint32
	Info       uint8
	Visibility SymbolVisibility
	Section    uint16
	Value      uint64
	Size       uint64
}

func unmarshalSymbolEntry(r *codec.Reader, stride int) (SymbolEntry, error) {
	var s SymbolEntry
	start := r.Offset
	v32, err := r.U32()
	if err != nil {
		return s, err
	}
	s.NameOffset = v32
	info, err := r.U8()
	if err != nil {
		return s, err
	}
	s.Info = info
	vis, err := r.U8()
	if err != nil {
		return s, err
	}
	s.Visibility = SymbolVisibility(vis)
	sec, err := r.U16()
	if err != nil {
		return s, err
	}
	s.Section = sec
	if s.Value, err = r.U64(); err != nil {
		return s, err
	}
	if s.Size, err = r.U64(); err != nil {
		return s, err
	}
	if err := r.Skip(stride - (r.Offset - start)); err != nil {
		return s, err
	}
	return s, nil
}

func (s SymbolEntry) marshal(w *codec.Writer, stride int) {
	start := w.Offset
	w.U32(s.NameOffset)
	w.U8(s.Info)
	w.U8(uint8(s.Visibility))
	w.U16(s.Section)
	w.U64(s.Value)
	w.U64(s.Size)
	w.Zero(stride - (w.Offset - start))
}

// RelEntry is a relocation entry without an addend (§6.1, 16 bytes).
type RelEntry struct {
	Offset uint64
	Info   uint64
}

func unmarshalRelEntry(r *codec.Reader, stride int) (RelEntry, error) {
	var e RelEntry
	start := r.Offset
	var err error
	if e.Offset, err = r.U64(); err != nil {
		return e, err
	}
	if e.Info, err = r.U64(); err != nil {
		return e, err
	}
	if err := r.Skip(stride - (r.Offset - start)); err != nil {
		return e, err
	}
	return e, nil
}

func (e RelEntry) marshal(w *codec.Writer, stride int) {
	start := w.Offset
	w.U64(e.Offset)
	w.U64(e.Info)
	w.Zero(stride - (w.Offset - start))
}

// RelaEntry is a relocation entry with an explicit addend (§6.1, 24 bytes).
type RelaEntry struct {
	Offset uint64
	Info   uint64
	Addend int64
}

func unmarshalRelaEntry(r *codec.Reader, stride int) (RelaEntry, error) {
	var e RelaEntry
	start := r.Offset
	var err error
	if e.Offset, err = r.U64(); err != nil {
		return e, err
	}
	if e.Info, err = r.U64(); err != nil {
		return e, err
	}
	if e.Addend, err = r.I64(); err != nil {
		return e, err
	}
	if err := r.Skip(stride - (r.Offset - start)); err != nil {
		return e, err
	}
	return e, nil
}

func (e RelaEntry) marshal(w *codec.Writer, stride int) {
	start := w.Offset
	w.U64(e.Offset)
	w.U64(e.Info)
	w.I64(e.Addend)
	w.Zero(stride - (w.Offset - start))
}

// RelocationSymbol extracts the symbol table index from a relocation
// info field (high 32 bits).
func RelocationSymbol(info uint64) uint32 { return uint32(info >> 32) }

// RelocationType extracts the relocation type from a relocation info
// field (low 32 bits).
func RelocationType(info uint64) uint32 { return uint32(info) }

// MakeRelocationInfo packs a symbol index and type into an info field.
func MakeRelocationInfo(sym uint32, typ uint32) uint64 {
	return uint64(sym)<<32 | uint64(typ)
}
