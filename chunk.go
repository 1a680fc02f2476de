package elf

import "github.com/laenix/elftools/internal/codec"

// Chunk is a contiguous, semantically tagged file region (§3.1). The
// chunk sequence in a [File] is ordered, contiguous, and covers every
// byte of the file (§3.2 I1): any inter-region hole is itself a
// Chunk, of kind Dummy.
//
// Go has no tagged union; this mirrors the design note's "arena-style
// storage with stable indices" approach via an interface implemented
// by one concrete type per variant, dispatched with type switches
// where the instrumentation engine needs to distinguish them.
type Chunk interface {
	// ByteLength is this chunk's exact on-disk size, including any
	// per-entry padding and trailing padding.
	ByteLength() int
	// WriteInto writes exactly ByteLength() bytes. The caller
	// guarantees w has that much room left.
	WriteInto(w *codec.Writer)
}

// HeaderChunk is the 64-byte ELF identification and file-level
// metadata block. Exactly one exists, at chunk index 0 (§3.2 I2).
type HeaderChunk struct {
	Header Header
}

func (c *HeaderChunk) ByteLength() int { return HeaderSize }

func (c *HeaderChunk) WriteInto(w *codec.Writer) { c.Header.marshal(w) }

// DummyChunk is uninterpreted, typically inter-section alignment
// padding, used by the instrumentation engine as allocation slack.
type DummyChunk struct {
	Data []byte
}

func (c *DummyChunk) ByteLength() int { return len(c.Data) }

func (c *DummyChunk) WriteInto(w *codec.Writer) { w.Bytes(c.Data) }

// newDummy returns a DummyChunk of n zero bytes.
func newDummy(n int) *DummyChunk { return &DummyChunk{Data: make([]byte, n)} }

// RawSection is an opaque byte blob: any section whose type does not
// warrant structural interpretation (or one the parser chose not to
// interpret further than its raw bytes).
type RawSection struct {
	Data []byte
}

func (c *RawSection) ByteLength() int { return len(c.Data) }

func (c *RawSection) WriteInto(w *codec.Writer) { w.Bytes(c.Data) }

// StringTable is a flat NUL-delimited ASCII byte blob (§3.1). Lookups
// by offset read until a NUL.
type StringTable struct {
	Data []byte
}

func (c *StringTable) ByteLength() int { return len(c.Data) }

func (c *StringTable) WriteInto(w *codec.Writer) { w.Bytes(c.Data) }

// String returns the NUL-terminated string starting at offset, not
// including the terminator. Returns "" if offset is out of range.
func (c *StringTable) String(offset uint32) string {
	if int(offset) >= len(c.Data) {
		return ""
	}
	end := int(offset)
	for end < len(c.Data) && c.Data[end] != 0 {
		end++
	}
	return string(c.Data[offset:end])
}

// Notes decodes a SHT_NOTE section into its (name, type, description)
// entries (§3.1, supplemented per SPEC_FULL.md — the wire layout is
// unambiguous 4-byte-aligned Elf32_Nhdr-style entries per GNU
// convention even inside an ELF64 file).
type Notes struct {
	Raw     []byte
	Entries []NoteEntry
}

// NoteEntry is one decoded note record.
type NoteEntry struct {
	Name        string
	Type        uint32
	Description []byte
}

func (c *Notes) ByteLength() int { return len(c.Raw) }

func (c *Notes) WriteInto(w *codec.Writer) { w.Bytes(c.Raw) }

func align4(n int) int { return (n + 3) &^ 3 }

func parseNotes(raw []byte) []NoteEntry {
	var entries []NoteEntry
	data := raw
	for len(data) >= 12 {
		r := codec.NewReader(data)
		nameSize, err1 := r.U32()
		descSize, err2 := r.U32()
		typ, err3 := r.U32()
		if err1 != nil || err2 != nil || err3 != nil {
			break
		}
		off := 12
		nameEnd := off + int(nameSize)
		if nameEnd > len(data) {
			break
		}
		name := ""
		if nameSize > 0 {
			name = string(trimNUL(data[off:nameEnd]))
		}
		descStart := off + align4(int(nameSize))
		descEnd := descStart + int(descSize)
		if descStart > len(data) || descEnd > len(data) {
			break
		}
		desc := append([]byte(nil), data[descStart:descEnd]...)
		entries = append(entries, NoteEntry{Name: name, Type: typ, Description: desc})
		next := align4(descEnd)
		if next <= 0 || next > len(data) {
			break
		}
		data = data[next:]
	}
	return entries
}

func trimNUL(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return b
}

// Verdef is the opaque .gnu.version_d section: a blob tagged with its
// semantic type (§1: version-definition internals are not parsed
// beyond what instrumentation needs, which is none — it is relocated
// as a section like any other).
type Verdef struct {
	Data []byte
}

func (c *Verdef) ByteLength() int { return len(c.Data) }

func (c *Verdef) WriteInto(w *codec.Writer) { w.Bytes(c.Data) }

// Verneed is the opaque .gnu.version_r section.
type Verneed struct {
	Data []byte
}

func (c *Verneed) ByteLength() int { return len(c.Data) }

func (c *Verneed) WriteInto(w *codec.Writer) { w.Bytes(c.Data) }
