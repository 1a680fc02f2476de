// Package elf reads, mutates, and writes 64-bit little-endian ELF files.
//
// The file is modeled as an ordered, contiguous sequence of typed
// [Chunk]s (header, tables, sections, padding). Parsing decodes a byte
// buffer into a [File]; the instrumentation engine
// (AllocateFileMemory, ExtendStringTable, CreateSection, ...) mutates
// that chunk sequence while keeping program headers, section headers,
// and the dynamic table self-consistent; Serialize concatenates the
// chunks back into bytes.
//
// 32-bit and big-endian ELF are not supported. Writing of
// architecture-specific section types other than x86_64, DWARF/verdef
// content parsing, LOAD segment address mutation, and repair of
// embedded relative references are out of scope — see DESIGN.md.
package elf
