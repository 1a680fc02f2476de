package elf

import "github.com/laenix/elftools/internal/codec"

// Serialize concatenates every chunk of f, in order, into a freshly
// allocated byte slice (§4.4). The chunk sequence is the sole source
// of truth: Serialize does not recompute offsets or sizes, it trusts
// that the instrumentation engine kept them internally consistent.
func Serialize(f *File) ([]byte, error) {
	buf := make([]byte, f.ByteLength())
	w := codec.NewWriter(buf)
	for i := 0; i < f.ChunkCount(); i++ {
		f.Chunk(i).WriteInto(w)
	}
	return buf, nil
}
