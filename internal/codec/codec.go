// Package codec provides little-endian primitive reads/writes over a
// byte window with a running offset, the lowest layer of the ELF
// chunk model (binary codec, ~3% of the system per the design).
//
// Every multi-byte field in ELF64-LE is little-endian; Reader and
// Writer never touch any other byte order.
package codec

import (
	"encoding/binary"
	"errors"
)

// ErrTruncated is returned by every Reader method when the requested
// read would run past the end of the underlying buffer.
var ErrTruncated = errors.New("truncated")

// Reader is a cursor over a byte slice. It does not copy the slice;
// callers must not mutate it while a Reader is in use.
type Reader struct {
	Buf    []byte
	Offset int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{Buf: buf}
}

// NewReaderAt returns a Reader over buf positioned at offset.
func NewReaderAt(buf []byte, offset int) *Reader {
	return &Reader{Buf: buf, Offset: offset}
}

// Remaining reports how many bytes are left to read.
func (r *Reader) Remaining() int {
	n := len(r.Buf) - r.Offset
	if n < 0 {
		return 0
	}
	return n
}

func (r *Reader) require(n int) error {
	if n < 0 || r.Offset < 0 || r.Offset+n > len(r.Buf) {
		return ErrTruncated
	}
	return nil
}

// U8 reads one byte and advances the cursor.
func (r *Reader) U8() (uint8, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	v := r.Buf[r.Offset]
	r.Offset++
	return v, nil
}

// U16 reads a little-endian uint16 and advances the cursor.
func (r *Reader) U16() (uint16, error) {
	if err := r.require(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.Buf[r.Offset:])
	r.Offset += 2
	return v, nil
}

// U32 reads a little-endian uint32 and advances the cursor.
func (r *Reader) U32() (uint32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.Buf[r.Offset:])
	r.Offset += 4
	return v, nil
}

// U64 reads a little-endian uint64 and advances the cursor.
func (r *Reader) U64() (uint64, error) {
	if err := r.require(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.Buf[r.Offset:])
	r.Offset += 8
	return v, nil
}

// I64 reads a little-endian int64 and advances the cursor.
func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

// Bytes reads n raw bytes and advances the cursor. The returned slice
// aliases the underlying buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	v := r.Buf[r.Offset : r.Offset+n]
	r.Offset += n
	return v, nil
}

// Skip advances the cursor by n bytes without reading them.
func (r *Reader) Skip(n int) error {
	if err := r.require(n); err != nil {
		return err
	}
	r.Offset += n
	return nil
}

// Writer is a cursor over a caller-owned, pre-sized byte slice.
// Callers of write_into-style methods guarantee capacity; Writer
// panics on overflow rather than returning an error, mirroring that
// contract (§4.2: "the caller guarantees capacity").
type Writer struct {
	Buf    []byte
	Offset int
}

// NewWriter returns a Writer over buf, writing from offset 0.
func NewWriter(buf []byte) *Writer {
	return &Writer{Buf: buf}
}

func (w *Writer) reserve(n int) {
	if w.Offset+n > len(w.Buf) {
		panic("codec: write past end of buffer")
	}
}

// U8 writes one byte and advances the cursor.
func (w *Writer) U8(v uint8) {
	w.reserve(1)
	w.Buf[w.Offset] = v
	w.Offset++
}

// U16 writes a little-endian uint16 and advances the cursor.
func (w *Writer) U16(v uint16) {
	w.reserve(2)
	binary.LittleEndian.PutUint16(w.Buf[w.Offset:], v)
	w.Offset += 2
}

// U32 writes a little-endian uint32 and advances the cursor.
func (w *Writer) U32(v uint32) {
	w.reserve(4)
	binary.LittleEndian.PutUint32(w.Buf[w.Offset:], v)
	w.Offset += 4
}

// U64 writes a little-endian uint64 and advances the cursor.
func (w *Writer) U64(v uint64) {
	w.reserve(8)
	binary.LittleEndian.PutUint64(w.Buf[w.Offset:], v)
	w.Offset += 8
}

// I64 writes a little-endian int64 and advances the cursor.
func (w *Writer) I64(v int64) {
	w.U64(uint64(v))
}

// Bytes copies v into the buffer and advances the cursor.
func (w *Writer) Bytes(v []byte) {
	w.reserve(len(v))
	copy(w.Buf[w.Offset:], v)
	w.Offset += len(v)
}

// Zero writes n zero bytes and advances the cursor, used for the
// padding region between a table entry's canonical fields and its
// declared stride.
func (w *Writer) Zero(n int) {
	w.reserve(n)
	clear(w.Buf[w.Offset : w.Offset+n])
	w.Offset += n
}
