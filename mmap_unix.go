//go:build linux || darwin

package elf

import (
	"os"

	"golang.org/x/sys/unix"
)

// LoadMapped reads and parses path like [Load], but maps the file
// read-only instead of copying it with os.ReadFile, for large binaries
// where an extra full-file copy is wasteful. The mapping is unmapped
// before this function returns; [Parse] copies every chunk's bytes out
// of it as it decodes, so the returned *File does not depend on it.
func LoadMapped(path string) (*File, error) {
	const op = "load_mapped"
	fh, err := os.Open(path)
	if err != nil {
		return nil, newErr(op, Truncated, err)
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return nil, newErr(op, Truncated, err)
	}
	size := info.Size()
	if size == 0 {
		return nil, wrapf(op, Truncated, "empty file")
	}

	data, err := unix.Mmap(int(fh.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, newErr(op, Truncated, err)
	}
	defer unix.Munmap(data)

	// Parse copies every chunk's bytes out of data into its own
	// storage, so the mapping need not outlive this call.
	return Parse(data)
}
