//go:build !linux && !darwin

package elf

// LoadMapped falls back to [Load] on platforms without the unix mmap
// syscalls this package knows how to use.
func LoadMapped(path string) (*File, error) {
	return Load(path)
}
