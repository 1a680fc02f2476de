// Command elfinfo parses an ELF64-LE file and prints its chunk layout:
// one line per chunk, in file order, with offset, length, and kind, plus
// a section table resolved through the section header string table.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/laenix/elftools"
)

func main() {
	var (
		filePath string
		mapped   bool
		sections bool
	)

	flag.StringVar(&filePath, "file", "", "path to the ELF file (required)")
	flag.BoolVar(&mapped, "mmap", false, "load via mmap instead of a full read")
	flag.BoolVar(&sections, "sections", true, "print the section table")
	flag.Parse()

	if filePath == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -file=<path> [-mmap] [-sections=false]\n", os.Args[0])
		os.Exit(1)
	}

	load := elf.Load
	if mapped {
		load = elf.LoadMapped
	}

	f, err := load(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "elfinfo: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s: %d chunks, %d bytes\n", filePath, f.ChunkCount(), f.ByteLength())
	for i := 0; i < f.ChunkCount(); i++ {
		c := f.Chunk(i)
		fmt.Printf("  [%3d] offset=%-10d length=%-8d %T\n", i, f.ChunkOffset(i), c.ByteLength(), c)
	}

	if !sections {
		return
	}
	fmt.Println("sections:")
	for i := 0; i < f.SectionCount(); i++ {
		name := f.SectionDisplayName(i)
		fmt.Printf("  [%3d] %-20s\n", i, name)
	}
}
