// Package elfx loads the engine library from disk so its code can be
// scanned alongside an offline memory image.
package elfx

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"

	"uedump/internal/disasm"
	"uedump/internal/memory"
)

var (
	ErrNotELF    = errors.New("elfx: not an ELF file")
	ErrNotARM    = errors.New("elfx: not an ARM or ARM64 object")
	ErrNotShared = errors.New("elfx: not a shared object")
)

// File is an open engine library.
type File struct {
	ELF *elf.File
	raw io.ReaderAt
	c   io.Closer
}

// Open opens path and checks that it is an ARM or ARM64 shared object.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfx: open: %w", err)
	}
	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}
	if ef.Machine != elf.EM_AARCH64 && ef.Machine != elf.EM_ARM {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotARM, ef.Machine)
	}
	if ef.Type != elf.ET_DYN {
		f.Close()
		return nil, ErrNotShared
	}
	return &File{ELF: ef, raw: f, c: f}, nil
}

func (f *File) Close() error { return f.c.Close() }

// Arch returns the instruction set of the library.
func (f *File) Arch() disasm.Arch {
	if f.ELF.Machine == elf.EM_ARM {
		return disasm.ARM
	}
	return disasm.ARM64
}

// Segment is a PT_LOAD segment.
type Segment struct {
	Vaddr  uint64
	Memsz  uint64
	Filesz uint64
	Offset uint64
	Flags  elf.ProgFlag
}

// Segments returns the PT_LOAD segments in file order.
func (f *File) Segments() []Segment {
	var segs []Segment
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		segs = append(segs, Segment{
			Vaddr:  p.Vaddr,
			Memsz:  p.Memsz,
			Filesz: p.Filesz,
			Offset: p.Off,
			Flags:  p.Flags,
		})
	}
	return segs
}

// Span is the size of the loaded image: the end of the highest segment.
func (f *File) Span() uint64 {
	var end uint64
	for _, s := range f.Segments() {
		end = max(end, s.Vaddr+s.Memsz)
	}
	return end
}

// MapInto maps every loadable segment into img relative to base. The
// part of a segment past its file size is zero filled.
func (f *File) MapInto(img *memory.Image, base uint64) error {
	for _, s := range f.Segments() {
		if s.Filesz > s.Memsz {
			return fmt.Errorf("elfx: segment at 0x%x: file size 0x%x exceeds memory size 0x%x", s.Vaddr, s.Filesz, s.Memsz)
		}
		data := make([]byte, s.Memsz)
		if _, err := f.raw.ReadAt(data[:s.Filesz], int64(s.Offset)); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("elfx: read segment at 0x%x: %w", s.Vaddr, err)
		}
		img.Map(base+s.Vaddr, data)
	}
	return nil
}
