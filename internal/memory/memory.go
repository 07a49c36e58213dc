// Package memory provides read-only access to the address space of a
// foreign runtime: a live process or an offline memory image.
package memory

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrUnmapped       = errors.New("memory: address not mapped")
	ErrNullPointer    = errors.New("memory: null pointer")
	ErrBadPointerSize = errors.New("memory: pointer size must be 4 or 8")
	ErrUnsupported    = errors.New("memory: live process access not supported on this platform")
)

// Reader reads foreign memory. ReadAt either fills p completely or
// returns an error; partial reads are reported as failures.
type Reader interface {
	ReadAt(p []byte, addr uint64) error
}

// ReadUint32 reads a little-endian uint32 at addr.
func ReadUint32(r Reader, addr uint64) (uint32, error) {
	var buf [4]byte
	if err := r.ReadAt(buf[:], addr); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadInt32 reads a little-endian int32 at addr.
func ReadInt32(r Reader, addr uint64) (int32, error) {
	v, err := ReadUint32(r, addr)
	return int32(v), err
}

// ReadUint64 reads a little-endian uint64 at addr.
func ReadUint64(r Reader, addr uint64) (uint64, error) {
	var buf [8]byte
	if err := r.ReadAt(buf[:], addr); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadPointer reads a pointer of the given width (4 or 8 bytes).
func ReadPointer(r Reader, addr uint64, size int) (uint64, error) {
	switch size {
	case 4:
		v, err := ReadUint32(r, addr)
		return uint64(v), err
	case 8:
		return ReadUint64(r, addr)
	default:
		return 0, fmt.Errorf("%w: %d", ErrBadPointerSize, size)
	}
}

// ReadCString reads a NUL-terminated string of at most max bytes.
// Memory is read in small blocks so a string ending just before an
// unmapped page still resolves.
func ReadCString(r Reader, addr uint64, max int) (string, error) {
	if addr == 0 {
		return "", ErrNullPointer
	}
	const block = 64
	var out []byte
	for len(out) < max {
		n := block
		if rem := max - len(out); rem < n {
			n = rem
		}
		buf := make([]byte, n)
		if err := r.ReadAt(buf, addr+uint64(len(out))); err != nil {
			// Retry byte-wise near the end of a mapping.
			if n == 1 {
				return "", err
			}
			b, berr := readBytewise(r, addr+uint64(len(out)), n)
			if i := bytes.IndexByte(b, 0); i >= 0 {
				return string(append(out, b[:i]...)), nil
			}
			return "", berr
		}
		if i := bytes.IndexByte(buf, 0); i >= 0 {
			return string(append(out, buf[:i]...)), nil
		}
		out = append(out, buf...)
	}
	return string(out), nil
}

func readBytewise(r Reader, addr uint64, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	var one [1]byte
	for i := 0; i < n; i++ {
		if err := r.ReadAt(one[:], addr+uint64(i)); err != nil {
			return out, err
		}
		out = append(out, one[0])
		if one[0] == 0 {
			break
		}
	}
	return out, nil
}
