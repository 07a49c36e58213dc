package memory

import (
	"fmt"
	"os"
	"sort"
)

// Image is an offline address space made of mapped regions. It backs
// dumps taken from raw memory snapshots and synthetic runtimes in tests.
type Image struct {
	regions []region
}

type region struct {
	base uint64
	data []byte
}

func (r region) end() uint64 { return r.base + uint64(len(r.data)) }

// NewImage returns an empty image.
func NewImage() *Image {
	return &Image{}
}

// LoadImage maps the contents of a raw memory dump at base.
func LoadImage(path string, base uint64) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("memory: load image: %w", err)
	}
	img := NewImage()
	img.Map(base, data)
	return img, nil
}

// Map adds a region. Regions are kept sorted by base; overlapping
// regions resolve to the one with the lower base.
func (m *Image) Map(base uint64, data []byte) {
	m.regions = append(m.regions, region{base: base, data: data})
	sort.SliceStable(m.regions, func(i, j int) bool {
		return m.regions[i].base < m.regions[j].base
	})
}

// ReadAt implements Reader. The whole range must lie in one region.
func (m *Image) ReadAt(p []byte, addr uint64) error {
	if len(p) == 0 {
		return nil
	}
	end := addr + uint64(len(p))
	if end < addr {
		return fmt.Errorf("%w: 0x%x+%d overflows", ErrUnmapped, addr, len(p))
	}
	for _, r := range m.regions {
		if addr >= r.base && end <= r.end() {
			copy(p, r.data[addr-r.base:end-r.base])
			return nil
		}
	}
	return fmt.Errorf("%w: 0x%x (%d bytes)", ErrUnmapped, addr, len(p))
}

// Bounds returns the lowest and highest mapped address.
func (m *Image) Bounds() (lo, hi uint64) {
	if len(m.regions) == 0 {
		return 0, 0
	}
	lo = m.regions[0].base
	for _, r := range m.regions {
		if r.end() > hi {
			hi = r.end()
		}
	}
	return lo, hi
}
