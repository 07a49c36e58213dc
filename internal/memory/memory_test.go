package memory

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageReadAt(t *testing.T) {
	img := NewImage()
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data[0:], 0xdeadbeef)
	binary.LittleEndian.PutUint64(data[8:], 0x1122334455667788)
	img.Map(0x1000, data)

	v32, err := ReadUint32(img, 0x1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v32)

	p, err := ReadPointer(img, 0x1008, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), p)

	p, err = ReadPointer(img, 0x1008, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x55667788), p)

	_, err = ReadPointer(img, 0x1008, 2)
	assert.ErrorIs(t, err, ErrBadPointerSize)
}

func TestImageUnmapped(t *testing.T) {
	img := NewImage()
	img.Map(0x1000, make([]byte, 8))

	_, err := ReadUint64(img, 0x2000)
	assert.ErrorIs(t, err, ErrUnmapped)

	// Straddles the end of the region.
	_, err = ReadUint64(img, 0x1004)
	assert.ErrorIs(t, err, ErrUnmapped)
}

func TestImageBounds(t *testing.T) {
	img := NewImage()
	lo, hi := img.Bounds()
	assert.Zero(t, lo)
	assert.Zero(t, hi)

	img.Map(0x3000, make([]byte, 0x10))
	img.Map(0x1000, make([]byte, 0x10))
	lo, hi = img.Bounds()
	assert.Equal(t, uint64(0x1000), lo)
	assert.Equal(t, uint64(0x3010), hi)
}

func TestReadCString(t *testing.T) {
	img := NewImage()
	data := append([]byte("CoreUObject"), 0)
	img.Map(0x4000, data)

	s, err := ReadCString(img, 0x4000, 1024)
	require.NoError(t, err)
	assert.Equal(t, "CoreUObject", s)

	s, err = ReadCString(img, 0x4000, 4)
	require.NoError(t, err)
	assert.Equal(t, "Core", s)

	_, err = ReadCString(img, 0, 16)
	assert.ErrorIs(t, err, ErrNullPointer)
}

func TestReadCStringSpanningBlocks(t *testing.T) {
	long := make([]byte, 150)
	for i := range long {
		long[i] = 'a' + byte(i%26)
	}
	img := NewImage()
	img.Map(0x8000, append(append([]byte{}, long...), 0))

	s, err := ReadCString(img, 0x8000, 1024)
	require.NoError(t, err)
	assert.Equal(t, string(long), s)
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 0, 0, 0}, 0644))

	img, err := LoadImage(path, 0x7000)
	require.NoError(t, err)
	v, err := ReadUint32(img, 0x7000)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)

	_, err = LoadImage(filepath.Join(t.TempDir(), "missing"), 0)
	assert.Error(t, err)
}

type flakyModules struct {
	failures int
	calls    int
}

func (f *flakyModules) Module(name string) (Module, error) {
	f.calls++
	if f.calls <= f.failures {
		return Module{}, ErrModuleNotFound
	}
	return Module{Name: name, Base: 0x10000, Size: 0x100}, nil
}

func TestWaitForModule(t *testing.T) {
	ctx := context.Background()

	t.Run("ready after retries", func(t *testing.T) {
		res := &flakyModules{failures: 2}
		mod, err := WaitForModule(ctx, res, "libUE4.so", WaitOptions{Timeout: time.Second, Interval: time.Millisecond})
		require.NoError(t, err)
		assert.Equal(t, uint64(0x10000), mod.Base)
		assert.Equal(t, 3, res.calls)
	})

	t.Run("never ready", func(t *testing.T) {
		_, err := WaitForModule(ctx, StaticModules{}, "libUE4.so", WaitOptions{Timeout: 20 * time.Millisecond, Interval: 5 * time.Millisecond})
		assert.ErrorIs(t, err, ErrModuleNotReady)
	})

	t.Run("single attempt without timeout", func(t *testing.T) {
		res := &flakyModules{failures: 1}
		_, err := WaitForModule(ctx, res, "libUE4.so", WaitOptions{})
		assert.ErrorIs(t, err, ErrModuleNotReady)
		assert.Equal(t, 1, res.calls)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := WaitForModule(cctx, StaticModules{}, "libUE4.so", WaitOptions{Timeout: time.Second, Interval: time.Millisecond})
		assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, ErrModuleNotReady))
	})
}

func TestModuleBytes(t *testing.T) {
	img := NewImage()
	data := make([]byte, 5000)
	data[4999] = 0xAB
	img.Map(0x10000, data)

	b := ModuleBytes(img, Module{Base: 0x10000, Size: 5000}, 0)
	require.Len(t, b, 5000)
	assert.Equal(t, byte(0xAB), b[4999])

	b = ModuleBytes(img, Module{Base: 0x10000, Size: 5000}, 100)
	assert.Len(t, b, 100)

	// Module larger than the mapping stops at the first unreadable page.
	b = ModuleBytes(img, Module{Base: 0x10000, Size: 9000}, 0)
	assert.Len(t, b, 4096)
}
