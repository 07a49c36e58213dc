package dump

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uedump/internal/config"
	"uedump/internal/disasm"
	"uedump/internal/memory"
	"uedump/internal/names"
	"uedump/internal/objects"
	"uedump/internal/ue"
	"uedump/internal/ue/uetest"
)

type engine struct {
	b     *uetest.Builder
	img   *memory.Image
	mods  memory.StaticModules
	objs  *objects.Store
	names *names.Store
}

func build(t *testing.T, b *uetest.Builder) engine {
	t.Helper()
	img, mods := b.Build()
	ns := names.NewStore(img, b.Layout, mods, names.Options{Module: uetest.ModuleName})
	require.NoError(t, ns.Initialize(context.Background()))
	rt := ue.NewRuntime(img, b.Layout, ns)
	store := objects.NewStore(rt, mods, objects.Options{Module: uetest.ModuleName})
	require.NoError(t, store.Initialize(context.Background()))
	return engine{b: b, img: img, mods: mods, objs: store, names: ns}
}

func TestNames(t *testing.T) {
	e := build(t, uetest.New())
	var buf bytes.Buffer
	require.NoError(t, Names(&buf, e.names.Address(), e.names.All()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, fmt.Sprintf("Address: 0x%X\n\n[000000] None\n", e.names.Address())), out)
	assert.Contains(t, out, "[000001] CoreUObject\n")
}

func TestObjects(t *testing.T) {
	b := uetest.New(uetest.WithoutEngineClasses())
	engine := b.Package("Engine")
	actor := b.Class(engine, "Actor", 0, 0x220)
	e := build(t, b)

	var buf bytes.Buffer
	require.NoError(t, Objects(&buf, e.objs.Address(), e.objs.All()))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5, "header, blank line and three objects")
	assert.Equal(t, fmt.Sprintf("Address: 0x%X", e.objs.Address()), lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, fmt.Sprintf("[000002] %-100s 0x%X", "Class Engine.Actor", actor), lines[4])
}

func TestCoreSizes(t *testing.T) {
	t.Run("Should list the classes of the core package", func(t *testing.T) {
		b := uetest.New()
		b.Class(b.Core(), "Default__Object", 0, 0x28)
		other := b.Package("Engine")
		b.Class(other, "Actor", 0, 0x220)
		e := build(t, b)

		var buf bytes.Buffer
		n, err := CoreSizes(&buf, e.objs.All(), "CoreUObject")
		require.NoError(t, err)
		out := buf.String()

		assert.Equal(t, n, strings.Count(out, "\n"))
		assert.Contains(t, out, fmt.Sprintf("class %-35s%-35s// 0x28 (0x00 - 0x28)\n", "UObject", ""))
		assert.Contains(t, out, fmt.Sprintf("class %-35s: public %-25s // 0x148 (0x88 - 0x1D0)\n", "UClass", "UStruct"))
		assert.NotContains(t, out, "Default__")
		assert.NotContains(t, out, "AActor")
	})

	t.Run("Should stop looking once the package is found", func(t *testing.T) {
		e := build(t, uetest.New())
		total, pulled := 0, 0
		for range e.objs.All() {
			total++
		}
		counted := func(yield func(ue.Object) bool) {
			for obj := range e.objs.All() {
				pulled++
				if !yield(obj) {
					return
				}
			}
		}
		_, err := CoreSizes(io.Discard, counted, "CoreUObject")
		require.NoError(t, err)
		assert.Less(t, pulled, 2*total)
	})

	t.Run("Should write nothing without the package", func(t *testing.T) {
		e := build(t, uetest.New())
		var buf bytes.Buffer
		n, err := CoreSizes(&buf, e.objs.All(), "Nope")
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, buf.String())
	})
}

func words(ws ...uint32) []byte {
	data := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data
}

// adrp encodes ADRP rd to the page of target from pc.
func adrp(rd uint32, pc, target uint64) uint32 {
	pages := uint32(int64(target>>12)-int64(pc>>12)) & 0x1FFFFF
	return 0x90000000 | (pages&3)<<29 | (pages>>2)<<5 | rd
}

func TestOffsets(t *testing.T) {
	b := uetest.New()
	objectsAddr := b.Base() + b.Layout.ObjectsOffset
	code := b.Code(func(addr uint64) []byte {
		return words(
			0xAABBCCDD,                               // marker
			adrp(0, addr+4, objectsAddr),             // adrp x0, GUObjectArray page
			0x91000000|uint32(objectsAddr&0xFFF)<<10, // add x0, x0, #pageoff
			0xD65F03C0,                               // ret
		)
	})
	e := build(t, b)
	mod, err := e.mods.Module(uetest.ModuleName)
	require.NoError(t, err)

	sigs := []config.Signature{
		{Name: "ObjectArrayRef", Pattern: "?? CC BB AA", Window: 12, Adjust: 4},
		{Name: "Missing", Pattern: "01 02 03 04 05 06"},
		{Name: "Broken", Pattern: "GG"},
	}
	results := Scan(e.img, mod, sigs, disasm.ARM64)
	require.Len(t, results, 3)
	require.Len(t, results[0].Matches, 1)
	m := results[0].Matches[0]
	assert.Equal(t, code+4-mod.Base, m.Offset)
	require.Len(t, m.Insts, 3)
	require.Len(t, m.Refs, 1)
	assert.Equal(t, objectsAddr, m.Refs[0].Target)
	assert.Empty(t, results[1].Matches)
	assert.Error(t, results[2].Err)

	var buf bytes.Buffer
	require.NoError(t, Offsets(&buf, OffsetsReport{
		Game:       "Test Game",
		Version:    "1.0",
		Module:     mod,
		Objects:    e.objs.Address(),
		Names:      mod.Base + b.Layout.NamesOffset,
		Signatures: results,
	}))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "// Test Game (1.0) offsets\n\nModule: libUE4.so\n"), out)
	assert.Contains(t, out, "#define GUObjectArray_Offset 0x100\n")
	assert.Contains(t, out, fmt.Sprintf("#define ObjectArrayRef_Offset 0x%X\n", m.Offset))
	assert.Contains(t, out, "  ; GUObjectArray\n")
	assert.Contains(t, out, "// Failed to find Missing\n")
	assert.Contains(t, out, "bad pattern")
}
