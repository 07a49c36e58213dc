package depgraph

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zboralski/lattice"

	"uedump/internal/disasm"
	"uedump/internal/objects"
	"uedump/internal/sdk"
	"uedump/internal/ue"
	"uedump/internal/ue/uetest"
)

type gen struct{}

func (gen) Initialize(context.Context) error           { return nil }
func (gen) GameName() string                           { return "Graph Game" }
func (gen) GameVersion() string                        { return "1.0" }
func (gen) GameNameShort() string                      { return "GG" }
func (gen) OutputDirectory() string                    { return "/out" }
func (gen) Includes() []string                         { return nil }
func (gen) BasicDeclarations() string                  { return "" }
func (gen) BasicDefinitions() string                   { return "" }
func (gen) ShouldGenerateFunctionParametersFile() bool { return false }
func (gen) Alignment() int                             { return 8 }

func extract(t *testing.T) *sdk.Extraction {
	t.Helper()
	b := uetest.New(uetest.WithoutEngineClasses())
	engine := b.Package("Engine")
	core := b.Package("Core")
	vector := b.Struct(core, "Vector", 0, 0xC)
	b.Property(vector, "FloatProperty", "X", 0, 4, 0)
	hit := b.Struct(engine, "HitResult", 0, 0x18)
	b.Property(hit, "StructProperty", "Location", 0, 0xC, vector)
	b.Property(hit, "StructProperty", "Normal", 0xC, 0xC, vector)

	img, mods := b.Build()
	rt := ue.NewRuntime(img, b.Layout, b.Names())
	store := objects.NewStore(rt, mods, objects.Options{Module: uetest.ModuleName})
	require.NoError(t, store.Initialize(context.Background()))

	ext := &sdk.Extractor{Gen: gen{}, Fs: afero.NewMemMapFs(), SDKDir: "/out/SDK"}
	ex, err := ext.Extract(store.All())
	require.NoError(t, err)
	return ex
}

func TestPackages(t *testing.T) {
	t.Run("Should link each package to the packages it needs", func(t *testing.T) {
		ex := extract(t)
		g := Packages(ex.Packages, ex.Registry)

		assert.ElementsMatch(t, []string{"Engine", "Core"}, g.Nodes)
		require.Len(t, g.Edges, 1, "duplicate references collapse")
		assert.Equal(t, lattice.Edge{Caller: "Engine", Callee: "Core"}, g.Edges[0])
	})

	t.Run("Should write DOT", func(t *testing.T) {
		ex := extract(t)
		fs := afero.NewMemMapFs()
		require.NoError(t, WritePackages(fs, "/out/PackageGraph.dot", Packages(ex.Packages, ex.Registry)))
		data, err := afero.ReadFile(fs, "/out/PackageGraph.dot")
		require.NoError(t, err)
		assert.Contains(t, string(data), "Engine")
		assert.Contains(t, string(data), "Core")
	})
}

func TestWindow(t *testing.T) {
	raws := []uint32{
		0xD0000000, // adrp x0, +2 pages
		0x91004000, // add x0, x0, #0x10
		0x54000040, // b.eq +0x8
		0x94000040, // bl +0x100
		0xD65F03C0, // ret
	}
	data := make([]byte, 4*len(raws))
	for i, raw := range raws {
		binary.LittleEndian.PutUint32(data[i*4:], raw)
	}
	insts := disasm.Disassemble(data, disasm.Options{Arch: disasm.ARM64, BaseAddr: 0x1000})
	cfg := disasm.BuildCFG("GUObjectArray", insts)
	refs := disasm.Refs(disasm.ARM64, insts)

	label := func(r disasm.Ref) string {
		if r.Kind == disasm.RefADRPAdd {
			return "GUObjectArray"
		}
		return ""
	}
	w := Window(cfg, refs, label)

	assert.Equal(t, "GUObjectArray", w.Name)
	require.Len(t, w.Blocks, 3)
	assert.Equal(t, []lattice.CallSite{{Offset: 1, Callee: "GUObjectArray"}}, w.Blocks[0].Calls)
	assert.Equal(t, []lattice.Successor{{BlockID: 2, Cond: "T"}, {BlockID: 1, Cond: "F"}}, w.Blocks[0].Succs)
	assert.Equal(t, []lattice.CallSite{{Offset: 3, Callee: "bl 0x110c"}}, w.Blocks[1].Calls)
	assert.True(t, w.Blocks[2].Term)

	fs := afero.NewMemMapFs()
	require.NoError(t, WriteWindow(fs, "/out/cfg/GUObjectArray.dot", w))
	ok, err := afero.Exists(fs, "/out/cfg/GUObjectArray.dot")
	require.NoError(t, err)
	assert.True(t, ok)
}
