package sdk_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uedump/internal/cppgen"
	"uedump/internal/diag"
	"uedump/internal/objects"
	"uedump/internal/sdk"
	"uedump/internal/ue"
	"uedump/internal/ue/uetest"
)

type fakeGen struct {
	params bool
}

func (fakeGen) Initialize(context.Context) error { return nil }
func (fakeGen) GameName() string                 { return "Test Game" }
func (fakeGen) GameVersion() string              { return "1.0" }
func (fakeGen) GameNameShort() string            { return "TG" }
func (fakeGen) OutputDirectory() string          { return "/out" }
func (fakeGen) Includes() []string               { return []string{"<cstdint>"} }
func (fakeGen) BasicDeclarations() string        { return "struct FName { int32_t Index; int32_t Number; };" }
func (fakeGen) BasicDefinitions() string         { return "// basic definitions" }
func (g fakeGen) ShouldGenerateFunctionParametersFile() bool {
	return g.params
}
func (fakeGen) Alignment() int { return 8 }

const dir = "/out/TG_(v1.0)_64Bit"

type run struct {
	fs     afero.Fs
	store  *objects.Store
	ex     *sdk.Extraction
	sorted sdk.SortResult
}

func dump(t *testing.T, b *uetest.Builder, gen sdk.Generator) run {
	t.Helper()
	img, mods := b.Build()
	rt := ue.NewRuntime(img, b.Layout, b.Names())
	store := objects.NewStore(rt, mods, objects.Options{Module: uetest.ModuleName})
	require.NoError(t, store.Initialize(context.Background()))

	fs := afero.NewMemMapFs()
	ext := &sdk.Extractor{Gen: gen, Fs: fs, SDKDir: filepath.Join(dir, sdk.SDKDirName)}
	ex, err := ext.Extract(store.All())
	require.NoError(t, err)
	assert.True(t, ex.Ledger.Sealed())

	sorted := sdk.SortPackages(ex.Packages, ex.Registry)
	asm := &sdk.Assembler{Gen: gen, Fs: fs}
	require.NoError(t, asm.Write(dir, ex.Ledger, sorted.Packages))
	require.NoError(t, sdk.WriteSummary(fs, dir, sdk.Summary{
		Game:     gen.GameNameShort(),
		Path:     dir,
		Packages: len(sorted.Packages),
		Missing:  len(ex.Ledger.Missing()),
	}))
	return run{fs: fs, store: store, ex: ex, sorted: sorted}
}

func (r run) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := afero.ReadFile(r.fs, filepath.Join(dir, rel))
	require.NoError(t, err, rel)
	return string(data)
}

func (r run) exists(rel string) bool {
	ok, _ := afero.Exists(r.fs, filepath.Join(dir, rel))
	return ok
}

func pkgNames(pkgs []*sdk.Package) []string {
	var out []string
	for _, p := range pkgs {
		out = append(out, p.Name)
	}
	return out
}

func TestCrossPackageOrdering(t *testing.T) {
	b := uetest.New(uetest.WithoutEngineClasses())
	p2 := b.Package("P2")
	p1 := b.Package("P1")
	transform := b.Struct(p2, "Transform", 0, 0x18)
	vector := b.Struct(p1, "Vector", 0, 0xC)
	b.Property(vector, "FloatProperty", "X", 0, 4, 0)
	b.Property(vector, "FloatProperty", "Y", 4, 4, 0)
	b.Property(vector, "FloatProperty", "Z", 8, 4, 0)
	b.Property(transform, "StructProperty", "Translation", 0, 0xC, vector)
	b.Property(transform, "FloatProperty", "Scale", 0xC, 4, 0)

	r := dump(t, b, fakeGen{})

	require.Equal(t, []string{"P2", "P1"}, pkgNames(r.ex.Packages), "first appearance order")
	assert.Equal(t, []string{"P1", "P2"}, pkgNames(r.sorted.Packages))
	assert.Empty(t, r.sorted.Cycles)

	p2pkg, ok := r.ex.Registry.Lookup(r.sorted.Packages[1].Source)
	require.True(t, ok)
	require.Len(t, p2pkg.Dependencies(), 1)
	assert.Equal(t, r.sorted.Packages[0].Source, p2pkg.Dependencies()[0])

	hdr := r.read(t, sdk.SDKHeaderName)
	includes := []string{
		`#include "SDK/TG_P1_structs.hpp"`,
		`#include "SDK/TG_P1_classes.hpp"`,
		`#include "SDK/TG_P2_structs.hpp"`,
		`#include "SDK/TG_P2_classes.hpp"`,
	}
	last := -1
	for _, inc := range includes {
		i := strings.Index(hdr, inc)
		require.GreaterOrEqual(t, i, 0, inc)
		assert.Greater(t, i, last, inc)
		last = i
	}
	assert.NotContains(t, hdr, "MISSING")
	assert.NotContains(t, hdr, "_parameters.hpp")

	structs := r.read(t, "SDK/TG_P2_structs.hpp")
	assert.Contains(t, structs, "struct FTransform\n{")
	assert.Contains(t, structs, "struct FVector Translation;")
	assert.True(t, r.exists("SDK/TG_P2_functions.cpp"))
}

func TestSamePackagePrerequisitesFirst(t *testing.T) {
	b := uetest.New(uetest.WithoutEngineClasses())
	engine := b.Package("Engine")
	object := b.Metaclass("Object", "")
	// Pawn sits before Actor in the object array but derives from it.
	pawn := b.Class(engine, "Pawn", 0, 0x240)
	actor := b.Class(engine, "Actor", object, 0x220)
	b.SetSuper(pawn, actor)
	hit := b.Struct(engine, "HitResult", 0, 0x10)
	b.Property(hit, "IntProperty", "Item", 0, 4, 0)
	b.Property(actor, "StructProperty", "LastHit", 0x28, 0x10, hit)

	r := dump(t, b, fakeGen{})

	var engPkg *sdk.Package
	for _, p := range r.ex.Packages {
		if p.Name == "Engine" {
			engPkg = p
		}
	}
	require.NotNil(t, engPkg)
	require.Len(t, engPkg.Structs, 1)
	assert.Equal(t, "FHitResult", engPkg.Structs[0].Name)

	var classes []string
	for _, d := range engPkg.Classes {
		classes = append(classes, d.Name)
	}
	assert.Equal(t, []string{"AActor", "APawn"}, classes)

	// UObject lives in CoreUObject.
	require.Len(t, engPkg.Dependencies(), 1)
	assert.Equal(t, b.Core(), engPkg.Dependencies()[0].Address())
}

func TestEnumOwnerIsDependency(t *testing.T) {
	b := uetest.New(uetest.WithoutEngineClasses())
	p2 := b.Package("P2")
	p1 := b.Package("P1")
	hud := b.Struct(p2, "Hud", 0, 4)
	color := b.Enum(p1, "EColor", "EColor::Red", "EColor::Green")
	b.Property(hud, "ByteProperty", "Tint", 0, 1, color)

	r := dump(t, b, fakeGen{})

	assert.Equal(t, []string{"P1", "P2"}, pkgNames(r.sorted.Packages))
	p2pkg, ok := r.ex.Registry.Lookup(r.sorted.Packages[1].Source)
	require.True(t, ok)
	require.Len(t, p2pkg.Dependencies(), 1)
	assert.Equal(t, p1, p2pkg.Dependencies()[0].Address())
	assert.Contains(t, r.read(t, "SDK/TG_P2_structs.hpp"), "TEnumAsByte<EColor> Tint;")
	assert.Contains(t, r.read(t, "SDK/TG_P1_structs.hpp"), "enum class EColor : uint8_t")

	hdr := r.read(t, sdk.SDKHeaderName)
	assert.Less(t, strings.Index(hdr, "TG_P1_structs.hpp"), strings.Index(hdr, "TG_P2_structs.hpp"))
}

func TestArrayInnerStructIsDependency(t *testing.T) {
	b := uetest.New(uetest.WithoutEngineClasses())
	p2 := b.Package("P2")
	p1 := b.Package("P1")
	path := b.Struct(p2, "Path", 0, 0x20)
	segment := b.Struct(p2, "Segment", 0, 8)
	b.Property(segment, "FloatProperty", "Length", 0, 4, 0)
	vector := b.Struct(p1, "Vec", 0, 0xC)
	b.Property(vector, "FloatProperty", "X", 0, 4, 0)
	b.Property(path, "ArrayProperty", "Points", 0, 0x10, b.DetachedProperty("StructProperty", 0xC, vector))
	b.Property(path, "ArrayProperty", "Segments", 0x10, 0x10, b.DetachedProperty("StructProperty", 8, segment))

	r := dump(t, b, fakeGen{})

	assert.Equal(t, []string{"P1", "P2"}, pkgNames(r.sorted.Packages))
	p2pkg := r.sorted.Packages[1]
	require.Len(t, p2pkg.Dependencies(), 1)
	assert.Equal(t, p1, p2pkg.Dependencies()[0].Address())

	var structs []string
	for _, d := range p2pkg.Structs {
		structs = append(structs, d.Name)
	}
	assert.Equal(t, []string{"FSegment", "FPath"}, structs, "same-package element types first")
	out := r.read(t, "SDK/TG_P2_structs.hpp")
	assert.Contains(t, out, "TArray<struct FVec> Points;")
	assert.Contains(t, out, "TArray<struct FSegment> Segments;")
}

func TestMissingNamesAreUnique(t *testing.T) {
	b := uetest.New(uetest.WithoutEngineClasses())
	engine := b.Package("Engine")
	game := b.Package("Game")
	first := b.Struct(engine, "Broken", 0, 8)
	b.Property(first, "FancyProperty", "F", 0, 8, 0)
	second := b.Struct(game, "Broken", 0, 0x10)
	b.Property(second, "FancyProperty", "F", 0, 8, 0)

	r := dump(t, b, fakeGen{})

	require.Len(t, r.ex.Ledger.Missing(), 2)
	unit := r.read(t, "SDK/TG_MISSING.hpp")
	assert.Equal(t, 1, strings.Count(unit, "struct FBroken\n"))
	assert.Contains(t, unit, "// ScriptStruct Game.Broken\n// 0x0010\nstruct FBroken01\n")
}

func TestUnresolvableStructGoesToMissing(t *testing.T) {
	b := uetest.New(uetest.WithoutEngineClasses())
	engine := b.Package("Engine")
	good := b.Struct(engine, "Good", 0, 4)
	b.Property(good, "IntProperty", "Value", 0, 4, 0)
	broken := b.Struct(engine, "Broken", 0, 0x24)
	b.Property(broken, "FancyProperty", "Weird", 0, 8, 0)

	r := dump(t, b, fakeGen{})

	missing := r.ex.Ledger.Missing()
	require.Len(t, missing, 1)
	assert.Equal(t, broken, missing[0].Address())
	assert.Equal(t, 1, r.ex.Diags.Count(diag.KindUnresolved))

	unit := r.read(t, "SDK/TG_MISSING.hpp")
	assert.Equal(t, 1, strings.Count(unit, "UnknownData["))
	assert.Contains(t, unit, "// ScriptStruct Engine.Broken\n// 0x0024\nstruct FBroken\n{\n\tunsigned char UnknownData[0x24];\n};\n")

	hdr := r.read(t, sdk.SDKHeaderName)
	basic := strings.Index(hdr, `#include "SDK/TG_Basic.hpp"`)
	miss := strings.Index(hdr, `#include "SDK/TG_MISSING.hpp"`)
	pkgs := strings.Index(hdr, `#include "SDK/TG_Engine_structs.hpp"`)
	require.GreaterOrEqual(t, basic, 0)
	assert.Greater(t, miss, basic)
	assert.Greater(t, pkgs, miss)

	structs := r.read(t, "SDK/TG_Engine_structs.hpp")
	assert.Contains(t, structs, "struct FGood")
	assert.NotContains(t, structs, "struct FBroken")
}

func TestZeroPackages(t *testing.T) {
	r := dump(t, uetest.New(uetest.WithoutEngineClasses()), fakeGen{})

	assert.Empty(t, r.sorted.Packages)
	assert.Zero(t, r.ex.Ledger.Len())

	hdr := r.read(t, sdk.SDKHeaderName)
	assert.True(t, strings.HasPrefix(hdr, "#pragma once\n\n// Test Game (1.0) SDK\n#include <set>\n#include <string>\n#include <cstdint>\n"))
	assert.Contains(t, hdr, `#include "SDK/TG_Basic.hpp"`)
	assert.NotContains(t, hdr, "MISSING")
	assert.NotContains(t, hdr, "_structs.hpp")
	assert.NotContains(t, hdr, "_classes.hpp")
	assert.False(t, r.exists("SDK/TG_MISSING.hpp"))

	basic := r.read(t, "SDK/TG_Basic.hpp")
	assert.Contains(t, basic, "#include <codecvt>")
	assert.Contains(t, basic, "struct FName { int32_t Index; int32_t Number; };")
	assert.Contains(t, r.read(t, "SDK/TG_Basic.cpp"), `#include "../SDK.hpp"`)

	summary := r.read(t, sdk.SummaryFileName)
	assert.Contains(t, summary, "DUMP SUCCESSFUL\n")
	assert.Contains(t, summary, "Game Name: TG\n")
	assert.Contains(t, summary, "Output Path: "+dir+"\n")
	assert.Contains(t, summary, "Packages: 0\n")
	assert.Contains(t, summary, "Status: SDK Generation Completed.\n")
}

func TestFunctionParametersFile(t *testing.T) {
	b := uetest.New(uetest.WithoutEngineClasses())
	engine := b.Package("Engine")
	object := b.Metaclass("Object", "")
	actor := b.Class(engine, "Actor", object, 0x220)
	jump := b.Function(actor, "Jump", ue.FuncNative, 4)
	b.Property(jump, "FloatProperty", "Height", 0, 4, 0)

	r := dump(t, b, fakeGen{params: true})

	hdr := r.read(t, sdk.SDKHeaderName)
	assert.Contains(t, hdr, `#include "SDK/TG_Engine_parameters.hpp"`)
	params := r.read(t, "SDK/TG_Engine_parameters.hpp")
	assert.Contains(t, params, "// Function Engine.Actor.Jump\n// (Native)\nstruct AActor_Jump_Params")
	assert.Contains(t, r.read(t, "SDK/TG_Engine_functions.cpp"), `UObject::FindClass("Class Engine.Actor")`)
}

// Every struct or class owned by a retained package is either declared
// by exactly one package or recorded once as missing.
func TestEveryStructAccountedOnce(t *testing.T) {
	b := uetest.New(uetest.WithoutEngineClasses())
	core := b.Package("Core")
	engine := b.Package("Engine")
	object := b.Metaclass("Object", "")
	vector := b.Struct(core, "Vector", 0, 0xC)
	b.Property(vector, "FloatProperty", "X", 0, 4, 0)
	b.Struct(core, "Rotator", 0, 0xC)
	bad := b.Struct(engine, "Bad", 0, 8)
	b.Property(bad, "FancyProperty", "F", 0, 8, 0)
	actor := b.Class(engine, "Actor", object, 0x40)
	b.Property(actor, "StructProperty", "Where", 0x28, 0xC, vector)
	b.Class(engine, "Pawn", actor, 0x48)

	r := dump(t, b, fakeGen{})

	retained := map[ue.Object]bool{}
	counts := map[string]int{}
	for _, p := range r.ex.Packages {
		retained[p.Source] = true
		for _, d := range append(append([]cppgen.Declaration{}, p.Structs...), p.Classes...) {
			counts[d.FullName]++
		}
	}
	for _, m := range r.ex.Ledger.Missing() {
		counts[m.FullName()]++
	}

	checked := 0
	for obj := range r.store.All() {
		if !retained[obj.PackageObject()] {
			continue
		}
		if k := obj.Kind(); k != ue.KindStruct && k != ue.KindClass {
			continue
		}
		assert.Equal(t, 1, counts[obj.FullName()], obj.FullName())
		checked++
	}
	assert.Equal(t, 5, checked)
}

func TestProcessRejectsSealedLedger(t *testing.T) {
	b := uetest.New(uetest.WithoutEngineClasses())
	engine := b.Package("Engine")
	img, _ := b.Build()
	rt := ue.NewRuntime(img, b.Layout, b.Names())

	l := sdk.NewLedger()
	l.Seal()
	p := sdk.NewPackage(rt.Object(engine), fakeGen{})
	err := p.Process(func(yield func(ue.Object) bool) {}, l)
	assert.ErrorIs(t, err, sdk.ErrLedgerSealed)
}
