// Package uetest lays out a synthetic engine runtime in a memory.Image:
// object array, name table, packages, classes, structs, enums,
// functions and properties, using the offsets of a ue.Layout.
package uetest

import (
	"encoding/binary"
	"fmt"

	"uedump/internal/memory"
	"uedump/internal/ue"
)

// ModuleName is the module the synthetic globals live in.
const ModuleName = "libUE4.so"

const (
	defaultBase   = 0x10000000
	globalsSize   = 0x1000
	objectSize    = 0x100
	objectsGlobal = 0x100
	namesGlobal   = 0x200
)

// Builder accumulates a synthetic runtime. Handles returned by its
// methods are object addresses.
type Builder struct {
	Layout ue.Layout

	base     uint64
	buf      []byte
	names    []string
	nameIdx  map[string]int32
	slots    []uint64
	meta     map[string]uint64
	lastKid  map[uint64]uint64
	core     uint64
	register bool
	built    bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithoutEngineClasses keeps the engine metaclasses (Object, Class,
// ScriptStruct, ...) out of the object array. Objects still point at
// them, so kinds resolve, but they are never enumerated.
func WithoutEngineClasses() Option {
	return func(b *Builder) { b.register = false }
}

// WithLayout overrides the layout. The globals offsets are forced to
// the builder's own.
func WithLayout(l ue.Layout) Option {
	return func(b *Builder) { b.Layout = l }
}

// New returns a builder with a 64-bit layout and the CoreUObject package.
func New(opts ...Option) *Builder {
	b := &Builder{
		Layout:   ue.DefaultLayout64(),
		base:     defaultBase,
		buf:      make([]byte, globalsSize),
		nameIdx:  make(map[string]int32),
		meta:     make(map[string]uint64),
		lastKid:  make(map[uint64]uint64),
		register: true,
	}
	for _, o := range opts {
		o(b)
	}
	b.Layout.ObjectsOffset = objectsGlobal
	b.Layout.NamesOffset = namesGlobal
	b.Layout.NamesDeref = true

	// "None" is always name 0.
	b.name("None")

	b.core = b.alloc(objectSize)
	b.header(b.core, 0, 0, "CoreUObject")
	b.slot(b.core, true)
	b.putPtr(b.core+b.Layout.ObjectClass, b.metaclass("Package", "Object"))
	return b
}

// Core returns the CoreUObject package.
func (b *Builder) Core() uint64 { return b.core }

// Base returns the module base address.
func (b *Builder) Base() uint64 { return b.base }

// Package creates a package object.
func (b *Builder) Package(name string) uint64 {
	addr := b.alloc(objectSize)
	b.header(addr, b.metaclass("Package", "Object"), 0, name)
	b.slot(addr, true)
	return addr
}

// Class creates a class in pkg. super may be 0.
func (b *Builder) Class(pkg uint64, name string, super uint64, size int32) uint64 {
	return b.structLike("Class", pkg, name, super, size)
}

// Struct creates a script struct in pkg. super may be 0.
func (b *Builder) Struct(pkg uint64, name string, super uint64, size int32) uint64 {
	return b.structLike("ScriptStruct", pkg, name, super, size)
}

// SetSuper points a struct or class at super after the fact, for
// hierarchies where the child sits earlier in the object array.
func (b *Builder) SetSuper(addr, super uint64) {
	b.putPtr(addr+b.Layout.StructSuper, super)
}

// Object creates a plain instance of cls.
func (b *Builder) Object(cls, outer uint64, name string) uint64 {
	addr := b.alloc(objectSize)
	b.header(addr, cls, outer, name)
	b.slot(addr, true)
	return addr
}

// Enum creates an enum whose enumerators are numbered from 0.
func (b *Builder) Enum(pkg uint64, name string, values ...string) uint64 {
	addr := b.alloc(objectSize)
	b.header(addr, b.metaclass("Enum", "Field"), pkg, name)
	b.slot(addr, true)

	stride := b.Layout.EnumPairStride
	data := b.alloc(uint64(len(values))*stride + 8)
	for i, v := range values {
		pair := data + uint64(i)*stride
		b.put32(pair, uint32(b.name(v)))
		b.put64(pair+8, uint64(i))
	}
	arr := addr + b.Layout.EnumNames
	b.putPtr(arr, data)
	b.put32(arr+uint64(b.Layout.PointerSize), uint32(len(values)))
	b.put32(arr+uint64(b.Layout.PointerSize)+4, uint32(len(values)))
	return addr
}

// Function creates a function owned by a class or struct.
func (b *Builder) Function(owner uint64, name string, flags uint32, paramsSize int32) uint64 {
	addr := b.alloc(objectSize)
	b.header(addr, b.metaclass("Function", "Struct"), owner, name)
	b.slot(addr, true)
	b.put32(addr+b.Layout.StructPropertiesSize, uint32(paramsSize))
	b.put32(addr+b.Layout.FunctionFlags, flags)
	b.child(owner, addr)
	return addr
}

// Property adds a property of class typeName (e.g. "IntProperty") to
// owner. inner is the referenced struct/class/enum/inner property, or 0.
func (b *Builder) Property(owner uint64, typeName, name string, offset, elemSize int32, inner uint64) uint64 {
	return b.ArrayProperty(owner, typeName, name, offset, elemSize, 1, inner)
}

// ArrayProperty is Property with a static array dimension.
func (b *Builder) ArrayProperty(owner uint64, typeName, name string, offset, elemSize, dim int32, inner uint64) uint64 {
	addr := b.alloc(objectSize)
	b.header(addr, b.metaclass(typeName, "Property"), owner, name)
	b.slot(addr, true)
	l := b.Layout
	b.put32(addr+l.PropertyArrayDim, uint32(dim))
	b.put32(addr+l.PropertyElementSize, uint32(elemSize))
	b.put32(addr+l.PropertyOffset, uint32(offset))
	b.putPtr(addr+l.PropertyInner, inner)
	if owner != 0 {
		b.child(owner, addr)
	}
	return addr
}

// DetachedProperty creates a property object that is not linked into
// any owner and not in the object array, e.g. the inner of an ArrayProperty.
func (b *Builder) DetachedProperty(typeName string, elemSize int32, inner uint64) uint64 {
	addr := b.alloc(objectSize)
	b.header(addr, b.metaclass(typeName, "Property"), 0, typeName)
	l := b.Layout
	b.put32(addr+l.PropertyArrayDim, 1)
	b.put32(addr+l.PropertyElementSize, uint32(elemSize))
	b.putPtr(addr+l.PropertyInner, inner)
	return addr
}

// Code places raw bytes in the module image, e.g. instructions for
// signature scans. emit receives the address the bytes will occupy.
func (b *Builder) Code(emit func(addr uint64) []byte) uint64 {
	data := emit(b.base + uint64(len(b.buf)))
	addr := b.alloc(uint64(len(data)))
	copy(b.buf[addr-b.base:], data)
	return addr
}

// Hole appends a null slot to the object array.
func (b *Builder) Hole() {
	b.slots = append(b.slots, 0)
}

// Metaclass returns (creating if needed) the engine class called name.
func (b *Builder) Metaclass(name, super string) uint64 {
	return b.metaclass(name, super)
}

// NameID returns the name-table index of s, interning it.
func (b *Builder) NameID(s string) int32 { return b.name(s) }

// Names returns a resolver over the builder's interned names, for tests
// that exercise the object model without the name table.
func (b *Builder) Names() ue.NameResolver {
	return nameTable(append([]string(nil), b.names...))
}

// Build writes the object array and name table and returns the image
// together with the module table. A builder can be built once.
func (b *Builder) Build() (*memory.Image, memory.StaticModules) {
	if b.built {
		panic("uetest: Build called twice")
	}
	b.built = true
	l := b.Layout
	ps := uint64(l.PointerSize)

	// Object array.
	items := b.alloc(uint64(len(b.slots))*l.ObjectItemSize + 8)
	for i, addr := range b.slots {
		b.putPtr(items+uint64(i)*l.ObjectItemSize, addr)
	}
	arr := b.base + l.ObjectsOffset + l.ObjObjectsOffset
	b.putPtr(arr, items)
	b.put32(arr+ps, uint32(len(b.slots)))
	b.put32(arr+l.ObjectsNumOffset(), uint32(len(b.slots)))

	// Name table.
	table := b.alloc(uint64(l.NamesMaxChunks)*ps + 8)
	chunkSize := l.NamesChunkSize
	chunks := (len(b.names) + chunkSize - 1) / chunkSize
	for c := 0; c < chunks; c++ {
		chunk := b.alloc(uint64(chunkSize) * ps)
		b.putPtr(table+uint64(c)*ps, chunk)
		for j := 0; j < chunkSize; j++ {
			i := c*chunkSize + j
			if i >= len(b.names) {
				break
			}
			s := b.names[i]
			entry := b.alloc(l.NameEntryStringOffset + uint64(len(s)) + 1)
			b.put32(entry, uint32(i<<1))
			copy(b.buf[entry-b.base+l.NameEntryStringOffset:], s)
			b.putPtr(chunk+uint64(j)*ps, entry)
		}
	}
	b.put32(table+uint64(l.NamesMaxChunks)*ps, uint32(len(b.names)))
	b.put32(table+uint64(l.NamesMaxChunks)*ps+4, uint32(chunks))
	b.putPtr(b.base+l.NamesOffset, table)

	img := memory.NewImage()
	img.Map(b.base, b.buf)
	mods := memory.StaticModules{
		ModuleName: {Name: ModuleName, Base: b.base, Size: uint64(len(b.buf))},
	}
	return img, mods
}

func (b *Builder) structLike(metaName string, pkg uint64, name string, super uint64, size int32) uint64 {
	addr := b.alloc(objectSize)
	b.header(addr, b.metaclass(metaName, "Struct"), pkg, name)
	b.slot(addr, true)
	b.putPtr(addr+b.Layout.StructSuper, super)
	b.put32(addr+b.Layout.StructPropertiesSize, uint32(size))
	return addr
}

// metaclass returns the engine class name, creating it (and its super
// chain) in CoreUObject on first use.
func (b *Builder) metaclass(name, super string) uint64 {
	if addr, ok := b.meta[name]; ok {
		return addr
	}
	addr := b.alloc(objectSize)
	b.meta[name] = addr

	var superAddr uint64
	if super != "" && super != name {
		superAddr = b.metaclass(super, metaSuper[super])
	}
	cls := addr
	if name != "Class" {
		cls = b.metaclass("Class", "Struct")
	}
	b.header(addr, cls, b.core, name)
	b.slot(addr, b.register)
	b.putPtr(addr+b.Layout.StructSuper, superAddr)
	b.put32(addr+b.Layout.StructPropertiesSize, uint32(metaSize[name]))
	return addr
}

var metaSuper = map[string]string{
	"Object":       "",
	"Field":        "Object",
	"Struct":       "Field",
	"Class":        "Struct",
	"ScriptStruct": "Struct",
	"Function":     "Struct",
	"Enum":         "Field",
	"Property":     "Field",
	"Package":      "Object",
}

var metaSize = map[string]int32{
	"Object":       0x28,
	"Field":        0x30,
	"Struct":       0x88,
	"Class":        0x1D0,
	"ScriptStruct": 0x98,
	"Function":     0xB0,
	"Enum":         0x60,
	"Property":     0x70,
	"Package":      0x80,
}

func (b *Builder) header(addr, cls, outer uint64, name string) {
	l := b.Layout
	b.putPtr(addr+l.ObjectClass, cls)
	b.putPtr(addr+l.ObjectOuter, outer)
	b.put32(addr+l.ObjectName, uint32(b.name(name)))
	b.put32(addr+l.ObjectName+4, 0)
	b.put32(addr+l.ObjectIndex, 0xFFFFFFFF)
}

func (b *Builder) slot(addr uint64, register bool) {
	if !register {
		return
	}
	b.put32(addr+b.Layout.ObjectIndex, uint32(len(b.slots)))
	b.slots = append(b.slots, addr)
}

func (b *Builder) child(owner, addr uint64) {
	if last, ok := b.lastKid[owner]; ok {
		b.putPtr(last+b.Layout.FieldNext, addr)
	} else {
		b.putPtr(owner+b.Layout.StructChildren, addr)
	}
	b.lastKid[owner] = addr
}

func (b *Builder) name(s string) int32 {
	if id, ok := b.nameIdx[s]; ok {
		return id
	}
	id := int32(len(b.names))
	b.names = append(b.names, s)
	b.nameIdx[s] = id
	return id
}

func (b *Builder) alloc(n uint64) uint64 {
	n = (n + 7) &^ 7
	addr := b.base + uint64(len(b.buf))
	b.buf = append(b.buf, make([]byte, n)...)
	return addr
}

func (b *Builder) put32(addr uint64, v uint32) {
	binary.LittleEndian.PutUint32(b.buf[addr-b.base:], v)
}

func (b *Builder) put64(addr uint64, v uint64) {
	binary.LittleEndian.PutUint64(b.buf[addr-b.base:], v)
}

func (b *Builder) putPtr(addr uint64, v uint64) {
	if b.Layout.PointerSize == 4 {
		b.put32(addr, uint32(v))
		return
	}
	b.put64(addr, v)
}

type nameTable []string

func (t nameTable) Name(id int32) (string, error) {
	if id < 0 || int(id) >= len(t) {
		return "", fmt.Errorf("uetest: name %d out of range", id)
	}
	return t[id], nil
}
