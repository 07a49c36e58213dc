// Package ue models the reflection objects of a running Unreal-style
// runtime. Handles are read-only views into foreign memory: every
// accessor re-reads the target and degrades to a zero value when the
// memory is gone.
package ue

import (
	"errors"
	"fmt"
	"strings"

	"uedump/internal/memory"
)

var (
	ErrInvalid   = errors.New("ue: invalid object")
	ErrWrongKind = errors.New("ue: wrong object kind")
)

// maxChainDepth caps outer/super/children walks so corrupt or cyclic
// memory cannot hang a dump.
const maxChainDepth = 256

// NameResolver maps a name-table index to its string.
type NameResolver interface {
	Name(id int32) (string, error)
}

// Runtime binds the memory of one target to its layout and name table.
type Runtime struct {
	Mem    memory.Reader
	Layout Layout
	Names  NameResolver
}

// NewRuntime returns a runtime view.
func NewRuntime(mem memory.Reader, layout Layout, names NameResolver) *Runtime {
	return &Runtime{Mem: mem, Layout: layout, Names: names}
}

// Object returns the handle for addr. A zero address is an invalid handle.
func (rt *Runtime) Object(addr uint64) Object {
	return Object{rt: rt, addr: addr}
}

func (rt *Runtime) ptr(addr uint64) uint64 {
	v, err := memory.ReadPointer(rt.Mem, addr, rt.Layout.PointerSize)
	if err != nil {
		return 0
	}
	return v
}

func (rt *Runtime) i32(addr uint64) int32 {
	v, err := memory.ReadInt32(rt.Mem, addr)
	if err != nil {
		return 0
	}
	return v
}

// Object is a handle to a UObject. It is comparable: two handles are
// equal when they name the same address in the same runtime.
type Object struct {
	rt   *Runtime
	addr uint64
}

// Address returns the object's address in the target.
func (o Object) Address() uint64 { return o.addr }

// IsValid reports whether the handle points at something.
func (o Object) IsValid() bool { return o.rt != nil && o.addr != 0 }

// Runtime returns the runtime the handle reads through.
func (o Object) Runtime() *Runtime { return o.rt }

// Index returns the object's slot in the global object array.
func (o Object) Index() int32 {
	if !o.IsValid() {
		return -1
	}
	return o.rt.i32(o.addr + o.rt.Layout.ObjectIndex)
}

// Class returns the object's class.
func (o Object) Class() Class {
	if !o.IsValid() {
		return Class{}
	}
	return Class{Struct{o.rt.Object(o.rt.ptr(o.addr + o.rt.Layout.ObjectClass))}}
}

// Outer returns the object's outer (owner) object.
func (o Object) Outer() Object {
	if !o.IsValid() {
		return Object{}
	}
	return o.rt.Object(o.rt.ptr(o.addr + o.rt.Layout.ObjectOuter))
}

// Name returns the object's short name, with the FName number suffix
// applied the way the engine prints it.
func (o Object) Name() string {
	if !o.IsValid() || o.rt.Names == nil {
		return ""
	}
	base := o.addr + o.rt.Layout.ObjectName
	idx := o.rt.i32(base)
	name, err := o.rt.Names.Name(idx)
	if err != nil {
		return ""
	}
	if num := o.rt.i32(base + 4); num > 0 {
		name = fmt.Sprintf("%s_%d", name, num-1)
	}
	return name
}

// PackageObject returns the outermost object of the outer chain. A
// package itself has no outer, so its PackageObject is invalid.
func (o Object) PackageObject() Object {
	var pkg Object
	outer := o.Outer()
	for depth := 0; outer.IsValid() && depth < maxChainDepth; depth++ {
		pkg = outer
		outer = outer.Outer()
	}
	return pkg
}

// FullName returns "<ClassName> <Outer>.<...>.<Name>", the engine's
// unique path for an object.
func (o Object) FullName() string {
	if !o.IsValid() {
		return ""
	}
	cls := o.Class()
	if !cls.IsValid() {
		return ""
	}
	var outers []string
	outer := o.Outer()
	for depth := 0; outer.IsValid() && depth < maxChainDepth; depth++ {
		outers = append(outers, outer.Name())
		outer = outer.Outer()
	}
	var b strings.Builder
	b.WriteString(cls.Name())
	b.WriteByte(' ')
	for i := len(outers) - 1; i >= 0; i-- {
		b.WriteString(outers[i])
		b.WriteByte('.')
	}
	b.WriteString(o.Name())
	return b.String()
}

// NameCPP returns the name used for C++ declarations: classes get the
// U or A prefix, structs the F prefix.
func (o Object) NameCPP() string {
	name := o.Name()
	switch o.Kind() {
	case KindClass:
		s := Struct{o}
		for c, depth := s, 0; c.IsValid() && depth < maxChainDepth; c, depth = c.Super(), depth+1 {
			if c.Name() == "Actor" {
				return "A" + name
			}
		}
		return "U" + name
	case KindStruct, KindFunction:
		return "F" + name
	}
	return name
}

// Kind classifies the object by walking its class's super chain.
func (o Object) Kind() Kind {
	if !o.IsValid() {
		return KindObject
	}
	c := o.Class()
	for depth := 0; c.IsValid() && depth < maxChainDepth; depth++ {
		if k, ok := kindByClassName[c.Name()]; ok {
			return k
		}
		c = Class{c.Super()}
	}
	return KindObject
}

// IsA reports whether the object is of kind k. Class and function
// objects are structs too.
func (o Object) IsA(k Kind) bool {
	got := o.Kind()
	if got == k {
		return true
	}
	return k == KindStruct && (got == KindClass || got == KindFunction)
}

func (o Object) wrongKind(want Kind) error {
	if !o.IsValid() {
		return fmt.Errorf("%w: cast to %s", ErrInvalid, want)
	}
	return fmt.Errorf("%w: %s is %s, not %s", ErrWrongKind, o.Name(), o.Kind(), want)
}

// AsStruct downcasts to Struct (script structs, classes and functions).
func (o Object) AsStruct() (Struct, error) {
	if !o.IsA(KindStruct) {
		return Struct{}, o.wrongKind(KindStruct)
	}
	return Struct{o}, nil
}

// AsClass downcasts to Class.
func (o Object) AsClass() (Class, error) {
	if !o.IsA(KindClass) {
		return Class{}, o.wrongKind(KindClass)
	}
	return Class{Struct{o}}, nil
}

// AsEnum downcasts to Enum.
func (o Object) AsEnum() (Enum, error) {
	if !o.IsA(KindEnum) {
		return Enum{}, o.wrongKind(KindEnum)
	}
	return Enum{o}, nil
}

// AsFunction downcasts to Function.
func (o Object) AsFunction() (Function, error) {
	if !o.IsA(KindFunction) {
		return Function{}, o.wrongKind(KindFunction)
	}
	return Function{Struct{o}}, nil
}

// AsProperty downcasts to Property.
func (o Object) AsProperty() (Property, error) {
	if !o.IsA(KindProperty) {
		return Property{}, o.wrongKind(KindProperty)
	}
	return Property{o}, nil
}

func (o Object) String() string {
	if !o.IsValid() {
		return "<invalid>"
	}
	return fmt.Sprintf("%s@0x%x", o.Name(), o.addr)
}
