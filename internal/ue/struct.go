package ue

import (
	"uedump/internal/memory"
)

// Struct is a UStruct: script structs, classes and functions.
type Struct struct {
	Object
}

// Super returns the parent struct.
func (s Struct) Super() Struct {
	if !s.IsValid() {
		return Struct{}
	}
	return Struct{s.rt.Object(s.rt.ptr(s.addr + s.rt.Layout.StructSuper))}
}

// PropertySize is the instance size in bytes.
func (s Struct) PropertySize() int32 {
	if !s.IsValid() {
		return 0
	}
	return s.rt.i32(s.addr + s.rt.Layout.StructPropertiesSize)
}

// Children returns the head of the UField linked list.
func (s Struct) Children() Object {
	if !s.IsValid() {
		return Object{}
	}
	return s.rt.Object(s.rt.ptr(s.addr + s.rt.Layout.StructChildren))
}

// Properties returns the struct's own properties (not inherited ones) in
// declaration order. Non-property children such as functions are skipped.
func (s Struct) Properties() []Property {
	var props []Property
	f := s.Children()
	for depth := 0; f.IsValid() && depth < maxChainDepth*16; depth++ {
		if f.IsA(KindProperty) {
			props = append(props, Property{f})
		}
		f = f.next()
	}
	return props
}

// Functions returns the functions declared directly on the struct.
func (s Struct) Functions() []Function {
	var fns []Function
	f := s.Children()
	for depth := 0; f.IsValid() && depth < maxChainDepth*16; depth++ {
		if f.IsA(KindFunction) {
			fns = append(fns, Function{Struct{f}})
		}
		f = f.next()
	}
	return fns
}

func (o Object) next() Object {
	if !o.IsValid() {
		return Object{}
	}
	return o.rt.Object(o.rt.ptr(o.addr + o.rt.Layout.FieldNext))
}

// Class is a UClass.
type Class struct {
	Struct
}

// SuperClass returns the parent class.
func (c Class) SuperClass() Class {
	return Class{c.Super()}
}

// Function is a UFunction.
type Function struct {
	Struct
}

// Function flags of interest.
const (
	FuncFinal    uint32 = 0x00000001
	FuncNative   uint32 = 0x00000400
	FuncEvent    uint32 = 0x00000800
	FuncStatic   uint32 = 0x00002000
	FuncPublic   uint32 = 0x00020000
	FuncConst    uint32 = 0x40000000
	FuncDelegate uint32 = 0x00100000
)

// Flags returns EFunctionFlags.
func (f Function) Flags() uint32 {
	if !f.IsValid() {
		return 0
	}
	v, err := memory.ReadUint32(f.rt.Mem, f.addr+f.rt.Layout.FunctionFlags)
	if err != nil {
		return 0
	}
	return v
}

// Enum is a UEnum.
type Enum struct {
	Object
}

// EnumValue is one enumerator.
type EnumValue struct {
	Name  string
	Value int64
}

// Values returns the enumerators. Names are "Enum::Value" in scoped
// enums; callers strip the prefix if they need to.
func (e Enum) Values() []EnumValue {
	if !e.IsValid() {
		return nil
	}
	l := e.rt.Layout
	base := e.addr + l.EnumNames
	data := e.rt.ptr(base)
	num := e.rt.i32(base + uint64(l.PointerSize))
	if data == 0 || num <= 0 || num > 0x10000 {
		return nil
	}
	vals := make([]EnumValue, 0, num)
	for i := int32(0); i < num; i++ {
		pair := data + uint64(i)*l.EnumPairStride
		idx := e.rt.i32(pair)
		name, err := e.rt.Names.Name(idx)
		if err != nil {
			continue
		}
		v, err := memory.ReadUint64(e.rt.Mem, pair+8)
		if err != nil {
			continue
		}
		vals = append(vals, EnumValue{Name: name, Value: int64(v)})
	}
	return vals
}

// Property is a UProperty.
type Property struct {
	Object
}

// Offset is the byte offset of the property inside its owner.
func (p Property) Offset() int32 {
	if !p.IsValid() {
		return 0
	}
	return p.rt.i32(p.addr + p.rt.Layout.PropertyOffset)
}

// ElementSize is the size of one element.
func (p Property) ElementSize() int32 {
	if !p.IsValid() {
		return 0
	}
	return p.rt.i32(p.addr + p.rt.Layout.PropertyElementSize)
}

// ArrayDim is the static array dimension (1 for scalars).
func (p Property) ArrayDim() int32 {
	if !p.IsValid() {
		return 0
	}
	return p.rt.i32(p.addr + p.rt.Layout.PropertyArrayDim)
}

// Size is ElementSize * ArrayDim.
func (p Property) Size() int32 {
	dim := p.ArrayDim()
	if dim < 1 {
		dim = 1
	}
	return p.ElementSize() * dim
}

// TypeName returns the property's class name, e.g. "IntProperty".
func (p Property) TypeName() string {
	return p.Class().Name()
}

// Inner returns the object referenced by the concrete property class:
// the struct of a StructProperty, the class of an ObjectProperty, the
// inner property of an ArrayProperty, the enum of a ByteProperty.
func (p Property) Inner() Object {
	if !p.IsValid() {
		return Object{}
	}
	return p.rt.Object(p.rt.ptr(p.addr + p.rt.Layout.PropertyInner))
}
