package cppgen

import (
	"errors"
	"fmt"

	"uedump/internal/ue"
)

// ErrUnresolvedProperty marks a property whose C++ type cannot be
// derived; the owning declaration cannot be emitted.
var ErrUnresolvedProperty = errors.New("cppgen: unresolved property")

// TypeInfo is the C++ type of a property.
type TypeInfo struct {
	Name string
	// Opaque types are known to the engine but have no SDK mapping; they
	// are emitted as byte arrays of the property's size.
	Opaque bool
}

var primitiveTypes = map[string]string{
	"BoolProperty":   "bool",
	"Int8Property":   "int8_t",
	"Int16Property":  "int16_t",
	"IntProperty":    "int",
	"Int64Property":  "int64_t",
	"UInt16Property": "uint16_t",
	"UInt32Property": "uint32_t",
	"UInt64Property": "uint64_t",
	"FloatProperty":  "float",
	"DoubleProperty": "double",
	"NameProperty":   "struct FName",
	"StrProperty":    "struct FString",
	"TextProperty":   "struct FText",
}

var objectWrappers = map[string]string{
	"WeakObjectProperty":  "TWeakObjectPtr",
	"LazyObjectProperty":  "TLazyObjectPtr",
	"SoftObjectProperty":  "TSoftObjectPtr",
	"AssetObjectProperty": "TSoftObjectPtr",
	"SoftClassProperty":   "TSoftClassPtr",
	"AssetClassProperty":  "TSoftClassPtr",
	"InterfaceProperty":   "TScriptInterface",
}

var opaqueProperties = map[string]bool{
	"MapProperty":                     true,
	"SetProperty":                     true,
	"EnumProperty":                    true,
	"DelegateProperty":                true,
	"MulticastDelegateProperty":       true,
	"MulticastInlineDelegateProperty": true,
	"MulticastSparseDelegateProperty": true,
	"FieldPathProperty":               true,
}

// maxInnerDepth bounds TArray<TArray<...>> nesting.
const maxInnerDepth = 8

// PropertyType derives the C++ type of p.
func PropertyType(p ue.Property) (TypeInfo, error) {
	return propertyType(p, 0)
}

func propertyType(p ue.Property, depth int) (TypeInfo, error) {
	if depth > maxInnerDepth {
		return TypeInfo{}, fmt.Errorf("%w: %s: nesting too deep", ErrUnresolvedProperty, p.Name())
	}
	typeName := p.TypeName()
	if t, ok := primitiveTypes[typeName]; ok {
		return TypeInfo{Name: t}, nil
	}
	if opaqueProperties[typeName] {
		return TypeInfo{Name: typeName, Opaque: true}, nil
	}

	switch typeName {
	case "ByteProperty":
		if enum := p.Inner(); enum.IsValid() && enum.IsA(ue.KindEnum) {
			return TypeInfo{Name: fmt.Sprintf("TEnumAsByte<%s>", MakeValidName(enum.NameCPP()))}, nil
		}
		return TypeInfo{Name: "unsigned char"}, nil

	case "ObjectProperty", "ObjectPropertyBase", "ClassProperty":
		return TypeInfo{Name: fmt.Sprintf("class %s*", innerClassName(p))}, nil

	case "StructProperty":
		inner := p.Inner()
		if !inner.IsValid() || !inner.IsA(ue.KindStruct) {
			return TypeInfo{}, fmt.Errorf("%w: %s: struct property without struct", ErrUnresolvedProperty, p.Name())
		}
		return TypeInfo{Name: "struct " + MakeValidName(inner.NameCPP())}, nil

	case "ArrayProperty":
		innerObj := p.Inner()
		inner, err := innerObj.AsProperty()
		if err != nil {
			return TypeInfo{}, fmt.Errorf("%w: %s: array without inner property", ErrUnresolvedProperty, p.Name())
		}
		t, err := propertyType(inner, depth+1)
		if err != nil {
			return TypeInfo{}, err
		}
		if t.Opaque {
			return TypeInfo{Name: typeName, Opaque: true}, nil
		}
		return TypeInfo{Name: fmt.Sprintf("TArray<%s>", t.Name)}, nil
	}

	if wrapper, ok := objectWrappers[typeName]; ok {
		return TypeInfo{Name: fmt.Sprintf("%s<class %s>", wrapper, innerClassName(p))}, nil
	}
	return TypeInfo{}, fmt.Errorf("%w: %s has unknown type %q", ErrUnresolvedProperty, p.Name(), typeName)
}

func innerClassName(p ue.Property) string {
	if cls := p.Inner(); cls.IsValid() && cls.IsA(ue.KindClass) {
		return MakeValidName(cls.NameCPP())
	}
	return "UObject"
}

// Deps are the types a declaration needs complete before it.
type Deps struct {
	Structs []ue.Struct
	Enums   []ue.Enum
}

// StructDeps returns the dependencies of a declaration of s: its super,
// every struct held by value or as a TArray element, and the enums of
// byte properties.
func StructDeps(s ue.Struct) Deps {
	var deps Deps
	if super := s.Super(); super.IsValid() {
		deps.Structs = append(deps.Structs, super)
	}
	for _, p := range s.Properties() {
		deps.add(p, 0)
	}
	return deps
}

func (d *Deps) add(p ue.Property, depth int) {
	if depth > maxInnerDepth {
		return
	}
	switch p.TypeName() {
	case "StructProperty":
		if inner, err := p.Inner().AsStruct(); err == nil {
			d.Structs = append(d.Structs, inner)
		}
	case "ByteProperty":
		if enum, err := p.Inner().AsEnum(); err == nil {
			d.Enums = append(d.Enums, enum)
		}
	case "ArrayProperty":
		if inner, err := p.Inner().AsProperty(); err == nil {
			d.add(inner, depth+1)
		}
	}
}
