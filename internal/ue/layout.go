package ue

// Layout holds the byte offsets of every engine structure the object
// model reads. Values differ between engine builds and architectures and
// are supplied by configuration.
//
// Object array (GUObjectArray, a global in the engine module):
//
//	+ObjObjects: TUObjectArray { Objects *FUObjectItem; MaxElements int32; NumElements int32 }
//	FUObjectItem { Object *UObject; Flags, ClusterIndex, SerialNumber int32 }
//
// Name table (GNames, a TNameEntryArray, usually reached through a pointer):
//
//	Chunks [MaxChunks]*[ChunkSize]*FNameEntry; NumElements int32; NumChunks int32
type Layout struct {
	PointerSize int `koanf:"pointer_size" validate:"oneof=4 8"`

	ObjectsOffset    uint64 `koanf:"objects_offset"`
	ObjObjectsOffset uint64 `koanf:"obj_objects_offset"`
	ObjectItemSize   uint64 `koanf:"object_item_size" validate:"gt=0"`

	NamesOffset           uint64 `koanf:"names_offset"`
	NamesDeref            bool   `koanf:"names_deref"`
	NamesChunkSize        int    `koanf:"names_chunk_size" validate:"gt=0"`
	NamesMaxChunks        int    `koanf:"names_max_chunks" validate:"gt=0"`
	NameEntryStringOffset uint64 `koanf:"name_entry_string_offset"`
	NameMaxLength         int    `koanf:"name_max_length" validate:"gt=0"`

	// UObject
	ObjectIndex uint64 `koanf:"object_index"`
	ObjectClass uint64 `koanf:"object_class"`
	ObjectName  uint64 `koanf:"object_name"`
	ObjectOuter uint64 `koanf:"object_outer"`

	// UField
	FieldNext uint64 `koanf:"field_next"`

	// UStruct
	StructSuper          uint64 `koanf:"struct_super"`
	StructChildren       uint64 `koanf:"struct_children"`
	StructPropertiesSize uint64 `koanf:"struct_properties_size"`

	// UFunction
	FunctionFlags uint64 `koanf:"function_flags"`

	// UEnum: TArray<TPair<FName, int64>>
	EnumNames      uint64 `koanf:"enum_names"`
	EnumPairStride uint64 `koanf:"enum_pair_stride"`

	// UProperty
	PropertyArrayDim    uint64 `koanf:"property_array_dim"`
	PropertyElementSize uint64 `koanf:"property_element_size"`
	PropertyOffset      uint64 `koanf:"property_offset"`
	// First field of the concrete property class: UStructProperty::Struct,
	// UObjectProperty::PropertyClass, UArrayProperty::Inner, UByteProperty::Enum.
	PropertyInner uint64 `koanf:"property_inner"`
}

// DefaultLayout64 returns offsets for a 64-bit UE 4.2x build.
func DefaultLayout64() Layout {
	return Layout{
		PointerSize:           8,
		ObjectsOffset:         0,
		ObjObjectsOffset:      0x10,
		ObjectItemSize:        0x18,
		NamesDeref:            true,
		NamesChunkSize:        16384,
		NamesMaxChunks:        128,
		NameEntryStringOffset: 0x10,
		NameMaxLength:         1024,

		ObjectIndex: 0x0C,
		ObjectClass: 0x10,
		ObjectName:  0x18,
		ObjectOuter: 0x20,
		FieldNext:   0x28,

		StructSuper:          0x30,
		StructChildren:       0x38,
		StructPropertiesSize: 0x40,
		FunctionFlags:        0x88,

		EnumNames:      0x40,
		EnumPairStride: 0x10,

		PropertyArrayDim:    0x30,
		PropertyElementSize: 0x34,
		PropertyOffset:      0x44,
		PropertyInner:       0x70,
	}
}

// DefaultLayout32 returns offsets for a 32-bit ARM UE 4.2x build.
func DefaultLayout32() Layout {
	return Layout{
		PointerSize:           4,
		ObjectsOffset:         0,
		ObjObjectsOffset:      0x10,
		ObjectItemSize:        0x10,
		NamesDeref:            true,
		NamesChunkSize:        16384,
		NamesMaxChunks:        128,
		NameEntryStringOffset: 0x08,
		NameMaxLength:         1024,

		ObjectIndex: 0x08,
		ObjectClass: 0x0C,
		ObjectName:  0x10,
		ObjectOuter: 0x18,
		FieldNext:   0x1C,

		StructSuper:          0x20,
		StructChildren:       0x24,
		StructPropertiesSize: 0x28,
		FunctionFlags:        0x58,

		EnumNames:      0x2C,
		EnumPairStride: 0x10,

		PropertyArrayDim:    0x20,
		PropertyElementSize: 0x24,
		PropertyOffset:      0x30,
		PropertyInner:       0x50,
	}
}

// ObjectsNumOffset is the offset of NumElements inside TUObjectArray.
func (l Layout) ObjectsNumOffset() uint64 {
	return uint64(l.PointerSize) + 4
}

// Bits returns 32 or 64.
func (l Layout) Bits() int {
	return l.PointerSize * 8
}
