// Package cppgen turns reflected structs, classes, enums and functions
// into C++ declarations and renders them as text.
package cppgen

import (
	"fmt"
	"slices"
	"strings"

	"uedump/internal/ue"
)

// DeclKind selects the declaration keyword and template.
type DeclKind int

const (
	DeclStruct DeclKind = iota
	DeclClass
	DeclEnum
	DeclParams
)

func (k DeclKind) String() string {
	switch k {
	case DeclStruct:
		return "struct"
	case DeclClass:
		return "class"
	case DeclEnum:
		return "enum"
	case DeclParams:
		return "params"
	}
	return fmt.Sprintf("DeclKind(%d)", int(k))
}

// Member is one data member of a struct-like declaration.
type Member struct {
	Type    string
	Name    string
	Offset  int32
	Size    int32
	Padding bool
	// Comment carries the engine type of opaque members and notes on
	// overlapping members (bitfields), which are emitted as comments only.
	Comment string
	Overlap bool
}

// Line renders the member the way it appears inside a declaration body.
func (m Member) Line() string {
	decl := m.Type + " " + m.Name + ";"
	if m.Overlap {
		return fmt.Sprintf("// %-47s // 0x%04X(0x%04X) %s", decl, m.Offset, m.Size, m.Comment)
	}
	line := fmt.Sprintf("%-50s // 0x%04X(0x%04X)", decl, m.Offset, m.Size)
	if m.Comment != "" {
		line += " " + m.Comment
	}
	return line
}

// Enumerator is one rendered enum value.
type Enumerator struct {
	Name  string
	Value int64
}

// Declaration is a fully resolved C++ declaration.
type Declaration struct {
	Kind     DeclKind
	Name     string
	FullName string
	Super    string
	// Size is the total instance size; InheritedSize the super's size.
	Size          int32
	InheritedSize int32
	Members       []Member

	Underlying  string
	Enumerators []Enumerator

	// Owner and Function name the UFunction a parameter struct belongs to;
	// Flags lists its notable function flags.
	Owner    string
	Function string
	Flags    string
}

// Keyword is "struct" or "class".
func (d Declaration) Keyword() string {
	if d.Kind == DeclClass {
		return "class"
	}
	return "struct"
}

// OwnSize is the number of bytes the declaration adds over its super.
func (d Declaration) OwnSize() int32 { return d.Size - d.InheritedSize }

// BuildStruct resolves s into a declaration. The result is a class
// declaration when s is a UClass. Any member whose type cannot be
// derived fails the whole declaration with ErrUnresolvedProperty.
func BuildStruct(s ue.Struct) (Declaration, error) {
	if !s.IsValid() {
		return Declaration{}, ue.ErrInvalid
	}
	d := Declaration{
		Kind:     DeclStruct,
		Name:     MakeValidName(s.NameCPP()),
		FullName: s.FullName(),
		Size:     s.PropertySize(),
	}
	if s.IsA(ue.KindClass) {
		d.Kind = DeclClass
	}
	if super := s.Super(); super.IsValid() {
		d.Super = MakeValidName(super.NameCPP())
		d.InheritedSize = super.PropertySize()
	}
	members, err := layoutMembers(s.Properties(), d.InheritedSize, d.Size)
	if err != nil {
		return Declaration{}, fmt.Errorf("%s: %w", d.FullName, err)
	}
	d.Members = members
	return d, nil
}

// BuildFunctionParams resolves the parameter struct of fn.
func BuildFunctionParams(fn ue.Function) (Declaration, error) {
	if !fn.IsValid() {
		return Declaration{}, ue.ErrInvalid
	}
	owner := fn.Outer()
	d := Declaration{
		Kind:     DeclParams,
		Name:     MakeValidName(owner.NameCPP()) + "_" + MakeValidName(fn.Name()) + "_Params",
		FullName: fn.FullName(),
		Size:     fn.PropertySize(),
		Owner:    MakeValidName(owner.NameCPP()),
		Function: fn.Name(),
		Flags:    FunctionFlags(fn.Flags()),
	}
	members, err := layoutMembers(fn.Properties(), 0, d.Size)
	if err != nil {
		return Declaration{}, fmt.Errorf("%s: %w", d.FullName, err)
	}
	d.Members = members
	return d, nil
}

var functionFlagNames = []struct {
	flag uint32
	name string
}{
	{ue.FuncFinal, "Final"},
	{ue.FuncNative, "Native"},
	{ue.FuncEvent, "Event"},
	{ue.FuncStatic, "Static"},
	{ue.FuncPublic, "Public"},
	{ue.FuncConst, "Const"},
	{ue.FuncDelegate, "Delegate"},
}

// FunctionFlags names the notable bits of an EFunctionFlags value, e.g.
// "Native, Public".
func FunctionFlags(flags uint32) string {
	var names []string
	for _, f := range functionFlagNames {
		if flags&f.flag != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, ", ")
}

// BuildEnum resolves e. The underlying type widens past uint8_t only
// when a value needs it.
func BuildEnum(e ue.Enum) Declaration {
	d := Declaration{
		Kind:       DeclEnum,
		Name:       MakeValidName(e.Name()),
		FullName:   e.FullName(),
		Underlying: "uint8_t",
	}
	seen := make(map[string]int)
	for _, v := range e.Values() {
		name := EnumeratorName(v.Name)
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s%02d", name, n)
		} else {
			seen[name] = 1
		}
		if v.Value < 0 || v.Value > 0xFF {
			d.Underlying = "int64_t"
		}
		d.Enumerators = append(d.Enumerators, Enumerator{Name: name, Value: v.Value})
	}
	return d
}

func layoutMembers(props []ue.Property, start, size int32) ([]Member, error) {
	props = slices.Clone(props)
	slices.SortStableFunc(props, func(a, b ue.Property) int {
		return int(a.Offset()) - int(b.Offset())
	})

	var members []Member
	cursor := start
	for _, p := range props {
		t, err := PropertyType(p)
		if err != nil {
			return nil, err
		}
		off, psize := p.Offset(), p.Size()
		m := Member{
			Type:   t.Name,
			Name:   MakeValidName(p.Name()),
			Offset: off,
			Size:   psize,
		}
		if t.Opaque {
			m.Type = "unsigned char"
			m.Name = fmt.Sprintf("%s[0x%X]", m.Name, psize)
			m.Comment = t.Name
		} else if dim := p.ArrayDim(); dim > 1 {
			m.Name = fmt.Sprintf("%s[0x%X]", m.Name, dim)
		}

		if off < cursor {
			m.Overlap = true
			if m.Comment == "" {
				m.Comment = "overlaps previous member"
			}
			members = append(members, m)
			continue
		}
		if off > cursor {
			members = append(members, padding(cursor, off-cursor))
		}
		members = append(members, m)
		cursor = off + psize
	}
	if cursor < size {
		members = append(members, padding(cursor, size-cursor))
	}
	return members, nil
}

func padding(offset, size int32) Member {
	return Member{
		Type:    "unsigned char",
		Name:    fmt.Sprintf("UnknownData_%04X[0x%X]", offset, size),
		Offset:  offset,
		Size:    size,
		Padding: true,
		Comment: "MISSED OFFSET",
	}
}
