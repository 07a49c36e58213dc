package ue

// Kind tags the reflection category of an object.
type Kind int

const (
	KindObject Kind = iota
	KindClass
	KindStruct
	KindEnum
	KindFunction
	KindProperty
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindClass:
		return "class"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindFunction:
		return "function"
	case KindProperty:
		return "property"
	default:
		return "unknown"
	}
}

// kindByClassName maps engine metaclass names to kinds. The first match
// walking up from the object's class wins, so Function is found before
// its Struct base.
var kindByClassName = map[string]Kind{
	"Class":        KindClass,
	"ScriptStruct": KindStruct,
	"Struct":       KindStruct,
	"Function":     KindFunction,
	"Enum":         KindEnum,
	"Property":     KindProperty,
}
