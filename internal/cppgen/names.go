package cppgen

import "strings"

// MakeValidName maps an engine display name to a C++ identifier: every
// byte outside [A-Za-z0-9_] becomes '_', and a leading digit gets an
// underscore prefix.
func MakeValidName(name string) string {
	if name == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(name) + 1)
	if name[0] >= '0' && name[0] <= '9' {
		b.WriteByte('_')
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// EnumeratorName strips the "Enum::" scope from a scoped enumerator.
func EnumeratorName(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	return MakeValidName(name)
}
