package cppgen

import (
	"embed"
	"fmt"
	"io"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("cppgen").
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		ParseFS(templateFS, "templates/*.tmpl"),
)

// FileHeader describes the preamble of a generated file.
type FileHeader struct {
	Game      string
	Version   string
	Includes  []string
	Alignment int
	// IsHeader adds "#pragma once".
	IsHeader bool
	// Title, when set, is printed as a banner inside the namespace.
	Title string
}

// WriteHeader writes the file preamble and opens the SDK namespace.
func WriteHeader(w io.Writer, h FileHeader) error {
	if h.Alignment <= 0 {
		h.Alignment = 8
	}
	return execute(w, "header", h)
}

// WriteFooter closes what WriteHeader opened.
func WriteFooter(w io.Writer) error {
	return execute(w, "footer", nil)
}

// WriteDeclaration renders d with the template matching its kind.
func WriteDeclaration(w io.Writer, d Declaration) error {
	switch d.Kind {
	case DeclStruct, DeclClass:
		return execute(w, "struct", d)
	case DeclEnum:
		return execute(w, "enum", d)
	case DeclParams:
		return execute(w, "params", d)
	}
	return fmt.Errorf("cppgen: unknown declaration kind %v", d.Kind)
}

// WriteStaticClass writes the StaticClass definition of a class declaration.
func WriteStaticClass(w io.Writer, d Declaration) error {
	if d.Kind != DeclClass {
		return fmt.Errorf("cppgen: %s is not a class", d.Name)
	}
	return execute(w, "staticclass", d)
}

// Missing is the opaque placeholder emitted for an unresolved struct.
type Missing struct {
	FullName string
	Name     string
	Size     int32
}

// WriteMissing writes a byte-buffer placeholder declaration.
func WriteMissing(w io.Writer, m Missing) error {
	return execute(w, "missing", m)
}

func execute(w io.Writer, name string, data any) error {
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("cppgen: render %s: %w", name, err)
	}
	return nil
}
