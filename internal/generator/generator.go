// Package generator supplies the game-specific parts of an SDK from
// configuration.
package generator

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/spf13/afero"

	"uedump/internal/config"
	"uedump/internal/ue"
)

//go:embed basic/*.tmpl
var basicFS embed.FS

var basicTemplates = template.Must(
	template.New("basic").
		Funcs(sprig.TxtFuncMap()).
		ParseFS(basicFS, "basic/*.tmpl"),
)

var ErrNotInitialized = errors.New("generator: not initialized")

// Generator is a config-driven sdk.Generator. The basic units are
// rendered from built-in templates for the configured layout unless
// the game section points at replacement files.
type Generator struct {
	game   config.GameConfig
	outDir string
	layout ue.Layout
	fs     afero.Fs

	decls, defs string
	ready       bool
}

func New(cfg *config.Config, fs afero.Fs) *Generator {
	return &Generator{
		game:   cfg.Game,
		outDir: cfg.Output.Dir,
		layout: cfg.Layout,
		fs:     fs,
	}
}

// basicData is what the basic templates see.
type basicData struct {
	ue.Layout
	ItemPadding uint64
}

// Initialize prepares the basic units.
func (g *Generator) Initialize(_ context.Context) error {
	if g.ready {
		return nil
	}
	data := basicData{Layout: g.layout}
	if used := uint64(g.layout.PointerSize) + 12; g.layout.ObjectItemSize > used {
		data.ItemPadding = g.layout.ObjectItemSize - used
	}

	decls, err := g.unit(g.game.BasicDeclarations, "basic.hpp.tmpl", data)
	if err != nil {
		return err
	}
	defs, err := g.unit(g.game.BasicDefinitions, "basic.cpp.tmpl", data)
	if err != nil {
		return err
	}
	g.decls, g.defs = decls, defs
	g.ready = true
	return nil
}

func (g *Generator) unit(override, name string, data basicData) (string, error) {
	if override != "" {
		b, err := afero.ReadFile(g.fs, override)
		if err != nil {
			return "", fmt.Errorf("generator: read %s: %w", override, err)
		}
		return string(b), nil
	}
	var buf bytes.Buffer
	if err := basicTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("generator: render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (g *Generator) GameName() string        { return g.game.Name }
func (g *Generator) GameVersion() string     { return g.game.Version }
func (g *Generator) GameNameShort() string   { return g.game.Short }
func (g *Generator) OutputDirectory() string { return g.outDir }
func (g *Generator) Alignment() int          { return g.game.Alignment }

func (g *Generator) Includes() []string {
	return append([]string(nil), g.game.Includes...)
}

func (g *Generator) ShouldGenerateFunctionParametersFile() bool {
	return g.game.FunctionParameters
}

// BasicDeclarations returns the <Short>_Basic.hpp body; empty before
// Initialize.
func (g *Generator) BasicDeclarations() string { return g.decls }
func (g *Generator) BasicDefinitions() string  { return g.defs }

// Ready reports whether Initialize succeeded.
func (g *Generator) Ready() error {
	if !g.ready {
		return ErrNotInitialized
	}
	return nil
}
