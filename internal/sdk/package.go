package sdk

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"path/filepath"

	"github.com/spf13/afero"

	"uedump/internal/cppgen"
	"uedump/internal/diag"
	"uedump/internal/output"
	"uedump/internal/ue"
)

// Package is the group of objects owned by one package object.
type Package struct {
	Source ue.Object
	Name   string

	Enums   []cppgen.Declaration
	Structs []cppgen.Declaration
	Classes []cppgen.Declaration
	Params  []cppgen.Declaration

	gen     Generator
	deps    []ue.Object
	hasDep  map[ue.Object]bool
	pending map[ue.Object]bool
	diags   diag.Diags
}

// NewPackage returns an empty package for the package object source.
func NewPackage(source ue.Object, gen Generator) *Package {
	return &Package{
		Source:  source,
		Name:    source.Name(),
		gen:     gen,
		hasDep:  make(map[ue.Object]bool),
		pending: make(map[ue.Object]bool),
	}
}

// Dependencies returns the package objects this package's declarations
// reference, in the order they were found.
func (p *Package) Dependencies() []ue.Object { return p.deps }

func (p *Package) Diags() *diag.Diags { return &p.diags }

// Empty reports whether processing produced nothing to save.
func (p *Package) Empty() bool {
	return len(p.Enums)+len(p.Structs)+len(p.Classes)+len(p.Params) == 0
}

// FileBase is the file name prefix of every unit of the package.
func (p *Package) FileBase() string {
	return p.gen.GameNameShort() + "_" + cppgen.MakeValidName(p.Name)
}

// Process classifies every object of objs owned by the package. Structs
// and classes are emitted after their same-package prerequisites;
// prerequisites owned by other packages become dependencies. The
// outcome for each struct and class is recorded in ledger.
func (p *Package) Process(objs iter.Seq[ue.Object], ledger *Ledger) error {
	if ledger.Sealed() {
		return ErrLedgerSealed
	}
	for obj := range objs {
		if obj.PackageObject() != p.Source {
			continue
		}
		switch obj.Kind() {
		case ue.KindEnum:
			e, err := obj.AsEnum()
			if err != nil {
				continue
			}
			p.Enums = append(p.Enums, cppgen.BuildEnum(e))
		case ue.KindStruct, ue.KindClass:
			s, err := obj.AsStruct()
			if err != nil {
				continue
			}
			if err := p.generateStruct(s, ledger); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Package) generateStruct(s ue.Struct, ledger *Ledger) error {
	if _, visited := ledger.Lookup(s.Object); visited || p.pending[s.Object] {
		return nil
	}
	p.pending[s.Object] = true
	defer delete(p.pending, s.Object)

	deps := cppgen.StructDeps(s)
	for _, dep := range deps.Structs {
		owner := dep.PackageObject()
		switch {
		case owner == p.Source:
			if err := p.generateStruct(dep, ledger); err != nil {
				return err
			}
		case owner.IsValid():
			p.addDependency(owner)
		}
	}
	// Enums are emitted ahead of every struct of their own package.
	for _, enum := range deps.Enums {
		if owner := enum.PackageObject(); owner.IsValid() {
			p.addDependency(owner)
		}
	}

	d, err := cppgen.BuildStruct(s)
	if err != nil {
		p.diags.Addf(s.Address(), diag.KindUnresolved, "%v", err)
		if err := ledger.Record(s.Object, false); err != nil {
			return err
		}
	} else {
		if err := ledger.Record(s.Object, true); err != nil {
			return err
		}
		if d.Kind == cppgen.DeclClass {
			p.Classes = append(p.Classes, d)
		} else {
			p.Structs = append(p.Structs, d)
		}
	}
	p.generateParams(s)
	return nil
}

// generateParams builds the parameter structs of the functions declared
// on s.
func (p *Package) generateParams(s ue.Struct) {
	if !p.gen.ShouldGenerateFunctionParametersFile() {
		return
	}
	for _, fn := range s.Functions() {
		d, err := cppgen.BuildFunctionParams(fn)
		if err != nil {
			p.diags.Addf(fn.Address(), diag.KindUnresolved, "%v", err)
			continue
		}
		p.Params = append(p.Params, d)
	}
}

func (p *Package) addDependency(pkg ue.Object) {
	if pkg == p.Source || p.hasDep[pkg] {
		return
	}
	p.hasDep[pkg] = true
	p.deps = append(p.deps, pkg)
}

// Unit file names, relative to the SDK directory.
func (p *Package) StructsFile() string    { return p.FileBase() + "_structs.hpp" }
func (p *Package) ClassesFile() string    { return p.FileBase() + "_classes.hpp" }
func (p *Package) FunctionsFile() string  { return p.FileBase() + "_functions.cpp" }
func (p *Package) ParametersFile() string { return p.FileBase() + "_parameters.hpp" }

// Save writes the package units into sdkDir. It writes nothing and
// reports false when the package is empty.
func (p *Package) Save(fs afero.Fs, sdkDir string) (bool, error) {
	if p.Empty() {
		return false, nil
	}

	err := p.writeUnit(fs, filepath.Join(sdkDir, p.StructsFile()), "Structs", true, nil, func(w io.Writer) error {
		for _, d := range p.Enums {
			if err := cppgen.WriteDeclaration(w, d); err != nil {
				return err
			}
		}
		return writeDecls(w, p.Structs)
	})
	if err != nil {
		return false, err
	}

	err = p.writeUnit(fs, filepath.Join(sdkDir, p.ClassesFile()), "Classes", true, nil, func(w io.Writer) error {
		return writeDecls(w, p.Classes)
	})
	if err != nil {
		return false, err
	}

	err = p.writeUnit(fs, filepath.Join(sdkDir, p.FunctionsFile()), "Functions", false, []string{`"../SDK.hpp"`}, func(w io.Writer) error {
		for _, d := range p.Classes {
			if err := cppgen.WriteStaticClass(w, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if p.gen.ShouldGenerateFunctionParametersFile() {
		err = p.writeUnit(fs, filepath.Join(sdkDir, p.ParametersFile()), "Parameters", true, nil, func(w io.Writer) error {
			return writeDecls(w, p.Params)
		})
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

func (p *Package) writeUnit(fs afero.Fs, path, title string, isHeader bool, includes []string, body func(io.Writer) error) error {
	var buf bytes.Buffer
	h := cppgen.FileHeader{
		Game:      p.gen.GameName(),
		Version:   p.gen.GameVersion(),
		Includes:  includes,
		Alignment: p.gen.Alignment(),
		IsHeader:  isHeader,
		Title:     p.Name + " " + title,
	}
	if err := cppgen.WriteHeader(&buf, h); err != nil {
		return err
	}
	if err := body(&buf); err != nil {
		return fmt.Errorf("sdk: package %s: %w", p.Name, err)
	}
	if err := cppgen.WriteFooter(&buf); err != nil {
		return err
	}
	return output.WriteText(fs, path, buf.String())
}

func writeDecls(w io.Writer, decls []cppgen.Declaration) error {
	for _, d := range decls {
		if err := cppgen.WriteDeclaration(w, d); err != nil {
			return err
		}
	}
	return nil
}
