package sdk

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"uedump/internal/cppgen"
	"uedump/internal/output"
)

// Output file names.
const (
	SDKDirName      = "SDK"
	SDKHeaderName   = "SDK.hpp"
	SummaryFileName = "SDK_Summary.txt"
)

var basicIncludes = []string{"<iostream>", "<string>", "<unordered_set>", "<codecvt>"}

// Assembler writes the aggregate SDK.hpp and the shared units.
type Assembler struct {
	Gen Generator
	Fs  afero.Fs
}

func (a *Assembler) BasicHeaderName() string   { return a.Gen.GameNameShort() + "_Basic.hpp" }
func (a *Assembler) BasicSourceName() string   { return a.Gen.GameNameShort() + "_Basic.cpp" }
func (a *Assembler) MissingHeaderName() string { return a.Gen.GameNameShort() + "_MISSING.hpp" }

// Write creates dir/SDK if needed and writes the basic units, the
// missing-types unit (only when ledger has unresolved entries) and
// dir/SDK.hpp including everything in packages order.
func (a *Assembler) Write(dir string, ledger *Ledger, packages []*Package) error {
	sdkDir := filepath.Join(dir, SDKDirName)
	if err := a.Fs.MkdirAll(sdkDir, 0o755); err != nil {
		return fmt.Errorf("sdk: mkdir %s: %w", sdkDir, err)
	}

	if err := a.writeUnit(filepath.Join(sdkDir, a.BasicHeaderName()), true, basicIncludes, a.Gen.BasicDeclarations()); err != nil {
		return err
	}
	if err := a.writeUnit(filepath.Join(sdkDir, a.BasicSourceName()), false, []string{`"../SDK.hpp"`}, a.Gen.BasicDefinitions()); err != nil {
		return err
	}

	missing := ledger.Missing()
	if len(missing) > 0 {
		var body bytes.Buffer
		used := make(map[string]bool, len(missing))
		for _, obj := range missing {
			m := cppgen.Missing{
				FullName: obj.FullName(),
				Name:     uniqueName(used, cppgen.MakeValidName(obj.NameCPP())),
			}
			if s, err := obj.AsStruct(); err == nil {
				m.Size = s.PropertySize()
			}
			if err := cppgen.WriteMissing(&body, m); err != nil {
				return err
			}
		}
		if err := a.writeUnit(filepath.Join(sdkDir, a.MissingHeaderName()), true, nil, body.String()); err != nil {
			return err
		}
	}

	return output.WriteFile(a.Fs, filepath.Join(dir, SDKHeaderName), func(w io.Writer) error {
		return a.writeAggregate(w, len(missing) > 0, packages)
	})
}

// uniqueName returns name, or name with a numeric suffix when another
// placeholder already took it, and marks the result used.
func uniqueName(used map[string]bool, name string) string {
	out := name
	for n := 1; used[out]; n++ {
		out = fmt.Sprintf("%s%02d", name, n)
	}
	used[out] = true
	return out
}

func (a *Assembler) writeAggregate(w io.Writer, hasMissing bool, packages []*Package) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "#pragma once\n\n// %s (%s) SDK\n", a.Gen.GameName(), a.Gen.GameVersion())
	b.WriteString("#include <set>\n#include <string>\n")
	for _, inc := range a.Gen.Includes() {
		fmt.Fprintf(&b, "#include %s\n", inc)
	}
	fmt.Fprintf(&b, "\n#include \"%s/%s\"\n", SDKDirName, a.BasicHeaderName())
	if hasMissing {
		fmt.Fprintf(&b, "\n#include \"%s/%s\"\n", SDKDirName, a.MissingHeaderName())
	}
	b.WriteString("\n")
	for _, p := range packages {
		fmt.Fprintf(&b, "#include \"%s/%s\"\n", SDKDirName, p.StructsFile())
		fmt.Fprintf(&b, "#include \"%s/%s\"\n", SDKDirName, p.ClassesFile())
		if a.Gen.ShouldGenerateFunctionParametersFile() {
			fmt.Fprintf(&b, "#include \"%s/%s\"\n", SDKDirName, p.ParametersFile())
		}
	}
	_, err := w.Write(b.Bytes())
	return err
}

func (a *Assembler) writeUnit(path string, isHeader bool, includes []string, body string) error {
	var buf bytes.Buffer
	h := cppgen.FileHeader{
		Game:      a.Gen.GameName(),
		Version:   a.Gen.GameVersion(),
		Includes:  includes,
		Alignment: a.Gen.Alignment(),
		IsHeader:  isHeader,
	}
	if err := cppgen.WriteHeader(&buf, h); err != nil {
		return err
	}
	buf.WriteString(body)
	buf.WriteString("\n")
	if err := cppgen.WriteFooter(&buf); err != nil {
		return err
	}
	return output.WriteText(a.Fs, path, buf.String())
}

// Summary is the completion record of a run.
type Summary struct {
	Game     string
	Path     string
	Packages int
	Missing  int
	// Elapsed is preformatted, e.g. "3 seconds".
	Elapsed string
}

// WriteSummary writes dir/SDK_Summary.txt.
func WriteSummary(fs afero.Fs, dir string, s Summary) error {
	const rule = "==========================================\n"
	var b bytes.Buffer
	b.WriteString(rule)
	b.WriteString("DUMP SUCCESSFUL\n")
	b.WriteString(rule)
	fmt.Fprintf(&b, "Game Name: %s\n", s.Game)
	fmt.Fprintf(&b, "Output Path: %s\n", s.Path)
	fmt.Fprintf(&b, "Packages: %d\n", s.Packages)
	fmt.Fprintf(&b, "Missing Types: %d\n", s.Missing)
	if s.Elapsed != "" {
		fmt.Fprintf(&b, "Elapsed: %s\n", s.Elapsed)
	}
	b.WriteString("Status: SDK Generation Completed.\n")
	b.WriteString(rule)
	return output.WriteText(fs, filepath.Join(dir, SummaryFileName), b.String())
}
