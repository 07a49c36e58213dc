package sdk

import (
	"fmt"
	"iter"

	"github.com/spf13/afero"

	"uedump/internal/diag"
	"uedump/internal/logger"
	"uedump/internal/ue"
)

// Extractor partitions objects into packages and saves each package.
type Extractor struct {
	Gen Generator
	Fs  afero.Fs
	// SDKDir receives the per-package units.
	SDKDir string
	Log    logger.Logger
}

// Extraction is the result of one extraction pass. The ledger is
// sealed.
type Extraction struct {
	Packages []*Package
	Ledger   *Ledger
	Registry *Registry
	Diags    diag.Diags
}

// PackageObjects returns the distinct valid package objects of objs in
// order of first appearance.
func PackageObjects(objs iter.Seq[ue.Object]) []ue.Object {
	seen := make(map[ue.Object]bool)
	var out []ue.Object
	for obj := range objs {
		pkg := obj.PackageObject()
		if !pkg.IsValid() || seen[pkg] {
			continue
		}
		seen[pkg] = true
		out = append(out, pkg)
	}
	return out
}

// Extract processes and saves every package of objs. Packages whose
// save produced nothing are dropped.
func (e *Extractor) Extract(objs iter.Seq[ue.Object]) (*Extraction, error) {
	log := logger.OrDiscard(e.Log)
	res := &Extraction{Ledger: NewLedger(), Registry: NewRegistry()}

	for _, src := range PackageObjects(objs) {
		pkg := NewPackage(src, e.Gen)
		if err := pkg.Process(objs, res.Ledger); err != nil {
			return nil, fmt.Errorf("sdk: process %s: %w", pkg.Name, err)
		}
		res.Diags.Merge(pkg.Diags())

		saved, err := pkg.Save(e.Fs, e.SDKDir)
		if err != nil {
			return nil, fmt.Errorf("sdk: save %s: %w", pkg.Name, err)
		}
		if !saved {
			log.Debug("Empty package dropped", "package", pkg.Name)
			res.Diags.Add(src.Address(), diag.KindEmptyPackage, pkg.Name)
			continue
		}
		log.Debug("Package saved", "package", pkg.Name,
			"enums", len(pkg.Enums), "structs", len(pkg.Structs), "classes", len(pkg.Classes))
		res.Registry.Register(pkg)
		res.Packages = append(res.Packages, pkg)
	}
	res.Ledger.Seal()
	log.Debug("Extraction finished", "packages", res.Registry.Len(), "missing", len(res.Ledger.Missing()))
	return res, nil
}
