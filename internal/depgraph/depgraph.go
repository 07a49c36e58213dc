// Package depgraph renders package dependencies and signature windows as
// lattice graphs.
package depgraph

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"uedump/internal/disasm"
	"uedump/internal/output"
	"uedump/internal/sdk"
)

// Packages builds the package dependency graph. Each package is a node;
// an edge runs from a package to each package it needs. Dependencies
// that were dropped as empty keep their engine name.
func Packages(pkgs []*sdk.Package, reg *sdk.Registry) *lattice.Graph {
	g := &lattice.Graph{}
	for _, p := range pkgs {
		g.Nodes = append(g.Nodes, p.Name)
		for _, dep := range p.Dependencies() {
			callee := dep.Name()
			if d, ok := reg.Lookup(dep); ok {
				callee = d.Name
			}
			if callee == "" {
				callee = fmt.Sprintf("0x%x", dep.Address())
			}
			g.Edges = append(g.Edges, lattice.Edge{Caller: p.Name, Callee: callee})
		}
	}
	g.Dedup()
	return g
}

// WritePackages writes the package graph as DOT.
func WritePackages(fs afero.Fs, path string, g *lattice.Graph) error {
	return output.WriteText(fs, path, render.DOT(g, "packages"))
}

// Window converts the CFG of a disassembled signature window. Resolved
// references become call sites of the block that contains them, labeled
// by label when it returns a name.
func Window(cfg disasm.CFG, refs []disasm.Ref, label func(disasm.Ref) string) *lattice.FuncCFG {
	byPC := make(map[uint64]disasm.Ref, len(refs))
	for _, r := range refs {
		byPC[r.PC] = r
	}

	out := &lattice.FuncCFG{Name: cfg.Name}
	for _, b := range cfg.Blocks {
		lb := &lattice.BasicBlock{ID: b.ID, Start: b.Start, End: b.End, Term: b.Term}
		for _, e := range b.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: e.Block, Cond: e.Cond})
		}
		for idx := b.Start; idx < b.End && idx < len(cfg.Insts); idx++ {
			r, ok := byPC[cfg.Insts[idx].Addr]
			if !ok {
				continue
			}
			callee := ""
			if label != nil {
				callee = label(r)
			}
			if callee == "" {
				callee = fmt.Sprintf("%s 0x%x", r.Kind, r.Target)
			}
			lb.Calls = append(lb.Calls, lattice.CallSite{Offset: idx, Callee: callee})
		}
		out.Blocks = append(out.Blocks, lb)
	}
	return out
}

// WriteWindow writes one window CFG as DOT.
func WriteWindow(fs afero.Fs, path string, cfg *lattice.FuncCFG) error {
	g := &lattice.CFGGraph{Funcs: []*lattice.FuncCFG{cfg}}
	return output.WriteText(fs, path, render.DOTCFG(g, cfg.Name))
}
