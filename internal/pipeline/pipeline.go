// Package pipeline runs a complete dump: it attaches to the engine
// module, writes the diagnostic listings and generates the SDK.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"uedump/internal/config"
	"uedump/internal/depgraph"
	"uedump/internal/diag"
	"uedump/internal/disasm"
	"uedump/internal/dump"
	"uedump/internal/generator"
	"uedump/internal/logger"
	"uedump/internal/memory"
	"uedump/internal/names"
	"uedump/internal/objects"
	"uedump/internal/output"
	"uedump/internal/sdk"
	"uedump/internal/ue"
)

const (
	LogFileName      = "Generator.log"
	GraphFileName    = "PackageGraph.dot"
	DiagsFileName    = "diags.json"
	WindowsGraphsDir = "Graphs"
)

// Target is the address space being dumped.
type Target struct {
	Mem     memory.Reader
	Modules memory.ModuleResolver
}

// Pipeline is a single dump run. Gen defaults to the config-driven
// generator.
type Pipeline struct {
	Cfg    *config.Config
	Target Target
	Fs     afero.Fs
	Log    logger.Logger
	Gen    sdk.Generator
}

// Result summarizes a finished run.
type Result struct {
	Dir      string
	Packages []string
	Missing  int
	Cycles   [][]string
	Diags    diag.Diags
	Elapsed  time.Duration
}

// OutputDir is <root>/<Short>_(v<Version>)_<Bits>Bit.
func OutputDir(root string, gen sdk.Generator, layout ue.Layout) string {
	return filepath.Join(root, fmt.Sprintf("%s_(v%s)_%dBit", gen.GameNameShort(), gen.GameVersion(), layout.Bits()))
}

// Session holds the initialized stores of a target.
type Session struct {
	Module  memory.Module
	Runtime *ue.Runtime
	Names   *names.Store
	Objects *objects.Store
}

// Attach waits for the engine module and initializes the object and
// name tables, in that order. Any failure is fatal to the run.
func Attach(ctx context.Context, cfg *config.Config, target Target) (*Session, error) {
	wait := memory.WaitOptions{Timeout: cfg.Wait.Timeout, Interval: cfg.Wait.Interval}
	mod, err := memory.WaitForModule(ctx, target.Modules, cfg.Target.Module, wait)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	ns := names.NewStore(target.Mem, cfg.Layout, target.Modules, names.Options{Module: cfg.Target.Module, Wait: wait})
	rt := ue.NewRuntime(target.Mem, cfg.Layout, ns)
	objs := objects.NewStore(rt, target.Modules, objects.Options{Module: cfg.Target.Module, Wait: wait})
	if err := objs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if err := ns.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return &Session{Module: mod, Runtime: rt, Names: ns, Objects: objs}, nil
}

// Run performs the dump.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	log := logger.OrDiscard(p.Log)
	cfg := p.Cfg

	log.Info("Attaching", "module", cfg.Target.Module)
	s, err := Attach(ctx, cfg, p.Target)
	if err != nil {
		return nil, err
	}
	log.Info("Stores initialized",
		"base", fmt.Sprintf("0x%X", s.Module.Base),
		"objects", humanize.Comma(int64(s.Objects.Size())),
		"names", humanize.Comma(int64(s.Names.Count())))

	gen := p.Gen
	if gen == nil {
		gen = generator.New(cfg, p.Fs)
	}
	if err := gen.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("pipeline: generator: %w", err)
	}

	dir := OutputDir(gen.OutputDirectory(), gen, cfg.Layout)
	if err := p.Fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: create %s: %w", dir, err)
	}
	res := &Result{Dir: dir}

	log.Info("Dumping offsets")
	if err := p.writeOffsets(s, gen, dir, &res.Diags); err != nil {
		return nil, err
	}

	f, err := output.OpenLog(p.Fs, filepath.Join(dir, LogFileName))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	log = logger.Tee(log, logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		Output:     f,
		TimeFormat: time.DateTime,
		Plain:      true,
	}))

	log.Info("Dumping names and objects")
	if err := output.WriteFile(p.Fs, filepath.Join(dir, dump.NamesFile), func(w io.Writer) error {
		return dump.Names(w, s.Names.Address(), s.Names.All())
	}); err != nil {
		return nil, err
	}
	if err := output.WriteFile(p.Fs, filepath.Join(dir, dump.ObjectsFile), func(w io.Writer) error {
		return dump.Objects(w, s.Objects.Address(), s.Objects.All())
	}); err != nil {
		return nil, err
	}

	log.Info("Dumping core class sizes", "package", cfg.Output.CorePackage)
	var classes int
	if err := output.WriteFile(p.Fs, filepath.Join(dir, dump.CoreInfoFile), func(w io.Writer) error {
		classes, err = dump.CoreSizes(w, s.Objects.All(), cfg.Output.CorePackage)
		return err
	}); err != nil {
		return nil, err
	}
	if classes == 0 {
		log.Warn("Core package not found", "package", cfg.Output.CorePackage)
	}

	log.Info("Dumping SDK")
	ext := &sdk.Extractor{Gen: gen, Fs: p.Fs, SDKDir: filepath.Join(dir, sdk.SDKDirName), Log: log}
	ex, err := ext.Extract(s.Objects.All())
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	res.Diags.Merge(&ex.Diags)

	sorted := sdk.SortPackages(ex.Packages, ex.Registry)
	for _, cycle := range sorted.Cycles {
		log.Warn("Package dependency cycle", "packages", cycle)
		res.Diags.Addf(0, diag.KindCycle, "dependency cycle: %v", cycle)
	}
	res.Cycles = sorted.Cycles

	if cfg.Output.Graph {
		g := depgraph.Packages(sorted.Packages, ex.Registry)
		if err := depgraph.WritePackages(p.Fs, filepath.Join(dir, GraphFileName), g); err != nil {
			return nil, err
		}
	}

	asm := &sdk.Assembler{Gen: gen, Fs: p.Fs}
	if err := asm.Write(dir, ex.Ledger, sorted.Packages); err != nil {
		return nil, err
	}

	for _, pkg := range sorted.Packages {
		res.Packages = append(res.Packages, pkg.Name)
	}
	res.Missing = len(ex.Ledger.Missing())
	res.Elapsed = time.Since(start)

	if err := output.WriteJSON(p.Fs, filepath.Join(dir, DiagsFileName), res.Diags.Items()); err != nil {
		return nil, err
	}
	if err := sdk.WriteSummary(p.Fs, dir, sdk.Summary{
		Game:     gen.GameNameShort(),
		Path:     dir,
		Packages: len(res.Packages),
		Missing:  res.Missing,
		Elapsed:  res.Elapsed.Round(time.Millisecond).String(),
	}); err != nil {
		return nil, err
	}

	log.Info("Done",
		"packages", len(res.Packages),
		"missing", res.Missing,
		"diagnostics", res.Diags.Len(),
		"elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// writeOffsets scans the configured signatures and writes
// Offsets_Dump.txt, plus one CFG per disassembled match when graphs are
// enabled.
func (p *Pipeline) writeOffsets(s *Session, gen sdk.Generator, dir string, diags *diag.Diags) error {
	cfg := p.Cfg
	arch := disasm.Arch(cfg.Target.Arch)
	results := dump.Scan(p.Target.Mem, s.Module, cfg.Signatures, arch)
	for _, r := range results {
		switch {
		case r.Err != nil:
			diags.Addf(0, diag.KindSignature, "%s: %v", r.Name, r.Err)
		case len(r.Matches) == 0:
			diags.Addf(0, diag.KindSignature, "%s: not found", r.Name)
		}
	}

	rep := dump.OffsetsReport{
		Game:       gen.GameName(),
		Version:    gen.GameVersion(),
		Module:     s.Module,
		Objects:    s.Objects.Address(),
		Names:      s.Module.Base + cfg.Layout.NamesOffset,
		Signatures: results,
	}
	if err := output.WriteFile(p.Fs, filepath.Join(dir, dump.OffsetsFile), func(w io.Writer) error {
		return dump.Offsets(w, rep)
	}); err != nil {
		return err
	}

	if !cfg.Output.Graph || arch != disasm.ARM64 {
		return nil
	}
	for _, r := range results {
		for i, m := range r.Matches {
			if len(m.Insts) == 0 {
				continue
			}
			name := r.Name
			if i > 0 {
				name = fmt.Sprintf("%s_%d", r.Name, i)
			}
			w := depgraph.Window(disasm.BuildCFG(name, m.Insts), m.Refs, func(ref disasm.Ref) string {
				switch ref.Target {
				case rep.Objects:
					return "GUObjectArray"
				case rep.Names:
					return "GNames"
				}
				return ""
			})
			if err := depgraph.WriteWindow(p.Fs, filepath.Join(dir, WindowsGraphsDir, name+".dot"), w); err != nil {
				return err
			}
		}
	}
	return nil
}
