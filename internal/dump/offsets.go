package dump

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"uedump/internal/config"
	"uedump/internal/disasm"
	"uedump/internal/memory"
	"uedump/internal/sigscan"
)

// maxMatches caps the matches reported per signature.
const maxMatches = 16

// OffsetsReport is the content of Offsets_Dump.txt.
type OffsetsReport struct {
	Game       string
	Version    string
	Module     memory.Module
	Objects    uint64 // object array address
	Names      uint64 // name table global
	Signatures []SignatureResult
}

// SignatureResult is the outcome of one configured signature.
type SignatureResult struct {
	Name    string
	Pattern string
	Err     error
	Matches []Match
}

// Match is one adjusted hit, module relative, with its disassembly.
type Match struct {
	Offset   uint64
	Insts    []disasm.Inst
	Refs     []disasm.Ref
	Literals map[uint64]uint32 // literal slot -> value, ARM only
}

// Scan searches the module for every signature. Patterns that do not
// parse are reported in their result rather than failing the scan.
func Scan(mem memory.Reader, mod memory.Module, sigs []config.Signature, arch disasm.Arch) []SignatureResult {
	if len(sigs) == 0 {
		return nil
	}
	data := memory.ModuleBytes(mem, mod, 0)
	out := make([]SignatureResult, 0, len(sigs))
	for _, sig := range sigs {
		res := SignatureResult{Name: sig.Name, Pattern: sig.Pattern}
		p, err := sigscan.Parse(sig.Pattern)
		if err != nil {
			res.Err = err
			out = append(out, res)
			continue
		}
		for _, off := range p.Find(data, maxMatches) {
			at := int64(off) + sig.Adjust
			if at < 0 || at >= int64(len(data)) {
				continue
			}
			m := Match{Offset: uint64(at)}
			if sig.Window > 0 {
				end := min(int(at)+sig.Window, len(data))
				m.Insts = disasm.Disassemble(data[at:end], disasm.Options{Arch: arch, BaseAddr: mod.Base + uint64(at)})
				m.Refs = disasm.Refs(arch, m.Insts)
				m.Literals = literals(mem, m.Refs)
			}
			res.Matches = append(res.Matches, m)
		}
		out = append(out, res)
	}
	return out
}

func literals(mem memory.Reader, refs []disasm.Ref) map[uint64]uint32 {
	var out map[uint64]uint32
	for _, r := range refs {
		if r.Kind != disasm.RefLiteral {
			continue
		}
		v, err := memory.ReadUint32(mem, r.Target)
		if err != nil {
			continue
		}
		if out == nil {
			out = make(map[uint64]uint32)
		}
		out[r.Target] = v
	}
	return out
}

// Offsets writes the report.
func Offsets(w io.Writer, rep OffsetsReport) error {
	bw := bufio.NewWriter(w)
	base := rep.Module.Base
	fmt.Fprintf(bw, "// %s (%s) offsets\n\n", rep.Game, rep.Version)
	fmt.Fprintf(bw, "Module: %s\n", rep.Module.Name)
	fmt.Fprintf(bw, "Base:   0x%X\n", base)
	fmt.Fprintf(bw, "Size:   0x%X (%s)\n\n", rep.Module.Size, humanize.IBytes(rep.Module.Size))

	fmt.Fprintf(bw, "#define GUObjectArray_Offset 0x%X\n", rep.Objects-base)
	fmt.Fprintf(bw, "#define GNames_Offset 0x%X\n", rep.Names-base)
	fmt.Fprintf(bw, "// GUObjectArray 0x%X\n", rep.Objects)
	fmt.Fprintf(bw, "// GNames 0x%X\n", rep.Names)

	for _, sig := range rep.Signatures {
		fmt.Fprintf(bw, "\n// %s: %s\n", sig.Name, sig.Pattern)
		if sig.Err != nil {
			fmt.Fprintf(bw, "// %v\n", sig.Err)
			continue
		}
		if len(sig.Matches) == 0 {
			fmt.Fprintf(bw, "// Failed to find %s\n", sig.Name)
			continue
		}
		for i, m := range sig.Matches {
			name := sig.Name
			if i > 0 {
				name = fmt.Sprintf("%s_%d", sig.Name, i)
			}
			fmt.Fprintf(bw, "#define %s_Offset 0x%X\n", name, m.Offset)
			if len(m.Insts) == 0 {
				continue
			}
			bw.WriteString(disasm.Format(m.Insts, globals(rep, m), disasm.RefAnnotator(m.Refs, base)))
		}
	}
	return bw.Flush()
}

// globals labels references that land on the object array or the name
// table, and shows the value of ARM literal slots.
func globals(rep OffsetsReport, m Match) disasm.Annotator {
	byPC := make(map[uint64]disasm.Ref, len(m.Refs))
	for _, r := range m.Refs {
		byPC[r.PC] = r
	}
	return func(inst disasm.Inst) string {
		r, ok := byPC[inst.Addr]
		if !ok {
			return ""
		}
		switch {
		case r.Target == rep.Objects:
			return "GUObjectArray"
		case r.Target == rep.Names:
			return "GNames"
		}
		if v, ok := m.Literals[r.Target]; ok {
			return fmt.Sprintf("%s -> module+0x%X = 0x%X", r.Kind, r.Target-rep.Module.Base, v)
		}
		return ""
	}
}
