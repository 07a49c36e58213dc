package disasm

import "fmt"

// RefKind names how a reference was formed.
type RefKind string

const (
	RefADRPAdd  RefKind = "adrp+add"
	RefADRPLoad RefKind = "adrp+ldr"
	RefCall     RefKind = "bl"
	RefLiteral  RefKind = "ldr literal"
)

// Ref is an absolute address computed by the instruction at PC.
type Ref struct {
	PC     uint64
	Kind   RefKind
	Target uint64
}

// Refs resolves the absolute addresses a window computes. On ARM64 these
// are page-relative pairs (ADRP followed by ADD or LDR on the same
// register) and direct calls; on ARM they are PC-relative literal loads,
// whose Target is the literal slot.
func Refs(arch Arch, insts []Inst) []Ref {
	if arch == ARM {
		return literalRefs(insts)
	}
	var pages [32]uint64
	var live [32]bool
	var out []Ref
	for _, inst := range insts {
		raw := inst.Raw
		if target, ok := DecodeCall(raw, inst.Addr); ok {
			out = append(out, Ref{PC: inst.Addr, Kind: RefCall, Target: target})
			live = [32]bool{}
			continue
		}
		if page, rd, ok := decodeADRP(raw, inst.Addr); ok {
			pages[rd], live[rd] = page, true
			continue
		}
		if rd, rn, imm, ok := decodeAddImm64(raw); ok {
			if live[rn] {
				out = append(out, Ref{PC: inst.Addr, Kind: RefADRPAdd, Target: pages[rn] + imm})
			}
			live[rd] = false
			continue
		}
		if rt, rn, off, ok := decodeLoad64(raw); ok {
			if live[rn] {
				out = append(out, Ref{PC: inst.Addr, Kind: RefADRPLoad, Target: pages[rn] + off})
			}
			live[rt] = false
			continue
		}
		if DecodeBranch(raw, inst.Addr) != nil {
			live = [32]bool{}
		}
	}
	return out
}

func decodeADRP(raw uint32, pc uint64) (page uint64, rd int, ok bool) {
	if raw&0x9F000000 != 0x90000000 {
		return 0, 0, false
	}
	immlo := (raw >> 29) & 0x3
	immhi := (raw >> 5) & 0x7FFFF
	imm := int64(signExtend(immhi<<2|immlo, 21)) << 12
	return uint64(int64(pc&^0xFFF) + imm), int(raw & 0x1F), true
}

// LDR Rt, [PC, #+/-imm12]; PC reads as the instruction address plus 8.
func literalRefs(insts []Inst) []Ref {
	var out []Ref
	for _, inst := range insts {
		if inst.Raw&0x0F7F0000 != 0x051F0000 {
			continue
		}
		off := uint64(inst.Raw & 0xFFF)
		target := inst.Addr + 8 + off
		if inst.Raw&(1<<23) == 0 {
			target = inst.Addr + 8 - off
		}
		out = append(out, Ref{PC: inst.Addr, Kind: RefLiteral, Target: target})
	}
	return out
}

// ADD Xd, Xn, #imm{, LSL #12}
func decodeAddImm64(raw uint32) (rd, rn int, imm uint64, ok bool) {
	if raw&0xFF800000 != 0x91000000 {
		return 0, 0, 0, false
	}
	imm = uint64((raw >> 10) & 0xFFF)
	if raw&(1<<22) != 0 {
		imm <<= 12
	}
	return int(raw & 0x1F), int((raw >> 5) & 0x1F), imm, true
}

// LDR Xt, [Xn, #imm]
func decodeLoad64(raw uint32) (rt, rn int, off uint64, ok bool) {
	if raw&0xFFC00000 != 0xF9400000 {
		return 0, 0, 0, false
	}
	off = uint64((raw>>10)&0xFFF) * 8
	return int(raw & 0x1F), int((raw >> 5) & 0x1F), off, true
}

// RefAnnotator labels instructions that produced a Ref. Targets inside
// the module are shown as module-relative offsets.
func RefAnnotator(refs []Ref, moduleBase uint64) Annotator {
	byPC := make(map[uint64]Ref, len(refs))
	for _, r := range refs {
		byPC[r.PC] = r
	}
	return func(inst Inst) string {
		r, ok := byPC[inst.Addr]
		if !ok {
			return ""
		}
		if moduleBase != 0 && r.Target >= moduleBase {
			return fmt.Sprintf("%s -> module+0x%X", r.Kind, r.Target-moduleBase)
		}
		return fmt.Sprintf("%s -> 0x%X", r.Kind, r.Target)
	}
}
