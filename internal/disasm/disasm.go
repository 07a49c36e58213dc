// Package disasm decodes ARM and ARM64 code around signature matches in
// the engine module.
package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"
)

// Arch selects the instruction set.
type Arch string

const (
	ARM   Arch = "arm"
	ARM64 Arch = "arm64"
)

// Inst is a decoded instruction with address and raw bytes.
type Inst struct {
	Addr     uint64
	Raw      uint32
	Size     int
	Mnemonic string
	Operands string
	Text     string
}

// Options controls disassembly.
type Options struct {
	Arch     Arch
	BaseAddr uint64 // address of the first byte of data
	MaxSteps int    // maximum instructions; 0 = 4096
}

const defaultMaxSteps = 4096

// Disassemble decodes data as a straight instruction stream. Undecodable
// words are emitted as .word.
func Disassemble(data []byte, opts Options) []Inst {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	var out []Inst
	for off := 0; off+4 <= len(data) && len(out) < maxSteps; off += 4 {
		raw := binary.LittleEndian.Uint32(data[off : off+4])
		text, ok := decode(opts.Arch, data[off:off+4])
		if !ok {
			text = fmt.Sprintf(".word 0x%08x", raw)
		}
		mnemonic, operands, _ := strings.Cut(text, " ")
		out = append(out, Inst{
			Addr:     opts.BaseAddr + uint64(off),
			Raw:      raw,
			Size:     4,
			Mnemonic: mnemonic,
			Operands: operands,
			Text:     text,
		})
	}
	return out
}

func decode(arch Arch, src []byte) (string, bool) {
	if arch == ARM {
		inst, err := armasm.Decode(src, armasm.ModeARM)
		if err != nil {
			return "", false
		}
		return inst.String(), true
	}
	inst, err := arm64asm.Decode(src)
	if err != nil {
		return "", false
	}
	return inst.String(), true
}

// Annotator returns an optional inline comment for an instruction.
type Annotator func(inst Inst) string

// Format renders instructions one per line:
// <addr>  <bytes>  <disasm>  ; <comment>
// The first non-empty annotation is used.
func Format(insts []Inst, annotators ...Annotator) string {
	var b strings.Builder
	for _, inst := range insts {
		fmt.Fprintf(&b, "0x%08x  ", inst.Addr)
		fmt.Fprintf(&b, "%02x %02x %02x %02x  ",
			byte(inst.Raw), byte(inst.Raw>>8), byte(inst.Raw>>16), byte(inst.Raw>>24))
		b.WriteString(inst.Text)
		for _, ann := range annotators {
			if s := ann(inst); s != "" {
				fmt.Fprintf(&b, "  ; %s", s)
				break
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
