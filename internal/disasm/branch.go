package disasm

// Branch describes an ARM64 block terminator.
type Branch struct {
	Target uint64 // absolute target; 0 for RET
	Cond   bool   // has a fallthrough edge
	Ret    bool
}

type branchForm struct {
	mask, bits uint32
	shift      uint // position of the immediate
	width      int  // immediate width in bits
	cond       bool
}

// Immediate-offset branches. BL is a call and does not end a block.
var branchForms = []branchForm{
	{0xFC000000, 0x14000000, 0, 26, false}, // B
	{0xFF000010, 0x54000000, 5, 19, true},  // B.cond
	{0x7E000000, 0x34000000, 5, 19, true},  // CBZ, CBNZ
	{0x7E000000, 0x36000000, 5, 14, true},  // TBZ, TBNZ
}

// DecodeBranch decodes raw at pc. It returns nil for anything that is
// not a RET or an immediate branch.
func DecodeBranch(raw uint32, pc uint64) *Branch {
	if raw&0xFFFFFC1F == 0xD65F0000 {
		return &Branch{Ret: true}
	}
	for _, f := range branchForms {
		if raw&f.mask != f.bits {
			continue
		}
		imm := (raw >> f.shift) & (1<<f.width - 1)
		return &Branch{
			Target: uint64(int64(pc) + int64(signExtend(imm, f.width))*4),
			Cond:   f.cond,
		}
	}
	return nil
}

// DecodeCall returns the target of a BL at pc.
func DecodeCall(raw uint32, pc uint64) (uint64, bool) {
	if raw&0xFC000000 != 0x94000000 {
		return 0, false
	}
	return uint64(int64(pc) + int64(signExtend(raw&0x03FFFFFF, 26))*4), true
}

func signExtend(val uint32, bits int) int32 {
	shift := 32 - bits
	return int32(val<<shift) >> shift
}
