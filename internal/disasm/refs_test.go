package disasm

import "testing"

func TestRefs(t *testing.T) {
	insts := Disassemble(words(
		0xD0000000, // adrp x0, +2 pages
		0x91004000, // add x0, x0, #0x10
		0xB0000008, // adrp x8, +1 page
		0xF9400D01, // ldr x1, [x8, #0x18]
		0x94000040, // bl +0x100
		0xF9400102, // ldr x2, [x8]
	), Options{Arch: ARM64, BaseAddr: 0x1000})

	want := []Ref{
		{PC: 0x1004, Kind: RefADRPAdd, Target: 0x3010},
		{PC: 0x100C, Kind: RefADRPLoad, Target: 0x2018},
		{PC: 0x1010, Kind: RefCall, Target: 0x1110},
	}
	got := Refs(ARM64, insts)
	if len(got) != len(want) {
		t.Fatalf("refs = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ref %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	ann := RefAnnotator(got, 0x1000)
	if s := ann(insts[1]); s != "adrp+add -> module+0x2010" {
		t.Errorf("annotation = %q", s)
	}
	if s := ann(insts[0]); s != "" {
		t.Errorf("adrp itself annotated: %q", s)
	}
	if s := RefAnnotator(got, 0)(insts[4]); s != "bl -> 0x1110" {
		t.Errorf("annotation = %q", s)
	}
}

func TestDecodeADRPNegative(t *testing.T) {
	// adrp x3, -1 page: immlo=3, immhi=0x7FFFF
	raw := uint32(0x90000000 | 3<<29 | 0x7FFFF<<5 | 3)
	page, rd, ok := decodeADRP(raw, 0x5123)
	if !ok || rd != 3 || page != 0x4000 {
		t.Errorf("page=0x%x rd=%d ok=%v, want 0x4000 3 true", page, rd, ok)
	}
}

func TestRefsARMLiteral(t *testing.T) {
	insts := Disassemble(words(
		0xE59F0010, // ldr r0, [pc, #0x10]
		0xE51F1008, // ldr r1, [pc, #-8]
		0xE5901000, // ldr r1, [r0]
	), Options{Arch: ARM, BaseAddr: 0x8000})

	got := Refs(ARM, insts)
	want := []Ref{
		{PC: 0x8000, Kind: RefLiteral, Target: 0x8018},
		{PC: 0x8004, Kind: RefLiteral, Target: 0x8004},
	}
	if len(got) != len(want) {
		t.Fatalf("refs = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ref %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
