package disasm

import "slices"

// Block is a run of instructions with one entry. Start and End index
// into CFG.Insts (End exclusive).
type Block struct {
	ID    int
	Start int
	End   int
	Succs []Edge
	Term  bool // RET or a branch leaving the window
}

// Edge is a successor. Cond is "" for unconditional, "T" taken, "F"
// fallthrough.
type Edge struct {
	Block int
	Cond  string
}

// CFG is the control flow of a disassembled window.
type CFG struct {
	Name   string
	Blocks []Block
	Insts  []Inst
}

// BuildCFG splits an ARM64 instruction window into basic blocks. Branch
// targets outside the window terminate their block.
func BuildCFG(name string, insts []Inst) CFG {
	cfg := CFG{Name: name, Insts: insts}
	if len(insts) == 0 {
		return cfg
	}

	index := make(map[uint64]int, len(insts))
	for i, inst := range insts {
		index[inst.Addr] = i
	}

	leaders := map[int]bool{0: true}
	for i, inst := range insts {
		br := DecodeBranch(inst.Raw, inst.Addr)
		if br == nil {
			continue
		}
		if i+1 < len(insts) {
			leaders[i+1] = true
		}
		if idx, ok := index[br.Target]; ok && !br.Ret {
			leaders[idx] = true
		}
	}
	starts := make([]int, 0, len(leaders))
	for idx := range leaders {
		starts = append(starts, idx)
	}
	slices.Sort(starts)

	blockAt := make(map[int]int, len(starts))
	for id, start := range starts {
		end := len(insts)
		if id+1 < len(starts) {
			end = starts[id+1]
		}
		blockAt[start] = id
		cfg.Blocks = append(cfg.Blocks, Block{ID: id, Start: start, End: end})
	}

	for i := range cfg.Blocks {
		b := &cfg.Blocks[i]
		last := insts[b.End-1]
		next, hasNext := blockAt[b.End]
		br := DecodeBranch(last.Raw, last.Addr)
		switch {
		case br == nil:
			if hasNext {
				b.Succs = append(b.Succs, Edge{Block: next})
			}
		case br.Ret:
			b.Term = true
		default:
			target, inside := -1, false
			if idx, ok := index[br.Target]; ok {
				target, inside = blockAt[idx], true
			}
			if br.Cond {
				if inside {
					b.Succs = append(b.Succs, Edge{Block: target, Cond: "T"})
				}
				if hasNext {
					b.Succs = append(b.Succs, Edge{Block: next, Cond: "F"})
				}
			} else if inside {
				b.Succs = append(b.Succs, Edge{Block: target})
			} else {
				b.Term = true
			}
		}
	}
	return cfg
}
