package sdk

import (
	"slices"

	"uedump/internal/ue"
)

// DependsOn reports whether a needs a type defined in b, directly or
// through other registered packages.
func DependsOn(a, b *Package, reg *Registry) bool {
	visited := map[ue.Object]bool{}
	stack := slices.Clone(a.Dependencies())
	for len(stack) > 0 {
		dep := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if dep == b.Source {
			return true
		}
		if visited[dep] {
			continue
		}
		visited[dep] = true
		if next, ok := reg.Lookup(dep); ok {
			stack = append(stack, next.Dependencies()...)
		}
	}
	return false
}

// SortResult is the outcome of SortPackages.
type SortResult struct {
	Packages []*Package
	// Cycles lists the names of packages that depend on themselves. Their
	// relative order is not dependency-correct.
	Cycles [][]string
}

// SortPackages orders pkgs so every package follows the packages it
// depends on. Position i receives the earliest remaining package that
// depends on no other remaining package, so unrelated packages keep
// their input order and sorted input is left unchanged. When only
// cyclic packages remain, the earliest cycle member is placed and the
// cycle is reported.
func SortPackages(pkgs []*Package, reg *Registry) SortResult {
	out := slices.Clone(pkgs)
	memo := map[[2]*Package]bool{}
	depends := func(a, b *Package) bool {
		key := [2]*Package{a, b}
		v, ok := memo[key]
		if !ok {
			v = DependsOn(a, b, reg)
			memo[key] = v
		}
		return v
	}
	ready := func(i, j int) bool {
		for k := i; k < len(out); k++ {
			if k != j && depends(out[j], out[k]) {
				return false
			}
		}
		return true
	}

	var res SortResult
	reported := map[*Package]bool{}
	for i := 0; i < len(out); i++ {
		pick := -1
		for j := i; j < len(out); j++ {
			if ready(i, j) {
				pick = j
				break
			}
		}
		if pick < 0 {
			var cycle []string
			for j := i; j < len(out); j++ {
				if !depends(out[j], out[j]) {
					continue
				}
				if pick < 0 {
					pick = j
				}
				if !reported[out[j]] {
					reported[out[j]] = true
					cycle = append(cycle, out[j].Name)
				}
			}
			if len(cycle) > 0 {
				res.Cycles = append(res.Cycles, cycle)
			}
			if pick < 0 {
				pick = i
			}
		}
		if pick > i {
			p := out[pick]
			copy(out[i+1:pick+1], out[i:pick])
			out[i] = p
		}
	}
	res.Packages = out
	return res
}
