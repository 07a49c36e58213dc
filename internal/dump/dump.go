// Package dump writes the diagnostic listings that accompany an SDK:
// the name table, the object table, core class sizes and offsets.
package dump

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strings"

	"uedump/internal/names"
	"uedump/internal/ue"
)

const (
	NamesFile    = "NamesDump.txt"
	ObjectsFile  = "ObjectsDump.txt"
	CoreInfoFile = "CoreUObjectInfo.txt"
	OffsetsFile  = "Offsets_Dump.txt"
)

// Names writes the table address followed by one "[index] name" line
// per entry.
func Names(w io.Writer, addr uint64, entries iter.Seq[names.Entry]) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Address: 0x%X\n\n", addr)
	for e := range entries {
		fmt.Fprintf(bw, "[%06d] %s\n", e.Index, e.Name)
	}
	return bw.Flush()
}

// Objects writes the table address followed by one line per object:
// index, full name and address.
func Objects(w io.Writer, addr uint64, objs iter.Seq[ue.Object]) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Address: 0x%X\n\n", addr)
	for obj := range objs {
		fmt.Fprintf(bw, "[%06d] %-100s 0x%X\n", obj.Index(), obj.FullName(), obj.Address())
	}
	return bw.Flush()
}

// CoreSizes writes each class of package pkg with its size and its delta
// over the superclass. Nothing is written when the package is absent.
// It returns the number of classes listed.
func CoreSizes(w io.Writer, objs iter.Seq[ue.Object], pkg string) (int, error) {
	want := "Package " + pkg
	var core ue.Object
	for obj := range objs {
		if p := obj.PackageObject(); p.IsValid() && p.FullName() == want {
			core = p
			break
		}
	}
	if !core.IsValid() {
		return 0, nil
	}

	bw := bufio.NewWriter(w)
	n := 0
	for obj := range objs {
		if obj.PackageObject() != core || !obj.IsA(ue.KindClass) {
			continue
		}
		if strings.HasPrefix(obj.Name(), "Default__") {
			continue
		}
		cls, err := obj.AsClass()
		if err != nil {
			continue
		}
		size := cls.PropertySize()
		fmt.Fprintf(bw, "class %-35s", cls.NameCPP())
		if super := cls.Super(); super.IsValid() {
			base := super.PropertySize()
			fmt.Fprintf(bw, ": public %-25s // 0x%02X (0x%02X - 0x%02X)\n", super.NameCPP(), size-base, base, size)
		} else {
			fmt.Fprintf(bw, "%-35s// 0x%02X (0x00 - 0x%02X)\n", "", size, size)
		}
		n++
	}
	return n, bw.Flush()
}
