// Package diag accumulates non-fatal issues found while dumping.
package diag

import "fmt"

// Kind classifies a diagnostic.
type Kind string

const (
	KindUnresolved   Kind = "unresolved"    // object could not be rendered
	KindEmptyPackage Kind = "empty_package" // package produced no content
	KindCycle        Kind = "cycle"         // package dependency cycle
	KindUnreadable   Kind = "unreadable"    // foreign memory could not be read
	KindSignature    Kind = "signature"     // signature invalid or not found
)

// Diag records a non-fatal issue at an object address.
type Diag struct {
	Address uint64 `json:"address"`
	Kind    Kind   `json:"kind"`
	Msg     string `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] 0x%x: %s", d.Kind, d.Address, d.Msg)
}

// Diags accumulates diagnostics.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(addr uint64, kind Kind, msg string) {
	d.items = append(d.items, Diag{Address: addr, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(addr uint64, kind Kind, format string, args ...any) {
	d.items = append(d.items, Diag{Address: addr, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

// Merge appends other's items.
func (d *Diags) Merge(other *Diags) {
	if other == nil {
		return
	}
	d.items = append(d.items, other.items...)
}

func (d *Diags) Items() []Diag { return d.items }
func (d *Diags) Len() int      { return len(d.items) }

// Count returns the number of diagnostics of kind k.
func (d *Diags) Count(k Kind) int {
	n := 0
	for _, it := range d.items {
		if it.Kind == k {
			n++
		}
	}
	return n
}
