// Package sdk partitions reflected objects into packages, orders the
// packages by dependency and assembles the generated SDK.
package sdk

import (
	"errors"

	"uedump/internal/ue"
)

var ErrLedgerSealed = errors.New("sdk: ledger is sealed")

// Ledger records, for every struct or class visited during extraction,
// whether a declaration was emitted for it. Entries are written once:
// later records for the same object are ignored. After Seal the ledger
// is read-only.
type Ledger struct {
	order  []ue.Object
	done   map[ue.Object]bool
	sealed bool
}

func NewLedger() *Ledger {
	return &Ledger{done: make(map[ue.Object]bool)}
}

// Record stores the outcome for obj unless one is already stored.
func (l *Ledger) Record(obj ue.Object, emitted bool) error {
	if l.sealed {
		return ErrLedgerSealed
	}
	if _, ok := l.done[obj]; ok {
		return nil
	}
	l.done[obj] = emitted
	l.order = append(l.order, obj)
	return nil
}

// Lookup returns the outcome for obj and whether it was visited.
func (l *Ledger) Lookup(obj ue.Object) (emitted, visited bool) {
	emitted, visited = l.done[obj]
	return emitted, visited
}

func (l *Ledger) Seal()        { l.sealed = true }
func (l *Ledger) Sealed() bool { return l.sealed }
func (l *Ledger) Len() int     { return len(l.order) }

// Missing returns the objects recorded as not emitted, in the order they
// were first visited.
func (l *Ledger) Missing() []ue.Object {
	var out []ue.Object
	for _, obj := range l.order {
		if !l.done[obj] {
			out = append(out, obj)
		}
	}
	return out
}
