// Package objects exposes the engine's global object array
// (GUObjectArray) as a lazily read, randomly addressable table.
package objects

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"uedump/internal/memory"
	"uedump/internal/ue"
)

var (
	ErrNotInitialized = errors.New("objects: store not initialized")
	ErrNotFound       = errors.New("objects: not found")
)

// maxObjects rejects element counts read from garbage memory.
const maxObjects = 1 << 24

// Store reads the object array. It holds no state beyond the cached
// array address; sizes and slots are re-read on every access because
// the engine mutates the array concurrently.
type Store struct {
	rt      *ue.Runtime
	modules memory.ModuleResolver
	module  string
	wait    memory.WaitOptions

	addr uint64
}

// Options configures a Store.
type Options struct {
	Module string
	Wait   memory.WaitOptions
}

// NewStore returns an uninitialized store.
func NewStore(rt *ue.Runtime, modules memory.ModuleResolver, opts Options) *Store {
	return &Store{rt: rt, modules: modules, module: opts.Module, wait: opts.Wait}
}

// Initialize resolves the array address as module base plus the
// configured offset, waiting for the module within the wait budget.
// Calls after a successful one are no-ops.
func (s *Store) Initialize(ctx context.Context) error {
	if s.addr != 0 {
		return nil
	}
	mod, err := memory.WaitForModule(ctx, s.modules, s.module, s.wait)
	if err != nil {
		return fmt.Errorf("objects: %w", err)
	}
	s.addr = mod.Base + s.rt.Layout.ObjectsOffset
	return nil
}

// Address returns the address of GUObjectArray, 0 before Initialize.
func (s *Store) Address() uint64 { return s.addr }

// Runtime returns the runtime objects are read through.
func (s *Store) Runtime() *ue.Runtime { return s.rt }

func (s *Store) array() uint64 {
	return s.addr + s.rt.Layout.ObjObjectsOffset
}

// Size returns the current element count, 0 if unreadable.
func (s *Store) Size() int {
	if s.addr == 0 {
		return 0
	}
	n, err := memory.ReadInt32(s.rt.Mem, s.array()+s.rt.Layout.ObjectsNumOffset())
	if err != nil || n < 0 || n > maxObjects {
		return 0
	}
	return int(n)
}

// Get returns the object in slot i. Freed slots, out-of-range indices
// and unreadable memory yield an invalid handle.
func (s *Store) Get(i int) ue.Object {
	if s.addr == 0 || i < 0 || i >= s.Size() {
		return ue.Object{}
	}
	l := s.rt.Layout
	items, err := memory.ReadPointer(s.rt.Mem, s.array(), l.PointerSize)
	if err != nil || items == 0 {
		return ue.Object{}
	}
	obj, err := memory.ReadPointer(s.rt.Mem, items+uint64(i)*l.ObjectItemSize, l.PointerSize)
	if err != nil {
		return ue.Object{}
	}
	return s.rt.Object(obj)
}

// All yields the valid objects in ascending index order. Each range
// over the sequence starts a fresh pass.
func (s *Store) All() iter.Seq[ue.Object] {
	return func(yield func(ue.Object) bool) {
		it := s.Iterator()
		for it.Next() {
			if !yield(it.Object()) {
				return
			}
		}
	}
}

// Iterator returns a cursor positioned before the first valid object.
func (s *Store) Iterator() *Iterator {
	return &Iterator{store: s, index: -1}
}

// FindObject returns the first object whose full name equals fullName.
func (s *Store) FindObject(fullName string) (ue.Object, error) {
	if s.addr == 0 {
		return ue.Object{}, ErrNotInitialized
	}
	for obj := range s.All() {
		if obj.FullName() == fullName {
			return obj, nil
		}
	}
	return ue.Object{}, fmt.Errorf("%w: %s", ErrNotFound, fullName)
}

// FindClass returns the first class whose full name equals fullName,
// e.g. "Class CoreUObject.Object".
func (s *Store) FindClass(fullName string) (ue.Class, error) {
	if s.addr == 0 {
		return ue.Class{}, ErrNotInitialized
	}
	for obj := range s.All() {
		if obj.FullName() != fullName {
			continue
		}
		if cls, err := obj.AsClass(); err == nil {
			return cls, nil
		}
	}
	return ue.Class{}, fmt.Errorf("%w: class %s", ErrNotFound, fullName)
}

// Iterator walks valid slots, skipping freed ones. The element count is
// re-read at every step.
type Iterator struct {
	store   *Store
	index   int
	current ue.Object
}

// Next advances to the next valid object.
func (it *Iterator) Next() bool {
	for it.index+1 < it.store.Size() {
		it.index++
		obj := it.store.Get(it.index)
		if obj.IsValid() {
			it.current = obj
			return true
		}
	}
	it.index = it.store.Size()
	it.current = ue.Object{}
	return false
}

// Object returns the current object.
func (it *Iterator) Object() ue.Object { return it.current }

// Index returns the slot index of the current object.
func (it *Iterator) Index() int { return it.index }
