// Package names reads the engine's global name table (GNames).
package names

import (
	"context"
	"errors"
	"fmt"
	"iter"

	lru "github.com/hashicorp/golang-lru/v2"

	"uedump/internal/memory"
	"uedump/internal/ue"
)

var (
	ErrNotInitialized = errors.New("names: store not initialized")
	ErrNoName         = errors.New("names: no entry")
)

// DefaultCacheSize bounds the lookup cache.
const DefaultCacheSize = 64 * 1024

// Entry is one resolved name-table slot.
type Entry struct {
	Index   int32
	Address uint64
	Name    string
}

// Store resolves name indices to strings. Name entries are never freed
// by the engine once created, so resolved strings are cached.
type Store struct {
	mem     memory.Reader
	layout  ue.Layout
	modules memory.ModuleResolver
	module  string
	wait    memory.WaitOptions

	addr  uint64
	cache *lru.Cache[int32, string]
}

// Options configures a Store.
type Options struct {
	Module    string
	Wait      memory.WaitOptions
	CacheSize int
}

// NewStore returns an uninitialized store.
func NewStore(mem memory.Reader, layout ue.Layout, modules memory.ModuleResolver, opts Options) *Store {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[int32, string](size)
	return &Store{
		mem:     mem,
		layout:  layout,
		modules: modules,
		module:  opts.Module,
		wait:    opts.Wait,
		cache:   cache,
	}
}

// Initialize locates the name table. Calls after a successful one are
// no-ops.
func (s *Store) Initialize(ctx context.Context) error {
	if s.addr != 0 {
		return nil
	}
	mod, err := memory.WaitForModule(ctx, s.modules, s.module, s.wait)
	if err != nil {
		return fmt.Errorf("names: %w", err)
	}
	addr := mod.Base + s.layout.NamesOffset
	if s.layout.NamesDeref {
		addr, err = memory.ReadPointer(s.mem, addr, s.layout.PointerSize)
		if err != nil {
			return fmt.Errorf("names: read GNames pointer: %w", err)
		}
		if addr == 0 {
			return fmt.Errorf("names: GNames is null")
		}
	}
	s.addr = addr
	return nil
}

// Address returns the name table address, 0 before Initialize.
func (s *Store) Address() uint64 { return s.addr }

// Count returns the current number of entries.
func (s *Store) Count() int {
	if s.addr == 0 {
		return 0
	}
	n, err := memory.ReadInt32(s.mem, s.addr+uint64(s.layout.NamesMaxChunks)*uint64(s.layout.PointerSize))
	if err != nil || n < 0 {
		return 0
	}
	return int(n)
}

func (s *Store) entryAddr(id int32) (uint64, error) {
	if s.addr == 0 {
		return 0, ErrNotInitialized
	}
	if id < 0 || int(id) >= s.Count() {
		return 0, fmt.Errorf("%w: %d out of range", ErrNoName, id)
	}
	ps := uint64(s.layout.PointerSize)
	chunkIdx := uint64(id) / uint64(s.layout.NamesChunkSize)
	within := uint64(id) % uint64(s.layout.NamesChunkSize)
	if chunkIdx >= uint64(s.layout.NamesMaxChunks) {
		return 0, fmt.Errorf("%w: %d beyond chunk table", ErrNoName, id)
	}
	chunk, err := memory.ReadPointer(s.mem, s.addr+chunkIdx*ps, s.layout.PointerSize)
	if err != nil || chunk == 0 {
		return 0, fmt.Errorf("%w: %d: chunk %d unreadable", ErrNoName, id, chunkIdx)
	}
	entry, err := memory.ReadPointer(s.mem, chunk+within*ps, s.layout.PointerSize)
	if err != nil || entry == 0 {
		return 0, fmt.Errorf("%w: %d", ErrNoName, id)
	}
	return entry, nil
}

// Name implements ue.NameResolver.
func (s *Store) Name(id int32) (string, error) {
	if v, ok := s.cache.Get(id); ok {
		return v, nil
	}
	entry, err := s.entryAddr(id)
	if err != nil {
		return "", err
	}
	name, err := memory.ReadCString(s.mem, entry+s.layout.NameEntryStringOffset, s.layout.NameMaxLength)
	if err != nil {
		return "", fmt.Errorf("names: read %d: %w", id, err)
	}
	s.cache.Add(id, name)
	return name, nil
}

// Entry returns slot i; ok is false for empty or unreadable slots.
func (s *Store) Entry(i int32) (Entry, bool) {
	entry, err := s.entryAddr(i)
	if err != nil {
		return Entry{}, false
	}
	name, err := s.Name(i)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Index: i, Address: entry, Name: name}, true
}

// All yields every readable entry in index order.
func (s *Store) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for i := int32(0); int(i) < s.Count(); i++ {
			e, ok := s.Entry(i)
			if !ok {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}
