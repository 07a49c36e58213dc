package sdk

import "uedump/internal/ue"

// Registry maps a package object to its retained Package.
type Registry struct {
	bySource map[ue.Object]*Package
}

func NewRegistry() *Registry {
	return &Registry{bySource: make(map[ue.Object]*Package)}
}

func (r *Registry) Register(p *Package) { r.bySource[p.Source] = p }

// Lookup returns the package whose source is obj.
func (r *Registry) Lookup(obj ue.Object) (*Package, bool) {
	p, ok := r.bySource[obj]
	return p, ok
}

func (r *Registry) Len() int { return len(r.bySource) }
