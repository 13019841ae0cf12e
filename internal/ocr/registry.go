package ocr

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// EngineInfo describes a registered engine for discovery endpoints.
type EngineInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	Available bool   `json:"available"`
}

// Registry maps engine names to factories. Engines are built on first use and
// then reused, so model loading happens once per process. Builds run outside
// the registry lock: a slow factory only delays callers of that same name.
type Registry struct {
	mu        sync.Mutex
	factories map[string]registration
	engines   map[string]Engine
	builds    singleflight.Group
}

// registration pairs a factory with the generation it was registered at, so a
// build started before a Register cannot cache the replaced engine.
type registration struct {
	factory Factory
	gen     uint64
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]registration),
		engines:   make(map[string]Engine),
	}
}

// Register adds or replaces the factory for name. A replaced engine is rebuilt on next Get.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = registration{factory: f, gen: r.factories[name].gen + 1}
	delete(r.engines, name)
}

// Has reports whether name is registered, without building it.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[name]
	return ok
}

// Get returns the engine registered under name, building it if needed.
// Concurrent callers share one build. Failed builds are not cached.
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.Lock()
	if e, ok := r.engines[name]; ok {
		r.mu.Unlock()
		return e, nil
	}
	reg, ok := r.factories[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrEngineUnavailable, name)
	}

	v, err, _ := r.builds.Do(fmt.Sprintf("%s#%d", name, reg.gen), func() (any, error) {
		e, err := reg.factory()
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.factories[name].gen == reg.gen {
			r.engines[name] = e
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, name, err)
	}
	return v.(Engine), nil
}

// Names lists registered engine names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Describe reports every registered engine, probing availability by building
// it. Engines are probed concurrently.
func (r *Registry) Describe() []EngineInfo {
	names := r.Names()
	out := make([]EngineInfo, len(names))
	var g errgroup.Group
	for i, n := range names {
		g.Go(func() error {
			info := EngineInfo{ID: n, Name: n, Version: UnknownVersion}
			if e, err := r.Get(n); err == nil {
				info.Name = e.Name()
				info.Version = e.Version()
				info.Available = true
			}
			out[i] = info
			return nil
		})
	}
	_ = g.Wait()
	return out
}
