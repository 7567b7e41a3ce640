package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rubiojr/bolt/bolt"
)

// ModuleCache loads and stores the compiled modules of one runtime.
type ModuleCache struct {
	rt      *bolt.Runtime
	backend Backend
}

func New(rt *bolt.Runtime, backend Backend) *ModuleCache {
	return &ModuleCache{rt: rt, backend: backend}
}

// Backend returns the storage behind the cache.
func (c *ModuleCache) Backend() Backend { return c.backend }

// Load returns the cached module for unit and installs it in the registry.
// Missing entries, unreadable records and records built by another
// runtime version or against other globals are all misses.
func (c *ModuleCache) Load(ctx context.Context, unit *bolt.CompilationUnit) (*bolt.CompiledModule, bool) {
	m, ok := c.fetch(ctx, unit)
	if !ok {
		return nil, false
	}
	if err := c.rt.Registry.Install(unit, m); err != nil {
		c.rt.Logger.Debug("cache install failed", "location", unit.ResourceLocation, "error", err)
		return nil, false
	}
	return m, true
}

func (c *ModuleCache) fetch(ctx context.Context, unit *bolt.CompilationUnit) (*bolt.CompiledModule, bool) {
	log := c.rt.Logger.With("location", unit.ResourceLocation)
	data, err := c.backend.Get(ctx, Key(unit.ResourceLocation, unit.Source))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Debug("cache miss")
		} else {
			log.Debug("cache read failed", "error", err)
		}
		return nil, false
	}
	rec, err := Decode(data)
	if err != nil {
		log.Debug("cache record unreadable", "error", err)
		return nil, false
	}
	if rec.Version != c.rt.Version() {
		log.Debug("cache record stale", "version", rec.Version, "want", c.rt.Version())
		return nil, false
	}
	if !slices.Equal(rec.Globals, c.rt.Globals()) {
		log.Debug("cache record compiled against other globals")
		return nil, false
	}
	m, err := rec.Module(unit)
	if err != nil {
		log.Debug("cache record unusable", "error", err)
		return nil, false
	}
	log.Debug("cache hit")
	return m, true
}

// Save compiles unit if needed and stores its module.
func (c *ModuleCache) Save(ctx context.Context, unit *bolt.CompilationUnit) error {
	m, err := c.rt.Registry.Get(bolt.Target{Unit: unit})
	if err != nil {
		return err
	}
	return c.store(ctx, unit, m)
}

func (c *ModuleCache) store(ctx context.Context, unit *bolt.CompilationUnit, m *bolt.CompiledModule) error {
	rec, err := NewRecord(m, c.rt.Version())
	if err != nil {
		return err
	}
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	if err := c.backend.Put(ctx, Key(unit.ResourceLocation, unit.Source), data); err != nil {
		return fmt.Errorf("storing %s: %w", unit.ResourceLocation, err)
	}
	return nil
}

// Forget drops the entry of unit.
func (c *ModuleCache) Forget(ctx context.Context, unit *bolt.CompilationUnit) error {
	return c.backend.Delete(ctx, Key(unit.ResourceLocation, unit.Source))
}

// Clear drops every entry.
func (c *ModuleCache) Clear(ctx context.Context) error { return c.backend.Clear(ctx) }

// Attach makes the registry consult the cache before generating code and
// persist what it generates. Backend calls use ctx.
func (c *ModuleCache) Attach(ctx context.Context) {
	c.rt.Registry.Cache = &registryHook{c: c, ctx: ctx}
}

type registryHook struct {
	c   *ModuleCache
	ctx context.Context
}

func (h *registryHook) Fetch(unit *bolt.CompilationUnit) (*bolt.CompiledModule, bool) {
	return h.c.fetch(h.ctx, unit)
}

func (h *registryHook) Persist(unit *bolt.CompilationUnit, m *bolt.CompiledModule) {
	if err := h.c.store(h.ctx, unit, m); err != nil {
		h.c.rt.Logger.Warn("cache write failed", "location", unit.ResourceLocation, "error", err)
	}
}
