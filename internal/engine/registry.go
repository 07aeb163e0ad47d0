// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pdiddy/mdconvert/pkg/types"
)

// Registry routes a conversion to the engine registered for the document's
// extension, or to a fallback engine.
type Registry struct {
	mu       sync.RWMutex
	byExt    map[string]Engine
	fallback Engine
}

// NewRegistry returns a registry whose unmatched conversions go to
// fallback. fallback may be nil.
func NewRegistry(fallback Engine) *Registry {
	return &Registry{byExt: make(map[string]Engine), fallback: fallback}
}

// Register routes each of exts to e. Extensions are matched
// case-insensitively with or without the leading dot.
func (r *Registry) Register(e Engine, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.byExt[normalizeExt(ext)] = e
	}
}

// Name lists the registered engines, fallback last.
func (r *Registry) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]bool{}
	var names []string
	for _, e := range r.byExt {
		if !seen[e.Name()] {
			seen[e.Name()] = true
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if r.fallback != nil && !seen[r.fallback.Name()] {
		names = append(names, r.fallback.Name())
	}
	if len(names) == 0 {
		return "registry (empty)"
	}
	return "registry: " + strings.Join(names, ", ")
}

// Select returns the engine that would handle in with p. Plugins and
// Document Intelligence only exist in the fallback, so requesting either
// bypasses the extension table.
func (r *Registry) Select(in Input, p Params) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p.Bool(ParamEnablePlugins) {
		if r.fallback == nil {
			return nil, types.NewError(types.KindPlugin, "plugins require the markitdown engine, which is not available", nil)
		}
		return r.fallback, nil
	}
	if _, ok := p.Get(ParamDocIntelEndpoint); ok {
		if r.fallback == nil {
			return nil, types.NewError(types.KindUnsupportedFormat,
				"Document Intelligence requires the markitdown engine or a configured API key", nil)
		}
		return r.fallback, nil
	}

	ext := Extension(in, p)
	if e, ok := r.byExt[ext]; ok {
		return e, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	if ext == "" {
		return nil, types.NewError(types.KindUnsupportedFormat, "cannot determine the document format and no markitdown engine is available", nil)
	}
	return nil, types.Errorf(types.KindUnsupportedFormat, "no engine available for %s files", ext)
}

func (r *Registry) Convert(ctx context.Context, in Input, p Params) (*Result, error) {
	e, err := r.Select(in, p)
	if err != nil {
		return nil, err
	}
	return e.Convert(ctx, in, p)
}
