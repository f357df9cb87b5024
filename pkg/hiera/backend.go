package hiera

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Source is one resolved data file of the hierarchy.
type Source struct {
	Level  string
	Path   string
	Format Format
}

// Hierarchy is a file-backed engine.Backend.
type Hierarchy struct {
	config *Config
	facts  map[string]interface{}
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string]map[string]interface{}
}

// Option configures a Hierarchy.
type Option func(*Hierarchy)

// WithFacts sets the facts used for path interpolation.
func WithFacts(facts map[string]interface{}) Option {
	return func(h *Hierarchy) { h.facts = facts }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Hierarchy) {
		h.logger = logger.With().Str("component", "hiera").Logger()
	}
}

// New creates a hierarchy from a validated config.
func New(cfg *Config, opts ...Option) (*Hierarchy, error) {
	if cfg == nil {
		return nil, fmt.Errorf("hierarchy config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Hierarchy{
		config: cfg,
		facts:  map[string]interface{}{},
		logger: zerolog.Nop(),
		cache:  make(map[string]map[string]interface{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Open loads hiera.yaml from path and creates a hierarchy.
func Open(path string, opts ...Option) (*Hierarchy, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Config returns the hierarchy config.
func (h *Hierarchy) Config() *Config {
	return h.config
}

// Sources returns the data files consulted by Lookup, in priority order.
// Paths that reference unset facts are left out.
func (h *Hierarchy) Sources() []Source {
	var sources []Source
	for _, level := range h.config.Hierarchy {
		dir := h.config.dataDir(level)
		declared := level.DataFormat
		if declared == "" {
			declared = h.config.Defaults.DataFormat
		}
		for _, p := range level.PathList() {
			resolved, ok := Interpolate(p, h.facts)
			if !ok {
				h.logger.Trace().Str("level", level.Name).Str("path", p).Msg("Skipping path with unset fact")
				continue
			}
			if !filepath.IsAbs(resolved) {
				resolved = filepath.Join(dir, resolved)
			}
			sources = append(sources, Source{
				Level:  level.Name,
				Path:   resolved,
				Format: formatFor(resolved, declared),
			})
		}
	}
	return sources
}

// Lookup returns the value of key from the first source that defines it.
// Keys match with or without a leading ':'.
func (h *Hierarchy) Lookup(ctx context.Context, key string) (interface{}, bool, error) {
	bare := strings.TrimPrefix(key, ":")
	for _, src := range h.Sources() {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		data, err := h.load(src)
		if err != nil {
			return nil, false, err
		}
		if v, ok := data[bare]; ok {
			h.logger.Debug().Str("key", bare).Str("level", src.Level).Str("file", src.Path).Msg("Lookup hit")
			return v, true, nil
		}
		if v, ok := data[":"+bare]; ok {
			h.logger.Debug().Str("key", bare).Str("level", src.Level).Str("file", src.Path).Msg("Lookup hit")
			return v, true, nil
		}
	}
	return nil, false, nil
}

// Invalidate drops all cached files.
func (h *Hierarchy) Invalidate() {
	h.mu.Lock()
	h.cache = make(map[string]map[string]interface{})
	h.mu.Unlock()
	h.logger.Debug().Msg("Hierarchy cache invalidated")
}

func (h *Hierarchy) load(src Source) (map[string]interface{}, error) {
	h.mu.RLock()
	data, ok := h.cache[src.Path]
	h.mu.RUnlock()
	if ok {
		return data, nil
	}

	raw, err := os.ReadFile(src.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		data = map[string]interface{}{}
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", src.Path, err)
	default:
		data, err = decode(src.Format, src.Path, raw)
		if err != nil {
			return nil, err
		}
	}

	h.mu.Lock()
	h.cache[src.Path] = data
	h.mu.Unlock()
	return data, nil
}
