// Package assets caches compiled task graph templates by path.
package assets

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/petrijr/taskgraph/internal/graph"
	"github.com/petrijr/taskgraph/pkg/api"
)

var (
	ErrAssetNotFound    = errors.New("asset not found")
	ErrInvalidPath      = errors.New("invalid asset path")
	ErrAssetIDCollision = errors.New("asset id collision")
)

// ComputeAssetID derives the identity of an asset from its path. Paths are
// cleaned and slash-separated first, so "a/./b.json" and "a/b.json" share
// an id. The empty path maps to api.InvalidAssetID, which no real path
// ever hashes to.
func ComputeAssetID(path string) api.AssetID {
	if path == "" {
		return api.InvalidAssetID
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(normalize(path)))
	id := api.AssetID(h.Sum64())
	if id == api.InvalidAssetID {
		id = 1
	}
	return id
}

func normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// Config describes how to construct a Manager.
type Config struct {
	// Root is prepended to relative paths when reading files. Asset ids are
	// always computed from the path as given.
	Root   string
	Logger *slog.Logger

	// Load reads and compiles one file. Defaults to graph.LoadFromFile.
	Load func(path string) (*graph.Template, error)
}

type entry struct {
	path string
	tmpl *graph.Template
}

// Manager is a concurrency-safe template cache keyed by asset id.
type Manager struct {
	mu      sync.RWMutex
	entries map[api.AssetID]entry

	root   string
	load   func(path string) (*graph.Template, error)
	logger *slog.Logger
}

// NewManager creates an empty Manager.
func NewManager(cfg Config) *Manager {
	load := cfg.Load
	if load == nil {
		load = graph.LoadFromFile
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		entries: make(map[api.AssetID]entry),
		root:    cfg.Root,
		load:    load,
		logger:  logger,
	}
}

func (m *Manager) cached(id api.AssetID, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return false, nil
	}
	if e.path != path {
		return false, fmt.Errorf("%w: %q and %q", ErrAssetIDCollision, e.path, path)
	}
	return true, nil
}

// LoadTaskGraph loads and compiles the graph at path, or returns the id of
// the already cached template without touching the file again.
func (m *Manager) LoadTaskGraph(path string) (api.AssetID, error) {
	if path == "" {
		return api.InvalidAssetID, ErrInvalidPath
	}
	norm := normalize(path)
	id := ComputeAssetID(path)

	if hit, err := m.cached(id, norm); err != nil || hit {
		return id, err
	}

	file := path
	if m.root != "" && !filepath.IsAbs(path) {
		file = filepath.Join(m.root, path)
	}
	tmpl, err := m.load(file)
	if err != nil {
		return api.InvalidAssetID, err
	}

	if err := m.store(id, norm, tmpl); err != nil {
		return api.InvalidAssetID, err
	}
	m.logger.Info("task graph loaded",
		slog.String("path", norm),
		slog.String("graph", tmpl.Name()),
		slog.Int("nodes", tmpl.Len()),
	)
	return id, nil
}

// Register caches a template built in code under a virtual path.
func (m *Manager) Register(path string, tmpl *graph.Template) (api.AssetID, error) {
	if path == "" {
		return api.InvalidAssetID, ErrInvalidPath
	}
	if tmpl == nil {
		return api.InvalidAssetID, errors.New("nil template")
	}
	id := ComputeAssetID(path)
	if err := m.store(id, normalize(path), tmpl); err != nil {
		return api.InvalidAssetID, err
	}
	return id, nil
}

// store keeps the first template stored under id; a concurrent load of the
// same path resolves to it.
func (m *Manager) store(id api.AssetID, path string, tmpl *graph.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[id]; ok {
		if e.path != path {
			return fmt.Errorf("%w: %q and %q", ErrAssetIDCollision, e.path, path)
		}
		return nil
	}
	m.entries[id] = entry{path: path, tmpl: tmpl}
	return nil
}

// GetTaskGraph returns the cached template, or nil.
func (m *Manager) GetTaskGraph(id api.AssetID) *graph.Template {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.entries[id].tmpl
}

// Lookup is GetTaskGraph with an error for unknown ids.
func (m *Manager) Lookup(id api.AssetID) (*graph.Template, error) {
	if t := m.GetTaskGraph(id); t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrAssetNotFound, id)
}

// UnloadTaskGraph drops id from the cache. It reports whether id was
// loaded. Templates already handed out stay valid for their holders.
func (m *Manager) UnloadTaskGraph(id api.AssetID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return false
	}
	delete(m.entries, id)
	m.logger.Info("task graph unloaded", slog.String("path", e.path))
	return true
}

// Loaded returns the ids of all cached templates in ascending order.
func (m *Manager) Loaded() []api.AssetID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]api.AssetID, 0, len(m.entries))
	for id := range m.entries {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Path returns the normalised path id was loaded from.
func (m *Manager) Path(id api.AssetID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	return e.path, ok
}
