package engine

import (
	"sort"
	"strings"
	"sync"

	"github.com/petrijr/taskgraph/pkg/api"
)

// taskSuffix lets graphs name leaves without the conventional "Task"
// suffix: "Wait" resolves to "WaitTask" when only the latter is registered.
const taskSuffix = "Task"

// TaskRegistry maps leaf ids to factories. It is safe for concurrent use;
// lookups take a read lock only.
type TaskRegistry struct {
	mu        sync.RWMutex
	factories map[string]api.TaskFactory
	aliases   map[string]string
}

// NewTaskRegistry returns an empty registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		factories: make(map[string]api.TaskFactory),
		aliases:   make(map[string]string),
	}
}

// Register installs factory under id, replacing any previous factory.
// A nil factory removes the id.
func (r *TaskRegistry) Register(id string, factory api.TaskFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if factory == nil {
		delete(r.factories, id)
		return
	}
	r.factories[id] = factory
}

// RegisterAlias makes alias resolve to id. Aliases are resolved once; an
// alias pointing at another alias does not chain.
func (r *TaskRegistry) RegisterAlias(alias, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.aliases[alias] = id
}

// Resolve returns the registered id that id refers to, applying the alias
// table and then the "Task" suffix rule.
func (r *TaskRegistry) Resolve(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, canonical, ok := r.lookup(id)
	return canonical, ok
}

func (r *TaskRegistry) lookup(id string) (api.TaskFactory, string, bool) {
	if f, ok := r.factories[id]; ok {
		return f, id, true
	}
	if target, ok := r.aliases[id]; ok {
		if f, ok := r.factories[target]; ok {
			return f, target, true
		}
	}
	if !strings.HasSuffix(id, taskSuffix) {
		if f, ok := r.factories[id+taskSuffix]; ok {
			return f, id + taskSuffix, true
		}
	}
	return nil, "", false
}

// IsRegistered reports whether id resolves to a factory.
func (r *TaskRegistry) IsRegistered(id string) bool {
	_, ok := r.Resolve(id)
	return ok
}

// Create returns a fresh instance for id, or nil when id does not resolve.
// Instances are never pooled.
func (r *TaskRegistry) Create(id string) api.AtomicTask {
	r.mu.RLock()
	f, _, ok := r.lookup(id)
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	return f()
}

// IDs returns the registered ids in sorted order, aliases excluded.
func (r *TaskRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.factories))
	for id := range r.factories {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
