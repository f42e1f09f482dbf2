package graph

import (
	"sort"
	"strings"
)

// LoadError collects every structural problem found while loading or
// compiling a graph. No Template is produced when a LoadError is returned.
type LoadError struct {
	Graph    string
	Problems []string

	// Err is the underlying I/O or decode error, if any.
	Err error
}

func (e *LoadError) Error() string {
	var sb strings.Builder
	sb.WriteString("load task graph")
	if e.Graph != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Graph)
	}
	sb.WriteString(": ")
	sb.WriteString(strings.Join(e.Problems, "; "))
	return sb.String()
}

func (e *LoadError) Unwrap() error { return e.Err }

type problems struct {
	list []string
}

func (p *problems) add(s string) { p.list = append(p.list, s) }

func (p *problems) empty() bool { return len(p.list) == 0 }

func (p *problems) err(graph string) error {
	if p.empty() {
		return nil
	}
	return &LoadError{Graph: graph, Problems: p.list}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
