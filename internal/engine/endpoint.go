package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/emdb/internal/store"
)

// Endpoint is a parsed connect target.
type Endpoint struct {
	// Memory selects a throwaway database removed on dispose.
	Memory bool
	// Path is the database file for on-disk endpoints.
	Path string
}

func (ep Endpoint) String() string {
	if ep.Memory {
		return "memory"
	}
	return "file://" + ep.Path
}

// ParseEndpoint accepts memory, mem://, anything else starting with mem:,
// file://<path> and sqlite://<path>.
func ParseEndpoint(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "memory", strings.HasPrefix(s, "mem:"):
		return Endpoint{Memory: true}, nil
	}
	for _, scheme := range []string{"file://", "sqlite://"} {
		if path, ok := strings.CutPrefix(s, scheme); ok {
			if path == "" {
				return Endpoint{}, fmt.Errorf("endpoint %q has no path", s)
			}
			return Endpoint{Path: path}, nil
		}
	}
	return Endpoint{}, fmt.Errorf("unsupported endpoint %q", s)
}

// Open opens the store the endpoint points at.
func (ep Endpoint) Open() (*store.Store, error) {
	if ep.Memory {
		return store.OpenMemory()
	}
	return store.Open(ep.Path)
}
