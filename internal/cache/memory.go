package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Storage used when no Redis URL is configured.
type Memory struct {
	mu      sync.RWMutex
	regions map[string]*memoryRegion
}

// NewMemory returns an empty in-process storage.
func NewMemory() *Memory {
	return &Memory{regions: make(map[string]*memoryRegion)}
}

// Open returns the named region, creating it if absent.
func (m *Memory) Open(_ context.Context, name string) (Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.regions[name]
	if !ok {
		r = &memoryRegion{name: name, entries: make(map[string]Response)}
		m.regions[name] = r
	}
	return r, nil
}

// Lookup returns an existing region or ErrRegionNotFound.
func (m *Memory) Lookup(_ context.Context, name string) (Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.regions[name]
	if !ok {
		return nil, ErrRegionNotFound
	}
	return r, nil
}

// Names lists every opened region in lexical order.
func (m *Memory) Names(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.regions))
	for name := range m.regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

type memoryRegion struct {
	name    string
	mu      sync.RWMutex
	entries map[string]Response
}

func (r *memoryRegion) Name() string {
	return r.name
}

func (r *memoryRegion) Put(_ context.Context, key string, resp Response) error {
	resp = cloneResponse(resp)
	if resp.StoredAt.IsZero() {
		resp.StoredAt = time.Now().UTC()
	}

	r.mu.Lock()
	r.entries[key] = resp
	r.mu.Unlock()
	return nil
}

func (r *memoryRegion) Match(_ context.Context, key string) (Response, bool, error) {
	r.mu.RLock()
	resp, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return Response{}, false, nil
	}
	return cloneResponse(resp), true, nil
}

func (r *memoryRegion) Keys(context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func cloneResponse(resp Response) Response {
	resp.Body = append([]byte(nil), resp.Body...)
	resp.Header = resp.Header.Clone()
	return resp
}
