package domain

import (
	"sort"
	"sync"
)

// Outputs maps a named identifier (arn, id, endpoint, ...) to its value.
type Outputs map[string]string

// Clone returns a copy so callers cannot mutate a stored entry.
func (o Outputs) Clone() Outputs {
	if o == nil {
		return nil
	}
	c := make(Outputs, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// Record is the durable result of a provisioning run: one Outputs entry per
// completed step, keyed by step name. Entries grow monotonically; each step
// owns exclusive write access to its own entry, so a single mutex around the
// map is the only discipline needed.
type Record struct {
	mu      sync.RWMutex
	entries map[string]Outputs
}

func NewRecord() *Record {
	return &Record{entries: make(map[string]Outputs)}
}

// Merge writes outputs under name. Writing the same name twice is a
// programming error in the pipeline and is ignored rather than overwritten,
// preserving the append-only property.
func (r *Record) Merge(name string, outputs Outputs) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return
	}
	r.entries[name] = outputs.Clone()
}

func (r *Record) Get(name string) (Outputs, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out, ok := r.entries[name]
	return out.Clone(), ok
}

func (r *Record) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

func (r *Record) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Names returns the entry names in sorted order.
func (r *Record) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns a deep copy of all entries.
func (r *Record) Entries() map[string]Outputs {
	r.mu.RLock()
	defer r.mu.RUnlock()
	copied := make(map[string]Outputs, len(r.entries))
	for name, out := range r.entries {
		copied[name] = out.Clone()
	}
	return copied
}

// Seed loads previously persisted entries, used when resuming a partial run.
func (r *Record) Seed(entries map[string]Outputs) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, out := range entries {
		if _, exists := r.entries[name]; !exists {
			r.entries[name] = out.Clone()
		}
	}
}
