package core

import (
	"fmt"
	"sync"
)

var (
	registry      = make(map[string]*Table)
	registryOrder []*Table
	registryMu    sync.RWMutex
)

// Register adds a table to the registry. Tables load in registration order,
// so a table must be registered after every table it references.
// Panics if a table with the same name is already registered, or if one of
// its foreign references has not been registered yet.
func Register(t *Table) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[t.Name()]; exists {
		panic(fmt.Sprintf("table already registered: %s", t.Name()))
	}
	for _, f := range t.Fields() {
		ref := f.ForeignTable()
		if ref == nil || ref == t {
			continue
		}
		if _, ok := registry[ref.Name()]; !ok {
			panic(fmt.Sprintf("table %s: field %s references unregistered table %s", t.Name(), f.Name(), ref.Name()))
		}
	}

	registry[t.Name()] = t
	registryOrder = append(registryOrder, t)
}

// Get returns a table by name.
// Returns false if not found.
func Get(name string) (*Table, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	t, ok := registry[name]
	return t, ok
}

// All returns all registered tables in load order.
func All() []*Table {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]*Table, len(registryOrder))
	copy(result, registryOrder)
	return result
}

// Standard returns the registered tables that are not extended.
func Standard() []*Table {
	return filterTables(func(t *Table) bool { return !t.IsExtended() })
}

// ExtendedTables returns the registered extended tables.
func ExtendedTables() []*Table {
	return filterTables(func(t *Table) bool { return t.IsExtended() })
}

func filterTables(keep func(*Table) bool) []*Table {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var result []*Table
	for _, t := range registryOrder {
		if keep(t) {
			result = append(result, t)
		}
	}
	return result
}

// TableCount returns the number of registered tables.
func TableCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered tables.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]*Table)
	registryOrder = nil
}
