package action

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog holds named actions that work items can run.
type Catalog struct {
	mu      sync.RWMutex
	actions map[string]Func
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		actions: make(map[string]Func),
	}
}

// Register adds an action under the given name, replacing any previous one.
func (c *Catalog) Register(name string, fn Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions[name] = fn
}

// Resolve returns the action registered under name.
func (c *Catalog) Resolve(name string) (Func, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fn, ok := c.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return fn, nil
}

// List returns the registered action names, sorted for a stable API response.
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.actions))
	for name := range c.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
