package deadbolt

import (
	"fmt"
	"sort"
	"sync"
)

// CompositeCache stores named constraint trees. It is filled at startup and
// read concurrently afterwards.
type CompositeCache struct {
	mu    sync.RWMutex
	trees map[string]Constraint
}

func NewCompositeCache() *CompositeCache {
	return &CompositeCache{trees: make(map[string]Constraint)}
}

func (c *CompositeCache) Register(name string, constraint Constraint) error {
	if name == "" || constraint == nil {
		return fmt.Errorf("%w: composite needs a name and a constraint", ErrInvalidAnnotation)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.trees[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateComposite, name)
	}
	c.trees[name] = constraint
	return nil
}

func (c *CompositeCache) Get(name string) (Constraint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	constraint, ok := c.trees[name]
	return constraint, ok
}

// Lookup is Get with a configuration error for a missing name.
func (c *CompositeCache) Lookup(name string) (Constraint, error) {
	constraint, ok := c.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComposite, name)
	}
	return constraint, nil
}

// MustGet panics with ErrUnknownComposite when name is not registered.
func (c *CompositeCache) MustGet(name string) Constraint {
	constraint, err := c.Lookup(name)
	if err != nil {
		panic(err)
	}
	return constraint
}

func (c *CompositeCache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.trees))
	for n := range c.trees {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
