package deadbolt

import (
	"fmt"
	"sort"
)

// DefaultHandlerKey is the reserved key that resolves to the default handler.
const DefaultHandlerKey = ""

// HandlerCache maps handler keys to handlers. It is immutable after
// construction and safe for concurrent use.
type HandlerCache struct {
	def      Handler
	handlers map[string]Handler
}

func NewHandlerCache(def Handler, keyed map[string]Handler) (*HandlerCache, error) {
	if def == nil {
		return nil, ErrNoDefaultHandler
	}
	handlers := make(map[string]Handler, len(keyed))
	for k, h := range keyed {
		if k == DefaultHandlerKey {
			return nil, fmt.Errorf("%w: the empty key is reserved for the default handler", ErrDuplicateHandler)
		}
		if h == nil {
			return nil, fmt.Errorf("%w: %q has a nil handler", ErrUnknownHandler, k)
		}
		handlers[k] = h
	}
	return &HandlerCache{def: def, handlers: handlers}, nil
}

// Get returns the default handler.
func (c *HandlerCache) Get() Handler { return c.def }

// GetKey returns the handler registered under key, or the default handler for
// DefaultHandlerKey.
func (c *HandlerCache) GetKey(key string) (Handler, error) {
	if key == DefaultHandlerKey {
		return c.def, nil
	}
	h, ok := c.handlers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, key)
	}
	return h, nil
}

// Resolve prefers an explicit handler and falls back to the default.
func (c *HandlerCache) Resolve(h Handler) Handler {
	if h != nil {
		return h
	}
	return c.def
}

// Keys lists the non-default handler keys in sorted order.
func (c *HandlerCache) Keys() []string {
	keys := make([]string, 0, len(c.handlers))
	for k := range c.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
