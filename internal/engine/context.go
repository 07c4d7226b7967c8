// File: internal/engine/context.go
package engine

// PathContext is the ordered ancestor path of a traversal: for each
// branch level crossed so far, the display name of the item selected at
// that level, in root-to-leaf order.
//
// Frames clone the context on descent, so a deeper frame can never leak
// writes into a sibling iteration; a frame only ever overwrites its own
// level's entry between iterations of its own fan-out.
type PathContext struct {
	keys   []string
	values map[string]string
}

// NewPathContext returns an empty ancestor path.
func NewPathContext() *PathContext {
	return &PathContext{values: make(map[string]string)}
}

// Set records the selected item name for a level. Setting a level that is
// already present replaces its value without disturbing the order.
func (c *PathContext) Set(level, name string) {
	if _, ok := c.values[level]; !ok {
		c.keys = append(c.keys, level)
	}
	c.values[level] = name
}

// Clone returns an independent copy for a descending frame.
func (c *PathContext) Clone() *PathContext {
	dup := &PathContext{
		keys:   make([]string, len(c.keys)),
		values: make(map[string]string, len(c.values)),
	}
	copy(dup.keys, c.keys)
	for k, v := range c.values {
		dup.values[k] = v
	}
	return dup
}

// Values returns the item names in root-to-leaf order.
func (c *PathContext) Values() []string {
	out := make([]string, len(c.keys))
	for i, k := range c.keys {
		out[i] = c.values[k]
	}
	return out
}

// Len reports the current ancestor depth.
func (c *PathContext) Len() int { return len(c.keys) }
