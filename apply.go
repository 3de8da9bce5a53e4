// FILE: lixenwraith/confschema/apply.go
package confschema

// applyGetters fills every leaf under group from the highest-ranked getter that
// yields a value. A leaf never falls back below the rank of its current origin, so
// a refresh cannot undo a merge or an explicit set. Caller holds the write lock.
func (c *Config) applyGetters(group *SchemaNode, values map[string]any) {
	for _, name := range group.Children() {
		node := group.children[name]

		if !node.IsLeaf() {
			current, exists := values[name]
			if !exists || current == nil {
				current = make(map[string]any)
				values[name] = current
			}
			// A group overwritten with a scalar is left alone; Validate reports it.
			if child, ok := current.(map[string]any); ok {
				c.applyGetters(node, child)
			}
			continue
		}

		c.resolveLeaf(node, values, name)
	}
}

func (c *Config) resolveLeaf(node *SchemaNode, values map[string]any, name string) {
	if _, exists := values[name]; !exists {
		values[name] = nil
	}

	level := 0
	if origin := c.origins[node.path]; origin != "" {
		level = max(c.getters.rank(origin), 0)
	}

	for i := len(c.getters.order) - 1; i >= level; i-- {
		getterName := c.getters.order[i]
		entry, registered := c.getters.list[getterName]
		if !registered {
			continue
		}
		keyword, bound := node.attrs[getterName]
		if !bound {
			continue
		}

		stopped := false
		value := entry.fn(deepCopy(keyword), node, c.scope, func() { stopped = true })
		if value != nil || stopped {
			values[name] = deepCopy(value)
			c.origins[node.path] = getterName
			return
		}
	}
}

// applyValues overlays from onto to. group describes the current level and is nil
// inside undeclared subtrees, where every key is replaced as a whole. Declared leaves
// are opaque: an object value replaces the leaf instead of being merged into it.
// Caller holds the write lock.
func (c *Config) applyValues(from, to map[string]any, group *SchemaNode) {
	valueRank := c.getters.rank(PriorityValue)

	for _, name := range sortedKeys(from) {
		incoming := from[name]

		var node *SchemaNode
		if group != nil && !group.IsLeaf() {
			node = group.children[name]
		}

		if node != nil && node.IsLeaf() {
			if origin := c.origins[node.path]; origin != "" && c.getters.rank(origin) > valueRank {
				continue
			}
			to[name] = node.Coerce(incoming)
			c.origins[node.path] = PriorityValue
			continue
		}

		incomingMap, isMap := incoming.(map[string]any)
		if !isMap || group == nil {
			to[name] = incoming
			continue
		}

		current, ok := to[name].(map[string]any)
		if !ok {
			current = make(map[string]any)
			to[name] = current
		}
		c.applyValues(incomingMap, current, node)
	}
}
