package grammar

// Node returns the node for id.
func (t *Tree) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

// Text returns the source text covered by a node.
func (t *Tree) Text(id NodeID) string {
	n := &t.Nodes[id]
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(t.Source) {
		return ""
	}
	return string(t.Source[n.StartByte:n.EndByte])
}

// LeafSpan returns the node's slice of Tree.Leaves.
func (t *Tree) LeafSpan(id NodeID) []NodeID {
	n := &t.Nodes[id]
	return t.Leaves[n.FirstLeaf:n.EndLeaf]
}

// NamedChildren returns the named, non-extra children of a node.
func (t *Tree) NamedChildren(id NodeID) []NodeID {
	var out []NodeID
	for _, c := range t.Nodes[id].Children {
		if t.Nodes[c].Named && !t.Nodes[c].Extra {
			out = append(out, c)
		}
	}
	return out
}

// ChildByField returns the first child bound to the given field name.
func (t *Tree) ChildByField(id NodeID, field string) NodeID {
	for _, c := range t.Nodes[id].Children {
		if t.Nodes[c].Field == field {
			return c
		}
	}
	return NoNode
}

// ChildByKind returns the first direct child with the given kind.
func (t *Tree) ChildByKind(id NodeID, kind string) NodeID {
	for _, c := range t.Nodes[id].Children {
		if t.Nodes[c].Kind == kind {
			return c
		}
	}
	return NoNode
}

// Contains reports whether ancestor is id or one of its ancestors.
func (t *Tree) Contains(ancestor, id NodeID) bool {
	for id != NoNode {
		if id == ancestor {
			return true
		}
		id = t.Nodes[id].Parent
	}
	return false
}

// DeepestAt returns the deepest node whose byte range contains offset.
// An offset at EOF resolves to the last node ending there.
func (t *Tree) DeepestAt(offset uint32) NodeID {
	if len(t.Nodes) == 0 {
		return NoNode
	}
	cur := Root
	for {
		next := NoNode
		for _, c := range t.Nodes[cur].Children {
			n := &t.Nodes[c]
			if n.StartByte <= offset && (offset < n.EndByte || (offset == n.EndByte && offset == uint32(len(t.Source)))) {
				if n.EndByte > n.StartByte {
					next = c
					break
				}
			}
		}
		if next == NoNode {
			return cur
		}
		cur = next
	}
}

// Walk visits nodes depth-first in source order using an explicit stack.
// Returning false from fn skips the node's children.
func (t *Tree) Walk(from NodeID, fn func(id NodeID) bool) {
	stack := []NodeID{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(id) {
			continue
		}
		children := t.Nodes[id].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// FirstErrorLine returns the 0-indexed row of the first ERROR or MISSING node, or 0.
func (t *Tree) FirstErrorLine() uint32 {
	line := uint32(0)
	found := false
	t.Walk(Root, func(id NodeID) bool {
		if found {
			return false
		}
		n := &t.Nodes[id]
		if n.IsError {
			line = n.StartPoint.Row
			found = true
			return false
		}
		return n.HasError
	})
	return line
}

// Errors returns the ids of all ERROR and MISSING nodes.
func (t *Tree) Errors() []NodeID {
	var out []NodeID
	t.Walk(Root, func(id NodeID) bool {
		n := &t.Nodes[id]
		if n.IsError {
			out = append(out, id)
		}
		return n.HasError
	})
	return out
}
