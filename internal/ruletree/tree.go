package ruletree

import "github.com/Dave360-crypto/LogWatcher/internal/predicate"

// Tree is the addressable binary rule tree (C1): a pure data structure
// mutated in place by address. It is exclusively owned by its LogWatch
// Worker — nothing in this package synchronizes concurrent access.
type Tree struct {
	Root *Node
}

// New returns a tree in the distinguished empty state (match everything).
func New() *Tree {
	return &Tree{Root: &Node{}}
}

// slot returns the address of the pointer slot holding the node at addr,
// validating that every proper prefix of addr resolves to an internal node.
func (t *Tree) slot(addr Address) (**Node, error) {
	cur := &t.Root
	for _, step := range addr {
		n := *cur
		if n == nil || n.IsLeaf() {
			return nil, ErrInvalidAddress
		}
		if step == 0 {
			cur = &n.Left
		} else {
			cur = &n.Right
		}
	}
	return cur, nil
}

// GetNode traverses from the root and returns the node at addr.
func (t *Tree) GetNode(addr Address) (*Node, error) {
	slot, err := t.slot(addr)
	if err != nil {
		return nil, err
	}
	return *slot, nil
}

// SetMatch replaces the addressed node's payload with a leaf predicate,
// discarding any children it had.
func (t *Tree) SetMatch(addr Address, p predicate.Predicate) error {
	slot, err := t.slot(addr)
	if err != nil {
		return err
	}
	*slot = &Node{Predicate: &p}
	return nil
}

// CombineMatch turns the addressed node into an internal node: its former
// payload becomes the left child, the new predicate becomes the right
// child. This is the only operation that introduces connectors, and it is
// why addresses stay stable across an AND/OR fold: a caller that combined
// at addr can keep mutating addr's left subtree by the same path.
func (t *Tree) CombineMatch(addr Address, p predicate.Predicate, conn Connector) error {
	slot, err := t.slot(addr)
	if err != nil {
		return err
	}
	old := *slot
	*slot = &Node{
		Connector: conn,
		Left:      old,
		Right:     &Node{Predicate: &p},
	}
	return nil
}

// DelMatch removes the addressed node. The empty address on a leaf root
// resets the tree to empty; the empty address on an internal root is
// rejected with ErrInvalidAddress. For a non-empty address, the sibling of
// the deleted node
// replaces its parent in place.
func (t *Tree) DelMatch(addr Address) error {
	if len(addr) == 0 {
		if t.Root.IsLeaf() {
			t.Root = &Node{}
			return nil
		}
		return ErrInvalidAddress
	}

	parentAddr, side := addr.Parent()
	parentSlot, err := t.slot(parentAddr)
	if err != nil {
		return err
	}
	parent := *parentSlot
	if parent == nil || parent.IsLeaf() {
		return ErrInvalidAddress
	}

	var sibling *Node
	if side == 0 {
		sibling = parent.Right
	} else {
		sibling = parent.Left
	}
	*parentSlot = sibling
	return nil
}

// Equal reports whether t and other describe the same tree.
func (t *Tree) Equal(other *Tree) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Root.Equal(other.Root)
}
