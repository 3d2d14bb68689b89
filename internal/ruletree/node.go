package ruletree

import "github.com/Dave360-crypto/LogWatcher/internal/predicate"

// Connector joins two child nodes of an internal node.
type Connector string

const (
	AND Connector = "AND"
	OR  Connector = "OR"
)

// ParseConnector validates a protocol-level connector token.
func ParseConnector(s string) (Connector, error) {
	switch Connector(s) {
	case AND, OR:
		return Connector(s), nil
	default:
		return "", ErrInvalidConnector
	}
}

// Node is a rule tree node. It holds exactly one of: a leaf predicate (Left
// and Right both nil, Predicate may or may not be nil — a nil Predicate with
// no children is the distinguished empty "match everything" leaf), or an
// internal connector with exactly two non-nil children.
type Node struct {
	Predicate *predicate.Predicate
	Connector Connector
	Left      *Node
	Right     *Node
}

// IsLeaf reports whether n has no children. A leaf's Predicate is nil iff it
// is the empty "match everything" state.
func (n *Node) IsLeaf() bool {
	return n.Left == nil && n.Right == nil
}

// Equal compares two (sub)trees structurally, independent of node identity.
// Regex predicates compare by their rendered matchfield token rather than
// compiled-pattern identity, since the same pattern compiles to distinct
// *regexp.Regexp values on load.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.IsLeaf() != other.IsLeaf() {
		return false
	}
	if n.IsLeaf() {
		return predicateEqual(n.Predicate, other.Predicate)
	}
	return n.Connector == other.Connector &&
		n.Left.Equal(other.Left) &&
		n.Right.Equal(other.Right)
}

func predicateEqual(a, b *predicate.Predicate) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Field.String() == b.Field.String() &&
		a.Operator == b.Operator &&
		a.Value == b.Value &&
		a.Negated == b.Negated &&
		a.CaseInsensitive == b.CaseInsensitive
}
