package ruletree

import (
	"encoding/json"
	"fmt"

	"github.com/Dave360-crypto/LogWatcher/internal/predicate"
)

// wireNode mirrors the persistence schema from the JSON schema documented
// for LogWatch<id>.json: {"value": Leaf | "AND" | "OR" | null, "left":
// Node | null, "right": Node | null}. "value" is a tagged union so it's
// decoded through json.RawMessage and dispatched by shape.
type wireNode struct {
	Value json.RawMessage `json:"value"`
	Left  *wireNode       `json:"left"`
	Right *wireNode       `json:"right"`
}

// MarshalJSON renders the tree in the documented schema.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return marshalNode(t.Root)
}

// UnmarshalJSON rebuilds the tree from the documented schema, rejecting any
// structure that violates the internal/leaf invariant (every internal node
// has two non-null children, every leaf has none).
func (t *Tree) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("ruletree: decode: %w", err)
	}
	root, err := w.toNode()
	if err != nil {
		return err
	}
	t.Root = root
	return nil
}

func marshalNode(n *Node) ([]byte, error) {
	w := wireNode{}
	if n.IsLeaf() {
		if n.Predicate == nil {
			w.Value = json.RawMessage("null")
		} else {
			leaf := []any{
				n.Predicate.Field.String(),
				string(n.Predicate.Operator),
				n.Predicate.Value,
				n.Predicate.Negated,
				n.Predicate.CaseInsensitive,
			}
			b, err := json.Marshal(leaf)
			if err != nil {
				return nil, err
			}
			w.Value = b
		}
	} else {
		b, err := json.Marshal(string(n.Connector))
		if err != nil {
			return nil, err
		}
		w.Value = b

		lb, err := marshalNode(n.Left)
		if err != nil {
			return nil, err
		}
		var left wireNode
		if err := json.Unmarshal(lb, &left); err != nil {
			return nil, err
		}
		w.Left = &left

		rb, err := marshalNode(n.Right)
		if err != nil {
			return nil, err
		}
		var right wireNode
		if err := json.Unmarshal(rb, &right); err != nil {
			return nil, err
		}
		w.Right = &right
	}
	return json.Marshal(w)
}

func (w *wireNode) toNode() (*Node, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: null node", ErrInvalidAddress)
	}

	var tag string
	isString := json.Unmarshal(w.Value, &tag) == nil

	switch {
	case string(w.Value) == "null" || len(w.Value) == 0:
		if w.Left != nil || w.Right != nil {
			return nil, fmt.Errorf("ruletree: empty leaf must not have children")
		}
		return &Node{}, nil

	case isString && (tag == string(AND) || tag == string(OR)):
		if w.Left == nil || w.Right == nil {
			return nil, fmt.Errorf("ruletree: internal node %q missing a child", tag)
		}
		left, err := w.Left.toNode()
		if err != nil {
			return nil, err
		}
		right, err := w.Right.toNode()
		if err != nil {
			return nil, err
		}
		return &Node{Connector: Connector(tag), Left: left, Right: right}, nil

	default:
		if w.Left != nil || w.Right != nil {
			return nil, fmt.Errorf("ruletree: leaf predicate must not have children")
		}
		var leaf [5]json.RawMessage
		if err := json.Unmarshal(w.Value, &leaf); err != nil {
			return nil, fmt.Errorf("ruletree: decode leaf: %w", err)
		}
		var matchfield, op, value string
		var negated, ci bool
		if err := json.Unmarshal(leaf[0], &matchfield); err != nil {
			return nil, fmt.Errorf("ruletree: decode leaf matchfield: %w", err)
		}
		if err := json.Unmarshal(leaf[1], &op); err != nil {
			return nil, fmt.Errorf("ruletree: decode leaf operator: %w", err)
		}
		if err := json.Unmarshal(leaf[2], &value); err != nil {
			return nil, fmt.Errorf("ruletree: decode leaf value: %w", err)
		}
		if err := json.Unmarshal(leaf[3], &negated); err != nil {
			return nil, fmt.Errorf("ruletree: decode leaf negated: %w", err)
		}
		if err := json.Unmarshal(leaf[4], &ci); err != nil {
			return nil, fmt.Errorf("ruletree: decode leaf case_insensitive: %w", err)
		}

		field, err := predicate.ParseMatchField(matchfield)
		if err != nil {
			return nil, err
		}
		operator, err := predicate.ParseOperator(op)
		if err != nil {
			return nil, err
		}
		p := predicate.Predicate{
			Field:           field,
			Operator:        operator,
			Value:           value,
			Negated:         negated,
			CaseInsensitive: ci,
		}
		return &Node{Predicate: &p}, nil
	}
}
