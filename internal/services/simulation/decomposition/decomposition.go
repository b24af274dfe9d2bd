// Package decomposition walks the calculation tree sent by waterfall clients.
package decomposition

import (
	"encoding/json"
	"errors"
	"iter"
)

// Node is one entry of a decomposition tree. Other fields sent by clients
// are presentation data and are ignored.
type Node struct {
	Code     string `json:"code"`
	Children []Node `json:"children,omitempty"`
}

// Parse decodes a decomposition tree.
func Parse(data []byte) (Node, error) {
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return Node{}, err
	}
	return root, nil
}

// IsLeaf reports whether the node has no children. Internal nodes are totals
// of their children and are not calculated.
func (n Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Leaves yields the leaves of the tree rooted at n, depth-first in order.
func Leaves(n Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		walk(n, yield)
	}
}

func walk(n Node, yield func(Node) bool) bool {
	if n.IsLeaf() {
		return yield(n)
	}
	for _, child := range n.Children {
		if !walk(child, yield) {
			return false
		}
	}
	return true
}

// ErrLeafWithoutCode reports a leaf that names no variable.
var ErrLeafWithoutCode = errors.New("decomposition leaf has no code")

// Validate checks that every leaf names a variable.
func Validate(n Node) error {
	for leaf := range Leaves(n) {
		if leaf.Code == "" {
			return ErrLeafWithoutCode
		}
	}
	return nil
}
