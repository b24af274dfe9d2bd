package metadata

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// Parameters is the parameter tree. Every node may carry a name and a
// children object keyed by id.
type Parameters struct {
	root gjson.Result
}

// ParseParameters validates data as a JSON object and wraps it.
func ParseParameters(data []byte) (Parameters, error) {
	if !gjson.ValidBytes(data) {
		return Parameters{}, errors.New("invalid JSON document")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Parameters{}, errors.New("parameter tree must be a JSON object")
	}
	return Parameters{root: root}, nil
}

// Raw returns the whole tree.
func (p Parameters) Raw() json.RawMessage {
	return json.RawMessage(p.root.Raw)
}

// Parameter resolves a dotted name such as "prelevements_sociaux.csg".
func (p Parameters) Parameter(name string) (json.RawMessage, bool) {
	node, _, ok := p.walk(name, false)
	if !ok {
		return nil, false
	}
	return json.RawMessage(node.Raw), true
}

// ParameterWithAncestors resolves name and returns, in root-first order, every
// named node crossed on the way. Ancestors are returned even when the walk
// stops early.
func (p Parameters) ParameterWithAncestors(name string) (json.RawMessage, []json.RawMessage, bool) {
	node, ancestors, ok := p.walk(name, true)
	raws := make([]json.RawMessage, 0, len(ancestors))
	for _, ancestor := range ancestors {
		raws = append(raws, json.RawMessage(ancestor.Raw))
	}
	if !ok {
		return nil, raws, false
	}
	return json.RawMessage(node.Raw), raws, true
}

// MissingID returns the first id of name that does not resolve, or "" when
// the whole path exists.
func (p Parameters) MissingID(name string) string {
	node := p.root
	for _, id := range strings.Split(name, ".") {
		next, ok := child(node, id)
		if !ok {
			return id
		}
		node = next
	}
	return ""
}

func (p Parameters) walk(name string, collect bool) (gjson.Result, []gjson.Result, bool) {
	var ancestors []gjson.Result
	node := p.root
	for _, id := range strings.Split(name, ".") {
		if collect && node.Get("name").String() != "" {
			ancestors = append(ancestors, node)
		}
		next, ok := child(node, id)
		if !ok {
			return gjson.Result{}, ancestors, false
		}
		node = next
	}
	return node, ancestors, true
}

func child(node gjson.Result, id string) (gjson.Result, bool) {
	if id == "" {
		return gjson.Result{}, false
	}
	children := node.Get("children")
	if !children.IsObject() {
		return gjson.Result{}, false
	}
	next := children.Get(gjson.Escape(id))
	if !next.Exists() || next.Type == gjson.Null {
		return gjson.Result{}, false
	}
	return next, true
}
