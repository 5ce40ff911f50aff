package csg

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotDescribable is returned when serializing a function that does
	// not implement Describer.
	ErrNotDescribable = errors.New("function does not implement Describer")
	// ErrMalformedNode is returned when a JSON node is neither a geometry nor
	// a known operation.
	ErrMalformedNode = errors.New("malformed CSG node")
)

// GeometryDesc is the interchange description of a geometry leaf.
type GeometryDesc struct {
	Name   string               `json:"name"`
	Type   string               `json:"type"`
	Params map[string][]float64 `json:"params,omitempty"`
}

// Describer is implemented by functions that can be written to JSON.
type Describer interface {
	Describe() GeometryDesc
}

// Resolver builds the function described by desc.
type Resolver func(desc GeometryDesc) (Function, error)

type jsonNode struct {
	Op     string        `json:"op,omitempty"`
	Childs []*jsonNode   `json:"childs,omitempty"`
	Geo    *GeometryDesc `json:"geo,omitempty"`
}

// WriteJSON writes the tree in the JSON interchange format.
func WriteJSON(w io.Writer, n *Node) error {
	jn, err := toJSONNode(n)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jn)
}

func toJSONNode(n *Node) (*jsonNode, error) {
	if n.fn != nil {
		d, ok := n.fn.(Describer)
		if !ok {
			return nil, fmt.Errorf("%s: %w", n.fn.Name(), ErrNotDescribable)
		}
		desc := d.Describe()
		return &jsonNode{Geo: &desc}, nil
	}
	jn := &jsonNode{Op: n.op.String(), Childs: make([]*jsonNode, 0, len(n.children))}
	for _, c := range n.children {
		jc, err := toJSONNode(c)
		if err != nil {
			return nil, err
		}
		jn.Childs = append(jn.Childs, jc)
	}
	return jn, nil
}

// ReadJSON reads a tree written by WriteJSON. Leaves with equal names share
// the Function returned by a single call to resolve.
func ReadJSON(r io.Reader, resolve Resolver) (*Node, error) {
	var jn jsonNode
	if err := json.NewDecoder(r).Decode(&jn); err != nil {
		return nil, fmt.Errorf("decoding CSG tree: %w", err)
	}
	arena := make(map[string]Function)
	return fromJSONNode(&jn, resolve, arena)
}

func fromJSONNode(jn *jsonNode, resolve Resolver, arena map[string]Function) (*Node, error) {
	if jn.Geo != nil {
		f, ok := arena[jn.Geo.Name]
		if !ok {
			var err error
			f, err = resolve(*jn.Geo)
			if err != nil {
				return nil, fmt.Errorf("geometry %q: %w", jn.Geo.Name, err)
			}
			arena[jn.Geo.Name] = f
		}
		return Geometry(f), nil
	}
	op, ok := ParseOp(jn.Op)
	if !ok {
		return nil, fmt.Errorf("%w: operation %q", ErrMalformedNode, jn.Op)
	}
	n := Operation(op)
	for _, jc := range jn.Childs {
		if jc == nil {
			return nil, fmt.Errorf("%w: null child of %s", ErrMalformedNode, jn.Op)
		}
		c, err := fromJSONNode(jc, resolve, arena)
		if err != nil {
			return nil, err
		}
		n.AddChild(c)
	}
	return n, nil
}
