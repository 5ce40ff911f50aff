package csg

import (
	"hash/fnv"
	"strings"
)

// TokenKind is the kind of a serialization token.
type TokenKind uint8

const (
	TokenNode TokenKind = iota
	TokenLeftBracket
	TokenRightBracket
)

// Token is an element of a structural tree serialization.
type Token struct {
	Kind TokenKind
	Node *Node // set for TokenNode
}

// Equal reports whether two tokens are equal. Geometry tokens are equal if
// they reference the same function and operation tokens if they share
// the operation kind.
func (t Token) Equal(o Token) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind != TokenNode {
		return true
	}
	if t.Node.fn != nil || o.Node.fn != nil {
		return t.Node.fn != nil && o.Node.fn != nil && t.Node.fn.Name() == o.Node.fn.Name()
	}
	return t.Node.op == o.Node.op
}

func (t Token) String() string {
	switch t.Kind {
	case TokenLeftBracket:
		return "("
	case TokenRightBracket:
		return ")"
	}
	return t.Node.Name()
}

// Serialize returns the bracketed token sequence of the tree. A node with
// two children serializes in order as (left) node (right). Other
// nodes serialize as node followed by each child in brackets.
func (n *Node) Serialize() []Token {
	var toks []Token
	n.serialize(func(t Token) { toks = append(toks, t) })
	return toks
}

func (n *Node) serialize(emit func(Token)) {
	left, right := Token{Kind: TokenLeftBracket}, Token{Kind: TokenRightBracket}
	if len(n.children) == 2 {
		emit(left)
		n.children[0].serialize(emit)
		emit(right)
		emit(Token{Kind: TokenNode, Node: n})
		emit(left)
		n.children[1].serialize(emit)
		emit(right)
		return
	}
	emit(Token{Kind: TokenNode, Node: n})
	for _, c := range n.children {
		emit(left)
		c.serialize(emit)
		emit(right)
	}
}

// Key returns the serialization of the tree as a string. Two trees have the
// same key if and only if their serializations are token-wise equal.
func (n *Node) Key() string {
	var sb strings.Builder
	n.serialize(func(t Token) {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.String())
	})
	return sb.String()
}

// Hash returns a structural hash of the tree consistent with Key.
func (n *Node) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(n.Key()))
	return h.Sum64()
}
