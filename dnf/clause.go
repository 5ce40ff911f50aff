// Package dnf implements clauses and disjunctive normal forms over a list of
// implicit functions together with their conversion to CSG trees and a
// point sample driven Shapiro expansion.
package dnf

import (
	"math"
	"strings"

	"github.com/soypat/csg"
	"gonum.org/v1/gonum/spatial/r3"
)

// Clause is a conjunction of literals. Literal i references function i and
// is complemented when Negated[i] is set. Negated is ignored where the
// literal is not set.
type Clause struct {
	Literals []bool
	Negated  []bool
}

// NewClause returns a clause of width n with no literals set.
func NewClause(n int) Clause {
	return Clause{Literals: make([]bool, n), Negated: make([]bool, n)}
}

// Len returns the clause width.
func (c Clause) Len() int { return len(c.Literals) }

// Clone returns a deep copy of c.
func (c Clause) Clone() Clause {
	return Clause{
		Literals: append([]bool(nil), c.Literals...),
		Negated:  append([]bool(nil), c.Negated...),
	}
}

// Equal compares clauses ignoring Negated at unset literals.
func (c Clause) Equal(o Clause) bool {
	if c.Len() != o.Len() {
		return false
	}
	for i, lit := range c.Literals {
		if lit != o.Literals[i] || (lit && c.Negated[i] != o.Negated[i]) {
			return false
		}
	}
	return true
}

// Key returns a string that is equal for two clauses if and only if the
// clauses are Equal.
func (c Clause) Key() string {
	b := make([]byte, c.Len())
	for i, lit := range c.Literals {
		switch {
		case !lit:
			b[i] = '-'
		case c.Negated[i]:
			b[i] = '0'
		default:
			b[i] = '1'
		}
	}
	return string(b)
}

// NumLiterals returns the number of set literals.
func (c Clause) NumLiterals() int {
	var n int
	for _, lit := range c.Literals {
		if lit {
			n++
		}
	}
	return n
}

// NumNegations returns the number of set and complemented literals.
func (c Clause) NumNegations() int {
	var n int
	for i, lit := range c.Literals {
		if lit && c.Negated[i] {
			n++
		}
	}
	return n
}

// SignedDistance evaluates the clause at p as the intersection of its
// literals over fs. A clause without literals is everywhere.
func (c Clause) SignedDistance(p r3.Vec, fs []csg.Function) float64 {
	d := math.Inf(-1)
	for i, lit := range c.Literals {
		if !lit {
			continue
		}
		fd := fs[i].SignedDistance(p)
		if c.Negated[i] {
			fd = -fd
		}
		d = math.Max(d, fd)
	}
	return d
}

// String prints each literal as 1 or 0 prefixed with ! when complemented.
func (c Clause) String() string {
	var sb strings.Builder
	for i, lit := range c.Literals {
		if c.Negated[i] {
			sb.WriteByte('!')
		}
		if lit {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Format prints the set literals by function name, complemented ones
// prefixed with !.
func (c Clause) Format(fs []csg.Function) string {
	var parts []string
	for i, lit := range c.Literals {
		if !lit {
			continue
		}
		name := fs[i].Name()
		if c.Negated[i] {
			name = "!" + name
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, " ")
}

// ClauseToNode returns the intersection of the clause's literals where
// complemented literals are wrapped in a complement. A single literal clause
// becomes the bare literal.
func ClauseToNode(c Clause, fs []csg.Function) *csg.Node {
	node := csg.Intersection()
	for i, lit := range c.Literals {
		if !lit {
			continue
		}
		leaf := csg.Geometry(fs[i])
		if c.Negated[i] {
			leaf = csg.Complement(leaf)
		}
		node.AddChild(leaf)
	}
	if node.NumChildren() == 1 {
		return node.Child(0)
	}
	return node
}
