package dnf

import (
	"fmt"
	"io"
	"strings"

	"github.com/soypat/csg"
)

// DNF is a disjunction of clauses over Functions. Every clause has width
// len(Functions).
type DNF struct {
	Clauses   []Clause
	Functions []csg.Function
}

// Node returns the union of the clause nodes of d.
func (d DNF) Node() *csg.Node {
	node := csg.Union()
	for _, c := range d.Clauses {
		node.AddChild(ClauseToNode(c, d.Functions))
	}
	return node
}

// Merge concatenates DNFs over disjoint function lists. Existing clauses are
// zero extended so every clause spans the functions of all inputs.
// DNFs without functions are skipped.
func Merge(dnfs ...DNF) DNF {
	var merged DNF
	for _, d := range dnfs {
		oldSize := len(merged.Functions)
		newSize := oldSize + len(d.Functions)
		if oldSize == newSize {
			continue
		}
		for i, c := range merged.Clauses {
			merged.Clauses[i] = Clause{
				Literals: append(c.Literals, make([]bool, newSize-oldSize)...),
				Negated:  append(c.Negated, make([]bool, newSize-oldSize)...),
			}
		}
		for _, c := range d.Clauses {
			nc := NewClause(oldSize)
			nc.Literals = append(nc.Literals, c.Literals...)
			nc.Negated = append(nc.Negated, c.Negated...)
			merged.Clauses = append(merged.Clauses, nc)
		}
		merged.Functions = append(merged.Functions, d.Functions...)
	}
	return merged
}

// String lists the clauses of d by function name, one per line.
func (d DNF) String() string {
	var sb strings.Builder
	for i, c := range d.Clauses {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(c.Format(d.Functions))
	}
	return sb.String()
}

// WriteEspresso writes d as a pyeda expression suitable for espresso
// minimization.
func WriteEspresso(w io.Writer, d DNF) error {
	names := make([]string, len(d.Functions))
	for i, f := range d.Functions {
		names[i] = f.Name()
	}
	lits := strings.Join(names, ",")
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s= map(exprvar, '%s'.split(','))\n", lits, lits)
	sb.WriteString("expr = ")
	for i, c := range d.Clauses {
		if i > 0 {
			sb.WriteString("| ")
		}
		first := true
		for j, lit := range c.Literals {
			if !lit {
				continue
			}
			if !first {
				sb.WriteString("& ")
			}
			first = false
			if c.Negated[j] {
				sb.WriteByte('~')
			}
			sb.WriteString(names[j] + " ")
		}
	}
	sb.WriteString("\ndnf = expr.to_dnf()")
	_, err := io.WriteString(w, sb.String())
	return err
}
