package primitives

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/soypat/csg/pointcloud"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

type manifoldFile struct {
	Manifolds []manifoldDoc `yaml:"manifolds"`
}

type manifoldDoc struct {
	Name   string      `yaml:"name,omitempty"`
	Type   string      `yaml:"type"`
	P      []float64   `yaml:"p,flow"`
	N      []float64   `yaml:"n,flow,omitempty"`
	Radius float64     `yaml:"radius,omitempty"`
	Points [][]float64 `yaml:"points,omitempty"`
}

// ReadManifolds decodes a YAML manifold document. Manifolds without a name
// are named by their position.
func ReadManifolds(r io.Reader) ([]*Manifold, error) {
	var doc manifoldFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	ms := make([]*Manifold, len(doc.Manifolds))
	for i, md := range doc.Manifolds {
		m, err := md.manifold()
		if err != nil {
			return nil, fmt.Errorf("manifold %d: %w", i, err)
		}
		if m.Name == "" {
			m.Name = "m" + strconv.Itoa(i)
		}
		ms[i] = m
	}
	return ms, nil
}

func (md manifoldDoc) manifold() (*Manifold, error) {
	t := ParseManifoldType(md.Type)
	if t == ManifoldNone {
		return nil, fmt.Errorf("unknown manifold type %q", md.Type)
	}
	p, err := vec3(md.P)
	if err != nil {
		return nil, fmt.Errorf("p: %w", err)
	}
	m := &Manifold{Name: md.Name, Type: t, P: p, Radius: md.Radius}
	if len(md.N) > 0 {
		if m.N, err = vec3(md.N); err != nil {
			return nil, fmt.Errorf("n: %w", err)
		}
	}
	if len(md.Points) == 0 {
		return m, nil
	}
	m.Points = pointcloud.New(len(md.Points))
	for i, row := range md.Points {
		if len(row) != 3 && len(row) != 6 {
			return nil, fmt.Errorf("point %d: want 3 or 6 values, got %d", i, len(row))
		}
		pos := r3.Vec{X: row[0], Y: row[1], Z: row[2]}
		var nrm r3.Vec
		if len(row) == 6 {
			nrm = r3.Vec{X: row[3], Y: row[4], Z: row[5]}
		}
		m.Points.Set(i, pos, nrm)
	}
	return m, nil
}

func vec3(v []float64) (r3.Vec, error) {
	if len(v) != 3 {
		return r3.Vec{}, fmt.Errorf("want 3 components, got %d", len(v))
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}

// WriteManifolds encodes ms as a YAML manifold document.
func WriteManifolds(w io.Writer, ms []*Manifold) error {
	doc := manifoldFile{Manifolds: make([]manifoldDoc, len(ms))}
	for i, m := range ms {
		md := manifoldDoc{
			Name:   m.Name,
			Type:   m.Type.String(),
			P:      []float64{m.P.X, m.P.Y, m.P.Z},
			N:      []float64{m.N.X, m.N.Y, m.N.Z},
			Radius: m.Radius,
		}
		for j := range m.Points.Len() {
			p, n := m.Points.At(j)
			md.Points = append(md.Points, []float64{p.X, p.Y, p.Z, n.X, n.Y, n.Z})
		}
		doc.Manifolds[i] = md
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
