package pointcloud

import (
	"bytes"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestReadScalesPositions(t *testing.T) {
	const in = "2 6\n1 2 3 0 0 1\n-1 0 0.5 1 0 0\n"
	c, err := Read(strings.NewReader(in), 2)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	p, n := c.At(0)
	assert.Equal(t, r3.Vec{X: 2, Y: 4, Z: 6}, p)
	assert.Equal(t, r3.Vec{Z: 1}, n)
	p, n = c.At(1)
	assert.Equal(t, r3.Vec{X: -2, Z: 1}, p)
	assert.Equal(t, r3.Vec{X: 1}, n)
}

func TestReadErrors(t *testing.T) {
	_, err := Read(strings.NewReader(""), 1)
	assert.ErrorIs(t, err, ErrBadHeader)
	_, err = Read(strings.NewReader("2 6\n1 2 3 4 5 6\n1 2"), 1)
	assert.ErrorIs(t, err, ErrShortRow)
	_, err = Read(strings.NewReader("1 2\n1 2"), 1)
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestWriteReadRoundTrip(t *testing.T) {
	c := FromPoints(
		[]r3.Vec{{X: 0.25, Y: 1, Z: -3}, {X: 7}},
		[]r3.Vec{{Y: 1}, {Z: -1}},
	)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, c))
	got, err := Read(&buf, 1)
	require.NoError(t, err)
	require.Equal(t, c.Len(), got.Len())
	for i := range c.Len() {
		p0, n0 := c.At(i)
		p1, n1 := got.At(i)
		assert.Equal(t, p0, p1)
		assert.Equal(t, n0, n1)
	}

	buf.Reset()
	require.NoError(t, WriteXYZ(&buf, c))
	got, err = ReadXYZ(&buf, 1)
	require.NoError(t, err)
	assert.Equal(t, c.Len(), got.Len())
}

func TestConcatFilterBounds(t *testing.T) {
	a := FromPoints([]r3.Vec{{X: 1}, {X: -1}}, nil)
	b := FromPoints([]r3.Vec{{Y: 5}}, nil)
	c := Concat(a, Cloud{}, b)
	require.Equal(t, 3, c.Len())
	assert.Equal(t, r3.Vec{Y: 5}, c.Pos(2))
	bb := c.Bounds()
	assert.Equal(t, r3.Vec{X: -1}, bb.Min)
	assert.Equal(t, r3.Vec{X: 1, Y: 5}, bb.Max)

	pos := c.Filter(func(p, _ r3.Vec) bool { return p.X >= 0 })
	assert.Equal(t, 2, pos.Len())
	assert.Equal(t, 0, Cloud{}.Len())
}

func TestAddNoise(t *testing.T) {
	c := FromPoints(make([]r3.Vec, 200), nil)
	AddNoise(c, 0.1, rand.NewPCG(3, 4))
	var moved int
	for i := range c.Len() {
		p := c.Pos(i)
		if p != (r3.Vec{}) {
			moved++
		}
		assert.Less(t, r3.Norm(p), 1.0)
	}
	assert.Equal(t, c.Len(), moved)
}
