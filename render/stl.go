package render

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	stlHeaderSize   = 84
	stlTriangleSize = 50
	// Triangles converted per write.
	trianglesInBuffer = 1 << 10
	// ReadSTL gives up after this many normal mismatches.
	maxNormalMismatches = 10_000
)

// ErrNormalMismatch is returned by ReadSTL along with the triangles read when
// stored normals disagree with the vertex winding. Fine meshes may trigger
// it while still being usable.
var ErrNormalMismatch = errors.New("STL normal differs from normal computed from vertices")

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8
	Count uint32
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
	_       uint16 // Attribute byte count
}

// CreateSTL writes all triangles of r to a binary STL file at path.
func CreateSTL(path string, r Renderer) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	// The triangle count is only known at the end so the header is written last.
	if _, err = file.Seek(stlHeaderSize, io.SeekStart); err != nil {
		file.Close()
		return err
	}
	n, err := io.CopyBuffer(file, &stlReader{r: r}, make([]byte, stlTriangleSize*trianglesInBuffer))
	if err == nil {
		_, err = file.Seek(0, io.SeekStart)
	}
	if err == nil {
		err = binary.Write(file, binary.LittleEndian, &stlHeader{Count: uint32(n / stlTriangleSize)})
	}
	if err != nil {
		file.Close()
		return fmt.Errorf("writing STL %s: %w", path, err)
	}
	return file.Close()
}

// WriteSTL writes model to w in binary STL format.
func WriteSTL(w io.Writer, model []Triangle3) error {
	if len(model) == 0 {
		return ErrEmptyMesh
	}
	if err := binary.Write(w, binary.LittleEndian, &stlHeader{Count: uint32(len(model))}); err != nil {
		return err
	}
	buf := make([]byte, stlTriangleSize*min(len(model), trianglesInBuffer))
	for len(model) > 0 {
		nt := min(len(model), trianglesInBuffer)
		for i, t := range model[:nt] {
			stlFromTriangle3(t).put(buf[i*stlTriangleSize:])
		}
		if _, err := w.Write(buf[:nt*stlTriangleSize]); err != nil {
			return err
		}
		model = model[nt:]
	}
	return nil
}

// stlReader encodes the triangles of a Renderer as STL triangle records.
type stlReader struct {
	r   Renderer
	buf [trianglesInBuffer]Triangle3
}

func (sr *stlReader) Read(b []byte) (int, error) {
	ntMax := min(len(b)/stlTriangleSize, len(sr.buf))
	if ntMax == 0 {
		return 0, errors.New("stlReader requires at least 50 bytes to write a single triangle")
	}
	var (
		err error
		it  int
	)
	for it < ntMax && err == nil {
		var nt int
		nt, err = sr.r.ReadTriangles(sr.buf[:ntMax-it])
		for _, t := range sr.buf[:nt] {
			stlFromTriangle3(t).put(b[it*stlTriangleSize:])
			it++
		}
	}
	return it * stlTriangleSize, err
}

// ReadSTL reads a binary STL. Triangles with non-finite components or
// coincident vertices fail the read. Normal mismatches are tolerated and
// reported as ErrNormalMismatch together with the triangles.
func ReadSTL(r io.Reader) (output []Triangle3, readErr error) {
	var header stlHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, errors.New("encountered EOF while reading STL header")
		}
		return nil, fmt.Errorf("STL header read failed: %w", err)
	}
	if header.Count == 0 {
		return nil, errors.New("STL header indicates 0 triangles present")
	}
	var (
		buf            [stlTriangleSize]byte
		d              stlTriangle
		i              int
		normMismatches int
	)
	defer func() {
		if readErr != nil && !errors.Is(readErr, ErrNormalMismatch) {
			readErr = fmt.Errorf("%d/%d STL triangles read: %w", i+1, header.Count, readErr)
		}
	}()
	output = make([]Triangle3, 0, min(int(header.Count), 1<<20))
	for i = 0; i < int(header.Count); i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		d.get(buf[:])
		if err := d.validate(); errors.Is(err, ErrNormalMismatch) {
			normMismatches++
			if normMismatches > maxNormalMismatches {
				return output, fmt.Errorf("got too many normal vector mismatches (%d): %w", normMismatches, ErrNormalMismatch)
			}
			readErr = err
		} else if err != nil {
			return nil, err
		}
		output = append(output, d.toTriangle3())
	}
	return output, readErr
}

func stlFromTriangle3(t Triangle3) stlTriangle {
	return stlTriangle{
		Normal:  f32From3(t.Normal()),
		Vertex1: f32From3(t.V[0]),
		Vertex2: f32From3(t.V[1]),
		Vertex3: f32From3(t.V[2]),
	}
}

func (t stlTriangle) put(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to marshal stlTriangle")
	}
	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], 0)
}

func (t *stlTriangle) get(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to unmarshal stlTriangle")
	}
	get3F32(b, &t.Normal)
	get3F32(b[12:], &t.Vertex1)
	get3F32(b[24:], &t.Vertex2)
	get3F32(b[36:], &t.Vertex3)
}

func (t stlTriangle) validate() error {
	const (
		epsilon = 1e-12
		normTol = 5e-2
	)
	if bad3F32(t.Normal) {
		return errors.New("inf/NaN STL triangle normal")
	}
	if bad3F32(t.Vertex1) || bad3F32(t.Vertex2) || bad3F32(t.Vertex3) {
		return errors.New("inf/NaN STL triangle vertex")
	}
	if equalWithin3F32(t.Vertex1, t.Vertex2, epsilon) ||
		equalWithin3F32(t.Vertex2, t.Vertex3, epsilon) ||
		equalWithin3F32(t.Vertex3, t.Vertex1, epsilon) {
		return errors.New("triangle is degenerate")
	}
	// Vertices are scaled up so small triangles still yield a unit normal.
	v1 := r3.Scale(10, r3From3F32(t.Vertex1))
	calc := f32From3(r3.Unit(r3.Cross(
		r3.Sub(r3.Scale(10, r3From3F32(t.Vertex2)), v1),
		r3.Sub(r3.Scale(10, r3From3F32(t.Vertex3)), v1),
	)))
	neg := [3]float32{-calc[0], -calc[1], -calc[2]}
	if !equalWithin3F32(calc, t.Normal, normTol) && !equalWithin3F32(neg, t.Normal, normTol) {
		return ErrNormalMismatch
	}
	return nil
}

func (t stlTriangle) toTriangle3() Triangle3 {
	return Triangle3{V: [3]r3.Vec{
		r3From3F32(t.Vertex1),
		r3From3F32(t.Vertex2),
		r3From3F32(t.Vertex3),
	}}
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11] // early bounds check
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

func bad3F32(f [3]float32) bool {
	for _, c := range f {
		if math32.IsNaN(c) || math32.IsInf(c, 0) {
			return true
		}
	}
	return false
}

func equalWithin3F32(a, b [3]float32, tol float32) bool {
	return math32.Abs(a[0]-b[0]) <= tol &&
		math32.Abs(a[1]-b[1]) <= tol &&
		math32.Abs(a[2]-b[2]) <= tol
}

func f32From3(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

func r3From3F32(f [3]float32) r3.Vec {
	return r3.Vec{X: float64(f[0]), Y: float64(f[1]), Z: float64(f[2])}
}
