package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/csg"
	"github.com/soypat/csg/implicit"
	"github.com/soypat/csg/inflate"
	"github.com/soypat/csg/pointcloud"
	"github.com/soypat/csg/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func sphere(t testing.TB, name string, x, r float64) *csg.Node {
	s, err := implicit.NewSphere(name, r3.Vec{X: x}, r)
	require.NoError(t, err)
	return csg.Geometry(s)
}

func saveTree(t testing.TB, dir, name string, n *csg.Node) string {
	path := filepath.Join(dir, name)
	require.NoError(t, writeTree(path, n))
	return path
}

// run executes csgopt with args and returns its standard output.
func run(t testing.TB, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// redundant returns B ∪ (A ∩ C) where A and C are disjoint.
func redundant(t testing.TB) *csg.Node {
	a, b, c := sphere(t, "A", 0.013, 1.03), sphere(t, "B", 1.517, 0.97), sphere(t, "C", 5.02, 1.01)
	return csg.Union(b, csg.Intersection(a, c))
}

func TestOptimizeCmd(t *testing.T) {
	dir := t.TempDir()
	in := redundant(t)
	inPath := saveTree(t, dir, "in.json", in)
	for _, method := range []string{methodCIT, methodDecompose, methodUnionPaths} {
		t.Run(method, func(t *testing.T) {
			outPath := filepath.Join(dir, method+".json")
			stdout, err := run(t, "optimize", inPath, "-o", outPath, "-m", method, "--grid", "0.2")
			require.NoError(t, err)
			assert.Contains(t, stdout, "output:")
			got, err := readTree(outPath)
			require.NoError(t, err)
			assert.LessOrEqual(t, got.NumNodes(), in.NumNodes())
			assert.True(t, inflate.Equivalent(in, got, 0.2, nil), got.Key())
		})
	}

	_, err := run(t, "optimize", inPath, "-o", filepath.Join(dir, "x.json"), "-m", "magic")
	assert.ErrorContains(t, err, "unknown method")
	_, err = run(t, "optimize", inPath)
	assert.Error(t, err, "output flag is required")
}

func TestOptimizeCmdOutputs(t *testing.T) {
	dir := t.TempDir()
	inPath := saveTree(t, dir, "in.json", redundant(t))
	outPath := filepath.Join(dir, "out.json")
	paramsPath := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(paramsPath, []byte("CIT:\n  SamplingGridSize: 0.2\n"), 0o644))
	_, err := run(t, "--params", paramsPath, "--log-format", "json", "optimize", inPath, "-o", outPath,
		"--remove-redundancies",
		"--report", filepath.Join(dir, "report.txt"),
		"--dot", filepath.Join(dir, "out.gv"),
		"--stl", filepath.Join(dir, "out.stl"), "--mesh-cells", "20")
	require.NoError(t, err)
	for _, name := range []string{"out.json", "report.txt", "out.gv", "out.stl"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.NotZero(t, info.Size(), name)
	}
	// Only B is left after redundancy removal.
	report, err := os.ReadFile(filepath.Join(dir, "report.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "primitives: B")
	assert.Contains(t, string(report), "single primitive")

	// Decomposition explains the whole tree without the CIT optimizer.
	_, err = run(t, "optimize", inPath, "-o", outPath, "-m", methodDecompose, "--grid", "0.2",
		"--report", filepath.Join(dir, "report.txt"))
	require.NoError(t, err)
	report, err = os.ReadFile(filepath.Join(dir, "report.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "did not run the CIT optimizer")
}

func TestRootFlags(t *testing.T) {
	dir := t.TempDir()
	inPath := saveTree(t, dir, "in.json", sphere(t, "A", 0, 1))
	_, err := run(t, "--log-format", "xml", "compare", inPath, inPath)
	assert.ErrorContains(t, err, "log format")
	_, err = run(t, "--params", filepath.Join(dir, "missing.toml"), "compare", inPath, inPath)
	assert.Error(t, err)
	_, err = run(t, "--params", filepath.Join(dir, "params.ini"), "compare", inPath, inPath)
	assert.Error(t, err)
}

func TestCompareCmd(t *testing.T) {
	dir := t.TempDir()
	a, b := sphere(t, "A", 0, 1), sphere(t, "B", 1.5, 1)
	ab := saveTree(t, dir, "ab.json", csg.Union(a, b))
	ba := saveTree(t, dir, "ba.json", csg.Union(b.Clone(), a.Clone()))
	onlyA := saveTree(t, dir, "a.json", a)

	out, err := run(t, "compare", ab, ab)
	require.NoError(t, err)
	assert.Contains(t, out, "identical")

	out, err = run(t, "compare", ab, ba, "--grid", "0.2")
	require.NoError(t, err)
	assert.Contains(t, out, "equivalent")
	assert.Contains(t, out, "+ ")
	assert.Contains(t, out, "- ")

	out, err = run(t, "compare", ab, onlyA, "--no-diff", "--grid", "0.2")
	assert.ErrorIs(t, err, errTreesDiffer)
	assert.Contains(t, out, "not equivalent")
	assert.NotContains(t, out, "+ ")
}

func TestInflateCmd(t *testing.T) {
	dir := t.TempDir()
	a, b, c := sphere(t, "A", 0.013, 1.03), sphere(t, "B", 1.517, 0.97), sphere(t, "C", -0.29, 0.51)
	inPath := saveTree(t, dir, "in.json", csg.Intersection(csg.Union(a, b), csg.Complement(c)))
	outPath := filepath.Join(dir, "big.json")
	out, err := run(t, "inflate", inPath, "-o", outPath, "-n", "6", "--seed", "5",
		"--check", "--grid", "0.2", "-w", "DoubleNegation=1,Absorption=2")
	require.NoError(t, err)
	assert.Contains(t, out, "equivalent")
	for _, name := range []string{"big.json", "big_graph.gv", "big_info.toml"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	_, err = run(t, "inflate", inPath, "-o", outPath, "-w", "Unknown=1")
	assert.ErrorIs(t, err, inflate.ErrUnknownKind)
}

func TestParseInserters(t *testing.T) {
	ins, err := parseInserters(nil)
	require.NoError(t, err)
	assert.Len(t, ins, len(inflate.Kinds()))

	ins, err = parseInserters(map[string]string{"GhostPrimitive": "0.5", "subtreecopy": "2"})
	require.NoError(t, err)
	assert.Equal(t, []inflate.Inserter{{Kind: inflate.SubtreeCopy, Weight: 2}, {Kind: inflate.GhostPrimitive, Weight: 0.5}}, ins)

	_, err = parseInserters(map[string]string{"Distributive": "-1"})
	assert.Error(t, err)
}

func TestSampleCmd(t *testing.T) {
	dir := t.TempDir()
	inPath := saveTree(t, dir, "in.json", sphere(t, "A", 0, 1))
	outPath := filepath.Join(dir, "cloud.txt")
	_, err := run(t, "sample", inPath, "-o", outPath, "--step", "0.1", "--noise", "0.001", "--seed", "2")
	require.NoError(t, err)
	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	cloud, err := pointcloud.Read(f, 1)
	require.NoError(t, err)
	require.NotZero(t, cloud.Len())
	for i := range cloud.Len() {
		assert.InDelta(t, 1, r3.Norm(cloud.Pos(i)), 0.06)
	}

	_, err = run(t, "sample", inPath, "-o", outPath, "--step", "0")
	assert.Error(t, err)
}

func TestMeshCmd(t *testing.T) {
	dir := t.TempDir()
	inPath := saveTree(t, dir, "in.json", sphere(t, "A", 0, 1))
	outPath := filepath.Join(dir, "a.stl")
	_, err := run(t, "mesh", inPath, "-o", outPath, "--cells", "20")
	require.NoError(t, err)
	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	model, err := render.ReadSTL(f)
	if err != nil {
		require.ErrorIs(t, err, render.ErrNormalMismatch)
	}
	assert.NotEmpty(t, model)
}

func TestExtractCmd(t *testing.T) {
	dir := t.TempDir()
	msPath := filepath.Join(dir, "ms.yaml")
	doc := "manifolds:\n  - name: s\n    type: sphere\n    p: [0, 0, 0]\n    radius: 1\n"
	require.NoError(t, os.WriteFile(msPath, []byte(doc), 0o644))
	outPath := filepath.Join(dir, "prims.json")
	out, err := run(t, "extract", msPath, "-o", outPath, "--seed", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "extracted")
	got, err := readTree(outPath)
	require.NoError(t, err)
	require.True(t, got.IsGeometry())
	assert.InDelta(t, -1, got.SignedDistance(r3.Vec{}), 1e-12)
}
