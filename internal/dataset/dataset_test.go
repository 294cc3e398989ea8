package dataset

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

func TestRing(t *testing.T) {
	g := Ring(6, 1)
	require.Len(t, g.Points, 6)
	assert.Equal(t, dynamo.EdgeBuffer{0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 0}, g.Edges)
	for _, p := range g.Points {
		r := math.Hypot(p[0], p[1])
		assert.InDelta(t, 1, r, 2*math.Sqrt2*jitter, "points stay near the unit circle")
	}

	assert.Empty(t, Ring(1, 1).Edges)
}

func TestGrid(t *testing.T) {
	g := Grid(3, 2, 1)
	require.Len(t, g.Points, 6)
	// 2 rows of 2 horizontal links, 3 vertical links
	assert.Equal(t, 7, g.Edges.NumEdges())
	for i := 0; i < g.Edges.NumEdges(); i++ {
		src, dst := g.Edges.Pair(i)
		assert.True(t, dst == src+1 || dst == src+3)
	}
}

func TestRandom(t *testing.T) {
	g := Random(20, 50, 42)
	require.Len(t, g.Points, 20)
	require.Len(t, g.Sizes, 20)
	assert.Equal(t, 50, g.Edges.NumEdges())
	for i := 0; i < g.Edges.NumEdges(); i++ {
		src, dst := g.Edges.Pair(i)
		assert.NotEqual(t, src, dst)
		assert.Less(t, int(src), 20)
		assert.Less(t, int(dst), 20)
	}
	for _, s := range g.Sizes {
		assert.GreaterOrEqual(t, s, 4.0)
	}
}

func TestGeneratorsAreSeeded(t *testing.T) {
	a, err := Load("random:30:40", 9)
	require.NoError(t, err)
	b, err := Load("random:30:40", 9)
	require.NoError(t, err)
	c, err := Load("random:30:40", 10)
	require.NoError(t, err)

	assert.Equal(t, a.Points, b.Points)
	assert.Equal(t, a.Edges, b.Edges)
	assert.NotEqual(t, a.Points, c.Points)
	assert.Equal(t, "random:30:40", a.Name)
}

func TestLoadGenerators(t *testing.T) {
	for _, ref := range Generators {
		g, err := Load(ref, 1)
		require.NoError(t, err, ref)
		assert.NotEmpty(t, g.Points, ref)
	}

	g, err := Load("random:10", 1)
	require.NoError(t, err)
	assert.Equal(t, 20, g.Edges.NumEdges())

	for _, bad := range []string{"ring:0", "ring:x", "grid:3", "grid:0x2", "random:1", "random:5:-1"} {
		_, err := Load(bad, 1)
		assert.Error(t, err, bad)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), 1)
	assert.ErrorIs(t, err, ErrUnknownDataset)
}

func TestJSONRoundTrip(t *testing.T) {
	g := &Graph{
		Points: [][2]float64{{0, 0}, {1, 2}},
		Sizes:  []float64{3, 9},
		Edges:  dynamo.EdgeBuffer{0, 1},
	}
	path := filepath.Join(t.TempDir(), "g.json")
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, g))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	got, err := Load(path, 1)
	require.NoError(t, err)
	assert.Equal(t, g.Points, got.Points)
	assert.Equal(t, g.Sizes, got.Sizes)
	assert.Equal(t, g.Edges, got.Edges)
	assert.Equal(t, "g.json", got.Name)
}

func TestReadEdgeList(t *testing.T) {
	in := "# comment\n% also comment\n0 1\n1\t4\n\n4 0 extra\n"
	g, err := ReadEdgeList(strings.NewReader(in), 3)
	require.NoError(t, err)
	assert.Equal(t, dynamo.EdgeBuffer{0, 1, 1, 4, 4, 0}, g.Edges)
	assert.Len(t, g.Points, 5)

	_, err = ReadEdgeList(strings.NewReader("0\n"), 1)
	assert.Error(t, err)
	_, err = ReadEdgeList(strings.NewReader("a b\n"), 1)
	assert.Error(t, err)
}
