package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

func sampleRun() *Run {
	return &Run{
		Meta: RunMetadata{
			Dataset: "ring:4",
			Profile: "default",
			Seed:    7,
			Ticks:   3,
			Metrics: map[string]float64{"movement": 0.25},
		},
		Positions: dynamo.PointBuffer{0, 0, 1.5, -2, 3.25, 4, 1e-3, 7},
		Edges:     dynamo.EdgeBuffer{0, 1, 1, 2, 2, 3, 3, 0},
		Movement:  []float64{1, 0.5, 0.25},
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())

	run := sampleRun()
	id, err := s.Save(run)
	require.NoError(t, err)
	assert.Regexp(t, `^ring_4_[0-9a-f]{8}$`, id)
	assert.Equal(t, id, run.Meta.ID)

	meta, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "default", meta.Profile)
	assert.Equal(t, 4, meta.NumPoints)
	assert.Equal(t, 4, meta.NumEdges)
	assert.Equal(t, 0.25, meta.Metrics["movement"])

	points, err := s.LoadPositions(id)
	require.NoError(t, err)
	assert.Equal(t, run.Positions, points)

	edges, err := s.LoadEdges(id)
	require.NoError(t, err)
	assert.Equal(t, run.Edges, edges)

	movement, err := s.LoadMovement(id)
	require.NoError(t, err)
	assert.Equal(t, run.Movement, movement)
}

func TestLoadPositionsFallsBackToCSV(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	run := sampleRun()
	id, err := s.Save(run)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, id, positionsSnap)))

	points, err := s.LoadPositions(id)
	require.NoError(t, err)
	assert.Equal(t, run.Positions, points)
}

func TestListNewestFirst(t *testing.T) {
	s := New(t.TempDir())

	older := sampleRun()
	older.Meta.Timestamp = time.Now().Add(-time.Hour)
	newer := sampleRun()
	newer.Meta.Dataset = "grid:3x3"

	_, err := s.Save(older)
	require.NoError(t, err)
	_, err = s.Save(newer)
	require.NoError(t, err)

	runs, err := s.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "grid:3x3", runs[0].Dataset)
}

func TestListMissingDir(t *testing.T) {
	runs, err := New(filepath.Join(t.TempDir(), "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestLoadUnknownRun(t *testing.T) {
	_, err := New(t.TempDir()).Load("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestPositionCodec(t *testing.T) {
	p := dynamo.PointBuffer{1, 2, -3.5, 1e20}
	got, err := DecodePositions(EncodePositions(p))
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = DecodePositions([]byte("not snappy"))
	assert.Error(t, err)

	// one float is not a whole point
	_, err = DecodePositions(EncodePositions(dynamo.PointBuffer{1}))
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
}
