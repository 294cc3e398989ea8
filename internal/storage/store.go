package storage

import (
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

const (
	metadataFile  = "metadata.json"
	positionsCSV  = "positions.csv"
	positionsSnap = "positions.sz"
	edgesCSV      = "edges.csv"
	movementCSV   = "movement.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Dataset   string             `json:"dataset"`
	Profile   string             `json:"profile"`
	Simulator string             `json:"simulator"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Ticks     int                `json:"ticks"`
	Step      int                `json:"step"`
	NumPoints int                `json:"numPoints"`
	NumEdges  int                `json:"numEdges"`
	NumSplits int                `json:"numSplits"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Run is everything persisted for one layout run.
type Run struct {
	Meta      RunMetadata
	Positions dynamo.PointBuffer
	Edges     dynamo.EdgeBuffer
	Movement  []float64
}

// Save writes run under a new directory and returns its ID. Positions are
// stored twice: as CSV for inspection and snappy-compressed for reloading.
func (s *Store) Save(run *Run) (string, error) {
	meta := run.Meta
	meta.ID = fmt.Sprintf("%s_%s", sanitize(meta.Dataset), uuid.NewString()[:8])
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.NumPoints = run.Positions.Len()
	meta.NumEdges = run.Edges.NumEdges()

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writePositionsCSV(filepath.Join(runDir, positionsCSV), run.Positions); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, positionsSnap), EncodePositions(run.Positions), 0644); err != nil {
		return "", err
	}
	if err := writeEdgesCSV(filepath.Join(runDir, edgesCSV), run.Edges); err != nil {
		return "", err
	}
	if err := writeMovementCSV(filepath.Join(runDir, movementCSV), run.Movement); err != nil {
		return "", err
	}

	run.Meta = meta
	return meta.ID, nil
}

// List returns the metadata of every run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", runID, err)
	}
	return &meta, nil
}

// LoadPositions reads the compressed positions, falling back to the CSV
// copy when the compressed file is missing.
func (s *Store) LoadPositions(runID string) (dynamo.PointBuffer, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, positionsSnap))
	if err == nil {
		return DecodePositions(data)
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	records, err := readCSV(filepath.Join(s.baseDir, runID, positionsCSV))
	if err != nil {
		return nil, err
	}
	points := make(dynamo.PointBuffer, 0, 2*len(records))
	for _, rec := range records {
		if len(rec) < 3 {
			continue
		}
		x, errX := strconv.ParseFloat(rec[1], 32)
		y, errY := strconv.ParseFloat(rec[2], 32)
		if errX != nil || errY != nil {
			continue
		}
		points = append(points, float32(x), float32(y))
	}
	return points, nil
}

func (s *Store) LoadEdges(runID string) (dynamo.EdgeBuffer, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, edgesCSV))
	if err != nil {
		return nil, err
	}
	edges := make(dynamo.EdgeBuffer, 0, 2*len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		src, errS := strconv.ParseUint(rec[0], 10, 32)
		dst, errD := strconv.ParseUint(rec[1], 10, 32)
		if errS != nil || errD != nil {
			continue
		}
		edges = append(edges, uint32(src), uint32(dst))
	}
	return edges, nil
}

func (s *Store) LoadMovement(runID string) ([]float64, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, movementCSV))
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// EncodePositions packs points as little-endian float32 and compresses
// them with snappy.
func EncodePositions(points dynamo.PointBuffer) []byte {
	raw := make([]byte, 4*len(points))
	for i, v := range points {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	return snappy.Encode(nil, raw)
}

func DecodePositions(data []byte) (dynamo.PointBuffer, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("decompress positions: %w", err)
	}
	if len(raw)%(4*dynamo.ElementsPerPoint) != 0 {
		return nil, fmt.Errorf("%w: %d position bytes", dynamo.ErrDimensionMismatch, len(raw))
	}
	points := make(dynamo.PointBuffer, len(raw)/4)
	for i := range points {
		points[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return points, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(path string, header []string, rows func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := rows(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func writePositionsCSV(path string, points dynamo.PointBuffer) error {
	return writeCSV(path, []string{"index", "x", "y"}, func(w *csv.Writer) error {
		for i := 0; i < points.Len(); i++ {
			x, y := points.At(i)
			row := []string{
				strconv.Itoa(i),
				strconv.FormatFloat(float64(x), 'g', -1, 32),
				strconv.FormatFloat(float64(y), 'g', -1, 32),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeEdgesCSV(path string, edges dynamo.EdgeBuffer) error {
	return writeCSV(path, []string{"source", "target"}, func(w *csv.Writer) error {
		for i := 0; i < edges.NumEdges(); i++ {
			src, dst := edges.Pair(i)
			if err := w.Write([]string{strconv.FormatUint(uint64(src), 10), strconv.FormatUint(uint64(dst), 10)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeMovementCSV(path string, movement []float64) error {
	return writeCSV(path, []string{"tick", "movement"}, func(w *csv.Writer) error {
		for i, v := range movement {
			if err := w.Write([]string{strconv.Itoa(i), strconv.FormatFloat(v, 'g', -1, 64)}); err != nil {
				return err
			}
		}
		return nil
	})
}

// readCSV returns the records after the header row.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}
	return records[1:], nil
}

func sanitize(name string) string {
	if name == "" {
		return "run"
	}
	out := []rune(name)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
