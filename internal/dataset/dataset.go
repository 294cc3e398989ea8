// Package dataset loads graphs from files and generates synthetic ones.
package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/ingest"
)

var ErrUnknownDataset = errors.New("dataset: unknown dataset")

// Graph is an initial layout: positions, optional sizes and edges.
type Graph struct {
	Name   string
	Points [][2]float64
	Sizes  []float64
	Edges  dynamo.EdgeBuffer
}

func (g *Graph) NumPoints() int { return len(g.Points) }

// Load resolves a dataset reference. Generator references look like
// "ring:48", "grid:8x6" or "random:100:250"; anything else is a file path,
// read as JSON when it ends in .json and as an edge list otherwise.
func Load(ref string, seed int64) (*Graph, error) {
	if g, ok, err := generate(ref, seed); ok {
		return g, err
	}

	f, err := os.Open(ref)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, ref)
		}
		return nil, err
	}
	defer f.Close()

	var g *Graph
	if strings.EqualFold(filepath.Ext(ref), ".json") {
		g, err = ReadJSON(f)
	} else {
		g, err = ReadEdgeList(f, seed)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	g.Name = filepath.Base(ref)
	return g, nil
}

type jsonGraph struct {
	Points [][2]float64 `json:"points"`
	Sizes  []float64    `json:"sizes,omitempty"`
	Edges  [][2]uint32  `json:"edges"`
}

// ReadJSON decodes {"points": [[x,y]...], "sizes": [...], "edges": [[s,d]...]}.
func ReadJSON(r io.Reader) (*Graph, error) {
	var jg jsonGraph
	if err := json.NewDecoder(r).Decode(&jg); err != nil {
		return nil, err
	}
	return &Graph{Points: jg.Points, Sizes: jg.Sizes, Edges: ingest.Edges(jg.Edges)}, nil
}

// WriteJSON encodes g in the format ReadJSON accepts.
func WriteJSON(w io.Writer, g *Graph) error {
	jg := jsonGraph{Points: g.Points, Sizes: g.Sizes, Edges: make([][2]uint32, g.Edges.NumEdges())}
	for i := range jg.Edges {
		src, dst := g.Edges.Pair(i)
		jg.Edges[i] = [2]uint32{src, dst}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jg)
}

// ReadEdgeList reads whitespace separated "source target" lines. Lines
// starting with # or % are comments. Points are placed on a jittered
// circle since edge lists carry no positions.
func ReadEdgeList(r io.Reader, seed int64) (*Graph, error) {
	var edges dynamo.EdgeBuffer
	maxIndex := -1

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' || text[0] == '%' {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected source and target", line)
		}
		src, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		dst, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		edges = append(edges, uint32(src), uint32(dst))
		maxIndex = max(maxIndex, int(src), int(dst))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	g := Ring(maxIndex+1, seed)
	g.Edges = edges
	return g, nil
}
