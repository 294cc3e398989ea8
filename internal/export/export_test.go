package export

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/viz"
)

func triangleView() dynamo.View {
	return dynamo.View{
		Points: dynamo.PointBuffer{0, 0, 1, 0, 0, 1},
		Sizes:  dynamo.SizeBuffer{4, 4, 4},
		Colors: dynamo.ColorBuffer{dynamo.DefaultPointColor, dynamo.DefaultPointColor, 0x00ff00ff},
		Edges:  dynamo.EdgeBuffer{0, 1, 1, 2},
	}
}

func TestWriteSVG(t *testing.T) {
	scene := viz.NewScene()
	scene.Publish(triangleView())
	require.NoError(t, scene.SetVisible(context.Background(), dynamo.Visibility{Points: true, Edges: true, Labels: true}))

	var buf bytes.Buffer
	require.NoError(t, WriteSVG(&buf, scene.Snapshot(viz.ThemeNight.Points), DefaultOptions()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Equal(t, 2, strings.Count(out, "<path "))
	assert.Equal(t, 3, strings.Count(out, "<circle "))
	assert.Equal(t, 3, strings.Count(out, "<text "))
	assert.Contains(t, out, `fill="#00ff00"`)
	assert.Contains(t, out, `fill="#ff6666"`)
}

func TestWriteSVGEdgeColors(t *testing.T) {
	scene := viz.NewScene()
	v := triangleView()
	v.EdgeColors = dynamo.ColorBuffer{0xff0000ff, dynamo.DefaultEdgeColor}
	scene.Publish(v)

	var buf bytes.Buffer
	require.NoError(t, WriteSVG(&buf, scene.Snapshot(viz.ThemeNight.Points), DefaultOptions()))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, `<path stroke="#ff0000" d="`))
	assert.Equal(t, 1, strings.Count(out, `<path d="`))
}

func TestRenderImageEdgeColors(t *testing.T) {
	f := viz.Frame{
		View: dynamo.View{
			Points:     dynamo.PointBuffer{0, 0, 1, 1},
			Edges:      dynamo.EdgeBuffer{0, 1},
			EdgeColors: dynamo.ColorBuffer{0xff0000ff},
		},
		Visible:     dynamo.Visibility{Edges: true},
		PointColors: []color.RGBA{viz.ThemeNight.Points, viz.ThemeNight.Points},
	}
	opts := DefaultOptions()
	opts.Width, opts.Height = 64, 64

	img := RenderImage(f, opts)
	reddest := 0
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := img.RGBAAt(x, y)
			if int(c.R)-int(c.G) > reddest {
				reddest = int(c.R) - int(c.G)
			}
		}
	}
	assert.Greater(t, reddest, 40)
}

func TestWriteSVGMidpointPaths(t *testing.T) {
	scene := viz.NewScene()
	v := triangleView()
	v.Edges = dynamo.EdgeBuffer{0, 1}
	v.NumSplits = 2
	v.Midpoints = []float32{0.3, 0.1, 0.6, 0.1}
	scene.Publish(v)

	var buf bytes.Buffer
	require.NoError(t, WriteSVG(&buf, scene.Snapshot(viz.ThemeNight.Points), DefaultOptions()))

	// M + two midpoints + destination
	path := buf.String()[strings.Index(buf.String(), `<path d="`):]
	path = path[:strings.Index(path, `"/>`)]
	assert.Equal(t, 3, strings.Count(path, " L"))
	assert.Equal(t, 2, strings.Count(buf.String(), `r="1"`))
}

func TestRendererWritesOnClose(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	b := &Backend{Format: SVG, Width: 100, Height: 50}
	sr, err := b.Create(ctx, &buf, color.RGBA{0, 0, 0, 255}, dynamo.DefaultDimensions())
	require.NoError(t, err)
	r := sr.(*Renderer)

	r.Publish(triangleView())
	require.NoError(t, r.Render(ctx))
	assert.Zero(t, buf.Len())

	require.NoError(t, r.Close())
	assert.Contains(t, buf.String(), `width="100" height="50"`)
	assert.Contains(t, buf.String(), `fill="#000000"`)

	assert.ErrorIs(t, r.Render(ctx), ErrClosed)
	require.NoError(t, r.Close())
}

func TestRendererCloseWithoutFrame(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(PNG, &buf, DefaultOptions())
	require.NoError(t, r.Close())
	assert.Zero(t, buf.Len())
}

func TestWritePNG(t *testing.T) {
	scene := viz.NewScene()
	scene.Publish(dynamo.View{Points: dynamo.PointBuffer{0, 0}, Sizes: dynamo.SizeBuffer{8}})

	opts := DefaultOptions()
	opts.Width, opts.Height = 40, 30

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, scene.Snapshot(viz.ThemeNight.Points), opts))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())

	r, _, _, _ := img.At(20, 15).RGBA()
	assert.Greater(t, r>>8, uint32(200), "point drawn at the center")
	r, _, _, _ = img.At(1, 1).RGBA()
	assert.Less(t, r>>8, uint32(40), "background in the corner")
}
