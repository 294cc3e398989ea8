package viz

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/url"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

// ColorMapResolution is the number of samples kept from a color map image.
const ColorMapResolution = 256

// ColorMap is a color gradient sampled from the horizontal axis of an image.
type ColorMap struct {
	lut [ColorMapResolution]color.RGBA
}

// NewColorMap resamples img into a ColorMapResolution x 1 strip.
func NewColorMap(img image.Image) *ColorMap {
	strip := image.NewRGBA(image.Rect(0, 0, ColorMapResolution, 1))
	draw.ApproxBiLinear.Scale(strip, strip.Bounds(), img, img.Bounds(), draw.Src, nil)

	cm := &ColorMap{}
	for i := range cm.lut {
		cm.lut[i] = strip.RGBAAt(i, 0)
	}
	return cm
}

// LoadColorMap fetches and decodes a color map image. Plain paths, file://
// and http(s):// URLs are supported; png, jpeg, gif, bmp and webp decode.
func LoadColorMap(ctx context.Context, imageURL string) (*ColorMap, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("parse color map url: %w", err)
	}

	var img image.Image
	switch u.Scheme {
	case "", "file":
		path := u.Path
		if u.Scheme == "" {
			path = imageURL
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open color map: %w", err)
		}
		defer f.Close()
		if img, _, err = image.Decode(f); err != nil {
			return nil, fmt.Errorf("decode color map %s: %w", path, err)
		}
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch color map: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch color map: %s", resp.Status)
		}
		if img, _, err = image.Decode(resp.Body); err != nil {
			return nil, fmt.Errorf("decode color map %s: %w", imageURL, err)
		}
	default:
		return nil, fmt.Errorf("unsupported color map scheme %q", u.Scheme)
	}
	return NewColorMap(img), nil
}

// At samples the map at t in [0,1].
func (cm *ColorMap) At(t float64) color.RGBA {
	if t < 0 || t != t {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return cm.lut[int(t*(ColorMapResolution-1)+0.5)]
}

// PointColors assigns each of n points a color. With clusters, points of
// cluster c take the sample at c/maxCluster; otherwise colors run along
// the point order.
func (cm *ColorMap) PointColors(n int, clusters []int) ([]color.RGBA, error) {
	out := make([]color.RGBA, n)
	if clusters == nil {
		for i := range out {
			t := 0.0
			if n > 1 {
				t = float64(i) / float64(n-1)
			}
			out[i] = cm.At(t)
		}
		return out, nil
	}

	if len(clusters) != n {
		return nil, fmt.Errorf("%w: %d clusters for %d points", dynamo.ErrDimensionMismatch, len(clusters), n)
	}
	maxCluster := 0
	for _, c := range clusters {
		if c < 0 {
			return nil, fmt.Errorf("negative cluster %d", c)
		}
		maxCluster = max(maxCluster, c)
	}
	for i, c := range clusters {
		t := 0.0
		if maxCluster > 0 {
			t = float64(c) / float64(maxCluster)
		}
		out[i] = cm.At(t)
	}
	return out, nil
}
