package render

import (
	"bytes"
	"context"
	"image"
	"math"
	"os/exec"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	dcerrors "github.com/matzehuels/dotcharts/pkg/errors"
)

// Rasterizer converts SVG markup into an image at the SVG's natural size
// (one pixel per SVG user unit).
type Rasterizer interface {
	Rasterize(ctx context.Context, svg []byte) (image.Image, error)
}

// Rasterizer names accepted by [NewRasterizer].
const (
	RasterizerAuto   = "auto"
	RasterizerVector = "vector"
	RasterizerRsvg   = "rsvg"
)

// NewRasterizer returns the rasterizer called name. "auto" picks
// rsvg-convert when it is on PATH, since it uses the system fonts, and
// falls back to the pure Go rasterizer otherwise. Both draw text labels.
func NewRasterizer(name string) (Rasterizer, error) {
	switch name {
	case "", RasterizerAuto:
		if _, err := exec.LookPath(rsvgBinary); err == nil {
			return NewRsvgRasterizer(), nil
		}
		return NewVectorRasterizer(), nil
	case RasterizerVector:
		return NewVectorRasterizer(), nil
	case RasterizerRsvg:
		if _, err := exec.LookPath(rsvgBinary); err != nil {
			return nil, dcerrors.New(dcerrors.ErrCodeInvalidConfig,
				"rasterizer rsvg requires librsvg. Install with:\n  macOS:  brew install librsvg\n  Linux:  apt install librsvg2-bin")
		}
		return NewRsvgRasterizer(), nil
	default:
		return nil, dcerrors.New(dcerrors.ErrCodeInvalidConfig, "unknown rasterizer %q (supported: auto, vector, rsvg)", name)
	}
}

// VectorRasterizer draws SVG in pure Go. Shapes, strokes and fills go
// through oksvg; <text> elements are drawn with the embedded Go fonts.
type VectorRasterizer struct{}

// NewVectorRasterizer creates a pure Go rasterizer.
func NewVectorRasterizer() *VectorRasterizer {
	return &VectorRasterizer{}
}

// Rasterize implements Rasterizer.
func (VectorRasterizer) Rasterize(ctx context.Context, svg []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, dcerrors.Wrap(dcerrors.ErrCodeRaster, err, "parse SVG")
	}

	w := int(math.Ceil(icon.ViewBox.W))
	h := int(math.Ceil(icon.ViewBox.H))
	if w <= 0 || h <= 0 {
		return nil, dcerrors.New(dcerrors.ErrCodeRaster, "SVG has an empty viewBox (%dx%d)", w, h)
	}
	if w > MaxDimension || h > MaxDimension {
		return nil, dcerrors.New(dcerrors.ErrCodeRaster, "SVG size %dx%d exceeds the maximum of %d", w, h, MaxDimension)
	}
	if err := ctx.Err(); err != nil {
		return nil, dcerrors.Wrap(dcerrors.ErrCodeTimeout, err, "rasterize")
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	if err := drawLabels(ctx, img, svg, icon.Transform); err != nil {
		return nil, err
	}
	return img, nil
}

var _ Rasterizer = VectorRasterizer{}
