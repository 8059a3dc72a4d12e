package render

import (
	"bytes"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	dcerrors "github.com/matzehuels/dotcharts/pkg/errors"
)

// Contain scales img to the largest size that fits inside width x height
// without changing its aspect ratio, then centers it on a width x height
// canvas filled with bg. The result is always exactly width x height.
func Contain(img image.Image, width, height int, bg color.Color) *image.NRGBA {
	canvas := imaging.New(width, height, bg)

	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw == 0 || sh == 0 {
		return canvas
	}

	scale := math.Min(float64(width)/float64(sw), float64(height)/float64(sh))
	dw := min(max(int(math.Round(float64(sw)*scale)), 1), width)
	dh := min(max(int(math.Round(float64(sh)*scale)), 1), height)

	resized := imaging.Resize(img, dw, dh, imaging.Lanczos)
	return imaging.OverlayCenter(canvas, resized, 1.0)
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, dcerrors.Wrap(dcerrors.ErrCodeRaster, err, "encode PNG")
	}
	return buf.Bytes(), nil
}
