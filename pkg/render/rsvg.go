package render

import (
	"bytes"
	"context"
	"image"
	"os/exec"
	"strings"

	"github.com/disintegration/imaging"

	dcerrors "github.com/matzehuels/dotcharts/pkg/errors"
)

const rsvgBinary = "rsvg-convert"

// RsvgRasterizer shells out to rsvg-convert from librsvg, which renders
// text with system fonts.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
type RsvgRasterizer struct {
	binary string
}

// NewRsvgRasterizer creates a rasterizer that runs rsvg-convert from PATH.
func NewRsvgRasterizer() *RsvgRasterizer {
	return &RsvgRasterizer{binary: rsvgBinary}
}

// Rasterize implements Rasterizer.
func (r *RsvgRasterizer) Rasterize(ctx context.Context, svg []byte) (image.Image, error) {
	cmd := exec.CommandContext(ctx, r.binary, "-f", "png", "-d", "72", "-p", "72")
	cmd.Stdin = bytes.NewReader(svg)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, dcerrors.Wrap(dcerrors.ErrCodeTimeout, ctx.Err(), "rsvg-convert")
		}
		return nil, dcerrors.Wrap(dcerrors.ErrCodeRaster, err, "rsvg-convert: %s", strings.TrimSpace(errBuf.String()))
	}

	img, err := imaging.Decode(&out)
	if err != nil {
		return nil, dcerrors.Wrap(dcerrors.ErrCodeRaster, err, "decode rsvg-convert output")
	}
	return img, nil
}

var _ Rasterizer = (*RsvgRasterizer)(nil)
