package render

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	dcerrors "github.com/matzehuels/dotcharts/pkg/errors"
)

const defaultFontSize = 14.0

type labelFonts struct {
	regular, bold *truetype.Font
}

var loadLabelFonts = sync.OnceValues(func() (labelFonts, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return labelFonts{}, err
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return labelFonts{}, err
	}
	return labelFonts{regular: regular, bold: bold}, nil
})

// svgText is one <text> element with its accumulated transform.
type svgText struct {
	m       rasterx.Matrix2D
	x, y    float64
	anchor  string
	size    float64
	bold    bool
	fill    color.Color
	content strings.Builder
}

func newSVGText(el xml.StartElement, m rasterx.Matrix2D) *svgText {
	t := &svgText{m: m, size: defaultFontSize, fill: color.Black}
	for _, a := range el.Attr {
		switch a.Name.Local {
		case "x":
			t.x = firstNumber(a.Value)
		case "y":
			t.y = firstNumber(a.Value)
		case "text-anchor":
			t.anchor = a.Value
		case "font-size":
			if v := firstNumber(strings.TrimSuffix(a.Value, "px")); v > 0 {
				t.size = v
			}
		case "font-weight":
			t.bold = a.Value == "bold" || firstNumber(a.Value) >= 600
		case "fill":
			if c, err := oksvg.ParseSVGColor(a.Value); err == nil {
				t.fill = c
			}
		}
	}
	return t
}

type faceKey struct {
	bold bool
	size float64
}

// labelPainter draws SVG <text> elements onto an image with the Go fonts.
// Rotated text is drawn upright at its transformed anchor point.
type labelPainter struct {
	dc    *gg.Context
	fonts labelFonts
	faces map[faceKey]font.Face
}

// drawLabels paints every <text> element of svg onto img. base maps SVG
// user units to pixels, the same transform the shapes were drawn with.
func drawLabels(ctx context.Context, img *image.RGBA, svg []byte, base rasterx.Matrix2D) error {
	fonts, err := loadLabelFonts()
	if err != nil {
		return dcerrors.Wrap(dcerrors.ErrCodeRaster, err, "load label fonts")
	}
	p := &labelPainter{
		dc:    gg.NewContextForRGBA(img),
		fonts: fonts,
		faces: make(map[faceKey]font.Face),
	}

	dec := xml.NewDecoder(bytes.NewReader(svg))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	stack := []rasterx.Matrix2D{base}
	var label *svgText
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return dcerrors.Wrap(dcerrors.ErrCodeRaster, err, "parse SVG text")
		}

		switch el := tok.(type) {
		case xml.StartElement:
			m := stack[len(stack)-1]
			for _, a := range el.Attr {
				if a.Name.Local != "transform" {
					continue
				}
				if m, err = parseTransform(m, a.Value); err != nil {
					return dcerrors.Wrap(dcerrors.ErrCodeRaster, err, "parse SVG text")
				}
			}
			stack = append(stack, m)
			if el.Name.Local == "text" && label == nil {
				label = newSVGText(el, m)
			}
		case xml.CharData:
			if label != nil {
				label.content.Write(el)
			}
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			if el.Name.Local == "text" && label != nil {
				if err := ctx.Err(); err != nil {
					return dcerrors.Wrap(dcerrors.ErrCodeTimeout, err, "rasterize")
				}
				p.draw(label)
				label = nil
			}
		}
	}
}

func (p *labelPainter) draw(t *svgText) {
	s := strings.TrimSpace(t.content.String())
	if s == "" || t.fill == nil {
		return
	}
	size := t.size * math.Sqrt(math.Abs(t.m.A*t.m.D-t.m.B*t.m.C))
	if size < 1 {
		return
	}
	x, y := t.m.Transform(t.x, t.y)

	p.dc.SetFontFace(p.face(t.bold, size))
	p.dc.SetColor(t.fill)
	p.dc.DrawStringAnchored(s, x, y, anchorOffset(t.anchor), 0)
}

func (p *labelPainter) face(bold bool, size float64) font.Face {
	key := faceKey{bold: bold, size: math.Round(size*100) / 100}
	if f, ok := p.faces[key]; ok {
		return f
	}
	ttf := p.fonts.regular
	if bold {
		ttf = p.fonts.bold
	}
	f := truetype.NewFace(ttf, &truetype.Options{Size: key.size, Hinting: font.HintingNone})
	p.faces[key] = f
	return f
}

func anchorOffset(anchor string) float64 {
	switch anchor {
	case "middle":
		return 0.5
	case "end":
		return 1
	default:
		return 0
	}
}

// parseTransform applies an SVG transform list to m, leftmost outermost.
func parseTransform(m rasterx.Matrix2D, v string) (rasterx.Matrix2D, error) {
	for _, part := range strings.Split(v, ")") {
		part = strings.TrimSpace(strings.TrimLeft(part, ", \t\n"))
		if part == "" {
			continue
		}
		name, args, ok := strings.Cut(part, "(")
		if !ok {
			return m, fmt.Errorf("malformed transform %q", v)
		}
		n, err := parseNumbers(args)
		if err != nil {
			return m, fmt.Errorf("transform %q: %w", v, err)
		}

		switch name = strings.TrimSpace(name); {
		case name == "translate" && (len(n) == 1 || len(n) == 2):
			n = append(n, 0)
			m = m.Translate(n[0], n[1])
		case name == "scale" && len(n) == 1:
			m = m.Scale(n[0], n[0])
		case name == "scale" && len(n) == 2:
			m = m.Scale(n[0], n[1])
		case name == "rotate" && len(n) == 1:
			m = m.Rotate(n[0] * math.Pi / 180)
		case name == "rotate" && len(n) == 3:
			m = m.Translate(n[1], n[2]).Rotate(n[0]*math.Pi/180).Translate(-n[1], -n[2])
		case name == "matrix" && len(n) == 6:
			m = m.Mult(rasterx.Matrix2D{A: n[0], B: n[1], C: n[2], D: n[3], E: n[4], F: n[5]})
		default:
			return m, fmt.Errorf("unsupported transform %s(%s)", name, args)
		}
	}
	return m, nil
}

func parseNumbers(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func firstNumber(s string) float64 {
	n, err := parseNumbers(s)
	if err != nil || len(n) == 0 {
		return 0
	}
	return n[0]
}
