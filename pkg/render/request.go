package render

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	dcerrors "github.com/matzehuels/dotcharts/pkg/errors"
)

// Output formats.
const (
	FormatSVG = "svg"
	FormatPNG = "png"
)

// Content types written for each output format.
const (
	ContentTypeSVG = "image/svg+xml"
	ContentTypePNG = "image/png"
)

const (
	// DefaultEngine is used when a request names no layout engine.
	DefaultEngine = "dot"

	// DefaultDimension replaces width or height values that are empty,
	// zero or not numbers.
	DefaultDimension = 100

	// MaxDimension caps the PNG canvas on either axis.
	MaxDimension = 16383
)

// Request describes one render. Width and Height stay strings because
// their coercion rules depend on the raw query value.
type Request struct {
	Graph  string
	Format string
	Engine string
	Width  string
	Height string
}

// Normalize fills in the default format and engine.
func (r *Request) Normalize() {
	if r.Format == "" {
		r.Format = FormatSVG
	}
	if r.Engine == "" {
		r.Engine = DefaultEngine
	}
}

// Validate rejects requests without a graph.
func (r Request) Validate() error {
	return dcerrors.ValidateGraph(r.Graph)
}

// IsPNG reports whether PNG output was requested. Any other format value
// produces SVG.
func (r Request) IsPNG() bool {
	return r.Format == FormatPNG
}

// Resize reports whether the PNG should be fitted into a box. Both
// dimensions must be present; one alone is ignored.
func (r Request) Resize() bool {
	return r.Width != "" && r.Height != ""
}

// Size returns the target box in pixels.
func (r Request) Size() (width, height int, err error) {
	if width, err = pixels("width", ParseDimension(r.Width)); err != nil {
		return 0, 0, err
	}
	if height, err = pixels("height", ParseDimension(r.Height)); err != nil {
		return 0, 0, err
	}
	return width, height, nil
}

// ParseDimension coerces a raw width or height the way the HTTP contract
// defines it: parse s as a number and fall back to [DefaultDimension] when
// the result is zero or not a number. "abc", "" and "0" all give 100.
func ParseDimension(s string) float64 {
	n := parseNumber(s)
	if n == 0 || math.IsNaN(n) {
		return DefaultDimension
	}
	return n
}

func pixels(name string, n float64) (int, error) {
	switch {
	case math.IsInf(n, 0):
		return 0, dcerrors.New(dcerrors.ErrCodeInvalidDimension, "expected positive integer for %s but received %v", name, n)
	case n != math.Trunc(n) || n < 1:
		return 0, dcerrors.New(dcerrors.ErrCodeInvalidDimension, "expected positive integer for %s but received %v", name, n)
	case n > MaxDimension:
		return 0, dcerrors.New(dcerrors.ErrCodeInvalidDimension, "%s %v exceeds the maximum of %d", name, n, MaxDimension)
	}
	return int(n), nil
}

var decimalRe = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// parseNumber reads s as a numeric literal: surrounding whitespace is
// ignored, empty means 0, 0x/0o/0b prefixes are integer literals and
// "Infinity" is accepted. Everything else that is not a plain decimal
// literal is NaN.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			if strings.Contains(s, "_") {
				return math.NaN()
			}
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}

	if !decimalRe.MatchString(s) {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) && ne.Err == strconv.ErrRange {
			// overflow yields ±Inf, underflow yields 0
			return f
		}
		return math.NaN()
	}
	return f
}
