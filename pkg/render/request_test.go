package render

import (
	"math"
	"testing"

	dcerrors "github.com/matzehuels/dotcharts/pkg/errors"
)

func TestParseDimension(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"200", 200},
		{" 50 ", 50},
		{"1e2", 100},
		{"0x10", 16},
		{"0b101", 5},
		{"12.5", 12.5},
		{"-5", -5},

		// fall back to 100
		{"", 100},
		{"abc", 100},
		{"0", 100},
		{"0.0", 100},
		{"NaN", 100},
		{"12px", 100},
		{"inf", 100},
		{"1_000", 100},
		{"0x", 100},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseDimension(tt.in); got != tt.want {
				t.Errorf("ParseDimension(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDimensionInfinity(t *testing.T) {
	if got := ParseDimension("Infinity"); !math.IsInf(got, 1) {
		t.Errorf("ParseDimension(Infinity) = %v, want +Inf", got)
	}
	if got := ParseDimension("1e400"); !math.IsInf(got, 1) {
		t.Errorf("ParseDimension(1e400) = %v, want +Inf", got)
	}
}

func TestRequestNormalize(t *testing.T) {
	r := Request{Graph: "digraph{}"}
	r.Normalize()
	if r.Format != FormatSVG || r.Engine != DefaultEngine {
		t.Errorf("Normalize() = %+v, want svg/dot defaults", r)
	}

	r = Request{Graph: "digraph{}", Format: "png", Engine: "neato"}
	r.Normalize()
	if r.Format != "png" || r.Engine != "neato" {
		t.Errorf("Normalize() overwrote explicit values: %+v", r)
	}
}

func TestRequestFormat(t *testing.T) {
	for _, f := range []string{"svg", "", "pdf", "PNG", "jpeg"} {
		if (Request{Format: f}).IsPNG() {
			t.Errorf("format %q should render SVG", f)
		}
	}
	if !(Request{Format: "png"}).IsPNG() {
		t.Error("format png should render PNG")
	}
}

func TestRequestResize(t *testing.T) {
	tests := []struct {
		width, height string
		want          bool
	}{
		{"200", "100", true},
		{"abc", "abc", true},
		{"200", "", false},
		{"", "100", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := (Request{Width: tt.width, Height: tt.height}).Resize(); got != tt.want {
			t.Errorf("Resize(%q, %q) = %v, want %v", tt.width, tt.height, got, tt.want)
		}
	}
}

func TestRequestSize(t *testing.T) {
	tests := []struct {
		name          string
		width, height string
		wantW, wantH  int
		wantErr       bool
	}{
		{"explicit", "200", "100", 200, 100, false},
		{"non numeric", "abc", "abc", 100, 100, false},
		{"zero", "0", "50", 100, 50, false},
		{"negative", "-5", "50", 0, 0, true},
		{"fraction", "12.5", "50", 0, 0, true},
		{"infinite", "Infinity", "50", 0, 0, true},
		{"too large", "20000", "50", 0, 0, true},
		{"at limit", "16383", "50", 16383, 50, false},
		{"past limit", "50", "16384", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := Request{Width: tt.width, Height: tt.height}.Size()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Size() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !dcerrors.Is(err, dcerrors.ErrCodeInvalidDimension) {
					t.Errorf("Size() code = %v, want INVALID_DIMENSION", dcerrors.GetCode(err))
				}
				return
			}
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("Size() = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestRequestValidate(t *testing.T) {
	if err := (Request{}).Validate(); !dcerrors.Is(err, dcerrors.ErrCodeInvalidInput) {
		t.Errorf("Validate() on empty graph = %v, want INVALID_INPUT", err)
	}
	if err := (Request{Graph: "0"}).Validate(); err != nil {
		t.Errorf("Validate() on non-empty graph = %v, want nil", err)
	}
}
