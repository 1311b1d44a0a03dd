package detection

import (
	"image"
	"image/color"
	"testing"
)

func TestLineWidth(t *testing.T) {
	tests := []struct {
		w, h int
		want int
	}{
		{100, 100, 2},
		{1000, 1000, 3},
		{4000, 3000, 11},
	}
	for _, tt := range tests {
		if got := LineWidth(image.Rect(0, 0, tt.w, tt.h)); got != tt.want {
			t.Errorf("LineWidth(%dx%d): got %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestTag(t *testing.T) {
	classes := []string{"kelapa sawit"}
	if got := Tag(Box{Score: 0.873, Class: 0}, classes); got != "kelapa sawit 0.87" {
		t.Errorf("Tag: got %q", got)
	}
	if got := Tag(Box{Score: 0.5, Class: 3}, classes); got != "class3 0.50" {
		t.Errorf("Tag for unknown class: got %q", got)
	}
}

func TestPlot(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 200))
	boxColor := color.RGBA{255, 56, 56, 255}
	boxes := []Box{
		{X1: 50, Y1: 60, X2: 150, Y2: 160, Score: 0.9},
		{X1: 0, Y1: 0, X2: 40, Y2: 40, Score: 0.5}, // caption falls inside
	}

	out, err := Plot(src, boxes, []string{"kelapa sawit"}, boxColor)
	if err != nil {
		t.Fatalf("Plot failed: %v", err)
	}

	if got := out.RGBAAt(100, 160); got != boxColor {
		t.Errorf("bottom edge: got %v, want box color", got)
	}
	if got := out.RGBAAt(100, 110); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("box interior: got %v, want untouched black", got)
	}
	// The caption background fills the band just above the first box.
	if got := out.RGBAAt(52, 58); got != boxColor && got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("caption band: got %v, want box or text color", got)
	}

	// Source stays untouched.
	if src.RGBAAt(100, 160) != (color.RGBA{}) {
		t.Error("Plot modified its input")
	}
}
