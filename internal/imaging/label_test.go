package imaging

import (
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/font/basicfont"
)

func TestMeasureText(t *testing.T) {
	small := LabelStyle{Scale: 1, Thickness: 1}
	large := LabelStyle{Scale: 6, Thickness: 1}
	thick := LabelStyle{Scale: 1, Thickness: 10}

	w1, h1, err := MeasureText("Total Deteksi: 3", small)
	if err != nil {
		t.Fatalf("MeasureText failed: %v", err)
	}
	if w1 <= 0 || h1 <= 0 {
		t.Fatalf("expected positive size, got %dx%d", w1, h1)
	}

	wLonger, _, _ := MeasureText("Total Deteksi: 3000", small)
	if wLonger <= w1 {
		t.Errorf("longer text should be wider: %d <= %d", wLonger, w1)
	}

	w6, h6, _ := MeasureText("Total Deteksi: 3", large)
	if w6 < 5*w1 || h6 < 5*h1 {
		t.Errorf("scale 6 should be about six times larger: %dx%d vs %dx%d", w6, h6, w1, h1)
	}

	wt, ht, _ := MeasureText("Total Deteksi: 3", thick)
	if wt != w1+10 || ht != h1+5 {
		t.Errorf("thickness: got %dx%d, want %dx%d", wt, ht, w1+10, h1+5)
	}
}

func TestMeasureText_FaceOverride(t *testing.T) {
	w, _, err := MeasureText("abc", LabelStyle{Face: basicfont.Face7x13})
	if err != nil {
		t.Fatalf("MeasureText failed: %v", err)
	}
	if w != 21 {
		t.Errorf("width: got %d, want 21", w)
	}
}

func TestMeasureText_InvalidScale(t *testing.T) {
	if _, _, err := MeasureText("x", LabelStyle{Scale: 0}); err == nil {
		t.Error("zero scale should fail")
	}
}

func TestDrawLabel(t *testing.T) {
	gray := color.RGBA{128, 128, 128, 255}
	green := color.RGBA{0, 255, 0, 255}
	img := createInMemoryImage(400, 200, gray)

	style := LabelStyle{Scale: 1, Thickness: 1, Color: green, Background: color.Black}
	anchor := image.Pt(10, 100)
	band, err := DrawLabel(img, "11", anchor, 10, style)
	if err != nil {
		t.Fatalf("DrawLabel failed: %v", err)
	}

	w, h, _ := MeasureText("11", style)
	if want := image.Rect(10, 100-h, 10+w, 110); band != want {
		t.Errorf("band: got %v, want %v", band, want)
	}

	if got := img.RGBAAt(band.Max.X, band.Max.Y); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("band corner: got %v, want black", got)
	}
	if got := img.RGBAAt(band.Max.X+1, band.Max.Y+1); got != gray {
		t.Errorf("outside band: got %v, want untouched gray", got)
	}

	greenPixels := 0
	for y := band.Min.Y; y <= band.Max.Y; y++ {
		for x := band.Min.X; x <= band.Max.X; x++ {
			if img.RGBAAt(x, y) == green {
				greenPixels++
			}
		}
	}
	if greenPixels == 0 {
		t.Error("no text pixels drawn inside the label band")
	}
}

func TestDrawText_Thickness(t *testing.T) {
	count := func(thickness int) int {
		img := createInMemoryImage(200, 80, color.Black)
		style := LabelStyle{Scale: 1, Thickness: thickness, Color: color.White}
		if err := DrawText(img, "T", image.Pt(20, 50), style); err != nil {
			t.Fatalf("DrawText failed: %v", err)
		}
		n := 0
		for i := 0; i < len(img.Pix); i += 4 {
			if img.Pix[i] > 200 {
				n++
			}
		}
		return n
	}

	thin, bold := count(1), count(6)
	if thin == 0 {
		t.Fatal("thin text drew nothing")
	}
	if bold <= thin {
		t.Errorf("thick text should cover more pixels: %d <= %d", bold, thin)
	}
}

func TestStrokeOffsets(t *testing.T) {
	if got := strokeOffsets(1); len(got) != 1 {
		t.Errorf("thickness 1: got %d offsets, want 1", len(got))
	}
	// radius 1 disk: center plus four neighbours
	if got := strokeOffsets(2); len(got) != 5 {
		t.Errorf("thickness 2: got %d offsets, want 5", len(got))
	}
}
