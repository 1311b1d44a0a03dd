package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// pointsPerScale converts a Hershey-style font scale into a TrueType size
// whose cap height roughly matches the stroke font at the same scale.
const pointsPerScale = 30.0

// LabelStyle describes how a text label is rendered.
type LabelStyle struct {
	// Scale multiplies the base glyph size. Ignored when Face is set.
	Scale float64

	// Thickness is the stroke weight in pixels. Values above 1 thicken the
	// glyphs by stamping the text at every offset within that diameter.
	Thickness int

	Color      color.Color
	Background color.Color

	// Face overrides the bold TrueType face, e.g. with basicfont for small tags.
	Face font.Face
}

var (
	boldOnce sync.Once
	boldFont *opentype.Font
	boldErr  error
)

func (s LabelStyle) face() (font.Face, error) {
	if s.Face != nil {
		return s.Face, nil
	}
	if s.Scale <= 0 {
		return nil, fmt.Errorf("invalid font scale %g", s.Scale)
	}

	boldOnce.Do(func() {
		boldFont, boldErr = opentype.Parse(gobold.TTF)
	})
	if boldErr != nil {
		return nil, fmt.Errorf("failed to parse label font: %w", boldErr)
	}

	// Faces keep per-glyph scratch state, so each render gets its own.
	f, err := opentype.NewFace(boldFont, &opentype.FaceOptions{
		Size:    pointsPerScale * s.Scale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create label face: %w", err)
	}
	return f, nil
}

func capHeight(face font.Face) int {
	m := face.Metrics()
	if m.CapHeight > 0 {
		return m.CapHeight.Ceil()
	}
	return m.Ascent.Ceil()
}

// MeasureText returns the width and the height above the baseline of text
// rendered in style, including the extra reach of thick strokes.
func MeasureText(text string, style LabelStyle) (width, height int, err error) {
	face, err := style.face()
	if err != nil {
		return 0, 0, err
	}
	extra := 0
	if style.Thickness > 1 {
		extra = style.Thickness
	}
	width = font.MeasureString(face, text).Ceil() + extra
	height = capHeight(face) + extra/2
	return width, height, nil
}

// DrawText renders text with its baseline starting at origin.
func DrawText(dst draw.Image, text string, origin image.Point, style LabelStyle) error {
	face, err := style.face()
	if err != nil {
		return err
	}

	m := face.Metrics()
	w := font.MeasureString(face, text).Ceil()
	ascent, descent := m.Ascent.Ceil(), m.Descent.Ceil()
	if w <= 0 {
		return nil
	}

	// Rasterize once into a mask, then stamp it for every stroke offset.
	mask := image.NewAlpha(image.Rect(0, 0, w+1, ascent+descent))
	d := &font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(0, ascent),
	}
	d.DrawString(text)

	fg := style.Color
	if fg == nil {
		fg = color.White
	}
	src := image.NewUniform(fg)
	topLeft := origin.Sub(image.Pt(0, ascent))
	for _, off := range strokeOffsets(style.Thickness) {
		r := mask.Bounds().Add(topLeft).Add(off)
		draw.DrawMask(dst, r, src, image.Point{}, mask, image.Point{}, draw.Over)
	}
	return nil
}

// strokeOffsets lists the integer offsets inside a disk of the given diameter.
func strokeOffsets(thickness int) []image.Point {
	if thickness <= 1 {
		return []image.Point{{}}
	}
	r := thickness / 2
	var pts []image.Point
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				pts = append(pts, image.Pt(dx, dy))
			}
		}
	}
	return pts
}

// DrawLabel paints a filled background from (x, y-textHeight) to
// (x+textWidth, y+pad), then the text with its baseline at anchor (x, y).
// It returns the background rectangle.
func DrawLabel(dst draw.Image, text string, anchor image.Point, pad int, style LabelStyle) (image.Rectangle, error) {
	w, h, err := MeasureText(text, style)
	if err != nil {
		return image.Rectangle{}, err
	}

	band := LabelBand(anchor, w, h, pad)
	bg := style.Background
	if bg == nil {
		bg = Black
	}
	FillRect(dst, band.Min, band.Max, bg)

	if err := DrawText(dst, text, anchor, style); err != nil {
		return image.Rectangle{}, err
	}
	return band, nil
}
