package detection

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font/basicfont"

	"github.com/ironsheep/palmcount/internal/imaging"
)

const tagPad = 3

// LineWidth returns the stroke width the model's renderer uses for an image
// of the given size.
func LineWidth(bounds image.Rectangle) int {
	lw := int(math.Round(float64(bounds.Dx()+bounds.Dy()) / 2 * 0.003))
	if lw < 2 {
		lw = 2
	}
	return lw
}

// Tag formats the per-box caption, e.g. "kelapa sawit 0.87".
func Tag(b Box, classes []string) string {
	name := fmt.Sprintf("class%d", b.Class)
	if b.Class >= 0 && b.Class < len(classes) {
		name = classes[b.Class]
	}
	return fmt.Sprintf("%s %.2f", name, b.Score)
}

// Plot returns a copy of img with every box outlined in c and captioned with
// its class name and score.
func Plot(img image.Image, boxes []Box, classes []string, c color.Color) (*image.RGBA, error) {
	dst := imaging.ToRGBA(img)
	lw := LineWidth(dst.Bounds())
	style := imaging.LabelStyle{
		Face:       basicfont.Face7x13,
		Color:      color.White,
		Background: c,
	}

	for _, b := range boxes {
		p1, p2 := b.Corners()
		imaging.StrokeRect(dst, p1, p2, c, lw)

		text := Tag(b, classes)
		_, h, err := imaging.MeasureText(text, style)
		if err != nil {
			return nil, err
		}
		// Caption sits on top of the box unless that leaves the image.
		anchor := image.Pt(p1.X, p1.Y-tagPad)
		if anchor.Y-h < 0 {
			anchor.Y = p1.Y + h
		}
		if _, err := imaging.DrawLabel(dst, text, anchor, tagPad, style); err != nil {
			return nil, err
		}
	}
	return dst, nil
}
