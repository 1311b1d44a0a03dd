package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Crop extracts rect from img. The region is clipped to the image bounds and
// must not be empty after clipping. A scale other than 1 resizes the result;
// OCR reads thin strokes more reliably after an upscale.
func Crop(img image.Image, rect image.Rectangle, scale float64) (*image.NRGBA, error) {
	bounds := img.Bounds()
	region := rect.Canon().Intersect(bounds)
	if region.Empty() {
		return nil, fmt.Errorf("crop region %v does not overlap image bounds %v", rect, bounds)
	}
	if scale <= 0 {
		return nil, fmt.Errorf("invalid crop scale %g", scale)
	}

	cropped := imaging.Crop(img, region)
	if scale != 1.0 {
		w := int(float64(cropped.Bounds().Dx()) * scale)
		h := int(float64(cropped.Bounds().Dy()) * scale)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		cropped = imaging.Resize(cropped, w, h, imaging.Lanczos)
	}
	return cropped, nil
}

// LabelBand returns the rectangle holding a label drawn with its baseline at
// anchor: from textHeight above the baseline to pad below it, across width.
func LabelBand(anchor image.Point, width, textHeight, pad int) image.Rectangle {
	return image.Rect(anchor.X, anchor.Y-textHeight, anchor.X+width, anchor.Y+pad)
}
