package imaging

import (
	"image"
	"image/color"
	"image/draw"
)

// StrokeRect draws an unfilled rectangle with corners p1 and p2, both
// inclusive. The stroke of the given thickness is centered on the edges, so
// a thickness of 5 paints two pixels outside and two inside each edge.
// Anything falling outside dst is clipped.
func StrokeRect(dst draw.Image, p1, p2 image.Point, c color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	r := image.Rectangle{Min: p1, Max: p2}.Canon()
	half := thickness / 2

	outer := image.Rect(r.Min.X-half, r.Min.Y-half, r.Max.X-half+thickness, r.Max.Y-half+thickness)
	inner := image.Rect(r.Min.X-half+thickness, r.Min.Y-half+thickness, r.Max.X-half, r.Max.Y-half)
	if inner.Empty() {
		fill(dst, outer, c)
		return
	}

	fill(dst, image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, inner.Min.Y), c) // top
	fill(dst, image.Rect(outer.Min.X, inner.Max.Y, outer.Max.X, outer.Max.Y), c) // bottom
	fill(dst, image.Rect(outer.Min.X, inner.Min.Y, inner.Min.X, inner.Max.Y), c) // left
	fill(dst, image.Rect(inner.Max.X, inner.Min.Y, outer.Max.X, inner.Max.Y), c) // right
}

// FillRect paints the rectangle with inclusive corners p1 and p2.
func FillRect(dst draw.Image, p1, p2 image.Point, c color.Color) {
	r := image.Rectangle{Min: p1, Max: p2}.Canon()
	r.Max = r.Max.Add(image.Pt(1, 1))
	fill(dst, r, c)
}

func fill(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}
