package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Black is the opaque fill used for padding tiles and label backgrounds.
var Black = color.NRGBA{0, 0, 0, 255}

// ErrNoTiles is returned by ComposeGrid when given nothing to lay out.
var ErrNoTiles = errors.New("no tiles to compose")

// GridSize returns how many rows count tiles occupy at the given column count.
func GridSize(count, columns int) int {
	if count <= 0 || columns <= 0 {
		return 0
	}
	return (count + columns - 1) / columns
}

// ResizeTile stretches img to exactly width x height, ignoring aspect ratio.
func ResizeTile(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(img, width, height, imaging.Linear)
}

// ComposeGrid lays tiles out row-major, columns per row. Every tile must
// share the first tile's size. The last row is padded with black tiles so
// each row is exactly columns wide.
func ComposeGrid(tiles []image.Image, columns int) (*image.NRGBA, error) {
	if len(tiles) == 0 {
		return nil, ErrNoTiles
	}
	if columns <= 0 {
		return nil, fmt.Errorf("invalid column count %d", columns)
	}

	tw, th := tiles[0].Bounds().Dx(), tiles[0].Bounds().Dy()
	for i, tile := range tiles {
		if b := tile.Bounds(); b.Dx() != tw || b.Dy() != th {
			return nil, fmt.Errorf("tile %d is %dx%d, want %dx%d", i, b.Dx(), b.Dy(), tw, th)
		}
	}

	rows := GridSize(len(tiles), columns)
	canvas := imaging.New(tw*columns, th*rows, Black)
	for i, tile := range tiles {
		pos := image.Pt((i%columns)*tw, (i/columns)*th)
		canvas = imaging.Paste(canvas, tile, pos)
	}
	return canvas, nil
}
