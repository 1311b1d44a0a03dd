package detection

import (
	"fmt"
	"image"

	"github.com/ironsheep/palmcount/internal/imaging"
)

// maxDetections caps how many boxes survive suppression per image.
const maxDetections = 300

// strides are the feature map strides of the three YOLO detection heads.
var strides = []int{8, 16, 32}

// AnchorCount returns the number of prediction columns a model with the
// given square input size produces.
func AnchorCount(inputSize int) int {
	n := 0
	for _, s := range strides {
		side := inputSize / s
		n += side * side
	}
	return n
}

// fillInput stretches img to size x size and writes it into dst as planar
// RGB floats in [0, 1]. dst must hold 3*size*size values.
func fillInput(img image.Image, size int, dst []float32) error {
	plane := size * size
	if len(dst) < 3*plane {
		return fmt.Errorf("input buffer holds %d values, need %d", len(dst), 3*plane)
	}

	resized := imaging.ResizeTile(img, size, size)
	for y := 0; y < size; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < size; x++ {
			i := y*size + x
			dst[i] = float32(row[x*4]) / 255.0
			dst[plane+i] = float32(row[x*4+1]) / 255.0
			dst[2*plane+i] = float32(row[x*4+2]) / 255.0
		}
	}
	return nil
}

// decodeParams describes how raw model output maps onto the source image.
type decodeParams struct {
	classes    int
	anchors    int
	inputSize  int
	confidence float32
	srcWidth   int
	srcHeight  int
}

// candidates extracts every anchor whose best class score exceeds the
// confidence threshold. out is the (4+classes, anchors) output, row-major.
func candidates(out []float32, p decodeParams) ([]Box, error) {
	if want := (4 + p.classes) * p.anchors; len(out) < want {
		return nil, fmt.Errorf("model output holds %d values, want %d", len(out), want)
	}

	sx := float32(p.srcWidth) / float32(p.inputSize)
	sy := float32(p.srcHeight) / float32(p.inputSize)
	w, h := float32(p.srcWidth), float32(p.srcHeight)
	a := p.anchors

	var boxes []Box
	for i := 0; i < a; i++ {
		best, cls := float32(-1), -1
		for c := 0; c < p.classes; c++ {
			if s := out[(4+c)*a+i]; s > best {
				best, cls = s, c
			}
		}
		if best <= p.confidence {
			continue
		}

		cx, cy := out[i], out[a+i]
		bw, bh := out[2*a+i], out[3*a+i]
		boxes = append(boxes, Box{
			X1:    clamp32((cx-bw/2)*sx, 0, w),
			Y1:    clamp32((cy-bh/2)*sy, 0, h),
			X2:    clamp32((cx+bw/2)*sx, 0, w),
			Y2:    clamp32((cy+bh/2)*sy, 0, h),
			Score: best,
			Class: cls,
		})
	}
	return boxes, nil
}

// decode turns raw model output into the final, suppressed box list.
func decode(out []float32, p decodeParams, iou float32) ([]Box, error) {
	boxes, err := candidates(out, p)
	if err != nil {
		return nil, err
	}
	return NMS(boxes, iou, maxDetections), nil
}
