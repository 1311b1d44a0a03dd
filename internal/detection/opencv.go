//go:build opencv

package detection

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// openCVDetector runs the same export through the OpenCV DNN module.
type openCVDetector struct {
	opts Options

	mu  sync.Mutex
	net *gocv.Net
}

func newOpenCVDetector(opts Options) (Detector, error) {
	net := gocv.ReadNetFromONNX(opts.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model %s", opts.ModelPath)
	}
	return &openCVDetector{opts: opts, net: &net}, nil
}

func (d *openCVDetector) Detect(ctx context.Context, img image.Image) ([]Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.net == nil {
		return nil, fmt.Errorf("detector is closed")
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	size := image.Pt(d.opts.InputSize, d.opts.InputSize)
	blob := gocv.BlobFromImage(mat, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "images")
	out := d.net.Forward("output0")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read model output: %w", err)
	}

	cands, err := candidates(data, d.opts.decodeParams(img.Bounds()))
	if err != nil {
		return nil, fmt.Errorf("process predictions: %w", err)
	}
	return d.suppress(cands), nil
}

// suppress runs OpenCV's NMS separately for each class.
func (d *openCVDetector) suppress(cands []Box) []Box {
	byClass := make(map[int][]Box)
	for _, b := range cands {
		byClass[b.Class] = append(byClass[b.Class], b)
	}

	var kept []Box
	for _, group := range byClass {
		rects := make([]image.Rectangle, len(group))
		scores := make([]float32, len(group))
		for i, b := range group {
			p1, p2 := b.Corners()
			rects[i] = image.Rectangle{Min: p1, Max: p2}
			scores[i] = b.Score
		}
		for _, idx := range gocv.NMSBoxes(rects, scores, d.opts.Confidence, d.opts.IoU) {
			kept = append(kept, group[idx])
		}
	}

	SortByScore(kept)
	if len(kept) > maxDetections {
		kept = kept[:maxDetections]
	}
	return kept
}

func (d *openCVDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.net == nil {
		return nil
	}
	err := d.net.Close()
	d.net = nil
	return err
}
